// Package catest runs a throwaway certificate authority for tests and
// examples. It issues a root, an intermediate and any number of leaf
// certificates, and records each one in a db.MemoryStore.
package catest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"math/big"
	"time"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/jmhodges/clock"

	"github.com/letsencrypt/certsig/db"
)

const (
	rootCAPrefix         = "certsig Root CA "
	intermediateCAPrefix = "certsig Intermediate CA "
	organizationalUnit   = "certsig test"
)

// KeyAlgorithm names the kind of key an issuer signs with.
type KeyAlgorithm string

const (
	RSA     KeyAlgorithm = "rsa"
	ECDSA   KeyAlgorithm = "ecdsa"
	Ed25519 KeyAlgorithm = "ed25519"
	MLDSA44 KeyAlgorithm = "mldsa44"
	MLDSA65 KeyAlgorithm = "mldsa65"
	MLDSA87 KeyAlgorithm = "mldsa87"
)

// IsPostQuantum reports whether certificates for this algorithm have to be
// built without crypto/x509.
func (a KeyAlgorithm) IsPostQuantum() bool {
	switch a {
	case MLDSA44, MLDSA65, MLDSA87:
		return true
	}
	return false
}

type CAImpl struct {
	log *log.Logger
	db  *db.MemoryStore
	clk clock.Clock

	keyAlgorithm KeyAlgorithm

	root         *issuer
	intermediate *issuer
}

type issuer struct {
	key  crypto.Signer
	cert *db.Certificate

	// template is the parsed form crypto/x509 needs as a parent. It is nil
	// for post-quantum issuers.
	template *x509.Certificate
}

func makeSerial() *big.Int {
	serial, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		panic(fmt.Sprintf("unable to create random serial number: %s", err.Error()))
	}
	return serial
}

// NewKey creates a new private key of the given kind. RSA keys are 2048 bits
// and ECDSA keys use P-256.
func NewKey(alg KeyAlgorithm) (crypto.Signer, error) {
	switch alg {
	case RSA:
		return rsa.GenerateKey(rand.Reader, 2048)
	case ECDSA:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case Ed25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, err
	case MLDSA44:
		return generateMLDSA(mldsa44.Scheme())
	case MLDSA65:
		return generateMLDSA(mldsa65.Scheme())
	case MLDSA87:
		return generateMLDSA(mldsa87.Scheme())
	}
	return nil, fmt.Errorf("unknown key algorithm %q", alg)
}

func generateMLDSA(scheme sign.Scheme) (crypto.Signer, error) {
	_, key, err := scheme.GenerateKey()
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (ca *CAImpl) makeRootCert(
	subjectKey crypto.Signer,
	subjCNPrefix string,
	signer *issuer) (*issuer, error) {

	serial := makeSerial()
	now := ca.clk.Now()
	cn := subjCNPrefix + hex.EncodeToString(serial.Bytes()[:3])

	var der []byte
	var template *x509.Certificate
	var err error
	if ca.keyAlgorithm.IsPostQuantum() {
		der, err = buildCertificate(certificateRequest{
			serial:    serial,
			subjectCN: cn,
			subjectOU: organizationalUnit,
			notBefore: now,
			notAfter:  now.AddDate(30, 0, 0),
			isCA:      true,
			pub:       subjectKey.Public(),
		}, signer, subjectKey)
	} else {
		template = &x509.Certificate{
			Subject: pkix.Name{
				CommonName:         cn,
				OrganizationalUnit: []string{organizationalUnit},
			},
			SerialNumber: serial,
			NotBefore:    now,
			NotAfter:     now.AddDate(30, 0, 0),

			KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
			BasicConstraintsValid: true,
			IsCA:                  true,
		}
		parent, signerKey := template, subjectKey
		if signer != nil {
			parent, signerKey = signer.template, signer.key
		}
		der, err = x509.CreateCertificate(rand.Reader, template, parent, subjectKey.Public(), signerKey)
		if err == nil {
			template, err = x509.ParseCertificate(der)
		}
	}
	if err != nil {
		return nil, err
	}

	newCert, err := db.NewCertificate(der)
	if err != nil {
		return nil, err
	}
	if signer != nil {
		newCert.Issuer = signer.cert
	}
	if _, err := ca.db.AddCertificate(newCert); err != nil {
		return nil, err
	}
	return &issuer{key: subjectKey, cert: newCert, template: template}, nil
}

func (ca *CAImpl) newRootIssuer() {
	// Make a root private key
	rk, err := NewKey(ca.keyAlgorithm)
	if err != nil {
		panic(fmt.Sprintf("Unable to create a new root private key: %s", err.Error()))
	}
	// Make a self-signed root certificate
	ca.root, err = ca.makeRootCert(rk, rootCAPrefix, nil)
	if err != nil {
		panic(fmt.Sprintf("Unable to create a new root certificate: %s", err.Error()))
	}
	ca.log.Printf("Generated new %s root issuer %s", ca.keyAlgorithm, ca.root.cert.ID)
}

func (ca *CAImpl) newIntermediateIssuer() {
	if ca.root == nil {
		panic("error: newIntermediateIssuer() called before newRootIssuer()")
	}

	// Make an intermediate private key
	ik, err := NewKey(ca.keyAlgorithm)
	if err != nil {
		panic(fmt.Sprintf(
			"Unable to create a new intermediate private key: %s", err.Error()))
	}

	// Make an intermediate certificate with the root issuer
	ca.intermediate, err = ca.makeRootCert(ik, intermediateCAPrefix, ca.root)
	if err != nil {
		panic(fmt.Sprintf("Unable to create a new intermediate certificate: %s", err.Error()))
	}
	ca.log.Printf("Generated new %s intermediate issuer %s", ca.keyAlgorithm, ca.intermediate.cert.ID)
}

// NewCertificate issues a leaf certificate for key, signed by the
// intermediate. The first domain becomes the subject common name and every
// domain is listed in the subject alternative name extension.
func (ca *CAImpl) NewCertificate(domains []string, key crypto.PublicKey) (*db.Certificate, error) {
	var cn string
	if len(domains) > 0 {
		cn = domains[0]
	} else {
		return nil, fmt.Errorf("must specify at least one domain name")
	}

	issuer := ca.intermediate
	if issuer == nil || issuer.cert == nil {
		return nil, fmt.Errorf("cannot sign certificate - nil issuer")
	}

	serial := makeSerial()
	now := ca.clk.Now()

	var der []byte
	var err error
	if _, pq := key.(sign.PublicKey); pq || issuer.template == nil {
		der, err = buildCertificate(certificateRequest{
			serial:    serial,
			subjectCN: cn,
			notBefore: now,
			notAfter:  now.AddDate(0, 0, 90),
			dnsNames:  domains,
			pub:       key,
		}, issuer, nil)
	} else {
		template := &x509.Certificate{
			DNSNames: domains,
			Subject: pkix.Name{
				CommonName: cn,
			},
			SerialNumber: serial,
			NotBefore:    now,
			NotAfter:     now.AddDate(0, 0, 90),

			KeyUsage:              x509.KeyUsageDigitalSignature,
			ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
			BasicConstraintsValid: true,
			IsCA:                  false,
		}
		der, err = x509.CreateCertificate(rand.Reader, template, issuer.template, key, issuer.key)
	}
	if err != nil {
		return nil, err
	}

	newCert, err := db.NewCertificate(der)
	if err != nil {
		return nil, err
	}
	newCert.Issuer = issuer.cert
	if _, err := ca.db.AddCertificate(newCert); err != nil {
		return nil, err
	}
	return newCert, nil
}

// Root returns the self-signed root certificate.
func (ca *CAImpl) Root() *db.Certificate {
	return ca.root.cert
}

// Intermediate returns the certificate that signs leaves.
func (ca *CAImpl) Intermediate() *db.Certificate {
	return ca.intermediate.cert
}

// IntermediateKey returns the intermediate's private key.
func (ca *CAImpl) IntermediateKey() crypto.Signer {
	return ca.intermediate.key
}

// New creates a root and an intermediate issuer signing with keys of the given
// kind. It panics if either cannot be created.
func New(log *log.Logger, db *db.MemoryStore, clk clock.Clock, alg KeyAlgorithm) *CAImpl {
	if clk == nil {
		clk = clock.New()
	}
	ca := &CAImpl{
		log:          log,
		db:           db,
		clk:          clk,
		keyAlgorithm: alg,
	}
	ca.newRootIssuer()
	ca.newIntermediateIssuer()
	return ca
}

// truncate drops sub-second precision, which certificates cannot carry.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
