package catest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/cloudflare/circl/pki"
	"github.com/cloudflare/circl/sign"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/letsencrypt/certsig/core"
	"github.com/letsencrypt/certsig/der"
	"github.com/letsencrypt/certsig/verify"
)

// certificateRequest carries the fields buildCertificate fills in.
type certificateRequest struct {
	serial    *big.Int
	subjectCN string
	subjectOU string
	notBefore time.Time
	notAfter  time.Time
	isCA      bool
	dnsNames  []string
	pub       crypto.PublicKey
}

// buildCertificate assembles a certificate from the core model and signs it
// with signer, or with selfKey when signer is nil. This is how post-quantum
// certificates are made, since crypto/x509 cannot marshal ML-DSA keys.
func buildCertificate(req certificateRequest, signer *issuer, selfKey crypto.Signer) ([]byte, error) {
	spki, err := verify.PublicKeyInfo(req.pub)
	if err != nil {
		return nil, err
	}

	subject := core.Name{{{Type: core.OIDCommonName, Value: core.String{Tag: cryptobyte_asn1.UTF8String, Value: req.subjectCN}}}}
	if req.subjectOU != "" {
		subject = append(subject, core.RelativeDistinguishedName{
			{Type: core.OIDOrganizationalUnitName, Value: core.String{Tag: cryptobyte_asn1.UTF8String, Value: req.subjectOU}},
		})
	}

	bc := core.BasicConstraints{CA: req.isCA}
	if req.isCA {
		pathLen := 1
		bc.PathLenConstraint = &pathLen
	}
	bcExt, err := der.MarshalBasicConstraints(bc, true)
	if err != nil {
		return nil, err
	}
	extensions := []core.Extension{bcExt}
	if len(req.dnsNames) > 0 {
		sanExt, err := der.MarshalSubjectAltNames(core.GeneralNames{DNSNames: req.dnsNames}, false)
		if err != nil {
			return nil, err
		}
		extensions = append(extensions, sanExt)
	}

	issuerName, signerKey := subject, selfKey
	if signer != nil {
		issuerName, signerKey = signer.cert.Cert.TbsCertificate.Subject, signer.key
	}
	if signerKey == nil {
		return nil, fmt.Errorf("no signing key for %q", req.subjectCN)
	}

	tbs := core.TbsCertificate{
		Version:      core.V3,
		SerialNumber: req.serial,
		Issuer:       issuerName,
		Validity: core.Validity{
			NotBefore: core.NewTime(truncate(req.notBefore)),
			NotAfter:  core.NewTime(truncate(req.notAfter)),
		},
		Subject:              subject,
		SubjectPublicKeyInfo: spki,
		Extensions:           extensions,
	}
	cert, err := Sign(tbs, signerKey)
	if err != nil {
		return nil, err
	}
	return der.EncodeCertificate(cert)
}

// SignatureAlgorithm returns the algorithm identifier Sign uses for key.
func SignatureAlgorithm(key crypto.Signer) (core.AlgorithmIdentifier, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return core.AlgorithmIdentifier{Algorithm: verify.OIDSignatureSHA256WithRSA, Parameters: core.Null{}}, nil
	case *ecdsa.PrivateKey:
		return core.AlgorithmIdentifier{Algorithm: verify.OIDSignatureECDSAWithSHA256}, nil
	case ed25519.PrivateKey:
		return core.AlgorithmIdentifier{Algorithm: verify.OIDSignatureEd25519}, nil
	case sign.PrivateKey:
		scheme, ok := k.Scheme().(pki.CertificateScheme)
		if !ok {
			return core.AlgorithmIdentifier{}, fmt.Errorf("scheme %s has no OID", k.Scheme().Name())
		}
		return core.AlgorithmIdentifier{Algorithm: core.OIDFromASN1(scheme.Oid())}, nil
	}
	return core.AlgorithmIdentifier{}, fmt.Errorf("unsupported signing key type %T", key)
}

// Sign sets the signature algorithm of tbs to match key, signs its DER
// encoding and returns the complete certificate.
func Sign(tbs core.TbsCertificate, key crypto.Signer) (core.Certificate, error) {
	ai, err := SignatureAlgorithm(key)
	if err != nil {
		return core.Certificate{}, err
	}
	tbs.Signature = ai

	signed, err := der.EncodeTbsCertificate(tbs)
	if err != nil {
		return core.Certificate{}, err
	}

	var signature []byte
	switch k := key.(type) {
	case sign.PrivateKey:
		signature = k.Scheme().Sign(k, signed, nil)
	case ed25519.PrivateKey:
		signature = ed25519.Sign(k, signed)
	default:
		digest := sha256.Sum256(signed)
		signature, err = key.Sign(rand.Reader, digest[:], crypto.SHA256)
		if err != nil {
			return core.Certificate{}, err
		}
	}

	return core.Certificate{
		TbsCertificate:     tbs,
		SignatureAlgorithm: ai,
		SignatureValue:     core.NewBitString(signature),
	}, nil
}
