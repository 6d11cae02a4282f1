// Package verify checks certificate signatures. Algorithms are resolved
// through a Registry keyed by signature algorithm OID, so callers can add or
// replace verifiers without touching the dispatch.
package verify

import (
	"crypto"
	"maps"
	"slices"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"github.com/letsencrypt/certsig/core"
	"github.com/letsencrypt/certsig/der"
)

// A Registry maps signature algorithm OIDs to verifiers. A Registry is never
// modified after construction and is safe for concurrent use.
type Registry struct {
	verifiers map[core.ObjectIdentifier]Verifier
}

// NewRegistry returns a registry holding exactly the given verifiers.
func NewRegistry(verifiers map[core.ObjectIdentifier]Verifier) *Registry {
	return &Registry{verifiers: maps.Clone(verifiers)}
}

var defaultRegistry = NewRegistry(map[core.ObjectIdentifier]Verifier{
	OIDSignatureSHA256WithRSA:   PKCS1v15(crypto.SHA256),
	OIDSignatureSHA384WithRSA:   PKCS1v15(crypto.SHA384),
	OIDSignatureSHA512WithRSA:   PKCS1v15(crypto.SHA512),
	OIDSignatureRSAPSS:          PSS(),
	OIDSignatureECDSAWithSHA256: ECDSA(crypto.SHA256),
	OIDSignatureECDSAWithSHA384: ECDSA(crypto.SHA384),
	OIDSignatureECDSAWithSHA512: ECDSA(crypto.SHA512),
	OIDSignatureEd25519:         Ed25519(),
	OIDSignatureMLDSA44:         MLDSA(mldsa44.Scheme()),
	OIDSignatureMLDSA65:         MLDSA(mldsa65.Scheme()),
	OIDSignatureMLDSA87:         MLDSA(mldsa87.Scheme()),
})

// DefaultRegistry returns the registry used by the package-level
// CheckSignature. MD5 and SHA-1 based algorithms are not registered.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// With returns a copy of r with v registered for oid, replacing any existing
// entry. r itself is unchanged.
func (r *Registry) With(oid core.ObjectIdentifier, v Verifier) *Registry {
	verifiers := maps.Clone(r.verifiers)
	if verifiers == nil {
		verifiers = make(map[core.ObjectIdentifier]Verifier)
	}
	verifiers[oid] = v
	return &Registry{verifiers: verifiers}
}

// Lookup returns the verifier registered for oid.
func (r *Registry) Lookup(oid core.ObjectIdentifier) (Verifier, bool) {
	v, ok := r.verifiers[oid]
	return v, ok
}

// Algorithms returns the registered OIDs, sorted.
func (r *Registry) Algorithms() []core.ObjectIdentifier {
	return slices.Sorted(maps.Keys(r.verifiers))
}

func (r *Registry) resolve(oid core.ObjectIdentifier) (Verifier, error) {
	if v, ok := r.verifiers[oid]; ok {
		return v, nil
	}
	if _, ok := insecureAlgorithmNames[oid]; ok {
		return nil, &SignatureError{Algorithm: oid, Err: InsecureAlgorithmError(oid)}
	}
	return nil, &SignatureError{Algorithm: oid, Err: ErrUnsupportedAlgorithm}
}

// CheckSignature reports whether cert's signatureValue is a valid signature
// by pub over the DER encoding of cert's tbsCertificate, using the algorithm
// named by cert.SignatureAlgorithm.
//
// A false result with a nil error means the signature did not verify. A
// non-nil error means verification could not be carried out: the
// tbsCertificate could not be encoded (*der.EncodeError), the algorithm is
// not registered (*SignatureError wrapping ErrUnsupportedAlgorithm or an
// InsecureAlgorithmError), or the verifier rejected its inputs
// (*SignatureError).
func (r *Registry) CheckSignature(cert core.Certificate, pub crypto.PublicKey) (bool, error) {
	signed, err := der.EncodeTbsCertificate(cert.TbsCertificate)
	if err != nil {
		return false, err
	}

	algorithm := cert.SignatureAlgorithm.Algorithm
	v, err := r.resolve(algorithm)
	if err != nil {
		return false, err
	}

	if cert.SignatureValue.UnusedBits() != 0 {
		return false, &SignatureError{Algorithm: algorithm, Err: ErrMalformedSignature}
	}

	ok, err := v.Verify(pub, cert.SignatureAlgorithm, signed, cert.SignatureValue.Bytes)
	if err != nil {
		return false, &SignatureError{Algorithm: algorithm, Err: err}
	}
	return ok, nil
}

// CheckSignature checks cert's signature with the default registry.
func CheckSignature(cert core.Certificate, pub crypto.PublicKey) (bool, error) {
	return defaultRegistry.CheckSignature(cert, pub)
}
