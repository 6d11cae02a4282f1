package verify

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/pki"
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"gopkg.in/square/go-jose.v2"

	"github.com/letsencrypt/certsig/core"
	"github.com/letsencrypt/certsig/der"
)

var mldsaSchemes = map[core.ObjectIdentifier]sign.Scheme{
	OIDSignatureMLDSA44: mldsa44.Scheme(),
	OIDSignatureMLDSA65: mldsa65.Scheme(),
	OIDSignatureMLDSA87: mldsa87.Scheme(),
}

// ParsePublicKey turns a SubjectPublicKeyInfo into a key usable by the
// verifiers: *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey, or a circl
// sign.PublicKey for ML-DSA.
func ParsePublicKey(spki core.SubjectPublicKeyInfo) (crypto.PublicKey, error) {
	if scheme, ok := mldsaSchemes[spki.Algorithm.Algorithm]; ok {
		// RFC 9881: the parameters MUST be absent.
		if spki.Algorithm.Parameters != nil {
			return nil, fmt.Errorf("%w: %s parameters must be absent", ErrMalformedKey, scheme.Name())
		}
		if spki.SubjectPublicKey.UnusedBits() != 0 {
			return nil, fmt.Errorf("%w: %s key has unused bits", ErrMalformedKey, scheme.Name())
		}
		pub, err := scheme.UnmarshalBinaryPublicKey(spki.SubjectPublicKey.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
		}
		return pub, nil
	}

	raw, err := der.EncodeSubjectPublicKeyInfo(spki)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	pub, err := x509.ParsePKIXPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return pub, nil
}

// PublicKeyInfo is the inverse of ParsePublicKey.
func PublicKeyInfo(pub crypto.PublicKey) (core.SubjectPublicKeyInfo, error) {
	if key, ok := pub.(sign.PublicKey); ok {
		scheme, ok := key.Scheme().(pki.CertificateScheme)
		if !ok {
			return core.SubjectPublicKeyInfo{}, fmt.Errorf("%w: scheme %s has no OID", ErrUnsupportedAlgorithm, key.Scheme().Name())
		}
		raw, err := key.MarshalBinary()
		if err != nil {
			return core.SubjectPublicKeyInfo{}, fmt.Errorf("%w: %w", ErrMalformedKey, err)
		}
		return core.SubjectPublicKeyInfo{
			Algorithm:        core.AlgorithmIdentifier{Algorithm: core.OIDFromASN1(scheme.Oid())},
			SubjectPublicKey: core.NewBitString(raw),
		}, nil
	}

	raw, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return core.SubjectPublicKeyInfo{}, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return der.DecodeSubjectPublicKeyInfo(raw)
}

// ParseJWK parses a JSON Web Key and returns its public half.
func ParseJWK(data []byte) (crypto.PublicKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	if !jwk.Valid() {
		return nil, fmt.Errorf("%w: invalid JWK", ErrMalformedKey)
	}
	if !jwk.IsPublic() {
		jwk = jwk.Public()
	}
	return jwk.Key, nil
}

// ErrNotSelfIssued is returned by CheckSelfSigned when the subject and issuer
// differ.
var ErrNotSelfIssued = errors.New("verify: certificate is not self-issued")

// CheckSelfSigned checks cert's signature against the public key it carries.
func CheckSelfSigned(cert core.Certificate) (bool, error) {
	if !cert.TbsCertificate.Subject.Equal(cert.TbsCertificate.Issuer) {
		return false, ErrNotSelfIssued
	}
	pub, err := ParsePublicKey(cert.TbsCertificate.SubjectPublicKeyInfo)
	if err != nil {
		return false, err
	}
	return CheckSignature(cert, pub)
}
