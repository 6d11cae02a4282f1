package verify

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"reflect"

	// Explicitly import these for their crypto.RegisterHash init side-effects.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/cloudflare/circl/pki"
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"github.com/letsencrypt/certsig/core"
	"github.com/letsencrypt/certsig/der"
)

// OIDs for signature algorithms
//
// RFC 3279 2.2.1, RFC 4055 5: PKCS #1 v1.5 with SHA-1 and SHA-2.
// RFC 4055 3.1: RSASSA-PSS, hash and salt carried in the parameters.
// RFC 5758 3.2: ECDSA with SHA-2.
// RFC 8410 3: Ed25519.
// ML-DSA uses the same OIDs to identify both its public key and signature
// algorithms.
var (
	OIDSignatureMD5WithRSA      = core.ObjectIdentifier("1.2.840.113549.1.1.4")
	OIDSignatureSHA1WithRSA     = core.ObjectIdentifier("1.2.840.113549.1.1.5")
	OIDSignatureSHA256WithRSA   = core.ObjectIdentifier("1.2.840.113549.1.1.11")
	OIDSignatureSHA384WithRSA   = core.ObjectIdentifier("1.2.840.113549.1.1.12")
	OIDSignatureSHA512WithRSA   = core.ObjectIdentifier("1.2.840.113549.1.1.13")
	OIDSignatureRSAPSS          = core.ObjectIdentifier("1.2.840.113549.1.1.10")
	OIDSignatureECDSAWithSHA1   = core.ObjectIdentifier("1.2.840.10045.4.1")
	OIDSignatureECDSAWithSHA256 = core.ObjectIdentifier("1.2.840.10045.4.3.2")
	OIDSignatureECDSAWithSHA384 = core.ObjectIdentifier("1.2.840.10045.4.3.3")
	OIDSignatureECDSAWithSHA512 = core.ObjectIdentifier("1.2.840.10045.4.3.4")
	OIDSignatureEd25519         = core.ObjectIdentifier("1.3.101.112")

	// oidISOSignatureSHA1WithRSA means the same as OIDSignatureSHA1WithRSA
	// but it's specified by ISO. Microsoft's makecert.exe has been known
	// to produce certificates with this OID.
	oidISOSignatureSHA1WithRSA = core.ObjectIdentifier("1.3.14.3.2.29")

	OIDSignatureMLDSA44 = schemeOID(mldsa44.Scheme())
	OIDSignatureMLDSA65 = schemeOID(mldsa65.Scheme())
	OIDSignatureMLDSA87 = schemeOID(mldsa87.Scheme())
)

var (
	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}

	oidMGF1 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
)

// insecureAlgorithmNames lists algorithms that are recognized but refused
// unless a caller registers a verifier for them explicitly.
var insecureAlgorithmNames = map[core.ObjectIdentifier]string{
	OIDSignatureMD5WithRSA:     "MD5-RSA",
	OIDSignatureSHA1WithRSA:    "SHA1-RSA",
	oidISOSignatureSHA1WithRSA: "SHA1-RSA",
	OIDSignatureECDSAWithSHA1:  "ECDSA-SHA1",
}

func schemeOID(s sign.Scheme) core.ObjectIdentifier {
	return core.OIDFromASN1(s.(pki.CertificateScheme).Oid())
}

// A Verifier checks one signature algorithm. It returns false for a signature
// that does not verify and an error when verification cannot be carried out
// (wrong key type, malformed key, unacceptable parameters).
type Verifier interface {
	Verify(pub crypto.PublicKey, ai core.AlgorithmIdentifier, signed, signature []byte) (bool, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(pub crypto.PublicKey, ai core.AlgorithmIdentifier, signed, signature []byte) (bool, error)

func (f VerifierFunc) Verify(pub crypto.PublicKey, ai core.AlgorithmIdentifier, signed, signature []byte) (bool, error) {
	return f(pub, ai, signed, signature)
}

func digest(hash crypto.Hash, signed []byte) ([]byte, error) {
	if !hash.Available() {
		return nil, fmt.Errorf("%w: hash %s not linked", ErrUnsupportedAlgorithm, hash)
	}
	h := hash.New()
	h.Write(signed)
	return h.Sum(nil), nil
}

// nullOrAbsent accepts the two encodings seen for "no parameters" in
// PKCS #1 v1.5 algorithm identifiers.
func nullOrAbsent(ai core.AlgorithmIdentifier) error {
	switch ai.Parameters.(type) {
	case nil, core.Null:
		return nil
	}
	return fmt.Errorf("%w: %s expects NULL parameters", ErrBadParameters, ai.Algorithm)
}

func absent(ai core.AlgorithmIdentifier) error {
	if ai.Parameters != nil {
		return fmt.Errorf("%w: %s parameters must be absent", ErrBadParameters, ai.Algorithm)
	}
	return nil
}

// PKCS1v15 verifies RSASSA-PKCS1-v1_5 signatures over the given hash.
func PKCS1v15(hash crypto.Hash) Verifier {
	return VerifierFunc(func(pub crypto.PublicKey, ai core.AlgorithmIdentifier, signed, signature []byte) (bool, error) {
		if err := nullOrAbsent(ai); err != nil {
			return false, err
		}
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return false, signaturePublicKeyAlgoMismatchError("RSA", pub)
		}
		if key == nil || key.N == nil {
			return false, fmt.Errorf("%w: RSA key without a modulus", ErrMalformedKey)
		}
		hashed, err := digest(hash, signed)
		if err != nil {
			return false, err
		}
		return rsaVerdict(rsa.VerifyPKCS1v15(key, hash, hashed, signature))
	})
}

// PSS verifies RSASSA-PSS signatures. The hash is taken from the algorithm
// parameters, which must use MGF1 with the same hash, a salt as long as the
// hash, and the default trailer field.
func PSS() Verifier {
	return VerifierFunc(func(pub crypto.PublicKey, ai core.AlgorithmIdentifier, signed, signature []byte) (bool, error) {
		hash, err := pssHash(ai)
		if err != nil {
			return false, err
		}
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return false, signaturePublicKeyAlgoMismatchError("RSA", pub)
		}
		if key == nil || key.N == nil {
			return false, fmt.Errorf("%w: RSA key without a modulus", ErrMalformedKey)
		}
		hashed, err := digest(hash, signed)
		if err != nil {
			return false, err
		}
		return rsaVerdict(rsa.VerifyPSS(key, hash, hashed, signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}))
	})
}

// rsaVerdict maps rsa.ErrVerification to a false verdict and passes any
// other failure, such as an insecure key size, through as an error.
func rsaVerdict(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, rsa.ErrVerification):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
}

// pssParameters reflects the parameters in an AlgorithmIdentifier that
// specifies RSA PSS. See RFC 3447, Appendix A.2.3.
type pssParameters struct {
	// The following three fields are not marked as
	// optional because the default values specify SHA-1,
	// which is no longer suitable for use in signatures.
	Hash         pkix.AlgorithmIdentifier `asn1:"explicit,tag:0"`
	MGF          pkix.AlgorithmIdentifier `asn1:"explicit,tag:1"`
	SaltLength   int                      `asn1:"explicit,tag:2"`
	TrailerField int                      `asn1:"optional,explicit,tag:3,default:1"`
}

func pssHash(ai core.AlgorithmIdentifier) (crypto.Hash, error) {
	if ai.Parameters == nil {
		return 0, fmt.Errorf("%w: RSASSA-PSS without parameters", ErrBadParameters)
	}
	raw, err := der.EncodeValue(ai.Parameters)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadParameters, err)
	}

	var params pssParameters
	if rest, err := asn1.Unmarshal(raw, &params); err != nil || len(rest) > 0 {
		return 0, fmt.Errorf("%w: malformed RSASSA-PSS parameters", ErrBadParameters)
	}

	var mgf1HashFunc pkix.AlgorithmIdentifier
	if _, err := asn1.Unmarshal(params.MGF.Parameters.FullBytes, &mgf1HashFunc); err != nil {
		return 0, fmt.Errorf("%w: malformed MGF1 parameters", ErrBadParameters)
	}

	// PSS is greatly overburdened with options. This code forces them into
	// three buckets by requiring that the MGF1 hash function always match the
	// message hash function (as recommended in RFC 3447, Section 8.1), that the
	// salt length matches the hash length, and that the trailer field has the
	// default value.
	if (len(params.Hash.Parameters.FullBytes) != 0 && !bytes.Equal(params.Hash.Parameters.FullBytes, asn1.NullBytes)) ||
		!params.MGF.Algorithm.Equal(oidMGF1) ||
		!mgf1HashFunc.Algorithm.Equal(params.Hash.Algorithm) ||
		(len(mgf1HashFunc.Parameters.FullBytes) != 0 && !bytes.Equal(mgf1HashFunc.Parameters.FullBytes, asn1.NullBytes)) ||
		params.TrailerField != 1 {
		return 0, fmt.Errorf("%w: unsupported RSASSA-PSS options", ErrBadParameters)
	}

	switch {
	case params.Hash.Algorithm.Equal(oidSHA256) && params.SaltLength == 32:
		return crypto.SHA256, nil
	case params.Hash.Algorithm.Equal(oidSHA384) && params.SaltLength == 48:
		return crypto.SHA384, nil
	case params.Hash.Algorithm.Equal(oidSHA512) && params.SaltLength == 64:
		return crypto.SHA512, nil
	}
	return 0, fmt.Errorf("%w: unsupported RSASSA-PSS hash %s with salt length %d", ErrBadParameters, params.Hash.Algorithm, params.SaltLength)
}

// ECDSA verifies ASN.1 encoded ECDSA signatures over the given hash.
func ECDSA(hash crypto.Hash) Verifier {
	return VerifierFunc(func(pub crypto.PublicKey, ai core.AlgorithmIdentifier, signed, signature []byte) (bool, error) {
		if err := absent(ai); err != nil {
			return false, err
		}
		key, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return false, signaturePublicKeyAlgoMismatchError("ECDSA", pub)
		}
		if key == nil || key.Curve == nil || key.X == nil || key.Y == nil {
			return false, fmt.Errorf("%w: incomplete ECDSA key", ErrMalformedKey)
		}
		hashed, err := digest(hash, signed)
		if err != nil {
			return false, err
		}
		return ecdsa.VerifyASN1(key, hashed, signature), nil
	})
}

// Ed25519 verifies pure Ed25519 signatures.
func Ed25519() Verifier {
	return VerifierFunc(func(pub crypto.PublicKey, ai core.AlgorithmIdentifier, signed, signature []byte) (bool, error) {
		// RFC 8410, Section 3
		// > For all of the OIDs, the parameters MUST be absent.
		if err := absent(ai); err != nil {
			return false, err
		}
		key, ok := pub.(ed25519.PublicKey)
		if !ok {
			return false, signaturePublicKeyAlgoMismatchError("Ed25519", pub)
		}
		if len(key) != ed25519.PublicKeySize {
			return false, fmt.Errorf("%w: Ed25519 key of length %d", ErrMalformedKey, len(key))
		}
		return ed25519.Verify(key, signed, signature), nil
	})
}

// MLDSA verifies pure ML-DSA signatures with an empty context for the given
// circl scheme.
func MLDSA(scheme sign.Scheme) Verifier {
	return VerifierFunc(func(pub crypto.PublicKey, ai core.AlgorithmIdentifier, signed, signature []byte) (bool, error) {
		if err := absent(ai); err != nil {
			return false, err
		}
		key, ok := pub.(sign.PublicKey)
		if !ok {
			return false, signaturePublicKeyAlgoMismatchError(scheme.Name(), pub)
		}
		if isNilKey(key) {
			return false, fmt.Errorf("%w: nil %s key", ErrMalformedKey, scheme.Name())
		}
		if key.Scheme().Name() != scheme.Name() {
			return false, signaturePublicKeyAlgoMismatchError(scheme.Name(), pub)
		}
		if len(signature) != scheme.SignatureSize() {
			return false, nil
		}
		return scheme.Verify(key, signed, signature, nil), nil
	})
}

// isNilKey reports whether key is a nil pointer behind a non-nil interface.
func isNilKey(key sign.PublicKey) bool {
	v := reflect.ValueOf(key)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
