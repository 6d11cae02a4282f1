package verify

import (
	"errors"
	"fmt"

	"github.com/letsencrypt/certsig/core"
)

var (
	// ErrUnsupportedAlgorithm results from a signature algorithm that has no
	// registered verifier.
	ErrUnsupportedAlgorithm = errors.New("verify: cannot verify signature: algorithm unimplemented")

	// ErrMalformedSignature results from a signature value that cannot be
	// passed to a verifier, such as a BIT STRING with unused bits.
	ErrMalformedSignature = errors.New("verify: malformed signature value")

	// ErrMalformedKey results from public key material that cannot be parsed
	// or used.
	ErrMalformedKey = errors.New("verify: malformed public key")

	// ErrKeyMismatch results from a public key whose type does not match the
	// signature algorithm, e.g. an ECDSA key for an RSA signature.
	ErrKeyMismatch = errors.New("verify: public key type does not match signature algorithm")

	// ErrBadParameters results from algorithm parameters the verifier does
	// not accept.
	ErrBadParameters = errors.New("verify: unsupported algorithm parameters")
)

// An InsecureAlgorithmError indicates that the signature algorithm is known
// but not secure, and the signature was not checked.
type InsecureAlgorithmError core.ObjectIdentifier

func (e InsecureAlgorithmError) Error() string {
	name, ok := insecureAlgorithmNames[core.ObjectIdentifier(e)]
	if !ok {
		name = string(e)
	}
	return fmt.Sprintf("verify: cannot verify signature: insecure algorithm %s", name)
}

// A SignatureError means verification could not be carried out. It is
// distinct from a completed verification that returned false.
type SignatureError struct {
	Algorithm core.ObjectIdentifier
	Err       error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("checking %s signature: %s", e.Algorithm, e.Err)
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

func signaturePublicKeyAlgoMismatchError(expected string, pubKey any) error {
	return fmt.Errorf("%w: algorithm specifies an %s public key, but have public key of type %T", ErrKeyMismatch, expected, pubKey)
}
