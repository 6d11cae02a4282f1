package core

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Validation problems reported by Validate. The decoder stores these
// certificates as-is; rejecting them is up to the caller.
var (
	ErrBadVersion           = errors.New("version is not v1, v2 or v3")
	ErrExtensionsBeforeV3   = errors.New("extensions present on a certificate older than v3")
	ErrUniqueIDOnV1         = errors.New("unique identifier present on a v1 certificate")
	ErrValidityInverted     = errors.New("notBefore is after notAfter")
	ErrDuplicateExtension   = errors.New("extension appears more than once")
	ErrNegativeSerial       = errors.New("serial number is negative")
	ErrSignatureAlgMismatch = errors.New("signatureAlgorithm does not match tbsCertificate signature")
	ErrSANNotCritical       = errors.New("subjectAltName must be critical when the subject is empty")
)

// Validate checks the cross-field rules of RFC 5280 4.1 that the data model
// does not enforce. All problems found are returned, combined with multierr;
// use multierr.Errors to list them and errors.Is to test for one.
func (t TbsCertificate) Validate() error {
	var err error
	if t.Version < V1 || t.Version > V3 {
		err = multierr.Append(err, fmt.Errorf("%w: %d", ErrBadVersion, int(t.Version)))
	}
	if len(t.Extensions) > 0 && t.Version != V3 {
		err = multierr.Append(err, fmt.Errorf("%w: %s", ErrExtensionsBeforeV3, t.Version))
	}
	if (t.IssuerUniqueID != nil || t.SubjectUniqueID != nil) && t.Version == V1 {
		err = multierr.Append(err, ErrUniqueIDOnV1)
	}
	if t.SerialNumber != nil && t.SerialNumber.Sign() < 0 {
		err = multierr.Append(err, ErrNegativeSerial)
	}
	if t.Validity.NotBefore.Value.After(t.Validity.NotAfter.Value) {
		err = multierr.Append(err, ErrValidityInverted)
	}
	seen := make(map[ObjectIdentifier]bool, len(t.Extensions))
	for _, ext := range t.Extensions {
		if seen[ext.ID] {
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrDuplicateExtension, ext.ID))
		}
		seen[ext.ID] = true
		// RFC 5280 4.2.1.6
		if ext.ID == OIDSubjectAltName && len(t.Subject) == 0 && !ext.Critical {
			err = multierr.Append(err, ErrSANNotCritical)
		}
	}
	return err
}

// Validate runs TbsCertificate.Validate and additionally requires the outer
// signatureAlgorithm to equal the signature field inside the signed body
// (RFC 5280 4.1.1.2).
func (c Certificate) Validate() error {
	err := c.TbsCertificate.Validate()
	if !c.SignatureAlgorithm.Equal(c.TbsCertificate.Signature) {
		err = multierr.Append(err, ErrSignatureAlgMismatch)
	}
	return err
}
