package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every MissingFieldError.
var ErrNotFound = errors.New("not found")

// MissingFieldError is returned by accessors that require a field to be
// present. Callers that cannot rule out absence should check HasExtension
// first, or use Extension.
type MissingFieldError struct {
	Field string
	ID    ObjectIdentifier
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("certificate has no %s (%s)", e.Field, e.ID)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrNotFound
}

// CommonName returns the first common name attribute of the subject.
func (c Certificate) CommonName() (Value, bool) {
	return c.TbsCertificate.Subject.Value(OIDCommonName)
}

// OrganizationalUnitName returns the first organizational unit attribute of
// the subject.
func (c Certificate) OrganizationalUnitName() (Value, bool) {
	return c.TbsCertificate.Subject.Value(OIDOrganizationalUnitName)
}

// SubjectAlternativeNames returns the subject alternative name extension. It
// fails with a *MissingFieldError if the certificate has none.
func (c Certificate) SubjectAlternativeNames() (Extension, error) {
	return c.requireExtension("subject alternative name extension", OIDSubjectAltName)
}

// BasicConstraints returns the basic constraints extension. It fails with a
// *MissingFieldError if the certificate has none. Use der.ParseBasicConstraints
// to decode its payload.
func (c Certificate) BasicConstraints() (Extension, error) {
	return c.requireExtension("basic constraints extension", OIDBasicConstraints)
}

// HasExtension reports whether the certificate carries an extension with the
// given ID.
func (c Certificate) HasExtension(id ObjectIdentifier) bool {
	_, ok := c.Extension(id)
	return ok
}

// Extension returns the first extension with the given ID.
func (c Certificate) Extension(id ObjectIdentifier) (Extension, bool) {
	for _, ext := range c.TbsCertificate.Extensions {
		if ext.ID == id {
			return ext, true
		}
	}
	return Extension{}, false
}

func (c Certificate) requireExtension(field string, id ObjectIdentifier) (Extension, error) {
	ext, ok := c.Extension(id)
	if !ok {
		return Extension{}, &MissingFieldError{Field: field, ID: id}
	}
	return ext, nil
}
