package core

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func validTbs() TbsCertificate {
	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return TbsCertificate{
		Version:      V3,
		SerialNumber: big.NewInt(42),
		Signature:    AlgorithmIdentifier{Algorithm: "1.2.840.10045.4.3.2"},
		Validity: Validity{
			NotBefore: NewTime(notBefore),
			NotAfter:  NewTime(notBefore.AddDate(1, 0, 0)),
		},
	}
}

func TestValidate(t *testing.T) {
	ext := Extension{ID: OIDBasicConstraints, Value: Null{}}
	uid := NewBitString([]byte{0x01})

	testCases := []struct {
		Name     string
		Mutate   func(*TbsCertificate)
		Expected []error
	}{
		{
			Name:   "valid",
			Mutate: func(*TbsCertificate) {},
		},
		{
			Name:     "unknown version",
			Mutate:   func(tbs *TbsCertificate) { tbs.Version = 7 },
			Expected: []error{ErrBadVersion},
		},
		{
			Name: "extensions on v1",
			Mutate: func(tbs *TbsCertificate) {
				tbs.Version = V1
				tbs.Extensions = []Extension{ext}
			},
			Expected: []error{ErrExtensionsBeforeV3},
		},
		{
			Name: "unique ID on v1",
			Mutate: func(tbs *TbsCertificate) {
				tbs.Version = V1
				tbs.SubjectUniqueID = &uid
			},
			Expected: []error{ErrUniqueIDOnV1},
		},
		{
			Name: "unique ID on v2",
			Mutate: func(tbs *TbsCertificate) {
				tbs.Version = V2
				tbs.IssuerUniqueID = &uid
			},
		},
		{
			Name:     "negative serial",
			Mutate:   func(tbs *TbsCertificate) { tbs.SerialNumber = big.NewInt(-1) },
			Expected: []error{ErrNegativeSerial},
		},
		{
			Name: "inverted validity",
			Mutate: func(tbs *TbsCertificate) {
				tbs.Validity.NotBefore, tbs.Validity.NotAfter = tbs.Validity.NotAfter, tbs.Validity.NotBefore
			},
			Expected: []error{ErrValidityInverted},
		},
		{
			Name:     "duplicate extension",
			Mutate:   func(tbs *TbsCertificate) { tbs.Extensions = []Extension{ext, ext} },
			Expected: []error{ErrDuplicateExtension},
		},
		{
			Name: "non-critical SAN with empty subject",
			Mutate: func(tbs *TbsCertificate) {
				tbs.Extensions = []Extension{{ID: OIDSubjectAltName, Value: Null{}}}
			},
			Expected: []error{ErrSANNotCritical},
		},
		{
			Name: "critical SAN with empty subject",
			Mutate: func(tbs *TbsCertificate) {
				tbs.Extensions = []Extension{{ID: OIDSubjectAltName, Critical: true, Value: Null{}}}
			},
		},
		{
			Name: "non-critical SAN with subject",
			Mutate: func(tbs *TbsCertificate) {
				tbs.Subject = Name{{{Type: OIDCommonName, Value: OID(OIDCommonName)}}}
				tbs.Extensions = []Extension{{ID: OIDSubjectAltName, Value: Null{}}}
			},
		},
		{
			Name: "several problems",
			Mutate: func(tbs *TbsCertificate) {
				tbs.Version = V2
				tbs.Extensions = []Extension{ext, ext}
				tbs.SerialNumber = big.NewInt(-5)
			},
			Expected: []error{ErrExtensionsBeforeV3, ErrNegativeSerial, ErrDuplicateExtension},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			tbs := validTbs()
			tc.Mutate(&tbs)
			err := tbs.Validate()

			findings := multierr.Errors(err)
			if len(findings) != len(tc.Expected) {
				t.Fatalf("Validate() returned %d findings (%v), expected %d", len(findings), err, len(tc.Expected))
			}
			for i, expected := range tc.Expected {
				if !errors.Is(findings[i], expected) {
					t.Errorf("finding %d = %q, expected %q", i, findings[i], expected)
				}
			}
		})
	}
}

func TestCertificateValidateSignatureAlgorithm(t *testing.T) {
	tbs := validTbs()
	cert := Certificate{TbsCertificate: tbs, SignatureAlgorithm: tbs.Signature}
	if err := cert.Validate(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	cert.SignatureAlgorithm = AlgorithmIdentifier{Algorithm: "1.2.840.10045.4.3.3"}
	if err := cert.Validate(); !errors.Is(err, ErrSignatureAlgMismatch) {
		t.Errorf("Validate() = %v, expected ErrSignatureAlgMismatch", err)
	}

	// An explicit NULL is not the same as absent parameters.
	cert.SignatureAlgorithm = AlgorithmIdentifier{Algorithm: tbs.Signature.Algorithm, Parameters: Null{}}
	if err := cert.Validate(); !errors.Is(err, ErrSignatureAlgMismatch) {
		t.Errorf("Validate() = %v, expected ErrSignatureAlgMismatch", err)
	}
}
