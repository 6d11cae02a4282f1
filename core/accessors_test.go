package core

import (
	"errors"
	"math/big"
	"testing"

	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

func utf8(s string) Value {
	return String{Tag: cryptobyte_asn1.UTF8String, Value: s}
}

func exampleCert(extensions ...Extension) Certificate {
	return Certificate{
		TbsCertificate: TbsCertificate{
			Version:      V3,
			SerialNumber: big.NewInt(1),
			Subject: Name{
				{{Type: OIDCommonName, Value: utf8("example.com")}},
				{{Type: OIDOrganizationalUnitName, Value: utf8("Eng")}},
			},
			Extensions: extensions,
		},
	}
}

func TestCommonNameAndOrganizationalUnit(t *testing.T) {
	cert := exampleCert()

	cn, ok := cert.CommonName()
	if !ok {
		t.Fatal("expected a common name")
	}
	if got, _ := Text(cn); got != "example.com" {
		t.Errorf("CommonName() = %q, expected %q", got, "example.com")
	}

	ou, ok := cert.OrganizationalUnitName()
	if !ok {
		t.Fatal("expected an organizational unit")
	}
	if got, _ := Text(ou); got != "Eng" {
		t.Errorf("OrganizationalUnitName() = %q, expected %q", got, "Eng")
	}
}

func TestCommonNameAbsent(t *testing.T) {
	cert := Certificate{TbsCertificate: TbsCertificate{
		Subject: Name{{{Type: OIDOrganizationName, Value: utf8("Example Org")}}},
	}}
	if v, ok := cert.CommonName(); ok {
		t.Errorf("CommonName() = %v, expected none", v)
	}
	if v, ok := cert.OrganizationalUnitName(); ok {
		t.Errorf("OrganizationalUnitName() = %v, expected none", v)
	}
}

func TestCommonNameFirstMatchWins(t *testing.T) {
	cert := Certificate{TbsCertificate: TbsCertificate{
		Subject: Name{
			{{Type: OIDCountryName, Value: utf8("US")}, {Type: OIDCommonName, Value: utf8("first")}},
			{{Type: OIDCommonName, Value: utf8("second")}},
		},
	}}
	cn, ok := cert.CommonName()
	if !ok {
		t.Fatal("expected a common name")
	}
	if got, _ := Text(cn); got != "first" {
		t.Errorf("CommonName() = %q, expected %q", got, "first")
	}
}

func TestCommonNameNotAString(t *testing.T) {
	cert := Certificate{TbsCertificate: TbsCertificate{
		Subject: Name{{{Type: OIDCommonName, Value: Integer{Value: big.NewInt(7)}}}},
	}}
	cn, ok := cert.CommonName()
	if !ok {
		t.Fatal("expected a common name")
	}
	if _, ok := Text(cn); ok {
		t.Error("Text() succeeded on an INTEGER")
	}
}

func TestExtensionAccessors(t *testing.T) {
	san := Extension{ID: OIDSubjectAltName, Value: Structure{Tag: cryptobyte_asn1.SEQUENCE}}
	bc := Extension{ID: OIDBasicConstraints, Critical: true, Value: Structure{Tag: cryptobyte_asn1.SEQUENCE}}

	testCases := []struct {
		Name       string
		Extensions []Extension
		ExpectSAN  bool
		ExpectBC   bool
	}{
		{Name: "none"},
		{Name: "SAN only", Extensions: []Extension{san}, ExpectSAN: true},
		{Name: "basic constraints only", Extensions: []Extension{bc}, ExpectBC: true},
		{Name: "both", Extensions: []Extension{bc, san}, ExpectSAN: true, ExpectBC: true},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			cert := exampleCert(tc.Extensions...)

			gotSAN, err := cert.SubjectAlternativeNames()
			checkExtension(t, "SubjectAlternativeNames", gotSAN, err, tc.ExpectSAN, san)
			if cert.HasExtension(OIDSubjectAltName) != tc.ExpectSAN {
				t.Errorf("HasExtension(SAN) = %t, expected %t", !tc.ExpectSAN, tc.ExpectSAN)
			}

			gotBC, err := cert.BasicConstraints()
			checkExtension(t, "BasicConstraints", gotBC, err, tc.ExpectBC, bc)
			if _, ok := cert.Extension(OIDBasicConstraints); ok != tc.ExpectBC {
				t.Errorf("Extension(basicConstraints) ok = %t, expected %t", ok, tc.ExpectBC)
			}
		})
	}
}

func checkExtension(t *testing.T, accessor string, got Extension, err error, expectPresent bool, expected Extension) {
	t.Helper()
	if !expectPresent {
		var missing *MissingFieldError
		if !errors.As(err, &missing) {
			t.Fatalf("%s() error = %v, expected a *MissingFieldError", accessor, err)
		}
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s() error does not match ErrNotFound", accessor)
		}
		if missing.ID != expected.ID {
			t.Errorf("%s() error names %s, expected %s", accessor, missing.ID, expected.ID)
		}
		return
	}
	if err != nil {
		t.Fatalf("%s() unexpected error: %s", accessor, err)
	}
	if !got.Equal(expected) {
		t.Errorf("%s() = %+v, expected %+v", accessor, got, expected)
	}
}

func TestExtensionReturnsFirstDuplicate(t *testing.T) {
	first := Extension{ID: OIDBasicConstraints, Value: OctetString{1}}
	second := Extension{ID: OIDBasicConstraints, Value: OctetString{2}}
	cert := exampleCert(first, second)

	got, err := cert.BasicConstraints()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !got.Equal(first) {
		t.Errorf("BasicConstraints() = %+v, expected the first occurrence", got)
	}
}
