package core

import (
	"encoding/asn1"
	"fmt"
	"strconv"
	"strings"
)

// ObjectIdentifier is an OID in dotted-decimal form, e.g. "2.5.4.3". Unlike
// asn1.ObjectIdentifier it is comparable, so it can be used as a map key.
type ObjectIdentifier string

// OIDFromASN1 converts an encoding/asn1 OID to its dotted form.
func OIDFromASN1(oid asn1.ObjectIdentifier) ObjectIdentifier {
	return ObjectIdentifier(oid.String())
}

// ASN1 returns the arcs of oid. It fails if any arc is not a non-negative
// decimal integer that fits in an int, or if there are fewer than two arcs.
func (oid ObjectIdentifier) ASN1() (asn1.ObjectIdentifier, error) {
	parts := strings.Split(string(oid), ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("object identifier %q has fewer than two arcs", string(oid))
	}
	arcs := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return nil, fmt.Errorf("object identifier %q has a malformed arc %q", string(oid), p)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("object identifier %q has a malformed arc %q", string(oid), p)
		}
		arcs[i] = n
	}
	if arcs[0] > 2 || (arcs[0] < 2 && arcs[1] > 39) {
		return nil, fmt.Errorf("object identifier %q has invalid leading arcs", string(oid))
	}
	return arcs, nil
}

func (oid ObjectIdentifier) String() string {
	return string(oid)
}

// Attribute types, RFC 5280 Appendix A.1
const (
	OIDCommonName             ObjectIdentifier = "2.5.4.3"
	OIDSerialNumber           ObjectIdentifier = "2.5.4.5"
	OIDCountryName            ObjectIdentifier = "2.5.4.6"
	OIDLocalityName           ObjectIdentifier = "2.5.4.7"
	OIDStateOrProvinceName    ObjectIdentifier = "2.5.4.8"
	OIDStreetAddress          ObjectIdentifier = "2.5.4.9"
	OIDOrganizationName       ObjectIdentifier = "2.5.4.10"
	OIDOrganizationalUnitName ObjectIdentifier = "2.5.4.11"
	OIDPostalCode             ObjectIdentifier = "2.5.4.17"
	OIDDomainComponent        ObjectIdentifier = "0.9.2342.19200300.100.1.25"
	OIDEmailAddress           ObjectIdentifier = "1.2.840.113549.1.9.1"
)

// Certificate extensions, RFC 5280 4.2
const (
	OIDSubjectKeyID          ObjectIdentifier = "2.5.29.14"
	OIDKeyUsage              ObjectIdentifier = "2.5.29.15"
	OIDSubjectAltName        ObjectIdentifier = "2.5.29.17"
	OIDIssuerAltName         ObjectIdentifier = "2.5.29.18"
	OIDBasicConstraints      ObjectIdentifier = "2.5.29.19"
	OIDNameConstraints       ObjectIdentifier = "2.5.29.30"
	OIDCRLDistributionPoints ObjectIdentifier = "2.5.29.31"
	OIDCertificatePolicies   ObjectIdentifier = "2.5.29.32"
	OIDAuthorityKeyID        ObjectIdentifier = "2.5.29.35"
	OIDExtendedKeyUsage      ObjectIdentifier = "2.5.29.37"
	OIDAuthorityInfoAccess   ObjectIdentifier = "1.3.6.1.5.5.7.1.1"
)

// attributeShortNames maps attribute types to their RFC 4514 short names.
var attributeShortNames = map[ObjectIdentifier]string{
	OIDCommonName:             "CN",
	OIDSerialNumber:           "SERIALNUMBER",
	OIDCountryName:            "C",
	OIDLocalityName:           "L",
	OIDStateOrProvinceName:    "ST",
	OIDStreetAddress:          "STREET",
	OIDOrganizationName:       "O",
	OIDOrganizationalUnitName: "OU",
	OIDPostalCode:             "POSTALCODE",
	OIDDomainComponent:        "DC",
}
