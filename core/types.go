package core

import (
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// These structures reflect the ASN.1 structure of X.509 certificates, see
// RFC 5280 4.1. They are built once by the decoder and never modified.

//	Certificate  ::=  SEQUENCE  {
//	  tbsCertificate       TBSCertificate,
//	  signatureAlgorithm   AlgorithmIdentifier,
//	  signatureValue       BIT STRING  }
type Certificate struct {
	TbsCertificate     TbsCertificate
	SignatureAlgorithm AlgorithmIdentifier
	SignatureValue     BitString
}

// TbsCertificate is the signed portion of a certificate. Its DER encoding is
// exactly what the issuer signed.
type TbsCertificate struct {
	Version              Version
	SerialNumber         *big.Int
	Signature            AlgorithmIdentifier
	Issuer               Name
	Validity             Validity
	Subject              Name
	SubjectPublicKeyInfo SubjectPublicKeyInfo
	IssuerUniqueID       *BitString
	SubjectUniqueID      *BitString
	// Extensions is only legal on V3 certificates. It is stored regardless;
	// see Validate.
	Extensions []Extension
}

// Version ::= INTEGER {v1(0), v2(1), v3(2)}
type Version int

const (
	V1 Version = 0
	V2 Version = 1
	V3 Version = 2
)

func (v Version) String() string {
	if v < V1 || v > V3 {
		return fmt.Sprintf("unknown(%d)", int(v))
	}
	return fmt.Sprintf("v%d", int(v)+1)
}

//	AlgorithmIdentifier  ::=  SEQUENCE  {
//	  algorithm               OBJECT IDENTIFIER,
//	  parameters              ANY DEFINED BY algorithm OPTIONAL  }
//
// A nil Parameters means the field was absent, which is distinct from an
// explicit NULL (Null{}).
type AlgorithmIdentifier struct {
	Algorithm  ObjectIdentifier
	Parameters Value
}

// AttributeTypeAndValue is one entry of a relative distinguished name.
type AttributeTypeAndValue struct {
	Type  ObjectIdentifier
	Value Value
}

// RelativeDistinguishedName is a SET OF AttributeTypeAndValue, kept in the
// order it was decoded.
type RelativeDistinguishedName []AttributeTypeAndValue

// Name is an RDNSequence.
type Name []RelativeDistinguishedName

// Attributes flattens n into RDN order, then within-RDN order.
func (n Name) Attributes() []AttributeTypeAndValue {
	var atvs []AttributeTypeAndValue
	for _, rdn := range n {
		atvs = append(atvs, rdn...)
	}
	return atvs
}

// Value returns the value of the first attribute of type oid.
func (n Name) Value(oid ObjectIdentifier) (Value, bool) {
	for _, rdn := range n {
		for _, atv := range rdn {
			if atv.Type == oid {
				return atv.Value, true
			}
		}
	}
	return nil, false
}

// String renders n roughly as RFC 4514 does, most significant RDN first.
// Values that are not character strings are printed as their OID and kind.
func (n Name) String() string {
	parts := make([]string, 0, len(n))
	for i := len(n) - 1; i >= 0; i-- {
		attrs := make([]string, 0, len(n[i]))
		for _, atv := range n[i] {
			key, ok := attributeShortNames[atv.Type]
			if !ok {
				key = string(atv.Type)
			}
			text, ok := Text(atv.Value)
			if !ok {
				text = fmt.Sprintf("#%T", atv.Value)
			}
			attrs = append(attrs, key+"="+text)
		}
		parts = append(parts, strings.Join(attrs, "+"))
	}
	return strings.Join(parts, ",")
}

//	Validity ::= SEQUENCE {
//	  notBefore      Time,
//	  notAfter       Time }
//
// NotBefore <= NotAfter is expected but not enforced here.
type Validity struct {
	NotBefore Time
	NotAfter  Time
}

// Contains reports whether t falls within the validity period, inclusive.
func (v Validity) Contains(t time.Time) bool {
	return !t.Before(v.NotBefore.Value) && !t.After(v.NotAfter.Value)
}

//	Time ::= CHOICE {
//	  utcTime        UTCTime,
//	  generalTime    GeneralizedTime }
//
// Tag records which alternative was used so that re-encoding is exact. A zero
// Tag selects the RFC 5280 4.1.2.5 rule: UTCTime through 2049, GeneralizedTime
// from 2050.
type Time struct {
	Value time.Time
	Tag   cryptobyte_asn1.Tag
}

// NewTime returns t truncated to seconds in UTC, tagged per RFC 5280.
func NewTime(t time.Time) Time {
	t = t.UTC().Truncate(time.Second)
	tag := cryptobyte_asn1.UTCTime
	if t.Year() < 1950 || t.Year() >= 2050 {
		tag = cryptobyte_asn1.GeneralizedTime
	}
	return Time{Value: t, Tag: tag}
}

//	SubjectPublicKeyInfo  ::=  SEQUENCE  {
//	  algorithm            AlgorithmIdentifier,
//	  subjectPublicKey     BIT STRING  }
type SubjectPublicKeyInfo struct {
	Algorithm        AlgorithmIdentifier
	SubjectPublicKey BitString
}

//	Extension  ::=  SEQUENCE  {
//	  extnID      OBJECT IDENTIFIER,
//	  critical    BOOLEAN DEFAULT FALSE,
//	  extnValue   OCTET STRING }
//
// Value is the decoded content of extnValue. Whether an unrecognized critical
// extension may be ignored is for the consumer to decide.
type Extension struct {
	ID       ObjectIdentifier
	Critical bool
	Value    Value
}

// BitString is a BIT STRING. BitLength may be less than 8*len(Bytes); the
// trailing bits of the last byte are unused.
type BitString struct {
	Bytes     []byte
	BitLength int
}

// NewBitString returns a BIT STRING covering all of b.
func NewBitString(b []byte) BitString {
	return BitString{Bytes: b, BitLength: 8 * len(b)}
}

// UnusedBits returns the number of unused bits in the last byte.
func (b BitString) UnusedBits() int {
	return 8*len(b.Bytes) - b.BitLength
}

// BasicConstraints is the decoded payload of the basic constraints extension,
// RFC 5280 4.2.1.9. PathLenConstraint is only meaningful when CA is set; nil
// means no limit.
type BasicConstraints struct {
	CA                bool
	PathLenConstraint *int
}

// GeneralNames is the decoded payload of a subject or issuer alternative name
// extension. Name forms that are not broken out are kept in Other.
type GeneralNames struct {
	DNSNames       []string
	EmailAddresses []string
	IPAddresses    []net.IP
	URIs           []string
	Other          []Value
}

// InvalidDNSNames returns the dNSName entries that are not syntactically valid
// domain names. A leading "*." wildcard label is allowed.
func (g GeneralNames) InvalidDNSNames() []string {
	var invalid []string
	for _, name := range g.DNSNames {
		check := strings.TrimPrefix(name, "*.")
		if _, ok := dns.IsDomainName(check); !ok || check == "" || strings.HasSuffix(check, ".") {
			invalid = append(invalid, name)
		}
	}
	return invalid
}
