// Package der converts between DER bytes and the certificate model in core.
//
// The decoder only accepts input that the encoder reproduces byte for byte:
// for every value v returned by DecodeTbsCertificate(b),
// EncodeTbsCertificate(v) returns b. Forms that DER forbids but lenient
// parsers accept (an explicit v1 version, critical FALSE, UTCTime without
// seconds) are rejected with a *DecodeError rather than normalized.
package der

import (
	"bytes"
	encoding_asn1 "encoding/asn1"
	"math/big"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/letsencrypt/certsig/core"
)

const (
	utcTimeLayout         = "060102150405Z"
	generalizedTimeLayout = "20060102150405Z"

	// Nested values deeper than this are kept as core.Opaque.
	maxValueDepth = 32
)

var (
	tagVersion         = cryptobyte_asn1.Tag(0).Constructed().ContextSpecific()
	tagIssuerUniqueID  = cryptobyte_asn1.Tag(1).ContextSpecific()
	tagSubjectUniqueID = cryptobyte_asn1.Tag(2).ContextSpecific()
	tagExtensions      = cryptobyte_asn1.Tag(3).Constructed().ContextSpecific()
)

// DecodeCertificate parses a DER encoded certificate.
func DecodeCertificate(der []byte) (core.Certificate, error) {
	input := cryptobyte.String(der)
	var cert cryptobyte.String
	if !input.ReadASN1(&cert, cryptobyte_asn1.SEQUENCE) {
		return core.Certificate{}, decodeErrorf("certificate", "not a SEQUENCE")
	}
	if !input.Empty() {
		return core.Certificate{}, decodeErrorf("certificate", "trailing data")
	}

	var tbs cryptobyte.String
	if !cert.ReadASN1(&tbs, cryptobyte_asn1.SEQUENCE) {
		return core.Certificate{}, decodeErrorf("tbsCertificate", "not a SEQUENCE")
	}
	tbsCertificate, err := parseTbsCertificate(tbs)
	if err != nil {
		return core.Certificate{}, err
	}

	signatureAlgorithm, err := parseAlgorithmIdentifier(&cert, "signatureAlgorithm")
	if err != nil {
		return core.Certificate{}, err
	}

	var signature encoding_asn1.BitString
	if !cert.ReadASN1BitString(&signature) {
		return core.Certificate{}, decodeErrorf("signatureValue", "not a BIT STRING")
	}
	if !cert.Empty() {
		return core.Certificate{}, decodeErrorf("certificate", "extra data after signatureValue")
	}

	return core.Certificate{
		TbsCertificate:     tbsCertificate,
		SignatureAlgorithm: signatureAlgorithm,
		SignatureValue:     bitString(signature),
	}, nil
}

// DecodeTbsCertificate parses a DER encoded TBSCertificate.
func DecodeTbsCertificate(der []byte) (core.TbsCertificate, error) {
	input := cryptobyte.String(der)
	var tbs cryptobyte.String
	if !input.ReadASN1(&tbs, cryptobyte_asn1.SEQUENCE) {
		return core.TbsCertificate{}, decodeErrorf("tbsCertificate", "not a SEQUENCE")
	}
	if !input.Empty() {
		return core.TbsCertificate{}, decodeErrorf("tbsCertificate", "trailing data")
	}
	return parseTbsCertificate(tbs)
}

// DecodeSubjectPublicKeyInfo parses a DER encoded SubjectPublicKeyInfo, as
// produced by x509.MarshalPKIXPublicKey.
func DecodeSubjectPublicKeyInfo(der []byte) (core.SubjectPublicKeyInfo, error) {
	input := cryptobyte.String(der)
	spki, err := parseSubjectPublicKeyInfo(&input)
	if err != nil {
		return core.SubjectPublicKeyInfo{}, err
	}
	if !input.Empty() {
		return core.SubjectPublicKeyInfo{}, decodeErrorf("subjectPublicKeyInfo", "trailing data")
	}
	return spki, nil
}

//	TBSCertificate  ::=  SEQUENCE  {
//	  version         [0]  EXPLICIT Version DEFAULT v1,
//	  serialNumber         CertificateSerialNumber,
//	  signature            AlgorithmIdentifier,
//	  issuer               Name,
//	  validity             Validity,
//	  subject              Name,
//	  subjectPublicKeyInfo SubjectPublicKeyInfo,
//	  issuerUniqueID  [1]  IMPLICIT UniqueIdentifier OPTIONAL,
//	  subjectUniqueID [2]  IMPLICIT UniqueIdentifier OPTIONAL,
//	  extensions      [3]  EXPLICIT Extensions OPTIONAL }
func parseTbsCertificate(der cryptobyte.String) (core.TbsCertificate, error) {
	var tbs core.TbsCertificate

	if der.PeekASN1Tag(tagVersion) {
		var wrapper cryptobyte.String
		var version int64
		if !der.ReadASN1(&wrapper, tagVersion) || !wrapper.ReadASN1Integer(&version) || !wrapper.Empty() {
			return tbs, decodeErrorf("version", "not an INTEGER")
		}
		switch {
		case version == int64(core.V1):
			return tbs, decodeErrorf("version", "v1 is the DEFAULT and must be omitted")
		case version < int64(core.V1) || version > int64(core.V3):
			return tbs, decodeErrorf("version", "unsupported version %d", version)
		}
		tbs.Version = core.Version(version)
	}

	tbs.SerialNumber = new(big.Int)
	if !der.ReadASN1Integer(tbs.SerialNumber) {
		return tbs, decodeErrorf("serialNumber", "not a DER INTEGER")
	}

	var err error
	if tbs.Signature, err = parseAlgorithmIdentifier(&der, "signature"); err != nil {
		return tbs, err
	}
	if tbs.Issuer, err = parseName(&der, "issuer"); err != nil {
		return tbs, err
	}
	if tbs.Validity, err = parseValidity(&der); err != nil {
		return tbs, err
	}
	if tbs.Subject, err = parseName(&der, "subject"); err != nil {
		return tbs, err
	}
	if tbs.SubjectPublicKeyInfo, err = parseSubjectPublicKeyInfo(&der); err != nil {
		return tbs, err
	}
	if tbs.IssuerUniqueID, err = parseUniqueIdentifier(&der, tagIssuerUniqueID, "issuerUniqueID"); err != nil {
		return tbs, err
	}
	if tbs.SubjectUniqueID, err = parseUniqueIdentifier(&der, tagSubjectUniqueID, "subjectUniqueID"); err != nil {
		return tbs, err
	}

	if der.PeekASN1Tag(tagExtensions) {
		var wrapper, extensions cryptobyte.String
		if !der.ReadASN1(&wrapper, tagExtensions) ||
			!wrapper.ReadASN1(&extensions, cryptobyte_asn1.SEQUENCE) ||
			!wrapper.Empty() {
			return tbs, decodeErrorf("extensions", "not a SEQUENCE")
		}
		if extensions.Empty() {
			return tbs, decodeErrorf("extensions", "present but empty")
		}
		for !extensions.Empty() {
			ext, err := parseExtension(&extensions)
			if err != nil {
				return tbs, err
			}
			tbs.Extensions = append(tbs.Extensions, ext)
		}
	}

	if !der.Empty() {
		return tbs, decodeErrorf("tbsCertificate", "extra data after last field")
	}
	return tbs, nil
}

//	AlgorithmIdentifier  ::=  SEQUENCE  {
//	  algorithm               OBJECT IDENTIFIER,
//	  parameters              ANY DEFINED BY algorithm OPTIONAL  }
func parseAlgorithmIdentifier(der *cryptobyte.String, field string) (core.AlgorithmIdentifier, error) {
	var ai cryptobyte.String
	if !der.ReadASN1(&ai, cryptobyte_asn1.SEQUENCE) {
		return core.AlgorithmIdentifier{}, decodeErrorf(field, "not a SEQUENCE")
	}
	var oid encoding_asn1.ObjectIdentifier
	if !ai.ReadASN1ObjectIdentifier(&oid) {
		return core.AlgorithmIdentifier{}, decodeErrorf(field, "malformed algorithm OID")
	}
	ret := core.AlgorithmIdentifier{Algorithm: core.OIDFromASN1(oid)}
	if !ai.Empty() {
		params, err := parseValue(&ai, 0)
		if err != nil {
			return core.AlgorithmIdentifier{}, &DecodeError{Field: field, Msg: "parameters", Err: err}
		}
		ret.Parameters = params
	}
	if !ai.Empty() {
		return core.AlgorithmIdentifier{}, decodeErrorf(field, "extra data after parameters")
	}
	return ret, nil
}

// RDNSequence ::= SEQUENCE OF RelativeDistinguishedName
// RelativeDistinguishedName ::= SET SIZE (1..MAX) OF AttributeTypeAndValue
func parseName(der *cryptobyte.String, field string) (core.Name, error) {
	var rdnSequence cryptobyte.String
	if !der.ReadASN1(&rdnSequence, cryptobyte_asn1.SEQUENCE) {
		return nil, decodeErrorf(field, "not a SEQUENCE")
	}

	name := core.Name{}
	for !rdnSequence.Empty() {
		var set cryptobyte.String
		if !rdnSequence.ReadASN1(&set, cryptobyte_asn1.SET) {
			return nil, decodeErrorf(field, "relative distinguished name is not a SET")
		}
		var rdn core.RelativeDistinguishedName
		for !set.Empty() {
			var atv cryptobyte.String
			if !set.ReadASN1(&atv, cryptobyte_asn1.SEQUENCE) {
				return nil, decodeErrorf(field, "attribute is not a SEQUENCE")
			}
			var oid encoding_asn1.ObjectIdentifier
			if !atv.ReadASN1ObjectIdentifier(&oid) {
				return nil, decodeErrorf(field, "malformed attribute type")
			}
			value, err := parseValue(&atv, 0)
			if err != nil {
				return nil, &DecodeError{Field: field, Msg: "attribute value", Err: err}
			}
			if !atv.Empty() {
				return nil, decodeErrorf(field, "extra data after attribute value")
			}
			rdn = append(rdn, core.AttributeTypeAndValue{Type: core.OIDFromASN1(oid), Value: value})
		}
		name = append(name, rdn)
	}
	return name, nil
}

func parseValidity(der *cryptobyte.String) (core.Validity, error) {
	var validity cryptobyte.String
	if !der.ReadASN1(&validity, cryptobyte_asn1.SEQUENCE) {
		return core.Validity{}, decodeErrorf("validity", "not a SEQUENCE")
	}
	notBefore, err := parseTime(&validity, "notBefore")
	if err != nil {
		return core.Validity{}, err
	}
	notAfter, err := parseTime(&validity, "notAfter")
	if err != nil {
		return core.Validity{}, err
	}
	if !validity.Empty() {
		return core.Validity{}, decodeErrorf("validity", "extra data after notAfter")
	}
	return core.Validity{NotBefore: notBefore, NotAfter: notAfter}, nil
}

// parseTime accepts only the DER forms required by RFC 5280 4.1.2.5:
// YYMMDDHHMMSSZ and YYYYMMDDHHMMSSZ.
func parseTime(der *cryptobyte.String, field string) (core.Time, error) {
	var content cryptobyte.String
	var tag cryptobyte_asn1.Tag
	if !der.ReadAnyASN1(&content, &tag) {
		return core.Time{}, decodeErrorf(field, "truncated")
	}

	var layout string
	switch tag {
	case cryptobyte_asn1.UTCTime:
		layout = utcTimeLayout
	case cryptobyte_asn1.GeneralizedTime:
		layout = generalizedTimeLayout
	default:
		return core.Time{}, decodeErrorf(field, "unexpected tag %#x", uint8(tag))
	}

	s := string(content)
	t, err := time.Parse(layout, s)
	if err != nil || t.Format(layout) != s {
		return core.Time{}, decodeErrorf(field, "%q is not in DER form %s", s, layout)
	}
	if tag == cryptobyte_asn1.UTCTime && t.Year() >= 2050 {
		// Two digit years 50-99 are 1950-1999.
		t = t.AddDate(-100, 0, 0)
	}
	return core.Time{Value: t, Tag: tag}, nil
}

func parseSubjectPublicKeyInfo(der *cryptobyte.String) (core.SubjectPublicKeyInfo, error) {
	var spki cryptobyte.String
	if !der.ReadASN1(&spki, cryptobyte_asn1.SEQUENCE) {
		return core.SubjectPublicKeyInfo{}, decodeErrorf("subjectPublicKeyInfo", "not a SEQUENCE")
	}
	algorithm, err := parseAlgorithmIdentifier(&spki, "subjectPublicKeyInfo algorithm")
	if err != nil {
		return core.SubjectPublicKeyInfo{}, err
	}
	var key encoding_asn1.BitString
	if !spki.ReadASN1BitString(&key) {
		return core.SubjectPublicKeyInfo{}, decodeErrorf("subjectPublicKey", "not a BIT STRING")
	}
	if !spki.Empty() {
		return core.SubjectPublicKeyInfo{}, decodeErrorf("subjectPublicKeyInfo", "extra data after subjectPublicKey")
	}
	return core.SubjectPublicKeyInfo{Algorithm: algorithm, SubjectPublicKey: bitString(key)}, nil
}

// UniqueIdentifier ::= BIT STRING, implicitly tagged.
func parseUniqueIdentifier(der *cryptobyte.String, tag cryptobyte_asn1.Tag, field string) (*core.BitString, error) {
	if !der.PeekASN1Tag(tag) {
		return nil, nil
	}
	var content cryptobyte.String
	if !der.ReadASN1(&content, tag) {
		return nil, decodeErrorf(field, "truncated")
	}
	bs, ok := parseBitStringContent(content)
	if !ok {
		return nil, decodeErrorf(field, "not a DER BIT STRING")
	}
	return &bs, nil
}

func parseExtension(der *cryptobyte.String) (core.Extension, error) {
	var ext cryptobyte.String
	if !der.ReadASN1(&ext, cryptobyte_asn1.SEQUENCE) {
		return core.Extension{}, decodeErrorf("extension", "not a SEQUENCE")
	}
	var oid encoding_asn1.ObjectIdentifier
	if !ext.ReadASN1ObjectIdentifier(&oid) {
		return core.Extension{}, decodeErrorf("extension", "malformed extnID")
	}
	ret := core.Extension{ID: core.OIDFromASN1(oid)}

	if ext.PeekASN1Tag(cryptobyte_asn1.BOOLEAN) {
		if !ext.ReadASN1Boolean(&ret.Critical) {
			return core.Extension{}, decodeErrorf("extension "+string(ret.ID), "malformed critical flag")
		}
		if !ret.Critical {
			return core.Extension{}, decodeErrorf("extension "+string(ret.ID), "critical FALSE is the DEFAULT and must be omitted")
		}
	}

	var value cryptobyte.String
	if !ext.ReadASN1(&value, cryptobyte_asn1.OCTET_STRING) {
		return core.Extension{}, decodeErrorf("extension "+string(ret.ID), "extnValue is not an OCTET STRING")
	}
	if !ext.Empty() {
		return core.Extension{}, decodeErrorf("extension "+string(ret.ID), "extra data after extnValue")
	}
	ret.Value = decodePayload(value)
	return ret, nil
}

// decodePayload decodes the content of an OCTET STRING that wraps another DER
// value. Content that is not exactly one element is kept as core.Opaque.
func decodePayload(content []byte) core.Value {
	s := cryptobyte.String(content)
	v, err := parseValue(&s, 0)
	if err != nil || !s.Empty() {
		return core.Opaque{Raw: bytes.Clone(content)}
	}
	return v
}

// parseValue reads one element into the matching core.Value variant. It only
// fails if no complete element can be read; elements it cannot model are
// returned as core.Opaque.
func parseValue(der *cryptobyte.String, depth int) (core.Value, error) {
	var element cryptobyte.String
	var tag cryptobyte_asn1.Tag
	if !der.ReadAnyASN1Element(&element, &tag) {
		return nil, decodeErrorf("value", "truncated or malformed element")
	}
	if v, ok := classifyValue(element, tag, depth); ok {
		return v, nil
	}
	return core.Opaque{Raw: bytes.Clone(element)}, nil
}

func classifyValue(element cryptobyte.String, tag cryptobyte_asn1.Tag, depth int) (core.Value, bool) {
	full := element
	var content cryptobyte.String
	if !element.ReadASN1(&content, tag) {
		return nil, false
	}

	switch tag {
	case cryptobyte_asn1.BOOLEAN:
		var b bool
		if !full.ReadASN1Boolean(&b) {
			return nil, false
		}
		return core.Boolean(b), true
	case cryptobyte_asn1.INTEGER:
		n := new(big.Int)
		if !full.ReadASN1Integer(n) {
			return nil, false
		}
		return core.Integer{Value: n}, true
	case cryptobyte_asn1.BIT_STRING:
		bs, ok := parseBitStringContent(content)
		if !ok {
			return nil, false
		}
		return bs, true
	case cryptobyte_asn1.OCTET_STRING:
		return core.OctetString(bytes.Clone(content)), true
	case cryptobyte_asn1.NULL:
		if len(content) != 0 {
			return nil, false
		}
		return core.Null{}, true
	case cryptobyte_asn1.OBJECT_IDENTIFIER:
		var oid encoding_asn1.ObjectIdentifier
		if !full.ReadASN1ObjectIdentifier(&oid) {
			return nil, false
		}
		return core.OID(core.OIDFromASN1(oid)), true
	case cryptobyte_asn1.UTF8String, cryptobyte_asn1.PrintableString, cryptobyte_asn1.IA5String,
		cryptobyte_asn1.T61String, core.NumericString, core.VisibleString:
		return core.String{Tag: tag, Value: string(content)}, true
	}

	if !isStructureTag(tag) || depth >= maxValueDepth {
		return nil, false
	}
	elements := []core.Value{}
	for !content.Empty() {
		v, err := parseValue(&content, depth+1)
		if err != nil {
			return nil, false
		}
		elements = append(elements, v)
	}
	return core.Structure{Tag: tag, Elements: elements}, true
}

// isStructureTag reports whether tag is SEQUENCE, SET, or a constructed
// non-universal tag.
func isStructureTag(tag cryptobyte_asn1.Tag) bool {
	const classMask, universal = 0xc0, 0x00
	if tag == cryptobyte_asn1.SEQUENCE || tag == cryptobyte_asn1.SET {
		return true
	}
	return tag&0x20 != 0 && tag&classMask != universal
}

// parseBitStringContent parses BIT STRING content octets with the DER
// requirement that unused bits are zero.
func parseBitStringContent(content []byte) (core.BitString, bool) {
	if len(content) == 0 {
		return core.BitString{}, false
	}
	padding := int(content[0])
	body := content[1:]
	if padding > 7 ||
		len(body) == 0 && padding > 0 ||
		len(body) > 0 && body[len(body)-1]&(1<<padding-1) != 0 {
		return core.BitString{}, false
	}
	return core.BitString{Bytes: bytes.Clone(body), BitLength: 8*len(body) - padding}, true
}

func bitString(bs encoding_asn1.BitString) core.BitString {
	return core.BitString{Bytes: bytes.Clone(bs.Bytes), BitLength: bs.BitLength}
}
