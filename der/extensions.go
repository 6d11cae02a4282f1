package der

import (
	"bytes"
	"fmt"
	"math/big"
	"net"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/letsencrypt/certsig/core"
)

// GeneralName tags, RFC 5280 4.2.1.6
const (
	nameTypeEmail = 1
	nameTypeDNS   = 2
	nameTypeURI   = 6
	nameTypeIP    = 7
)

// ExtensionPayload returns the content of the extnValue OCTET STRING, that is
// the DER encoding of ext.Value.
func ExtensionPayload(ext core.Extension) ([]byte, error) {
	if ext.Value == nil {
		return []byte{}, nil
	}
	return EncodeValue(ext.Value)
}

// ParseBasicConstraints decodes the payload of a basic constraints extension.
//
//	BasicConstraints ::= SEQUENCE {
//	  cA                      BOOLEAN DEFAULT FALSE,
//	  pathLenConstraint       INTEGER (0..MAX) OPTIONAL }
func ParseBasicConstraints(ext core.Extension) (core.BasicConstraints, error) {
	const field = "basicConstraints"
	if ext.ID != core.OIDBasicConstraints {
		return core.BasicConstraints{}, decodeErrorf(field, "extension %s is not basic constraints", ext.ID)
	}
	payload, err := ExtensionPayload(ext)
	if err != nil {
		return core.BasicConstraints{}, &DecodeError{Field: field, Err: err}
	}

	input := cryptobyte.String(payload)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return core.BasicConstraints{}, decodeErrorf(field, "not a SEQUENCE")
	}

	var bc core.BasicConstraints
	if seq.PeekASN1Tag(cryptobyte_asn1.BOOLEAN) {
		if !seq.ReadASN1Boolean(&bc.CA) {
			return core.BasicConstraints{}, decodeErrorf(field, "malformed cA")
		}
	}
	if seq.PeekASN1Tag(cryptobyte_asn1.INTEGER) {
		var pathLen int
		if !seq.ReadASN1Integer(&pathLen) || pathLen < 0 {
			return core.BasicConstraints{}, decodeErrorf(field, "malformed pathLenConstraint")
		}
		bc.PathLenConstraint = &pathLen
	}
	if !seq.Empty() {
		return core.BasicConstraints{}, decodeErrorf(field, "extra data")
	}
	return bc, nil
}

// MarshalBasicConstraints builds a basic constraints extension. The cA field
// is omitted when false, as DER requires for DEFAULT values.
func MarshalBasicConstraints(bc core.BasicConstraints, critical bool) (core.Extension, error) {
	elements := []core.Value{}
	if bc.CA {
		elements = append(elements, core.Boolean(true))
	}
	if bc.PathLenConstraint != nil {
		if *bc.PathLenConstraint < 0 {
			return core.Extension{}, &EncodeError{Err: fmt.Errorf("negative pathLenConstraint %d", *bc.PathLenConstraint)}
		}
		elements = append(elements, core.Integer{Value: big.NewInt(int64(*bc.PathLenConstraint))})
	}
	return core.Extension{
		ID:       core.OIDBasicConstraints,
		Critical: critical,
		Value:    core.Structure{Tag: cryptobyte_asn1.SEQUENCE, Elements: elements},
	}, nil
}

// ParseSubjectAltNames decodes the payload of a subject or issuer alternative
// name extension.
//
//	GeneralNames ::= SEQUENCE SIZE (1..MAX) OF GeneralName
func ParseSubjectAltNames(ext core.Extension) (core.GeneralNames, error) {
	field := "subjectAltName"
	switch ext.ID {
	case core.OIDSubjectAltName:
	case core.OIDIssuerAltName:
		field = "issuerAltName"
	default:
		return core.GeneralNames{}, decodeErrorf(field, "extension %s is not an alternative name", ext.ID)
	}
	payload, err := ExtensionPayload(ext)
	if err != nil {
		return core.GeneralNames{}, &DecodeError{Field: field, Err: err}
	}

	input := cryptobyte.String(payload)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return core.GeneralNames{}, decodeErrorf(field, "not a SEQUENCE")
	}
	if seq.Empty() {
		return core.GeneralNames{}, decodeErrorf(field, "empty")
	}

	var names core.GeneralNames
	for !seq.Empty() {
		var element, content cryptobyte.String
		var tag cryptobyte_asn1.Tag
		if !seq.ReadAnyASN1Element(&element, &tag) {
			return core.GeneralNames{}, decodeErrorf(field, "truncated GeneralName")
		}
		full := element
		if !element.ReadASN1(&content, tag) {
			return core.GeneralNames{}, decodeErrorf(field, "truncated GeneralName")
		}

		switch tag {
		case cryptobyte_asn1.Tag(nameTypeEmail).ContextSpecific():
			if err := checkIA5(content); err != nil {
				return core.GeneralNames{}, decodeErrorf(field, "rfc822Name: %v", err)
			}
			names.EmailAddresses = append(names.EmailAddresses, string(content))
		case cryptobyte_asn1.Tag(nameTypeDNS).ContextSpecific():
			if err := checkIA5(content); err != nil {
				return core.GeneralNames{}, decodeErrorf(field, "dNSName: %v", err)
			}
			names.DNSNames = append(names.DNSNames, string(content))
		case cryptobyte_asn1.Tag(nameTypeURI).ContextSpecific():
			if err := checkIA5(content); err != nil {
				return core.GeneralNames{}, decodeErrorf(field, "uniformResourceIdentifier: %v", err)
			}
			names.URIs = append(names.URIs, string(content))
		case cryptobyte_asn1.Tag(nameTypeIP).ContextSpecific():
			if len(content) != net.IPv4len && len(content) != net.IPv6len {
				return core.GeneralNames{}, decodeErrorf(field, "iPAddress of length %d", len(content))
			}
			names.IPAddresses = append(names.IPAddresses, net.IP(bytes.Clone(content)))
		default:
			names.Other = append(names.Other, core.Opaque{Raw: bytes.Clone(full)})
		}
	}
	return names, nil
}

func checkIA5(s []byte) error {
	for _, c := range s {
		if c > 0x7f {
			return fmt.Errorf("byte %#x is not IA5", c)
		}
	}
	return nil
}

// MarshalSubjectAltNames builds a subject alternative name extension. Names
// are written in the order DNS, email, IP, URI, then Other.
func MarshalSubjectAltNames(names core.GeneralNames, critical bool) (core.Extension, error) {
	var elements []core.Value
	add := func(tag int, content []byte) error {
		var b cryptobyte.Builder
		b.AddASN1(cryptobyte_asn1.Tag(tag).ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddBytes(content)
		})
		raw, err := finish(&b)
		if err != nil {
			return err
		}
		elements = append(elements, core.Opaque{Raw: raw})
		return nil
	}

	for _, name := range names.DNSNames {
		if err := checkIA5([]byte(name)); err != nil {
			return core.Extension{}, &EncodeError{Err: fmt.Errorf("dNSName %q: %w", name, err)}
		}
		if err := add(nameTypeDNS, []byte(name)); err != nil {
			return core.Extension{}, err
		}
	}
	for _, email := range names.EmailAddresses {
		if err := checkIA5([]byte(email)); err != nil {
			return core.Extension{}, &EncodeError{Err: fmt.Errorf("rfc822Name %q: %w", email, err)}
		}
		if err := add(nameTypeEmail, []byte(email)); err != nil {
			return core.Extension{}, err
		}
	}
	for _, ip := range names.IPAddresses {
		raw := ip.To4()
		if raw == nil {
			raw = ip.To16()
		}
		if raw == nil {
			return core.Extension{}, &EncodeError{Err: fmt.Errorf("iPAddress of length %d", len(ip))}
		}
		if err := add(nameTypeIP, raw); err != nil {
			return core.Extension{}, err
		}
	}
	for _, uri := range names.URIs {
		if err := checkIA5([]byte(uri)); err != nil {
			return core.Extension{}, &EncodeError{Err: fmt.Errorf("uniformResourceIdentifier %q: %w", uri, err)}
		}
		if err := add(nameTypeURI, []byte(uri)); err != nil {
			return core.Extension{}, err
		}
	}
	elements = append(elements, names.Other...)

	if len(elements) == 0 {
		return core.Extension{}, &EncodeError{Err: fmt.Errorf("subjectAltName must hold at least one name")}
	}
	return core.Extension{
		ID:       core.OIDSubjectAltName,
		Critical: critical,
		Value:    core.Structure{Tag: cryptobyte_asn1.SEQUENCE, Elements: elements},
	}, nil
}
