package core

import (
	"bytes"
	"math/big"

	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// String tags not defined by cryptobyte/asn1.
const (
	NumericString = cryptobyte_asn1.Tag(18)
	VisibleString = cryptobyte_asn1.Tag(26)
)

// A Value is one of the ASN.1 values carried by attribute values, extension
// payloads and algorithm parameters. The set of implementations is closed:
// String, Integer, OID, BitString, OctetString, Boolean, Null, Structure and
// Opaque. Anything the decoder does not model is kept as Opaque so that it
// re-encodes byte for byte.
type Value interface {
	isValue()
}

// String is a character string. Tag is one of UTF8String, PrintableString,
// IA5String, T61String, NumericString or VisibleString; Value holds the
// content octets unchanged.
type String struct {
	Tag   cryptobyte_asn1.Tag
	Value string
}

// Integer is an arbitrary precision INTEGER.
type Integer struct {
	Value *big.Int
}

// OID is an OBJECT IDENTIFIER value.
type OID ObjectIdentifier

// OctetString is an OCTET STRING value.
type OctetString []byte

// Boolean is a BOOLEAN value.
type Boolean bool

// Null is the NULL value.
type Null struct{}

// Structure is a constructed value: a SEQUENCE, a SET, or a constructed
// context-specific or application tag.
type Structure struct {
	Tag      cryptobyte_asn1.Tag
	Elements []Value
}

// Opaque is a complete TLV that is carried without interpretation.
type Opaque struct {
	Raw []byte
}

func (String) isValue()      {}
func (Integer) isValue()     {}
func (OID) isValue()         {}
func (BitString) isValue()   {}
func (OctetString) isValue() {}
func (Boolean) isValue()     {}
func (Null) isValue()        {}
func (Structure) isValue()   {}
func (Opaque) isValue()      {}

// Text returns the string content of v if it is a character string.
func Text(v Value) (string, bool) {
	s, ok := v.(String)
	if !ok {
		return "", false
	}
	return s.Value, true
}

// ValueEqual reports whether a and b are structurally equal. Two nil values
// are equal; a nil value is not equal to Null{}.
func ValueEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case String:
		b, ok := b.(String)
		return ok && a == b
	case Integer:
		b, ok := b.(Integer)
		return ok && bigEqual(a.Value, b.Value)
	case OID:
		b, ok := b.(OID)
		return ok && a == b
	case BitString:
		b, ok := b.(BitString)
		return ok && a.Equal(b)
	case OctetString:
		b, ok := b.(OctetString)
		return ok && bytes.Equal(a, b)
	case Boolean:
		b, ok := b.(Boolean)
		return ok && a == b
	case Null:
		_, ok := b.(Null)
		return ok
	case Structure:
		b, ok := b.(Structure)
		if !ok || a.Tag != b.Tag || len(a.Elements) != len(b.Elements) {
			return false
		}
		for i := range a.Elements {
			if !ValueEqual(a.Elements[i], b.Elements[i]) {
				return false
			}
		}
		return true
	case Opaque:
		b, ok := b.(Opaque)
		return ok && bytes.Equal(a.Raw, b.Raw)
	}
	return false
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
