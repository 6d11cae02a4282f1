package core

import "bytes"

// Equal methods compare every field, recursing into nested values.

func (c Certificate) Equal(other Certificate) bool {
	return c.TbsCertificate.Equal(other.TbsCertificate) &&
		c.SignatureAlgorithm.Equal(other.SignatureAlgorithm) &&
		c.SignatureValue.Equal(other.SignatureValue)
}

func (t TbsCertificate) Equal(other TbsCertificate) bool {
	if len(t.Extensions) != len(other.Extensions) {
		return false
	}
	for i := range t.Extensions {
		if !t.Extensions[i].Equal(other.Extensions[i]) {
			return false
		}
	}
	return t.Version == other.Version &&
		bigEqual(t.SerialNumber, other.SerialNumber) &&
		t.Signature.Equal(other.Signature) &&
		t.Issuer.Equal(other.Issuer) &&
		t.Validity.Equal(other.Validity) &&
		t.Subject.Equal(other.Subject) &&
		t.SubjectPublicKeyInfo.Equal(other.SubjectPublicKeyInfo) &&
		optionalBitStringEqual(t.IssuerUniqueID, other.IssuerUniqueID) &&
		optionalBitStringEqual(t.SubjectUniqueID, other.SubjectUniqueID)
}

func (a AlgorithmIdentifier) Equal(other AlgorithmIdentifier) bool {
	return a.Algorithm == other.Algorithm && ValueEqual(a.Parameters, other.Parameters)
}

func (a AttributeTypeAndValue) Equal(other AttributeTypeAndValue) bool {
	return a.Type == other.Type && ValueEqual(a.Value, other.Value)
}

func (r RelativeDistinguishedName) Equal(other RelativeDistinguishedName) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if !r[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

func (n Name) Equal(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if !n[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

func (v Validity) Equal(other Validity) bool {
	return v.NotBefore.Equal(other.NotBefore) && v.NotAfter.Equal(other.NotAfter)
}

func (t Time) Equal(other Time) bool {
	return t.Tag == other.Tag && t.Value.Equal(other.Value)
}

func (s SubjectPublicKeyInfo) Equal(other SubjectPublicKeyInfo) bool {
	return s.Algorithm.Equal(other.Algorithm) && s.SubjectPublicKey.Equal(other.SubjectPublicKey)
}

func (e Extension) Equal(other Extension) bool {
	return e.ID == other.ID && e.Critical == other.Critical && ValueEqual(e.Value, other.Value)
}

func (b BitString) Equal(other BitString) bool {
	return b.BitLength == other.BitLength && bytes.Equal(b.Bytes, other.Bytes)
}

func (b BasicConstraints) Equal(other BasicConstraints) bool {
	if b.CA != other.CA {
		return false
	}
	if b.PathLenConstraint == nil || other.PathLenConstraint == nil {
		return b.PathLenConstraint == nil && other.PathLenConstraint == nil
	}
	return *b.PathLenConstraint == *other.PathLenConstraint
}

func optionalBitStringEqual(a, b *BitString) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
