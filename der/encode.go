package der

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/letsencrypt/certsig/core"
)

// EncodeTbsCertificate returns the DER encoding of tbs. This is the message
// covered by the certificate signature.
func EncodeTbsCertificate(tbs core.TbsCertificate) ([]byte, error) {
	var b cryptobyte.Builder
	addTbsCertificate(&b, tbs)
	return finish(&b)
}

// EncodeCertificate returns the DER encoding of cert.
func EncodeCertificate(cert core.Certificate) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addTbsCertificate(b, cert.TbsCertificate)
		addAlgorithmIdentifier(b, cert.SignatureAlgorithm)
		addBitString(b, cryptobyte_asn1.BIT_STRING, cert.SignatureValue)
	})
	return finish(&b)
}

// EncodeSubjectPublicKeyInfo returns the DER encoding of spki, the form
// expected by x509.ParsePKIXPublicKey.
func EncodeSubjectPublicKeyInfo(spki core.SubjectPublicKeyInfo) ([]byte, error) {
	var b cryptobyte.Builder
	addSubjectPublicKeyInfo(&b, spki)
	return finish(&b)
}

// EncodeValue returns the DER encoding of a single value.
func EncodeValue(v core.Value) ([]byte, error) {
	var b cryptobyte.Builder
	addValue(&b, v)
	return finish(&b)
}

func finish(b *cryptobyte.Builder) ([]byte, error) {
	der, err := b.Bytes()
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	return der, nil
}

func addTbsCertificate(b *cryptobyte.Builder, tbs core.TbsCertificate) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		switch {
		case tbs.Version < core.V1 || tbs.Version > core.V3:
			b.SetError(fmt.Errorf("version %d is not v1, v2 or v3", int(tbs.Version)))
			return
		case tbs.Version != core.V1:
			b.AddASN1(tagVersion, func(b *cryptobyte.Builder) {
				b.AddASN1Int64(int64(tbs.Version))
			})
		}

		if tbs.SerialNumber == nil {
			b.SetError(errors.New("serialNumber is missing"))
			return
		}
		b.AddASN1BigInt(tbs.SerialNumber)
		addAlgorithmIdentifier(b, tbs.Signature)
		addName(b, tbs.Issuer)
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			addTime(b, tbs.Validity.NotBefore)
			addTime(b, tbs.Validity.NotAfter)
		})
		addName(b, tbs.Subject)
		addSubjectPublicKeyInfo(b, tbs.SubjectPublicKeyInfo)
		if tbs.IssuerUniqueID != nil {
			addBitString(b, tagIssuerUniqueID, *tbs.IssuerUniqueID)
		}
		if tbs.SubjectUniqueID != nil {
			addBitString(b, tagSubjectUniqueID, *tbs.SubjectUniqueID)
		}
		if len(tbs.Extensions) > 0 {
			b.AddASN1(tagExtensions, func(b *cryptobyte.Builder) {
				b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
					for _, ext := range tbs.Extensions {
						addExtension(b, ext)
					}
				})
			})
		}
	})
}

func addAlgorithmIdentifier(b *cryptobyte.Builder, ai core.AlgorithmIdentifier) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addOID(b, ai.Algorithm)
		if ai.Parameters != nil {
			addValue(b, ai.Parameters)
		}
	})
}

func addSubjectPublicKeyInfo(b *cryptobyte.Builder, spki core.SubjectPublicKeyInfo) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addAlgorithmIdentifier(b, spki.Algorithm)
		addBitString(b, cryptobyte_asn1.BIT_STRING, spki.SubjectPublicKey)
	})
}

func addName(b *cryptobyte.Builder, name core.Name) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, rdn := range name {
			b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) {
				for _, atv := range rdn {
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
						addOID(b, atv.Type)
						if atv.Value == nil {
							b.SetError(fmt.Errorf("attribute %s has no value", atv.Type))
							return
						}
						addValue(b, atv.Value)
					})
				}
			})
		}
	})
}

func addTime(b *cryptobyte.Builder, t core.Time) {
	v := t.Value.UTC()
	if v.Nanosecond() != 0 {
		b.SetError(fmt.Errorf("time %s has sub-second precision", v))
		return
	}
	tag := t.Tag
	if tag == 0 {
		tag = core.NewTime(v).Tag
	}

	var s string
	switch tag {
	case cryptobyte_asn1.UTCTime:
		if v.Year() < 1950 || v.Year() >= 2050 {
			b.SetError(fmt.Errorf("time %s cannot be encoded as UTCTime", v))
			return
		}
		s = v.Format(utcTimeLayout)
	case cryptobyte_asn1.GeneralizedTime:
		if v.Year() < 0 || v.Year() > 9999 {
			b.SetError(fmt.Errorf("time %s cannot be encoded as GeneralizedTime", v))
			return
		}
		s = v.Format(generalizedTimeLayout)
	default:
		b.SetError(fmt.Errorf("time tag %#x is neither UTCTime nor GeneralizedTime", uint8(tag)))
		return
	}
	b.AddASN1(tag, func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(s))
	})
}

func addExtension(b *cryptobyte.Builder, ext core.Extension) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addOID(b, ext.ID)
		if ext.Critical {
			b.AddASN1Boolean(true)
		}
		b.AddASN1(cryptobyte_asn1.OCTET_STRING, func(b *cryptobyte.Builder) {
			if ext.Value != nil {
				addValue(b, ext.Value)
			}
		})
	})
}

func addOID(b *cryptobyte.Builder, oid core.ObjectIdentifier) {
	arcs, err := oid.ASN1()
	if err != nil {
		b.SetError(err)
		return
	}
	b.AddASN1ObjectIdentifier(arcs)
}

func addBitString(b *cryptobyte.Builder, tag cryptobyte_asn1.Tag, bs core.BitString) {
	unused := bs.UnusedBits()
	if unused < 0 || unused > 7 || (len(bs.Bytes) == 0 && unused != 0) {
		b.SetError(fmt.Errorf("bit length %d does not fit in %d bytes", bs.BitLength, len(bs.Bytes)))
		return
	}
	if unused > 0 && bs.Bytes[len(bs.Bytes)-1]&(1<<unused-1) != 0 {
		b.SetError(errors.New("unused bits of BIT STRING are not zero"))
		return
	}
	b.AddASN1(tag, func(b *cryptobyte.Builder) {
		b.AddUint8(uint8(unused))
		b.AddBytes(bs.Bytes)
	})
}

func addValue(b *cryptobyte.Builder, v core.Value) {
	switch v := v.(type) {
	case core.String:
		b.AddASN1(v.Tag, func(b *cryptobyte.Builder) {
			b.AddBytes([]byte(v.Value))
		})
	case core.Integer:
		if v.Value == nil {
			b.SetError(errors.New("INTEGER has no value"))
			return
		}
		b.AddASN1BigInt(v.Value)
	case core.OID:
		addOID(b, core.ObjectIdentifier(v))
	case core.BitString:
		addBitString(b, cryptobyte_asn1.BIT_STRING, v)
	case core.OctetString:
		b.AddASN1OctetString(v)
	case core.Boolean:
		b.AddASN1Boolean(bool(v))
	case core.Null:
		b.AddASN1NULL()
	case core.Structure:
		b.AddASN1(v.Tag, func(b *cryptobyte.Builder) {
			for _, e := range v.Elements {
				addValue(b, e)
			}
		})
	case core.Opaque:
		b.AddBytes(v.Raw)
	default:
		b.SetError(fmt.Errorf("cannot encode value of type %T", v))
	}
}
