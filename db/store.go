package db

import (
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"gopkg.in/square/go-jose.v2"

	"github.com/letsencrypt/certsig/core"
	"github.com/letsencrypt/certsig/der"
	"github.com/letsencrypt/certsig/verify"
)

// Certificate is a decoded certificate together with the DER it was decoded
// from. ID is the hex SHA-256 of DER, so the same certificate always gets the
// same ID.
type Certificate struct {
	ID     string
	Cert   core.Certificate
	DER    []byte
	Issuer *Certificate
}

// NewCertificate decodes certDER and computes its ID.
func NewCertificate(certDER []byte) (*Certificate, error) {
	cert, err := der.DecodeCertificate(certDER)
	if err != nil {
		return nil, err
	}
	return &Certificate{
		ID:   certificateID(certDER),
		Cert: cert,
		DER:  certDER,
	}, nil
}

func certificateID(certDER []byte) string {
	digest := sha256.Sum256(certDER)
	return hex.EncodeToString(digest[:])
}

// Store holds certificates in memory, indexed for issuer lookups.
type Store interface {
	AddCertificate(cert *Certificate) (int, error)
	GetCertificateByID(id string) *Certificate
	GetCertificateByDER(der []byte) *Certificate
	GetCertificateBySerial(serialNumber *big.Int) *Certificate
	GetCertificatesBySubject(subject core.Name) []*Certificate
	GetCertificatesByKey(key crypto.PublicKey) ([]*Certificate, error)
	AllCertificates() []*Certificate
}

/*
 * KeyToID produces a string with the hex representation of the SHA256 digest
 * over the SubjectPublicKeyInfo of a provided public key. We use this to
 * find every certificate issued to a key.
 */
func KeyToID(key crypto.PublicKey) (string, error) {
	switch t := key.(type) {
	case *jose.JSONWebKey:
		if t == nil {
			return "", fmt.Errorf("Cannot compute ID of nil key")
		}
		return KeyToID(t.Key)
	case jose.JSONWebKey:
		return KeyToID(t.Key)
	default:
		spki, err := verify.PublicKeyInfo(key)
		if err != nil {
			return "", err
		}
		return spkiToID(spki)
	}
}

func spkiToID(spki core.SubjectPublicKeyInfo) (string, error) {
	keyDER, err := der.EncodeSubjectPublicKeyInfo(spki)
	if err != nil {
		return "", err
	}
	spkiDigest := sha256.Sum256(keyDER)
	return hex.EncodeToString(spkiDigest[:]), nil
}
