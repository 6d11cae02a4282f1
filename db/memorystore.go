package db

import (
	"crypto"
	"fmt"
	"math/big"
	"sync"

	"github.com/letsencrypt/certsig/core"
)

// MemoryStore keeps certificates in-memory, not persisted anywhere.
type MemoryStore struct {
	sync.RWMutex

	certificatesByID map[string]*Certificate

	// Each key ID is the hex encoding of a SHA256 sum over the certificate's
	// SubjectPublicKeyInfo.
	certificatesByKeyID map[string][]*Certificate

	// Insertion order, for AllCertificates.
	ids []string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		certificatesByID:    make(map[string]*Certificate),
		certificatesByKeyID: make(map[string][]*Certificate),
	}
}

// AddCertificate stores cert and returns the number of stored certificates.
// Adding a certificate with the same DER twice is an error.
func (m *MemoryStore) AddCertificate(cert *Certificate) (int, error) {
	if cert == nil {
		return 0, fmt.Errorf("cannot add nil cert to MemoryStore")
	}
	certID := cert.ID
	if len(certID) == 0 {
		return 0, fmt.Errorf("cert must have a non-empty ID to add to MemoryStore")
	}
	keyID, err := spkiToID(cert.Cert.TbsCertificate.SubjectPublicKeyInfo)
	if err != nil {
		return 0, fmt.Errorf("computing key ID for cert %q: %w", certID, err)
	}

	m.Lock()
	defer m.Unlock()

	if _, present := m.certificatesByID[certID]; present {
		return 0, fmt.Errorf("cert %q already exists", certID)
	}

	m.certificatesByID[certID] = cert
	m.certificatesByKeyID[keyID] = append(m.certificatesByKeyID[keyID], cert)
	m.ids = append(m.ids, certID)
	return len(m.certificatesByID), nil
}

func (m *MemoryStore) GetCertificateByID(id string) *Certificate {
	m.RLock()
	defer m.RUnlock()
	return m.certificatesByID[id]
}

func (m *MemoryStore) GetCertificateByDER(der []byte) *Certificate {
	return m.GetCertificateByID(certificateID(der))
}

// GetCertificateBySerial loops over all certificates to find the first one
// with the given serial number. This method is linear and it's not optimized
// to give you a quick response.
func (m *MemoryStore) GetCertificateBySerial(serialNumber *big.Int) *Certificate {
	m.RLock()
	defer m.RUnlock()
	for _, id := range m.ids {
		c := m.certificatesByID[id]
		if c.Cert.TbsCertificate.SerialNumber.Cmp(serialNumber) == 0 {
			return c
		}
	}
	return nil
}

// GetCertificatesBySubject returns every certificate whose subject equals
// subject, in insertion order. These are the candidate issuers of a
// certificate whose issuer is subject.
func (m *MemoryStore) GetCertificatesBySubject(subject core.Name) []*Certificate {
	m.RLock()
	defer m.RUnlock()
	var certs []*Certificate
	for _, id := range m.ids {
		c := m.certificatesByID[id]
		if c.Cert.TbsCertificate.Subject.Equal(subject) {
			certs = append(certs, c)
		}
	}
	return certs
}

// GetCertificatesByKey returns every certificate issued to key.
func (m *MemoryStore) GetCertificatesByKey(key crypto.PublicKey) ([]*Certificate, error) {
	keyID, err := KeyToID(key)
	if err != nil {
		return nil, err
	}

	m.RLock()
	defer m.RUnlock()
	return append([]*Certificate(nil), m.certificatesByKeyID[keyID]...), nil
}

// AllCertificates returns every stored certificate in insertion order.
func (m *MemoryStore) AllCertificates() []*Certificate {
	m.RLock()
	defer m.RUnlock()
	certs := make([]*Certificate, 0, len(m.ids))
	for _, id := range m.ids {
		certs = append(certs, m.certificatesByID[id])
	}
	return certs
}
