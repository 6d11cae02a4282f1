package db_test

import (
	"io"
	"log"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"

	"github.com/letsencrypt/certsig/catest"
	"github.com/letsencrypt/certsig/db"
)

func newStoreWithCA(t *testing.T, alg catest.KeyAlgorithm) (*db.MemoryStore, *catest.CAImpl) {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	store := db.NewMemoryStore()
	return store, catest.New(log.New(io.Discard, "", 0), store, clk, alg)
}

func TestAddCertificate(t *testing.T) {
	store, ca := newStoreWithCA(t, catest.ECDSA)
	root := ca.Root()

	assert.Len(t, store.AllCertificates(), 2)
	assert.Same(t, root, store.GetCertificateByID(root.ID))
	assert.Same(t, root, store.GetCertificateByDER(root.DER))
	assert.Same(t, root, store.GetCertificateBySerial(root.Cert.TbsCertificate.SerialNumber))
	assert.Nil(t, store.GetCertificateByID("missing"))
	assert.Nil(t, store.GetCertificateByDER([]byte{0x30, 0x00}))
	assert.Nil(t, store.GetCertificateBySerial(big.NewInt(-1)))

	_, err := store.AddCertificate(root)
	assert.Error(t, err, "adding the same certificate twice")

	dup, err := db.NewCertificate(root.DER)
	require.NoError(t, err)
	assert.Equal(t, root.ID, dup.ID, "ID is derived from the DER")
	_, err = store.AddCertificate(dup)
	assert.Error(t, err, "adding an equal certificate twice")

	_, err = store.AddCertificate(&db.Certificate{})
	assert.Error(t, err, "adding a certificate without an ID")
	_, err = store.AddCertificate(nil)
	assert.Error(t, err, "adding nil")
}

func TestNewCertificateRejectsMalformedDER(t *testing.T) {
	_, err := db.NewCertificate([]byte{0x30, 0x03, 0x02, 0x01, 0x01})
	assert.Error(t, err)
}

func TestGetCertificatesBySubject(t *testing.T) {
	store, ca := newStoreWithCA(t, catest.Ed25519)
	key, err := catest.NewKey(catest.Ed25519)
	require.NoError(t, err)
	leaf, err := ca.NewCertificate([]string{"example.com"}, key.Public())
	require.NoError(t, err)

	issuers := store.GetCertificatesBySubject(leaf.Cert.TbsCertificate.Issuer)
	require.Len(t, issuers, 1)
	assert.Same(t, ca.Intermediate(), issuers[0])
	assert.Same(t, ca.Intermediate(), leaf.Issuer)

	roots := store.GetCertificatesBySubject(ca.Root().Cert.TbsCertificate.Subject)
	require.Len(t, roots, 1)
	assert.Same(t, ca.Root(), roots[0])

	assert.Empty(t, store.GetCertificatesBySubject(nil))
}

func TestGetCertificatesByKey(t *testing.T) {
	for _, alg := range []catest.KeyAlgorithm{catest.RSA, catest.MLDSA65} {
		t.Run(string(alg), func(t *testing.T) {
			store, ca := newStoreWithCA(t, alg)
			key, err := catest.NewKey(alg)
			require.NoError(t, err)

			first, err := ca.NewCertificate([]string{"a.example.com"}, key.Public())
			require.NoError(t, err)
			second, err := ca.NewCertificate([]string{"b.example.com"}, key.Public())
			require.NoError(t, err)

			certs, err := store.GetCertificatesByKey(key.Public())
			require.NoError(t, err)
			require.Len(t, certs, 2)
			assert.Same(t, first, certs[0])
			assert.Same(t, second, certs[1])

			other, err := catest.NewKey(alg)
			require.NoError(t, err)
			certs, err = store.GetCertificatesByKey(other.Public())
			require.NoError(t, err)
			assert.Empty(t, certs)
		})
	}
}

func TestKeyToID(t *testing.T) {
	key, err := catest.NewKey(catest.ECDSA)
	require.NoError(t, err)

	id, err := db.KeyToID(key.Public())
	require.NoError(t, err)
	assert.Len(t, id, 64)

	jwk := jose.JSONWebKey{Key: key.Public()}
	jwkID, err := db.KeyToID(&jwk)
	require.NoError(t, err)
	assert.Equal(t, id, jwkID)

	jwkID, err = db.KeyToID(jwk)
	require.NoError(t, err)
	assert.Equal(t, id, jwkID)

	var nilJWK *jose.JSONWebKey
	_, err = db.KeyToID(nilJWK)
	assert.Error(t, err)

	_, err = db.KeyToID("not a key")
	assert.Error(t, err)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store, ca := newStoreWithCA(t, catest.ECDSA)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := catest.NewKey(catest.ECDSA)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := ca.NewCertificate([]string{"example.com"}, key.Public()); err != nil {
				t.Error(err)
			}
			store.GetCertificatesBySubject(ca.Intermediate().Cert.TbsCertificate.Subject)
		}()
	}
	wg.Wait()
	assert.Len(t, store.AllCertificates(), 10)
}
