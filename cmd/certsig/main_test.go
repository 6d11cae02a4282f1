package main

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
	"gopkg.in/square/go-jose.v2"

	"github.com/letsencrypt/certsig/catest"
	"github.com/letsencrypt/certsig/core"
	"github.com/letsencrypt/certsig/db"
	"github.com/letsencrypt/certsig/der"
	"github.com/letsencrypt/certsig/verify"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newLoggerAndBuffer() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf, "certsig ", 0), &buf
}

func fakeClock(t time.Time) clock.FakeClock {
	clk := clock.NewFake()
	clk.Set(t)
	return clk
}

// newChain issues a leaf for domains and returns the CA and the leaf's key.
func newChain(t *testing.T, alg catest.KeyAlgorithm, domains ...string) (*catest.CAImpl, *db.Certificate, crypto.Signer) {
	t.Helper()
	logger, _ := newLoggerAndBuffer()
	ca := catest.New(logger, db.NewMemoryStore(), fakeClock(testNow), alg)
	key, err := catest.NewKey(alg)
	if err != nil {
		t.Fatalf("making leaf key: %s", err)
	}
	leaf, err := ca.NewCertificate(domains, key.Public())
	if err != nil {
		t.Fatalf("issuing leaf: %s", err)
	}
	return ca, leaf, key
}

func writeBundle(t *testing.T, certs ...core.Certificate) string {
	t.Helper()
	data, err := der.EncodePEMChain(certs...)
	if err != nil {
		t.Fatalf("encoding bundle: %s", err)
	}
	path := filepath.Join(t.TempDir(), "bundle.pem")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing bundle: %s", err)
	}
	return path
}

func writeJWK(t *testing.T, key crypto.PublicKey) string {
	t.Helper()
	data, err := jose.JSONWebKey{Key: key}.MarshalJSON()
	if err != nil {
		t.Fatalf("marshalling JWK: %s", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing JWK: %s", err)
	}
	return path
}

func TestRun(t *testing.T) {
	ca, leaf, key := newChain(t, catest.ECDSA, "example.com", "www.example.com")
	bundle := writeBundle(t, leaf.Cert, ca.Intermediate().Cert, ca.Root().Cert)

	var c config
	c.Certsig.Bundles = []string{bundle, bundle}
	c.Certsig.Keys = []string{writeJWK(t, key.Public())}

	logger, logs := newLoggerAndBuffer()
	var out bytes.Buffer
	if err := run(logger, &out, c, fakeClock(testNow)); err != nil {
		t.Fatalf("run() unexpected error: %s\n%s", err, out.String())
	}

	report := out.String()
	for _, expected := range []string{
		"certificate " + leaf.ID,
		"  version:   v3",
		"  CN:        example.com",
		"  SANs:      example.com, www.example.com",
		"  basic constraints: CA=false",
		"  signature: verified by " + ca.Intermediate().ID,
		"  signature: verified by " + ca.Root().ID,
		"key ",
		": 1 certificates",
	} {
		if !strings.Contains(report, expected) {
			t.Errorf("report does not contain %q:\n%s", expected, report)
		}
	}
	if strings.Contains(report, "NOT valid now") {
		t.Errorf("report flags a valid certificate:\n%s", report)
	}
	if !strings.Contains(logs.String(), "Loaded 3 certificates from "+bundle) {
		t.Errorf("missing load log line in %q", logs.String())
	}
	if !strings.Contains(logs.String(), "Skipping duplicate certificate "+leaf.ID) {
		t.Errorf("missing duplicate log line in %q", logs.String())
	}
}

func TestRunPostQuantum(t *testing.T) {
	ca, leaf, _ := newChain(t, catest.MLDSA65, "pq.example.com")
	bundle := writeBundle(t, leaf.Cert, ca.Intermediate().Cert)

	var c config
	c.Certsig.Bundles = []string{bundle}
	logger, _ := newLoggerAndBuffer()
	var out bytes.Buffer
	// A year later the leaf has expired.
	if err := run(logger, &out, c, fakeClock(testNow.AddDate(1, 0, 0))); err != nil {
		t.Fatalf("run() unexpected error: %s", err)
	}
	report := out.String()
	for _, expected := range []string{
		"  signature: verified by " + ca.Intermediate().ID,
		"  signature: issuer not loaded",
		"NOT valid now",
		"  basic constraints: CA=true pathlen=1",
	} {
		if !strings.Contains(report, expected) {
			t.Errorf("report does not contain %q:\n%s", expected, report)
		}
	}
}

func TestRunBadSignature(t *testing.T) {
	ca, leaf, _ := newChain(t, catest.Ed25519, "example.com")
	tampered := leaf.Cert
	tampered.SignatureValue = core.NewBitString(append([]byte{}, leaf.Cert.SignatureValue.Bytes...))
	tampered.SignatureValue.Bytes[0] ^= 0x01
	bundle := writeBundle(t, tampered, ca.Intermediate().Cert)

	var c config
	c.Certsig.Bundles = []string{bundle}
	logger, _ := newLoggerAndBuffer()
	var out bytes.Buffer
	if err := run(logger, &out, c, fakeClock(testNow)); err == nil {
		t.Fatalf("run() expected an error:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "  signature: INVALID") {
		t.Errorf("report does not flag the signature:\n%s", out.String())
	}
}

func sha1SelfSigned(t *testing.T) core.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("making key: %s", err)
	}
	spki, err := verify.PublicKeyInfo(&key.PublicKey)
	if err != nil {
		t.Fatalf("encoding public key: %s", err)
	}
	name := core.Name{{{Type: core.OIDCommonName, Value: core.String{Tag: cryptobyte_asn1.PrintableString, Value: "legacy"}}}}
	ai := core.AlgorithmIdentifier{Algorithm: verify.OIDSignatureSHA1WithRSA, Parameters: core.Null{}}
	tbs := core.TbsCertificate{
		Version:      core.V1,
		SerialNumber: big.NewInt(7),
		Signature:    ai,
		Issuer:       name,
		Validity: core.Validity{
			NotBefore: core.NewTime(time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)),
			NotAfter:  core.NewTime(time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
		Subject:              name,
		SubjectPublicKeyInfo: spki,
	}
	signed, err := der.EncodeTbsCertificate(tbs)
	if err != nil {
		t.Fatalf("encoding TBS: %s", err)
	}
	digest := sha1.Sum(signed)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		t.Fatalf("signing: %s", err)
	}
	return core.Certificate{TbsCertificate: tbs, SignatureAlgorithm: ai, SignatureValue: core.NewBitString(sig)}
}

func TestRunSHA1(t *testing.T) {
	legacy := sha1SelfSigned(t)
	bundle := writeBundle(t, legacy)

	var c config
	c.Certsig.Bundles = []string{bundle}

	logger, _ := newLoggerAndBuffer()
	var out bytes.Buffer
	if err := run(logger, &out, c, fakeClock(testNow)); err != nil {
		t.Fatalf("run() unexpected error: %s", err)
	}
	if !strings.Contains(out.String(), "insecure algorithm SHA1-RSA") {
		t.Errorf("report does not flag SHA-1:\n%s", out.String())
	}

	c.Certsig.AllowSHA1 = true
	logger, logs := newLoggerAndBuffer()
	out.Reset()
	if err := run(logger, &out, c, fakeClock(testNow)); err != nil {
		t.Fatalf("run() unexpected error: %s", err)
	}
	if !strings.Contains(out.String(), "  signature: verified by ") {
		t.Errorf("SHA-1 signature was not verified:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "  version:   v1") {
		t.Errorf("report does not show the version:\n%s", out.String())
	}
	if !strings.Contains(logs.String(), "SHA-1 signatures enabled") {
		t.Errorf("missing SHA-1 log line in %q", logs.String())
	}
}

func TestRunErrors(t *testing.T) {
	logger, _ := newLoggerAndBuffer()

	var missing config
	missing.Certsig.Bundles = []string{filepath.Join(t.TempDir(), "missing.pem")}
	if err := run(logger, &bytes.Buffer{}, missing, fakeClock(testNow)); err == nil {
		t.Error("expected an error for a missing bundle")
	}

	empty := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(empty, []byte("nothing here"), 0o600); err != nil {
		t.Fatal(err)
	}
	var noCerts config
	noCerts.Certsig.Bundles = []string{empty}
	if err := run(logger, &bytes.Buffer{}, noCerts, fakeClock(testNow)); err == nil {
		t.Error("expected an error for a bundle without certificates")
	}

	var badKey config
	badKey.Certsig.Keys = []string{empty}
	if err := run(logger, &bytes.Buffer{}, badKey, fakeClock(testNow)); err == nil {
		t.Error("expected an error for an unreadable key")
	}
}
