package main

import (
	"crypto"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/jmhodges/clock"
	"go.uber.org/multierr"

	"github.com/letsencrypt/certsig/cmd"
	"github.com/letsencrypt/certsig/core"
	"github.com/letsencrypt/certsig/db"
	"github.com/letsencrypt/certsig/der"
	"github.com/letsencrypt/certsig/verify"
)

type config struct {
	Certsig struct {
		// Bundles are PEM files holding one or more certificates. Every
		// certificate is both checked and offered as a candidate issuer.
		Bundles []string
		// Keys are JSON Web Key files. For each, the certificates issued
		// to that key are listed.
		Keys []string
		// AllowSHA1 registers verifiers for SHA-1 based signatures, which
		// are otherwise reported as insecure.
		AllowSHA1 bool
	}
}

func main() {
	configFile := flag.String(
		"config",
		"test/config/certsig-config.json",
		"File path to the certsig configuration file")
	flag.Parse()
	if *configFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Log to stderr, report to stdout
	logger := log.New(os.Stderr, "certsig ", log.LstdFlags)

	var c config
	err := cmd.ReadConfigFile(*configFile, &c)
	cmd.FailOnError(err, "Reading JSON config file into config structure")

	err = run(logger, os.Stdout, c, clock.New())
	cmd.FailOnError(err, "Checking certificates")
}

// run loads every bundle into a store, then reports on each certificate in
// the order it was loaded. It returns an error if any bundle cannot be read
// or any signature fails to verify.
func run(logger *log.Logger, out io.Writer, c config, clk clock.Clock) error {
	registry := verify.DefaultRegistry()
	if c.Certsig.AllowSHA1 {
		registry = registry.
			With(verify.OIDSignatureSHA1WithRSA, verify.PKCS1v15(crypto.SHA1)).
			With(verify.OIDSignatureECDSAWithSHA1, verify.ECDSA(crypto.SHA1))
		logger.Printf("SHA-1 signatures enabled")
	}

	store := db.NewMemoryStore()
	for _, path := range c.Certsig.Bundles {
		if err := loadBundle(logger, store, path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}

	var failures error
	for _, cert := range store.AllCertificates() {
		describe(out, cert, clk)
		if err := checkIssuer(out, registry, store, cert); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("certificate %s: %w", cert.ID, err))
		}
		fmt.Fprintln(out)
	}

	for _, path := range c.Certsig.Keys {
		if err := listKeyCertificates(out, store, path); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("key %s: %w", path, err))
		}
	}
	return failures
}

func loadBundle(logger *log.Logger, store db.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ders, err := der.DecodePEM(data)
	if err != nil {
		return err
	}
	for i, certDER := range ders {
		cert, err := db.NewCertificate(certDER)
		if err != nil {
			return fmt.Errorf("certificate %d: %w", i, err)
		}
		if store.GetCertificateByID(cert.ID) != nil {
			logger.Printf("Skipping duplicate certificate %s in %s", cert.ID, path)
			continue
		}
		if _, err := store.AddCertificate(cert); err != nil {
			return fmt.Errorf("certificate %d: %w", i, err)
		}
	}
	logger.Printf("Loaded %d certificates from %s", len(ders), path)
	return nil
}

func describe(out io.Writer, cert *db.Certificate, clk clock.Clock) {
	tbs := cert.Cert.TbsCertificate
	fmt.Fprintf(out, "certificate %s\n", cert.ID)
	fmt.Fprintf(out, "  version:   %s\n", tbs.Version)
	fmt.Fprintf(out, "  serial:    %x\n", tbs.SerialNumber)
	fmt.Fprintf(out, "  subject:   %s\n", tbs.Subject)
	fmt.Fprintf(out, "  issuer:    %s\n", tbs.Issuer)

	if cn, ok := cert.Cert.CommonName(); ok {
		if s, ok := core.Text(cn); ok {
			fmt.Fprintf(out, "  CN:        %s\n", s)
		}
	}
	if ou, ok := cert.Cert.OrganizationalUnitName(); ok {
		if s, ok := core.Text(ou); ok {
			fmt.Fprintf(out, "  OU:        %s\n", s)
		}
	}

	validity := "valid"
	if !tbs.Validity.Contains(clk.Now()) {
		validity = "NOT valid now"
	}
	fmt.Fprintf(out, "  validity:  %s to %s (%s)\n",
		tbs.Validity.NotBefore.Value.Format("2006-01-02T15:04:05Z"),
		tbs.Validity.NotAfter.Value.Format("2006-01-02T15:04:05Z"),
		validity)

	if ext, err := cert.Cert.BasicConstraints(); err == nil {
		bc, err := der.ParseBasicConstraints(ext)
		switch {
		case err != nil:
			fmt.Fprintf(out, "  basic constraints: %s\n", err)
		case bc.PathLenConstraint != nil:
			fmt.Fprintf(out, "  basic constraints: CA=%t pathlen=%d\n", bc.CA, *bc.PathLenConstraint)
		default:
			fmt.Fprintf(out, "  basic constraints: CA=%t\n", bc.CA)
		}
	}

	if ext, err := cert.Cert.SubjectAlternativeNames(); err == nil {
		names, err := der.ParseSubjectAltNames(ext)
		if err != nil {
			fmt.Fprintf(out, "  SANs: %s\n", err)
		} else {
			sans := append([]string{}, names.DNSNames...)
			for _, ip := range names.IPAddresses {
				sans = append(sans, ip.String())
			}
			sans = append(sans, names.EmailAddresses...)
			sans = append(sans, names.URIs...)
			fmt.Fprintf(out, "  SANs:      %s\n", strings.Join(sans, ", "))
			for _, name := range names.InvalidDNSNames() {
				fmt.Fprintf(out, "  lint:      invalid dNSName %q\n", name)
			}
		}
	}

	for _, finding := range multierr.Errors(cert.Cert.Validate()) {
		fmt.Fprintf(out, "  lint:      %s\n", finding)
	}
}

// checkIssuer looks for a stored certificate whose subject matches cert's
// issuer and whose key verifies cert's signature.
func checkIssuer(out io.Writer, registry *verify.Registry, store db.Store, cert *db.Certificate) error {
	candidates := store.GetCertificatesBySubject(cert.Cert.TbsCertificate.Issuer)
	if len(candidates) == 0 {
		fmt.Fprintf(out, "  signature: issuer not loaded\n")
		return nil
	}

	var errs error
	for _, candidate := range candidates {
		pub, err := verify.ParsePublicKey(candidate.Cert.TbsCertificate.SubjectPublicKeyInfo)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("issuer %s: %w", candidate.ID, err))
			continue
		}
		ok, err := registry.CheckSignature(cert.Cert, pub)
		if err != nil {
			var insecure verify.InsecureAlgorithmError
			if errors.As(err, &insecure) {
				fmt.Fprintf(out, "  signature: %s\n", err)
				return nil
			}
			errs = multierr.Append(errs, fmt.Errorf("issuer %s: %w", candidate.ID, err))
			continue
		}
		if ok {
			fmt.Fprintf(out, "  signature: verified by %s\n", candidate.ID)
			return nil
		}
	}
	if errs != nil {
		fmt.Fprintf(out, "  signature: %s\n", errs)
		return errs
	}
	fmt.Fprintf(out, "  signature: INVALID\n")
	return errors.New("signature does not verify under any candidate issuer")
}

func listKeyCertificates(out io.Writer, store db.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pub, err := verify.ParseJWK(data)
	if err != nil {
		return err
	}
	keyID, err := db.KeyToID(pub)
	if err != nil {
		return err
	}
	certs, err := store.GetCertificatesByKey(pub)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "key %s (%s): %d certificates\n", keyID, path, len(certs))
	for _, cert := range certs {
		fmt.Fprintf(out, "  %s %s\n", cert.ID, cert.Cert.TbsCertificate.Subject)
	}
	return nil
}
