package der

import (
	"bytes"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/letsencrypt/certsig/core"
)

const pemTypeCertificate = "CERTIFICATE"

// ErrNoCertificates is returned by DecodePEM when the input holds no
// CERTIFICATE block.
var ErrNoCertificates = errors.New("der: no CERTIFICATE PEM blocks found")

// DecodePEM returns the DER bytes of every CERTIFICATE block in data, in
// order. Blocks of other types are skipped.
func DecodePEM(data []byte) ([][]byte, error) {
	var ders [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != pemTypeCertificate {
			continue
		}
		ders = append(ders, block.Bytes)
	}
	if len(ders) == 0 {
		return nil, ErrNoCertificates
	}
	return ders, nil
}

// EncodePEM encodes cert as a single CERTIFICATE block.
func EncodePEM(cert core.Certificate) ([]byte, error) {
	der, err := EncodeCertificate(cert)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: der}), nil
}

// EncodePEMChain encodes certs as concatenated CERTIFICATE blocks, in the
// order given.
func EncodePEMChain(certs ...core.Certificate) ([]byte, error) {
	chain := make([][]byte, 0, len(certs))
	for i, cert := range certs {
		block, err := EncodePEM(cert)
		if err != nil {
			return nil, fmt.Errorf("encoding certificate %d: %w", i, err)
		}
		chain = append(chain, block)
	}
	return bytes.Join(chain, []byte{}), nil
}
