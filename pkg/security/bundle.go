package security

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/redkeeper/pkg/types"
)

// LoadBundle reads the three attached certificate resources and validates
// them as a whole. The bundle is all-or-nothing:
//
//   - no file attached:        types.ErrNotConfigured
//   - one or two attached:     types.ErrInvalidTLSConfig
//   - three attached:          the key must match the certificate and the CA
//     must verify it, otherwise types.ErrInvalidTLSConfig
//
// certDir is the directory the files will occupy inside the workload
// container; the returned bundle carries those paths for the renderer.
func LoadBundle(caPath, certPath, keyPath, certDir string) (*types.TLSBundle, error) {
	caPEM, caOK, err := readResource(caPath)
	if err != nil {
		return nil, err
	}
	certPEM, certOK, err := readResource(certPath)
	if err != nil {
		return nil, err
	}
	keyPEM, keyOK, err := readResource(keyPath)
	if err != nil {
		return nil, err
	}

	present := 0
	for _, ok := range []bool{caOK, certOK, keyOK} {
		if ok {
			present++
		}
	}
	switch present {
	case 0:
		return nil, fmt.Errorf("no certificate resources attached: %w", types.ErrNotConfigured)
	case 3:
	default:
		return nil, fmt.Errorf("%d of 3 certificate resources attached: %w",
			present, types.ErrInvalidTLSConfig)
	}

	// The key must correspond to the certificate.
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("certificate/key mismatch: %w: %v", types.ErrInvalidTLSConfig, err)
	}

	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w: %v", types.ErrInvalidTLSConfig, err)
	}

	ca, err := parseCertPEM(caPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w: %v", types.ErrInvalidTLSConfig, err)
	}

	if err := validateCertChain(cert, ca); err != nil {
		return nil, fmt.Errorf("CA does not verify certificate: %w: %v", types.ErrInvalidTLSConfig, err)
	}

	return &types.TLSBundle{
		CACert:     caPEM,
		Cert:       certPEM,
		Key:        keyPEM,
		CACertPath: filepath.Join(certDir, "ca.crt"),
		CertPath:   filepath.Join(certDir, "redis.crt"),
		KeyPath:    filepath.Join(certDir, "redis.key"),
	}, nil
}

// readResource reads one resource file. An empty path or a missing file
// counts as not attached; an attached but empty file is invalid.
func readResource(path string) ([]byte, bool, error) {
	if path == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read resource %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, false, fmt.Errorf("resource %s is empty: %w", path, types.ErrInvalidTLSConfig)
	}
	return data, true, nil
}

// parseCertPEM decodes a single PEM certificate block
func parseCertPEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

// validateCertChain validates that a certificate is signed by the CA
func validateCertChain(cert, ca *x509.Certificate) error {
	roots := x509.NewCertPool()
	roots.AddCert(ca)

	opts := x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("certificate verification failed: %w", err)
	}

	return nil
}
