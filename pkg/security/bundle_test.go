package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/redkeeper/pkg/types"
)

// testCA generates a self-signed CA and returns it with its private key.
func testCA(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return cert, key, caPEM
}

// testLeaf issues a server certificate signed by the given CA.
func testLeaf(t *testing.T, ca *x509.Certificate, caKey *ecdsa.PrivateKey) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "redis-0"},
		DNSNames:     []string{"redis-0"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca, &key.PublicKey, caKey)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestLoadBundleNotConfigured(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name                      string
		caPath, certPath, keyPath string
	}{
		{name: "empty paths"},
		{
			name:     "paths to missing files",
			caPath:   filepath.Join(dir, "nope-ca.crt"),
			certPath: filepath.Join(dir, "nope.crt"),
			keyPath:  filepath.Join(dir, "nope.key"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBundle(tt.caPath, tt.certPath, tt.keyPath, "/certs")
			assert.ErrorIs(t, err, types.ErrNotConfigured)
		})
	}
}

func TestLoadBundlePartial(t *testing.T) {
	ca, caKey, caPEM := testCA(t, "test-ca")
	certPEM, keyPEM := testLeaf(t, ca, caKey)
	dir := t.TempDir()

	caPath := writeFile(t, dir, "ca.crt", caPEM)
	certPath := writeFile(t, dir, "redis.crt", certPEM)
	keyPath := writeFile(t, dir, "redis.key", keyPEM)

	tests := []struct {
		name                string
		ca, cert, key       string
	}{
		{name: "only ca", ca: caPath},
		{name: "only cert", cert: certPath},
		{name: "only key", key: keyPath},
		{name: "ca and cert", ca: caPath, cert: certPath},
		{name: "cert and key", cert: certPath, key: keyPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBundle(tt.ca, tt.cert, tt.key, "/certs")
			assert.ErrorIs(t, err, types.ErrInvalidTLSConfig)
		})
	}
}

func TestLoadBundleComplete(t *testing.T) {
	ca, caKey, caPEM := testCA(t, "test-ca")
	certPEM, keyPEM := testLeaf(t, ca, caKey)
	dir := t.TempDir()

	bundle, err := LoadBundle(
		writeFile(t, dir, "ca.crt", caPEM),
		writeFile(t, dir, "redis.crt", certPEM),
		writeFile(t, dir, "redis.key", keyPEM),
		"/var/lib/redis/certs",
	)
	require.NoError(t, err)

	assert.True(t, bundle.Complete())
	assert.Equal(t, "/var/lib/redis/certs/ca.crt", bundle.CACertPath)
	assert.Equal(t, "/var/lib/redis/certs/redis.crt", bundle.CertPath)
	assert.Equal(t, "/var/lib/redis/certs/redis.key", bundle.KeyPath)
}

func TestLoadBundleInconsistent(t *testing.T) {
	ca, caKey, caPEM := testCA(t, "test-ca")
	certPEM, keyPEM := testLeaf(t, ca, caKey)

	otherCA, otherKey, otherCAPEM := testCA(t, "other-ca")
	_, otherLeafKeyPEM := testLeaf(t, otherCA, otherKey)

	dir := t.TempDir()
	caPath := writeFile(t, dir, "ca.crt", caPEM)
	certPath := writeFile(t, dir, "redis.crt", certPEM)
	keyPath := writeFile(t, dir, "redis.key", keyPEM)

	t.Run("key does not match cert", func(t *testing.T) {
		wrongKey := writeFile(t, dir, "wrong.key", otherLeafKeyPEM)
		_, err := LoadBundle(caPath, certPath, wrongKey, "/certs")
		assert.ErrorIs(t, err, types.ErrInvalidTLSConfig)
	})

	t.Run("ca did not sign cert", func(t *testing.T) {
		wrongCA := writeFile(t, dir, "wrong-ca.crt", otherCAPEM)
		_, err := LoadBundle(wrongCA, certPath, keyPath, "/certs")
		assert.ErrorIs(t, err, types.ErrInvalidTLSConfig)
	})

	t.Run("attached but empty file", func(t *testing.T) {
		empty := writeFile(t, dir, "empty.crt", nil)
		_, err := LoadBundle(caPath, empty, keyPath, "/certs")
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrInvalidTLSConfig))
	})
}
