package docdb

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyPair(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idsrv-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "client.crt")
	keyFile = filepath.Join(dir, "client.key")

	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))

	return certFile, keyFile
}

func TestLoadX509KeyPair(t *testing.T) {
	certFile, keyFile := writeKeyPair(t)

	cert, err := LoadX509KeyPair(certFile, keyFile)
	require.NoError(t, err)

	tlsCert, err := cert.TLS()
	require.NoError(t, err)
	assert.Len(t, tlsCert.Certificate, 1)
	assert.NotNil(t, tlsCert.PrivateKey)
	assert.False(t, cert.Closed())
}

func TestLoadX509KeyPair_MissingFile(t *testing.T) {
	_, err := LoadX509KeyPair(filepath.Join(t.TempDir(), "nope.crt"), "nope.key")
	assert.Error(t, err)
}

func TestLoadX509KeyPair_Mismatch(t *testing.T) {
	certFile, _ := writeKeyPair(t)
	_, otherKey := writeKeyPair(t)

	_, err := LoadX509KeyPair(certFile, otherKey)
	assert.Error(t, err)
}

func TestLoadPKCS12_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pfx")
	require.NoError(t, os.WriteFile(path, []byte("not a pfx"), 0o600))

	_, err := LoadPKCS12(path, "secret")
	assert.Error(t, err)
}

func TestCertificateClose_WipesKeyMaterial(t *testing.T) {
	certFile, keyFile := writeKeyPair(t)

	cert, err := LoadX509KeyPair(certFile, keyFile)
	require.NoError(t, err)

	der := cert.cert.Certificate[0]
	raw := cert.raw

	require.NoError(t, cert.Close())
	assert.True(t, cert.Closed())

	for _, b := range der {
		require.Zero(t, b)
	}
	for _, b := range raw {
		require.Zero(t, b)
	}

	_, err = cert.TLS()
	assert.ErrorIs(t, err, ErrCertificateClosed)

	// Second close is a no-op.
	assert.NoError(t, cert.Close())
}

func TestCertificate_ClosedWithStore(t *testing.T) {
	certFile, keyFile := writeKeyPair(t)

	cert, err := LoadX509KeyPair(certFile, keyFile)
	require.NoError(t, err)

	s := testStore(t)
	s.AfterClose(cert.Close)

	require.NoError(t, s.Close())
	assert.True(t, cert.Closed())
}
