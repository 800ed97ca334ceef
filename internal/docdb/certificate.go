package docdb

import (
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/pkcs12"
)

// Certificate holds client certificate material used to authenticate
// against a remote database. Close wipes the key material; after that
// TLS returns ErrCertificateClosed.
type Certificate struct {
	mu     sync.Mutex
	cert   *tls.Certificate
	raw    []byte
	closed bool
}

// NewCertificate wraps an already parsed certificate.
func NewCertificate(cert tls.Certificate) *Certificate {
	return &Certificate{cert: &cert}
}

// LoadX509KeyPair reads a PEM encoded certificate and private key.
func LoadX509KeyPair(certFile, keyFile string) (*Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("reading certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		clear(keyPEM)
		return nil, fmt.Errorf("parsing key pair: %w", err)
	}

	return &Certificate{cert: &cert, raw: keyPEM}, nil
}

// LoadPKCS12 reads a password protected PKCS#12 (.pfx) bundle.
func LoadPKCS12(path, password string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pkcs12 bundle: %w", err)
	}
	defer clear(data)

	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("decoding pkcs12 bundle: %w", err)
	}

	var pemData []byte
	for _, b := range blocks {
		pemData = append(pemData, pem.EncodeToMemory(b)...)
	}

	cert, err := tls.X509KeyPair(pemData, pemData)
	if err != nil {
		clear(pemData)
		return nil, fmt.Errorf("parsing pkcs12 key pair: %w", err)
	}

	return &Certificate{cert: &cert, raw: pemData}, nil
}

// TLS returns a copy of the certificate for use in a tls.Config.
func (c *Certificate) TLS() (tls.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return tls.Certificate{}, ErrCertificateClosed
	}

	return *c.cert, nil
}

// Closed reports whether Close has been called.
func (c *Certificate) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Close wipes the certificate chain and the raw key material. It is safe
// to call more than once.
func (c *Certificate) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	if c.cert != nil {
		for _, der := range c.cert.Certificate {
			clear(der)
		}

		c.cert.PrivateKey = nil
		c.cert.Leaf = nil
		c.cert = nil
	}

	clear(c.raw)
	c.raw = nil

	return nil
}
