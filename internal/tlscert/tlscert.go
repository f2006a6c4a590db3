// Package tlscert generates the self-signed key pair the nginx proxy serves.
package tlscert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	KeyFile  = "aibox.key"
	CertFile = "aibox.crt"

	KeyMode  os.FileMode = 0600
	CertMode os.FileMode = 0644
)

// Options controls certificate generation.
type Options struct {
	// Names become subject alternative names. IP literals go into the IP SAN
	// list, everything else into DNS names. Duplicates are dropped.
	Names        []string
	CommonName   string // defaults to the first name
	KeyBits      int    // 2048 when zero
	ValidityDays int    // 3650 when zero
	Now          time.Time
}

// Pair is a PEM-encoded private key and certificate.
type Pair struct {
	KeyPEM  []byte
	CertPEM []byte
}

// Generate creates an RSA key and a self-signed server certificate.
func Generate(opts Options) (*Pair, error) {
	if len(opts.Names) == 0 {
		return nil, fmt.Errorf("at least one subject name is required")
	}
	if opts.KeyBits == 0 {
		opts.KeyBits = 2048
	}
	if opts.ValidityDays == 0 {
		opts.ValidityDays = 3650
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	key, err := rsa.GenerateKey(rand.Reader, opts.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generating serial: %w", err)
	}

	ips, dns := splitNames(opts.Names)
	cn := opts.CommonName
	if cn == "" {
		cn = opts.Names[0]
	}

	// x509 stores whole seconds.
	notBefore := opts.Now.UTC().Truncate(time.Second)
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"aibox"}},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(time.Duration(opts.ValidityDays) * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           ips,
		DNSNames:              dns,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("creating certificate: %w", err)
	}

	return &Pair{
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}, nil
}

func splitNames(names []string) ([]net.IP, []string) {
	var ips []net.IP
	var dns []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		if ip := net.ParseIP(n); ip != nil {
			ips = append(ips, ip)
		} else {
			dns = append(dns, n)
		}
	}
	return ips, dns
}

// FileWriter is the part of the host WritePair needs.
type FileWriter interface {
	WriteFile(path string, data []byte, mode os.FileMode) error
}

// WritePair writes the key (0600) and certificate (0644) into dir and
// returns their paths.
func WritePair(w FileWriter, dir string, p *Pair) (keyPath, certPath string, err error) {
	keyPath = filepath.Join(dir, KeyFile)
	certPath = filepath.Join(dir, CertFile)
	if err := w.WriteFile(keyPath, p.KeyPEM, KeyMode); err != nil {
		return "", "", fmt.Errorf("writing key: %w", err)
	}
	if err := w.WriteFile(certPath, p.CertPEM, CertMode); err != nil {
		return "", "", fmt.Errorf("writing certificate: %w", err)
	}
	return keyPath, certPath, nil
}
