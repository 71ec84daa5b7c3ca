package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// TLSResult holds the TLS config and optional autocert manager.
type TLSResult struct {
	Config      *tls.Config
	AutocertMgr *autocert.Manager // non-nil when using Let's Encrypt
}

// HasTLS reports whether cfg asks for HTTPS at all.
func (cfg WebConfig) HasTLS() bool {
	return cfg.Domain != "" || (cfg.CertFile != "" && cfg.KeyFile != "") || cfg.CertDir != ""
}

// SetupTLS picks the web listener's certificate source, in order:
// Let's Encrypt for cfg.Domain, the configured cert/key pair, or a
// self-signed pair kept in cfg.CertDir.
func SetupTLS(cfg WebConfig) (*TLSResult, error) {
	switch {
	case cfg.Domain != "":
		log.Printf("tls: using Let's Encrypt for domain %q", cfg.Domain)
		cacheDir := filepath.Join(cfg.CertDir, "autocert-cache")
		if err := os.MkdirAll(cacheDir, 0o700); err != nil {
			return nil, fmt.Errorf("tls: autocert cache dir: %w", err)
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.Domain),
			Cache:      autocert.DirCache(cacheDir),
		}
		return &TLSResult{Config: m.TLSConfig(), AutocertMgr: m}, nil

	case cfg.CertFile != "" && cfg.KeyFile != "":
		log.Printf("tls: loading cert from %s, key from %s", cfg.CertFile, cfg.KeyFile)
		return loadKeyPair(cfg.CertFile, cfg.KeyFile)

	default:
		return selfSigned(cfg.CertDir, cfg.Host)
	}
}

func loadKeyPair(certPath, keyPath string) (*TLSResult, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("tls: load key pair: %w", err)
	}
	return &TLSResult{Config: &tls.Config{Certificates: []tls.Certificate{cert}}}, nil
}

// selfSigned loads the pair in dir, generating it on first use. host is
// added to the certificate names when it is set.
func selfSigned(dir, host string) (*TLSResult, error) {
	certPath := filepath.Join(dir, "self-signed.crt")
	keyPath := filepath.Join(dir, "self-signed.key")
	if fileExists(certPath) && fileExists(keyPath) {
		log.Printf("tls: loading existing self-signed cert from %s", dir)
		return loadKeyPair(certPath, keyPath)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("tls: cert dir: %w", err)
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("tls: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("tls: serial: %w", err)
	}

	names := []string{"localhost"}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		names = append(names, host)
	}
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"TinyMUD"}, CommonName: names[len(names)-1]},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              names,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("tls: create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("tls: marshal key: %w", err)
	}

	if err := writePEM(certPath, "CERTIFICATE", der, 0o644); err != nil {
		return nil, err
	}
	if err := writePEM(keyPath, "EC PRIVATE KEY", keyDER, 0o600); err != nil {
		return nil, err
	}
	log.Printf("tls: self-signed cert written to %s", dir)
	return loadKeyPair(certPath, keyPath)
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("tls: write %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
