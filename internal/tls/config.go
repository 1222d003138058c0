package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"

	"example.com/me/rawtap/config"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
)

// selfSignedValidity срок действия самоподписанного сертификата
const selfSignedValidity = 365 * 24 * time.Hour

// NewTLSConfig создает TLS конфигурацию из конфига.
// Без файлов сертификата используется самоподписанный сертификат.
func NewTLSConfig(tlsConfig *config.TLSConfig) (*tls.Config, error) {
	if tlsConfig == nil || !tlsConfig.Enabled {
		return nil, nil
	}

	if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		return serverConfig(cert), nil
	}

	cert, err := GenerateSelfSignedCert()
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	logger.Debug(constants.ComponentTransport, "Using self-signed certificate (testing only)")
	return serverConfig(cert), nil
}

func serverConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}

// NewTLSConfigForQUIC создает TLS конфигурацию для QUIC.
// QUIC всегда шифрован, поэтому выключенный TLS в конфиге означает самоподписанный сертификат.
func NewTLSConfigForQUIC(tlsConfig *config.TLSConfig, nextProtos []string) (*tls.Config, error) {
	if tlsConfig == nil || !tlsConfig.Enabled {
		tlsConfig = &config.TLSConfig{Enabled: true}
	}

	cfg, err := NewTLSConfig(tlsConfig)
	if err != nil {
		return nil, err
	}
	cfg.NextProtos = nextProtos
	return cfg, nil
}

// GenerateSelfSignedCert генерирует самоподписанный сертификат ECDSA P-256
// для localhost и loopback адресов
func GenerateSelfSignedCert() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"rawtap"}, CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(selfSignedValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
