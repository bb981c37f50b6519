// Package tls builds the optional HTTPS listener configuration of the API.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// ErrIncompleteKeyPair indicates only one of the certificate and key files is set.
var ErrIncompleteKeyPair = errors.New("both TLS certificate and key files are required")

const certValidity = 365 * 24 * time.Hour

var defaultHosts = []string{"localhost", "127.0.0.1"}

// GenerateSelfSignedCert creates an in-memory P-256 certificate for hosts,
// or for localhost and 127.0.0.1 when hosts is empty. IP hosts become IP
// SANs, the rest DNS SANs; hosts[0] is the subject CN.
func GenerateSelfSignedCert(hosts ...string) (*tls.Certificate, error) {
	if len(hosts) == 0 {
		hosts = defaultHosts
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	template, err := serverTemplate(hosts, time.Now())
	if err != nil {
		return nil, err
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("sign certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse generated certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

func serverTemplate(hosts []string, now time.Time) (*x509.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hosts[0]},
		NotBefore:             now,
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
			continue
		}
		template.DNSNames = append(template.DNSNames, h)
	}
	return template, nil
}

// ServerConfig returns the listener TLS settings. A cert/key file pair wins
// over selfSigned. With neither it returns nil, nil and the API speaks plain
// HTTP, usually behind a terminating proxy.
func ServerConfig(certFile, keyFile string, selfSigned bool) (*tls.Config, error) {
	var cert *tls.Certificate

	switch {
	case certFile != "" && keyFile != "":
		loaded, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load key pair %s, %s: %w", certFile, keyFile, err)
		}
		cert = &loaded
	case certFile != "" || keyFile != "":
		return nil, ErrIncompleteKeyPair
	case selfSigned:
		generated, err := GenerateSelfSignedCert()
		if err != nil {
			return nil, fmt.Errorf("self-signed certificate: %w", err)
		}
		cert = generated
	default:
		return nil, nil
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
