package mtp

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/acsense/uspagent/cred"
)

// clientTLSConfig builds a mutual-TLS config from whichever credential
// set is active. Controllers are addressed by IP or rendezvous name, so
// hostname verification is skipped; the chain is still verified against
// the configured CA.
func clientTLSConfig(store *cred.Store) (*tls.Config, error) {
	caPath, certPath, keyPath := store.Active()

	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("mtp: load client pair: %w", err)
	}
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("mtp: read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("mtp: %s contains no CA certificates", caPath)
	}

	return &tls.Config{
		Certificates:       []tls.Certificate{pair},
		RootCAs:            pool,
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("mtp: peer presented no certificate")
			}
			leaf, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return fmt.Errorf("mtp: parse peer certificate: %w", err)
			}
			inter := x509.NewCertPool()
			for _, raw := range rawCerts[1:] {
				c, err := x509.ParseCertificate(raw)
				if err != nil {
					return fmt.Errorf("mtp: parse peer chain: %w", err)
				}
				inter.AddCert(c)
			}
			_, err = leaf.Verify(x509.VerifyOptions{
				Roots:         pool,
				Intermediates: inter,
				KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
			})
			return err
		},
	}, nil
}
