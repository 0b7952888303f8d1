// Package cred manages the agent's two credential sets: the shared
// bootstrap pair every unprovisioned device carries, and the uniquely
// issued triple (CA certificate, certificate, private key) written
// during provisioning. Presence of the issued triple on disk is the
// durable representation of a provisioned identity.
package cred

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// File names of the issued credential set inside the store directory.
const (
	caFileName   = "ca.crt"
	certFileName = "client.crt"
	keyFileName  = "client.key"
)

// Store locates credential files and performs the atomic replace of
// the issued set. It holds no file contents; transports read the files
// each time they build a TLS session, so a freshly issued credential is
// picked up on the next connect.
type Store struct {
	// Dir holds the issued credential files.
	Dir string

	// Bootstrap credential paths, present on every device from
	// manufacture.
	BootstrapCA   string
	BootstrapCert string
	BootstrapKey  string
}

// NewStore returns a store rooted at dir using the given bootstrap
// credential paths.
func NewStore(dir, bootstrapCA, bootstrapCert, bootstrapKey string) *Store {
	return &Store{
		Dir:           dir,
		BootstrapCA:   bootstrapCA,
		BootstrapCert: bootstrapCert,
		BootstrapKey:  bootstrapKey,
	}
}

func (s *Store) caPath() string   { return filepath.Join(s.Dir, caFileName) }
func (s *Store) certPath() string { return filepath.Join(s.Dir, certFileName) }
func (s *Store) keyPath() string  { return filepath.Join(s.Dir, keyFileName) }

// Provisioned reports whether the full issued triple exists on disk.
func (s *Store) Provisioned() bool {
	for _, p := range []string{s.caPath(), s.certPath(), s.keyPath()} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Active returns the (ca, cert, key) file paths the transport layer
// should authenticate with: the issued set when provisioned, otherwise
// the bootstrap set.
func (s *Store) Active() (ca, cert, key string) {
	if s.Provisioned() {
		return s.caPath(), s.certPath(), s.keyPath()
	}
	return s.BootstrapCA, s.BootstrapCert, s.BootstrapKey
}

// SaveIssued persists the issued credential triple. The three files are
// staged as temporary siblings and the current set is backed up before
// any of them is replaced, so a failure at any point rolls the store
// back to the previous set byte-identical; a reader never observes a
// partially written file or a mixed pair.
func (s *Store) SaveIssued(ca, cert, key []byte) error {
	if len(ca) == 0 || len(cert) == 0 || len(key) == 0 {
		return fmt.Errorf("cred: issued credential material is incomplete")
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("cred: create %s: %w", s.Dir, err)
	}

	files := []struct {
		path string
		data []byte
	}{
		{s.caPath(), ca},
		{s.certPath(), cert},
		{s.keyPath(), key},
	}

	var temps, backups, renamed []string
	fail := func(what string, err error) error {
		for _, p := range renamed {
			os.Remove(p)
		}
		for _, p := range backups {
			os.Rename(p+".bak", p)
		}
		for _, tmp := range temps {
			os.Remove(tmp)
		}
		return fmt.Errorf("cred: %s: %w", what, err)
	}

	for _, f := range files {
		tmp := f.path + ".tmp"
		if err := os.WriteFile(tmp, f.data, 0o600); err != nil {
			return fail("write "+tmp, err)
		}
		temps = append(temps, tmp)
	}

	// Move the current set aside before replacing anything, so every
	// rename below targets a free path and a mid-sequence failure can
	// restore the full previous set.
	for _, f := range files {
		if _, err := os.Stat(f.path); err != nil {
			continue
		}
		if err := os.Rename(f.path, f.path+".bak"); err != nil {
			return fail("back up "+f.path, err)
		}
		backups = append(backups, f.path)
	}
	for i, f := range files {
		if err := os.Rename(temps[i], f.path); err != nil {
			return fail("rename "+f.path, err)
		}
		renamed = append(renamed, f.path)
	}
	for _, p := range backups {
		os.Remove(p + ".bak")
	}

	slog.Info("issued credentials saved",
		"ca", s.caPath(), "cert", s.certPath(), "key", s.keyPath())
	return nil
}
