package provision

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acsense/uspagent/cred"
)

func testStore(t *testing.T) *cred.Store {
	t.Helper()
	dir := t.TempDir()
	return cred.NewStore(filepath.Join(dir, "issued"),
		"/etc/boot-ca.pem", "/etc/boot-cert.pem", "/etc/boot-key.pem")
}

func TestInitialStateReflectsDisk(t *testing.T) {
	store := testStore(t)
	m := New(store, "oui:00005A:AABBCCDDEEFF")
	if got := m.State(); got != Bootstrap {
		t.Fatalf("fresh store: state = %v, want %v", got, Bootstrap)
	}

	if err := store.SaveIssued([]byte("ca"), []byte("cert"), []byte("key")); err != nil {
		t.Fatal(err)
	}
	m = New(store, "oui:00005A:AABBCCDDEEFF")
	if got := m.State(); got != Provisioned {
		t.Fatalf("populated store: state = %v, want %v", got, Provisioned)
	}
}

func TestIssueCertReturnsParsableCSR(t *testing.T) {
	const id = "oui:00005A:AABBCCDDEEFF"
	m := New(testStore(t), id)

	out, err := m.IssueCert()
	if err != nil {
		t.Fatal(err)
	}
	if got := m.State(); got != Provisioning {
		t.Fatalf("state after IssueCert = %v, want %v", got, Provisioning)
	}

	block, _ := pem.Decode([]byte(out["CSR"]))
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		t.Fatalf("CSR output is not a certificate request PEM: %q", out["CSR"])
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		t.Fatalf("parse csr: %v", err)
	}
	if csr.Subject.CommonName != id {
		t.Fatalf("csr CN = %q, want %q", csr.Subject.CommonName, id)
	}
	if err := csr.CheckSignature(); err != nil {
		t.Fatalf("csr signature: %v", err)
	}
}

func TestApplyIssuedPersistsAndFiresCallback(t *testing.T) {
	store := testStore(t)
	m := New(store, "oui:00005A:AABBCCDDEEFF")
	if _, err := m.IssueCert(); err != nil {
		t.Fatal(err)
	}

	fired := false
	m.OnProvisioned(func() { fired = true })

	err := m.ApplyIssued(map[string]string{
		ParamCACert:     "ca-pem",
		ParamCert:       "cert-pem",
		ParamPrivateKey: "key-pem",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.State(); got != Provisioned {
		t.Fatalf("state = %v, want %v", got, Provisioned)
	}
	if !fired {
		t.Fatal("OnProvisioned callback not fired")
	}
	if !store.Provisioned() {
		t.Fatal("store does not report provisioned after apply")
	}
	ca, _, _ := store.Active()
	data, err := os.ReadFile(ca)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ca-pem" {
		t.Fatalf("persisted CA = %q, want %q", data, "ca-pem")
	}
}

func TestApplyIssuedIncompleteReverts(t *testing.T) {
	store := testStore(t)
	m := New(store, "oui:00005A:AABBCCDDEEFF")
	if _, err := m.IssueCert(); err != nil {
		t.Fatal(err)
	}

	err := m.ApplyIssued(map[string]string{ParamCACert: "ca-pem"})
	if err == nil {
		t.Fatal("incomplete material accepted")
	}
	if !strings.Contains(err.Error(), "incomplete") {
		t.Fatalf("error = %v, want incomplete-material error", err)
	}
	if got := m.State(); got != Bootstrap {
		t.Fatalf("state after failure = %v, want %v", got, Bootstrap)
	}
	if store.Provisioned() {
		t.Fatal("partial apply left issued files on disk")
	}
}
