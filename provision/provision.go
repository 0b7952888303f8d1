// Package provision drives the device from its shared bootstrap
// identity to a uniquely issued one. The exchange is controller
// mediated: the agent only requests issuance (by returning a signing
// request) and applies the result; it never signs anything itself.
package provision

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"sync"

	"github.com/acsense/uspagent/cred"
)

// State is the device's identity state.
type State int

const (
	// Bootstrap: only the shared, non-unique credential is held.
	Bootstrap State = iota
	// Provisioning: a signing exchange is in flight.
	Provisioning
	// Provisioned: the uniquely issued credential is on disk.
	Provisioned
)

func (s State) String() string {
	switch s {
	case Bootstrap:
		return "bootstrap"
	case Provisioning:
		return "provisioning"
	case Provisioned:
		return "provisioned"
	}
	return "unknown"
}

// Parameter names carried by the credential write request.
const (
	ParamCACert     = "CACert"
	ParamCert       = "Certificate"
	ParamPrivateKey = "PrivateKey"
)

// Machine is the provisioning state machine. All transitions are
// driven by inbound controller requests; any failure reverts to
// Bootstrap so the exchange can be retried on a later connection.
type Machine struct {
	store      *cred.Store
	endpointID string

	mu            sync.Mutex
	state         State
	onProvisioned func()
}

// New builds a machine whose initial state reflects what is on disk.
func New(store *cred.Store, endpointID string) *Machine {
	m := &Machine{store: store, endpointID: endpointID}
	if store.Provisioned() {
		m.state = Provisioned
	}
	return m
}

// State returns the current identity state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnProvisioned registers a callback fired after the issued credential
// set is durably written. The agent uses it to close the session so the
// transport reconnects with the new credential.
func (m *Machine) OnProvisioned(fn func()) {
	m.mu.Lock()
	m.onProvisioned = fn
	m.mu.Unlock()
}

// IssueCert handles the certificate-issuance invoke: generate a fresh
// key pair, build a signing request naming this endpoint, and move to
// Provisioning. The CSR travels back to the controller as the
// operation's sole output argument.
func (m *Machine) IssueCert() (map[string]string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("provision: generate key: %w", err)
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: m.endpointID},
	}, key)
	if err != nil {
		return nil, fmt.Errorf("provision: create csr: %w", err)
	}
	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})

	m.mu.Lock()
	m.state = Provisioning
	m.mu.Unlock()

	slog.Info("certificate signing request generated", "endpoint", m.endpointID)
	return map[string]string{"CSR": string(csrPEM)}, nil
}

// ApplyIssued consumes the credential write request. All three values
// must be present; they are persisted atomically and the machine moves
// to Provisioned. On any failure the previous credential set is left
// untouched and the state reverts to Bootstrap.
func (m *Machine) ApplyIssued(params map[string]string) error {
	ca, cert, key := params[ParamCACert], params[ParamCert], params[ParamPrivateKey]
	if ca == "" || cert == "" || key == "" {
		m.revert()
		return fmt.Errorf("provision: credential material incomplete (need %s, %s, %s)",
			ParamCACert, ParamCert, ParamPrivateKey)
	}
	if err := m.store.SaveIssued([]byte(ca), []byte(cert), []byte(key)); err != nil {
		m.revert()
		return err
	}

	m.mu.Lock()
	m.state = Provisioned
	fn := m.onProvisioned
	m.mu.Unlock()

	slog.Info("device provisioned", "endpoint", m.endpointID)
	if fn != nil {
		fn()
	}
	return nil
}

func (m *Machine) revert() {
	m.mu.Lock()
	if m.state != Provisioned {
		m.state = Bootstrap
	}
	m.mu.Unlock()
	slog.Warn("provisioning failed, reverting to bootstrap identity")
}
