package dm

import (
	"fmt"
	"strings"

	"github.com/acsense/uspagent/provision"
)

// SelSecurity is the certificate provisioning subtree.
const SelSecurity = "Device.X_ACS_Security."

// Security exposes the provisioning machine as a subtree: IssueCert()
// starts the exchange and the issued material arrives as one object
// write so it can be persisted atomically.
type Security struct {
	Machine *provision.Machine
}

func (s *Security) Get(path string) (map[string]string, error) {
	return map[string]string{
		SelSecurity + "ProvisioningState": s.Machine.State().String(),
	}, nil
}

// SetObject accepts the credential triple written by the controller.
// Per-parameter writes are rejected by never implementing Setter: the
// three values are only meaningful together.
func (s *Security) SetObject(objPath string, params map[string]string) error {
	return s.Machine.ApplyIssued(params)
}

func (s *Security) Operate(command string, args map[string]string) (map[string]string, error) {
	if strings.TrimPrefix(command, SelSecurity) != "IssueCert()" {
		return nil, ErrCommandNotFound
	}
	out, err := s.Machine.IssueCert()
	if err != nil {
		return nil, fmt.Errorf("issue cert: %w", err)
	}
	return out, nil
}
