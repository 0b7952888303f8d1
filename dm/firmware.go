package dm

import (
	"fmt"
	"strings"

	"github.com/acsense/uspagent/sysinfo"
)

// SelFirmware is the selector for the firmware subtree.
const SelFirmware = "Device.X_ACS_Firmware."

// DefaultFirmwareOp is the invocable suffix used when none is
// configured. Controller deployments disagree on the name (Download()
// vs Update()), so it stays configurable.
const DefaultFirmwareOp = "Download()"

// Upgrader retrieves and applies a firmware image. It is an external
// collaborator; applying normally does not return because the device
// reboots.
type Upgrader interface {
	Upgrade(url string) error
}

// Firmware serves the available-version parameter and dispatches the
// firmware upgrade invocable.
type Firmware struct {
	Info *sysinfo.Reader
	// Op is the invocable suffix, e.g. "Download()".
	Op       string
	Upgrader Upgrader
}

func (h *Firmware) op() string {
	if h.Op == "" {
		return DefaultFirmwareOp
	}
	return h.Op
}

func (h *Firmware) Get(path string) (map[string]string, error) {
	if path == SelFirmware || strings.HasSuffix(path, "AvailableVersion") {
		return map[string]string{
			SelFirmware + "AvailableVersion": h.Info.FirmwareVersion(),
		}, nil
	}
	return nil, nil
}

func (h *Firmware) Operate(command string, args map[string]string) (map[string]string, error) {
	if command != SelFirmware+h.op() {
		return nil, ErrCommandNotFound
	}
	url := args["URL"]
	if url == "" {
		return nil, fmt.Errorf("firmware upgrade requires a URL input argument")
	}
	if h.Upgrader == nil {
		return nil, fmt.Errorf("no firmware upgrader configured")
	}
	if err := h.Upgrader.Upgrade(url); err != nil {
		return nil, err
	}
	return map[string]string{"Status": "Applied"}, nil
}
