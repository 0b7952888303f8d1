package dm

import (
	"strings"

	"github.com/acsense/uspagent/sysinfo"
)

// SelDeviceInfo is the selector for the device-identity subtree.
const SelDeviceInfo = "Device.DeviceInfo."

// DeviceInfo serves identity and health parameters. The subtree is
// read-only: it implements Getter only.
type DeviceInfo struct {
	Info   *sysinfo.Reader
	Model  string
	Serial string
}

func (h *DeviceInfo) params() map[string]string {
	return map[string]string{
		SelDeviceInfo + "HostName":        h.Info.Hostname(),
		SelDeviceInfo + "SoftwareVersion": h.Info.FirmwareVersion(),
		SelDeviceInfo + "HardwareVersion": h.Model,
		SelDeviceInfo + "SerialNumber":    h.Serial,
		SelDeviceInfo + "UpTime":          h.Info.Uptime(),
		SelDeviceInfo + "LoadAvg":         h.Info.LoadAvg(),
		SelDeviceInfo + "FreeMem":         h.Info.FreeMem(),
	}
}

func (h *DeviceInfo) Get(path string) (map[string]string, error) {
	all := h.params()
	if path == SelDeviceInfo || path == strings.TrimSuffix(SelDeviceInfo, ".") {
		return all, nil
	}
	if v, ok := all[path]; ok {
		return map[string]string{path: v}, nil
	}
	return nil, nil
}
