package dm

import (
	"fmt"
	"strings"

	"github.com/acsense/uspagent/uci"
)

// SelWiFi is the selector for the wireless subtree.
const SelWiFi = "Device.WiFi."

// WiFi maps wireless parameters onto the native configuration store.
// Values are read and written live, never cached.
type WiFi struct {
	UCI *uci.Client
}

func (h *WiFi) Get(path string) (map[string]string, error) {
	m := make(map[string]string)
	wantAll := path == SelWiFi

	if wantAll || strings.Contains(path, "SSID.") {
		if ssid := h.UCI.Get("wireless.@wifi-iface[0].ssid"); ssid != "" {
			m[SelWiFi+"SSID.1.SSID"] = ssid
		}
	}
	if wantAll || strings.Contains(path, "AccessPoint.") {
		m[SelWiFi+"AccessPoint.1.Security.ModeEnabled"] = h.UCI.Get("wireless.@wifi-iface[0].encryption")
		m[SelWiFi+"AccessPoint.1.Security.KeyPassphrase"] = h.UCI.Get("wireless.@wifi-iface[0].key")
	}
	if wantAll || strings.Contains(path, "Radio.") {
		m[SelWiFi+"Radio.1.Channel"] = h.UCI.Get("wireless.radio0.channel")
	}
	return m, nil
}

func (h *WiFi) Set(path, value string) error {
	var option string
	switch {
	case strings.HasSuffix(path, ".SSID"):
		option = "wireless.@wifi-iface[0].ssid"
	case strings.HasSuffix(path, ".KeyPassphrase"):
		option = "wireless.@wifi-iface[0].key"
	case strings.HasSuffix(path, ".ModeEnabled"):
		option = "wireless.@wifi-iface[0].encryption"
	case strings.HasSuffix(path, ".Channel"):
		option = "wireless.radio0.channel"
	default:
		return fmt.Errorf("unknown wireless parameter %s", path)
	}
	if err := h.UCI.Set(option, value); err != nil {
		return err
	}
	return h.UCI.Commit("wireless")
}
