// Package endpoint derives the agent's globally unique protocol
// identity from a hardware address.
package endpoint

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// DefaultOUI is the vendor prefix used when none is configured.
const DefaultOUI = "00005A"

// ID identifies a protocol participant, e.g. "oui:00005A:AABBCCDDEEFF".
type ID string

func (id ID) String() string { return string(id) }

var macRe = regexp.MustCompile(`^[0-9A-F]{12}$`)

// Derive builds the agent ID from a MAC address and an OUI. The result
// is deterministic: the same inputs always produce the same ID. oui may
// be empty, in which case DefaultOUI is used.
func Derive(mac, oui string) (ID, error) {
	if oui == "" {
		oui = DefaultOUI
	}
	suffix := strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac))
	if !macRe.MatchString(suffix) {
		return "", fmt.Errorf("endpoint: %q is not a MAC address", mac)
	}
	return ID(fmt.Sprintf("oui:%s:%s", strings.ToUpper(oui), suffix)), nil
}

// Interface names tried in order when detecting the device MAC. The
// list covers common embedded-router naming (LAN bridge, VLAN-tagged
// ports, mac80211 AP interfaces).
var candidateInterfaces = []string{
	"br-lan",
	"eth0", "eth1",
	"eth0.1",
	"phy0-ap0", "phy1-ap0",
	"wlan0", "wlan1",
	"ra0",
}

// DetectMAC returns the hardware address of the first usable network
// interface, or "" when none can be resolved. A "" result with no
// configured override is a fatal startup condition for the caller.
func DetectMAC() string {
	for _, name := range candidateInterfaces {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			continue
		}
		if mac := usableMAC(iface.HardwareAddr); mac != "" {
			return mac
		}
	}
	// Fall back to any non-loopback interface with a hardware address.
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if mac := usableMAC(iface.HardwareAddr); mac != "" {
			return mac
		}
	}
	return ""
}

func usableMAC(addr net.HardwareAddr) string {
	if len(addr) == 0 {
		return ""
	}
	for _, b := range addr {
		if b != 0 {
			return addr.String()
		}
	}
	return ""
}
