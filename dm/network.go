package dm

import (
	"fmt"
	"strings"

	"github.com/acsense/uspagent/sysinfo"
	"github.com/acsense/uspagent/uci"
)

// Selectors for the network-facing subtrees.
const (
	SelIPInterface = "Device.IP.Interface."
	SelDHCPv4      = "Device.DHCPv4."
	SelHosts       = "Device.Hosts."
)

// IPInterface maps the LAN interface parameters onto the native
// configuration store.
type IPInterface struct {
	UCI *uci.Client
}

func (h *IPInterface) Get(path string) (map[string]string, error) {
	m := make(map[string]string)
	wantAll := path == SelIPInterface
	if wantAll || strings.Contains(path, "IPv4Address.") || strings.HasSuffix(path, "IPAddress") {
		m[SelIPInterface+"1.IPv4Address.1.IPAddress"] = h.UCI.Get("network.lan.ipaddr")
	}
	if wantAll || strings.HasSuffix(path, "SubnetMask") {
		m[SelIPInterface+"1.IPv4Address.1.SubnetMask"] = h.UCI.Get("network.lan.netmask")
	}
	return m, nil
}

func (h *IPInterface) Set(path, value string) error {
	var option string
	switch {
	case strings.HasSuffix(path, ".IPAddress"):
		option = "network.lan.ipaddr"
	case strings.HasSuffix(path, ".SubnetMask"):
		option = "network.lan.netmask"
	default:
		return fmt.Errorf("unknown interface parameter %s", path)
	}
	if err := h.UCI.Set(option, value); err != nil {
		return err
	}
	return h.UCI.Commit("network")
}

// DHCPv4 exposes the DHCP server pool configuration.
type DHCPv4 struct {
	UCI *uci.Client
}

func (h *DHCPv4) Get(path string) (map[string]string, error) {
	m := make(map[string]string)
	wantAll := path == SelDHCPv4
	if wantAll || strings.HasSuffix(path, "MinAddress") {
		m[SelDHCPv4+"Server.Pool.1.MinAddress"] = h.UCI.Get("dhcp.lan.start")
	}
	if wantAll || strings.HasSuffix(path, "MaxAddress") {
		m[SelDHCPv4+"Server.Pool.1.MaxAddress"] = h.UCI.Get("dhcp.lan.limit")
	}
	if wantAll || strings.HasSuffix(path, "LeaseTime") {
		m[SelDHCPv4+"Server.Pool.1.LeaseTime"] = h.UCI.Get("dhcp.lan.leasetime")
	}
	return m, nil
}

func (h *DHCPv4) Set(path, value string) error {
	var option string
	switch {
	case strings.HasSuffix(path, ".MinAddress"):
		option = "dhcp.lan.start"
	case strings.HasSuffix(path, ".MaxAddress"):
		option = "dhcp.lan.limit"
	case strings.HasSuffix(path, ".LeaseTime"):
		option = "dhcp.lan.leasetime"
	default:
		return fmt.Errorf("unknown dhcp parameter %s", path)
	}
	if err := h.UCI.Set(option, value); err != nil {
		return err
	}
	return h.UCI.Commit("dhcp")
}

// Hosts lists attached devices from the kernel ARP table. Read-only.
type Hosts struct {
	Info *sysinfo.Reader
}

func (h *Hosts) Get(path string) (map[string]string, error) {
	entries := h.Info.ARPEntries()
	m := map[string]string{
		SelHosts + "HostNumberOfEntries": fmt.Sprintf("%d", len(entries)),
	}
	for i, e := range entries {
		base := fmt.Sprintf("%sHost.%d.", SelHosts, i+1)
		m[base+"IPAddress"] = e.IP
		m[base+"PhysAddress"] = e.MAC
	}
	return m, nil
}
