// Package sysinfo reads device identity and telemetry values from the
// running system. Every reader returns the empty string when a value
// cannot be resolved; callers treat "" as not-available.
package sysinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Reader resolves values against configurable roots so tests can point
// it at fixture directories.
type Reader struct {
	// Proc is the procfs mount point, normally "/proc".
	Proc string
	// Etc is the directory holding release files, normally "/etc".
	Etc string
}

// NewReader returns a Reader against the real system paths.
func NewReader() *Reader {
	return &Reader{Proc: "/proc", Etc: "/etc"}
}

// Uptime returns the system uptime formatted as "Xd Xh Xm Xs".
func (r *Reader) Uptime() string {
	content, err := os.ReadFile(filepath.Join(r.Proc, "uptime"))
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(content))
	if len(fields) == 0 {
		return ""
	}
	secsF, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return ""
	}
	secs := uint64(secsF)
	return fmt.Sprintf("%dd %dh %dm %ds",
		secs/86400, (secs%86400)/3600, (secs%3600)/60, secs%60)
}

// LoadAvg returns the three load averages, e.g. "0.10 0.05 0.01".
func (r *Reader) LoadAvg() string {
	content, err := os.ReadFile(filepath.Join(r.Proc, "loadavg"))
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(content))
	if len(fields) < 3 {
		return ""
	}
	return strings.Join(fields[:3], " ")
}

// FreeMem returns free memory in kB as a decimal string.
func (r *Reader) FreeMem() string {
	content, err := os.ReadFile(filepath.Join(r.Proc, "meminfo"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(content), "\n") {
		rest, ok := strings.CutPrefix(line, "MemFree:")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return ""
		}
		if _, err := strconv.ParseUint(fields[0], 10, 64); err != nil {
			return ""
		}
		return fields[0]
	}
	return ""
}

// FirmwareVersion reads the firmware revision from the release file,
// falling back to the plain version file.
func (r *Reader) FirmwareVersion() string {
	if content, err := os.ReadFile(filepath.Join(r.Etc, "openwrt_release")); err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			if rest, ok := strings.CutPrefix(line, "DISTRIB_REVISION="); ok {
				return strings.Trim(strings.TrimSpace(rest), `'"`)
			}
		}
	}
	if content, err := os.ReadFile(filepath.Join(r.Etc, "openwrt_version")); err == nil {
		return strings.TrimSpace(string(content))
	}
	return ""
}

// Hostname returns the system hostname.
func (r *Reader) Hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// ARPEntry is one complete row of the kernel ARP table.
type ARPEntry struct {
	IP  string
	MAC string
}

// ARPEntries parses the ARP table, skipping incomplete entries.
func (r *Reader) ARPEntries() []ARPEntry {
	content, err := os.ReadFile(filepath.Join(r.Proc, "net", "arp"))
	if err != nil {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	var entries []ARPEntry
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		// IP address | HW type | Flags | HW address | Mask | Device
		if len(fields) < 4 || fields[3] == "00:00:00:00:00:00" {
			continue
		}
		entries = append(entries, ARPEntry{IP: fields[0], MAC: fields[3]})
	}
	return entries
}
