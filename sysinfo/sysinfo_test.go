package sysinfo

import (
	"os"
	"path/filepath"
	"testing"
)

func fixtureReader(t *testing.T, files map[string]string) *Reader {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &Reader{
		Proc: filepath.Join(root, "proc"),
		Etc:  filepath.Join(root, "etc"),
	}
}

func TestUptime(t *testing.T) {
	r := fixtureReader(t, map[string]string{
		"proc/uptime": "93784.53 180000.00\n",
	})
	// 93784s = 1d 2h 3m 4s
	if got := r.Uptime(); got != "1d 2h 3m 4s" {
		t.Errorf("Uptime() = %q", got)
	}
}

func TestLoadAvg(t *testing.T) {
	r := fixtureReader(t, map[string]string{
		"proc/loadavg": "0.10 0.05 0.01 1/120 4567\n",
	})
	if got := r.LoadAvg(); got != "0.10 0.05 0.01" {
		t.Errorf("LoadAvg() = %q", got)
	}
}

func TestFreeMem(t *testing.T) {
	r := fixtureReader(t, map[string]string{
		"proc/meminfo": "MemTotal:  125000 kB\nMemFree:   31337 kB\n",
	})
	if got := r.FreeMem(); got != "31337" {
		t.Errorf("FreeMem() = %q", got)
	}
}

func TestFirmwareVersion(t *testing.T) {
	r := fixtureReader(t, map[string]string{
		"etc/openwrt_release": "DISTRIB_ID='OpenWrt'\nDISTRIB_REVISION='r23942'\n",
	})
	if got := r.FirmwareVersion(); got != "r23942" {
		t.Errorf("FirmwareVersion() = %q", got)
	}

	r = fixtureReader(t, map[string]string{
		"etc/openwrt_version": "22.03.5\n",
	})
	if got := r.FirmwareVersion(); got != "22.03.5" {
		t.Errorf("FirmwareVersion() fallback = %q", got)
	}
}

func TestMissingFilesReturnNotAvailable(t *testing.T) {
	r := fixtureReader(t, nil)
	for name, got := range map[string]string{
		"Uptime":          r.Uptime(),
		"LoadAvg":         r.LoadAvg(),
		"FreeMem":         r.FreeMem(),
		"FirmwareVersion": r.FirmwareVersion(),
	} {
		if got != "" {
			t.Errorf("%s = %q, want empty sentinel", name, got)
		}
	}
}

func TestARPEntries(t *testing.T) {
	r := fixtureReader(t, map[string]string{
		"proc/net/arp": "IP address  HW type  Flags  HW address  Mask  Device\n" +
			"192.168.1.10  0x1  0x2  aa:bb:cc:dd:ee:ff  *  br-lan\n" +
			"192.168.1.11  0x1  0x0  00:00:00:00:00:00  *  br-lan\n",
	})
	entries := r.ARPEntries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].IP != "192.168.1.10" || entries[0].MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("entry = %+v", entries[0])
	}
}
