package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimal = `
controller_id = "ctrl-1"
bootstrap_ca = "/etc/boot/ca.pem"
bootstrap_cert = "/etc/boot/cert.pem"
bootstrap_key = "/etc/boot/key.pem"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OUI != DefaultOUI {
		t.Fatalf("oui = %q, want %q", cfg.OUI, DefaultOUI)
	}
	if cfg.MTP != MTPWebSocket {
		t.Fatalf("mtp = %q, want %q", cfg.MTP, MTPWebSocket)
	}
	if cfg.TelemetryInterval.Duration != DefaultTelemetryInterval {
		t.Fatalf("telemetry_interval = %v", cfg.TelemetryInterval.Duration)
	}
	if cfg.FirmwareOp != DefaultFirmwareOp {
		t.Fatalf("firmware_op = %q", cfg.FirmwareOp)
	}
	if len(cfg.TelemetryPaths) == 0 {
		t.Fatal("default telemetry paths not applied")
	}
}

func TestLoadParsesDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal+`
telemetry_interval = "30s"
backoff_min = "2s"
backoff_max = "1m"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TelemetryInterval.Duration != 30*time.Second {
		t.Fatalf("telemetry_interval = %v, want 30s", cfg.TelemetryInterval.Duration)
	}
	if cfg.BackoffMin.Duration != 2*time.Second || cfg.BackoffMax.Duration != time.Minute {
		t.Fatalf("backoff = (%v, %v)", cfg.BackoffMin.Duration, cfg.BackoffMax.Duration)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing controller", `
bootstrap_ca = "a"
bootstrap_cert = "b"
bootstrap_key = "c"
`, "controller_id"},
		{"bad mtp", minimal + `mtp = "carrier-pigeon"`, "mtp must be"},
		{"mqtt without url", minimal + `mtp = "mqtt"`, "mqtt_url"},
		{"missing bootstrap", `controller_id = "ctrl-1"`, "bootstrap"},
		{"inverted backoff", minimal + `
backoff_min = "1m"
backoff_max = "1s"
`, "backoff_max"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
