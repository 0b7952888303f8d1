// Package config loads the agent configuration from a TOML file.
// Missing optional fields take defaults; Validate rejects combinations
// the agent cannot run with.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Transport selection values for MTP.
const (
	MTPWebSocket = "websocket"
	MTPMQTT      = "mqtt"
	MTPBoth      = "both"
)

// Defaults applied by Load for fields the file leaves unset.
const (
	DefaultOUI               = "00005A"
	DefaultCertDir           = "/etc/uspagent/certs"
	DefaultStatusAddr        = "127.0.0.1:8880"
	DefaultTelemetryInterval = 5 * time.Minute
	DefaultFirmwareOp        = "Download()"
	DefaultBackoffMin        = time.Second
	DefaultBackoffMax        = 2 * time.Minute
	DefaultModel             = "generic"
)

type Config struct {
	// EndpointID overrides the derived id; normally left empty so the
	// id is derived from OUI and the device MAC.
	EndpointID string `toml:"endpoint_id"`
	OUI        string `toml:"oui"`
	// MACAddr overrides interface detection.
	MACAddr      string `toml:"mac_addr"`
	ControllerID string `toml:"controller_id"`

	// MTP selects which transports run: websocket, mqtt or both.
	MTP string `toml:"mtp"`
	// WSURL is the controller WebSocket URL; empty means discover via
	// mDNS.
	WSURL   string `toml:"ws_url"`
	MQTTURL string `toml:"mqtt_url"`

	CertDir       string `toml:"cert_dir"`
	BootstrapCA   string `toml:"bootstrap_ca"`
	BootstrapCert string `toml:"bootstrap_cert"`
	BootstrapKey  string `toml:"bootstrap_key"`

	TelemetryInterval duration `toml:"telemetry_interval"`
	TelemetryPaths    []string `toml:"telemetry_paths"`

	// FirmwareOp is the invocable name the firmware subtree answers to.
	FirmwareOp  string `toml:"firmware_op"`
	FirmwareURL string `toml:"firmware_url"`

	StatusAddr string `toml:"status_addr"`
	PIDFile    string `toml:"pid_file"`
	LogLevel   string `toml:"log_level"`
	Model      string `toml:"model"`

	BackoffMin duration `toml:"backoff_min"`
	BackoffMax duration `toml:"backoff_max"`
}

// duration lets TOML carry values like "30s".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Load reads path, applies defaults and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OUI == "" {
		c.OUI = DefaultOUI
	}
	if c.MTP == "" {
		c.MTP = MTPWebSocket
	}
	if c.CertDir == "" {
		c.CertDir = DefaultCertDir
	}
	if c.StatusAddr == "" {
		c.StatusAddr = DefaultStatusAddr
	}
	if c.TelemetryInterval.Duration == 0 {
		c.TelemetryInterval.Duration = DefaultTelemetryInterval
	}
	if c.FirmwareOp == "" {
		c.FirmwareOp = DefaultFirmwareOp
	}
	if c.BackoffMin.Duration == 0 {
		c.BackoffMin.Duration = DefaultBackoffMin
	}
	if c.BackoffMax.Duration == 0 {
		c.BackoffMax.Duration = DefaultBackoffMax
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if len(c.TelemetryPaths) == 0 {
		c.TelemetryPaths = []string{
			"Device.DeviceInfo.UpTime",
			"Device.DeviceInfo.LoadAvg",
			"Device.DeviceInfo.FreeMem",
		}
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.ControllerID == "" {
		return fmt.Errorf("config: controller_id is required")
	}
	switch c.MTP {
	case MTPWebSocket, MTPMQTT, MTPBoth:
	default:
		return fmt.Errorf("config: mtp must be %s, %s or %s, got %q",
			MTPWebSocket, MTPMQTT, MTPBoth, c.MTP)
	}
	if (c.MTP == MTPMQTT || c.MTP == MTPBoth) && c.MQTTURL == "" {
		return fmt.Errorf("config: mqtt_url is required when mtp includes mqtt")
	}
	if c.BootstrapCA == "" || c.BootstrapCert == "" || c.BootstrapKey == "" {
		return fmt.Errorf("config: bootstrap_ca, bootstrap_cert and bootstrap_key are required")
	}
	if c.BackoffMax.Duration < c.BackoffMin.Duration {
		return fmt.Errorf("config: backoff_max %v is below backoff_min %v",
			c.BackoffMax.Duration, c.BackoffMin.Duration)
	}
	return nil
}
