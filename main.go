package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/acsense/uspagent/agent"
	"github.com/acsense/uspagent/cam"
	"github.com/acsense/uspagent/config"
	"github.com/acsense/uspagent/cred"
	"github.com/acsense/uspagent/dm"
	"github.com/acsense/uspagent/endpoint"
	"github.com/acsense/uspagent/mtp"
	"github.com/acsense/uspagent/provision"
	"github.com/acsense/uspagent/sysinfo"
	"github.com/acsense/uspagent/uci"
	"github.com/acsense/uspagent/webstatus"
)

func main() {
	configPath := flag.String("c", "/etc/uspagent/agent.toml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)

	if cfg.PIDFile != "" {
		if err := writePIDFile(cfg.PIDFile); err != nil {
			slog.Error("write pid file failed", "error", err)
			os.Exit(1)
		}
		defer os.Remove(cfg.PIDFile)
	}

	id, err := resolveEndpointID(cfg)
	if err != nil {
		slog.Error("endpoint id resolution failed", "error", err)
		os.Exit(1)
	}
	slog.Info("agent identity", "endpoint", id, "model", cfg.Model)

	store := cred.NewStore(cfg.CertDir, cfg.BootstrapCA, cfg.BootstrapCert, cfg.BootstrapKey)
	machine := provision.New(store, string(id))
	info := sysinfo.NewReader()
	u := uci.New()

	d := dm.NewDispatcher()
	d.Register(dm.SelDeviceInfo, &dm.DeviceInfo{Info: info, Model: cfg.Model, Serial: serialFrom(id)})
	d.Register(dm.SelWiFi, &dm.WiFi{UCI: u})
	d.Register(dm.SelIPInterface, &dm.IPInterface{UCI: u})
	d.Register(dm.SelDHCPv4, &dm.DHCPv4{UCI: u})
	d.Register(dm.SelHosts, &dm.Hosts{Info: info})
	d.Register(dm.SelFirmware, &dm.Firmware{Info: info, Op: cfg.FirmwareOp, Upgrader: cam.NewSysUpgrader()})
	d.Register(dm.SelCameras, &dm.Cameras{System: cam.NewHTTPCameraSystem(info)})
	d.Register(dm.SelSecurity, &dm.Security{Machine: machine})

	transports, err := buildTransports(cfg, id, store)
	if err != nil {
		slog.Error("transport setup failed", "error", err)
		os.Exit(1)
	}

	a := &agent.Agent{
		ID:                id,
		ControllerID:      cfg.ControllerID,
		Dispatcher:        d,
		Machine:           machine,
		Info:              info,
		Transports:        transports,
		TelemetryInterval: cfg.TelemetryInterval.Duration,
		TelemetryPaths:    cfg.TelemetryPaths,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := &webstatus.Server{Addr: cfg.StatusAddr, Agent: a}
	go func() {
		if err := status.Run(ctx); err != nil {
			slog.Warn("status endpoint failed", "error", err)
		}
	}()

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("agent stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// resolveEndpointID prefers an explicit config override, then derives
// from the configured MAC, then probes the device interfaces.
func resolveEndpointID(cfg *config.Config) (endpoint.ID, error) {
	if cfg.EndpointID != "" {
		return endpoint.ID(cfg.EndpointID), nil
	}
	mac := cfg.MACAddr
	if mac == "" {
		mac = endpoint.DetectMAC()
		if mac == "" {
			return "", fmt.Errorf("no usable MAC address on any interface")
		}
	}
	return endpoint.Derive(mac, cfg.OUI)
}

// serialFrom uses the MAC portion of the endpoint id as the serial.
func serialFrom(id endpoint.ID) string {
	parts := strings.Split(string(id), ":")
	return parts[len(parts)-1]
}

func buildTransports(cfg *config.Config, id endpoint.ID, store *cred.Store) ([]mtp.Transport, error) {
	var transports []mtp.Transport

	if cfg.MTP == config.MTPWebSocket || cfg.MTP == config.MTPBoth {
		url := cfg.WSURL
		if url == "" {
			discovered, err := mtp.DiscoverController(0)
			if err != nil {
				return nil, fmt.Errorf("ws_url unset and discovery failed: %w", err)
			}
			url = discovered
		}
		transports = append(transports, &mtp.WebSocketTransport{
			URL:          url,
			AgentID:      id,
			ControllerID: cfg.ControllerID,
			Store:        store,
			Backoff:      mtp.NewBackoff(cfg.BackoffMin.Duration, cfg.BackoffMax.Duration),
		})
	}
	if cfg.MTP == config.MTPMQTT || cfg.MTP == config.MTPBoth {
		transports = append(transports, &mtp.MQTTTransport{
			BrokerURL:    cfg.MQTTURL,
			AgentID:      id,
			ControllerID: cfg.ControllerID,
			Store:        store,
			Backoff:      mtp.NewBackoff(cfg.BackoffMin.Duration, cfg.BackoffMax.Duration),
		})
	}
	return transports, nil
}
