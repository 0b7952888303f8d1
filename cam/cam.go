// Package cam implements the device-side collaborators that the
// parameter tree exposes: camera discovery and capture over the local
// network, and the firmware upgrade runner.
package cam

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/acsense/uspagent/dm"
	"github.com/acsense/uspagent/sysinfo"
)

// cameraOUIs identifies camera vendors by MAC prefix. Extend per
// deployment.
var cameraOUIs = []string{
	"00:12:41", // axis
	"00:40:8c", // axis legacy
	"28:57:be", // hikvision
	"a4:14:37", // hanwha
}

// HTTPCameraSystem finds cameras in the ARP table by vendor prefix and
// captures snapshots over plain HTTP.
type HTTPCameraSystem struct {
	Info *sysinfo.Reader
	// SnapshotPath is appended to the camera address for capture.
	SnapshotPath string
	Client       *http.Client
}

func NewHTTPCameraSystem(info *sysinfo.Reader) *HTTPCameraSystem {
	return &HTTPCameraSystem{
		Info:         info,
		SnapshotPath: "/snapshot.jpg",
		Client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPCameraSystem) Discover() ([]dm.Camera, error) {
	entries := c.Info.ARPEntries()
	var cams []dm.Camera
	for _, e := range entries {
		mac := strings.ToLower(e.MAC)
		for _, oui := range cameraOUIs {
			if strings.HasPrefix(mac, oui) {
				cams = append(cams, dm.Camera{IP: e.IP, MAC: e.MAC})
				break
			}
		}
	}
	slog.Debug("camera discovery", "found", len(cams))
	return cams, nil
}

func (c *HTTPCameraSystem) Capture(ip string) ([]byte, error) {
	url := "http://" + ip + c.SnapshotPath
	resp, err := c.Client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("cam: capture %s: %w", ip, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cam: capture %s: status %d", ip, resp.StatusCode)
	}
	image, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("cam: capture %s: %w", ip, err)
	}
	slog.Info("snapshot captured", "camera", ip, "bytes", len(image))
	return image, nil
}

// SysUpgrader downloads a firmware image and hands it to the platform
// upgrade tool. Apply does not return on success; the device reboots.
type SysUpgrader struct {
	// Command applies a downloaded image; defaults to sysupgrade.
	Command string
	Client  *http.Client
}

func NewSysUpgrader() *SysUpgrader {
	return &SysUpgrader{
		Command: "sysupgrade",
		Client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

func (u *SysUpgrader) Upgrade(url string) error {
	resp, err := u.Client.Get(url)
	if err != nil {
		return fmt.Errorf("cam: fetch firmware: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cam: fetch firmware: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "firmware-*.img")
	if err != nil {
		return fmt.Errorf("cam: stage firmware: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("cam: stage firmware: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cam: stage firmware: %w", err)
	}

	slog.Info("applying firmware image", "path", tmp.Name())
	out, err := exec.Command(u.Command, tmp.Name()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("cam: apply firmware: %w: %s", err, out)
	}
	return nil
}
