package dm

import (
	"fmt"
	"strconv"
	"strings"
)

// SelCameras is the selector for the camera subtree.
const SelCameras = "Device.X_ACS_Camera."

// Camera is one discovered camera on the local network.
type Camera struct {
	IP  string
	MAC string
}

// CameraSystem is the external discovery/capture collaborator.
type CameraSystem interface {
	Discover() ([]Camera, error)
	Capture(ip string) ([]byte, error)
}

// Cameras lists discovered cameras and dispatches the Capture()
// invocable addressed by instance number.
type Cameras struct {
	System CameraSystem
}

func (h *Cameras) Get(path string) (map[string]string, error) {
	cams, err := h.System.Discover()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, 2*len(cams))
	for i, cam := range cams {
		base := fmt.Sprintf("%s%d.", SelCameras, i+1)
		m[base+"IPAddress"] = cam.IP
		m[base+"MACAddress"] = cam.MAC
	}
	return m, nil
}

func (h *Cameras) Operate(command string, args map[string]string) (map[string]string, error) {
	if !strings.HasSuffix(command, ".Capture()") {
		return nil, ErrCommandNotFound
	}
	idx := instanceNumber(command)
	if idx == 0 {
		return nil, fmt.Errorf("capture command %s carries no instance number", command)
	}
	cams, err := h.System.Discover()
	if err != nil {
		return nil, err
	}
	if idx > len(cams) {
		return nil, fmt.Errorf("camera %d not found", idx)
	}
	image, err := h.System.Capture(cams[idx-1].IP)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"CameraIP":  cams[idx-1].IP,
		"ImageSize": strconv.Itoa(len(image)),
	}, nil
}

func instanceNumber(command string) int {
	for _, seg := range strings.Split(command, ".") {
		if n, err := strconv.Atoi(seg); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
