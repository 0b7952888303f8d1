package cam

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acsense/uspagent/sysinfo"
)

func arpReader(t *testing.T, arp string) *sysinfo.Reader {
	t.Helper()
	proc := t.TempDir()
	if err := os.MkdirAll(filepath.Join(proc, "net"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(proc, "net", "arp"), []byte(arp), 0o644); err != nil {
		t.Fatal(err)
	}
	return &sysinfo.Reader{Proc: proc, Etc: t.TempDir()}
}

const arpTable = `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.10     0x1         0x2         00:12:41:aa:bb:cc     *        br-lan
192.168.1.11     0x1         0x2         f4:f5:e8:11:22:33     *        br-lan
192.168.1.12     0x1         0x0         00:00:00:00:00:00     *        br-lan
192.168.1.13     0x1         0x2         28:57:BE:44:55:66     *        br-lan
`

func TestDiscoverFiltersByVendorPrefix(t *testing.T) {
	sys := &HTTPCameraSystem{Info: arpReader(t, arpTable)}

	cams, err := sys.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(cams) != 2 {
		t.Fatalf("discovered %d cameras, want 2: %+v", len(cams), cams)
	}
	if cams[0].IP != "192.168.1.10" || cams[1].IP != "192.168.1.13" {
		t.Fatalf("camera ips = %s, %s", cams[0].IP, cams[1].IP)
	}
}

func TestCaptureFetchesSnapshot(t *testing.T) {
	image := []byte("jpeg-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snapshot.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write(image)
	}))
	defer srv.Close()

	sys := NewHTTPCameraSystem(arpReader(t, arpTable))
	got, err := sys.Capture(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(image) {
		t.Fatalf("snapshot = %q, want %q", got, image)
	}
}

func TestCaptureRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	sys := NewHTTPCameraSystem(arpReader(t, arpTable))
	if _, err := sys.Capture(strings.TrimPrefix(srv.URL, "http://")); err == nil {
		t.Fatal("error status accepted")
	}
}

func TestUpgradeStagesImageAndRunsCommand(t *testing.T) {
	firmware := []byte("firmware-image")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(firmware)
	}))
	defer srv.Close()

	// "true" accepts any argument, so the staged file path is enough.
	up := NewSysUpgrader()
	up.Command = "true"
	if err := up.Upgrade(srv.URL); err != nil {
		t.Fatal(err)
	}
}

func TestUpgradeReportsCommandFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	up := NewSysUpgrader()
	up.Command = "false"
	if err := up.Upgrade(srv.URL); err == nil {
		t.Fatal("failing upgrade command accepted")
	}
}
