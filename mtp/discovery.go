package mtp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/mdns"
)

// WebSocketService is the mDNS service type controllers advertise.
const WebSocketService = "_usp-ws._tcp"

// DiscoverController looks up the first controller advertising a
// WebSocket endpoint on the local network and returns its wss URL.
// Used when no controller URL is configured.
func DiscoverController(timeout time.Duration) (string, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)
	go func() {
		defer close(entriesCh)
		mdns.Lookup(WebSocketService, entriesCh)
	}()

	select {
	case entry := <-entriesCh:
		if entry == nil {
			return "", fmt.Errorf("mtp: no %s service found", WebSocketService)
		}
		var host string
		if entry.AddrV4 != nil {
			host = entry.AddrV4.String()
		} else if entry.AddrV6 != nil {
			host = fmt.Sprintf("[%s]", entry.AddrV6.String())
		} else {
			return "", fmt.Errorf("mtp: discovered service has no address")
		}
		url := fmt.Sprintf("wss://%s:%d/usp", host, entry.Port)
		slog.Info("discovered controller", "service", entry.Name, "url", url)
		return url, nil

	case <-time.After(timeout):
		return "", fmt.Errorf("mtp: discovery timeout for %s", WebSocketService)
	}
}
