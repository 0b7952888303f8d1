// Package uci wraps the device's native configuration system. Handlers
// in the parameter tree read and write live values through it instead
// of caching state.
package uci

import (
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a uci invocation and returns its stdout. It exists so
// tests can substitute a fake for the real binary.
type Runner interface {
	Run(args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(args ...string) (string, error) {
	out, err := exec.Command("uci", args...).Output()
	if err != nil {
		return "", fmt.Errorf("uci %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Client reads and writes individual options in the native
// configuration store, keyed by dotted option paths such as
// "wireless.@wifi-iface[0].ssid".
type Client struct {
	run Runner
}

// New returns a Client backed by the system uci binary.
func New() *Client { return &Client{run: execRunner{}} }

// NewWithRunner returns a Client using a custom runner.
func NewWithRunner(r Runner) *Client { return &Client{run: r} }

// Get returns the option value, or "" when the option is absent or the
// invocation fails.
func (c *Client) Get(option string) string {
	out, err := c.run.Run("get", option)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// Set writes an option value. The change is staged until Commit.
func (c *Client) Set(option, value string) error {
	_, err := c.run.Run("set", fmt.Sprintf("%s=%s", option, value))
	return err
}

// Commit persists staged changes for one configuration package.
func (c *Client) Commit(pkg string) error {
	_, err := c.run.Run("commit", pkg)
	return err
}
