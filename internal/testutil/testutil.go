// Package testutil provides shared fakes and fixtures for unit tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/switchyard-lab/switchyard/pkg/device"
)

// FakeConnector is a scripted device adapter. Unset entries default to a
// healthy device: reachable, answering with its recorded serial, resetting
// cleanly.
type FakeConnector struct {
	mu sync.Mutex

	// ReachableMap overrides ping results by management IP.
	ReachableMap map[string]bool
	// SerialMap overrides the serial a device answers with, by recorded serial.
	SerialMap map[string]string
	// ResetMap overrides reset outcomes by serial.
	ResetMap map[string]bool

	ResetCalls []string
}

func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		ReachableMap: make(map[string]bool),
		SerialMap:    make(map[string]string),
		ResetMap:     make(map[string]bool),
	}
}

func (f *FakeConnector) Reachable(ctx context.Context, ip string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.ReachableMap[ip]; ok {
		return v
	}
	return true
}

func (f *FakeConnector) Serial(ctx context.Context, t device.Target) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.SerialMap[t.Serial]; ok {
		return v
	}
	return t.Serial
}

func (f *FakeConnector) Reset(ctx context.Context, t device.Target) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResetCalls = append(f.ResetCalls, t.Serial)
	if v, ok := f.ResetMap[t.Serial]; ok {
		return v
	}
	return true
}

// SetReachable scripts a ping result under the lock.
func (f *FakeConnector) SetReachable(ip string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReachableMap[ip] = ok
}

// SetSerial scripts the serial a device answers with.
func (f *FakeConnector) SetSerial(recorded, answered string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SerialMap[recorded] = answered
}

// SetReset scripts a reset outcome.
func (f *FakeConnector) SetReset(serial string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResetMap[serial] = ok
}

// TwoVendorCatalog is the standard two-device fixture: cisco/n9k/9.3 S1 and
// hp/5945/1.0 H1.
const TwoVendorCatalog = `cisco:
  n9k:
    "9.3":
      - serial: S1
        mgmt_ip: 10.0.0.1
        hostname: leaf1
hp:
  "5945":
    "1.0":
      - serial: H1
        mgmt_ip: 10.0.0.2
        hostname: core1
`

// WriteCatalog writes a catalog YAML into a temp dir and returns its path.
func WriteCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing catalog fixture: %v", err)
	}
	return path
}
