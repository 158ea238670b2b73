// Package inventory owns the canonical device map of the testbed: which
// machines exist, their status, and who holds them. All transitions go
// through the Manager, which serializes them behind one mutex.
package inventory

import (
	"context"
	"fmt"

	"github.com/switchyard-lab/switchyard/pkg/device"
	"github.com/switchyard-lab/switchyard/pkg/util"
)

// Status is a machine's lifecycle state.
type Status string

const (
	// StatusAvailable means the machine is idle and may be reserved.
	StatusAvailable Status = "available"
	// StatusUnavailable means the machine is held by a client or job, or
	// answered with the wrong serial.
	StatusUnavailable Status = "unavailable"
	// StatusUnreachable means the machine cannot be used right now,
	// whatever the cause: down, mid-reload, or a stranger at its address.
	StatusUnreachable Status = "unreachable"
	// StatusRebooting means a reset was triggered and the machine has not
	// yet gone dark.
	StatusRebooting Status = "rebooting"
)

// ParseStatus validates a wire status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusAvailable, StatusUnavailable, StatusUnreachable, StatusRebooting:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", util.ErrValidation, s)
}

// ReleaseResult is the outcome of a release request.
type ReleaseResult string

const (
	ReleaseSuccess          ReleaseResult = "success"
	ReleaseAlreadyAvailable ReleaseResult = "already_available"
	ReleaseNotFound         ReleaseResult = "not_found"
	ReleaseUnreachable      ReleaseResult = "unreachable"
	ReleaseFailed           ReleaseResult = "failed"
)

// Machine is one testbed switch.
type Machine struct {
	Vendor         string `json:"vendor"`
	Model          string `json:"model"`
	Version        string `json:"version"`
	MgmtIP         string `json:"mgmt_ip"`
	Port           int    `json:"port"`
	Serial         string `json:"serial"`
	Hostname       string `json:"hostname"`
	DefaultGateway string `json:"default_gateway,omitempty"`
	Netmask        string `json:"netmask,omitempty"`
	Status         Status `json:"status"`

	// HolderTicket is the ticket currently bound to this machine, if the
	// reservation came through the ticket scheduler. The binding is by id;
	// the ticket side stores the serial.
	HolderTicket string `json:"-"`
}

// Target converts the machine to an adapter call target.
func (m *Machine) Target() device.Target {
	return device.Target{
		Vendor: m.Vendor,
		Model:  m.Model,
		Serial: m.Serial,
		MgmtIP: m.MgmtIP,
		Port:   m.Port,
	}
}

// Connector is the device I/O surface the engine depends on. It never
// returns errors: failures are false or an empty serial.
// *device.Connector implements it.
type Connector interface {
	Reachable(ctx context.Context, ip string) bool
	Serial(ctx context.Context, t device.Target) string
	Reset(ctx context.Context, t device.Target) bool
}
