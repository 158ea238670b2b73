// Package monitor runs the background reconciler: a periodic control loop
// that re-probes the fleet and drives ping-observed status transitions.
package monitor

import (
	"context"
	"time"

	"github.com/switchyard-lab/switchyard/pkg/inventory"
	"github.com/switchyard-lab/switchyard/pkg/util"
)

// DefaultInterval is the pause between reconciler passes.
const DefaultInterval = 10 * time.Second

// Monitor periodically sweeps unreachable, available, and rebooting
// machines, in that order. Reserved (unavailable) machines are never
// probed: they are presumed in use and a probe must not interfere.
type Monitor struct {
	inv       *inventory.Manager
	connector inventory.Connector
	interval  time.Duration
}

// New creates a reconciler. A non-positive interval selects the default.
func New(inv *inventory.Manager, connector inventory.Connector, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{inv: inv, connector: connector, interval: interval}
}

// Run loops until the context is cancelled. A panicking pass is logged and
// the loop continues; one bad sweep must not kill fleet reconciliation.
func (m *Monitor) Run(ctx context.Context) {
	util.Info("background monitor started")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			util.Info("background monitor stopped")
			return
		case <-ticker.C:
			m.pass(ctx)
		}
	}
}

// Pass runs one reconciliation sweep.
func (m *Monitor) Pass(ctx context.Context) {
	m.pass(ctx)
}

func (m *Monitor) pass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			util.Errorf("monitor pass panicked: %v", r)
		}
	}()

	m.sweepUnreachable(ctx)
	m.sweepAvailable(ctx)
	m.sweepRebooting(ctx)
}

// sweepUnreachable re-validates machines that went dark. A machine that
// answers ping re-enters available only when it also presents the recorded
// serial; a stranger at the address parks it in unavailable.
func (m *Monitor) sweepUnreachable(ctx context.Context) {
	for _, mm := range m.list(inventory.StatusUnreachable) {
		if ctx.Err() != nil {
			return
		}
		if m.connector.Reachable(ctx, mm.MgmtIP) {
			util.WithSerial(mm.Serial).Info("machine answering again, re-validating")
			m.inv.RefreshStatus(ctx, mm.Serial)
		}
	}
}

// sweepAvailable demotes idle machines that stopped answering.
func (m *Monitor) sweepAvailable(ctx context.Context) {
	for _, mm := range m.list(inventory.StatusAvailable) {
		if ctx.Err() != nil {
			return
		}
		if !m.connector.Reachable(ctx, mm.MgmtIP) {
			util.WithSerial(mm.Serial).Info("machine became unreachable")
			m.inv.MarkUnreachable(mm.Serial, inventory.StatusAvailable)
		}
	}
}

// sweepRebooting confirms reloads. A rebooting machine that goes dark has
// actually started its reload and moves to unreachable, from where the
// unreachable sweep will bring it home. One still answering is mid-shutdown
// and is left alone.
func (m *Monitor) sweepRebooting(ctx context.Context) {
	for _, mm := range m.list(inventory.StatusRebooting) {
		if ctx.Err() != nil {
			return
		}
		if !m.connector.Reachable(ctx, mm.MgmtIP) {
			util.WithSerial(mm.Serial).Info("reboot confirmed, machine went dark")
			m.inv.MarkUnreachable(mm.Serial, inventory.StatusRebooting)
		}
	}
}

func (m *Monitor) list(status inventory.Status) []inventory.Machine {
	machines, err := m.inv.List("", "", "", string(status))
	if err != nil {
		util.Errorf("monitor: listing %s machines: %v", status, err)
		return nil
	}
	return machines
}
