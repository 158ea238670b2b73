package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/switchyard-lab/switchyard/pkg/catalog"
	"github.com/switchyard-lab/switchyard/pkg/util"
)

// Manager is the inventory engine. One mutex guards the machine map and
// every status field. The lock is never held across an adapter call:
// operations snapshot what they need, release, perform I/O, reacquire, and
// re-check before committing — otherwise one slow SSH session would stall
// every reservation.
type Manager struct {
	mu          sync.Mutex
	machines    map[string]*Machine
	order       []string // catalog iteration order; reservation is first-fit
	connector   Connector
	catalogPath string
}

// NewManager loads the catalog and builds the engine. All machines start
// as available; call InitializeStatus to probe the fleet.
func NewManager(catalogPath string, connector Connector) (*Manager, error) {
	entries, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		connector:   connector,
		catalogPath: catalogPath,
	}
	m.machines, m.order = buildMachines(entries)
	if len(m.machines) == 0 {
		util.Warn("no valid machines found in catalog")
	}
	return m, nil
}

func buildMachines(entries []catalog.Entry) (map[string]*Machine, []string) {
	machines := make(map[string]*Machine, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, dup := machines[e.Device.Serial]; dup {
			// Last entry wins, first position kept.
			util.Warnf("duplicate serial %q in catalog; overriding previous entry", e.Device.Serial)
		} else {
			order = append(order, e.Device.Serial)
		}
		machines[e.Device.Serial] = &Machine{
			Vendor:         e.Vendor,
			Model:          e.Model,
			Version:        e.Version,
			MgmtIP:         e.Device.MgmtIP,
			Port:           e.Device.Port,
			Serial:         e.Device.Serial,
			Hostname:       e.Device.Hostname,
			DefaultGateway: e.Device.DefaultGateway,
			Netmask:        e.Device.Netmask,
			Status:         StatusAvailable,
		}
	}
	return machines, order
}

// InitializeStatus probes every machine in parallel and waits for the fleet
// to settle. Per-machine failures stay per-machine.
func (m *Manager) InitializeStatus(ctx context.Context) {
	m.mu.Lock()
	serials := append([]string(nil), m.order...)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, serial := range serials {
		wg.Add(1)
		go func(serial string) {
			defer wg.Done()
			m.RefreshStatus(ctx, serial)
		}(serial)
	}
	wg.Wait()
	util.Infof("initialized status for %d machines", len(serials))
}

// RefreshStatus re-derives one machine's status from the wire: unreachable
// when ping fails, available when the device answers with its recorded
// serial, unavailable when something else answers. This is the only way a
// machine re-enters available from probing.
func (m *Manager) RefreshStatus(ctx context.Context, serial string) {
	m.mu.Lock()
	mm, ok := m.machines[serial]
	if !ok {
		m.mu.Unlock()
		return
	}
	target := mm.Target()
	expected := normalize(mm.Serial)
	m.mu.Unlock()

	if !m.connector.Reachable(ctx, target.MgmtIP) {
		m.setStatus(serial, StatusUnreachable)
		return
	}

	got := normalize(m.connector.Serial(ctx, target))
	if got != "" && got == expected {
		m.setStatus(serial, StatusAvailable)
	} else {
		util.WithMachine(serial, target.MgmtIP).Warnf("serial mismatch: expected=%s got=%s", expected, got)
		m.setStatus(serial, StatusUnavailable)
	}
}

func normalize(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

// setStatus commits a status if the machine still exists. A reload may have
// dropped it while I/O was in flight.
func (m *Manager) setStatus(serial string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mm, ok := m.machines[serial]; ok && mm.Status != status {
		util.WithSerial(serial).Infof("status %s -> %s", mm.Status, status)
		mm.Status = status
	}
}

// Get returns a copy of one machine.
func (m *Manager) Get(serial string) (Machine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.machines[serial]
	if !ok {
		return Machine{}, false
	}
	return *mm, true
}

// List filters the fleet. Empty criteria are wildcards; vendor, model, and
// version compare case-sensitively. An unknown status string is a
// validation error.
func (m *Manager) List(vendor, model, version, status string) ([]Machine, error) {
	var wantStatus Status
	if status != "" {
		parsed, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		wantStatus = parsed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Machine, 0, len(m.order))
	for _, serial := range m.order {
		mm := m.machines[serial]
		if vendor != "" && mm.Vendor != vendor {
			continue
		}
		if model != "" && mm.Model != model {
			continue
		}
		if version != "" && mm.Version != version {
			continue
		}
		if wantStatus != "" && mm.Status != wantStatus {
			continue
		}
		out = append(out, *mm)
	}
	return out, nil
}

// Reserve hands out the first available machine matching the triple, or nil
// when none remains. Candidates are re-probed before commit: a machine that
// stopped answering is marked unreachable and the next one is tried.
func (m *Manager) Reserve(ctx context.Context, vendor, model, version string) *Machine {
	return m.reserve(ctx, "", vendor, model, version)
}

// ReserveFor is Reserve on behalf of a ticket; the ticket id is recorded as
// the machine's holder.
func (m *Manager) ReserveFor(ctx context.Context, ticketID, vendor, model, version string) *Machine {
	return m.reserve(ctx, ticketID, vendor, model, version)
}

func (m *Manager) reserve(ctx context.Context, holder, vendor, model, version string) *Machine {
	tried := make(map[string]bool)
	for {
		m.mu.Lock()
		var candidate string
		for _, serial := range m.order {
			mm := m.machines[serial]
			if tried[serial] || mm.Status != StatusAvailable {
				continue
			}
			if mm.Vendor != vendor || mm.Model != model || mm.Version != version {
				continue
			}
			candidate = serial
			break
		}
		if candidate == "" {
			m.mu.Unlock()
			return nil
		}
		addr := m.machines[candidate].MgmtIP
		m.mu.Unlock()

		tried[candidate] = true

		// Double-check outside the lock: the availability flag may be stale.
		reachable := m.connector.Reachable(ctx, addr)

		m.mu.Lock()
		mm, ok := m.machines[candidate]
		if !ok || mm.Status != StatusAvailable {
			m.mu.Unlock()
			continue
		}
		if !reachable {
			util.WithMachine(candidate, addr).Warn("reserve double-check failed, marking unreachable")
			mm.Status = StatusUnreachable
			m.mu.Unlock()
			continue
		}
		mm.Status = StatusUnavailable
		mm.HolderTicket = holder
		reserved := *mm
		m.mu.Unlock()
		util.WithSerial(candidate).Info("machine reserved")
		return &reserved
	}
}

// Release attempts to reset a held machine and start it on its way back to
// available. The reset runs outside the lock; on success the machine parks
// in rebooting until the reconciler observes it going dark and coming back.
func (m *Manager) Release(ctx context.Context, serial string) ReleaseResult {
	m.mu.Lock()
	mm, ok := m.machines[serial]
	if !ok {
		m.mu.Unlock()
		return ReleaseNotFound
	}
	switch mm.Status {
	case StatusAvailable:
		m.mu.Unlock()
		return ReleaseAlreadyAvailable
	case StatusUnreachable:
		m.mu.Unlock()
		return ReleaseUnreachable
	}
	target := mm.Target()
	m.mu.Unlock()

	if !m.connector.Reset(ctx, target) {
		util.WithSerial(serial).Warn("release: reset command failed, status unchanged")
		return ReleaseFailed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok = m.machines[serial]
	if !ok {
		return ReleaseNotFound
	}
	mm.Status = StatusRebooting
	mm.HolderTicket = ""
	util.WithSerial(serial).Info("machine released, rebooting")
	return ReleaseSuccess
}

// MarkUnreachable transitions a machine to unreachable only while it is
// still in the expected state. The reconciler probes outside the lock, so a
// machine reserved mid-sweep must be left alone.
func (m *Manager) MarkUnreachable(serial string, from Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.machines[serial]
	if !ok || mm.Status != from {
		return false
	}
	util.WithSerial(serial).Infof("status %s -> %s", from, StatusUnreachable)
	mm.Status = StatusUnreachable
	return true
}

// ReleaseTicket returns a scheduler-held machine directly to available. The
// background job has already reset the device as part of its run, so unlike
// Release there is no SSH round-trip and no rebooting detour.
func (m *Manager) ReleaseTicket(serial, ticketID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.machines[serial]
	if !ok {
		util.WithSerial(serial).Warn("release: machine not found")
		return false
	}
	if mm.HolderTicket != ticketID {
		util.WithSerial(serial).Warnf("release: machine held by %q, not %q", mm.HolderTicket, ticketID)
		return false
	}
	mm.HolderTicket = ""
	mm.Status = StatusAvailable
	util.WithTicket(ticketID).Infof("released machine %s", serial)
	return true
}

// ValidateHolder reports whether the machine is currently bound to the ticket.
func (m *Manager) ValidateHolder(ticketID, serial string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.machines[serial]
	return ok && mm.HolderTicket == ticketID
}

// Reload re-parses the catalog and swaps the fleet non-destructively:
// serials that survive keep their in-memory status and holder, brand-new
// serials start available, vanished serials are dropped. Returns the new
// machine count.
func (m *Manager) Reload() (int, error) {
	entries, err := catalog.Load(m.catalogPath)
	if err != nil {
		return 0, fmt.Errorf("reloading catalog: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fresh, order := buildMachines(entries)
	for serial, mm := range fresh {
		if old, ok := m.machines[serial]; ok {
			mm.Status = old.Status
			mm.HolderTicket = old.HolderTicket
		} else {
			util.WithSerial(serial).Info("catalog reload: machine added")
		}
	}
	for serial := range m.machines {
		if _, ok := fresh[serial]; !ok {
			util.WithSerial(serial).Info("catalog reload: machine removed")
		}
	}
	m.machines, m.order = fresh, order
	return len(m.machines), nil
}

// SupportedVersions derives the vendor -> model -> versions summary used to
// validate incoming requests.
func (m *Manager) SupportedVersions() map[string]map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	tree := map[string]map[string][]string{}
	for _, serial := range m.order {
		mm := m.machines[serial]
		models, ok := tree[mm.Vendor]
		if !ok {
			models = map[string][]string{}
			tree[mm.Vendor] = models
		}
		if !containsString(models[mm.Model], mm.Version) {
			models[mm.Model] = append(models[mm.Model], mm.Version)
		}
	}
	for _, models := range tree {
		for model := range models {
			sort.Strings(models[model])
		}
	}
	return tree
}

// Supports reports whether any cataloged machine matches the triple.
func (m *Manager) Supports(vendor, model, version string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, serial := range m.order {
		mm := m.machines[serial]
		if mm.Vendor == vendor && mm.Model == model && mm.Version == version {
			return true
		}
	}
	return false
}

// RunningCount counts machines currently bound to a ticket.
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mm := range m.machines {
		if mm.HolderTicket != "" {
			n++
		}
	}
	return n
}

// Holders maps every serial to the ticket holding it, nil when idle.
func (m *Manager) Holders() map[string]*string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*string, len(m.machines))
	for serial, mm := range m.machines {
		if mm.HolderTicket == "" {
			out[serial] = nil
		} else {
			holder := mm.HolderTicket
			out[serial] = &holder
		}
	}
	return out
}

// StatusCounts tallies machines per status, for metrics.
func (m *Manager) StatusCounts() map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[Status]int{
		StatusAvailable:   0,
		StatusUnavailable: 0,
		StatusUnreachable: 0,
		StatusRebooting:   0,
	}
	for _, mm := range m.machines {
		out[mm.Status]++
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
