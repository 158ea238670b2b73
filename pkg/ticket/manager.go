package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-lab/switchyard/pkg/inventory"
	"github.com/switchyard-lab/switchyard/pkg/util"
)

// Inventory is the engine surface the scheduler binds tickets through.
// *inventory.Manager implements it.
type Inventory interface {
	ReserveFor(ctx context.Context, ticketID, vendor, model, version string) *inventory.Machine
	ReleaseTicket(serial, ticketID string) bool
	ValidateHolder(ticketID, serial string) bool
	Supports(vendor, model, version string) bool
	RunningCount() int
	Holders() map[string]*string
}

// TaskFunc performs the actual job for a running ticket and returns its
// result blob. The scheduler turns an error into a failed completion.
type TaskFunc func(ctx context.Context, t Ticket, machine inventory.Machine) (string, error)

// Manager is the ticket scheduler: an insertion-ordered FIFO of queued
// tickets layered on the inventory engine. Exactly one admission attempt is
// made per external event (submission or completion); a failed allocation
// puts the ticket back at the head, preserving submission order.
type Manager struct {
	mu      sync.Mutex
	queue   []*Ticket
	tickets map[string]*Ticket

	inv  Inventory
	task TaskFunc

	activePath  string
	archivePath string

	// admitting marks an in-flight admission probe; retryAdmit coalesces
	// admission events that arrive while one is in flight.
	admitting  bool
	retryAdmit bool

	onComplete func(Status)
}

// SetCompletionHook registers a callback fired once per terminal ticket,
// with its final status. Used for metrics.
func (m *Manager) SetCompletionHook(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = fn
}

// NewManager creates the scheduler rooted at ticketPath, creating the
// active/ and archive/ trees if needed.
func NewManager(ticketPath string, inv Inventory, task TaskFunc) (*Manager, error) {
	m := &Manager{
		tickets:     make(map[string]*Ticket),
		inv:         inv,
		task:        task,
		activePath:  filepath.Join(ticketPath, "active"),
		archivePath: filepath.Join(ticketPath, "archive"),
	}
	for _, dir := range []string{m.activePath, m.archivePath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ticket dir %s: %w", dir, err)
		}
	}
	return m, nil
}

// Submit validates and admits one uploaded payload. The payload is
// persisted before the ticket is queued so a crash cannot lose it.
func (m *Manager) Submit(vendor, model, version string, data []byte) (*Ticket, error) {
	if len(data) == 0 {
		return nil, util.NewValidationError("file is empty")
	}
	if !m.inv.Supports(vendor, model, version) {
		return nil, util.NewValidationError("The specified vendor/model/version is not supported")
	}

	id := uuid.New().String()
	dir := filepath.Join(m.activePath, vendor, model, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ticket dir: %w", err)
	}
	configPath := filepath.Join(dir, id+".txt")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("persisting ticket payload: %w", err)
	}

	t := &Ticket{
		ID:         id,
		Vendor:     vendor,
		Model:      model,
		Version:    version,
		Status:     StatusQueued,
		ConfigPath: configPath,
		EnqueuedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[id] = t
	m.queue = append(m.queue, t)
	util.WithTicket(id).Infof("created ticket for %s/%s/%s", vendor, model, version)
	m.consumeLocked()

	snapshot := *t
	return &snapshot, nil
}

// Recover rescans active payloads after a restart and re-queues each as a
// fresh queued ticket. A payload whose archive JSON already exists finished
// before the crash interrupted its archive move; it is moved into place
// instead of re-run. Returns the number of re-queued tickets.
func (m *Manager) Recover() int {
	var recovered int
	err := filepath.WalkDir(m.activePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return err
		}
		rel, relErr := filepath.Rel(m.activePath, path)
		if relErr != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 4 {
			util.Warnf("skipping stray ticket payload %s", path)
			return nil
		}
		vendor, model, version := parts[0], parts[1], parts[2]
		id := strings.TrimSuffix(parts[3], ".txt")

		archiveDir := filepath.Join(m.archivePath, vendor, model, version, id)
		if _, statErr := os.Stat(filepath.Join(archiveDir, id+".json")); statErr == nil {
			util.WithTicket(id).Info("archive record exists, finishing interrupted archive move")
			if moveErr := os.Rename(path, filepath.Join(archiveDir, id+".txt")); moveErr != nil {
				util.WithTicket(id).Warnf("could not move payload to archive: %v", moveErr)
			}
			return nil
		}

		util.WithTicket(id).Infof("reloading ticket from %s", path)
		t := &Ticket{
			ID:         id,
			Vendor:     vendor,
			Model:      model,
			Version:    version,
			Status:     StatusQueued,
			ConfigPath: path,
			EnqueuedAt: time.Now().UTC(),
		}

		m.mu.Lock()
		m.tickets[id] = t
		m.queue = append(m.queue, t)
		m.consumeLocked()
		m.mu.Unlock()

		recovered++
		return nil
	})
	if err != nil {
		util.Errorf("ticket recovery scan: %v", err)
	}
	if recovered > 0 {
		util.Infof("reloaded %d unprocessed tickets from storage", recovered)
	}
	return recovered
}

// consumeLocked makes one admission attempt per scheduler event: try to
// bind a machine for the head ticket and launch its job, leaving the head
// in place on a failed allocation. The reserve probe pings hardware, so
// m.mu is dropped around it; the admitting flag keeps this the only
// in-flight attempt, and attempts triggered meanwhile are coalesced into a
// re-check. Callers hold m.mu, and it is held again on return.
func (m *Manager) consumeLocked() bool {
	if m.admitting {
		m.retryAdmit = true
		return false
	}

	admitted := false
	for len(m.queue) > 0 {
		t := m.queue[0]

		// Detached from any request: admission must not die with the
		// caller.
		m.admitting = true
		m.mu.Unlock()
		machine := m.inv.ReserveFor(context.Background(), t.ID, t.Vendor, t.Model, t.Version)
		m.mu.Lock()
		m.admitting = false

		if machine == nil {
			util.WithTicket(t.ID).Debug("no available machines, ticket stays at head")
		} else {
			m.queue = m.queue[1:]
			now := time.Now().UTC()
			t.Status = StatusRunning
			t.StartedAt = &now
			t.Machine = &MachineRef{Serial: machine.Serial, IP: machine.MgmtIP, Port: machine.Port}

			go m.runTask(*t, *machine)
			util.WithTicket(t.ID).Infof("started background task on %s", machine.Serial)
			admitted = true
		}

		if !m.retryAdmit {
			break
		}
		m.retryAdmit = false
	}
	return admitted
}

// runTask executes the job off the scheduler and reports its completion.
func (m *Manager) runTask(t Ticket, machine inventory.Machine) {
	result, err := m.task(context.Background(), t, machine)
	if err != nil {
		util.WithTicket(t.ID).Errorf("task failed: %v", err)
		m.Complete(t.ID, "Error: "+err.Error(), false)
		return
	}
	m.Complete(t.ID, result, true)
}

// Complete finishes a running ticket: release the machine, record the
// terminal state, archive, and admit the next queued ticket.
func (m *Manager) Complete(id, resultData string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		util.WithTicket(id).Error("ticket not found for completion")
		return
	}
	if t.Machine == nil {
		util.WithTicket(id).Error("ticket has no machine bound")
		return
	}
	if !m.inv.ValidateHolder(t.ID, t.Machine.Serial) {
		util.WithTicket(id).Errorf("machine %s is not bound to this ticket", t.Machine.Serial)
		return
	}
	m.inv.ReleaseTicket(t.Machine.Serial, t.ID)

	now := time.Now().UTC()
	if success {
		t.Status = StatusCompleted
	} else {
		t.Status = StatusFailed
	}
	t.CompletedAt = &now
	t.ResultData = resultData

	m.archiveLocked(t)
	delete(m.tickets, id)
	if m.onComplete != nil {
		m.onComplete(t.Status)
	}

	m.consumeLocked()
}

// archiveLocked moves the active payload under archive/ and writes the
// serialized response beside it.
func (m *Manager) archiveLocked(t *Ticket) {
	dir := filepath.Join(m.archivePath, t.Vendor, t.Model, t.Version, t.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		util.WithTicket(t.ID).Errorf("creating archive dir: %v", err)
		return
	}

	if _, err := os.Stat(t.ConfigPath); err == nil {
		if err := os.Rename(t.ConfigPath, filepath.Join(dir, t.ID+".txt")); err != nil {
			util.WithTicket(t.ID).Warnf("could not move ticket config: %v", err)
		}
	} else {
		util.WithTicket(t.ID).Warn("active config file not found when archiving")
	}

	resp := buildResponse(t, 0)
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		util.WithTicket(t.ID).Errorf("serializing archive response: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, t.ID+".json"), data, 0o644); err != nil {
		util.WithTicket(t.ID).Errorf("writing archive response: %v", err)
	}
}

// Response returns the wire response for a ticket: live tickets first, then
// the archived record.
func (m *Manager) Response(id string) (*Response, error) {
	m.mu.Lock()
	t, ok := m.tickets[id]
	if ok {
		resp := buildResponse(t, m.positionLocked(id))
		m.mu.Unlock()
		return &resp, nil
	}
	m.mu.Unlock()

	return m.archivedResponse(id)
}

func (m *Manager) archivedResponse(id string) (*Response, error) {
	var found string
	err := filepath.WalkDir(m.archivePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if d.Name() == id+".json" {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching archive: %w", err)
	}
	if found == "" {
		return nil, util.NewNotFoundError("ticket", id)
	}

	data, err := os.ReadFile(found)
	if err != nil {
		return nil, fmt.Errorf("reading archived response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing archived response %s: %w", found, err)
	}
	return &resp, nil
}

// positionLocked returns the 1-based queue slot of a ticket, 0 if not queued.
func (m *Manager) positionLocked(id string) int {
	for i, t := range m.queue {
		if t.ID == id {
			return i + 1
		}
	}
	return 0
}

// QueueStatus snapshots queue depth, fleet occupancy, and per-ticket
// positions.
func (m *Manager) QueueStatus() QueueStatus {
	m.mu.Lock()
	positions := make(map[string]int, len(m.queue))
	for i, t := range m.queue {
		positions[t.ID] = i + 1
	}
	queued := len(m.queue)
	m.mu.Unlock()

	return QueueStatus{
		QueuedCount:   queued,
		RunningCount:  m.inv.RunningCount(),
		Machines:      m.inv.Holders(),
		QueuePosition: positions,
	}
}

// ActiveTickets returns copies of all live tickets in no particular order.
func (m *Manager) ActiveTickets() []Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		out = append(out, *t)
	}
	return out
}

// QueuedCount reports the current queue depth, for metrics.
func (m *Manager) QueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
