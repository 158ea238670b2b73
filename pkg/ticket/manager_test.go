package ticket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/switchyard-lab/switchyard/internal/testutil"
	"github.com/switchyard-lab/switchyard/pkg/inventory"
	"github.com/switchyard-lab/switchyard/pkg/util"
)

const oneDeviceCatalog = `cisco:
  n9k:
    "9.3":
      - serial: S1
        mgmt_ip: 10.0.0.1
`

// gateTask blocks each job until its ticket id is released through the gate.
type gateTask struct {
	gate chan string
	err  error
}

func newGateTask() *gateTask {
	return &gateTask{gate: make(chan string, 16)}
}

func (g *gateTask) fn(ctx context.Context, t Ticket, machine inventory.Machine) (string, error) {
	for id := range g.gate {
		if id == t.ID {
			break
		}
		// Not ours: put it back for the right job.
		g.gate <- id
	}
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("Processed %s - %s", t.Vendor, t.Model), nil
}

func newFixture(t *testing.T, catalogYAML string) (*Manager, *inventory.Manager, *gateTask, string) {
	t.Helper()
	path := testutil.WriteCatalog(t, catalogYAML)
	inv, err := inventory.NewManager(path, testutil.NewFakeConnector())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	gate := newGateTask()
	ticketPath := t.TempDir()
	m, err := NewManager(ticketPath, inv, gate.fn)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, inv, gate, ticketPath
}

// waitStatus polls until the ticket reaches the wanted status.
func waitStatus(t *testing.T, m *Manager, id string, want Status) Response {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := m.Response(id)
		if err == nil && resp.Status == want {
			return *resp
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ticket %s never reached %s", id, want)
	return Response{}
}

func TestSubmitValidation(t *testing.T) {
	m, _, _, _ := newFixture(t, oneDeviceCatalog)

	_, err := m.Submit("cisco", "n9k", "9.3", nil)
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("empty payload: err = %v", err)
	}

	_, err = m.Submit("juniper", "mx", "1.0", []byte("config"))
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("unsupported triple: err = %v", err)
	}
}

func TestSubmitStartsImmediatelyWhenMachineFree(t *testing.T) {
	m, inv, gate, ticketPath := newFixture(t, oneDeviceCatalog)

	tk, err := m.Submit("cisco", "n9k", "9.3", []byte("interface Eth1/1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if tk.Status != StatusRunning {
		t.Fatalf("status = %s, want running", tk.Status)
	}
	if tk.Machine == nil || tk.Machine.Serial != "S1" {
		t.Fatalf("machine = %+v", tk.Machine)
	}
	if !inv.ValidateHolder(tk.ID, "S1") {
		t.Fatal("machine not bound to ticket")
	}

	// The payload is persisted under active/.
	payload := filepath.Join(ticketPath, "active", "cisco", "n9k", "9.3", tk.ID+".txt")
	data, err := os.ReadFile(payload)
	if err != nil || string(data) != "interface Eth1/1" {
		t.Fatalf("payload = %q, err = %v", data, err)
	}

	gate.gate <- tk.ID
	waitStatus(t, m, tk.ID, StatusCompleted)
}

func TestFIFOWithOneDevice(t *testing.T) {
	m, inv, gate, _ := newFixture(t, oneDeviceCatalog)

	a, err := m.Submit("cisco", "n9k", "9.3", []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Submit("cisco", "n9k", "9.3", []byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := m.Submit("cisco", "n9k", "9.3", []byte("c"))
	if err != nil {
		t.Fatal(err)
	}

	if a.Status != StatusRunning {
		t.Fatalf("A = %s, want running", a.Status)
	}
	if b.Status != StatusQueued || c.Status != StatusQueued {
		t.Fatalf("B = %s, C = %s, want queued", b.Status, c.Status)
	}

	respB, _ := m.Response(b.ID)
	respC, _ := m.Response(c.ID)
	if respB.Position != 1 || respC.Position != 2 {
		t.Fatalf("positions B=%d C=%d, want 1 and 2", respB.Position, respC.Position)
	}
	if respB.Message != "Ticket is in queue at position 1" {
		t.Errorf("B message = %q", respB.Message)
	}

	// A finishes: B starts on the same device, C moves to the head.
	gate.gate <- a.ID
	waitStatus(t, m, a.ID, StatusCompleted)
	waitStatus(t, m, b.ID, StatusRunning)

	if !inv.ValidateHolder(b.ID, "S1") {
		t.Fatal("device not rebound to B")
	}
	respC, _ = m.Response(c.ID)
	if respC.Position != 1 {
		t.Fatalf("C position = %d after A completed, want 1", respC.Position)
	}

	gate.gate <- b.ID
	waitStatus(t, m, b.ID, StatusCompleted)
	waitStatus(t, m, c.ID, StatusRunning)
	gate.gate <- c.ID
	waitStatus(t, m, c.ID, StatusCompleted)

	status := m.QueueStatus()
	if status.QueuedCount != 0 || status.RunningCount != 0 {
		t.Fatalf("queue not drained: %+v", status)
	}
}

func TestCompletionArchivesTicket(t *testing.T) {
	m, _, gate, ticketPath := newFixture(t, oneDeviceCatalog)

	tk, err := m.Submit("cisco", "n9k", "9.3", []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	gate.gate <- tk.ID
	resp := waitStatus(t, m, tk.ID, StatusCompleted)

	if !resp.Completed {
		t.Error("completed flag not set")
	}
	if resp.ResultData == nil || *resp.ResultData != "Processed cisco - n9k" {
		t.Errorf("result = %v", resp.ResultData)
	}
	if resp.Message != "Ticket completed successfully" {
		t.Errorf("message = %q", resp.Message)
	}

	dir := filepath.Join(ticketPath, "archive", "cisco", "n9k", "9.3", tk.ID)
	if _, err := os.Stat(filepath.Join(dir, tk.ID+".json")); err != nil {
		t.Errorf("archive record missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, tk.ID+".txt")); err != nil {
		t.Errorf("archived payload missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ticketPath, "active", "cisco", "n9k", "9.3", tk.ID+".txt")); !os.IsNotExist(err) {
		t.Error("active payload should have moved to the archive")
	}
}

func TestFailedTaskArchivesFailure(t *testing.T) {
	m, _, gate, _ := newFixture(t, oneDeviceCatalog)
	gate.err = errors.New("device exploded")

	tk, err := m.Submit("cisco", "n9k", "9.3", []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	gate.gate <- tk.ID
	resp := waitStatus(t, m, tk.ID, StatusFailed)

	if !resp.Completed {
		t.Error("failed tickets are still terminal")
	}
	if resp.ResultData == nil || *resp.ResultData != "Error: device exploded" {
		t.Errorf("result = %v", resp.ResultData)
	}
	if resp.Message != "Ticket processing failed" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestResponseUnknownTicket(t *testing.T) {
	m, _, _, _ := newFixture(t, oneDeviceCatalog)
	_, err := m.Response("no-such-id")
	if !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRecoverRequeuesLeftoverPayloads(t *testing.T) {
	path := testutil.WriteCatalog(t, oneDeviceCatalog)
	inv, err := inventory.NewManager(path, testutil.NewFakeConnector())
	if err != nil {
		t.Fatal(err)
	}
	ticketPath := t.TempDir()

	// A payload left behind by a crashed run.
	dir := filepath.Join(ticketPath, "active", "cisco", "n9k", "9.3")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "orphan-1.txt"), []byte("cfg"), 0o644); err != nil {
		t.Fatal(err)
	}

	gate := newGateTask()
	m, err := NewManager(ticketPath, inv, gate.fn)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Recover(); got != 1 {
		t.Fatalf("Recover = %d, want 1", got)
	}

	waitStatus(t, m, "orphan-1", StatusRunning)
	gate.gate <- "orphan-1"
	waitStatus(t, m, "orphan-1", StatusCompleted)
}

func TestRecoverSkipsAlreadyArchivedTickets(t *testing.T) {
	path := testutil.WriteCatalog(t, oneDeviceCatalog)
	inv, err := inventory.NewManager(path, testutil.NewFakeConnector())
	if err != nil {
		t.Fatal(err)
	}
	ticketPath := t.TempDir()

	// The archive record exists: the run finished, only the payload move
	// was interrupted.
	activeDir := filepath.Join(ticketPath, "active", "cisco", "n9k", "9.3")
	archiveDir := filepath.Join(ticketPath, "archive", "cisco", "n9k", "9.3", "done-1")
	for _, d := range []string{activeDir, archiveDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(activeDir, "done-1.txt"), []byte("cfg"), 0o644); err != nil {
		t.Fatal(err)
	}
	record := `{"id":"done-1","status":"completed","vendor":"cisco","model":"n9k","version":"9.3","enqueued_at":"2026-08-01T10:00:00Z","started_at":null,"completed_at":null,"machine":null,"completed":true,"message":"Ticket completed successfully"}`
	if err := os.WriteFile(filepath.Join(archiveDir, "done-1.json"), []byte(record), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(ticketPath, inv, newGateTask().fn)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Recover(); got != 0 {
		t.Fatalf("Recover = %d, want 0", got)
	}

	// The payload finished its move into the archive.
	if _, err := os.Stat(filepath.Join(archiveDir, "done-1.txt")); err != nil {
		t.Errorf("payload not moved to archive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(activeDir, "done-1.txt")); !os.IsNotExist(err) {
		t.Error("payload still under active/")
	}

	// And the archived response is served as-is.
	resp, err := m.Response("done-1")
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if resp.Status != StatusCompleted || !resp.Completed {
		t.Errorf("archived response = %+v", resp)
	}
}

func TestQueueStatus(t *testing.T) {
	m, _, gate, _ := newFixture(t, oneDeviceCatalog)

	a, _ := m.Submit("cisco", "n9k", "9.3", []byte("a"))
	b, _ := m.Submit("cisco", "n9k", "9.3", []byte("b"))

	status := m.QueueStatus()
	if status.RunningCount != 1 || status.QueuedCount != 1 {
		t.Fatalf("status = %+v", status)
	}
	if holder := status.Machines["S1"]; holder == nil || *holder != a.ID {
		t.Errorf("Machines[S1] = %v, want %s", holder, a.ID)
	}
	if status.QueuePosition[b.ID] != 1 {
		t.Errorf("position[B] = %d", status.QueuePosition[b.ID])
	}

	gate.gate <- a.ID
	waitStatus(t, m, a.ID, StatusCompleted)
	gate.gate <- b.ID
	waitStatus(t, m, b.ID, StatusCompleted)
}

// slowInventory stalls every allocation the way a dark switch stalls the
// reachability probe, then fails it.
type slowInventory struct {
	probing   chan struct{}
	release   chan struct{}
	probeOnce sync.Once
}

func (s *slowInventory) ReserveFor(ctx context.Context, ticketID, vendor, model, version string) *inventory.Machine {
	s.probeOnce.Do(func() { close(s.probing) })
	<-s.release
	return nil
}

func (s *slowInventory) ReleaseTicket(serial, ticketID string) bool { return true }

func (s *slowInventory) ValidateHolder(ticketID, serial string) bool { return true }

func (s *slowInventory) Supports(vendor, model, version string) bool { return true }

func (s *slowInventory) RunningCount() int { return 0 }

func (s *slowInventory) Holders() map[string]*string { return map[string]*string{} }

func TestStatusReadsDoNotBlockOnAdmissionProbe(t *testing.T) {
	inv := &slowInventory{probing: make(chan struct{}), release: make(chan struct{})}
	m, err := NewManager(t.TempDir(), inv, func(ctx context.Context, tk Ticket, machine inventory.Machine) (string, error) {
		return "", nil
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	submitted := make(chan *Ticket, 1)
	go func() {
		tk, err := m.Submit("cisco", "n9k", "9.3", []byte("payload"))
		if err != nil {
			t.Errorf("Submit: %v", err)
		}
		submitted <- tk
	}()
	<-inv.probing

	reads := make(chan QueueStatus, 1)
	go func() {
		status := m.QueueStatus()
		if _, err := m.SearchTickets(SearchRequest{}); err != nil {
			t.Errorf("SearchTickets: %v", err)
		}
		reads <- status
	}()

	select {
	case status := <-reads:
		if status.QueuedCount != 1 {
			t.Errorf("QueuedCount = %d, want 1", status.QueuedCount)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("status reads stalled behind the admission probe")
	}

	close(inv.release)
	tk := <-submitted
	if tk == nil || tk.Status != StatusQueued {
		t.Fatalf("submitted ticket = %+v, want queued", tk)
	}
}
