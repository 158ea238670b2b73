// Package ticket implements the legacy job engine: uploaded configuration
// payloads become tickets, tickets queue FIFO for a matching machine, run as
// background jobs, and archive their results to disk.
package ticket

import (
	"fmt"
	"time"
)

// Status is a ticket's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// MachineRef is the ticket's view of its bound machine. The binding is by
// serial; the machine side records the ticket id as holder.
type MachineRef struct {
	Serial string `json:"serial"`
	IP     string `json:"ip"`
	Port   int    `json:"port"`
}

// Ticket binds one uploaded test config to a device-backed job.
type Ticket struct {
	ID          string
	Vendor      string
	Model       string
	Version     string
	Status      Status
	ConfigPath  string
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Machine     *MachineRef
	ResultData  string
}

// Response is the wire shape for one ticket, both served live and written
// to the archive as {id}.json.
type Response struct {
	ID          string      `json:"id"`
	Status      Status      `json:"status"`
	Vendor      string      `json:"vendor"`
	Model       string      `json:"model"`
	Version     string      `json:"version"`
	EnqueuedAt  time.Time   `json:"enqueued_at"`
	StartedAt   *time.Time  `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Machine     *MachineRef `json:"machine"`
	Completed   bool        `json:"completed"`
	Message     string      `json:"message"`
	Position    int         `json:"position,omitempty"`
	ResultData  *string     `json:"result_data,omitempty"`
}

// buildResponse renders a ticket for the wire. position is the 1-based
// queue slot for queued tickets, 0 otherwise.
func buildResponse(t *Ticket, position int) Response {
	resp := Response{
		ID:          t.ID,
		Status:      t.Status,
		Vendor:      t.Vendor,
		Model:       t.Model,
		Version:     t.Version,
		EnqueuedAt:  t.EnqueuedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		Machine:     t.Machine,
	}

	switch t.Status {
	case StatusQueued:
		resp.Message = fmt.Sprintf("Ticket is in queue at position %d", position)
		resp.Position = position
	case StatusRunning:
		serial := "unknown machine"
		if t.Machine != nil {
			serial = t.Machine.Serial
		}
		resp.Message = fmt.Sprintf("Ticket is running on %s", serial)
	case StatusCompleted:
		resp.Message = "Ticket completed successfully"
		resp.Completed = true
		result := t.ResultData
		resp.ResultData = &result
	case StatusFailed:
		resp.Message = "Ticket processing failed"
		resp.Completed = true
		result := t.ResultData
		resp.ResultData = &result
	}
	return resp
}

// QueueStatus summarizes the admission queue and fleet occupancy.
type QueueStatus struct {
	QueuedCount   int                `json:"queued_count"`
	RunningCount  int                `json:"running_count"`
	Machines      map[string]*string `json:"machines"`
	QueuePosition map[string]int     `json:"queue_position"`
}
