package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/switchyard-lab/switchyard/pkg/inventory"
	"github.com/switchyard-lab/switchyard/pkg/ticket"
)

// maxUploadBytes caps the config payload a request may carry.
const maxUploadBytes = 8 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	machines, err := s.inv.List(q.Get("vendor"), q.Get("model"), q.Get("version"), q.Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]inventory.Machine{"machines": machines})
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	vendor := chi.URLParam(r, "vendor")
	model := chi.URLParam(r, "model")
	version := chi.URLParam(r, "version")

	machine := s.inv.Reserve(r.Context(), vendor, model, version)
	if machine == nil {
		s.countReservation("none")
		writeDetail(w, http.StatusNotFound, "No available machines found")
		return
	}
	s.countReservation("success")
	writeJSON(w, http.StatusOK, machine)
}

// releaseResponse is the success body of POST /release/{serial}.
type releaseResponse struct {
	Status  inventory.ReleaseResult `json:"status"`
	Message string                  `json:"message"`
	Machine *inventory.Machine      `json:"machine"`
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	result := s.inv.Release(r.Context(), serial)
	s.countRelease(string(result))

	// The machine in the body always carries the current in-memory status,
	// including after a failed release.
	var current *inventory.Machine
	if m, ok := s.inv.Get(serial); ok {
		current = &m
	}

	switch result {
	case inventory.ReleaseNotFound:
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Machine %s not found", serial))
	case inventory.ReleaseUnreachable:
		writeDetail(w, http.StatusConflict,
			fmt.Sprintf("Machine %s is unreachable and cannot be reset via SSH.", serial))
	case inventory.ReleaseFailed:
		writeDetail(w, http.StatusInternalServerError, "Failed to execute reset command on the device.")
	case inventory.ReleaseAlreadyAvailable:
		writeJSON(w, http.StatusOK, releaseResponse{
			Status:  result,
			Message: "Machine was already available.",
			Machine: current,
		})
	case inventory.ReleaseSuccess:
		writeJSON(w, http.StatusOK, releaseResponse{
			Status:  result,
			Message: "Machine reset initiated successfully. It will be reachable soon.",
			Machine: current,
		})
	default:
		writeDetail(w, http.StatusInternalServerError, "Unknown error")
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	count, err := s.inv.Reload()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to reload configuration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Configuration reloaded. Total devices: %d", count),
	})
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	vendor := chi.URLParam(r, "vendor")
	model := chi.URLParam(r, "model")
	version := chi.URLParam(r, "version")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is empty")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is empty")
		return
	}

	t, err := s.tickets.Submit(vendor, model, version, data)
	if err != nil {
		writeError(w, err)
		return
	}

	message := "Request accepted and queued."
	if t.Status == ticket.StatusRunning {
		message = "Request accepted and started processing."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      t.ID,
		"status":  t.Status,
		"message": message,
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := s.tickets.Response(id)
	if err != nil {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Ticket %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueueInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tickets.QueueStatus())
}

func (s *Server) handleSearchTickets(w http.ResponseWriter, r *http.Request) {
	var req ticket.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid search payload")
		return
	}
	results, err := s.tickets.SearchTickets(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]ticket.Response{"tickets": results})
}

func (s *Server) handleDeviceOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inv.SupportedVersions())
}

func (s *Server) countReservation(outcome string) {
	if s.metrics != nil {
		s.metrics.Reservations.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countRelease(result string) {
	if s.metrics != nil {
		s.metrics.Releases.WithLabelValues(result).Inc()
	}
}
