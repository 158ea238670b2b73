package ticket

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/switchyard-lab/switchyard/pkg/util"
)

// DateRange bounds a timestamp field. Both ends are inclusive and either
// may be empty.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SearchRequest is the ticket search filter. Field names follow the wire
// aliases used by the operator UI.
type SearchRequest struct {
	ActiveFields []string             `json:"activeFields"`
	FieldValues  map[string]string    `json:"fieldValues"`
	DateRanges   map[string]DateRange `json:"dateRanges"`
	ResultData   string               `json:"resultData"`
	RawData      string               `json:"rawData"`
}

var searchableFields = map[string]bool{
	"id":             true,
	"status":         true,
	"vendor":         true,
	"model":          true,
	"version":        true,
	"enqueued_at":    true,
	"started_at":     true,
	"completed_at":   true,
	"machine.serial": true,
	"machine.ip":     true,
	"machine.port":   true,
}

var dateFields = map[string]bool{
	"enqueued_at":  true,
	"started_at":   true,
	"completed_at": true,
}

// Validate rejects filters that reference fields the search does not know.
func (r *SearchRequest) Validate() error {
	var errs []string
	for _, f := range r.ActiveFields {
		if !searchableFields[f] {
			errs = append(errs, "unknown search field: "+f)
		}
	}
	for f := range r.FieldValues {
		if !searchableFields[f] {
			errs = append(errs, "unknown search field: "+f)
		}
	}
	for f := range r.DateRanges {
		if !dateFields[f] {
			errs = append(errs, "unknown date field: "+f)
		}
	}
	if len(errs) > 0 {
		return util.NewValidationError(errs...)
	}
	return nil
}

// SearchTickets matches the filter against every ticket, live and archived,
// and returns the matching responses in no particular order. Archived
// records are read from the archive tree on disk, and a rawData filter
// additionally reads payload files, so a search does filesystem I/O.
func (m *Manager) SearchTickets(req SearchRequest) ([]Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	live := make([]Response, 0, len(m.tickets))
	for _, t := range m.tickets {
		live = append(live, buildResponse(t, m.positionLocked(t.ID)))
	}
	m.mu.Unlock()

	results := make([]Response, 0)
	seen := make(map[string]bool, len(live))
	for _, resp := range live {
		seen[resp.ID] = true
		if m.matchResponse(req, resp) {
			results = append(results, resp)
		}
	}

	err := filepath.WalkDir(m.archivePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			util.Warnf("skipping unreadable archive record %s: %v", path, err)
			return nil
		}
		if seen[resp.ID] {
			return nil
		}
		if m.matchResponse(req, resp) {
			results = append(results, resp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching ticket archive: %w", err)
	}
	return results, nil
}

// matchResponse applies every filter in the request. Each non-blank
// fieldValues entry is a filter in its own right, whether or not the field
// is also listed in activeFields.
func (m *Manager) matchResponse(req SearchRequest, resp Response) bool {
	for field, want := range req.FieldValues {
		if strings.TrimSpace(want) == "" {
			continue
		}
		if !matchValue(fieldValue(resp, field), want) {
			return false
		}
	}
	for field, rng := range req.DateRanges {
		ts, ok := responseTime(resp, field)
		if !ok || !inDateRange(ts, rng) {
			return false
		}
	}
	if req.ResultData != "" {
		if resp.ResultData == nil || !containsFold(*resp.ResultData, req.ResultData) {
			return false
		}
	}
	if req.RawData != "" {
		if !containsFold(m.payloadFor(resp), req.RawData) {
			return false
		}
	}
	return true
}

// matchValue is a case-insensitive substring match. Commas in the wanted
// value split it into alternatives, any of which may match.
func matchValue(have, want string) bool {
	for _, alt := range strings.Split(want, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if containsFold(have, alt) {
			return true
		}
	}
	return false
}

func containsFold(have, want string) bool {
	return strings.Contains(strings.ToLower(have), strings.ToLower(want))
}

func fieldValue(resp Response, field string) string {
	switch field {
	case "id":
		return resp.ID
	case "status":
		return string(resp.Status)
	case "vendor":
		return resp.Vendor
	case "model":
		return resp.Model
	case "version":
		return resp.Version
	case "enqueued_at":
		return resp.EnqueuedAt.Format(time.RFC3339)
	case "started_at":
		if resp.StartedAt != nil {
			return resp.StartedAt.Format(time.RFC3339)
		}
	case "completed_at":
		if resp.CompletedAt != nil {
			return resp.CompletedAt.Format(time.RFC3339)
		}
	case "machine.serial":
		if resp.Machine != nil {
			return resp.Machine.Serial
		}
	case "machine.ip":
		if resp.Machine != nil {
			return resp.Machine.IP
		}
	case "machine.port":
		if resp.Machine != nil {
			return strconv.Itoa(resp.Machine.Port)
		}
	}
	return ""
}

func responseTime(resp Response, field string) (time.Time, bool) {
	switch field {
	case "enqueued_at":
		return resp.EnqueuedAt, !resp.EnqueuedAt.IsZero()
	case "started_at":
		if resp.StartedAt != nil {
			return *resp.StartedAt, true
		}
	case "completed_at":
		if resp.CompletedAt != nil {
			return *resp.CompletedAt, true
		}
	}
	return time.Time{}, false
}

func inDateRange(ts time.Time, rng DateRange) bool {
	if from, ok := parseSearchTime(rng.From); ok && ts.Before(from) {
		return false
	}
	if to, ok := parseSearchTime(rng.To); ok {
		// A date-only upper bound covers the whole day.
		if len(strings.TrimSpace(rng.To)) == len("2006-01-02") {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		if ts.After(to) {
			return false
		}
	}
	return true
}

func parseSearchTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// payloadFor returns the uploaded configuration content for a ticket,
// live or archived. Missing files yield an empty string.
func (m *Manager) payloadFor(resp Response) string {
	rel := filepath.Join(resp.Vendor, resp.Model, resp.Version)
	candidates := []string{
		filepath.Join(m.activePath, rel, resp.ID+".txt"),
		filepath.Join(m.archivePath, rel, resp.ID, resp.ID+".txt"),
	}
	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return string(data)
		}
	}
	return ""
}
