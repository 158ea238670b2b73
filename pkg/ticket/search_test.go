package ticket

import (
	"errors"
	"testing"

	"github.com/switchyard-lab/switchyard/pkg/util"
)

func submitAndFinish(t *testing.T, m *Manager, gate *gateTask, payload string) Response {
	t.Helper()
	tk, err := m.Submit("cisco", "n9k", "9.3", []byte(payload))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	gate.gate <- tk.ID
	return waitStatus(t, m, tk.ID, StatusCompleted)
}

func TestSearchRejectsUnknownFields(t *testing.T) {
	m, _, _, _ := newFixture(t, oneDeviceCatalog)

	_, err := m.SearchTickets(SearchRequest{ActiveFields: []string{"password"}})
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	_, err = m.SearchTickets(SearchRequest{
		FieldValues: map[string]string{"password": "x"},
	})
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("unknown fieldValues key: err = %v", err)
	}

	_, err = m.SearchTickets(SearchRequest{
		DateRanges: map[string]DateRange{"vendor": {From: "2026-01-01"}},
	})
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("date range on non-date field: err = %v", err)
	}
}

func TestSearchByFieldValues(t *testing.T) {
	m, _, gate, _ := newFixture(t, oneDeviceCatalog)
	done := submitAndFinish(t, m, gate, "interface Eth1/1")

	tests := []struct {
		name string
		req  SearchRequest
		want int
	}{
		{
			name: "vendor match",
			req: SearchRequest{
				ActiveFields: []string{"vendor"},
				FieldValues:  map[string]string{"vendor": "cisco"},
			},
			want: 1,
		},
		{
			name: "vendor match is case-insensitive substring",
			req: SearchRequest{
				ActiveFields: []string{"vendor"},
				FieldValues:  map[string]string{"vendor": "CIS"},
			},
			want: 1,
		},
		{
			name: "vendor mismatch",
			req: SearchRequest{
				ActiveFields: []string{"vendor"},
				FieldValues:  map[string]string{"vendor": "juniper"},
			},
			want: 0,
		},
		{
			name: "comma splits into alternatives",
			req: SearchRequest{
				ActiveFields: []string{"vendor"},
				FieldValues:  map[string]string{"vendor": "juniper, cisco"},
			},
			want: 1,
		},
		{
			name: "filter applies without activeFields",
			req: SearchRequest{
				FieldValues: map[string]string{"vendor": "juniper"},
			},
			want: 0,
		},
		{
			name: "filter matches without activeFields",
			req: SearchRequest{
				FieldValues: map[string]string{"vendor": "cisco"},
			},
			want: 1,
		},
		{
			name: "machine serial",
			req: SearchRequest{
				ActiveFields: []string{"machine.serial"},
				FieldValues:  map[string]string{"machine.serial": "s1"},
			},
			want: 1,
		},
		{
			name: "id exact fragment",
			req: SearchRequest{
				ActiveFields: []string{"id"},
				FieldValues:  map[string]string{"id": done.ID[:8]},
			},
			want: 1,
		},
		{
			name: "blank value is ignored",
			req: SearchRequest{
				ActiveFields: []string{"vendor"},
				FieldValues:  map[string]string{"vendor": "   "},
			},
			want: 1,
		},
		{
			name: "empty filter matches everything",
			req:  SearchRequest{},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.SearchTickets(tt.req)
			if err != nil {
				t.Fatalf("SearchTickets: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("matched %d tickets, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSearchByResultAndRawData(t *testing.T) {
	m, _, gate, _ := newFixture(t, oneDeviceCatalog)
	submitAndFinish(t, m, gate, "interface Eth1/1\n no shutdown")

	got, err := m.SearchTickets(SearchRequest{ResultData: "processed cisco"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("result data search matched %d", len(got))
	}

	got, err = m.SearchTickets(SearchRequest{RawData: "no shutdown"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("raw data search matched %d", len(got))
	}

	got, err = m.SearchTickets(SearchRequest{RawData: "router bgp"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("raw data mismatch matched %d", len(got))
	}
}

func TestSearchByDateRange(t *testing.T) {
	m, _, gate, _ := newFixture(t, oneDeviceCatalog)
	submitAndFinish(t, m, gate, "payload")

	tests := []struct {
		name string
		rng  DateRange
		want int
	}{
		{"open range", DateRange{}, 1},
		{"from in the past", DateRange{From: "2020-01-01"}, 1},
		{"from in the future", DateRange{From: "2100-01-01"}, 0},
		{"to in the past", DateRange{To: "2020-01-01"}, 0},
		{"to today inclusive", DateRange{From: "2020-01-01", To: "2100-01-01"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.SearchTickets(SearchRequest{
				DateRanges: map[string]DateRange{"enqueued_at": tt.rng},
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("matched %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSearchCoversLiveTickets(t *testing.T) {
	m, _, gate, _ := newFixture(t, oneDeviceCatalog)

	running, err := m.Submit("cisco", "n9k", "9.3", []byte("live"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.SearchTickets(SearchRequest{
		ActiveFields: []string{"status"},
		FieldValues:  map[string]string{"status": "running"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != running.ID {
		t.Fatalf("live search = %+v", got)
	}

	gate.gate <- running.ID
	waitStatus(t, m, running.ID, StatusCompleted)
}
