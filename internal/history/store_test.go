package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skipshean/linear-agent-tasks/internal/dispatch"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Record(context.Background(), &Entry{TaskID: "TRA-1", Mode: "local"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{RunID: "r1", TeamID: "alpha", TaskID: "TRA-56", Mode: "local", Success: true, RecordedAt: base},
		{RunID: "r1", TeamID: "alpha", TaskID: "TRA-59", Mode: "local", Error: "boom", RecordedAt: base.Add(time.Second)},
		{RunID: "r2", TeamID: "beta", TaskID: "TRA-56", Mode: "cloud", Success: true, ManualRequired: true, RecordedAt: base.Add(500 * time.Millisecond)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if e.ID == 0 {
			t.Error("Record should fill in ID")
		}
	}

	all, err := s.Recent(ctx, Filter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	// newest first, sub-second ordering included
	if all[0].TaskID != "TRA-59" || all[1].TeamID != "beta" || all[2].TaskID != "TRA-56" {
		t.Errorf("unexpected order: %+v", all)
	}
	if !all[1].ManualRequired || all[1].Mode != "cloud" {
		t.Errorf("flags not round-tripped: %+v", all[1])
	}
	if all[0].Error != "boom" || all[0].Success {
		t.Errorf("error entry not round-tripped: %+v", all[0])
	}
	if !all[2].RecordedAt.Equal(base) {
		t.Errorf("RecordedAt = %v, want %v", all[2].RecordedAt, base)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by team", Filter{TeamID: "alpha"}, 2},
		{"by task", Filter{TaskID: "TRA-56"}, 2},
		{"by run", Filter{RunID: "r2"}, 1},
		{"team and task", Filter{TeamID: "alpha", TaskID: "TRA-56"}, 1},
		{"limit", Filter{Limit: 1}, 1},
		{"no match", Filter{TeamID: "ghost"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Recent(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestRecordResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runID := NewRunID()
	if _, err := uuid.Parse(runID); err != nil {
		t.Fatalf("NewRunID() = %q is not a UUID: %v", runID, err)
	}

	results := []dispatch.Result{
		{TaskID: "TRA-56", Success: true, Message: "Lifecycle states document created"},
		{TaskID: "TRA-65", Success: true, ManualRequired: true},
		{TaskID: "TRA-999", Error: "Unknown task ID: TRA-999"},
	}
	if err := s.RecordResults(ctx, runID, "alpha", "local", results); err != nil {
		t.Fatalf("RecordResults: %v", err)
	}

	got, err := s.Recent(ctx, Filter{RunID: runID})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	byTask := map[string]Entry{}
	for _, e := range got {
		byTask[e.TaskID] = e
		if e.TeamID != "alpha" || e.Mode != "local" {
			t.Errorf("entry %s has team=%q mode=%q", e.TaskID, e.TeamID, e.Mode)
		}
	}
	if byTask["TRA-999"].Error != "Unknown task ID: TRA-999" {
		t.Errorf("error not stored: %+v", byTask["TRA-999"])
	}
	if !byTask["TRA-65"].ManualRequired {
		t.Error("manual flag not stored")
	}
}

func TestRecordDefaults(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	e := &Entry{TaskID: "TRA-1"}
	if err := s.Record(context.Background(), e); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.RunID == "" {
		t.Error("RunID should default to a fresh id")
	}
	if !e.RecordedAt.Equal(fixed) {
		t.Errorf("RecordedAt = %v, want %v", e.RecordedAt, fixed)
	}
}
