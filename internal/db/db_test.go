package db

import (
	"context"
	"testing"

	"github.com/lucasnoah/ecosystemci/internal/history"
	"github.com/lucasnoah/ecosystemci/internal/store"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

var (
	_ store.Store       = (*DB)(nil)
	_ store.EventLogger = (*DB)(nil)
	_ store.EventReader = (*DB)(nil)
)

func TestMigrate(t *testing.T) {
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Verify all tables exist
	tables := []string{"schema_version", "stacks", "commit_records", "suite_outcomes", "record_events"}
	for _, table := range tables {
		var name string
		err := d.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d := testDB(t)
	if err := d.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func sampleHistory() history.History {
	return history.History{
		{
			CommitSHA:       "bbb",
			CommitTimestamp: "2025-06-02T10:00:00Z",
			CommitMessage:   "fix: second",
			Author:          history.Author{Name: "Ana", Login: "ana"},
			Repository:      history.Repository{FullName: "web-infra-dev/rspack", Name: "rspack"},
			WorkflowRunURL:  "https://github.com/o/r/actions/runs/2",
			OverallStatus:   history.StatusFailure,
			Suites: []history.SuiteOutcome{
				{Name: "nx", Status: history.StatusFailure, DurationMs: history.Int64(1200), LogURL: "https://log/1"},
				{Name: "modernjs", Status: history.StatusSuccess, Notes: "ok"},
			},
		},
		{
			CommitSHA:       "aaa",
			CommitTimestamp: "2025-06-01T10:00:00Z",
			CommitMessage:   "feat: first",
			Repository:      history.Repository{FullName: "web-infra-dev/rspack", Name: "rspack"},
			OverallStatus:   history.StatusSuccess,
			Suites:          []history.SuiteOutcome{{Name: "nx", Status: history.StatusSuccess}},
		},
	}
}

func TestSaveAndLoadHistory(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.SaveHistory(ctx, "rspack", sampleHistory()); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	got, err := d.LoadHistory(ctx, "rspack")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].CommitSHA != "bbb" || got[1].CommitSHA != "aaa" {
		t.Errorf("order = [%s %s], want [bbb aaa]", got[0].CommitSHA, got[1].CommitSHA)
	}
	first := got[0]
	if first.Author.Login != "ana" || first.WorkflowRunURL == "" {
		t.Errorf("first record fields lost: %+v", first)
	}
	if len(first.Suites) != 2 || first.Suites[0].Name != "nx" || first.Suites[1].Name != "modernjs" {
		t.Fatalf("suites = %+v", first.Suites)
	}
	if first.Suites[0].DurationMs == nil || *first.Suites[0].DurationMs != 1200 {
		t.Errorf("DurationMs = %v, want 1200", first.Suites[0].DurationMs)
	}
	if first.Suites[1].DurationMs != nil {
		t.Errorf("DurationMs = %v, want nil", *first.Suites[1].DurationMs)
	}
	if first.Suites[1].Notes != "ok" {
		t.Errorf("Notes = %q", first.Suites[1].Notes)
	}
}

func TestSaveHistoryReplaces(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.SaveHistory(ctx, "rspack", sampleHistory()); err != nil {
		t.Fatal(err)
	}
	next := sampleHistory()[1:]
	if err := d.SaveHistory(ctx, "rspack", next); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	got, err := d.LoadHistory(ctx, "rspack")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CommitSHA != "aaa" {
		t.Errorf("after replace = %+v, want only aaa", got)
	}

	var suites int
	if err := d.conn.QueryRow("SELECT COUNT(*) FROM suite_outcomes WHERE stack = 'rspack'").Scan(&suites); err != nil {
		t.Fatal(err)
	}
	if suites != 1 {
		t.Errorf("suite rows = %d, want 1", suites)
	}
}

func TestLoadUnknownStackIsEmpty(t *testing.T) {
	d := testDB(t)
	got, err := d.LoadHistory(context.Background(), "rsdoctor")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("LoadHistory = %v, want empty", got)
	}
}

func TestStacksAreIsolated(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.SaveHistory(ctx, "rspack", sampleHistory()); err != nil {
		t.Fatal(err)
	}
	if err := d.SaveHistory(ctx, "rsbuild", history.History{}); err != nil {
		t.Fatal(err)
	}
	stacks, err := d.Stacks(ctx)
	if err != nil {
		t.Fatalf("Stacks: %v", err)
	}
	if len(stacks) != 2 || stacks[0] != "rsbuild" || stacks[1] != "rspack" {
		t.Errorf("Stacks = %v", stacks)
	}
	rsbuild, err := d.LoadHistory(ctx, "rsbuild")
	if err != nil || len(rsbuild) != 0 {
		t.Errorf("rsbuild = %v, %v", rsbuild, err)
	}
}

func TestEvents(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	events := []store.Event{
		{Stack: "rspack", CommitSHA: "aaa", Status: history.StatusSuccess, Kind: "recorded"},
		{Stack: "rspack", CommitSHA: "old", Kind: "rejected", Detail: "invalid commitTimestamp"},
		{Stack: "rsbuild", CommitSHA: "ccc", Kind: "failed", Detail: "no suites", Timestamp: "2025-06-01T00:00:00Z"},
	}
	for _, e := range events {
		if err := d.LogEvent(ctx, e); err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
	}

	got, err := d.RecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].CommitSHA != "ccc" || got[0].Timestamp != "2025-06-01T00:00:00Z" {
		t.Errorf("newest event = %+v", got[0])
	}
	if got[1].Kind != "rejected" || got[1].Status != "" {
		t.Errorf("second event = %+v", got[1])
	}
	if got[0].ID <= got[1].ID {
		t.Errorf("event ids should increase: %d then %d", got[1].ID, got[0].ID)
	}
}

func TestLogEventRejectsUnknownKind(t *testing.T) {
	d := testDB(t)
	err := d.LogEvent(context.Background(), store.Event{Stack: "rspack", CommitSHA: "a", Kind: "exploded"})
	if err == nil {
		t.Fatal("expected constraint error for unknown kind")
	}
}

func TestReset(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	if err := d.SaveHistory(ctx, "rspack", sampleHistory()); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, err := d.LoadHistory(ctx, "rspack")
	if err != nil || len(got) != 0 {
		t.Errorf("after reset = %v, %v", got, err)
	}
}
