package store

import (
	"path/filepath"
	"testing"
)

func testRunLog(t *testing.T) *RunLog {
	t.Helper()
	r, err := NewRunLog(filepath.Join(t.TempDir(), "scribe.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestAppendAndRecent(t *testing.T) {
	r := testRunLog(t)

	events := []string{"plan_created", "step_started", "step_completed"}
	for _, evt := range events {
		if err := r.Append("sess-1", evt, "step-1", "detail"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := r.Recent("sess-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Event != events[i] {
			t.Errorf("entry %d = %q, want %q (chronological order)", i, e.Event, events[i])
		}
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	r := testRunLog(t)
	for _, evt := range []string{"a", "b", "c", "d"} {
		if err := r.Append("sess-1", evt, "", ""); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := r.Recent("sess-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Limit keeps the newest events, still oldest-first.
	if entries[0].Event != "c" || entries[1].Event != "d" {
		t.Errorf("entries = %q, %q; want c, d", entries[0].Event, entries[1].Event)
	}
}

func TestRecentIsScopedToSession(t *testing.T) {
	r := testRunLog(t)
	_ = r.Append("sess-1", "mine", "", "")
	_ = r.Append("sess-2", "theirs", "", "")

	entries, err := r.Recent("sess-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Event != "mine" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestPurge(t *testing.T) {
	r := testRunLog(t)
	_ = r.Append("sess-1", "a", "", "")
	_ = r.Append("sess-2", "b", "", "")

	if err := r.Purge("sess-1"); err != nil {
		t.Fatal(err)
	}

	entries, _ := r.Recent("sess-1", 10)
	if len(entries) != 0 {
		t.Errorf("purged session still has %d entries", len(entries))
	}
	entries, _ = r.Recent("sess-2", 10)
	if len(entries) != 1 {
		t.Errorf("purge leaked into another session: %+v", entries)
	}
}
