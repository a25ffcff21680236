package stats

import (
	"path/filepath"
	"strings"
	"testing"
)

func openTestRecorder(t *testing.T, path string) *Recorder {
	t.Helper()
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q) returned error: %v", path, err)
	}
	return r
}

func TestRecorder_RecordAndEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	r := openTestRecorder(t, path)
	defer r.Close()

	r.Record("/index.html", 200, 512)
	r.Record("/index.html", 200, 512)
	r.Record("/app.wasm", 200, 4096)
	r.Record("/missing.png", 404, 0)

	entries, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("Entries length = %d, want 3", len(entries))
	}

	// Most requested first.
	if entries[0].Path != "/index.html" {
		t.Errorf("entries[0].Path = %q, want /index.html", entries[0].Path)
	}

	if entries[0].Count != 2 {
		t.Errorf("entries[0].Count = %d, want 2", entries[0].Count)
	}

	if entries[0].Bytes != 1024 {
		t.Errorf("entries[0].Bytes = %d, want 1024", entries[0].Bytes)
	}

	for _, e := range entries {
		if e.Path == "/missing.png" {
			if e.LastStatus != 404 {
				t.Errorf("LastStatus = %d, want 404", e.LastStatus)
			}
			if e.Bytes != 0 {
				t.Errorf("Bytes = %d, want 0 for a miss", e.Bytes)
			}
			if e.LastServed == 0 {
				t.Error("LastServed should be set")
			}
		}
	}
}

func TestRecorder_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")

	r := openTestRecorder(t, path)
	r.Record("/index.html", 200, 100)
	if err := r.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	r = openTestRecorder(t, path)
	defer r.Close()

	r.Record("/index.html", 200, 100)

	entries, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("Entries length = %d, want 1", len(entries))
	}

	// Counts from the previous run are merged, not replaced.
	if entries[0].Count != 2 {
		t.Errorf("Count = %d, want 2", entries[0].Count)
	}

	if entries[0].Bytes != 200 {
		t.Errorf("Bytes = %d, want 200", entries[0].Bytes)
	}
}

func TestRecorder_Reset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	r := openTestRecorder(t, path)
	defer r.Close()

	r.Record("/index.html", 200, 100)
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	r.Record("/pending.html", 200, 100)

	if err := r.Reset(); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}

	entries, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("Entries length = %d after reset, want 0", len(entries))
	}
}

func TestRecorder_SecondOpenFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	r := openTestRecorder(t, path)
	defer r.Close()

	if _, err := Open(path); err == nil {
		t.Error("second Open on a locked store should fail")
	}
}

func TestTotals(t *testing.T) {
	entries := []Entry{
		{Path: "/a", Count: 3, Bytes: 300},
		{Path: "/b", Count: 2, Bytes: 50},
	}

	requests, bytes := Totals(entries)
	if requests != 5 {
		t.Errorf("requests = %d, want 5", requests)
	}
	if bytes != 350 {
		t.Errorf("bytes = %d, want 350", bytes)
	}
}

// BenchmarkRecord measures the per-request cost of recording a hit; the
// database is only touched by the background flusher.
func BenchmarkRecord(b *testing.B) {
	path := filepath.Join(b.TempDir(), "stats.db")
	r, err := Open(path)
	if err != nil {
		b.Fatalf("Open returned error: %v", err)
	}
	defer r.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Record("/index.html", 200, 1024)
	}
}

func TestDefaultPath(t *testing.T) {
	a := DefaultPath("/srv/site-a")
	b := DefaultPath("/srv/site-b")

	if a == b {
		t.Error("different roots should map to different store paths")
	}

	if a != DefaultPath("/srv/site-a") {
		t.Error("DefaultPath should be deterministic")
	}

	if !strings.Contains(a, "sewa") {
		t.Errorf("DefaultPath = %q, want a path under a sewa directory", a)
	}

	if filepath.Ext(a) != ".db" {
		t.Errorf("DefaultPath = %q, want a .db file", a)
	}
}
