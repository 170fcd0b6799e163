package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAuditRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "corvid-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	// Create some entries (newest first in memory)
	entries := []string{
		"[Thu Feb 20, 2025 12:00:00 GMT] alice: reload",
		"[Thu Feb 20, 2025 11:00:00 GMT] bob: quit",
	}

	err = SaveAudit(tmpDir, entries)
	if err != nil {
		t.Fatalf("SaveAudit failed: %v", err)
	}

	loaded, err := LoadAudit(tmpDir)
	if err != nil {
		t.Fatalf("LoadAudit failed: %v", err)
	}

	if len(loaded) != len(entries) {
		t.Errorf("Expected %d entries, got %d", len(entries), len(loaded))
	}

	// Should come back in the same order (newest first)
	for i := range entries {
		if loaded[i] != entries[i] {
			t.Errorf("Entry %d mismatch: expected %q, got %q", i, entries[i], loaded[i])
		}
	}
}

func TestLoadAuditMissing(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "corvid-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	entries, err := LoadAudit(tmpDir)
	if err != nil {
		t.Fatalf("LoadAudit should not fail for missing file: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty audit log, got %d entries", len(entries))
	}
}

func TestAddAudit(t *testing.T) {
	entries := []string{"old1", "old2"}
	entries = AddAudit(entries, "new")

	if len(entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(entries))
	}

	if entries[0] != "new" {
		t.Errorf("New entry should be first, got %q", entries[0])
	}
}

func TestAddAuditMaxEntries(t *testing.T) {
	// Create entries at max capacity
	entries := make([]string, 500)
	for i := range entries {
		entries[i] = "entry"
	}

	entries = AddAudit(entries, "new")

	if len(entries) != 500 {
		t.Errorf("Expected 500 entries (max), got %d", len(entries))
	}

	if entries[0] != "new" {
		t.Errorf("New entry should be first")
	}
}

func TestSeenRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "corvid-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	records := map[string]*SeenRecord{
		"alice": {Nick: "alice", Time: 1740052800, Info: "parting #lounge"},
		"bob":   {Nick: "bob", Time: 1740049200, Info: "quit: gone fishing"},
	}

	err = SaveSeen(tmpDir, records)
	if err != nil {
		t.Fatalf("SaveSeen failed: %v", err)
	}

	loaded, err := LoadSeen(tmpDir)
	if err != nil {
		t.Fatalf("LoadSeen failed: %v", err)
	}

	if len(loaded) != len(records) {
		t.Fatalf("Expected %d records, got %d", len(records), len(loaded))
	}
	for nick, want := range records {
		got, ok := loaded[nick]
		if !ok {
			t.Errorf("Record for %q missing after round trip", nick)
			continue
		}
		if got.Time != want.Time || got.Info != want.Info {
			t.Errorf("Record for %q mismatch: got %+v, want %+v", nick, got, want)
		}
	}
}

func TestLoadSeenSkipsMalformed(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "corvid-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	content := "alice%%1740052800%%parting #lounge\n" +
		"garbage line\n" +
		"bob%%not-a-time%%quit\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "seen.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadSeen(tmpDir)
	if err != nil {
		t.Fatalf("LoadSeen failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(loaded))
	}
	if loaded["alice"] == nil || loaded["alice"].Info != "parting #lounge" {
		t.Errorf("Surviving record wrong: %+v", loaded["alice"])
	}
}

func TestLoadSeenMissing(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "corvid-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	loaded, err := LoadSeen(tmpDir)
	if err != nil {
		t.Fatalf("LoadSeen should not fail for missing file: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Expected empty table, got %d records", len(loaded))
	}
}
