package refresher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJournalLineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "journal.log")
	j := NewJournal(path, testLogger())
	j.now = func() time.Time { return time.Date(2025, 9, 25, 6, 1, 2, 0, time.UTC) }

	j.Printf("[%s] Trying %s…", "25544", "Direct")
	j.Printf("==== TLE fetch done ====")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading journal: %v", err)
	}
	want := "2025-09-25 06:01:02 - [25544] Trying Direct…\n" +
		"2025-09-25 06:01:02 - ==== TLE fetch done ====\n"
	if string(data) != want {
		t.Errorf("journal = %q, want %q", data, want)
	}
}

func TestJournalWriteFailureIsSilent(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The parent of the journal path is a regular file.
	j := NewJournal(filepath.Join(blocker, "journal.log"), testLogger())
	j.Printf("still fine")

	NewJournal("", testLogger()).Printf("log only")
}
