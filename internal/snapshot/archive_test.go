package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiveSaveAndLoadLatest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	a := NewArchive(dir, 3)

	base := time.Date(2025, 9, 24, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s := New(base.Add(time.Duration(i) * time.Hour))
		data, err := s.Encode()
		if err != nil {
			t.Fatal(err)
		}
		if err := a.Save(data, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	files, err := a.list()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("kept %d files, want 3", len(files))
	}
	if !files[0].ts.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("oldest kept = %v", files[0].ts)
	}

	s, ts, err := a.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	want := base.Add(4 * time.Hour)
	if !ts.Equal(want) || !s.LastUpdated.Equal(want) {
		t.Errorf("latest = %v / %v, want %v", ts, s.LastUpdated, want)
	}
}

func TestArchiveIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "snapshot_abc.json", "snapshot_1.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	a := NewArchive(dir, 1)
	if _, _, err := a.LoadLatest(); err == nil {
		t.Error("expected error with no archived snapshots")
	}
}

func TestArchiveMissingDir(t *testing.T) {
	a := NewArchive(filepath.Join(t.TempDir(), "absent"), 0)
	if a.keep != 5 {
		t.Errorf("default keep = %d", a.keep)
	}
	if _, _, err := a.LoadLatest(); err == nil {
		t.Error("expected error for missing dir")
	}
}
