package snapshot

import (
	"bytes"
	"os"
	"sync/atomic"
	"time"
)

// Loaded is a snapshot as served: the decoded form plus the exact file bytes.
type Loaded struct {
	Snapshot *Snapshot
	Raw      []byte
	ModTime  time.Time
	LoadedAt time.Time
}

// Store holds the snapshot the server currently serves. Reads are lock-free.
type Store struct {
	current atomic.Pointer[Loaded]
	path    string
}

// NewStore creates an empty Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the current snapshot, or nil if none has been loaded.
func (s *Store) Get() *Loaded {
	return s.current.Load()
}

// Reload rereads the file when its modification time or content changed.
// A file that fails to decode leaves the previous snapshot in place.
func (s *Store) Reload() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return false, err
	}

	cur := s.current.Load()
	if cur != nil && info.ModTime().Equal(cur.ModTime) {
		return false, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, err
	}
	if cur != nil && bytes.Equal(data, cur.Raw) {
		return false, nil
	}

	snap, err := Decode(data)
	if err != nil {
		return false, err
	}

	s.current.Store(&Loaded{
		Snapshot: snap,
		Raw:      data,
		ModTime:  info.ModTime(),
		LoadedAt: time.Now(),
	})
	return true, nil
}

// AgeSeconds returns seconds since the current snapshot's last_updated,
// or -1 if none is loaded.
func (s *Store) AgeSeconds() float64 {
	cur := s.current.Load()
	if cur == nil {
		return -1
	}
	return time.Since(cur.Snapshot.LastUpdated).Seconds()
}
