// Package snapshot is the element-set file handed from the refresher to the
// server: model, atomic write, rotated archive and an in-memory store.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Status is a fetch-log outcome.
type Status string

const (
	StatusSuccess  Status = "success"  // fetched or manual
	StatusFallback Status = "fallback" // previous snapshot entry reused
	StatusFailed   Status = "failed"   // nothing usable
)

// Satellite sources written by the refresher. Entries carried over from a
// previous snapshot keep whatever source they had.
const (
	SourceManual    = "manual"
	SourceCelestrak = "celestrak"
)

// StaleNote marks an entry reused from the previous snapshot.
const StaleNote = "Using previous TLE (fetch/manual failed today)"

// Entry is one satellite's element set with its provenance.
//
// An entry read from a file remembers its bytes and is written back
// unchanged, apart from Note when set. Other field edits on a decoded entry
// are not written.
type Entry struct {
	Name      string     `json:"name"`
	NoradID   *string    `json:"norad_id"`
	TLE       string     `json:"tle"`
	Epoch     *time.Time `json:"epoch"`
	FetchedAt time.Time  `json:"fetched_at"`
	Source    string     `json:"source"`
	Note      string     `json:"note,omitempty"`

	raw json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.raw == nil {
		type plain Entry
		return marshal(plain(e))
	}
	if e.Note == "" {
		return e.raw, nil
	}
	return setMember(e.raw, "note", e.Note)
}

// UnmarshalJSON implements json.Unmarshaler. Timestamps are read leniently:
// one that does not parse leaves the field unset instead of failing.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w struct {
		Name      string  `json:"name"`
		NoradID   *string `json:"norad_id"`
		TLE       string  `json:"tle"`
		Epoch     *string `json:"epoch"`
		FetchedAt *string `json:"fetched_at"`
		Source    string  `json:"source"`
		Note      string  `json:"note"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.TLE == "" {
		return errors.New("entry has no element set")
	}
	*e = Entry{
		Name:    w.Name,
		NoradID: w.NoradID,
		TLE:     w.TLE,
		Source:  w.Source,
		Note:    w.Note,
		raw:     append(json.RawMessage(nil), data...),
	}
	if w.Epoch != nil {
		if t, ok := parseTimestamp(*w.Epoch); ok {
			e.Epoch = &t
		}
	}
	if w.FetchedAt != nil {
		if t, ok := parseTimestamp(*w.FetchedAt); ok {
			e.FetchedAt = t
		}
	}
	return nil
}

// LogRecord is one satellite's outcome in a run.
type LogRecord struct {
	NoradID   string    `json:"norad_id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON implements json.Unmarshaler with a lenient timestamp.
func (r *LogRecord) UnmarshalJSON(data []byte) error {
	var w struct {
		NoradID   string  `json:"norad_id"`
		Name      string  `json:"name"`
		Status    Status  `json:"status"`
		Timestamp *string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = LogRecord{NoradID: w.NoradID, Name: w.Name, Status: w.Status}
	if w.Timestamp != nil {
		if t, ok := parseTimestamp(*w.Timestamp); ok {
			r.Timestamp = t
		}
	}
	return nil
}

// Snapshot is the persisted result of one refresher run.
type Snapshot struct {
	LastUpdated time.Time        `json:"last_updated"`
	Satellites  map[string]Entry `json:"satellites"`
	FetchLog    []LogRecord      `json:"fetch_log"`

	// Skipped lists the satellite keys whose entries could not be decoded,
	// sorted.
	Skipped []string `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler. An entry or log record that
// does not decode is dropped on its own; the rest of the file still loads.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w struct {
		LastUpdated json.RawMessage            `json:"last_updated"`
		Satellites  map[string]json.RawMessage `json:"satellites"`
		FetchLog    []json.RawMessage          `json:"fetch_log"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*s = Snapshot{
		Satellites: make(map[string]Entry, len(w.Satellites)),
		FetchLog:   make([]LogRecord, 0, len(w.FetchLog)),
	}
	var ts string
	if json.Unmarshal(w.LastUpdated, &ts) == nil {
		if t, ok := parseTimestamp(ts); ok {
			s.LastUpdated = t
		}
	}
	for key, raw := range w.Satellites {
		var e Entry
		if bytes.Equal(raw, []byte("null")) {
			s.Skipped = append(s.Skipped, key)
			continue
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			s.Skipped = append(s.Skipped, key)
			continue
		}
		s.Satellites[key] = e
	}
	sort.Strings(s.Skipped)
	for _, raw := range w.FetchLog {
		var r LogRecord
		if json.Unmarshal(raw, &r) == nil {
			s.FetchLog = append(s.FetchLog, r)
		}
	}
	return nil
}

// timestampLayouts are tried in order. Files written by older tooling carry
// ISO 8601 timestamps without a zone; those are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// setMember returns the JSON object obj with key set to value. Other members
// keep their order and bytes; an existing member is replaced in place.
func setMember(obj json.RawMessage, key string, value any) ([]byte, error) {
	val, err := marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(obj))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, errors.New("entry is not a JSON object")
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	found := false
	for n := 0; dec.More(); n++ {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		var member json.RawMessage
		if err := dec.Decode(&member); err != nil {
			return nil, err
		}
		if name == key {
			member, found = val, true
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		k, _ := marshal(name)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(member)
	}
	if !found {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// New returns an empty snapshot stamped with now.
func New(now time.Time) *Snapshot {
	return &Snapshot{
		LastUpdated: now.UTC(),
		Satellites:  make(map[string]Entry),
		FetchLog:    []LogRecord{},
	}
}

// Count returns how many fetch-log records have the given status.
func (s *Snapshot) Count(status Status) int {
	n := 0
	for _, r := range s.FetchLog {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Encode renders the snapshot as indented JSON with a trailing newline.
func (s *Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses snapshot JSON.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Satellites == nil {
		s.Satellites = make(map[string]Entry)
	}
	return &s, nil
}

// Load reads and decodes a snapshot file. A missing file yields an error
// matching os.ErrNotExist.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// WriteFile replaces path with data atomically: the bytes go to a temp file
// in the same directory which is then renamed over the target. On failure
// the existing file is untouched.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting snapshot mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}
