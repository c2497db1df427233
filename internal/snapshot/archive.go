package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	archivePrefix = "snapshot_"
	archiveSuffix = ".json"
)

// Archive keeps copies of written snapshots on disk, named by write time,
// and prunes all but the newest few.
type Archive struct {
	dir  string
	keep int
}

// NewArchive creates an Archive in dir keeping at most keep files.
func NewArchive(dir string, keep int) *Archive {
	if keep <= 0 {
		keep = 5
	}
	return &Archive{dir: dir, keep: keep}
}

// Save stores data as snapshot_<unix>.json and prunes old copies.
func (a *Archive) Save(data []byte, ts time.Time) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	name := fmt.Sprintf("%s%d%s", archivePrefix, ts.Unix(), archiveSuffix)
	if err := WriteFile(filepath.Join(a.dir, name), data); err != nil {
		return fmt.Errorf("writing archive file: %w", err)
	}

	return a.prune()
}

// LoadLatest decodes the newest archived snapshot and returns its time.
func (a *Archive) LoadLatest() (*Snapshot, time.Time, error) {
	files, err := a.list()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("no archived snapshots in %s", a.dir)
	}

	latest := files[len(files)-1]
	s, err := Load(filepath.Join(a.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading archive file: %w", err)
	}
	return s, latest.ts, nil
}

type archiveFile struct {
	name string
	ts   time.Time
}

// list returns archive files sorted oldest first.
func (a *Archive) list() ([]archiveFile, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing archive dir: %w", err)
	}

	var files []archiveFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, archiveFile{name: name, ts: time.Unix(unix, 0).UTC()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (a *Archive) prune() error {
	files, err := a.list()
	if err != nil {
		return err
	}
	if len(files) <= a.keep {
		return nil
	}

	for _, f := range files[:len(files)-a.keep] {
		if err := os.Remove(filepath.Join(a.dir, f.name)); err != nil {
			return fmt.Errorf("pruning archive file %s: %w", f.name, err)
		}
	}
	return nil
}
