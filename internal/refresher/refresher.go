// Package refresher builds the element-set snapshot: each catalog satellite
// is resolved through an ordered list of strategies so that known-good data
// is never dropped before every fallback has been tried.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/star/passwatch/internal/catalog"
	"github.com/star/passwatch/internal/celestrak"
	"github.com/star/passwatch/internal/metrics"
	"github.com/star/passwatch/internal/snapshot"
)

// Refresher runs the resolution for a catalog.
type Refresher struct {
	cfg     Config
	catalog *catalog.Catalog
	sources []celestrak.Source
	archive *snapshot.Archive
	journal *Journal
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Refresher with the direct source followed by the mirror.
func New(cfg Config, cat *catalog.Catalog, logger *slog.Logger) *Refresher {
	cfg.applyDefaults()
	direct := celestrak.NewDirect(cfg.DirectURL, cfg.Timeout)
	mirror := celestrak.NewMirror(cfg.MirrorURL, direct, cfg.Timeout)
	return NewWithSources(cfg, cat, []celestrak.Source{direct, mirror}, logger)
}

// NewWithSources creates a Refresher fetching from the given sources in order.
func NewWithSources(cfg Config, cat *catalog.Catalog, sources []celestrak.Source, logger *slog.Logger) *Refresher {
	cfg.applyDefaults()
	r := &Refresher{
		cfg:     cfg,
		catalog: cat,
		sources: sources,
		journal: NewJournal(cfg.LogPath, logger),
		logger:  logger.With("component", "refresher"),
		now:     time.Now,
	}
	if cfg.ArchiveDir != "" {
		r.archive = snapshot.NewArchive(cfg.ArchiveDir, cfg.ArchiveKeep)
	}
	return r
}

// Strategies returns the resolution order for one run: every fetch source,
// then the manual set, then the previous snapshot.
func (r *Refresher) Strategies(prev *snapshot.Snapshot) []Strategy {
	out := make([]Strategy, 0, len(r.sources)+2)
	for _, src := range r.sources {
		out = append(out, &fetchStrategy{src: src, timeout: r.cfg.Timeout, journal: r.journal, now: r.now})
	}
	out = append(out,
		&manualStrategy{journal: r.journal, now: r.now},
		&previousStrategy{prev: prev, journal: r.journal},
	)
	return out
}

// Build resolves every catalog entry against prev and returns the new
// snapshot. Entries are resolved concurrently; the fetch log keeps catalog
// order. Build never fails: an unresolved satellite is logged as failed.
func (r *Refresher) Build(ctx context.Context, prev *snapshot.Snapshot) *snapshot.Snapshot {
	strategies := r.Strategies(prev)
	entries := r.catalog.Satellites
	outcomes := make([]*Outcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, e := range entries {
		g.Go(func() error {
			outcomes[i] = r.resolve(gctx, e, strategies)
			return nil
		})
	}
	g.Wait()

	out := snapshot.New(r.now())
	for i, e := range entries {
		rec := snapshot.LogRecord{
			NoradID:   e.NoradID,
			Name:      e.Name,
			Status:    snapshot.StatusFailed,
			Timestamp: r.now().UTC(),
		}
		if rec.NoradID == "" {
			rec.NoradID = "manual"
		}
		if o := outcomes[i]; o != nil {
			out.Satellites[e.Key()] = o.Entry
			rec.Status = o.Status
		}
		out.FetchLog = append(out.FetchLog, rec)
		metrics.IncResolution(string(rec.Status))
	}
	return out
}

func (r *Refresher) resolve(ctx context.Context, e catalog.Entry, strategies []Strategy) *Outcome {
	for _, s := range strategies {
		o, err := s.Resolve(ctx, e)
		if errors.Is(err, ErrSkipped) {
			continue
		}
		if err != nil {
			r.logger.Debug("strategy failed", "satellite", e.Key(), "strategy", s.Name(), "error", err)
			continue
		}
		return &o
	}
	r.journal.Printf("[%s] No TLE available (no previous, no manual)", e.Name)
	return nil
}

// Previous loads the snapshot the run falls back on: the live file, or the
// newest archived copy when the live file is missing or unreadable. It
// returns nil when neither exists.
func (r *Refresher) Previous() *snapshot.Snapshot {
	prev, err := snapshot.Load(r.cfg.SnapshotPath)
	if err == nil {
		r.journal.Printf("Loaded existing file with %d sats", len(prev.Satellites))
		r.noteSkipped(prev)
		return prev
	}
	if !errors.Is(err, fs.ErrNotExist) {
		r.journal.Printf("Warning: failed to read existing JSON: %v", err)
	}

	if r.archive == nil {
		return nil
	}
	prev, ts, err := r.archive.LoadLatest()
	if err != nil {
		r.logger.Debug("no archived snapshot", "error", err)
		return nil
	}
	r.journal.Printf("Loaded archived snapshot from %s with %d sats", ts.Format(time.RFC3339), len(prev.Satellites))
	r.noteSkipped(prev)
	return prev
}

func (r *Refresher) noteSkipped(prev *snapshot.Snapshot) {
	if len(prev.Skipped) > 0 {
		r.journal.Printf("Warning: ignored %d unreadable entries: %s", len(prev.Skipped), strings.Join(prev.Skipped, ", "))
	}
}

// Run performs one full refresh: load the previous snapshot, resolve every
// satellite, write the new snapshot atomically and archive a copy. Only a
// failure to write the snapshot is returned.
func (r *Refresher) Run(ctx context.Context) error {
	r.journal.Printf("==== TLE fetch start ====")

	prev := r.Previous()
	out := r.Build(ctx, prev)

	data, err := out.Encode()
	if err == nil {
		err = snapshot.WriteFile(r.cfg.SnapshotPath, data)
	}
	if err != nil {
		r.journal.Printf("Failed to write %s: %v", r.cfg.SnapshotPath, err)
		return fmt.Errorf("writing snapshot: %w", err)
	}

	ok := out.Count(snapshot.StatusSuccess) + out.Count(snapshot.StatusFallback)
	r.journal.Printf("Saved %d/%d TLEs → %s", ok, len(r.catalog.Satellites), r.cfg.SnapshotPath)

	if r.archive != nil {
		if err := r.archive.Save(data, out.LastUpdated); err != nil {
			r.logger.Warn("archiving snapshot failed", "error", err)
		}
	}

	metrics.SetSnapshotSatellites(len(out.Satellites))
	metrics.SetLastSuccess(out.LastUpdated)
	if r.cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(r.cfg.MetricsTextfile); err != nil {
			r.logger.Warn("writing metrics textfile failed", "path", r.cfg.MetricsTextfile, "error", err)
		}
	}

	r.journal.Printf("==== TLE fetch done ====")
	return nil
}
