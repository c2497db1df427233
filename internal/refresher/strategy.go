package refresher

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/star/passwatch/internal/catalog"
	"github.com/star/passwatch/internal/celestrak"
	"github.com/star/passwatch/internal/metrics"
	"github.com/star/passwatch/internal/propagation"
	"github.com/star/passwatch/internal/snapshot"
	"github.com/star/passwatch/internal/tle"
)

// ErrSkipped means a strategy does not apply to the entry: no identifier to
// fetch, no manual set, no previous entry.
var ErrSkipped = errors.New("strategy not applicable")

// Outcome is a resolved satellite.
type Outcome struct {
	Entry  snapshot.Entry
	Status snapshot.Status
}

// Strategy is one way of obtaining an element set. Strategies are tried in
// order and the first success wins.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, e catalog.Entry) (Outcome, error)
}

// fetchStrategy asks a remote source for the entry's identifier.
type fetchStrategy struct {
	src     celestrak.Source
	timeout time.Duration
	journal *Journal
	now     func() time.Time
}

func (s *fetchStrategy) Name() string { return s.src.Name() }

func (s *fetchStrategy) Resolve(ctx context.Context, e catalog.Entry) (Outcome, error) {
	if e.NoradID == "" {
		return Outcome{}, ErrSkipped
	}
	id, name := e.NoradID, s.src.Name()

	s.journal.Printf("[%s] Trying %s…", id, name)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.src.Fetch(ctx, id)
	if err != nil {
		var se *celestrak.StatusError
		switch {
		case errors.As(err, &se):
			s.journal.Printf("[%s] %s status %d", id, name, se.Code)
			metrics.IncFetchAttempt(name, "status")
		case celestrak.IsTimeout(err):
			s.journal.Printf("[%s] %s timed out", id, name)
			metrics.IncFetchAttempt(name, "timeout")
		default:
			s.journal.Printf("[%s] %s error: %v", id, name, err)
			metrics.IncFetchAttempt(name, "error")
		}
		return Outcome{}, err
	}

	set, err := tle.Extract(text)
	if err != nil {
		s.journal.Printf("[%s] %s returned invalid TLE format", id, name)
		metrics.IncFetchAttempt(name, "invalid")
		return Outcome{}, err
	}
	metrics.IncFetchAttempt(name, "ok")

	now := s.now()
	entry := newEntry(e, set, snapshot.SourceCelestrak, now, s.journal)
	if entry.Epoch != nil {
		s.journal.Printf("[%s] OK via %s (epoch age: %s)", id, name, humanize.RelTime(*entry.Epoch, now, "old", "ahead"))
	} else {
		s.journal.Printf("[%s] OK via %s", id, name)
	}
	return Outcome{Entry: entry, Status: snapshot.StatusSuccess}, nil
}

// manualStrategy uses the catalog's configured element set, provided the
// propagator accepts it.
type manualStrategy struct {
	journal *Journal
	now     func() time.Time
}

func (s *manualStrategy) Name() string { return "Manual" }

func (s *manualStrategy) Resolve(_ context.Context, e catalog.Entry) (Outcome, error) {
	if !e.HasManual() {
		return Outcome{}, ErrSkipped
	}
	set, err := e.Manual()
	if err == nil {
		_, err = propagation.NewSGP4Propagator(set)
	}
	if err != nil {
		s.journal.Printf("[%s] Manual TLE unusable: %v", e.Name, err)
		return Outcome{}, err
	}
	s.journal.Printf("[%s] Using manual TLE (no fetch)", e.Name)
	return Outcome{
		Entry:  newEntry(e, set, snapshot.SourceManual, s.now(), s.journal),
		Status: snapshot.StatusSuccess,
	}, nil
}

// previousStrategy carries the entry over from the last snapshot, unchanged
// apart from the stale note.
type previousStrategy struct {
	prev    *snapshot.Snapshot
	journal *Journal
}

func (s *previousStrategy) Name() string { return "Previous" }

func (s *previousStrategy) Resolve(_ context.Context, e catalog.Entry) (Outcome, error) {
	if s.prev == nil {
		return Outcome{}, ErrSkipped
	}
	entry, ok := s.prev.Satellites[e.Key()]
	if !ok {
		return Outcome{}, ErrSkipped
	}
	entry.Note = snapshot.StaleNote
	s.journal.Printf("[%s] Using previous TLE", e.Name)
	return Outcome{Entry: entry, Status: snapshot.StatusFallback}, nil
}

// newEntry builds a fresh snapshot entry. An unparsable epoch is recorded as
// null.
func newEntry(e catalog.Entry, set tle.ElementSet, source string, now time.Time, journal *Journal) snapshot.Entry {
	entry := snapshot.Entry{
		Name:      e.Name,
		TLE:       set.String(),
		FetchedAt: now.UTC(),
		Source:    source,
	}
	if e.NoradID != "" {
		id := e.NoradID
		entry.NoradID = &id
	}
	epoch, err := set.Epoch()
	if err != nil {
		journal.Printf("[%s] Error parsing epoch: %v", e.Key(), err)
	} else {
		entry.Epoch = &epoch
	}
	return entry
}
