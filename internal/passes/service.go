// Package passes computes the next AOS/LOS window of a satellite over a set
// of ground stations.
package passes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/star/passwatch/internal/metrics"
	"github.com/star/passwatch/internal/tle"
	"github.com/star/passwatch/internal/transform"
)

// DefaultHorizon is how far ahead windows are searched.
const DefaultHorizon = 24 * time.Hour

var (
	// ErrInvalidElementSet means the trajectory model could not be built.
	ErrInvalidElementSet = tle.ErrInvalidElementSet
	// ErrInvalidRequest means the request itself is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)

// Station is a ground station. Coordinates are passed through unchecked.
type Station struct {
	Name    string
	Lat     float64 // degrees
	Lng     float64 // degrees
	HeightM float64 // meters above the WGS-84 ellipsoid
}

// Request is one pass-window computation.
type Request struct {
	Line1    string
	Line2    string
	Stations []Station
}

// Validate checks request shape: both element lines present, station names
// non-empty and unique.
func (r Request) Validate() error {
	if r.Line1 == "" || r.Line2 == "" {
		return fmt.Errorf("%w: tle1 and tle2 are required", ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(r.Stations))
	for i, st := range r.Stations {
		if st.Name == "" {
			return fmt.Errorf("%w: station %d has no name", ErrInvalidRequest, i)
		}
		if seen[st.Name] {
			return fmt.Errorf("%w: duplicate station name %q", ErrInvalidRequest, st.Name)
		}
		seen[st.Name] = true
	}
	return nil
}

// Result maps station name to its window.
type Result map[string]Window

// Config holds Service settings.
type Config struct {
	Horizon time.Duration    // look-ahead (default 24h)
	Workers int              // concurrent stations (default runtime.NumCPU())
	Tracker TrackerFactory   // default NewSGP4Tracker
	Now     func() time.Time // default time.Now
}

// Service computes pass windows. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	horizon time.Duration
	workers int
	tracker TrackerFactory
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a Service, filling defaults for zero Config fields.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultHorizon
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewSGP4Tracker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		horizon: cfg.Horizon,
		workers: cfg.Workers,
		tracker: cfg.Tracker,
		now:     cfg.Now,
		logger:  logger.With("component", "passes"),
	}
}

// Compute returns a window per station over [now, now+horizon].
//
// A request that fails validation or whose element set cannot build a
// trajectory fails as a whole. After that, stations are independent: each
// runs in its own goroutine, bounded by the worker count, and a failure is
// reported in that station's Window.Error without affecting the others.
func (s *Service) Compute(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tracker, err := s.tracker(tle.ElementSet{Line1: req.Line1, Line2: req.Line2})
	if err != nil {
		metrics.IncPassRequest("invalid_element_set")
		if !errors.Is(err, ErrInvalidElementSet) {
			err = fmt.Errorf("%w: %v", ErrInvalidElementSet, err)
		}
		return nil, err
	}

	t0 := s.now().UTC()
	end := t0.Add(s.horizon)
	start := time.Now()

	windows := make([]Window, len(req.Stations))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, st := range req.Stations {
		wg.Add(1)
		go func(idx int, st Station) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				windows[idx] = Window{Error: "cancelled"}
				return
			}

			w, err := s.station(ctx, tracker, st, t0, end)
			if err != nil {
				s.logger.Warn("station window failed", "station", st.Name, "error", err)
				metrics.IncStationError()
				w = Window{Error: err.Error()}
			}
			windows[idx] = w
		}(i, st)
	}

	wg.Wait()

	result := make(Result, len(req.Stations))
	for i, st := range req.Stations {
		result[st.Name] = windows[i]
	}

	metrics.IncPassRequest("ok")
	metrics.ObservePassDuration(time.Since(start).Seconds())
	return result, nil
}

// station derives one station's window. A panic inside the numerical code is
// turned into an error so sibling stations still complete.
func (s *Service) station(ctx context.Context, tracker Tracker, st Station, t0, end time.Time) (w Window, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("computation panicked: %v", r)
		}
	}()

	obs := transform.NewObserver(st.Lat, st.Lng, st.HeightM)

	elevation, err := tracker.ElevationAt(obs, t0)
	if err != nil {
		return Window{}, fmt.Errorf("elevation at t0: %w", err)
	}

	events, err := tracker.Events(ctx, obs, t0, end)
	if err != nil {
		return Window{}, fmt.Errorf("event search: %w", err)
	}

	return Decide(t0, elevation, events), nil
}
