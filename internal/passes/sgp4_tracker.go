package passes

import (
	"context"
	"sort"
	"time"

	"github.com/star/passwatch/internal/propagation"
	"github.com/star/passwatch/internal/tle"
	"github.com/star/passwatch/internal/transform"
)

const (
	coarseStep = 30 * time.Second // elevation sampling interval
	fineStep   = time.Second      // crossing and culmination resolution
)

// sgp4Tracker finds horizon events by sampling SGP4 elevation on a coarse
// grid, bisecting every sign change down to one second, and fine-scanning
// around the highest coarse sample of each pass for the culmination.
// Passes shorter than the coarse step that start and end between two samples
// can be missed.
type sgp4Tracker struct {
	prop *propagation.SGP4Propagator
}

// NewSGP4Tracker is the TrackerFactory backed by go-satellite.
func NewSGP4Tracker(set tle.ElementSet) (Tracker, error) {
	prop, err := propagation.NewSGP4Propagator(set)
	if err != nil {
		return nil, err
	}
	return &sgp4Tracker{prop: prop}, nil
}

type sample struct {
	t  time.Time
	el float64
}

func (s sample) above() bool { return s.el > 0 }

// ElevationAt implements Tracker.
func (tr *sgp4Tracker) ElevationAt(obs transform.Observer, t time.Time) (float64, error) {
	ecef, err := tr.prop.PositionECEF(t)
	if err != nil {
		return 0, err
	}
	return obs.Elevation(ecef), nil
}

func (tr *sgp4Tracker) sample(obs transform.Observer, t time.Time) (sample, error) {
	el, err := tr.ElevationAt(obs, t)
	return sample{t: t, el: el}, err
}

// Events implements Tracker.
func (tr *sgp4Tracker) Events(ctx context.Context, obs transform.Observer, start, end time.Time) ([]Event, error) {
	prev, err := tr.sample(obs, start)
	if err != nil {
		return nil, err
	}

	var events []Event
	peak := prev

	for t := start.Add(coarseStep); !prev.t.Equal(end); t = t.Add(coarseStep) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.After(end) {
			t = end
		}

		cur, err := tr.sample(obs, t)
		if err != nil {
			return nil, err
		}

		switch {
		case cur.above() && !prev.above():
			crossing, err := tr.bisect(obs, prev, cur)
			if err != nil {
				return nil, err
			}
			events = append(events, Event{Time: crossing, Kind: Rise})
			peak = cur
		case !cur.above() && prev.above():
			crossing, err := tr.bisect(obs, prev, cur)
			if err != nil {
				return nil, err
			}
			if c, ok, err := tr.culmination(obs, peak, start, crossing); err != nil {
				return nil, err
			} else if ok {
				events = append(events, Event{Time: c, Kind: Culminate})
			}
			events = append(events, Event{Time: crossing, Kind: Set})
		case cur.above() && cur.el > peak.el:
			peak = cur
		}

		prev = cur
	}

	// Pass still open at the end of the range.
	if prev.above() {
		if c, ok, err := tr.culmination(obs, peak, start, end); err != nil {
			return nil, err
		} else if ok {
			events = append(events, Event{Time: c, Kind: Culminate})
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
	return events, nil
}

// bisect narrows a sign change between lo and hi to fineStep and returns the
// first time on the far side of the crossing.
func (tr *sgp4Tracker) bisect(obs transform.Observer, lo, hi sample) (time.Time, error) {
	for hi.t.Sub(lo.t) > fineStep {
		midT := lo.t.Add(hi.t.Sub(lo.t) / 2).Truncate(fineStep)
		if !midT.After(lo.t) {
			break
		}
		mid, err := tr.sample(obs, midT)
		if err != nil {
			return time.Time{}, err
		}
		if mid.above() == lo.above() {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi.t, nil
}

// culmination fine-scans one coarse step either side of the peak sample,
// clamped to [lo, hi]. A maximum on the clamp boundary means the elevation was
// still rising or already falling there, so no culmination is reported.
func (tr *sgp4Tracker) culmination(obs transform.Observer, peak sample, lo, hi time.Time) (time.Time, bool, error) {
	from := peak.t.Add(-coarseStep)
	if from.Before(lo) {
		from = lo
	}
	to := peak.t.Add(coarseStep)
	if to.After(hi) {
		to = hi
	}

	best := sample{el: -90}
	for t := from; !t.After(to); t = t.Add(fineStep) {
		s, err := tr.sample(obs, t)
		if err != nil {
			return time.Time{}, false, err
		}
		if s.el > best.el {
			best = s
		}
	}

	if best.t.Equal(lo) || best.t.Equal(hi) {
		return time.Time{}, false, nil
	}
	return best.t, true, nil
}
