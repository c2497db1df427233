package passes

import (
	"context"
	"time"

	"github.com/star/passwatch/internal/tle"
	"github.com/star/passwatch/internal/transform"
)

// EventKind classifies a horizon event.
type EventKind int

const (
	Rise      EventKind = iota // satellite comes above the horizon
	Culminate                  // highest point of a pass
	Set                        // satellite drops below the horizon
)

func (k EventKind) String() string {
	switch k {
	case Rise:
		return "rise"
	case Culminate:
		return "culminate"
	case Set:
		return "set"
	default:
		return "unknown"
	}
}

// Event is one horizon event for an observer.
type Event struct {
	Time time.Time
	Kind EventKind
}

// Tracker answers the two questions the window policy needs about one
// satellite: where it is relative to an observer's horizon now, and which
// horizon events happen in a time range.
type Tracker interface {
	// Events returns the events in [start, end] in chronological order.
	Events(ctx context.Context, obs transform.Observer, start, end time.Time) ([]Event, error)
	// ElevationAt returns the elevation above the observer's horizon in degrees.
	ElevationAt(obs transform.Observer, t time.Time) (float64, error)
}

// TrackerFactory builds a Tracker from an element set. It fails when the
// element set cannot initialize a trajectory model.
type TrackerFactory func(set tle.ElementSet) (Tracker, error)
