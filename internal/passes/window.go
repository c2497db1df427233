package passes

import "time"

// Window is the next acquisition/loss of signal for one station. A nil AOS
// means no pass starts in the horizon; a nil LOS with a non-nil AOS means the
// pass is still open when the horizon ends.
type Window struct {
	AOS   *time.Time `json:"aos"`
	LOS   *time.Time `json:"los"`
	Error string     `json:"error,omitempty"`
}

// Decide derives the window from the elevation at t0 and the chronological
// events that follow it.
//
// A satellite is in pass only when elevation is strictly above zero; exactly
// on the horizon counts as not visible. In pass, AOS is t0 and LOS is the
// first set. Otherwise AOS is the first rise and LOS the first set after it.
func Decide(t0 time.Time, elevation float64, events []Event) Window {
	var w Window

	if elevation > 0 {
		aos := t0
		w.AOS = &aos
		for _, ev := range events {
			if ev.Kind == Set {
				los := ev.Time
				w.LOS = &los
				break
			}
		}
		return w
	}

	for _, ev := range events {
		switch {
		case ev.Kind == Rise && w.AOS == nil:
			aos := ev.Time
			w.AOS = &aos
		case ev.Kind == Set && w.AOS != nil:
			los := ev.Time
			w.LOS = &los
			return w
		}
	}
	return w
}
