// Command diag prints the next pass window of every satellite in a snapshot
// over one ground station.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/star/passwatch/internal/passes"
	"github.com/star/passwatch/internal/snapshot"
	"github.com/star/passwatch/internal/tle"
)

func main() {
	path := flag.String("snapshot", "static/tle_data.json", "snapshot file")
	name := flag.String("name", "station", "station name")
	lat := flag.Float64("lat", 41.1418, "station latitude, degrees")
	lng := flag.Float64("lng", 24.8836, "station longitude, degrees")
	hgt := flag.Float64("hgt", 60, "station height, meters")
	horizon := flag.Duration("horizon", passes.DefaultHorizon, "look-ahead")
	flag.Parse()

	if err := run(os.Stdout, *path, passes.Station{Name: *name, Lat: *lat, Lng: *lng, HeightM: *hgt}, *horizon, time.Now().UTC()); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func run(out io.Writer, path string, st passes.Station, horizon time.Duration, now time.Time) error {
	snap, err := snapshot.Load(path)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	fmt.Fprintf(out, "Snapshot %s: %d satellites, updated %s\n",
		path, len(snap.Satellites), humanize.RelTime(snap.LastUpdated, now, "ago", "from now"))
	fmt.Fprintf(out, "Station %s (%.4f, %.4f, %.0f m), horizon %s\n\n", st.Name, st.Lat, st.Lng, st.HeightM, horizon)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := passes.NewService(passes.Config{
		Horizon: horizon,
		Now:     func() time.Time { return now },
	}, logger)

	keys := make([]string, 0, len(snap.Satellites))
	for k := range snap.Satellites {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		e := snap.Satellites[key]
		lines := tle.Lines(e.TLE)
		if len(lines) < 2 {
			fmt.Fprintf(out, "%-12s ERROR element set has %d lines\n", e.Name, len(lines))
			continue
		}

		res, err := svc.Compute(context.Background(), passes.Request{
			Line1:    lines[0],
			Line2:    lines[1],
			Stations: []passes.Station{st},
		})
		if err != nil {
			fmt.Fprintf(out, "%-12s ERROR %v\n", e.Name, err)
			continue
		}

		w := res[st.Name]
		switch {
		case w.Error != "":
			fmt.Fprintf(out, "%-12s ERROR %s\n", e.Name, w.Error)
		case w.AOS == nil:
			fmt.Fprintf(out, "%-12s no pass within %s\n", e.Name, horizon)
		default:
			fmt.Fprintf(out, "%-12s AOS %s (%s)  LOS %s%s\n",
				e.Name,
				w.AOS.Format(time.RFC3339),
				humanize.RelTime(*w.AOS, now, "ago", "from now"),
				formatLOS(w.LOS),
				epochAge(e, now),
			)
		}
	}
	return nil
}

func formatLOS(los *time.Time) string {
	if los == nil {
		return "beyond horizon"
	}
	return los.Format(time.RFC3339)
}

func epochAge(e snapshot.Entry, now time.Time) string {
	if e.Epoch == nil {
		return ""
	}
	s := "  epoch " + humanize.RelTime(*e.Epoch, now, "old", "ahead")
	if e.Note != "" {
		s += " (stale)"
	}
	return s
}
