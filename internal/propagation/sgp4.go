// Package propagation wraps the SGP4 model for a single element set.
package propagation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/star/passwatch/internal/tle"
	"github.com/star/passwatch/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, no CGO, explicit TEME output. Propagate() takes the Satellite by
// value so SGP4 error codes raised during propagation are not visible to the
// caller; failures are detected by checking the output for NaN/Inf and an
// implausible orbit radius.

// Orbit radius bounds in km: below ~6200 the object is inside the Earth,
// above 50000 it is well past GEO.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 50000.0
)

// SGP4Propagator propagates one element set. It is immutable after
// construction and safe for concurrent use.
type SGP4Propagator struct {
	sat   satellite.Satellite
	satID string
}

// NewSGP4Propagator initializes SGP4 from an element set.
//
// The numeric fields are checked before the lines reach go-satellite, because
// the library calls log.Fatal when it cannot parse a field.
func NewSGP4Propagator(set tle.ElementSet) (*SGP4Propagator, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if err := checkFields(set.Line1, set.Line2); err != nil {
		return nil, fmt.Errorf("%w: %v", tle.ErrInvalidElementSet, err)
	}

	satID := strings.TrimSpace(set.Line1[2:7])
	sat := satellite.TLEToSat(set.Line1, set.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init failed for %s: code=%d %s", tle.ErrInvalidElementSet, satID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, satID: satID}, nil
}

// field is a fixed-column numeric field as go-satellite reads it.
type field struct {
	name  string
	value func(l1, l2 string) string
	isInt bool
}

var fields = []field{
	{"satellite number", func(l1, _ string) string { return strings.TrimSpace(l1[2:7]) }, true},
	{"epoch year", func(l1, _ string) string { return l1[18:20] }, true},
	{"epoch day", func(l1, _ string) string { return l1[20:32] }, false},
	{"mean motion dot", func(l1, _ string) string { return strings.Replace(l1[33:43], " ", "", 2) }, false},
	{"mean motion ddot", func(l1, _ string) string {
		return strings.Replace(l1[44:45]+"."+l1[45:50]+"e"+l1[50:52], " ", "", 2)
	}, false},
	{"bstar", func(l1, _ string) string {
		return strings.Replace(l1[53:54]+"."+l1[54:59]+"e"+l1[59:61], " ", "", 2)
	}, false},
	{"inclination", func(_, l2 string) string { return strings.Replace(l2[8:16], " ", "", 2) }, false},
	{"right ascension", func(_, l2 string) string { return strings.Replace(l2[17:25], " ", "", 2) }, false},
	{"eccentricity", func(_, l2 string) string { return "." + l2[26:33] }, false},
	{"argument of perigee", func(_, l2 string) string { return strings.Replace(l2[34:42], " ", "", 2) }, false},
	{"mean anomaly", func(_, l2 string) string { return strings.Replace(l2[43:51], " ", "", 2) }, false},
	{"mean motion", func(_, l2 string) string { return strings.Replace(l2[52:63], " ", "", 2) }, false},
}

// checkFields parses every field the library parses, the same way it does.
// Lines must already be at least tle.MinLineLength long.
func checkFields(line1, line2 string) error {
	for _, f := range fields {
		s := f.value(line1, line2)
		var err error
		if f.isInt {
			_, err = strconv.Atoi(s)
		} else {
			_, err = strconv.ParseFloat(s, 64)
		}
		if err != nil {
			return fmt.Errorf("unparseable %s %q", f.name, s)
		}
	}
	return nil
}

// Propagate returns the TEME position in km at t. go-satellite works in whole
// seconds, so t is truncated to the second.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.Vector, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	v := transform.Vector{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !v.Finite() {
		return transform.Vector{}, fmt.Errorf("sgp4 propagation failed for %s: output is NaN/Inf", p.satID)
	}
	if mag := v.Norm(); mag < minRadiusKm || mag > maxRadiusKm || math.IsNaN(mag) {
		return transform.Vector{}, fmt.Errorf("sgp4 propagation failed for %s: unreasonable position magnitude %.1f km", p.satID, mag)
	}
	return v, nil
}

// PositionECEF returns the ECEF position in meters at t.
func (p *SGP4Propagator) PositionECEF(t time.Time) (transform.Vector, error) {
	teme, err := p.Propagate(t)
	if err != nil {
		return transform.Vector{}, err
	}
	return transform.TEMEToECEF(teme, t.Truncate(time.Second)), nil
}
