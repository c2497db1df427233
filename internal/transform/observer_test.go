package transform

import (
	"math"
	"testing"
)

func TestNewObserver_ECEFMagnitude(t *testing.T) {
	// WGS-84 equatorial radius is 6378137 m, polar radius ~6356752 m.
	if mag := NewObserver(0, 0, 0).ECEF.Norm(); math.Abs(mag-6378137.0) > 1.0 {
		t.Errorf("equatorial observer ECEF magnitude = %.1f m, want ~6378137 m", mag)
	}
	if mag := NewObserver(90, 0, 0).ECEF.Norm(); math.Abs(mag-6356752.3) > 1.0 {
		t.Errorf("polar observer ECEF magnitude = %.1f m, want ~6356752 m", mag)
	}
}

func TestNewObserver_Height(t *testing.T) {
	diff := NewObserver(0, 0, 100).ECEF.Norm() - NewObserver(0, 0, 0).ECEF.Norm()
	if math.Abs(diff-100.0) > 0.01 {
		t.Errorf("height difference = %.3f m, want 100 m", diff)
	}
}

func TestLook_DirectlyOverhead(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	sat := Vector{X: obs.ECEF.X + 400000, Y: obs.ECEF.Y, Z: obs.ECEF.Z}

	la := obs.Look(sat)
	if math.Abs(la.ElevationDeg-90.0) > 0.1 {
		t.Errorf("overhead elevation = %.2f deg, want ~90", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-400.0) > 1.0 {
		t.Errorf("overhead range = %.2f km, want ~400", la.RangeKm)
	}
}

func TestLook_BelowHorizon(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	// Opposite side of the Earth.
	sat := NewObserver(0, 180, 400000).ECEF
	if el := obs.Elevation(sat); el >= 0 {
		t.Errorf("antipodal satellite elevation = %.2f deg, want negative", el)
	}
}

func TestLook_AzimuthDirections(t *testing.T) {
	obs := NewObserver(0, 0, 0)

	tests := []struct {
		name   string
		sat    Observer
		wantAz float64
	}{
		{"north", NewObserver(10, 0, 400000), 0},
		{"east", NewObserver(0, 10, 400000), 90},
		{"south", NewObserver(-10, 0, 400000), 180},
		{"west", NewObserver(0, -10, 400000), 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			az := obs.Look(tt.sat.ECEF).AzimuthDeg
			diff := math.Abs(az - tt.wantAz)
			if diff > 180 {
				diff = 360 - diff
			}
			if diff > 30 {
				t.Errorf("azimuth = %.2f deg, want near %.0f", az, tt.wantAz)
			}
		})
	}
}

func TestECEFToGeodeticRoundTrip(t *testing.T) {
	tests := []struct{ lat, lon, alt float64 }{
		{0, 0, 0},
		{40.7128, -74.006, 10},
		{-33.87, 151.21, 420000},
		{89.9, 45, 800000},
		{-60, -120, 35786000},
	}

	for _, tt := range tests {
		geo := ECEFToGeodetic(NewObserver(tt.lat, tt.lon, tt.alt).ECEF)
		if math.Abs(geo.LatDeg-tt.lat) > 1e-6 || math.Abs(geo.LonDeg-tt.lon) > 1e-6 {
			t.Errorf("(%v, %v): got lat %.8f lon %.8f", tt.lat, tt.lon, geo.LatDeg, geo.LonDeg)
		}
		if math.Abs(geo.AltM-tt.alt) > 0.01 {
			t.Errorf("(%v, %v): got alt %.3f, want %.3f", tt.lat, tt.lon, geo.AltM, tt.alt)
		}
	}
}
