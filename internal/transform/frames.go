// Package transform converts SGP4 output into what a ground station sees.
//
// SGP4 positions are in TEME (True Equator Mean Equinox). They are rotated
// into ECEF by GMST alone (TEME -> PEF ≈ ECEF), ignoring polar motion and the
// equation of the equinoxes. The resulting error of tens of meters is far
// below what matters for horizon crossings.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import (
	"math"
	"time"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

const j2000 = 2451545.0 // Julian Date of J2000.0

const deg = 180.0 / math.Pi

// Vector holds a Cartesian position.
type Vector struct {
	X, Y, Z float64
}

// Norm returns the vector magnitude.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Finite reports whether no component is NaN or infinite.
func (v Vector) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// JulianDate converts a UTC time to a Julian Date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	dayFrac := (float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0) / 24.0

	// Jan/Feb count as months 13/14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5 + dayFrac
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, Vallado Eq 3-47).
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	// Seconds of time; 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}

// TEMEToECEF rotates a TEME position in kilometers about the Z axis by GMST
// and returns the ECEF position in meters.
func TEMEToECEF(teme Vector, t time.Time) Vector {
	return rotateGMST(teme, GMST(t))
}

func rotateGMST(teme Vector, gmst float64) Vector {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return Vector{
		X: (teme.X*cosG + teme.Y*sinG) * 1000.0,
		Y: (-teme.X*sinG + teme.Y*cosG) * 1000.0,
		Z: teme.Z * 1000.0,
	}
}

// Geodetic is a WGS-84 position in degrees and meters.
type Geodetic struct {
	LatDeg, LonDeg, AltM float64
}

// ECEFToGeodetic converts ECEF meters to geodetic coordinates with Bowring's
// iteration; five rounds are plenty for anything in Earth orbit.
func ECEFToGeodetic(p Vector) Geodetic {
	lon := math.Atan2(p.Y, p.X)
	r := math.Hypot(p.X, p.Y)
	lat := math.Atan2(p.Z, r*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*n*sinLat, r)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = r/cosLat - n
	} else {
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{LatDeg: lat * deg, LonDeg: lon * deg, AltM: alt}
}
