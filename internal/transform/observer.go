package transform

import "math"

// Observer is a ground station with its ECEF position precomputed, so that
// repeated look-angle evaluations only pay for the rotation.
type Observer struct {
	LatRad, LonRad, HeightM float64
	ECEF                    Vector // meters
}

// LookAngles is the satellite direction as seen from an observer.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// NewObserver builds an Observer from latitude and longitude in degrees and
// height in meters above the WGS-84 ellipsoid. Values are not range checked.
func NewObserver(latDeg, lonDeg, heightM float64) Observer {
	lat := latDeg / deg
	lon := lonDeg / deg

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Prime vertical radius of curvature.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad:  lat,
		LonRad:  lon,
		HeightM: heightM,
		ECEF: Vector{
			X: (n + heightM) * cosLat * math.Cos(lon),
			Y: (n + heightM) * cosLat * math.Sin(lon),
			Z: (n*(1-wgs84E2) + heightM) * sinLat,
		},
	}
}

// Look returns the azimuth, elevation and range from the observer to a
// satellite at sat (ECEF meters), using the SEZ rotation of Vallado 4.4.
func (o Observer) Look(sat Vector) LookAngles {
	rx := sat.X - o.ECEF.X
	ry := sat.Y - o.ECEF.Y
	rz := sat.Z - o.ECEF.Z

	sinLat := math.Sin(o.LatRad)
	cosLat := math.Cos(o.LatRad)
	sinLon := math.Sin(o.LonRad)
	cosLon := math.Cos(o.LonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + zenith*zenith)

	// North is -South in SEZ.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * deg,
		ElevationDeg: math.Asin(zenith/rng) * deg,
		RangeKm:      rng / 1000.0,
	}
}

// Elevation is Look(sat).ElevationDeg.
func (o Observer) Elevation(sat Vector) float64 {
	return o.Look(sat).ElevationDeg
}
