package geospatial

import "math"

// EarthRadiusKm is the mean earth radius used for every distance in the service.
const EarthRadiusKm = 6371.0

// HaversineKm calculates the great-circle distance in kilometres between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// boxMarginDeg absorbs rounding so points exactly on the radius stay inside the box.
const boxMarginDeg = 1e-9

// Box is a latitude/longitude window. When WrapsLon is set the window crosses
// the antimeridian and covers MinLon..180 plus -180..MaxLon.
type Box struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
	WrapsLon       bool
}

// BoundingBox returns the smallest box containing every point within radiusKm
// of (lat, lon). Near the poles, or for huge radii, the box spans all longitudes.
func BoundingBox(lat, lon, radiusKm float64) Box {
	angular := radiusKm / EarthRadiusKm
	latDelta := toDeg(angular) + boxMarginDeg

	minLat := lat - latDelta
	maxLat := lat + latDelta
	if minLat <= -90 || maxLat >= 90 || angular >= math.Pi/2 {
		return Box{MinLat: math.Max(minLat, -90), MinLon: -180, MaxLat: math.Min(maxLat, 90), MaxLon: 180}
	}

	ratio := math.Sin(angular) / math.Cos(toRad(lat))
	if ratio >= 1 {
		return Box{MinLat: minLat, MinLon: -180, MaxLat: maxLat, MaxLon: 180}
	}
	lonDelta := toDeg(math.Asin(ratio)) + boxMarginDeg

	minLon := lon - lonDelta
	maxLon := lon + lonDelta
	switch {
	case minLon < -180:
		return Box{MinLat: minLat, MinLon: minLon + 360, MaxLat: maxLat, MaxLon: maxLon, WrapsLon: true}
	case maxLon > 180:
		return Box{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon - 360, WrapsLon: true}
	}
	return Box{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
