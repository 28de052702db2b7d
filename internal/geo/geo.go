// Package geo holds the pure geometry used by routing and stopover
// suggestion: great-circle distance, polyline decoding and projecting a
// point onto a path.
package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"

	"github.com/pkordes/ridepost/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b domain.LatLng) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DecodePolyline decodes an encoded polyline (precision 5) into a path.
func DecodePolyline(encoded string) ([]domain.LatLng, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("geo.DecodePolyline: %w", err)
	}
	path := make([]domain.LatLng, 0, len(coords))
	for _, c := range coords {
		path = append(path, domain.LatLng{Lat: c[0], Lng: c[1]})
	}
	return path, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(path []domain.LatLng) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}

// Projection locates a point relative to a path.
// OffsetMeters is the perpendicular distance to the nearest point on the
// path and AlongMeters is how far along the path that nearest point lies.
type Projection struct {
	OffsetMeters float64
	AlongMeters  float64
}

// Project finds the point on path nearest to p. Each segment is flattened
// with an equirectangular projection centred on its start, which is accurate
// to well under a percent at corridor scale.
//
// ok is false when path is empty.
func Project(path []domain.LatLng, p domain.LatLng) (proj Projection, ok bool) {
	if len(path) == 0 {
		return Projection{}, false
	}
	if len(path) == 1 {
		return Projection{OffsetMeters: HaversineMeters(path[0], p)}, true
	}

	best := Projection{OffsetMeters: math.Inf(1)}
	var travelled float64
	for i := 0; i < len(path)-1; i++ {
		a, b := path[i], path[i+1]
		bx, by := flatten(a, b)
		px, py := flatten(a, p)
		segLen := math.Hypot(bx, by)

		t := 0.0
		if segLen > 0 {
			t = (px*bx + py*by) / (segLen * segLen)
			t = math.Max(0, math.Min(1, t))
		}
		offset := math.Hypot(px-t*bx, py-t*by)
		if offset < best.OffsetMeters {
			best = Projection{OffsetMeters: offset, AlongMeters: travelled + t*segLen}
		}
		travelled += segLen
	}
	return best, true
}

// Length returns the length of path in meters, measured the same way as
// Project measures AlongMeters.
func Length(path []domain.LatLng) float64 {
	var total float64
	for i := 0; i < len(path)-1; i++ {
		x, y := flatten(path[i], path[i+1])
		total += math.Hypot(x, y)
	}
	return total
}

// flatten returns p's offset from origin in meters on a local plane.
func flatten(origin, p domain.LatLng) (x, y float64) {
	x = toRad(p.Lng-origin.Lng) * math.Cos(toRad(origin.Lat)) * EarthRadiusMeters
	y = toRad(p.Lat-origin.Lat) * EarthRadiusMeters
	return x, y
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
