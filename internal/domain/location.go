package domain

import "fmt"

// LatLng is a WGS 84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the pair lies within the WGS 84 bounds.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// String formats the pair the way it is shown when no address is known.
func (p LatLng) String() string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng)
}

// Location is a place entered by the user. Coordinates is nil until the
// address has been geocoded; a Location must be resolved before routing.
type Location struct {
	Address     string  `json:"address"`
	Coordinates *LatLng `json:"coordinates,omitempty"`
	PlaceID     string  `json:"place_id,omitempty"`
}

// Resolved reports whether the location carries usable coordinates.
func (l Location) Resolved() bool {
	return l.Coordinates != nil && l.Coordinates.Valid()
}
