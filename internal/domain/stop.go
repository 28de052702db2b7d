package domain

import "github.com/google/uuid"

// TripStopover is an intermediate stop persisted with a trip.
// Position is zero-based in travel order, as returned by the directions
// collaborator when the stops were planned as waypoints.
type TripStopover struct {
	ID          uuid.UUID `json:"id"`
	TripID      uuid.UUID `json:"trip_id"`
	Position    int       `json:"position"`
	Name        string    `json:"name"`
	Coordinates LatLng    `json:"coordinates"`
}
