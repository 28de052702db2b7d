// Package domain contains the core data types for the ride offer service.
// This package does no I/O and is imported by every other internal package
// (repo, service, wizard, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the lifecycle state of a published trip.
type TripStatus string

const (
	TripScheduled TripStatus = "scheduled"
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s TripStatus) Valid() bool {
	switch s {
	case TripScheduled, TripActive, TripCompleted, TripCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a trip in status s may move to next.
// Completed and cancelled are terminal.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	switch s {
	case TripScheduled:
		return next == TripActive || next == TripCancelled
	case TripActive:
		return next == TripCompleted || next == TripCancelled
	}
	return false
}

// Trip is a published ride offer. It is created once by the publisher and
// later mutated only by booking flows (seat counter, status).
type Trip struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	FromAddress    string     `json:"from_address"`
	ToAddress      string     `json:"to_address"`
	From           *LatLng    `json:"from,omitempty"`
	To             *LatLng    `json:"to,omitempty"`
	DistanceMeters int        `json:"distance_meters"`
	DepartureDate  time.Time  `json:"departure_date"`
	DepartureTime  Clock      `json:"departure_time"`
	Price          int        `json:"price"`
	SeatsTotal     int        `json:"seats_total"`
	SeatsAvailable int        `json:"seats_available"`
	Status         TripStatus `json:"status"`

	// LinkedTripID is set on a return trip and points at its outbound trip.
	LinkedTripID *uuid.UUID `json:"linked_trip_id,omitempty"`

	Stopovers []TripStopover `json:"stopovers,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
