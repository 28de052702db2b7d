// Package events announces published trips to the rest of the platform
// (notifications, search indexing) over RabbitMQ.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/ridepost/internal/domain"
)

// Routing keys on the trips exchange.
const (
	KeyOutboundPublished = "trip.published.outbound"
	KeyReturnPublished   = "trip.published.return"
)

// TripPublished is emitted once per stored trip.
type TripPublished struct {
	TripID        uuid.UUID  `json:"trip_id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	LinkedTripID  *uuid.UUID `json:"linked_trip_id,omitempty"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	DepartureDate string     `json:"departure_date"`
	DepartureTime string     `json:"departure_time"`
	Price         int        `json:"price"`
	Seats         int        `json:"seats"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// NewTripPublished builds the event for a stored trip.
func NewTripPublished(t domain.Trip, at time.Time) TripPublished {
	return TripPublished{
		TripID:        t.ID,
		OwnerID:       t.OwnerID,
		LinkedTripID:  t.LinkedTripID,
		From:          t.FromAddress,
		To:            t.ToAddress,
		DepartureDate: t.DepartureDate.Format(time.DateOnly),
		DepartureTime: t.DepartureTime.String(),
		Price:         t.Price,
		Seats:         t.SeatsTotal,
		OccurredAt:    at.UTC(),
	}
}

// RoutingKey returns the key the event is published under.
func (e TripPublished) RoutingKey() string {
	if e.LinkedTripID != nil {
		return KeyReturnPublished
	}
	return KeyOutboundPublished
}
