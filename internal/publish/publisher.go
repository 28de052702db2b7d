// Package publish turns a completed TripDraft into one or two stored trips.
//
// The outbound and return trips are independent single-record inserts, not
// one transaction: each is bookable on its own. When the return insert fails
// the outbound trip stays published and the caller is told so, with the
// outbound id, so it can retry the return step alone.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/events"
)

// TripStore is the persistence the publisher needs. repo.TripRepo satisfies it.
type TripStore interface {
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)
}

// Notifier announces stored trips. events.AMQPPublisher satisfies it.
type Notifier interface {
	TripPublished(ctx context.Context, e events.TripPublished) error
}

// Publisher implements the TripPublisher.
type Publisher struct {
	store  TripStore
	notify Notifier
	log    *slog.Logger
	now    func() time.Time
}

// NewPublisher constructs a Publisher. A nil notifier discards events and a
// nil log uses slog.Default().
func NewPublisher(store TripStore, notify Notifier, log *slog.Logger) *Publisher {
	if notify == nil {
		notify = events.Discard{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{store: store, notify: notify, log: log, now: time.Now}
}

// Publish stores the draft's outbound trip and, for a round trip, its return.
//
// Outcomes:
//   - success: both ids (ReturnTripID nil for one-way), nil error
//   - outbound insert failed: zero result, error wrapping domain.ErrPersistence
//   - return insert failed: OutboundTripID set, error wrapping
//     domain.ErrReturnTripFailed
//
// A draft that already carries OutboundTripID only repeats the return step.
func (p *Publisher) Publish(ctx context.Context, draft domain.TripDraft) (domain.PublishResult, error) {
	if err := Validate(draft); err != nil {
		return domain.PublishResult{}, fmt.Errorf("publish.Publisher.Publish: %w", err)
	}

	if draft.OutboundTripID != nil {
		if !draft.IsRoundTrip {
			return domain.PublishResult{}, fmt.Errorf("publish.Publisher.Publish: %w: outbound trip %s is already published and the draft has no return", domain.ErrValidation, *draft.OutboundTripID)
		}
		return p.publishReturn(ctx, draft, *draft.OutboundTripID)
	}

	outbound, err := p.store.Create(ctx, Outbound(draft))
	if err != nil {
		p.log.ErrorContext(ctx, "outbound trip insert failed", "owner_id", draft.OwnerID, "error", err)
		return domain.PublishResult{}, fmt.Errorf("publish.Publisher.Publish: %w: %w", domain.ErrPersistence, err)
	}
	p.emit(ctx, outbound)

	if !draft.IsRoundTrip {
		return domain.PublishResult{OutboundTripID: outbound.ID}, nil
	}
	return p.publishReturn(ctx, draft, outbound.ID)
}

// PublishReturn stores only the return trip of a round-trip draft whose
// outbound trip is already stored as outboundID.
func (p *Publisher) PublishReturn(ctx context.Context, draft domain.TripDraft, outboundID uuid.UUID) (domain.PublishResult, error) {
	if !draft.IsRoundTrip {
		return domain.PublishResult{}, fmt.Errorf("publish.Publisher.PublishReturn: %w: draft is not a round trip", domain.ErrValidation)
	}
	if err := Validate(draft); err != nil {
		return domain.PublishResult{}, fmt.Errorf("publish.Publisher.PublishReturn: %w", err)
	}
	return p.publishReturn(ctx, draft, outboundID)
}

func (p *Publisher) publishReturn(ctx context.Context, draft domain.TripDraft, outboundID uuid.UUID) (domain.PublishResult, error) {
	result := domain.PublishResult{OutboundTripID: outboundID}

	ret, err := p.store.Create(ctx, Return(draft, outboundID))
	if err != nil {
		p.log.ErrorContext(ctx, "return trip insert failed", "outbound_trip_id", outboundID, "error", err)
		return result, fmt.Errorf("publish.Publisher: %w: %w", domain.ErrReturnTripFailed, err)
	}
	p.emit(ctx, ret)

	result.ReturnTripID = &ret.ID
	return result, nil
}

func (p *Publisher) emit(ctx context.Context, trip domain.Trip) {
	if err := p.notify.TripPublished(ctx, events.NewTripPublished(trip, p.now())); err != nil {
		p.log.WarnContext(ctx, "trip event not emitted", "trip_id", trip.ID, "error", err)
	}
}

// Validate checks that every field a stored trip needs is present.
func Validate(d domain.TripDraft) error {
	switch {
	case !d.Departure.Resolved():
		return fmt.Errorf("%w: departure is not resolved", domain.ErrValidation)
	case !d.Arrival.Resolved():
		return fmt.Errorf("%w: arrival is not resolved", domain.ErrValidation)
	case d.SelectedRoute == nil:
		return fmt.Errorf("%w: no route selected", domain.ErrValidation)
	case d.Date.IsZero() || d.Time == nil:
		return fmt.Errorf("%w: departure date and time are required", domain.ErrValidation)
	case d.Seats < 1 || d.Seats > 8:
		return fmt.Errorf("%w: seats must be between 1 and 8", domain.ErrValidation)
	case d.Price <= 0:
		return fmt.Errorf("%w: price must be positive", domain.ErrValidation)
	case d.IsRoundTrip && (d.ReturnDate.IsZero() || d.ReturnTime == nil):
		return fmt.Errorf("%w: return date and time are required", domain.ErrValidation)
	}
	return nil
}

// Outbound builds the outbound trip of a validated draft.
func Outbound(d domain.TripDraft) domain.Trip {
	t := baseTrip(d)
	t.FromAddress = d.Departure.Address
	t.ToAddress = d.Arrival.Address
	t.From = d.Departure.Coordinates
	t.To = d.Arrival.Coordinates
	t.DepartureDate = d.Date
	t.DepartureTime = *d.Time
	t.Stopovers = tripStopovers(d.SelectedStopovers())
	return t
}

// Return builds the return trip of a validated round-trip draft: addresses
// swapped, stops in reverse, linked to outboundID.
func Return(d domain.TripDraft, outboundID uuid.UUID) domain.Trip {
	t := baseTrip(d)
	t.FromAddress = d.Arrival.Address
	t.ToAddress = d.Departure.Address
	t.From = d.Arrival.Coordinates
	t.To = d.Departure.Coordinates
	t.DepartureDate = d.ReturnDate
	t.DepartureTime = *d.ReturnTime
	t.LinkedTripID = &outboundID

	stops := d.SelectedStopovers()
	slices.Reverse(stops)
	t.Stopovers = tripStopovers(stops)
	return t
}

func baseTrip(d domain.TripDraft) domain.Trip {
	return domain.Trip{
		OwnerID:        d.OwnerID,
		DistanceMeters: d.SelectedRoute.DistanceMeters,
		Price:          d.Price,
		SeatsTotal:     d.Seats,
		SeatsAvailable: d.Seats,
		Status:         domain.TripScheduled,
	}
}

func tripStopovers(stops []domain.Stopover) []domain.TripStopover {
	out := make([]domain.TripStopover, 0, len(stops))
	for i, s := range stops {
		out = append(out, domain.TripStopover{Position: i, Name: s.Name, Coordinates: s.Coordinates})
	}
	return out
}
