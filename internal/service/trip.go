// Package service holds the business rules for published trips: reads for
// the owner's dashboard and the status changes booking flows make.
// Services depend on repo interfaces; no SQL lives here.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/repo"
)

// TripService implements the rules for stored trips.
type TripService struct {
	repo repo.TripRepo
}

// NewTripService constructs a TripService backed by r.
func NewTripService(r repo.TripRepo) *TripService {
	return &TripService{repo: r}
}

// GetByID returns a single trip with its stopovers.
func (s *TripService) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: %w", err)
	}
	return trip, nil
}

// ListByOwner returns one page of an owner's trips and the total count.
func (s *TripService) ListByOwner(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	if ownerID == uuid.Nil {
		return nil, 0, fmt.Errorf("service.TripService.ListByOwner: %w: owner_id is required", domain.ErrValidation)
	}
	trips, total, err := s.repo.ListByOwner(ctx, ownerID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.ListByOwner: %w", err)
	}
	return trips, total, nil
}

// UpdateStatus moves a trip along its lifecycle:
// scheduled → active | cancelled, active → completed | cancelled.
// Any other move is a validation error.
func (s *TripService) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.TripStatus) (domain.Trip, error) {
	if !next.Valid() {
		return domain.Trip{}, fmt.Errorf("service.TripService.UpdateStatus: %w: unknown status %q", domain.ErrValidation, next)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.UpdateStatus: %w", err)
	}
	if current.Status == next {
		return current, nil
	}
	if !current.Status.CanTransitionTo(next) {
		return domain.Trip{}, fmt.Errorf("service.TripService.UpdateStatus: %w: cannot move from %s to %s",
			domain.ErrValidation, current.Status, next)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.UpdateStatus: %w", err)
	}
	updated.Stopovers = current.Stopovers
	return updated, nil
}

// Delete removes a trip. Active trips cannot be deleted; cancel them first.
func (s *TripService) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	if current.Status == domain.TripActive {
		return fmt.Errorf("service.TripService.Delete: %w: an active trip cannot be deleted", domain.ErrValidation)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	return nil
}
