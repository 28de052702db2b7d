package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/repo"
)

// ExportService assembles a flat export of an owner's trips.
type ExportService struct {
	trips repo.TripRepo
	stops repo.StopoverRepo
}

// NewExportService constructs an ExportService backed by the provided repos.
func NewExportService(trips repo.TripRepo, stops repo.StopoverRepo) *ExportService {
	return &ExportService{trips: trips, stops: stops}
}

// Export returns one ExportRow per trip the owner has published, in the
// order ListByOwner returns them.
func (s *ExportService) Export(ctx context.Context, ownerID uuid.UUID) ([]domain.ExportRow, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w: owner_id is required", domain.ErrValidation)
	}

	rows := []domain.ExportRow{}
	for page := 1; ; page++ {
		trips, total, err := s.trips.ListByOwner(ctx, ownerID, domain.PaginationParams{Page: page, Limit: domain.MaxPageLimit})
		if err != nil {
			return nil, fmt.Errorf("service.ExportService.Export: %w", err)
		}
		for _, t := range trips {
			stops, err := s.stops.ListByTripID(ctx, t.ID)
			if err != nil {
				return nil, fmt.Errorf("service.ExportService.Export: trip %s: %w", t.ID, err)
			}
			rows = append(rows, exportRow(t, stops))
		}
		if len(trips) == 0 || int64(len(rows)) >= total {
			return rows, nil
		}
	}
}

func exportRow(t domain.Trip, stops []domain.TripStopover) domain.ExportRow {
	names := make([]string, len(stops))
	for i, s := range stops {
		names[i] = s.Name
	}
	row := domain.ExportRow{
		TripID:         t.ID.String(),
		From:           t.FromAddress,
		To:             t.ToAddress,
		DepartureDate:  t.DepartureDate.Format("2006-01-02"),
		DepartureTime:  t.DepartureTime.String(),
		DistanceMeters: t.DistanceMeters,
		Price:          t.Price,
		SeatsTotal:     t.SeatsTotal,
		SeatsAvailable: t.SeatsAvailable,
		Status:         string(t.Status),
		Stopovers:      strings.Join(names, "|"),
	}
	if t.LinkedTripID != nil {
		row.LinkedTripID = t.LinkedTripID.String()
	}
	return row
}
