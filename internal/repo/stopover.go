package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/ridepost/internal/domain"
)

// StopoverRepo persists the intermediate stops of a trip.
type StopoverRepo interface {
	// CreateBatch inserts stops for tripID. Positions are reassigned from
	// slice order starting at zero.
	CreateBatch(ctx context.Context, tripID uuid.UUID, stops []domain.TripStopover) ([]domain.TripStopover, error)

	// ListByTripID returns a trip's stops ordered by position.
	ListByTripID(ctx context.Context, tripID uuid.UUID) ([]domain.TripStopover, error)
}

type pgStopoverRepo struct {
	db db
}

// NewStopoverRepo constructs a StopoverRepo on db.
func NewStopoverRepo(db db) StopoverRepo {
	return &pgStopoverRepo{db: db}
}

func (r *pgStopoverRepo) CreateBatch(ctx context.Context, tripID uuid.UUID, stops []domain.TripStopover) ([]domain.TripStopover, error) {
	const q = `
		INSERT INTO trip_stopovers (trip_id, position, name, lat, lng)
		VALUES (@trip_id, @position, @name, @lat, @lng)
		RETURNING id, trip_id, position, name, lat, lng`

	out := make([]domain.TripStopover, 0, len(stops))
	for i, s := range stops {
		row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
			"trip_id":  tripID,
			"position": i,
			"name":     s.Name,
			"lat":      s.Coordinates.Lat,
			"lng":      s.Coordinates.Lng,
		})
		created, err := scanStopover(row)
		if err != nil {
			return nil, fmt.Errorf("repo.StopoverRepo.CreateBatch: %q: %w", s.Name, err)
		}
		out = append(out, created)
	}
	return out, nil
}

func (r *pgStopoverRepo) ListByTripID(ctx context.Context, tripID uuid.UUID) ([]domain.TripStopover, error) {
	const q = `
		SELECT id, trip_id, position, name, lat, lng
		FROM trip_stopovers
		WHERE trip_id = @trip_id
		ORDER BY position`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.StopoverRepo.ListByTripID: %w", err)
	}
	defer rows.Close()

	stops := []domain.TripStopover{}
	for rows.Next() {
		s, err := scanStopover(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.StopoverRepo.ListByTripID: scan: %w", err)
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.StopoverRepo.ListByTripID: rows: %w", err)
	}
	return stops, nil
}

func scanStopover(s scanner) (domain.TripStopover, error) {
	var (
		st         domain.TripStopover
		id, tripID pgtype.UUID
	)
	if err := s.Scan(&id, &tripID, &st.Position, &st.Name, &st.Coordinates.Lat, &st.Coordinates.Lng); err != nil {
		return domain.TripStopover{}, err
	}
	st.ID = uuid.UUID(id.Bytes)
	st.TripID = uuid.UUID(tripID.Bytes)
	return st, nil
}
