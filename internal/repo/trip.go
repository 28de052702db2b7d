// Package repo is the Postgres trip store. Each resource has an interface
// and an unexported pgx implementation; only SQL and type mapping live here.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/ridepost/internal/domain"
)

// db is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx, so tests can hand
// in a transaction that is rolled back afterwards.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripRepo persists published trips.
type TripRepo interface {
	// Create inserts the trip and its stopovers as one unit and returns the
	// stored record with ids and timestamps filled in.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID returns a trip with its stopovers, or domain.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// ListByOwner returns one page of an owner's trips, soonest departure
	// last, and the owner's total trip count. Stopovers are not loaded.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)

	// UpdateStatus sets the status column. Returns domain.ErrNotFound if the
	// trip does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error)

	// Delete removes a trip and, by cascade, its stopovers.
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo on db.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, owner_id, from_address, to_address, from_lat, from_lng, to_lat, to_lng,
	distance_meters, departure_date, departure_time, price, seats_total, seats_available,
	status, linked_trip_id, created_at, updated_at`

func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (owner_id, from_address, to_address, from_lat, from_lng, to_lat, to_lng,
			distance_meters, departure_date, departure_time, price, seats_total, seats_available,
			status, linked_trip_id)
		VALUES (@owner_id, @from_address, @to_address, @from_lat, @from_lng, @to_lat, @to_lng,
			@distance_meters, @departure_date, @departure_time, @price, @seats_total, @seats_available,
			@status, @linked_trip_id)
		RETURNING ` + tripColumns

	fromLat, fromLng := latLngArgs(trip.From)
	toLat, toLng := latLngArgs(trip.To)
	args := pgx.NamedArgs{
		"owner_id":        trip.OwnerID,
		"from_address":    trip.FromAddress,
		"to_address":      trip.ToAddress,
		"from_lat":        fromLat,
		"from_lng":        fromLng,
		"to_lat":          toLat,
		"to_lng":          toLng,
		"distance_meters": trip.DistanceMeters,
		"departure_date":  pgtype.Date{Time: trip.DepartureDate, Valid: true},
		"departure_time":  clockToTime(trip.DepartureTime),
		"price":           trip.Price,
		"seats_total":     trip.SeatsTotal,
		"seats_available": trip.SeatsAvailable,
		"status":          string(trip.Status),
		"linked_trip_id":  trip.LinkedTripID, // nil becomes NULL
	}

	var created domain.Trip
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		created, err = scanTrip(tx.QueryRow(ctx, q, args))
		if err != nil {
			return err
		}
		created.Stopovers, err = NewStopoverRepo(tx).CreateBatch(ctx, created.ID, trip.Stopovers)
		return err
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return created, nil
}

func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	trip, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}

	trip.Stopovers, err = NewStopoverRepo(r.db).ListByTripID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return trip, nil
}

func (r *pgTripRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM trips WHERE owner_id = @owner_id`,
		pgx.NamedArgs{"owner_id": ownerID}).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByOwner: count: %w", err)
	}

	q := `SELECT ` + tripColumns + `
		FROM trips
		WHERE owner_id = @owner_id
		ORDER BY departure_date DESC, departure_time DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"owner_id": ownerID,
		"limit":    p.Limit,
		"offset":   p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByOwner: %w", err)
	}
	defer rows.Close()

	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TripRepo.ListByOwner: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByOwner: rows: %w", err)
	}
	return trips, total, nil
}

func (r *pgTripRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET status = @status, updated_at = now()
		WHERE id = @id
		RETURNING ` + tripColumns

	trip, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "status": string(status)}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.UpdateStatus: %w", err)
	}
	return trip, nil
}

func (r *pgTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trips WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t                              domain.Trip
		id, ownerID, linked            pgtype.UUID
		fromLat, fromLng, toLat, toLng pgtype.Float8
		date                           pgtype.Date
		clock                          pgtype.Time
		status                         string
	)

	err := s.Scan(&id, &ownerID, &t.FromAddress, &t.ToAddress, &fromLat, &fromLng, &toLat, &toLng,
		&t.DistanceMeters, &date, &clock, &t.Price, &t.SeatsTotal, &t.SeatsAvailable,
		&status, &linked, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.OwnerID = uuid.UUID(ownerID.Bytes)
	t.From = latLngFrom(fromLat, fromLng)
	t.To = latLngFrom(toLat, toLng)
	t.DepartureDate = date.Time
	t.DepartureTime = timeToClock(clock)
	t.Status = domain.TripStatus(status)
	if linked.Valid {
		l := uuid.UUID(linked.Bytes)
		t.LinkedTripID = &l
	}
	return t, nil
}

func latLngArgs(p *domain.LatLng) (pgtype.Float8, pgtype.Float8) {
	if p == nil {
		return pgtype.Float8{}, pgtype.Float8{}
	}
	return pgtype.Float8{Float64: p.Lat, Valid: true}, pgtype.Float8{Float64: p.Lng, Valid: true}
}

func latLngFrom(lat, lng pgtype.Float8) *domain.LatLng {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &domain.LatLng{Lat: lat.Float64, Lng: lng.Float64}
}

const microsPerMinute = 60 * 1_000_000

func clockToTime(c domain.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c.Hour*60+c.Minute) * microsPerMinute, Valid: true}
}

func timeToClock(t pgtype.Time) domain.Clock {
	minutes := int(t.Microseconds / microsPerMinute)
	return domain.Clock{Hour: minutes / 60, Minute: minutes % 60}
}
