package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/ridepost/internal/domain"
)

// Trip is the wire form of a published trip.
type Trip struct {
	ID             uuid.UUID             `json:"id"`
	OwnerID        uuid.UUID             `json:"owner_id"`
	FromAddress    string                `json:"from_address"`
	ToAddress      string                `json:"to_address"`
	From           *domain.LatLng        `json:"from,omitempty"`
	To             *domain.LatLng        `json:"to,omitempty"`
	DistanceMeters int                   `json:"distance_meters"`
	DepartureDate  openapi_types.Date    `json:"departure_date"`
	DepartureTime  domain.Clock          `json:"departure_time"`
	Price          int                   `json:"price"`
	SeatsTotal     int                   `json:"seats_total"`
	SeatsAvailable int                   `json:"seats_available"`
	Status         domain.TripStatus     `json:"status"`
	LinkedTripID   *uuid.UUID            `json:"linked_trip_id,omitempty"`
	Stopovers      []domain.TripStopover `json:"stopovers"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// TripList is the body of GET /trips.
type TripList struct {
	Data       []Trip     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// UpdateTripStatusRequest is the body of PUT /trips/{id}/status.
type UpdateTripStatusRequest struct {
	Status domain.TripStatus `json:"status"`
}

// ListTrips handles GET /trips?owner_id=.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner, err := uuid.Parse(q.Get("owner_id"))
	if err != nil {
		requestError(w, errors.New("owner_id must be a UUID"))
		return
	}
	page, err := optionalInt(q.Get("page"), "page")
	if err != nil {
		requestError(w, err)
		return
	}
	limit, err := optionalInt(q.Get("limit"), "limit")
	if err != nil {
		requestError(w, err)
		return
	}

	params := domain.NewPaginationParams(page, limit)
	trips, total, err := s.trips.ListByOwner(r.Context(), owner, params)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	data := make([]Trip, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, TripList{
		Data: data,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	trip, err := s.trips.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTripStatus handles PUT /trips/{id}/status.
func (s *Server) UpdateTripStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body UpdateTripStatusRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}

	updated, err := s.trips.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(updated))
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.trips.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mapping helpers --------------------------------------------------------

// pathID parses the {id} URL parameter, writing a 400 when it is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func optionalInt(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &n, nil
}

// tripToResponse converts a domain.Trip into its wire form.
func tripToResponse(t domain.Trip) Trip {
	stops := t.Stopovers
	if stops == nil {
		stops = []domain.TripStopover{}
	}
	return Trip{
		ID:             t.ID,
		OwnerID:        t.OwnerID,
		FromAddress:    t.FromAddress,
		ToAddress:      t.ToAddress,
		From:           t.From,
		To:             t.To,
		DistanceMeters: t.DistanceMeters,
		DepartureDate:  openapi_types.Date{Time: t.DepartureDate},
		DepartureTime:  t.DepartureTime,
		Price:          t.Price,
		SeatsTotal:     t.SeatsTotal,
		SeatsAvailable: t.SeatsAvailable,
		Status:         t.Status,
		LinkedTripID:   t.LinkedTripID,
		Stopovers:      stops,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
