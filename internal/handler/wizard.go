package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/wizard"
)

// Warnings attached to a successful wizard response.
const (
	WarningGeocodeUnavailable = "geocode_unavailable"
	WarningRouteApproximate   = "route_approximate"
	WarningDraftReset         = "draft_reset"
)

// WizardResponse is the snapshot of one wizard plus its id.
type WizardResponse struct {
	ID uuid.UUID `json:"id"`
	wizard.Snapshot
	Warning string `json:"warning,omitempty"`
}

// WizardErrorResponse carries the wizard state next to the error, so the
// client can keep rendering the form it was on.
type WizardErrorResponse struct {
	Error  ErrorDetail     `json:"error"`
	Wizard *WizardResponse `json:"wizard,omitempty"`
}

// StartWizardRequest is the body of POST /wizards. Draft and Stage resume a
// saved draft; both or neither must be set.
type StartWizardRequest struct {
	OwnerID  uuid.UUID         `json:"owner_id"`
	Language string            `json:"language"`
	Region   string            `json:"region"`
	Draft    *domain.TripDraft `json:"draft,omitempty"`
	Stage    *wizard.Stage     `json:"stage,omitempty"`
}

type selectRouteRequest struct {
	RouteID string `json:"route_id"`
}

type setDateRequest struct {
	Date openapi_types.Date `json:"date"`
}

type setTimeRequest struct {
	Time *domain.Clock `json:"time"`
}

type setSeatsRequest struct {
	Seats int `json:"seats"`
}

type setPriceRequest struct {
	Price int `json:"price"`
}

type setRoundTripRequest struct {
	IsRoundTrip bool                `json:"is_round_trip"`
	ReturnDate  *openapi_types.Date `json:"return_date,omitempty"`
	ReturnTime  *domain.Clock       `json:"return_time,omitempty"`
}

// StartWizard handles POST /wizards.
func (s *Server) StartWizard(w http.ResponseWriter, r *http.Request) {
	var body StartWizardRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	if body.OwnerID == uuid.Nil {
		requestError(w, errors.New("owner_id is required"))
		return
	}
	if (body.Draft == nil) != (body.Stage == nil) {
		requestError(w, errors.New("draft and stage must be given together"))
		return
	}

	if body.Draft == nil {
		id, c := s.wizards.Start(body.OwnerID, body.Language, body.Region)
		writeJSON(w, http.StatusCreated, WizardResponse{ID: id, Snapshot: c.Snapshot()})
		return
	}

	id, c, err := s.wizards.Resume(body.OwnerID, body.Language, body.Region, *body.Draft, *body.Stage)
	resp := WizardResponse{ID: id, Snapshot: c.Snapshot()}
	if err != nil {
		if !errors.Is(err, domain.ErrDraftReset) {
			s.writeError(w, r, err, "")
			return
		}
		resp.Warning = WarningDraftReset
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetWizard handles GET /wizards/{id}.
func (s *Server) GetWizard(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, http.StatusOK, func(_ context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.Snapshot(), nil
	})
}

// AbandonWizard handles DELETE /wizards/{id}.
func (s *Server) AbandonWizard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.wizards.Abandon(id); err != nil {
		s.writeError(w, r, err, "wizard not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDeparture handles PUT /wizards/{id}/departure.
func (s *Server) SetDeparture(w http.ResponseWriter, r *http.Request) {
	var body wizard.LocationInput
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.SetDeparture(ctx, body)
	})
}

// SetArrival handles PUT /wizards/{id}/arrival.
func (s *Server) SetArrival(w http.ResponseWriter, r *http.Request) {
	var body wizard.LocationInput
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.SetArrival(ctx, body)
	})
}

// PickCandidate handles POST /wizards/{id}/candidates/{field}/{index}.
func (s *Server) PickCandidate(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		requestError(w, err)
		return
	}
	field := wizard.Field(chi.URLParam(r, "field"))
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.PickCandidate(ctx, field, index)
	})
}

// SelectRoute handles PUT /wizards/{id}/route.
func (s *Server) SelectRoute(w http.ResponseWriter, r *http.Request) {
	var body selectRouteRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.SelectRoute(ctx, body.RouteID)
	})
}

// ToggleStopover handles POST /wizards/{id}/stopovers/{index}/toggle.
func (s *Server) ToggleStopover(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		requestError(w, err)
		return
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.ToggleStopover(ctx, index)
	})
}

// ConfirmStopovers handles POST /wizards/{id}/stopovers/confirm.
func (s *Server) ConfirmStopovers(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.ConfirmStopovers(ctx)
	})
}

// SetDate handles PUT /wizards/{id}/date.
func (s *Server) SetDate(w http.ResponseWriter, r *http.Request) {
	var body setDateRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	if body.Date.Time.IsZero() {
		requestError(w, errors.New("date is required"))
		return
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.SetDate(ctx, body.Date.Time)
	})
}

// SetTime handles PUT /wizards/{id}/time.
func (s *Server) SetTime(w http.ResponseWriter, r *http.Request) {
	var body setTimeRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	if body.Time == nil {
		requestError(w, errors.New("time is required"))
		return
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.SetTime(ctx, *body.Time)
	})
}

// SetSeats handles PUT /wizards/{id}/seats.
func (s *Server) SetSeats(w http.ResponseWriter, r *http.Request) {
	var body setSeatsRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.SetSeats(ctx, body.Seats)
	})
}

// SetPrice handles PUT /wizards/{id}/price.
func (s *Server) SetPrice(w http.ResponseWriter, r *http.Request) {
	var body setPriceRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.SetPrice(ctx, body.Price)
	})
}

// SetRoundTrip handles PUT /wizards/{id}/round-trip.
func (s *Server) SetRoundTrip(w http.ResponseWriter, r *http.Request) {
	var body setRoundTripRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	in := wizard.RoundTripInput{IsRoundTrip: body.IsRoundTrip, ReturnTime: body.ReturnTime}
	if body.ReturnDate != nil {
		in.ReturnDate = body.ReturnDate.Time
	}
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.SetRoundTrip(ctx, in)
	})
}

// Back handles POST /wizards/{id}/back.
func (s *Server) Back(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, http.StatusOK, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.Back(ctx)
	})
}

// Publish handles POST /wizards/{id}/publish. A partial publish, where only
// the return trip failed, answers 207 with the outbound id in the result.
func (s *Server) Publish(w http.ResponseWriter, r *http.Request) {
	s.withWizard(w, r, http.StatusCreated, func(ctx context.Context, c *wizard.Controller) (wizard.Snapshot, error) {
		return c.Publish(ctx)
	})
}

// withWizard looks up the {id} wizard, runs op and writes its snapshot with
// status, or the mapped error.
func (s *Server) withWizard(w http.ResponseWriter, r *http.Request, status int, op func(context.Context, *wizard.Controller) (wizard.Snapshot, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.wizards.Get(id)
	if err != nil {
		s.writeError(w, r, err, "wizard not found")
		return
	}

	snap, err := op(r.Context(), c)
	resp := WizardResponse{ID: id, Snapshot: snap}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrGeocodeUnavailable):
			resp.Warning = WarningGeocodeUnavailable
			writeJSON(w, http.StatusOK, resp)
			return
		case errors.Is(err, domain.ErrRouteUnavailable):
			resp.Warning = WarningRouteApproximate
			writeJSON(w, http.StatusOK, resp)
			return
		}
		s.writeWizardError(w, r, resp, err)
		return
	}
	if snap.RouteApproximate {
		resp.Warning = WarningRouteApproximate
	}
	writeJSON(w, status, resp)
}

func (s *Server) writeWizardError(w http.ResponseWriter, r *http.Request, resp WizardResponse, err error) {
	status, code, sentinel := classify(err)
	if status == 0 {
		s.writeError(w, r, err, "")
		return
	}
	if status == http.StatusBadGateway || status == http.StatusMultiStatus {
		s.log.ErrorContext(r.Context(), "publish failed", "wizard_id", resp.ID, "error", err)
	}
	writeJSON(w, status, WizardErrorResponse{
		Error:  ErrorDetail{Code: code, Message: unwrapMessage(err, sentinel)},
		Wizard: &resp,
	})
}

func pathIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("index must be an integer, got %q", raw)
	}
	return n, nil
}
