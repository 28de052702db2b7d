// Package handler implements the HTTP handlers for the ride offer API.
// All handlers are methods on Server; Routes registers them on a chi router.
// Methods are split into domain-specific files (health.go, trip.go,
// wizard.go, quote.go) but share the same Server struct.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/wizard"
)

// TripServicer defines the trip operations the handlers depend on.
// Defined here, in the consumer package, so handler tests can inject a mock
// without touching the database or service layer.
type TripServicer interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next domain.TripStatus) (domain.Trip, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Exporter flattens an owner's trips for download.
type Exporter interface {
	Export(ctx context.Context, ownerID uuid.UUID) ([]domain.ExportRow, error)
}

// WizardRegistry holds the live wizard sessions.
type WizardRegistry interface {
	Start(owner uuid.UUID, language, region string) (uuid.UUID, *wizard.Controller)
	Resume(owner uuid.UUID, language, region string, draft domain.TripDraft, at wizard.Stage) (uuid.UUID, *wizard.Controller, error)
	Get(id uuid.UUID) (*wizard.Controller, error)
	Abandon(id uuid.UUID) error
}

// Quoter prices a trip outside of a wizard.
type Quoter interface {
	Quote(distanceMeters int, date time.Time, clock domain.Clock) (domain.PriceQuote, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	trips   TripServicer
	export  Exporter
	wizards WizardRegistry
	quoter  Quoter
	openAPI []byte
	log     *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// Any of them may be nil in tests that only exercise other routes.
func NewServer(trips TripServicer, export Exporter, wizards WizardRegistry, quoter Quoter, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{trips: trips, export: export, wizards: wizards, quoter: quoter, log: log}
}

// WithOpenAPI sets the document served at /openapi.yaml.
func (s *Server) WithOpenAPI(doc []byte) *Server {
	s.openAPI = doc
	return s
}

// Routes returns the API router. Cross-cutting middleware (request id,
// logging, CORS, body limit) is applied by the caller.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Post("/quotes", s.CreateQuote)

	r.Route("/trips", func(r chi.Router) {
		r.Get("/", s.ListTrips)
		r.Get("/export", s.ExportTrips)
		r.Get("/{id}", s.GetTrip)
		r.Put("/{id}/status", s.UpdateTripStatus)
		r.Delete("/{id}", s.DeleteTrip)
	})

	r.Route("/wizards", func(r chi.Router) {
		r.Post("/", s.StartWizard)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetWizard)
			r.Delete("/", s.AbandonWizard)
			r.Put("/departure", s.SetDeparture)
			r.Put("/arrival", s.SetArrival)
			r.Post("/candidates/{field}/{index}", s.PickCandidate)
			r.Put("/route", s.SelectRoute)
			r.Post("/stopovers/{index}/toggle", s.ToggleStopover)
			r.Post("/stopovers/confirm", s.ConfirmStopovers)
			r.Put("/date", s.SetDate)
			r.Put("/time", s.SetTime)
			r.Put("/seats", s.SetSeats)
			r.Put("/price", s.SetPrice)
			r.Put("/round-trip", s.SetRoundTrip)
			r.Post("/back", s.Back)
			r.Post("/publish", s.Publish)
		})
	})

	return r
}
