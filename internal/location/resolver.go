// Package location turns free text and map clicks into geocoded Locations
// through the geocoding collaborator.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkordes/ridepost/internal/domain"
)

// Options carries the per-session hints forwarded to the geocoder.
type Options struct {
	Region   string
	Language string
}

// Geocoder is the geocoding collaborator.
// Geocode returns candidates best first and an empty slice when nothing
// matched. Transport failures must wrap domain.ErrGeocodeUnavailable.
type Geocoder interface {
	Geocode(ctx context.Context, text string, opts Options) ([]domain.Location, error)
	ReverseGeocode(ctx context.Context, p domain.LatLng, opts Options) (domain.Location, error)
}

// Resolution is the outcome of a text lookup: the chosen Location and the
// ranked list it was chosen from, for the user to pick another.
type Resolution struct {
	Location   domain.Location
	Candidates []domain.Location
}

// Resolver implements the LocationResolver.
type Resolver struct {
	geocoder Geocoder
	log      *slog.Logger
}

// NewResolver constructs a Resolver. A nil log uses slog.Default().
func NewResolver(g Geocoder, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{geocoder: g, log: log}
}

// Resolve geocodes text and picks the highest ranked candidate.
// Returns domain.ErrValidation for blank text, domain.ErrLocationNotFound
// when the collaborator had no usable candidate, and
// domain.ErrGeocodeUnavailable when it could not be reached.
func (r *Resolver) Resolve(ctx context.Context, text string, opts Options) (Resolution, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Resolution{}, fmt.Errorf("%w: address is required", domain.ErrValidation)
	}

	found, err := r.geocoder.Geocode(ctx, text, opts)
	if err != nil {
		if !errors.Is(err, domain.ErrGeocodeUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrGeocodeUnavailable, err)
		}
		r.log.WarnContext(ctx, "geocoding failed", "text", text, "error", err)
		return Resolution{}, fmt.Errorf("location.Resolver.Resolve: %w", err)
	}

	candidates := make([]domain.Location, 0, len(found))
	for _, c := range found {
		if c.Resolved() {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return Resolution{}, fmt.Errorf("location.Resolver.Resolve: %w: %q", domain.ErrLocationNotFound, text)
	}

	return Resolution{Location: candidates[0], Candidates: candidates}, nil
}

// ReverseResolve names the place at p. When the collaborator fails the
// coordinates themselves become the address, so a map click is never lost.
func (r *Resolver) ReverseResolve(ctx context.Context, p domain.LatLng, opts Options) (domain.Location, error) {
	if !p.Valid() {
		return domain.Location{}, fmt.Errorf("%w: coordinates out of range", domain.ErrValidation)
	}

	loc, err := r.geocoder.ReverseGeocode(ctx, p, opts)
	if err != nil || strings.TrimSpace(loc.Address) == "" {
		if err != nil {
			r.log.WarnContext(ctx, "reverse geocoding failed, using coordinates", "lat", p.Lat, "lng", p.Lng, "error", err)
		}
		return domain.Location{Address: p.String(), Coordinates: &p}, nil
	}

	// Keep the clicked point rather than the snapped address location.
	loc.Coordinates = &p
	return loc, nil
}

// Manual accepts an address the user typed together with coordinates they
// placed themselves, without calling the collaborator. This is the degraded
// path when geocoding is unavailable.
func Manual(address string, p domain.LatLng) (domain.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Location{}, fmt.Errorf("%w: address is required", domain.ErrValidation)
	}
	if !p.Valid() {
		return domain.Location{}, fmt.Errorf("%w: coordinates out of range", domain.ErrValidation)
	}
	return domain.Location{Address: address, Coordinates: &p}, nil
}
