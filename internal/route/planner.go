// Package route plans driving routes between two resolved locations through
// the directions collaborator, with a straight-line fallback.
package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/geo"
)

// FallbackRouteID identifies the straight-line estimate.
const FallbackRouteID = "straight-line"

// fallbackSpeedKmh estimates the duration of a straight-line fallback.
const fallbackSpeedKmh = 70.0

// Request is what the planner asks the directions collaborator for.
type Request struct {
	Origin            domain.LatLng
	Destination       domain.LatLng
	Waypoints         []domain.LatLng
	OptimizeWaypoints bool
	Alternatives      bool
}

// Leg is one origin→waypoint→…→destination hop of a Result.
type Leg struct {
	DistanceMeters  int
	DurationSeconds int
}

// Result is one route alternative as returned by the collaborator.
type Result struct {
	Summary       string
	Polyline      string
	Legs          []Leg
	WaypointOrder []int
}

// Directions is the directions collaborator. Results are best first.
// Transport failures must wrap domain.ErrRouteUnavailable.
type Directions interface {
	Route(ctx context.Context, req Request) ([]Result, error)
}

// Planner implements the RoutePlanner.
type Planner struct {
	directions Directions
	log        *slog.Logger
}

// NewPlanner constructs a Planner. A nil log uses slog.Default().
func NewPlanner(d Directions, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{directions: d, log: log}
}

// Plan returns the route alternatives between from and to through
// waypoints, which the collaborator may reorder. The slice is non-empty on
// success and keeps the collaborator's ranking, except that options with
// equal duration are ordered by shorter distance first.
func (p *Planner) Plan(ctx context.Context, from, to domain.Location, waypoints []domain.LatLng) ([]domain.RouteOption, error) {
	if !from.Resolved() || !to.Resolved() {
		return nil, fmt.Errorf("%w: departure and arrival must be resolved before routing", domain.ErrValidation)
	}

	results, err := p.directions.Route(ctx, Request{
		Origin:            *from.Coordinates,
		Destination:       *to.Coordinates,
		Waypoints:         waypoints,
		OptimizeWaypoints: len(waypoints) > 0,
		Alternatives:      len(waypoints) == 0,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrRouteUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrRouteUnavailable, err)
		}
		return nil, fmt.Errorf("route.Planner.Plan: %w", err)
	}

	options := make([]domain.RouteOption, 0, len(results))
	for i, r := range results {
		opt, err := toOption(i, r, len(waypoints))
		if err != nil {
			p.log.WarnContext(ctx, "dropping malformed route alternative", "index", i, "error", err)
			continue
		}
		options = append(options, opt)
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("route.Planner.Plan: %w: no usable alternatives", domain.ErrRouteUnavailable)
	}

	breakDurationTies(options)
	return options, nil
}

// PlanOrFallback is Plan with the degraded path applied: when no route can
// be planned it returns the single straight-line option and degraded=true.
// Validation errors are still returned.
func (p *Planner) PlanOrFallback(ctx context.Context, from, to domain.Location, waypoints []domain.LatLng) (options []domain.RouteOption, degraded bool, err error) {
	options, err = p.Plan(ctx, from, to, waypoints)
	if err == nil {
		return options, false, nil
	}
	if !errors.Is(err, domain.ErrRouteUnavailable) {
		return nil, false, err
	}
	p.log.WarnContext(ctx, "directions unavailable, using straight-line estimate",
		"from", from.Address, "to", to.Address, "error", err)
	return []domain.RouteOption{Fallback(*from.Coordinates, *to.Coordinates)}, true, nil
}

// Fallback builds the approximate option used when routing failed: the
// great-circle distance and only the two endpoints as geometry.
func Fallback(from, to domain.LatLng) domain.RouteOption {
	meters := geo.HaversineMeters(from, to)
	path := []domain.LatLng{from, to}
	return domain.RouteOption{
		ID:              FallbackRouteID,
		Summary:         "Straight-line estimate",
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(meters / 1000 / fallbackSpeedKmh * 3600)),
		GeometryRef:     geo.EncodePolyline(path),
		Geometry:        path,
		Approximate:     true,
	}
}

func toOption(i int, r Result, waypointCount int) (domain.RouteOption, error) {
	var distance, duration int
	for _, leg := range r.Legs {
		if leg.DistanceMeters < 0 || leg.DurationSeconds < 0 {
			return domain.RouteOption{}, errors.New("negative leg distance or duration")
		}
		distance += leg.DistanceMeters
		duration += leg.DurationSeconds
	}

	path, err := geo.DecodePolyline(r.Polyline)
	if err != nil {
		return domain.RouteOption{}, err
	}

	order := r.WaypointOrder
	if len(order) != waypointCount {
		// Collaborator kept the request order.
		order = make([]int, waypointCount)
		for j := range order {
			order[j] = j
		}
	}

	return domain.RouteOption{
		ID:              fmt.Sprintf("route-%d", i),
		Summary:         r.Summary,
		DistanceMeters:  distance,
		DurationSeconds: duration,
		GeometryRef:     r.Polyline,
		Geometry:        path,
		WaypointOrder:   order,
	}, nil
}

// breakDurationTies reorders each group of options sharing a duration by
// ascending distance, keeping the group in the positions it already holds.
func breakDurationTies(options []domain.RouteOption) {
	positions := map[int][]int{}
	for i, o := range options {
		positions[o.DurationSeconds] = append(positions[o.DurationSeconds], i)
	}
	for _, idx := range positions {
		if len(idx) < 2 {
			continue
		}
		group := make([]domain.RouteOption, len(idx))
		for k, i := range idx {
			group[k] = options[i]
		}
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].DistanceMeters < group[b].DistanceMeters
		})
		for k, i := range idx {
			options[i] = group[k]
		}
	}
}
