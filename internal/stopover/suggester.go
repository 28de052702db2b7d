// Package stopover proposes intermediate stops along a selected route,
// drawn from a gazetteer of known places.
package stopover

import (
	"math"
	"runtime"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/geo"
)

// DefaultCorridorMeters is the default corridor threshold.
const DefaultCorridorMeters = 10_000

// endpointClearanceMeters keeps places that are the departure or arrival
// themselves out of the suggestions.
const endpointClearanceMeters = 1_000

// Suggester implements the StopoverSuggester. It holds no per-route state;
// given the same route it always returns the same suggestions.
type Suggester struct {
	places         []Place
	corridorMeters float64
}

// NewSuggester builds a Suggester over places. A corridor of zero or less
// uses DefaultCorridorMeters.
func NewSuggester(places []Place, corridorMeters float64) *Suggester {
	if corridorMeters <= 0 {
		corridorMeters = DefaultCorridorMeters
	}
	return &Suggester{places: places, corridorMeters: corridorMeters}
}

type candidate struct {
	place Place
	along float64
}

// Suggest returns up to maxCount places whose distance to the route path is
// below the corridor threshold and whose projection falls strictly between
// the departure and arrival projections, ordered by distance from the
// departure along the route. Every returned Stopover is unselected.
func (s *Suggester) Suggest(r domain.RouteOption, maxCount int) []domain.Stopover {
	path := r.Geometry
	if maxCount <= 0 || len(path) < 2 {
		return []domain.Stopover{}
	}

	departure, arrival := path[0], path[len(path)-1]
	start, _ := geo.Project(path, departure)
	end, _ := geo.Project(path, arrival)

	p := pool.NewWithResults[*candidate]().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for _, place := range s.places {
		p.Go(func() *candidate {
			at := place.coordinates()
			if geo.HaversineMeters(at, departure) < endpointClearanceMeters ||
				geo.HaversineMeters(at, arrival) < endpointClearanceMeters {
				return nil
			}
			proj, ok := geo.Project(path, at)
			if !ok || proj.OffsetMeters >= s.corridorMeters {
				return nil
			}
			if proj.AlongMeters <= start.AlongMeters || proj.AlongMeters >= end.AlongMeters {
				return nil
			}
			return &candidate{place: place, along: proj.AlongMeters - start.AlongMeters}
		})
	}

	var found []*candidate
	for _, c := range p.Wait() {
		if c != nil {
			found = append(found, c)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].along != found[j].along {
			return found[i].along < found[j].along
		}
		return found[i].place.Name < found[j].place.Name
	})
	if len(found) > maxCount {
		found = found[:maxCount]
	}

	out := make([]domain.Stopover, 0, len(found))
	for _, c := range found {
		out = append(out, domain.Stopover{
			Name:                        c.place.Name,
			Coordinates:                 c.place.coordinates(),
			DistanceFromDepartureMeters: int(math.Round(c.along)),
		})
	}
	return out
}
