package maps

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/route"
)

const directionsPath = "/maps/api/directions/json"

type directionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Routes       []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Summary          string `json:"summary"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []struct {
		Distance struct {
			Value int `json:"value"`
		} `json:"distance"`
		Duration struct {
			Value int `json:"value"`
		} `json:"duration"`
	} `json:"legs"`
	WaypointOrder []int `json:"waypoint_order"`
}

// Route implements route.Directions. An empty answer is reported as
// domain.ErrRouteUnavailable since the planner needs at least one route.
func (c *Client) Route(ctx context.Context, req route.Request) ([]route.Result, error) {
	q := url.Values{}
	q.Set("origin", formatLatLng(req.Origin))
	q.Set("destination", formatLatLng(req.Destination))
	if req.Alternatives {
		q.Set("alternatives", "true")
	}
	if len(req.Waypoints) > 0 {
		parts := make([]string, 0, len(req.Waypoints)+1)
		if req.OptimizeWaypoints {
			parts = append(parts, "optimize:true")
		}
		for _, w := range req.Waypoints {
			parts = append(parts, formatLatLng(w))
		}
		q.Set("waypoints", strings.Join(parts, "|"))
	}

	var resp directionsResponse
	err := c.getJSON(ctx, directionsPath, q, &resp, func() (string, string) { return resp.Status, resp.ErrorMessage })
	if err != nil {
		return nil, fmt.Errorf("maps.Client.Route: %w: %w", domain.ErrRouteUnavailable, err)
	}
	if len(resp.Routes) == 0 {
		return nil, fmt.Errorf("maps.Client.Route: %w: status %s", domain.ErrRouteUnavailable, resp.Status)
	}

	out := make([]route.Result, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		res := route.Result{
			Summary:       r.Summary,
			Polyline:      r.OverviewPolyline.Points,
			WaypointOrder: r.WaypointOrder,
		}
		for _, leg := range r.Legs {
			res.Legs = append(res.Legs, route.Leg{DistanceMeters: leg.Distance.Value, DurationSeconds: leg.Duration.Value})
		}
		out = append(out, res)
	}
	return out, nil
}
