package domain

// RouteOption is one alternative returned by the directions collaborator.
// DistanceMeters and DurationSeconds are never negative.
type RouteOption struct {
	ID              string `json:"id"`
	Summary         string `json:"summary,omitempty"`
	DistanceMeters  int    `json:"distance_meters"`
	DurationSeconds int    `json:"duration_seconds"`

	// GeometryRef is the collaborator's encoded polyline; Geometry is the
	// decoded path. A straight-line fallback only has the two endpoints.
	GeometryRef string   `json:"geometry_ref,omitempty"`
	Geometry    []LatLng `json:"geometry,omitempty"`

	// WaypointOrder is the order the collaborator visited the requested
	// waypoints in, as indexes into the request's waypoint list.
	WaypointOrder []int `json:"waypoint_order,omitempty"`

	// Approximate is set on the haversine fallback used when no route
	// could be planned.
	Approximate bool `json:"approximate,omitempty"`
}

// Stopover is a candidate intermediate stop along the selected route.
type Stopover struct {
	Name                        string `json:"name"`
	Coordinates                 LatLng `json:"coordinates"`
	DistanceFromDepartureMeters int    `json:"distance_from_departure_meters"`
	Selected                    bool   `json:"selected"`
}
