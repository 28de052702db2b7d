package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripDraft is the in-progress offer built across the wizard stages.
// It is owned by exactly one wizard and destroyed on publish or abandonment.
// Zero values mean "not entered yet"; Time and ReturnTime are pointers
// because midnight is a valid departure time.
type TripDraft struct {
	OwnerID       uuid.UUID    `json:"owner_id"`
	Departure     Location     `json:"departure"`
	Arrival       Location     `json:"arrival"`
	SelectedRoute *RouteOption `json:"selected_route,omitempty"`
	Stopovers     []Stopover   `json:"stopovers"`
	Date          time.Time    `json:"date"`
	Time          *Clock       `json:"time,omitempty"`
	Seats         int          `json:"seats"`
	Price         int          `json:"price"`
	IsRoundTrip   bool         `json:"is_round_trip"`
	ReturnDate    time.Time    `json:"return_date"`
	ReturnTime    *Clock       `json:"return_time,omitempty"`

	// OutboundTripID is set when the outbound trip was stored but the return
	// trip failed, so a retry only repeats the return insert.
	OutboundTripID *uuid.UUID `json:"outbound_trip_id,omitempty"`
}

// SelectedStopovers returns the stopovers the user kept, in draft order.
func (d TripDraft) SelectedStopovers() []Stopover {
	var out []Stopover
	for _, s := range d.Stopovers {
		if s.Selected {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy so snapshots can be handed out safely.
func (d TripDraft) Clone() TripDraft {
	c := d
	c.Departure = d.Departure.clone()
	c.Arrival = d.Arrival.clone()
	if d.SelectedRoute != nil {
		r := d.SelectedRoute.Clone()
		c.SelectedRoute = &r
	}
	c.Stopovers = append([]Stopover(nil), d.Stopovers...)
	if d.Time != nil {
		t := *d.Time
		c.Time = &t
	}
	if d.ReturnTime != nil {
		t := *d.ReturnTime
		c.ReturnTime = &t
	}
	if d.OutboundTripID != nil {
		id := *d.OutboundTripID
		c.OutboundTripID = &id
	}
	return c
}

func (l Location) clone() Location {
	if l.Coordinates != nil {
		p := *l.Coordinates
		l.Coordinates = &p
	}
	return l
}

// Clone returns a copy that shares no slices with r.
func (r RouteOption) Clone() RouteOption {
	r.Geometry = append([]LatLng(nil), r.Geometry...)
	r.WaypointOrder = append([]int(nil), r.WaypointOrder...)
	return r
}

// PublishResult identifies the trips created for one draft.
// ReturnTripID is nil for a one-way offer.
type PublishResult struct {
	OutboundTripID uuid.UUID  `json:"outbound_trip_id"`
	ReturnTripID   *uuid.UUID `json:"return_trip_id,omitempty"`
}
