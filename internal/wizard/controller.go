// Package wizard drives the ride-offer publishing flow. A Controller owns
// one TripDraft for one session and is its only writer: every change goes
// through a typed operation that checks the stage preconditions and returns
// a read-only Snapshot.
//
// Geocoding and routing calls are made without holding the controller's
// lock, so unrelated fields stay editable while a lookup is outstanding.
// Each call is tagged with a per-field epoch; a newer call for the same
// field cancels the older one and any late answer is dropped.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/location"
	"github.com/pkordes/ridepost/internal/pricing"
)

const (
	// DefaultLookupTimeout bounds every geocoding and routing call.
	DefaultLookupTimeout = 9 * time.Second
	// DefaultMaxStopovers caps the suggestion list.
	DefaultMaxStopovers = 8

	maxSeats = 8
)

// Field names an input that has its own request epoch.
type Field string

const (
	FieldDeparture Field = "departure"
	FieldArrival   Field = "arrival"
	FieldRoute     Field = "route"
)

// Resolver is the LocationResolver as the controller uses it.
type Resolver interface {
	Resolve(ctx context.Context, text string, opts location.Options) (location.Resolution, error)
	ReverseResolve(ctx context.Context, p domain.LatLng, opts location.Options) (domain.Location, error)
}

// Planner is the RoutePlanner as the controller uses it.
type Planner interface {
	PlanOrFallback(ctx context.Context, from, to domain.Location, waypoints []domain.LatLng) ([]domain.RouteOption, bool, error)
}

// Suggester is the StopoverSuggester.
type Suggester interface {
	Suggest(r domain.RouteOption, maxCount int) []domain.Stopover
}

// Pricer is the PricingEngine.
type Pricer interface {
	Quote(distanceMeters int, date time.Time, clock domain.Clock) (domain.PriceQuote, error)
}

// Publisher is the TripPublisher.
type Publisher interface {
	Publish(ctx context.Context, draft domain.TripDraft) (domain.PublishResult, error)
}

// Deps are the collaborators shared by every controller.
type Deps struct {
	Resolver  Resolver
	Planner   Planner
	Suggester Suggester
	Pricer    Pricer
	Publisher Publisher
	Log       *slog.Logger
}

// Session holds the per-session values a controller is built with.
type Session struct {
	OwnerID  uuid.UUID
	Language string
	Region   string

	// Location is the zone "today" and departure times are evaluated in.
	Location *time.Location
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	LookupTimeout time.Duration
	MaxStopovers  int
}

// LocationInput is what the user supplied for departure or arrival: text to
// geocode, a map click to reverse geocode, or both for a manual entry that
// skips the collaborator.
type LocationInput struct {
	Text        string         `json:"text,omitempty"`
	Coordinates *domain.LatLng `json:"coordinates,omitempty"`
}

// RoundTripInput is the return-trip decision.
type RoundTripInput struct {
	IsRoundTrip bool          `json:"is_round_trip"`
	ReturnDate  time.Time     `json:"return_date"`
	ReturnTime  *domain.Clock `json:"return_time,omitempty"`
}

// Snapshot is a read-only view of a controller returned by every operation.
type Snapshot struct {
	Stage Stage `json:"stage"`
	// Frontier is the first stage whose data is still missing or invalid;
	// StageReview when the draft is ready to publish.
	Frontier Stage `json:"frontier"`

	Draft               domain.TripDraft        `json:"draft"`
	Routes              []domain.RouteOption    `json:"routes"`
	RouteApproximate    bool                    `json:"route_approximate"`
	DepartureCandidates []domain.Location       `json:"departure_candidates,omitempty"`
	ArrivalCandidates   []domain.Location       `json:"arrival_candidates,omitempty"`
	Quote               *domain.PriceQuote      `json:"quote,omitempty"`
	Comparison          *domain.PriceComparison `json:"comparison,omitempty"`
	Pending             []Field                 `json:"pending,omitempty"`
	Result              *domain.PublishResult   `json:"result,omitempty"`
}

// Controller implements the WizardController.
type Controller struct {
	deps    Deps
	log     *slog.Logger
	session Session

	// life is cancelled on publish or abandon; every outstanding call's
	// context is tied to it.
	life context.Context
	stop context.CancelFunc

	mu             sync.Mutex
	draft          domain.TripDraft
	current        Stage
	routes         []domain.RouteOption
	baseRoute      *domain.RouteOption
	routeApprox    bool
	waypointsDirty bool
	candidates     map[Field][]domain.Location
	quote          *domain.PriceQuote
	result         *domain.PublishResult
	publishing     bool
	epochs         map[Field]uint64
	cancels        map[Field]context.CancelFunc
	lastActive     time.Time
}

// New constructs a controller at StageDeparture with an empty draft.
func New(deps Deps, s Session) *Controller {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.LookupTimeout <= 0 {
		s.LookupTimeout = DefaultLookupTimeout
	}
	if s.MaxStopovers <= 0 {
		s.MaxStopovers = DefaultMaxStopovers
	}

	life, stop := context.WithCancel(context.Background())
	return &Controller{
		deps:       deps,
		log:        deps.Log.With("owner_id", s.OwnerID),
		session:    s,
		life:       life,
		stop:       stop,
		draft:      domain.TripDraft{OwnerID: s.OwnerID},
		current:    StageDeparture,
		candidates: map[Field][]domain.Location{},
		epochs:     map[Field]uint64{},
		cancels:    map[Field]context.CancelFunc{},
		lastActive: s.Now(),
	}
}

// Resume rebuilds a controller from a saved draft positioned at stage.
// When any stage before it lacks valid data the controller starts over at
// StageDeparture with an empty draft and the error wraps
// domain.ErrDraftReset; the returned controller is usable either way.
func Resume(deps Deps, s Session, draft domain.TripDraft, at Stage) (*Controller, error) {
	c := New(deps, s)

	if at < StageDeparture || at > StageReview {
		return c, fmt.Errorf("wizard.Resume: %w: cannot resume at %s", domain.ErrDraftReset, at)
	}

	c.draft = draft.Clone()
	c.draft.OwnerID = s.OwnerID
	if f := c.frontier(); f < at {
		c.draft = domain.TripDraft{OwnerID: s.OwnerID}
		c.log.Info("draft reset on resume", "requested_stage", at, "missing_stage", f)
		return c, fmt.Errorf("wizard.Resume: %w: %s is incomplete", domain.ErrDraftReset, f)
	}

	if c.draft.SelectedRoute != nil {
		base := c.draft.SelectedRoute.Clone()
		c.baseRoute = &base
		c.routes = []domain.RouteOption{base.Clone()}
		c.routeApprox = base.Approximate
	}
	c.refreshQuote()
	c.current = at
	return c, nil
}

// SetDeparture resolves and stores the departure. If the arrival is already
// known, routes are planned before returning.
func (c *Controller) SetDeparture(ctx context.Context, in LocationInput) (Snapshot, error) {
	return c.setLocation(ctx, FieldDeparture, in)
}

// SetArrival resolves and stores the arrival, then plans routes.
// It fails with domain.ErrValidation until a departure is resolved.
func (c *Controller) SetArrival(ctx context.Context, in LocationInput) (Snapshot, error) {
	return c.setLocation(ctx, FieldArrival, in)
}

// PickCandidate replaces the departure or arrival with another candidate
// from the list surfaced by the last lookup of that field.
func (c *Controller) PickCandidate(ctx context.Context, field Field, index int) (Snapshot, error) {
	stage, err := fieldStage(field)
	if err != nil {
		return c.Snapshot(), fmt.Errorf("wizard.Controller.PickCandidate: %w", err)
	}

	c.mu.Lock()
	if err := c.gate(stage); err != nil {
		return c.unlockWith(fmt.Errorf("wizard.Controller.PickCandidate: %w", err))
	}
	list := c.candidates[field]
	if index < 0 || index >= len(list) {
		return c.unlockWith(fmt.Errorf("wizard.Controller.PickCandidate: %w: no %s candidate %d", domain.ErrValidation, field, index))
	}
	// Supersede any lookup still running for this field.
	c.cancelCall(field)
	if err := c.applyLocation(field, list[index], list); err != nil {
		return c.unlockWith(fmt.Errorf("wizard.Controller.PickCandidate: %w", err))
	}
	c.touch()
	c.advanceTo(stage + 1)
	c.mu.Unlock()

	if err := c.planRoutes(ctx); err != nil {
		return c.Snapshot(), fmt.Errorf("wizard.Controller.PickCandidate: %w", err)
	}
	return c.Snapshot(), nil
}

// SelectRoute picks one of the planned alternatives by id. Choosing a
// different route replaces the stopover suggestions.
func (c *Controller) SelectRoute(ctx context.Context, routeID string) (Snapshot, error) {
	return c.update(ctx, "SelectRoute", StageRouteSelection, StageStopovers, func() error {
		idx := -1
		for i, r := range c.routes {
			if r.ID == routeID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: unknown route %q", domain.ErrValidation, routeID)
		}
		if c.baseRoute != nil && c.baseRoute.ID == routeID {
			return nil
		}

		c.cancelCall(FieldRoute)
		opt := c.routes[idx].Clone()
		var stops []domain.Stopover
		// The straight-line estimate shows only its endpoints.
		if !opt.Approximate {
			stops = c.deps.Suggester.Suggest(opt, c.session.MaxStopovers)
		}
		c.setBaseRoute(opt, stops)
		return nil
	})
}

// ToggleStopover flips the selection of the suggested stop at index.
func (c *Controller) ToggleStopover(ctx context.Context, index int) (Snapshot, error) {
	return c.update(ctx, "ToggleStopover", StageStopovers, StageStopovers, func() error {
		if index < 0 || index >= len(c.draft.Stopovers) {
			return fmt.Errorf("%w: no stopover %d", domain.ErrValidation, index)
		}
		c.draft.Stopovers[index].Selected = !c.draft.Stopovers[index].Selected
		c.waypointsDirty = true
		// A waypoint plan for the previous selection is now stale.
		c.cancelCall(FieldRoute)
		return nil
	})
}

// ConfirmStopovers leaves the stopover stage. With stops selected the route
// is re-planned through them; the collaborator's visiting order becomes the
// stopover order and the detoured distance is what gets priced.
func (c *Controller) ConfirmStopovers(ctx context.Context) (Snapshot, error) {
	if err := c.settleStopovers(ctx); err != nil {
		return c.Snapshot(), fmt.Errorf("wizard.Controller.ConfirmStopovers: %w", err)
	}
	return c.update(ctx, "ConfirmStopovers", StageStopovers, StageDate, func() error { return nil })
}

// SetDate sets the departure day. It must not be before today.
func (c *Controller) SetDate(ctx context.Context, date time.Time) (Snapshot, error) {
	return c.update(ctx, "SetDate", StageDate, StageTime, func() error {
		day := c.day(date)
		if day.Before(c.today()) {
			return fmt.Errorf("%w: departure date %s is in the past", domain.ErrValidation, day.Format(time.DateOnly))
		}
		c.draft.Date = day
		c.refreshQuote()
		return nil
	})
}

// SetTime sets the departure time.
func (c *Controller) SetTime(ctx context.Context, clock domain.Clock) (Snapshot, error) {
	return c.update(ctx, "SetTime", StageTime, StageSeats, func() error {
		if !clock.Valid() {
			return fmt.Errorf("%w: time %s is not a valid time of day", domain.ErrValidation, clock)
		}
		c.draft.Time = &clock
		c.refreshQuote()
		return nil
	})
}

// SetSeats sets the number of offered seats, 1 to 8.
func (c *Controller) SetSeats(ctx context.Context, seats int) (Snapshot, error) {
	return c.update(ctx, "SetSeats", StageSeats, StagePrice, func() error {
		if seats < 1 || seats > maxSeats {
			return fmt.Errorf("%w: seats must be between 1 and %d", domain.ErrValidation, maxSeats)
		}
		c.draft.Seats = seats
		return nil
	})
}

// SetPrice sets the price per seat. Any positive price is accepted; the
// snapshot's Comparison tells how it relates to the recommendation.
func (c *Controller) SetPrice(ctx context.Context, price int) (Snapshot, error) {
	return c.update(ctx, "SetPrice", StagePrice, StageReturnTrip, func() error {
		if price <= 0 {
			return fmt.Errorf("%w: price must be positive", domain.ErrValidation)
		}
		c.draft.Price = price
		return nil
	})
}

// SetRoundTrip records whether a return trip is offered and when it leaves.
// The return must leave after the outbound departure.
func (c *Controller) SetRoundTrip(ctx context.Context, in RoundTripInput) (Snapshot, error) {
	return c.update(ctx, "SetRoundTrip", StageReturnTrip, StageReview, func() error {
		if !in.IsRoundTrip {
			c.draft.IsRoundTrip = false
			c.draft.ReturnDate = time.Time{}
			c.draft.ReturnTime = nil
			return nil
		}
		if in.ReturnDate.IsZero() || in.ReturnTime == nil {
			return fmt.Errorf("%w: return date and time are required", domain.ErrValidation)
		}
		if !in.ReturnTime.Valid() {
			return fmt.Errorf("%w: return time %s is not a valid time of day", domain.ErrValidation, in.ReturnTime)
		}
		day := c.day(in.ReturnDate)
		rt := *in.ReturnTime
		if err := c.checkReturn(day, rt); err != nil {
			return err
		}
		c.draft.IsRoundTrip = true
		c.draft.ReturnDate = day
		c.draft.ReturnTime = &rt
		return nil
	})
}

// Back moves to the previous stage. Entered data is kept.
func (c *Controller) Back(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Terminal() {
		return c.snapshotLocked(), fmt.Errorf("wizard.Controller.Back: %w", domain.ErrWizardClosed)
	}
	if c.draft.OutboundTripID != nil {
		return c.snapshotLocked(), fmt.Errorf("wizard.Controller.Back: %w: outbound trip %s is already published", domain.ErrValidation, *c.draft.OutboundTripID)
	}
	if c.current > StageDeparture {
		c.current--
	}
	c.touch()
	return c.snapshotLocked(), nil
}

// Publish stores the draft through the TripPublisher.
//
// On success the controller becomes StagePublished and the draft is
// discarded. When only the return trip failed the error wraps
// domain.ErrReturnTripFailed, the outbound id is kept on the draft and
// calling Publish again stores the return trip alone. A failure wrapping
// domain.ErrPersistence created nothing.
func (c *Controller) Publish(ctx context.Context) (Snapshot, error) {
	if err := c.settleStopovers(ctx); err != nil {
		return c.Snapshot(), fmt.Errorf("wizard.Controller.Publish: %w", err)
	}

	c.mu.Lock()
	if err := c.gate(StageReview); err != nil {
		return c.unlockWith(fmt.Errorf("wizard.Controller.Publish: %w", err))
	}
	c.publishing = true
	draft := c.draft.Clone()
	c.touch()
	c.mu.Unlock()

	res, err := c.deps.Publisher.Publish(ctx, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishing = false

	if c.current.Terminal() {
		if err == nil {
			c.log.WarnContext(ctx, "wizard closed while publishing, trips were stored",
				"outbound_trip_id", res.OutboundTripID, "return_trip_id", res.ReturnTripID)
			c.result = &res
		}
		return c.snapshotLocked(), fmt.Errorf("wizard.Controller.Publish: %w", domain.ErrWizardClosed)
	}

	if err != nil {
		if errors.Is(err, domain.ErrReturnTripFailed) {
			id := res.OutboundTripID
			c.draft.OutboundTripID = &id
			c.result = &res
		}
		return c.snapshotLocked(), fmt.Errorf("wizard.Controller.Publish: %w", err)
	}

	c.log.InfoContext(ctx, "trip published", "outbound_trip_id", res.OutboundTripID, "return_trip_id", res.ReturnTripID)
	c.result = &res
	c.current = StagePublished
	c.draft = domain.TripDraft{OwnerID: c.session.OwnerID}
	c.shutdown()
	return c.snapshotLocked(), nil
}

// Abandon discards the draft and cancels every outstanding call. Nothing is
// persisted. Abandoning twice is a no-op; abandoning a published wizard
// fails with domain.ErrWizardClosed.
func (c *Controller) Abandon() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.current {
	case StageAbandoned:
		return nil
	case StagePublished:
		return fmt.Errorf("wizard.Controller.Abandon: %w", domain.ErrWizardClosed)
	}
	c.current = StageAbandoned
	c.draft = domain.TripDraft{OwnerID: c.session.OwnerID}
	c.routes = nil
	c.baseRoute = nil
	c.quote = nil
	c.candidates = map[Field][]domain.Location{}
	c.shutdown()
	return nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LastActive is the time of the last accepted operation.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) setLocation(ctx context.Context, field Field, in LocationInput) (Snapshot, error) {
	op := "wizard.Controller.Set" + strings.ToUpper(string(field[:1])) + string(field[1:])
	stage, _ := fieldStage(field)

	c.mu.Lock()
	if err := c.gate(stage); err != nil {
		return c.unlockWith(fmt.Errorf("%s: %w", op, err))
	}
	if err := checkLocationInput(in); err != nil {
		return c.unlockWith(fmt.Errorf("%s: %w", op, err))
	}
	c.touch()
	callCtx, epoch, done := c.beginCall(ctx, field)
	c.mu.Unlock()

	loc, candidates, err := c.lookup(callCtx, in)
	done()

	c.mu.Lock()
	fresh, closedErr := c.finishCall(ctx, field, epoch)
	if closedErr != nil {
		return c.unlockWith(fmt.Errorf("%s: %w", op, closedErr))
	}
	if !fresh {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	if err != nil {
		return c.unlockWith(fmt.Errorf("%s: %w", op, err))
	}
	if err := c.applyLocation(field, loc, candidates); err != nil {
		return c.unlockWith(fmt.Errorf("%s: %w", op, err))
	}
	c.advanceTo(stage + 1)
	c.mu.Unlock()

	if err := c.planRoutes(ctx); err != nil {
		return c.Snapshot(), fmt.Errorf("%s: %w", op, err)
	}
	return c.Snapshot(), nil
}

func (c *Controller) lookup(ctx context.Context, in LocationInput) (domain.Location, []domain.Location, error) {
	opts := location.Options{Region: c.session.Region, Language: c.session.Language}
	switch {
	case in.Coordinates != nil && strings.TrimSpace(in.Text) != "":
		loc, err := location.Manual(in.Text, *in.Coordinates)
		return loc, nil, err
	case in.Coordinates != nil:
		loc, err := c.deps.Resolver.ReverseResolve(ctx, *in.Coordinates, opts)
		return loc, nil, err
	default:
		res, err := c.deps.Resolver.Resolve(ctx, in.Text, opts)
		if err != nil {
			return domain.Location{}, nil, err
		}
		return res.Location, res.Candidates, nil
	}
}

// applyLocation stores loc for field. Caller holds mu.
func (c *Controller) applyLocation(field Field, loc domain.Location, candidates []domain.Location) error {
	target, other := &c.draft.Departure, c.draft.Arrival
	if field == FieldArrival {
		target, other = &c.draft.Arrival, c.draft.Departure
	}
	if other.Resolved() && *other.Coordinates == *loc.Coordinates {
		return fmt.Errorf("%w: departure and arrival must differ", domain.ErrValidation)
	}

	if !sameLocation(*target, loc) {
		// Routes and stops were derived from the old endpoint.
		c.invalidateRoute()
	}
	*target = loc
	c.candidates[field] = candidates
	return nil
}

// planRoutes plans the alternatives once both endpoints are resolved and no
// route is selected. The first option is preselected.
func (c *Controller) planRoutes(ctx context.Context) error {
	c.mu.Lock()
	if c.current.Terminal() || c.draft.SelectedRoute != nil ||
		!c.draft.Departure.Resolved() || !c.draft.Arrival.Resolved() {
		c.mu.Unlock()
		return nil
	}
	from, to := c.draft.Departure, c.draft.Arrival
	callCtx, epoch, done := c.beginCall(ctx, FieldRoute)
	c.mu.Unlock()

	options, degraded, err := c.deps.Planner.PlanOrFallback(callCtx, from, to, nil)
	done()
	var stops []domain.Stopover
	if err == nil && !degraded {
		stops = c.deps.Suggester.Suggest(options[0], c.session.MaxStopovers)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fresh, closedErr := c.finishCall(ctx, FieldRoute, epoch)
	if closedErr != nil {
		return closedErr
	}
	if !fresh {
		return nil
	}
	if err != nil {
		return err
	}

	c.routes = options
	c.routeApprox = degraded
	c.setBaseRoute(options[0].Clone(), stops)
	return nil
}

// setBaseRoute selects opt with its suggestions. Caller holds mu.
func (c *Controller) setBaseRoute(opt domain.RouteOption, stops []domain.Stopover) {
	base := opt.Clone()
	c.baseRoute = &base
	selected := opt.Clone()
	c.draft.SelectedRoute = &selected
	c.draft.Stopovers = stops
	c.waypointsDirty = false
	c.refreshQuote()
}

// settleStopovers re-plans through the selected stops if the selection
// changed since the last plan.
func (c *Controller) settleStopovers(ctx context.Context) error {
	c.mu.Lock()
	if c.current.Terminal() || !c.waypointsDirty || c.baseRoute == nil {
		c.mu.Unlock()
		return nil
	}
	c.waypointsDirty = false
	base := c.baseRoute.Clone()
	selected := c.draft.SelectedStopovers()
	if len(selected) == 0 {
		c.draft.SelectedRoute = &base
		c.refreshQuote()
		c.mu.Unlock()
		return nil
	}

	waypoints := make([]domain.LatLng, len(selected))
	for i, s := range selected {
		waypoints[i] = s.Coordinates
	}
	from, to := c.draft.Departure, c.draft.Arrival
	callCtx, epoch, done := c.beginCall(ctx, FieldRoute)
	c.mu.Unlock()

	options, degraded, err := c.deps.Planner.PlanOrFallback(callCtx, from, to, waypoints)
	done()

	c.mu.Lock()
	defer c.mu.Unlock()
	fresh, closedErr := c.finishCall(ctx, FieldRoute, epoch)
	if closedErr != nil {
		return closedErr
	}
	if !fresh {
		return nil
	}
	if err != nil {
		c.waypointsDirty = true
		return err
	}

	if degraded {
		// The straight-line estimate ignores the stops; keep the planned route.
		c.log.WarnContext(ctx, "could not route through stopovers, keeping base route", "stops", len(selected))
		c.draft.SelectedRoute = &base
		c.refreshQuote()
		return nil
	}

	via := options[0].Clone()
	c.draft.Stopovers = orderStopovers(c.draft.Stopovers, via.WaypointOrder)
	c.draft.SelectedRoute = &via
	c.refreshQuote()
	return nil
}

// update runs a synchronous stage operation: gate, mutate, advance.
// fn must leave the draft untouched when it returns an error.
func (c *Controller) update(ctx context.Context, name string, stage, next Stage, fn func() error) (Snapshot, error) {
	op := "wizard.Controller." + name
	if stage > StageStopovers {
		if err := c.settleStopovers(ctx); err != nil {
			return c.Snapshot(), fmt.Errorf("%s: %w", op, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.gate(stage); err != nil {
		return c.snapshotLocked(), fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(); err != nil {
		return c.snapshotLocked(), fmt.Errorf("%s: %w", op, err)
	}
	c.touch()
	c.advanceTo(next)
	return c.snapshotLocked(), nil
}

// gate rejects an operation for stage while an earlier stage is
// incomplete. Caller holds mu.
func (c *Controller) gate(stage Stage) error {
	if c.current.Terminal() {
		return domain.ErrWizardClosed
	}
	if c.publishing {
		return fmt.Errorf("%w: publish in progress", domain.ErrValidation)
	}
	// The outbound trip is stored; only the return may be retried.
	if c.draft.OutboundTripID != nil && stage < StageReview {
		return fmt.Errorf("%w: outbound trip %s is already published", domain.ErrValidation, *c.draft.OutboundTripID)
	}
	if f := c.frontier(); stage > f {
		return fmt.Errorf("%w: %s must be completed before %s", domain.ErrValidation, f, stage)
	}
	return nil
}

// advanceTo moves the cursor to next, but never past the frontier.
func (c *Controller) advanceTo(next Stage) {
	if f := c.frontier(); next > f {
		next = f
	}
	c.current = next
}

// frontier returns the first stage whose data is invalid.
func (c *Controller) frontier() Stage {
	for s := StageDeparture; s < StageReview; s++ {
		if !c.stageValid(s) {
			return s
		}
	}
	return StageReview
}

func (c *Controller) stageValid(s Stage) bool {
	d := c.draft
	switch s {
	case StageDeparture:
		return d.Departure.Resolved()
	case StageArrival:
		return d.Arrival.Resolved()
	case StageRouteSelection:
		return d.SelectedRoute != nil
	case StageStopovers:
		return true
	case StageDate:
		return !d.Date.IsZero() && !c.day(d.Date).Before(c.today())
	case StageTime:
		return d.Time != nil && d.Time.Valid()
	case StageSeats:
		return d.Seats >= 1 && d.Seats <= maxSeats
	case StagePrice:
		return d.Price > 0
	case StageReturnTrip:
		if !d.IsRoundTrip {
			return true
		}
		return d.ReturnTime != nil && c.checkReturn(d.ReturnDate, *d.ReturnTime) == nil
	}
	return false
}

func (c *Controller) checkReturn(day time.Time, at domain.Clock) error {
	d := c.draft
	if d.Date.IsZero() || d.Time == nil {
		return fmt.Errorf("%w: outbound date and time must be set first", domain.ErrValidation)
	}
	if day.Before(c.day(d.Date)) {
		return fmt.Errorf("%w: return date is before the departure date", domain.ErrValidation)
	}
	loc := c.session.Location
	if !at.On(day, loc).After(d.Time.On(d.Date, loc)) {
		return fmt.Errorf("%w: return must leave after the outbound departure", domain.ErrValidation)
	}
	return nil
}

// refreshQuote recomputes the quote once route, date and time are known and
// prefills an unset price with the recommendation. Caller holds mu.
func (c *Controller) refreshQuote() {
	d := c.draft
	if d.SelectedRoute == nil || d.Date.IsZero() || d.Time == nil {
		c.quote = nil
		return
	}
	q, err := c.deps.Pricer.Quote(d.SelectedRoute.DistanceMeters, d.Date, *d.Time)
	if err != nil {
		c.log.Warn("pricing failed", "distance_meters", d.SelectedRoute.DistanceMeters, "error", err)
		c.quote = nil
		return
	}
	c.quote = &q
	if c.draft.Price == 0 {
		c.draft.Price = q.Recommended
	}
}

// invalidateRoute drops everything derived from the endpoints. Caller holds mu.
func (c *Controller) invalidateRoute() {
	c.cancelCall(FieldRoute)
	c.routes = nil
	c.baseRoute = nil
	c.routeApprox = false
	c.waypointsDirty = false
	c.draft.SelectedRoute = nil
	c.draft.Stopovers = nil
	c.quote = nil
}

// beginCall starts a new epoch for field, cancelling the previous call.
// The returned context ends at the lookup timeout, when the caller's context
// ends, or when the controller is closed. Caller holds mu.
func (c *Controller) beginCall(ctx context.Context, field Field) (context.Context, uint64, func()) {
	c.cancelCall(field)
	c.epochs[field]++

	callCtx, cancel := context.WithTimeout(ctx, c.session.LookupTimeout)
	stopAfter := context.AfterFunc(c.life, cancel)
	c.cancels[field] = cancel
	return callCtx, c.epochs[field], func() {
		stopAfter()
		cancel()
	}
}

// cancelCall aborts the outstanding call for field, if any, and makes its
// answer stale. Caller holds mu.
func (c *Controller) cancelCall(field Field) {
	if cancel, ok := c.cancels[field]; ok {
		cancel()
		delete(c.cancels, field)
	}
	c.epochs[field]++
}

// finishCall reports whether the answer for epoch is still current. Caller
// holds mu.
func (c *Controller) finishCall(ctx context.Context, field Field, epoch uint64) (bool, error) {
	if c.current.Terminal() {
		return false, domain.ErrWizardClosed
	}
	if c.epochs[field] != epoch {
		c.log.DebugContext(ctx, "discarding stale response",
			"field", field, "epoch", epoch, "current_epoch", c.epochs[field],
			"reason", domain.ErrStaleResponse)
		return false, nil
	}
	delete(c.cancels, field)
	return true, nil
}

// shutdown cancels the lifetime context and with it every outstanding call.
// Caller holds mu.
func (c *Controller) shutdown() {
	c.stop()
	c.cancels = map[Field]context.CancelFunc{}
}

func (c *Controller) touch() {
	c.lastActive = c.session.Now()
}

func (c *Controller) unlockWith(err error) (Snapshot, error) {
	snap := c.snapshotLocked()
	c.mu.Unlock()
	return snap, err
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Stage:               c.current,
		Frontier:            c.frontier(),
		Draft:               c.draft.Clone(),
		RouteApproximate:    c.routeApprox,
		DepartureCandidates: append([]domain.Location(nil), c.candidates[FieldDeparture]...),
		ArrivalCandidates:   append([]domain.Location(nil), c.candidates[FieldArrival]...),
	}
	if c.current.Terminal() {
		s.Frontier = c.current
	}
	for _, r := range c.routes {
		s.Routes = append(s.Routes, r.Clone())
	}
	if c.quote != nil {
		q := *c.quote
		q.PopularPrices = append([]int(nil), c.quote.PopularPrices...)
		s.Quote = &q
		if c.draft.Price > 0 {
			cmp := pricing.Compare(c.draft.Price, q)
			s.Comparison = &cmp
		}
	}
	for f := range c.cancels {
		s.Pending = append(s.Pending, f)
	}
	sort.Slice(s.Pending, func(i, j int) bool { return s.Pending[i] < s.Pending[j] })
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

func (c *Controller) today() time.Time {
	return c.day(c.session.Now())
}

// day truncates t to midnight of its calendar day in the session zone. The
// calendar date is taken as given, not converted.
func (c *Controller) day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.session.Location)
}

func fieldStage(f Field) (Stage, error) {
	switch f {
	case FieldDeparture:
		return StageDeparture, nil
	case FieldArrival:
		return StageArrival, nil
	}
	return 0, fmt.Errorf("%w: unknown field %q", domain.ErrValidation, f)
}

func checkLocationInput(in LocationInput) error {
	if in.Coordinates == nil && strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: address text or coordinates are required", domain.ErrValidation)
	}
	if in.Coordinates != nil && !in.Coordinates.Valid() {
		return fmt.Errorf("%w: coordinates out of range", domain.ErrValidation)
	}
	return nil
}

func sameLocation(a, b domain.Location) bool {
	if a.Address != b.Address || a.Resolved() != b.Resolved() {
		return false
	}
	return !a.Resolved() || *a.Coordinates == *b.Coordinates
}

// orderStopovers puts the selected stops in the order the collaborator
// visits them, followed by the unselected suggestions. An order that does
// not cover the selection leaves it as is.
func orderStopovers(all []domain.Stopover, order []int) []domain.Stopover {
	var selected, rest []domain.Stopover
	for _, s := range all {
		if s.Selected {
			selected = append(selected, s)
		} else {
			rest = append(rest, s)
		}
	}

	if len(order) == len(selected) {
		seen := make([]bool, len(selected))
		ordered := make([]domain.Stopover, 0, len(selected))
		for _, i := range order {
			if i < 0 || i >= len(selected) || seen[i] {
				ordered = nil
				break
			}
			seen[i] = true
			ordered = append(ordered, selected[i])
		}
		if ordered != nil {
			selected = ordered
		}
	}
	return append(selected, rest...)
}
