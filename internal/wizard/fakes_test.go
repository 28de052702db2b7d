package wizard_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/location"
	"github.com/pkordes/ridepost/internal/pricing"
	"github.com/pkordes/ridepost/internal/wizard"
)

var cities = map[string]domain.LatLng{
	"Casablanca": {Lat: 33.5731, Lng: -7.5898},
	"Rabat":      {Lat: 34.0209, Lng: -6.8416},
	"Marrakech":  {Lat: 31.6295, Lng: -7.9811},
	"Fes":        {Lat: 34.0181, Lng: -5.0078},
}

func city(name string) domain.Location {
	p := cities[name]
	return domain.Location{Address: name, Coordinates: &p}
}

// mockResolver is a function-field double for wizard.Resolver.
type mockResolver struct {
	resolve func(ctx context.Context, text string, opts location.Options) (location.Resolution, error)
	reverse func(ctx context.Context, p domain.LatLng, opts location.Options) (domain.Location, error)
}

func (m *mockResolver) Resolve(ctx context.Context, text string, opts location.Options) (location.Resolution, error) {
	return m.resolve(ctx, text, opts)
}

func (m *mockResolver) ReverseResolve(ctx context.Context, p domain.LatLng, opts location.Options) (domain.Location, error) {
	return m.reverse(ctx, p, opts)
}

var _ wizard.Resolver = (*mockResolver)(nil)

// cityResolver knows the cities above and nothing else.
func cityResolver() *mockResolver {
	return &mockResolver{
		resolve: func(_ context.Context, text string, _ location.Options) (location.Resolution, error) {
			if _, ok := cities[text]; !ok {
				return location.Resolution{}, fmt.Errorf("%w: %q", domain.ErrLocationNotFound, text)
			}
			return location.Resolution{Location: city(text), Candidates: []domain.Location{city(text)}}, nil
		},
		reverse: func(_ context.Context, p domain.LatLng, _ location.Options) (domain.Location, error) {
			return domain.Location{Address: p.String(), Coordinates: &p}, nil
		},
	}
}

type planCall struct {
	from, to  string
	waypoints []domain.LatLng
}

// mockPlanner records calls. Without waypoints it answers two alternatives;
// with waypoints one detoured route visiting them in reverse order.
type mockPlanner struct {
	mu    sync.Mutex
	calls []planCall
	plan  func(ctx context.Context, from, to domain.Location, waypoints []domain.LatLng) ([]domain.RouteOption, bool, error)
}

func (m *mockPlanner) PlanOrFallback(ctx context.Context, from, to domain.Location, waypoints []domain.LatLng) ([]domain.RouteOption, bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, planCall{from: from.Address, to: to.Address, waypoints: waypoints})
	m.mu.Unlock()
	if m.plan != nil {
		return m.plan(ctx, from, to, waypoints)
	}
	if len(waypoints) > 0 {
		order := make([]int, len(waypoints))
		for i := range order {
			order[i] = len(waypoints) - 1 - i
		}
		return []domain.RouteOption{{
			ID: "route-0", DistanceMeters: 92000, DurationSeconds: 4000,
			Geometry: []domain.LatLng{*from.Coordinates, *to.Coordinates}, WaypointOrder: order,
		}}, false, nil
	}
	return []domain.RouteOption{
		{ID: "route-0", DistanceMeters: 87000, DurationSeconds: 3600, Geometry: []domain.LatLng{*from.Coordinates, *to.Coordinates}},
		{ID: "route-1", DistanceMeters: 120000, DurationSeconds: 4200, Geometry: []domain.LatLng{*from.Coordinates, *to.Coordinates}},
	}, false, nil
}

func (m *mockPlanner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockPlanner) lastCall() planCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

var _ wizard.Planner = (*mockPlanner)(nil)

type mockSuggester struct {
	suggest func(r domain.RouteOption, maxCount int) []domain.Stopover
}

func (m *mockSuggester) Suggest(r domain.RouteOption, maxCount int) []domain.Stopover {
	return m.suggest(r, maxCount)
}

var _ wizard.Suggester = (*mockSuggester)(nil)

// coastalStops suggests three towns for any route.
func coastalStops() *mockSuggester {
	return &mockSuggester{suggest: func(domain.RouteOption, int) []domain.Stopover {
		return []domain.Stopover{
			{Name: "Mohammedia", Coordinates: domain.LatLng{Lat: 33.6866, Lng: -7.3830}, DistanceFromDepartureMeters: 20000},
			{Name: "Bouznika", Coordinates: domain.LatLng{Lat: 33.7894, Lng: -7.1597}, DistanceFromDepartureMeters: 45000},
			{Name: "Skhirat", Coordinates: domain.LatLng{Lat: 33.8527, Lng: -7.0316}, DistanceFromDepartureMeters: 58000},
		}
	}}
}

type mockPublisher struct {
	publish func(ctx context.Context, draft domain.TripDraft) (domain.PublishResult, error)
}

func (m *mockPublisher) Publish(ctx context.Context, draft domain.TripDraft) (domain.PublishResult, error) {
	return m.publish(ctx, draft)
}

var _ wizard.Publisher = (*mockPublisher)(nil)

// Monday 2 June 2025, 10:00 UTC.
var now = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// Tuesday of the following week; 87 km off-peak prices at 199.
var tripDay = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

type fixture struct {
	resolver  *mockResolver
	planner   *mockPlanner
	suggester *mockSuggester
	publisher *mockPublisher
	owner     uuid.UUID
}

func newFixture() *fixture {
	return &fixture{
		resolver:  cityResolver(),
		planner:   &mockPlanner{},
		suggester: coastalStops(),
		publisher: &mockPublisher{publish: func(context.Context, domain.TripDraft) (domain.PublishResult, error) {
			return domain.PublishResult{OutboundTripID: uuid.New()}, nil
		}},
		owner: uuid.New(),
	}
}

func (f *fixture) deps() wizard.Deps {
	return wizard.Deps{
		Resolver:  f.resolver,
		Planner:   f.planner,
		Suggester: f.suggester,
		Pricer:    pricing.New(time.UTC, "MAD"),
		Publisher: f.publisher,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (f *fixture) session() wizard.Session {
	return wizard.Session{
		OwnerID:       f.owner,
		Language:      "fr",
		Region:        "ma",
		Location:      time.UTC,
		Now:           func() time.Time { return now },
		LookupTimeout: 2 * time.Second,
	}
}

func (f *fixture) controller() *wizard.Controller {
	return wizard.New(f.deps(), f.session())
}

func text(s string) wizard.LocationInput {
	return wizard.LocationInput{Text: s}
}

func clock(h, m int) domain.Clock {
	return domain.Clock{Hour: h, Minute: m}
}

// fillToPrice walks a controller from Departure up to the price stage.
func fillToPrice(t *testing.T, c *wizard.Controller) wizard.Snapshot {
	t.Helper()
	ctx := context.Background()

	_, err := c.SetDeparture(ctx, text("Casablanca"))
	require.NoError(t, err)
	_, err = c.SetArrival(ctx, text("Rabat"))
	require.NoError(t, err)
	_, err = c.SelectRoute(ctx, "route-0")
	require.NoError(t, err)
	_, err = c.ConfirmStopovers(ctx)
	require.NoError(t, err)
	_, err = c.SetDate(ctx, tripDay)
	require.NoError(t, err)
	_, err = c.SetTime(ctx, clock(10, 30))
	require.NoError(t, err)
	snap, err := c.SetSeats(ctx, 3)
	require.NoError(t, err)
	return snap
}

// fillToReview completes every stage of a one-way offer.
func fillToReview(t *testing.T, c *wizard.Controller) wizard.Snapshot {
	t.Helper()
	fillToPrice(t, c)
	_, err := c.SetPrice(context.Background(), 199)
	require.NoError(t, err)
	snap, err := c.SetRoundTrip(context.Background(), wizard.RoundTripInput{IsRoundTrip: false})
	require.NoError(t, err)
	return snap
}
