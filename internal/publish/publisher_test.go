package publish_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/events"
	"github.com/pkordes/ridepost/internal/publish"
)

// mockStore is a function-field double for publish.TripStore.
type mockStore struct {
	create func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
}

func (m *mockStore) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.create(ctx, trip)
}

var _ publish.TripStore = (*mockStore)(nil)

type mockNotifier struct {
	published func(ctx context.Context, e events.TripPublished) error
}

func (m *mockNotifier) TripPublished(ctx context.Context, e events.TripPublished) error {
	return m.published(ctx, e)
}

var _ publish.Notifier = (*mockNotifier)(nil)

// recordingStore assigns ids and remembers every trip it was asked to store.
// failOn makes the n-th call (1-based) fail.
type recordingStore struct {
	trips  []domain.Trip
	calls  int
	failOn int
}

func (s *recordingStore) Create(_ context.Context, trip domain.Trip) (domain.Trip, error) {
	s.calls++
	if s.calls == s.failOn {
		return domain.Trip{}, errors.New("connection reset")
	}
	trip.ID = uuid.New()
	s.trips = append(s.trips, trip)
	return trip, nil
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validDraft() domain.TripDraft {
	at := func(lat, lng float64) *domain.LatLng { return &domain.LatLng{Lat: lat, Lng: lng} }
	depart := domain.Clock{Hour: 8, Minute: 0}
	back := domain.Clock{Hour: 18, Minute: 30}
	return domain.TripDraft{
		OwnerID:       uuid.New(),
		Departure:     domain.Location{Address: "Casablanca", Coordinates: at(33.5731, -7.5898)},
		Arrival:       domain.Location{Address: "Rabat", Coordinates: at(34.0209, -6.8416)},
		SelectedRoute: &domain.RouteOption{ID: "route-0", DistanceMeters: 87000, DurationSeconds: 3600},
		Stopovers: []domain.Stopover{
			{Name: "Mohammedia", Coordinates: domain.LatLng{Lat: 33.6866, Lng: -7.3830}, Selected: true},
			{Name: "Bouznika", Coordinates: domain.LatLng{Lat: 33.7894, Lng: -7.1597}},
			{Name: "Skhirat", Coordinates: domain.LatLng{Lat: 33.8527, Lng: -7.0316}, Selected: true},
		},
		Date:       time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
		Time:       &depart,
		Seats:      3,
		Price:      199,
		ReturnDate: time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
		ReturnTime: &back,
	}
}

func roundTripDraft() domain.TripDraft {
	d := validDraft()
	d.IsRoundTrip = true
	return d
}

func TestPublish_OneWay(t *testing.T) {
	store := &recordingStore{}
	p := publish.NewPublisher(store, nil, quietLog())

	res, err := p.Publish(context.Background(), validDraft())

	require.NoError(t, err)
	require.Len(t, store.trips, 1)
	assert.Equal(t, store.trips[0].ID, res.OutboundTripID)
	assert.Nil(t, res.ReturnTripID)

	out := store.trips[0]
	assert.Equal(t, "Casablanca", out.FromAddress)
	assert.Equal(t, "Rabat", out.ToAddress)
	assert.Equal(t, 3, out.SeatsTotal)
	assert.Equal(t, 3, out.SeatsAvailable)
	assert.Equal(t, domain.TripScheduled, out.Status)
	assert.Equal(t, 87000, out.DistanceMeters)
	assert.Nil(t, out.LinkedTripID)

	require.Len(t, out.Stopovers, 2, "only selected stopovers are stored")
	assert.Equal(t, "Mohammedia", out.Stopovers[0].Name)
	assert.Equal(t, "Skhirat", out.Stopovers[1].Name)
	assert.Equal(t, 1, out.Stopovers[1].Position)
}

func TestPublish_RoundTrip_SwapsAddressesAndKeepsSeats(t *testing.T) {
	store := &recordingStore{}
	p := publish.NewPublisher(store, nil, quietLog())

	res, err := p.Publish(context.Background(), roundTripDraft())

	require.NoError(t, err)
	require.Len(t, store.trips, 2)
	require.NotNil(t, res.ReturnTripID)
	assert.NotEqual(t, res.OutboundTripID, *res.ReturnTripID)

	out, ret := store.trips[0], store.trips[1]
	assert.Equal(t, out.FromAddress, ret.ToAddress)
	assert.Equal(t, out.ToAddress, ret.FromAddress)
	assert.Equal(t, out.SeatsTotal, ret.SeatsTotal)
	assert.Equal(t, out.Price, ret.Price)
	assert.Equal(t, domain.Clock{Hour: 18, Minute: 30}, ret.DepartureTime)
	require.NotNil(t, ret.LinkedTripID)
	assert.Equal(t, res.OutboundTripID, *ret.LinkedTripID)

	require.Len(t, ret.Stopovers, 2)
	assert.Equal(t, "Skhirat", ret.Stopovers[0].Name, "return visits stops in reverse")
	assert.Equal(t, "Mohammedia", ret.Stopovers[1].Name)
}

func TestPublish_OutboundFailure_CreatesNothing(t *testing.T) {
	store := &recordingStore{failOn: 1}
	p := publish.NewPublisher(store, nil, quietLog())

	res, err := p.Publish(context.Background(), roundTripDraft())

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotErrorIs(t, err, domain.ErrReturnTripFailed)
	assert.Equal(t, domain.PublishResult{}, res)
	assert.Equal(t, 1, store.calls, "return insert must not be attempted")
	assert.Empty(t, store.trips)
}

func TestPublish_ReturnFailure_KeepsOutbound(t *testing.T) {
	store := &recordingStore{failOn: 2}
	p := publish.NewPublisher(store, nil, quietLog())

	res, err := p.Publish(context.Background(), roundTripDraft())

	assert.ErrorIs(t, err, domain.ErrReturnTripFailed)
	require.Len(t, store.trips, 1)
	assert.Equal(t, store.trips[0].ID, res.OutboundTripID)
	assert.Nil(t, res.ReturnTripID)
}

func TestPublish_RetryAfterReturnFailure_OnlyInsertsReturn(t *testing.T) {
	store := &recordingStore{failOn: 2}
	p := publish.NewPublisher(store, nil, quietLog())
	draft := roundTripDraft()

	first, err := p.Publish(context.Background(), draft)
	require.ErrorIs(t, err, domain.ErrReturnTripFailed)

	draft.OutboundTripID = &first.OutboundTripID
	second, err := p.Publish(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, first.OutboundTripID, second.OutboundTripID)
	require.NotNil(t, second.ReturnTripID)
	require.Len(t, store.trips, 2)
	assert.Equal(t, "Rabat", store.trips[1].FromAddress)
}

func TestPublish_RetryWithoutReturnIsRejected(t *testing.T) {
	store := &recordingStore{}
	p := publish.NewPublisher(store, nil, quietLog())
	draft := validDraft()
	outbound := uuid.New()
	draft.OutboundTripID = &outbound
	draft.ReturnTime = nil

	_, err := p.Publish(context.Background(), draft)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, store.calls)
}

func TestPublishReturn_RequiresRoundTrip(t *testing.T) {
	p := publish.NewPublisher(&recordingStore{}, nil, quietLog())

	_, err := p.PublishReturn(context.Background(), validDraft(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPublishReturn_LinksToGivenOutbound(t *testing.T) {
	var stored domain.Trip
	store := &mockStore{create: func(_ context.Context, trip domain.Trip) (domain.Trip, error) {
		stored = trip
		trip.ID = uuid.New()
		return trip, nil
	}}
	p := publish.NewPublisher(store, nil, quietLog())
	outbound := uuid.New()

	res, err := p.PublishReturn(context.Background(), roundTripDraft(), outbound)

	require.NoError(t, err)
	assert.Equal(t, outbound, res.OutboundTripID)
	require.NotNil(t, stored.LinkedTripID)
	assert.Equal(t, outbound, *stored.LinkedTripID)
}

func TestPublish_EmitsOneEventPerTrip(t *testing.T) {
	var keys []string
	n := &mockNotifier{published: func(_ context.Context, e events.TripPublished) error {
		keys = append(keys, e.RoutingKey())
		return nil
	}}
	p := publish.NewPublisher(&recordingStore{}, n, quietLog())

	_, err := p.Publish(context.Background(), roundTripDraft())

	require.NoError(t, err)
	assert.Equal(t, []string{events.KeyOutboundPublished, events.KeyReturnPublished}, keys)
}

func TestPublish_EventFailureDoesNotFailPublish(t *testing.T) {
	n := &mockNotifier{published: func(context.Context, events.TripPublished) error {
		return errors.New("broker down")
	}}
	p := publish.NewPublisher(&recordingStore{}, n, quietLog())

	res, err := p.Publish(context.Background(), roundTripDraft())

	require.NoError(t, err)
	assert.NotNil(t, res.ReturnTripID)
}

func TestPublish_RejectsIncompleteDraft(t *testing.T) {
	cases := map[string]func(d *domain.TripDraft){
		"unresolved departure": func(d *domain.TripDraft) { d.Departure.Coordinates = nil },
		"no route":             func(d *domain.TripDraft) { d.SelectedRoute = nil },
		"no time":              func(d *domain.TripDraft) { d.Time = nil },
		"zero seats":           func(d *domain.TripDraft) { d.Seats = 0 },
		"nine seats":           func(d *domain.TripDraft) { d.Seats = 9 },
		"zero price":           func(d *domain.TripDraft) { d.Price = 0 },
		"round trip no return": func(d *domain.TripDraft) { d.IsRoundTrip = true; d.ReturnTime = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			store := &recordingStore{}
			p := publish.NewPublisher(store, nil, quietLog())
			d := validDraft()
			mutate(&d)

			_, err := p.Publish(context.Background(), d)

			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Zero(t, store.calls)
		})
	}
}
