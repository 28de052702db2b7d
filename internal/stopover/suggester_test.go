package stopover_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/stopover"
)

var (
	casablanca = domain.LatLng{Lat: 33.5731, Lng: -7.5898}
	rabat      = domain.LatLng{Lat: 34.0209, Lng: -6.8416}
)

func coastalRoute() domain.RouteOption {
	return domain.RouteOption{ID: "route-0", Geometry: []domain.LatLng{casablanca, rabat}}
}

func names(stops []domain.Stopover) []string {
	out := make([]string, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.Name)
	}
	return out
}

func defaultSuggester(t *testing.T) *stopover.Suggester {
	t.Helper()
	places, err := stopover.LoadGazetteerFile("")
	require.NoError(t, err)
	return stopover.NewSuggester(places, 0)
}

func TestSuggest_CorridorOrderedFromDeparture(t *testing.T) {
	got := defaultSuggester(t).Suggest(coastalRoute(), 8)

	// Sale projects onto the arrival itself, so it is not strictly between.
	assert.Equal(t, []string{"Mohammedia", "Bouznika", "Skhirat", "Temara"}, names(got))
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].DistanceFromDepartureMeters, got[i-1].DistanceFromDepartureMeters)
	}
	for _, s := range got {
		assert.False(t, s.Selected)
	}
}

func TestSuggest_TruncatesToMaxCount(t *testing.T) {
	got := defaultSuggester(t).Suggest(coastalRoute(), 2)

	assert.Equal(t, []string{"Mohammedia", "Bouznika"}, names(got))
}

func TestSuggest_NarrowCorridor(t *testing.T) {
	places, err := stopover.LoadGazetteerFile("")
	require.NoError(t, err)

	got := stopover.NewSuggester(places, 2_000).Suggest(coastalRoute(), 8)

	assert.Equal(t, []string{"Mohammedia"}, names(got))
}

func TestSuggest_ExcludesPointsOutsideEndpoints(t *testing.T) {
	places := []stopover.Place{
		{Name: "Before", Lat: 33.50, Lng: -7.70}, // behind the departure
		{Name: "Between", Lat: 33.80, Lng: -7.21},
		{Name: "Beyond", Lat: 34.10, Lng: -6.72}, // past the arrival
	}

	got := stopover.NewSuggester(places, 20_000).Suggest(coastalRoute(), 8)

	assert.Equal(t, []string{"Between"}, names(got))
}

func TestSuggest_IsDeterministic(t *testing.T) {
	s := defaultSuggester(t)

	first := s.Suggest(coastalRoute(), 8)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Suggest(coastalRoute(), 8))
	}
}

func TestSuggest_DegenerateInput(t *testing.T) {
	s := defaultSuggester(t)

	assert.Empty(t, s.Suggest(coastalRoute(), 0))
	assert.Empty(t, s.Suggest(domain.RouteOption{Geometry: []domain.LatLng{casablanca}}, 5))
}

func TestLoadGazetteer_RejectsBadRows(t *testing.T) {
	_, err := stopover.LoadGazetteer(strings.NewReader("name,lat,lng\n,33.1,-7.2\n"))
	assert.Error(t, err)

	_, err = stopover.LoadGazetteer(strings.NewReader("name,lat,lng\nNowhere,95,-7.2\n"))
	assert.Error(t, err)
}

func TestLoadGazetteer_Parses(t *testing.T) {
	places, err := stopover.LoadGazetteer(strings.NewReader("name,lat,lng\nIfrane,33.5228,-5.1106\n"))

	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, stopover.Place{Name: "Ifrane", Lat: 33.5228, Lng: -5.1106}, places[0])
}
