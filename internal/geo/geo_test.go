package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/geo"
)

func TestHaversineMeters_ParisLondon(t *testing.T) {
	paris := domain.LatLng{Lat: 48.8566, Lng: 2.3522}
	london := domain.LatLng{Lat: 51.5074, Lng: -0.1278}

	assert.InDelta(t, 343_500, geo.HaversineMeters(paris, london), 1_500)
}

func TestHaversineMeters_SamePoint(t *testing.T) {
	p := domain.LatLng{Lat: 33.5731, Lng: -7.5898}
	assert.Zero(t, geo.HaversineMeters(p, p))
}

func TestDecodePolyline_ReferenceExample(t *testing.T) {
	path, err := geo.DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")

	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.InDelta(t, 38.5, path[0].Lat, 1e-5)
	assert.InDelta(t, -120.2, path[0].Lng, 1e-5)
	assert.InDelta(t, 43.252, path[2].Lat, 1e-5)
	assert.InDelta(t, -126.453, path[2].Lng, 1e-5)
}

func TestEncodePolyline_RoundTrip(t *testing.T) {
	path := []domain.LatLng{{Lat: 33.57311, Lng: -7.58984}, {Lat: 34.02088, Lng: -6.84165}}

	got, err := geo.DecodePolyline(geo.EncodePolyline(path))

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, path[1].Lat, got[1].Lat, 1e-5)
	assert.InDelta(t, path[1].Lng, got[1].Lng, 1e-5)
}

func TestProject_PointBesideEquatorSegment(t *testing.T) {
	path := []domain.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}

	proj, ok := geo.Project(path, domain.LatLng{Lat: 0.05, Lng: 0.5})

	require.True(t, ok)
	assert.InDelta(t, 5_560, proj.OffsetMeters, 10)
	assert.InDelta(t, 55_597, proj.AlongMeters, 10)
}

func TestProject_PointBeforeStartClampsToZero(t *testing.T) {
	path := []domain.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}

	proj, ok := geo.Project(path, domain.LatLng{Lat: 0, Lng: -0.2})

	require.True(t, ok)
	assert.Zero(t, proj.AlongMeters)
	assert.InDelta(t, 22_239, proj.OffsetMeters, 10)
}

func TestProject_PicksNearestSegment(t *testing.T) {
	// An L-shaped path: east along the equator, then north.
	path := []domain.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}}

	proj, ok := geo.Project(path, domain.LatLng{Lat: 0.5, Lng: 1.01})

	require.True(t, ok)
	assert.InDelta(t, 1_112, proj.OffsetMeters, 5)
	assert.InDelta(t, geo.Length(path[:2])+55_597, proj.AlongMeters, 20)
}

func TestProject_EmptyPath(t *testing.T) {
	_, ok := geo.Project(nil, domain.LatLng{})
	assert.False(t, ok)
}
