package maps

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/location"
)

const geocodePath = "/maps/api/geocode/json"

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress string `json:"formatted_address"`
	PlaceID          string `json:"place_id"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

func (r geocodeResult) toLocation() domain.Location {
	p := domain.LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
	return domain.Location{Address: r.FormattedAddress, PlaceID: r.PlaceID, Coordinates: &p}
}

// Geocode implements location.Geocoder.
func (c *Client) Geocode(ctx context.Context, text string, opts location.Options) ([]domain.Location, error) {
	q := url.Values{}
	q.Set("address", text)
	setOptions(q, opts)

	var resp geocodeResponse
	err := c.getJSON(ctx, geocodePath, q, &resp, func() (string, string) { return resp.Status, resp.ErrorMessage })
	if err != nil {
		return nil, fmt.Errorf("maps.Client.Geocode: %w: %w", domain.ErrGeocodeUnavailable, err)
	}

	out := make([]domain.Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.toLocation())
	}
	return out, nil
}

// ReverseGeocode implements location.Geocoder.
func (c *Client) ReverseGeocode(ctx context.Context, p domain.LatLng, opts location.Options) (domain.Location, error) {
	q := url.Values{}
	q.Set("latlng", formatLatLng(p))
	setOptions(q, opts)

	var resp geocodeResponse
	err := c.getJSON(ctx, geocodePath, q, &resp, func() (string, string) { return resp.Status, resp.ErrorMessage })
	if err != nil {
		return domain.Location{}, fmt.Errorf("maps.Client.ReverseGeocode: %w: %w", domain.ErrGeocodeUnavailable, err)
	}
	if len(resp.Results) == 0 {
		return domain.Location{}, fmt.Errorf("maps.Client.ReverseGeocode: %w", domain.ErrLocationNotFound)
	}
	return resp.Results[0].toLocation(), nil
}

func setOptions(q url.Values, opts location.Options) {
	if opts.Region != "" {
		q.Set("region", opts.Region)
	}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
}

func formatLatLng(p domain.LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
