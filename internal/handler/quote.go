package handler

import (
	"errors"
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/pricing"
)

// QuoteRequest is the body of POST /quotes.
type QuoteRequest struct {
	DistanceMeters int                `json:"distance_meters"`
	Date           openapi_types.Date `json:"date"`
	Time           *domain.Clock      `json:"time"`
	// Price, when given, is compared against the recommendation.
	Price *int `json:"price,omitempty"`
}

// QuoteResponse is the body returned by POST /quotes.
type QuoteResponse struct {
	Quote      domain.PriceQuote       `json:"quote"`
	Comparison *domain.PriceComparison `json:"comparison,omitempty"`
}

// CreateQuote handles POST /quotes.
func (s *Server) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var body QuoteRequest
	if err := decodeBody(r, &body); err != nil {
		requestError(w, err)
		return
	}
	if body.Date.Time.IsZero() || body.Time == nil {
		requestError(w, errors.New("date and time are required"))
		return
	}

	quote, err := s.quoter.Quote(body.DistanceMeters, body.Date.Time, *body.Time)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	resp := QuoteResponse{Quote: quote}
	if body.Price != nil {
		cmp := pricing.Compare(*body.Price, quote)
		resp.Comparison = &cmp
	}
	writeJSON(w, http.StatusOK, resp)
}
