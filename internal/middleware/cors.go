// Package middleware holds the HTTP middleware shared by every ridepost route.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// preflightMaxAge is how long, in seconds, browsers may cache a preflight.
const preflightMaxAge = 300

// NewCORSHandler allows browser clients served from allowedOrigins to drive
// the wizard. Origins are full scheme+host values without a trailing slash.
// Content-Disposition is exposed so a browser can name a CSV export download.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
		MaxAge:         preflightMaxAge,
	})
	return c.Handler
}
