// Package maps talks to a Google Maps compatible web service for geocoding
// and directions. It implements location.Geocoder and route.Directions.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Provider status values that are worth retrying.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusNotFound       = "NOT_FOUND"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusUnknownError   = "UNKNOWN_ERROR"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string

	// RatePerSecond caps outbound calls across all wizards. Zero disables
	// the limiter.
	RatePerSecond float64

	// MaxRetries bounds retries of transient failures. The caller's
	// context deadline bounds them too.
	MaxRetries uint64

	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	log        *slog.Logger
}

// NewClient constructs a Client. A nil log uses slog.Default().
func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		http:       hc,
		maxRetries: cfg.MaxRetries,
		log:        log,
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return c
}

// statusError is a non-OK provider status.
type statusError struct {
	Status  string
	Message string
}

func (e *statusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider status %s: %s", e.Status, e.Message)
	}
	return "provider status " + e.Status
}

// getJSON issues GET {base}{path}?{query}&key=… and decodes the body into
// out, retrying transient failures with exponential backoff.
// decodeStatus extracts the provider status from the decoded body.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any, decodeStatus func() (string, string)) error {
	query.Set("key", c.apiKey)
	endpoint := c.baseURL + path + "?" + query.Encode()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	attempt := 0
	op := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("http status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("http status %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}

		status, message := decodeStatus()
		switch status {
		case statusOK, statusZeroResults, statusNotFound:
			return nil
		case statusOverQueryLimit, statusUnknownError:
			return &statusError{Status: status, Message: message}
		default:
			return backoff.Permanent(&statusError{Status: status, Message: message})
		}
	}

	notify := func(err error, wait time.Duration) {
		c.log.DebugContext(ctx, "retrying maps request", "path", path, "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx), notify)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}
