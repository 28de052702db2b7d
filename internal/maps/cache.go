package maps

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/ridepost/internal/domain"
	"github.com/pkordes/ridepost/internal/location"
)

const geocodeKeyPrefix = "ridepost:geocode:v1:"

// GeocodeCache is a location.Geocoder that keeps forward geocoding answers
// in Redis. Cache failures are logged and fall through to the wrapped
// geocoder; they never fail a lookup.
type GeocodeCache struct {
	next  location.Geocoder
	cache *cache.Cache[string]
	log   *slog.Logger
}

// NewGeocodeCache wraps next with a Redis-backed cache whose entries expire
// after ttl. A nil log uses slog.Default().
func NewGeocodeCache(client *redis.Client, ttl time.Duration, next location.Geocoder, log *slog.Logger) *GeocodeCache {
	if log == nil {
		log = slog.Default()
	}
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))
	return &GeocodeCache{
		next:  next,
		cache: cache.New[string](redisStore),
		log:   log,
	}
}

// Geocode implements location.Geocoder.
func (g *GeocodeCache) Geocode(ctx context.Context, text string, opts location.Options) ([]domain.Location, error) {
	key := geocodeKey(text, opts)

	if raw, err := g.cache.Get(ctx, key); err == nil && raw != "" {
		var hit []domain.Location
		if err := json.Unmarshal([]byte(raw), &hit); err == nil {
			return hit, nil
		}
		g.log.WarnContext(ctx, "discarding unreadable geocode cache entry", "key", key)
	}

	found, err := g.next.Geocode(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	// Empty answers are not cached so a newly added place shows up at once.
	if len(found) > 0 {
		raw, err := json.Marshal(found)
		if err == nil {
			err = g.cache.Set(ctx, key, string(raw))
		}
		if err != nil {
			g.log.WarnContext(ctx, "geocode cache write failed", "key", key, "error", err)
		}
	}
	return found, nil
}

// ReverseGeocode implements location.Geocoder. Map clicks rarely repeat,
// so reverse lookups are not cached.
func (g *GeocodeCache) ReverseGeocode(ctx context.Context, p domain.LatLng, opts location.Options) (domain.Location, error) {
	return g.next.ReverseGeocode(ctx, p, opts)
}

func geocodeKey(text string, opts location.Options) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return geocodeKeyPrefix + opts.Region + ":" + opts.Language + ":" + normalized
}
