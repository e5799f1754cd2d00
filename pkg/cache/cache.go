// Package cache provides a redis-backed cache for object describe
// metadata. Query results are never cached; only the field catalogs
// that schemas are built from, which change rarely and are expensive
// to re-fetch per export run.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/forcekit/sf-bulk-client/pkg/sobject"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for describe cache operations.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sf_describe_cache_hits_total",
		Help: "Total describe cache hits",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sf_describe_cache_misses_total",
		Help: "Total describe cache misses",
	})

	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sf_describe_cache_errors_total",
		Help: "Total describe cache operation errors",
	}, []string{"operation"})
)

// ErrCacheMiss indicates the requested object is not cached.
var ErrCacheMiss = errors.New("cache miss")

// DefaultTTL is how long describe metadata stays cached.
const DefaultTTL = 1 * time.Hour

// Config holds the cache configuration.
type Config struct {
	// Redis client backing the cache (required).
	Redis *redis.Client

	// TTL for cached entries (default: DefaultTTL).
	TTL time.Duration
}

// Manager caches object describe metadata in redis. It satisfies
// sobject.MetadataCache.
type Manager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewManager creates a describe metadata cache.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{
		redis:  cfg.Redis,
		ttl:    ttl,
		logger: log.With().Str("component", "cache").Logger(),
	}, nil
}

func key(object string) string {
	return "sf:describe:" + object
}

// Get retrieves cached metadata for an object. Returns ErrCacheMiss
// when the object is not cached or the entry has expired.
func (m *Manager) Get(ctx context.Context, object string) (*sobject.SObject, error) {
	data, err := m.redis.Get(ctx, key(object)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMissesTotal.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var metadata sobject.SObject
	if err := json.Unmarshal(data, &metadata); err != nil {
		cacheErrorsTotal.WithLabelValues("get").Inc()
		// A corrupt entry is as good as absent; drop it.
		m.redis.Del(ctx, key(object))
		return nil, fmt.Errorf("unmarshal cached metadata: %w", err)
	}

	cacheHitsTotal.Inc()
	m.logger.Debug().Str("object", object).Msg("Describe cache hit")
	return &metadata, nil
}

// Set stores metadata for an object with the configured TTL.
func (m *Manager) Set(ctx context.Context, object string, metadata *sobject.SObject) error {
	if metadata == nil {
		return fmt.Errorf("metadata cannot be nil")
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		cacheErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := m.redis.Set(ctx, key(object), data, m.ttl).Err(); err != nil {
		cacheErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	m.logger.Debug().
		Str("object", object).
		Dur("ttl", m.ttl).
		Msg("Describe metadata cached")
	return nil
}

// Delete removes an object's cached metadata.
func (m *Manager) Delete(ctx context.Context, object string) error {
	if err := m.redis.Del(ctx, key(object)).Err(); err != nil {
		cacheErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
