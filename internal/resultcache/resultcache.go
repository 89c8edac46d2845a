// Package resultcache caches completed backtest results in Redis, keyed by
// a hash of the inputs that determine them. A circuit breaker wraps every
// Redis round trip so a degraded cache fails open — callers fall back to
// recomputing rather than blocking on a slow or unreachable cache.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/statarb-backtester/internal/backtest"
)

const keyPrefix = "statarb:backtest:"

// Cache is a Redis-backed store of backtest.Result values.
type Cache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
}

// New dials a Redis client and wraps it in a circuit breaker that trips
// after 5 consecutive failures and probes again after 30 seconds.
func New(addr string, ttl time.Duration) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	settings := gobreaker.Settings{
		Name:        "resultcache-redis",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Cache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		ttl:     ttl,
	}
}

// Key derives a stable cache key from the data that determines a backtest's
// outcome: the two price series, the interval, and the strategy config.
func Key(pricesY, pricesX []float64, interval string, cfg backtest.Config) string {
	h := sha256.New()
	h.Write([]byte(interval))
	writeFloatSlice(h, pricesY)
	writeFloatSlice(h, pricesX)
	if cfgJSON, err := json.Marshal(cfg); err == nil {
		h.Write(cfgJSON)
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func writeFloatSlice(h interface{ Write([]byte) (int, error) }, values []float64) {
	buf := make([]byte, 8)
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}
}

// Get returns a cached result for key, or (zero, false) on a miss or any
// cache-layer failure (the breaker being open counts as a miss).
func (c *Cache) Get(ctx context.Context, key string) (backtest.Result, bool) {
	if c == nil {
		return backtest.Result{}, false
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, key).Bytes()
	})
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("resultcache get failed, falling back to recompute")
		}
		return backtest.Result{}, false
	}

	var result backtest.Result
	if err := json.Unmarshal(raw.([]byte), &result); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("resultcache payload corrupt, discarding")
		return backtest.Result{}, false
	}
	return result, true
}

// Set stores result under key with the cache's configured TTL. Failures are
// logged and swallowed: caching is a performance optimization, never a
// correctness dependency.
func (c *Cache) Set(ctx context.Context, key string, result backtest.Result) {
	if c == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Debug().Err(err).Msg("resultcache marshal failed")
		return
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, payload, c.ttl).Err()
	})
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("resultcache set failed")
	}
}

// Close releases the underlying Redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
