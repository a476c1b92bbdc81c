// Package cache provides a Redis-backed cache of scored text evaluations.
// Scoring is deterministic for a given essay, prompt, raw scores and
// configuration, so results are keyed by a hash of those inputs. Redis
// failures degrade to cache misses and never fail a request.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

const (
	keyPrefix         = "essaygrade:score:"
	defaultPoolSize   = 10
	connectionTimeout = 5 * time.Second
)

// Client is the subset of the go-redis client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Config configures a ResultCache.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Stats reports cache counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// ResultCache caches ScoredEssay values. A nil *ResultCache is valid and
// never hits.
type ResultCache struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// New wraps an existing client.
func New(client Client, ttl time.Duration) *ResultCache {
	return &ResultCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "cache"),
	}
}

// Connect dials Redis and verifies the connection. On failure it returns
// the error so callers can run without a cache.
func Connect(ctx context.Context, cfg Config) (*ResultCache, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: defaultPoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.TTL), client, nil
}

// Key derives the cache key for an evaluation. Raw scores and weights are
// encoded in canonical criterion order so equal inputs share a key.
func Key(essay domain.EssayRecord, cfg domain.EvaluationConfig) string {
	h := sha256.New()
	writeField := func(s string) {
		fmt.Fprintf(h, "%d:%s|", len(s), s)
	}
	writeField(essay.Text)
	writeField(essay.Prompt)
	fmt.Fprintf(h, "r%d|s%d|", cfg.Rubric, cfg.Scale)

	crits := domain.AllCriteria()
	for _, c := range crits {
		if w, ok := cfg.Weights[c]; ok {
			fmt.Fprintf(h, "w:%s=%v|", c, w)
		}
	}
	raw := make([]string, 0, len(essay.Raw))
	for c, v := range essay.Raw {
		raw = append(raw, fmt.Sprintf("x:%s=%v|", c, v))
	}
	slices.Sort(raw)
	for _, r := range raw {
		writeField(r)
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.ScoredEssay, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.errors.Add(1)
			c.logger.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	var s domain.ScoredEssay
	if err := json.Unmarshal(data, &s); err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.WarnContext(ctx, "corrupt cache entry", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	c.hits.Add(1)
	return &s, true
}

// Set stores s under key. Errors are logged and counted.
func (c *ResultCache) Set(ctx context.Context, key string, s *domain.ScoredEssay) {
	if c == nil || c.client == nil || s == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		c.errors.Add(1)
		c.logger.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.errors.Add(1)
		c.logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

// Stats returns the current counters.
func (c *ResultCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
