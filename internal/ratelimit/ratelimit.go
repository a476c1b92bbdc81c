// Package ratelimit throttles HTTP clients with per-key token buckets.
//
// Each client key (by default the request's remote IP) gets its own
// rate.Limiter. Limiters unused for longer than the TTL are removed by a
// background sweep so long-running servers do not accumulate one bucket per
// address ever seen.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// CleanupInterval is how often stale limiters are swept.
	CleanupInterval = 10 * time.Minute

	// MinLimiterTTL is the shortest idle time before a limiter is removed.
	MinLimiterTTL = time.Hour
)

// Config configures a Limiter. A zero RequestsPerSecond disables limiting.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Error reports a rejected request.
type Error struct {
	Key        string
	Limit      float64
	RetryAfter int
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %.2f req/s, retry after %ds", e.Key, e.Limit, e.RetryAfter)
}

// timedLimiter pairs a limiter with its last use for TTL cleanup.
type timedLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// Limiter holds one token bucket per client key.
type Limiter struct {
	cfg Config
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	limiters map[string]*timedLimiter

	stopOnce sync.Once
	stop     chan struct{}
	done     sync.WaitGroup

	logger *slog.Logger
}

// New creates a limiter. Call Start to run background cleanup.
func New(cfg Config) (*Limiter, error) {
	if cfg.RequestsPerSecond < 0 || math.IsNaN(cfg.RequestsPerSecond) {
		return nil, fmt.Errorf("ratelimit: requests per second cannot be negative (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.RequestsPerSecond > 0 && cfg.Burst < 1 {
		return nil, fmt.Errorf("ratelimit: burst must be at least 1 (got %d)", cfg.Burst)
	}

	ttl := MinLimiterTTL
	if cfg.RequestsPerSecond > 0 {
		if refill := time.Duration(float64(cfg.Burst) / cfg.RequestsPerSecond * float64(time.Second)); refill*10 > ttl {
			ttl = refill * 10
		}
	}
	return &Limiter{
		cfg:      cfg,
		ttl:      ttl,
		now:      time.Now,
		limiters: make(map[string]*timedLimiter),
		stop:     make(chan struct{}),
		logger:   slog.Default().With("component", "ratelimit"),
	}, nil
}

// Enabled reports whether requests are limited at all.
func (l *Limiter) Enabled() bool { return l.cfg.RequestsPerSecond > 0 }

// Allow consumes a token for key or returns an *Error with the delay until
// one is available. A rejected request does not consume a token.
func (l *Limiter) Allow(key string) error {
	if !l.Enabled() {
		return nil
	}
	now := l.now()
	lim := l.getOrCreate(key, now)
	if lim.AllowN(now, 1) {
		return nil
	}

	r := lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	retryAfter := int(math.Ceil(delay.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &Error{Key: key, Limit: l.cfg.RequestsPerSecond, RetryAfter: retryAfter}
}

// getOrCreate uses double-checked locking so the common path only takes
// the read lock.
func (l *Limiter) getOrCreate(key string, now time.Time) *rate.Limiter {
	ts := now.UnixNano()

	l.mu.RLock()
	if tl, ok := l.limiters[key]; ok {
		tl.lastUsed.Store(ts)
		lim := tl.limiter
		l.mu.RUnlock()
		return lim
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if tl, ok := l.limiters[key]; ok {
		tl.lastUsed.Store(ts)
		return tl.limiter
	}
	tl := &timedLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
	tl.lastUsed.Store(ts)
	l.limiters[key] = tl
	return tl.limiter
}

// CleanupStale removes limiters idle for longer than the TTL and returns
// how many were removed.
func (l *Limiter) CleanupStale() int {
	cutoff := l.now().Add(-l.ttl).UnixNano()

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, tl := range l.limiters {
		if tl.lastUsed.Load() < cutoff {
			delete(l.limiters, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

// Start runs the cleanup sweep until Stop is called.
func (l *Limiter) Start() {
	l.done.Add(1)
	go func() {
		defer l.done.Done()
		ticker := time.NewTicker(CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := l.CleanupStale(); n > 0 {
					l.logger.Debug("removed stale limiters", "count", n)
				}
			case <-l.stop:
				return
			}
		}
	}()
}

// Stop ends the cleanup sweep and waits for it to exit. It is safe to call
// more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	l.done.Wait()
}

// KeyFunc derives the client key of a request.
type KeyFunc func(*http.Request) string

// RemoteIP keys clients by the host part of RemoteAddr. Run it after a
// real-IP middleware when behind a proxy.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. A nil key func uses RemoteIP.
func (l *Limiter) Middleware(key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = RemoteIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := l.Allow(key(r))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			rlErr, ok := err.(*Error)
			if !ok {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			l.logger.WarnContext(r.Context(), "request rate limited",
				"client", rlErr.Key, "path", r.URL.Path, "retry_after", rlErr.RetryAfter)

			w.Header().Set("Retry-After", strconv.Itoa(rlErr.RetryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":       "rate limit exceeded",
				"retry_after": rlErr.RetryAfter,
			})
		})
	}
}
