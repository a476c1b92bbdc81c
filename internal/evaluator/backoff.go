package evaluator

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls retries of remote scoring calls.
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" validate:"min=1"`
	InitialInterval time.Duration `json:"initial_interval" validate:"min=0"`
	MaxInterval     time.Duration `json:"max_interval" validate:"min=0"`
	Multiplier      float64       `json:"multiplier" validate:"min=1"`
	UseJitter       bool          `json:"use_jitter"`
}

// DefaultRetryConfig returns three attempts starting at 200ms with full jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		UseJitter:       true,
	}
}

// Backoff returns the delay before retry number attempt (1-based) using
// exponential growth capped at MaxInterval, with full jitter when enabled.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	backoff := c.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * mult)
		if c.MaxInterval > 0 && backoff > c.MaxInterval {
			backoff = c.MaxInterval
			break
		}
	}
	if c.UseJitter {
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter
		return time.Duration(jitterMs) * time.Millisecond
	}
	return backoff
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. Unparsable or past values yield zero.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
