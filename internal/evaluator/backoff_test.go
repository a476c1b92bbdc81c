package evaluator

import (
	"net/http"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryConfigBackoff(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      3,
	}

	assert.Equal(t, time.Duration(0), cfg.Backoff(0))
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 900*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, time.Second, cfg.Backoff(4), "capped")
	assert.Equal(t, time.Second, cfg.Backoff(10))

	cfg.InitialInterval = 0
	cfg.Multiplier = 0.5
	assert.Equal(t, time.Millisecond, cfg.Backoff(3), "floor and non-shrinking multiplier")
}

// Property: full jitter never exceeds the un-jittered backoff.
func TestRetryConfigBackoff_Jitter_Property(t *testing.T) {
	cfg := DefaultRetryConfig()
	plain := cfg
	plain.UseJitter = false

	f := func(n uint8) bool {
		attempt := int(n%8) + 1
		d := cfg.Backoff(attempt)
		return d >= 0 && d <= plain.Backoff(attempt)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Errorf("jitter bound property failed: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(future)
	assert.Greater(t, d, 58*time.Minute)
	assert.LessOrEqual(t, d, time.Hour)
}
