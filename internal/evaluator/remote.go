package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

// Remote client defaults.
const (
	DefaultRemoteTimeout = 30 * time.Second
	DefaultRemoteRPS     = 20.0
	DefaultRemoteBurst   = 10

	maxErrorBody = 4 << 10
)

// ErrRemoteUnavailable wraps failures after retries are exhausted.
var ErrRemoteUnavailable = errors.New("remote scorer unavailable")

// StatusError is a non-2xx response from the scoring service.
type StatusError struct {
	Criterion  domain.Criterion
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote scorer %s: status %d: %s", e.Criterion, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying: 429 and 5xx.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// RemoteConfig configures the HTTP scoring client.
type RemoteConfig struct {
	// BaseURL is the scoring service root, e.g. http://nlp:8000.
	BaseURL string `json:"base_url" validate:"required,url"`

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration `json:"timeout" validate:"min=0"`

	// RequestsPerSecond and Burst configure the client-side token bucket.
	RequestsPerSecond float64 `json:"requests_per_second" validate:"gt=0"`
	Burst             int     `json:"burst" validate:"min=1"`

	Retry   RetryConfig   `json:"retry"`
	Breaker BreakerConfig `json:"breaker"`
}

// DefaultRemoteConfig returns defaults for baseURL.
func DefaultRemoteConfig(baseURL string) RemoteConfig {
	return RemoteConfig{
		BaseURL:           baseURL,
		Timeout:           DefaultRemoteTimeout,
		RequestsPerSecond: DefaultRemoteRPS,
		Burst:             DefaultRemoteBurst,
		Retry:             DefaultRetryConfig(),
		Breaker:           DefaultBreakerConfig(),
	}
}

// RemoteClient calls a scoring service that exposes
// POST {base}/v1/score/{criterion} with body {"text", "prompt"} and answers
// {"score": x}. Calls share one token bucket and are retried on 429, 5xx and
// transport errors. Repeated service faults open a shared circuit breaker.
type RemoteClient struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	retry   RetryConfig
	breaker *breaker
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewRemoteClient builds a client. A nil httpClient uses one with cfg.Timeout.
func NewRemoteClient(cfg RemoteConfig, httpClient *http.Client) (*RemoteClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote scorer: invalid base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultRemoteTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	rps, burst := cfg.RequestsPerSecond, cfg.Burst
	if rps <= 0 {
		rps = DefaultRemoteRPS
	}
	if burst <= 0 {
		burst = DefaultRemoteBurst
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	logger := slog.Default().With("component", "evaluator.remote")
	return &RemoteClient{
		base:    base,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		retry:   retry,
		breaker: newBreaker(cfg.Breaker, logger),
		logger:  logger,
		sleep:   sleepCtx,
	}, nil
}

// Scorer returns the producer for one criterion.
func (c *RemoteClient) Scorer(criterion domain.Criterion) Scorer {
	return &remoteScorer{client: c, criterion: criterion}
}

// Set returns producers for each criterion.
func (c *RemoteClient) Set(criteria []domain.Criterion) Set {
	s := make(Set, len(criteria))
	for _, crit := range criteria {
		s[crit] = c.Scorer(crit)
	}
	return s
}

type remoteScorer struct {
	client    *RemoteClient
	criterion domain.Criterion
}

func (s *remoteScorer) Score(ctx context.Context, text, prompt string) (float64, error) {
	return s.client.score(ctx, s.criterion, text, prompt)
}

type scoreRequest struct {
	Text   string `json:"text"`
	Prompt string `json:"prompt"`
}

type scoreResponse struct {
	Score *float64 `json:"score"`
}

func (c *RemoteClient) score(ctx context.Context, criterion domain.Criterion, text, prompt string) (float64, error) {
	probe, err := c.breaker.allow()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	v, err := c.scoreWithRetry(ctx, criterion, text, prompt)
	switch {
	case err == nil:
		c.breaker.record(probe, true)
	case serviceFault(err):
		c.breaker.record(probe, false)
	default:
		c.breaker.release(probe)
	}
	return v, err
}

// serviceFault reports whether err says the service is unhealthy, as opposed
// to a bad request or a cancelled caller.
func serviceFault(err error) bool {
	if !errors.Is(err, ErrRemoteUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var se *StatusError
	return !errors.As(err, &se) || se.Retryable()
}

func (c *RemoteClient) scoreWithRetry(ctx context.Context, criterion domain.Criterion, text, prompt string) (float64, error) {
	body, err := json.Marshal(scoreRequest{Text: text, Prompt: prompt})
	if err != nil {
		return 0, err
	}
	endpoint := c.base.JoinPath("v1", "score", string(criterion)).String()

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		v, err := c.do(ctx, criterion, endpoint, body)
		if err == nil {
			return v, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(err, attempt)
		if !retry || attempt == c.retry.MaxAttempts {
			break
		}
		c.logger.DebugContext(ctx, "retrying remote score",
			"criterion", criterion,
			"attempt", attempt,
			"delay", delay,
			"error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("%w: %w", ErrRemoteUnavailable, lastErr)
}

func (c *RemoteClient) do(ctx context.Context, criterion domain.Criterion, endpoint string, body []byte) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, &StatusError{
			Criterion:  criterion,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, &permanentError{fmt.Errorf("decode %s response: %w", criterion, err)}
	}
	if out.Score == nil {
		return 0, &permanentError{fmt.Errorf("%s response missing score", criterion)}
	}
	if v := *out.Score; math.IsNaN(v) || v < 0 || v > 1 {
		return 0, &permanentError{fmt.Errorf("%w: %s=%v", ErrInvalidScore, criterion, v)}
	}
	return *out.Score, nil
}

// permanentError marks failures a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// retryDelay decides whether err is retryable and how long to wait. A
// Retry-After from the server takes precedence over the computed backoff.
func (c *RemoteClient) retryDelay(err error, attempt int) (time.Duration, bool) {
	var perm *permanentError
	if errors.As(err, &perm) {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if !se.Retryable() {
			return 0, false
		}
		if se.RetryAfter > 0 {
			return se.RetryAfter, true
		}
	}
	return c.retry.Backoff(attempt), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
