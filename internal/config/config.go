// Package config loads service configuration from the environment.
//
// DefaultConfig returns values suitable for local development; FromEnv
// overlays environment variables on top of it and Validate checks the result
// before any component is built from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-essaygrade/internal/cache"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/evaluator"
	"github.com/ahrav/go-essaygrade/internal/storage"
)

// Blob drivers.
const (
	BlobNone = "none"
	BlobFS   = "fs"
	BlobS3   = "s3"
)

// Defaults.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultBodyLimit       = 10 << 20
	DefaultShutdownTimeout = 15 * time.Second
	DefaultClientRPS       = 5.0
	DefaultClientBurst     = 10
	DefaultCacheTTL        = 24 * time.Hour
	DefaultStorePath       = "./data/essaygrade.db"
	DefaultBlobPath        = "./data/blobs"
	DefaultTemporalHost    = "localhost:7233"
	DefaultNamespace       = "default"
	DefaultTaskQueue       = "essay-scoring"
	DefaultMaxConcurrency  = 5
)

// ErrInvalidConfig wraps configuration validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the complete service configuration.
type Config struct {
	HTTP          HTTPConfig          `json:"http"`
	Scoring       ScoringConfig       `json:"scoring"`
	Evaluator     EvaluatorConfig     `json:"evaluator"`
	Cache         CacheConfig         `json:"cache"`
	Store         StoreConfig         `json:"store"`
	Blob          BlobConfig          `json:"blob"`
	Temporal      TemporalConfig      `json:"temporal"`
	Observability ObservabilityConfig `json:"observability"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `json:"addr" validate:"required"`
	CORSOrigins     []string      `json:"cors_origins"`
	BodyLimit       int64         `json:"body_limit" validate:"gt=0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`

	// ClientRPS and ClientBurst configure the per-client token bucket.
	// A zero ClientRPS disables rate limiting.
	ClientRPS   float64 `json:"client_rps" validate:"min=0"`
	ClientBurst int     `json:"client_burst" validate:"min=1"`
}

// ScoringConfig holds request defaults and engine settings.
type ScoringConfig struct {
	DefaultRubric  domain.RubricChoice `json:"default_rubric" validate:"min=1,max=3"`
	DefaultScale   domain.Scale        `json:"default_scale" validate:"min=1,max=6"`
	MaxConcurrency int                 `json:"max_concurrency" validate:"min=1"`
}

// EvaluatorConfig configures the remote raw-score producers. An empty
// BaseURL means essays must carry precomputed raw scores.
type EvaluatorConfig struct {
	BaseURL           string                  `json:"base_url" validate:"omitempty,url"`
	Timeout           time.Duration           `json:"timeout" validate:"min=0"`
	RequestsPerSecond float64                 `json:"requests_per_second" validate:"gt=0"`
	Burst             int                     `json:"burst" validate:"min=1"`
	Retry             evaluator.RetryConfig   `json:"retry"`
	Breaker           evaluator.BreakerConfig `json:"breaker"`
}

// Enabled reports whether a remote producer is configured.
func (c EvaluatorConfig) Enabled() bool { return c.BaseURL != "" }

// Remote converts to the evaluator client configuration.
func (c EvaluatorConfig) Remote() evaluator.RemoteConfig {
	return evaluator.RemoteConfig{
		BaseURL:           c.BaseURL,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		Retry:             c.Retry,
		Breaker:           c.Breaker,
	}
}

// CacheConfig configures the Redis result cache.
type CacheConfig struct {
	Enabled       bool          `json:"enabled"`
	RedisAddr     string        `json:"redis_addr" validate:"required_if=Enabled true"`
	RedisPassword string        `json:"-"`
	RedisDB       int           `json:"redis_db" validate:"min=0"`
	TTL           time.Duration `json:"ttl" validate:"gt=0"`
}

// Options converts to the cache client configuration.
func (c CacheConfig) Options() cache.Config {
	return cache.Config{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		TTL:      c.TTL,
	}
}

// StoreConfig configures the SQLite result store. An empty Path disables it.
type StoreConfig struct {
	Path string `json:"path"`
}

// Enabled reports whether the result store is configured.
func (c StoreConfig) Enabled() bool { return c.Path != "" }

// BlobConfig configures storage of scored CSV outputs.
type BlobConfig struct {
	Driver   string `json:"driver" validate:"oneof=none fs s3"`
	BasePath string `json:"base_path" validate:"required_if=Driver fs"`

	S3Bucket    string `json:"s3_bucket" validate:"required_if=Driver s3"`
	S3Region    string `json:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint" validate:"omitempty,url"`
	S3Prefix    string `json:"s3_prefix"`
	S3AccessKey string `json:"-"`
	S3SecretKey string `json:"-"`
}

// Open builds the configured blob store. It returns nil for BlobNone.
func (c BlobConfig) Open(ctx context.Context) (storage.BlobStore, error) {
	switch c.Driver {
	case BlobFS:
		s, err := storage.NewFSStore(c.BasePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BlobS3:
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			Prefix:    c.S3Prefix,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

// TemporalConfig configures the Temporal client.
type TemporalConfig struct {
	Enabled   bool   `json:"enabled"`
	HostPort  string `json:"host_port" validate:"required_if=Enabled true"`
	Namespace string `json:"namespace" validate:"required"`
	TaskQueue string `json:"task_queue" validate:"required"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string `json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `json:"log_format" validate:"oneof=json text"`
}

// DefaultConfig returns defaults for local development.
func DefaultConfig() *Config {
	remote := evaluator.DefaultRemoteConfig("")
	return &Config{
		HTTP: HTTPConfig{
			Addr:            DefaultHTTPAddr,
			CORSOrigins:     []string{"http://localhost:3000"},
			BodyLimit:       DefaultBodyLimit,
			ShutdownTimeout: DefaultShutdownTimeout,
			ClientRPS:       DefaultClientRPS,
			ClientBurst:     DefaultClientBurst,
		},
		Scoring: ScoringConfig{
			DefaultRubric:  domain.DefaultRubric,
			DefaultScale:   domain.DefaultScale,
			MaxConcurrency: DefaultMaxConcurrency,
		},
		Evaluator: EvaluatorConfig{
			Timeout:           remote.Timeout,
			RequestsPerSecond: remote.RequestsPerSecond,
			Burst:             remote.Burst,
			Retry:             remote.Retry,
			Breaker:           remote.Breaker,
		},
		Cache: CacheConfig{
			TTL: DefaultCacheTTL,
		},
		Store: StoreConfig{Path: DefaultStorePath},
		Blob: BlobConfig{
			Driver:   BlobFS,
			BasePath: DefaultBlobPath,
		},
		Temporal: TemporalConfig{
			HostPort:  DefaultTemporalHost,
			Namespace: DefaultNamespace,
			TaskQueue: DefaultTaskQueue,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// FromEnv returns DefaultConfig overlaid with environment variables and
// validated.
func FromEnv() (*Config, error) { return fromLookup(os.LookupEnv) }

func fromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	e := env{lookup: lookup}

	cfg.HTTP.Addr = e.str("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.CORSOrigins = e.list("CORS_ORIGINS", cfg.HTTP.CORSOrigins)
	cfg.HTTP.BodyLimit = e.int64("HTTP_BODY_LIMIT", cfg.HTTP.BodyLimit)
	cfg.HTTP.ShutdownTimeout = e.duration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	cfg.HTTP.ClientRPS = e.float("HTTP_CLIENT_RPS", cfg.HTTP.ClientRPS)
	cfg.HTTP.ClientBurst = e.int("HTTP_CLIENT_BURST", cfg.HTTP.ClientBurst)

	if v, ok := lookup("SCORING_DEFAULT_RUBRIC"); ok {
		r, err := domain.ParseRubricChoice(v)
		e.fail("SCORING_DEFAULT_RUBRIC", err)
		cfg.Scoring.DefaultRubric = r
	}
	if v, ok := lookup("SCORING_DEFAULT_SCALE"); ok {
		s, err := domain.ParseScale(v)
		e.fail("SCORING_DEFAULT_SCALE", err)
		cfg.Scoring.DefaultScale = s
	}
	cfg.Scoring.MaxConcurrency = e.int("SCORING_MAX_CONCURRENCY", cfg.Scoring.MaxConcurrency)

	cfg.Evaluator.BaseURL = e.str("EVALUATOR_URL", cfg.Evaluator.BaseURL)
	cfg.Evaluator.Timeout = e.duration("EVALUATOR_TIMEOUT", cfg.Evaluator.Timeout)
	cfg.Evaluator.RequestsPerSecond = e.float("EVALUATOR_RPS", cfg.Evaluator.RequestsPerSecond)
	cfg.Evaluator.Burst = e.int("EVALUATOR_BURST", cfg.Evaluator.Burst)
	cfg.Evaluator.Retry.MaxAttempts = e.int("EVALUATOR_MAX_ATTEMPTS", cfg.Evaluator.Retry.MaxAttempts)
	cfg.Evaluator.Breaker.FailureThreshold = e.int("EVALUATOR_BREAKER_FAILURES", cfg.Evaluator.Breaker.FailureThreshold)
	cfg.Evaluator.Breaker.OpenTimeout = e.duration("EVALUATOR_BREAKER_OPEN_TIMEOUT", cfg.Evaluator.Breaker.OpenTimeout)

	cfg.Cache.RedisAddr = e.str("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.Enabled = e.bool("CACHE_ENABLED", cfg.Cache.RedisAddr != "")
	cfg.Cache.RedisPassword = e.str("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = e.int("REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.TTL = e.duration("CACHE_TTL", cfg.Cache.TTL)

	cfg.Store.Path = e.str("STORE_PATH", cfg.Store.Path)

	cfg.Blob.Driver = strings.ToLower(e.str("BLOB_DRIVER", cfg.Blob.Driver))
	cfg.Blob.BasePath = e.str("BLOB_BASE_PATH", cfg.Blob.BasePath)
	cfg.Blob.S3Bucket = e.str("S3_BUCKET", cfg.Blob.S3Bucket)
	cfg.Blob.S3Region = e.str("S3_REGION", cfg.Blob.S3Region)
	cfg.Blob.S3Endpoint = e.str("S3_ENDPOINT", cfg.Blob.S3Endpoint)
	cfg.Blob.S3Prefix = e.str("S3_PREFIX", cfg.Blob.S3Prefix)
	cfg.Blob.S3AccessKey = e.str("S3_ACCESS_KEY", cfg.Blob.S3AccessKey)
	cfg.Blob.S3SecretKey = e.str("S3_SECRET_KEY", cfg.Blob.S3SecretKey)

	cfg.Temporal.Enabled = e.bool("TEMPORAL_ENABLED", cfg.Temporal.Enabled)
	cfg.Temporal.HostPort = e.str("TEMPORAL_HOST_PORT", cfg.Temporal.HostPort)
	cfg.Temporal.Namespace = e.str("TEMPORAL_NAMESPACE", cfg.Temporal.Namespace)
	cfg.Temporal.TaskQueue = e.str("TEMPORAL_TASK_QUEUE", cfg.Temporal.TaskQueue)

	cfg.Observability.LogLevel = strings.ToLower(e.str("LOG_LEVEL", cfg.Observability.LogLevel))
	cfg.Observability.LogFormat = strings.ToLower(e.str("LOG_FORMAT", cfg.Observability.LogFormat))

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger builds the process logger writing to w.
func (o ObservabilityConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if o.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// env reads typed values and collects parse errors.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) raw(k string) (string, bool) {
	v, ok := e.lookup(k)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *env) fail(k string, err error) {
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
	}
}

func (e *env) str(k, def string) string {
	if v, ok := e.raw(k); ok {
		return v
	}
	return def
}

func (e *env) int(k string, def int) int {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, err)
		return def
	}
	return n
}

func (e *env) int64(k string, def int64) int64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(k, err)
		return def
	}
	return n
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(k, err)
		return def
	}
	return f
}

func (e *env) duration(k string, def time.Duration) time.Duration {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, err)
		return def
	}
	return d
}

func (e *env) bool(k string, def bool) bool {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		e.fail(k, fmt.Errorf("invalid boolean %q", v))
		return def
	}
}

func (e *env) list(k string, def []string) []string {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
