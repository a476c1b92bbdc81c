// Package httpapi exposes the scoring engine over HTTP.
//
// Routes:
//
//	POST /api/evaluate/text          score one essay
//	POST /api/upload                 score a CSV upload, respond with the scored CSV
//	POST /api/convert-score          render an overall score on a scale
//	GET  /api/fuzzy-graph/{criterion} membership curves of a criterion profile
//	GET  /api/results                recent stored results
//	GET  /api/results/{id}           one stored result
//	POST /api/batches                start a batch scoring workflow
//	GET  /api/batches/{id}           batch workflow result, or stored upload rows
//	GET  /healthz                    liveness and cache counters
//
// Result storage, caching, blob storage and batch orchestration are optional;
// routes that need a missing dependency answer 503.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-essaygrade/internal/cache"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/fuzzy"
	"github.com/ahrav/go-essaygrade/internal/ratelimit"
	"github.com/ahrav/go-essaygrade/internal/storage"
	"github.com/ahrav/go-essaygrade/internal/store"
	"github.com/ahrav/go-essaygrade/internal/workflow"
)

const (
	defaultBodyLimit = 10 << 20
	defaultBatchWait = 2 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Scorer scores essays. *scoring.Engine implements it.
type Scorer interface {
	Score(ctx context.Context, essay domain.EssayRecord, cfg domain.EvaluationConfig) (*domain.ScoredEssay, error)
	ScoreBatch(ctx context.Context, essays []domain.EssayRecord, cfg domain.EvaluationConfig) ([]*domain.ScoredEssay, []domain.EssayFailure, error)
	Profiles() *fuzzy.ProfileSet
}

// ResultStore persists scored essays. *store.ResultRepo implements it.
type ResultStore interface {
	Save(ctx context.Context, batchID string, s *domain.ScoredEssay) (string, error)
	SaveBatch(ctx context.Context, batchID string, results []domain.ScoredEssay) ([]string, error)
	Get(ctx context.Context, resultID string) (*store.StoredResult, error)
	ListRecent(ctx context.Context, limit int) ([]store.StoredResult, error)
	ListBatch(ctx context.Context, batchID string) ([]store.StoredResult, error)
}

// BatchStarter starts batch workflows and fetches their results.
// *workflow.Starter implements it.
type BatchStarter interface {
	StartBatch(ctx context.Context, req domain.BatchRequest) (workflow.Execution, error)
	BatchResult(ctx context.Context, batchID, runID string) (*domain.BatchResult, error)
}

// Deps are the server's collaborators. Only Scorer is required.
type Deps struct {
	Scorer  Scorer
	Cache   *cache.ResultCache
	Results ResultStore
	Blobs   storage.BlobStore
	Batches BatchStarter
	Limiter *ratelimit.Limiter

	DefaultRubric domain.RubricChoice
	DefaultScale  domain.Scale
	CORSOrigins   []string
	BodyLimit     int64
	BatchWait     time.Duration
	Logger        *slog.Logger
}

// Server holds handler state.
type Server struct {
	deps   Deps
	now    func() time.Time
	logger *slog.Logger
}

// New fills unset defaults in deps.
func New(deps Deps) *Server {
	if deps.DefaultRubric == 0 {
		deps.DefaultRubric = domain.DefaultRubric
	}
	if deps.DefaultScale == 0 {
		deps.DefaultScale = domain.DefaultScale
	}
	if deps.BodyLimit <= 0 {
		deps.BodyLimit = defaultBodyLimit
	}
	if deps.BatchWait <= 0 {
		deps.BatchWait = defaultBatchWait
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		deps:   deps,
		now:    time.Now,
		logger: logger.With("component", "httpapi"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Batch-ID", "X-Result-Ref"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)

	r.Route("/api", func(api chi.Router) {
		if s.deps.Limiter != nil && s.deps.Limiter.Enabled() {
			api.Use(s.deps.Limiter.Middleware(nil))
		}
		api.Use(s.limitBody)

		api.Post("/evaluate/text", s.evaluateText)
		api.Post("/upload", s.upload)
		api.Post("/convert-score", s.convertScore)
		api.Get("/fuzzy-graph/{criterion}", s.fuzzyGraph)
		api.Get("/results", s.listResults)
		api.Get("/results/{id}", s.getResult)
		api.Post("/batches", s.startBatch)
		api.Get("/batches/{id}", s.getBatch)
	})
	return r
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.deps.BodyLimit)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr)
	})
}

type healthResponse struct {
	Status string       `json:"status"`
	Cache  *cache.Stats `json:"cache,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.deps.Cache != nil {
		st := s.deps.Cache.Stats()
		resp.Cache = &st
	}
	writeJSON(w, http.StatusOK, resp)
}
