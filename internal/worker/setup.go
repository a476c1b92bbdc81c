package worker

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ahrav/go-essaygrade/internal/config"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/evaluator"
	"github.com/ahrav/go-essaygrade/internal/scoring"
	"github.com/ahrav/go-essaygrade/internal/store"
	"github.com/ahrav/go-essaygrade/pkg/events"
)

// NewEngine builds the scoring engine described by cfg. When a remote
// evaluator is configured it produces raw scores for every criterion that an
// essay does not already carry. httpClient may be nil.
func NewEngine(cfg *config.Config, httpClient *http.Client) (*scoring.Engine, error) {
	var producers evaluator.Set
	if cfg.Evaluator.Enabled() {
		client, err := evaluator.NewRemoteClient(cfg.Evaluator.Remote(), httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize evaluator client: %w", err)
		}
		producers = client.Set(domain.AllCriteria())
	}

	engine, err := scoring.NewDefaultEngine(producers)
	if err != nil {
		return nil, fmt.Errorf("failed to build scoring engine: %w", err)
	}
	engine.SetMaxConcurrency(cfg.Scoring.MaxConcurrency)
	return engine, nil
}

// NewEventSink returns where activities append domain events: the SQLite
// outbox when a database is open, otherwise the structured log.
func NewEventSink(db *sql.DB, logger *slog.Logger) events.EventSink {
	if db != nil {
		return store.NewOutboxSink(db)
	}
	return events.NewLogSink(logger)
}
