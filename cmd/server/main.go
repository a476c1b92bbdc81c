// Command server runs the essay scoring HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/ahrav/go-essaygrade/internal/cache"
	"github.com/ahrav/go-essaygrade/internal/config"
	"github.com/ahrav/go-essaygrade/internal/httpapi"
	"github.com/ahrav/go-essaygrade/internal/ratelimit"
	"github.com/ahrav/go-essaygrade/internal/store"
	"github.com/ahrav/go-essaygrade/internal/worker"
	"github.com/ahrav/go-essaygrade/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	logger := cfg.Observability.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := worker.NewEngine(cfg, nil)
	if err != nil {
		return err
	}
	deps := httpapi.Deps{
		Scorer:        engine,
		DefaultRubric: cfg.Scoring.DefaultRubric,
		DefaultScale:  cfg.Scoring.DefaultScale,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		BodyLimit:     cfg.HTTP.BodyLimit,
		Logger:        logger,
	}

	if cfg.Store.Enabled() {
		db, err := store.NewDB(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Results = store.NewResultRepo(db)
	}

	if cfg.Cache.Enabled {
		rc, rdb, err := cache.Connect(ctx, cfg.Cache.Options())
		if err != nil {
			// Scoring works without the cache.
			logger.Warn("result cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			defer rdb.Close()
			deps.Cache = rc
		}
	}

	if deps.Blobs, err = cfg.Blob.Open(ctx); err != nil {
		return err
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.HTTP.ClientRPS,
		Burst:             cfg.HTTP.ClientBurst,
	})
	if err != nil {
		return err
	}
	limiter.Start()
	defer limiter.Stop()
	deps.Limiter = limiter

	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(logger),
		})
		if err != nil {
			return err
		}
		defer tc.Close()
		deps.Batches = workflow.NewStarter(tc, cfg.Temporal.TaskQueue)
	}

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.New(deps).Routes(),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
