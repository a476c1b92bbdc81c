// Command worker runs the Temporal worker for batch scoring and relays
// outbox events to the log.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-essaygrade/internal/config"
	"github.com/ahrav/go-essaygrade/internal/store"
	"github.com/ahrav/go-essaygrade/internal/worker"
	"github.com/ahrav/go-essaygrade/pkg/events"
)

const (
	relayInterval  = 5 * time.Second
	relayBatchSize = 100
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "error", err)
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

	var db *sql.DB
	if cfg.Store.Enabled() {
		if db, err = store.NewDB(cfg.Store.Path); err != nil {
			return err
		}
		defer db.Close()
		go relay(ctx, store.NewOutboxSink(db), events.NewLogSink(logger), logger)
	}

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return err
	}
	defer tc.Close()

	w := sdkworker.New(tc, cfg.Temporal.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, engine, worker.NewEventSink(db, logger))

	logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue)
	return w.Run(stopOnDone(ctx))
}

// stopOnDone adapts ctx to the interrupt channel sdkworker.Worker.Run takes.
func stopOnDone(ctx context.Context) <-chan any {
	ch := make(chan any)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func relay(ctx context.Context, outbox *store.OutboxSink, to events.EventSink, logger *slog.Logger) {
	t := time.NewTicker(relayInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := outbox.Relay(ctx, to, relayBatchSize)
			if err != nil {
				logger.Warn("outbox relay failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("outbox relayed", "events", n)
			}
		}
	}
}
