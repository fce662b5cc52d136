// Package app wires configuration to the pipeline and the HTTP surface.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"MockMate/internal/api"
	"MockMate/internal/config"
	"MockMate/internal/domain"
	"MockMate/internal/llm"
	"MockMate/internal/logging"
	"MockMate/internal/pipeline"
	"MockMate/internal/source"
	"MockMate/internal/storage"
)

// Application owns the ingestion scheduler and the API server lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	store     *storage.Postgres
	scheduler *pipeline.Scheduler
	server    *http.Server
}

// New builds a runnable application instance: storage, fetchers, the
// synthesis pipeline, its cron scheduler, and the HTTP server.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := storage.NewPostgres(db)

	registry := source.NewRegistry()
	registry.Register(source.NewFeedFetcher(nil, baseLogger.With("component", "source.feed")))
	registry.Register(source.NewAPIFetcher(nil, baseLogger.With("component", "source.api")))

	generator := llm.NewClient(cfg.OpenAI)

	scorer := pipeline.NewScorer(domain.DefaultPositions(), nil)
	synth := pipeline.NewSynthesizer(generator, baseLogger.With("component", "synthesizer"))
	cycle := pipeline.NewCycle(registry, store, scorer, synth, pipeline.CycleConfig{
		MaxConcurrent:  cfg.Scheduler.MaxConcurrent,
		SourceTimeout:  cfg.Scheduler.SourceTimeout.Std(),
		ItemsPerSource: cfg.Scheduler.ItemsPerSource,
	}, baseLogger.With("component", "cycle"))

	scheduler, err := pipeline.NewScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), cycle, baseLogger.With("component", "scheduler"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewServer(store, scheduler, baseLogger.With("component", "api")),
	}

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		store:     store,
		scheduler: scheduler,
		server:    server,
	}, nil
}

// Run migrates the schema, seeds the source catalog, starts the scheduler,
// and serves HTTP until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return err
	}
	if err := a.seedSources(ctx); err != nil {
		return err
	}

	a.scheduler.Start()
	defer a.scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api server listening", "addr", a.cfg.HTTP.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown failed", "error", err)
	}

	return a.db.Close()
}

// seedSources reconciles the configured catalog with storage. Existing
// sources keep their fetch timestamps.
func (a *Application) seedSources(ctx context.Context) error {
	for _, src := range a.cfg.Sources {
		_, err := a.store.UpsertSource(ctx, domain.Source{
			Name:     src.Name,
			Category: src.Category,
			Kind:     src.Kind,
			URL:      src.URL,
			Active:   true,
		})
		if err != nil {
			return fmt.Errorf("seed source %q: %w", src.Name, err)
		}
	}
	return nil
}
