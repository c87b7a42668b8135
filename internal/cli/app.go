package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spending/internal/aggregate"
	"spending/internal/amqp"
	"spending/internal/cache"
	"spending/internal/chart"
	"spending/internal/config"
	"spending/internal/engine"
	"spending/internal/log"
	"spending/internal/metrics"
	"spending/internal/report"
	"spending/internal/sheets/google"
	"spending/internal/storage"
	"spending/internal/usaspending"
)

// StaleRunAge is how old staged rows must be before a server start clears
// them. It is well above the upstream timeout so a concurrently running
// spendingctl keeps its rows.
const StaleRunAge = 10 * time.Minute

// AppOptions selects the optional parts of the pipeline.
type AppOptions struct {
	// ResetEngine clears staged rows older than StaleRunAge. Only the server sets it.
	ResetEngine bool
	// Chart enables PNG rendering into the static dir.
	Chart bool
	// SideEffects enables the AMQP event and Sheets export when configured.
	SideEffects bool
	Metrics     *metrics.Metrics
}

// App holds the long-lived components shared by the binaries.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Repo    *storage.SQLiteRepository
	Engine  *engine.Engine
	Store   *cache.DiskStore
	Reports *report.Service

	events *amqp.Client
}

// NewApp opens the engine database and wires the report service.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, opts AppOptions) (*App, error) {
	repo, err := storage.NewSQLiteRepository(cfg.EngineDBPath)
	if err != nil {
		return nil, fmt.Errorf("open engine database: %w", err)
	}

	eng := engine.New(repo.DB())
	if opts.ResetEngine {
		n, err := eng.Reset(ctx, time.Now().Add(-StaleRunAge))
		if err != nil {
			repo.Close()
			return nil, err
		}
		if n > 0 {
			logger.WithComponent(log.ComponentEngine).Info("Cleared stale staged rows", "rows", n)
		}
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Repo:   repo,
		Engine: eng,
		Store:  cache.NewDiskStore(cfg.CacheDir),
	}

	serviceOpts := []report.Option{
		report.WithLogger(logger.WithComponent(log.ComponentReport)),
		report.WithHistory(repo),
		report.WithMemo(cache.NewRankingsMemo(64, 10*time.Minute)),
	}
	if opts.Chart {
		serviceOpts = append(serviceOpts, report.WithChart(chart.NewRenderer(cfg.StaticDir)))
	}
	if opts.Metrics != nil {
		serviceOpts = append(serviceOpts, report.WithMetrics(opts.Metrics))
	}

	if opts.SideEffects && cfg.AMQPEnabled() {
		app.events = amqp.NewLazyClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		serviceOpts = append(serviceOpts, report.WithPublisher(app.events))
		logger.Info("Report events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	if opts.SideEffects && cfg.SheetsEnabled() {
		exporter, err := google.New(ctx, google.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("google sheets: %w", err)
		}
		serviceOpts = append(serviceOpts, report.WithExporter(exporter))
		logger.Info("Google Sheets export enabled")
	}

	fetcher := usaspending.NewClient(cfg.USASpendingBaseURL, usaspending.WithTimeout(cfg.FetchTimeout))
	app.Reports = report.NewService(app.Store, fetcher, aggregate.New(eng, cfg.RankSize), serviceOpts...)
	return app, nil
}

// Close releases the broker connection and the engine database.
func (a *App) Close() error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	errs = append(errs, a.Repo.Close())
	return errors.Join(errs...)
}
