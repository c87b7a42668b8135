package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"spending/internal/cli"
	apphttp "spending/internal/http"
	"spending/internal/log"
	"spending/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout)

	m := metrics.New()
	app, err := cli.NewApp(context.Background(), cfg, logger, cli.AppOptions{
		ResetEngine: true,
		Chart:       true,
		SideEffects: true,
		Metrics:     m,
	})
	if err != nil {
		logger.Error("Failed to initialize report pipeline", log.FieldOperation, log.OpStartup, log.FieldError, err.Error())
		os.Exit(1)
	}
	defer app.Close()

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:                ":" + cfg.Port,
		StaticDir:           cfg.StaticDir,
		Reports:             app.Reports,
		History:             app.Repo,
		HistoryLimit:        cfg.HistoryLimit,
		Engine:              app.Engine,
		Metrics:             m.Handler(),
		SubmitRatePerMinute: cfg.SubmitRatePerMinute,
		Logger:              logger,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldOperation, log.OpStartup, log.FieldError, err.Error())
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, err.Error())
		}
	})

	logger.Info("Starting spending server",
		"port", cfg.Port,
		"cache_dir", cfg.CacheDir,
		"static_dir", cfg.StaticDir,
		"upstream", cfg.USASpendingBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		app.Close()
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
