// Command server starts the hiredeck interview orchestration HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiredeck/hiredeck/internal/adapter/ai"
	"github.com/hiredeck/hiredeck/internal/adapter/ai/openrouter"
	httpserver "github.com/hiredeck/hiredeck/internal/adapter/httpserver"
	"github.com/hiredeck/hiredeck/internal/adapter/observability"
	"github.com/hiredeck/hiredeck/internal/adapter/repo/postgres"
	"github.com/hiredeck/hiredeck/internal/app"
	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Infra: DB pool, with retry so the service survives a database that
	// comes up after it.
	ctx := context.Background()
	pool, err := postgres.ConnectWithRetry(ctx, cfg.DBURL, 2*time.Minute)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Repositories
	jobRepo := postgres.NewJobRepo(pool)
	appRepo := postgres.NewApplicationRepo(pool)
	settingsRepo := postgres.NewSettingsRepo(pool)

	// AI gateway: single-attempt OpenRouter client reading mutable
	// credentials from the settings store on every call, wrapped in the
	// typed interview gateway that owns prompting discipline and coercion.
	gateway := ai.NewInterviewGateway(openrouter.New(cfg, settingsRepo))

	// Usecases
	reportSvc := usecase.NewReportService(jobRepo, appRepo, gateway, cfg.EvaluationPromptTokenBudget)
	interviewSvc := usecase.NewInterviewService(jobRepo, appRepo, gateway, reportSvc, cfg.QuestionCount())

	// Optional dev fixtures
	if cfg.SeedFile != "" {
		if err := seedJobPostings(ctx, cfg.SeedFile, jobRepo); err != nil {
			slog.Error("seeding failed", slog.String("file", cfg.SeedFile), slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbCheck := func(ctx context.Context) error { return pool.Ping(ctx) }

	srv := httpserver.NewServer(cfg, interviewSvc, reportSvc, dbCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
