package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"gazettemachine/internal/config"
	"gazettemachine/internal/deps"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/jobs"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/metrics"
	"gazettemachine/internal/pipeline"
	"gazettemachine/internal/workdir"
)

// staleWorkAge is how old a scoped directory must be before the startup
// sweep treats it as abandoned.
const staleWorkAge = 6 * time.Hour

type identifier interface {
	IdentifyAndArchive(ctx context.Context, rec *gazette.Record) (pipeline.Outcome, error)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logging.PruneLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	workdir.CleanStale(ctx, cfg.Paths.WorkDir, staleWorkAge, logger)

	for _, missing := range deps.Missing(deps.Check(cfg)) {
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, "jobs needing this tool will fail"),
		)
	}

	recorder := metrics.NewPipeline()
	stack, err := pipeline.Build(ctx, cfg, logger, nil, recorder)
	if err != nil {
		return err
	}
	defer stack.Close()

	server, err := startMetricsServer(cfg.Metrics.Bind, recorder, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	client, err := jobs.Connect(cfg.Jobs, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("gazetted started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("subject", cfg.Jobs.Subject),
		logging.String("metrics", server.Addr),
	)
	err = client.Consume(ctx, newJobHandler(stack.Controller, logger), recorder)
	logger.Info("gazetted shutting down", logging.String(logging.FieldEventType, "daemon_stop"))
	return err
}

func newJobHandler(controller identifier, logger *slog.Logger) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		rec, err := job.Record()
		if err != nil {
			return err
		}
		outcome, err := controller.IdentifyAndArchive(ctx, rec)
		if err != nil {
			return err
		}
		logging.WithContext(ctx, logger).Info("job complete",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String(logging.FieldJurisdiction, rec.Jurisdiction),
			logging.String("final", string(outcome.Final)),
			logging.String("key", outcome.Record.Key),
			logging.String("manual_task_url", outcome.ManualTaskURL),
		)
		return nil
	}
}

func metricsMux(recorder *metrics.Pipeline) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", recorder.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func startMetricsServer(bind string, recorder *metrics.Pipeline, logger *slog.Logger) (*http.Server, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           metricsMux(recorder),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(logger, "metrics server stopped", "metrics_server_failed", logging.Error(err))
		}
	}()
	return server, nil
}
