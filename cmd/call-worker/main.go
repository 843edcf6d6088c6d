package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/career-coach/cmd/mainconfig"
	"github.com/wolfman30/career-coach/internal/app/bootstrap"
	"github.com/wolfman30/career-coach/internal/calls"
	"github.com/wolfman30/career-coach/internal/coach"
	appconfig "github.com/wolfman30/career-coach/internal/config"
	"github.com/wolfman30/career-coach/internal/observability/metrics"
)

func main() {
	cfg, logger := mainconfig.Setup("call-worker")
	if err := validate(cfg); err != nil {
		logger.Error("invalid call worker configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	rdb := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if rdb != nil {
		defer rdb.Close()
	}
	rt, err := bootstrap.BuildCallRuntime(cfg, awsCfg, rdb, logger)
	if err != nil {
		logger.Error("failed to build call runtime", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	orchestrator := rt.Orchestrator(cfg, logger, metrics.NewCallMetrics(reg))
	worker := calls.NewWorker(rt.Queue, coach.NewRouter(coach.ModeCanned), orchestrator, logger,
		calls.WithWorkerCount(cfg.CallWorkerCount),
		calls.WithMaxConcurrentCalls(cfg.MaxConcurrentCalls),
		calls.WithReceiveWaitSeconds(20),
		calls.WithReceiveBatchSize(10),
	)

	ops := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           opsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("ops server stopped", "error", err)
		}
	}()

	logger.Info("call worker started",
		"workers", cfg.CallWorkerCount,
		"max_concurrent_calls", cfg.MaxConcurrentCalls,
	)
	worker.Start(ctx)
	<-ctx.Done()
	logger.Info("shutdown signal received; hanging up active calls")
	worker.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ops.Shutdown(shutdownCtx)
	logger.Info("call worker stopped")
}

// validate rejects setups where this process could never receive a job or
// a room signal.
func validate(cfg *appconfig.Config) error {
	if cfg.UseMemoryQueue || cfg.CallQueueURL == "" {
		return errors.New("CALL_QUEUE_URL is required and USE_MEMORY_QUEUE must be false")
	}
	if cfg.CallSignals != "redis" {
		return errors.New("CALL_SIGNALS=redis is required so webhook signals reach this process")
	}
	if cfg.CallStore == "" || cfg.CallStore == "memory" {
		return errors.New("CALL_STORE must be redis or dynamodb so the API can read sessions")
	}
	return nil
}

func opsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}
