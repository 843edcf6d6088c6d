package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/career-coach/cmd/mainconfig"
	"github.com/wolfman30/career-coach/internal/api/router"
	"github.com/wolfman30/career-coach/internal/app/bootstrap"
	"github.com/wolfman30/career-coach/internal/calls"
	"github.com/wolfman30/career-coach/internal/channels/whatsapp"
	"github.com/wolfman30/career-coach/internal/coach"
	appconfig "github.com/wolfman30/career-coach/internal/config"
	"github.com/wolfman30/career-coach/internal/dispatch"
	"github.com/wolfman30/career-coach/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/career-coach/internal/http/middleware"
	"github.com/wolfman30/career-coach/internal/observability/metrics"
	"github.com/wolfman30/career-coach/internal/voice/livekit"
	"github.com/wolfman30/career-coach/pkg/logging"
)

func main() {
	cfg, logger := mainconfig.Setup("career-coach-api")
	logger.Info("starting career coach API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"ai_replies", cfg.AIRepliesEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	srv, err := newServer(ctx, cfg, awsCfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer srv.close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	srv.drain()
	logger.Info("server exited")
}

// server is the wired API process.
type server struct {
	handler http.Handler
	webhook *whatsapp.WebhookHandler
	worker  *calls.Worker
	closers []func()
}

// newServer wires every component from cfg. When calls travel over the
// in-memory queue, the call worker starts on ctx.
func newServer(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger, reg *prometheus.Registry) (*server, error) {
	metricsHandler, messagingMetrics, callMetrics := setupMetrics(reg)
	srv := &server{}

	rdb := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if rdb != nil {
		srv.closers = append(srv.closers, func() { _ = rdb.Close() })
	}

	deduper, closeDB, err := bootstrap.BuildDeduper(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, closeDB)

	generator, closeLLM, err := bootstrap.BuildReplyGenerator(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, closeLLM)

	coachRouter := coach.NewRouter(bootstrap.GenerationMode(cfg))
	sender := bootstrap.BuildWhatsAppClient(cfg, logger)

	dispatchCfg := dispatch.Config{
		Router:  coachRouter,
		Sender:  sender,
		Deduper: deduper,
		Logger:  logger,
		Metrics: messagingMetrics,
	}
	if generator != nil {
		dispatchCfg.Generator = generator
	}
	dispatcher := dispatch.New(dispatchCfg)

	srv.webhook = whatsapp.NewWebhookHandler(whatsapp.WebhookConfig{
		VerifyToken:     cfg.WhatsAppVerifyToken,
		AppSecret:       cfg.WhatsAppAppSecret,
		AccessToken:     cfg.WhatsAppAccessToken,
		SkipSignature:   cfg.SkipSignatureCheck,
		Async:           cfg.WebhookAsyncDispatch,
		DispatchTimeout: cfg.WebhookDispatchTimeout,
		Sink:            dispatcher,
		Logger:          logger,
		Metrics:         messagingMetrics,
	})
	if cfg.SkipSignatureCheck {
		logger.Warn("whatsapp signature checks disabled")
	}

	rt, err := bootstrap.BuildCallRuntime(cfg, awsCfg, rdb, logger)
	if err != nil {
		return nil, err
	}
	if rt.InProcess {
		srv.worker = calls.NewWorker(rt.Queue, coachRouter, rt.Orchestrator(cfg, logger, callMetrics), logger,
			calls.WithWorkerCount(cfg.CallWorkerCount),
			calls.WithMaxConcurrentCalls(cfg.MaxConcurrentCalls),
		)
		srv.worker.Start(ctx)
	}

	limiter := httpmiddleware.NewRateLimiter(float64(cfg.AdminRateLimit), cfg.AdminRateBurst)
	go limiter.Run(ctx)

	srv.handler = router.New(&router.Config{
		Logger:         logger,
		WhatsApp:       srv.webhook,
		LiveKitWebhook: livekit.NewWebhookHandler(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, rt.Signals, logger),
		Status:         handlers.NewStatusHandler(cfg),
		SendMessage:    handlers.NewSendMessageHandler(dispatcher, cfg.WhatsAppPhoneID, logger),
		Calls: handlers.NewCallsHandler(handlers.CallsConfig{
			Enqueuer: rt.Publisher,
			Store:    rt.Store,
			Signals:  rt.Signals,
			Logger:   logger,
		}),
		CallStream:      handlers.NewCallStreamHandler(rt.Store, rt.Signals, logger, 0),
		MetricsHandler:  metricsHandler,
		AdminAuthSecret: cfg.AdminJWTSecret,
		AdminLimiter:    limiter,
	})
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; operator routes are unauthenticated")
	}
	return srv, nil
}

// drain waits for detached webhook batches and in-process calls.
func (s *server) drain() {
	s.webhook.Wait()
	if s.worker != nil {
		s.worker.Wait()
	}
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupMetrics(reg *prometheus.Registry) (http.Handler, *metrics.MessagingMetrics, *metrics.CallMetrics) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		metrics.NewMessagingMetrics(reg),
		metrics.NewCallMetrics(reg)
}
