package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/career-coach/internal/config"
	"github.com/wolfman30/career-coach/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, messaging, calls := setupMetrics(prometheus.NewRegistry())
	require.NotNil(t, messaging)
	require.NotNil(t, calls)

	messaging.ObserveWebhook(http.MethodPost, "accepted", 10*time.Millisecond)
	calls.ObserveTransition("idle", "dialing")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coach_webhook_requests_total")
	assert.Contains(t, rec.Body.String(), "coach_calls_transitions_total")
}

func TestNewServerInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &appconfig.Config{
		WhatsAppVerifyToken: "verify-me",
		UseMemoryQueue:      true,
		CallWorkerCount:     1,
		AdminRateLimit:      5,
		AdminRateBurst:      10,
	}
	srv, err := newServer(ctx, cfg, aws.Config{Region: "us-east-1"}, logging.New("error"), prometheus.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, srv.worker)

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(`{"to":"1555","message":"hi"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "whatsapp credentials are missing")

	cancel()
	srv.drain()
	srv.close()
}
