package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/career-coach/internal/calls"
	"github.com/wolfman30/career-coach/internal/channels/whatsapp"
	"github.com/wolfman30/career-coach/internal/config"
	"github.com/wolfman30/career-coach/internal/events"
	"github.com/wolfman30/career-coach/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/career-coach/internal/http/middleware"
	"github.com/wolfman30/career-coach/internal/voice/livekit"
	"github.com/wolfman30/career-coach/pkg/logging"
)

type okSender struct{}

func (okSender) Send(context.Context, events.OutboundReply) (string, error) { return "wamid.1", nil }

type noopSink struct{}

func (noopSink) HandleEvents(context.Context, []events.InboundEvent) {}

func newTestRouter(t *testing.T, adminSecret string, limiter *httpmiddleware.RateLimiter) http.Handler {
	t.Helper()
	logger := logging.Default()
	store := calls.NewMemoryStore()
	signals := calls.NewMemorySignals()
	reg := prometheus.NewRegistry()

	return New(&Config{
		Logger: logger,
		WhatsApp: whatsapp.NewWebhookHandler(whatsapp.WebhookConfig{
			VerifyToken: "verify-me",
			AppSecret:   "secret",
			Sink:        noopSink{},
			Logger:      logger,
		}),
		LiveKitWebhook: livekit.NewWebhookHandler("key", "lk-secret", signals, logger),
		Status:         handlers.NewStatusHandler(&config.Config{}),
		SendMessage:    handlers.NewSendMessageHandler(okSender{}, "PN1", logger),
		Calls: handlers.NewCallsHandler(handlers.CallsConfig{
			Enqueuer: calls.NewPublisher(calls.NewMemoryQueue(4), logger),
			Store:    store,
			Signals:  signals,
			Logger:   logger,
		}),
		CallStream:      handlers.NewCallStreamHandler(store, signals, logger, 0),
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret: adminSecret,
		AdminLimiter:    limiter,
	})
}

func serve(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func operatorToken(t *testing.T, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestRouterPublicEndpoints(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := serve(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get(httpmiddleware.RequestIDHeader))

	rec = serve(router, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "environment")

	rec = serve(router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterWebhookVerification(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := serve(router, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = serve(router, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, http.MethodPost, "/webhook", `{"object":"whatsapp_business_account"}`,
		map[string]string{"X-Hub-Signature-256": "sha256=00"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterLiveKitWebhookRequiresSignature(t *testing.T) {
	router := newTestRouter(t, "", nil)
	rec := serve(router, http.MethodPost, "/webhooks/livekit", `{"event":"room_finished"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterOperatorRoutesOpenWithoutSecret(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := serve(router, http.MethodPost, "/send-message", `{"to":"1555","message":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodPost, "/broadcast", `{"recipients":["1555","1556"],"message":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recipient":"1556"`)

	rec = serve(router, http.MethodPost, "/calls", `{"phone_number":"+15550001234"}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = serve(router, http.MethodGet, "/calls/coaching-0000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterOperatorRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, "admin-secret", nil)

	rec := serve(router, http.MethodPost, "/send-message", `{"to":"1555","message":"hi"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = serve(router, http.MethodPost, "/calls", `{"phone_number":"+15550001234"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = serve(router, http.MethodPost, "/broadcast", `{"recipients":["1555"],"message":"hi"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth := map[string]string{"Authorization": "Bearer " + operatorToken(t, "admin-secret")}
	rec = serve(router, http.MethodPost, "/send-message", `{"to":"1555","message":"hi"}`, auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(router, http.MethodPost, "/calls", `{"phone_number":"+15550001234"}`, auth)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = serve(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "public routes stay open")
}

func TestRouterOperatorRateLimit(t *testing.T) {
	router := newTestRouter(t, "", httpmiddleware.NewRateLimiter(0.001, 1))

	rec := serve(router, http.MethodPost, "/send-message", `{"to":"1555","message":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(router, http.MethodPost, "/send-message", `{"to":"1555","message":"hi"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = serve(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
