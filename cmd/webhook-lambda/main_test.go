package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/career-coach/pkg/logging"
)

type seenRequest struct {
	method string
	uri    string
	body   string
	header http.Header
}

func newTestRelay(t *testing.T, status int) (*relay, *[]seenRequest) {
	t.Helper()
	seen := &[]seenRequest{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*seen = append(*seen, seenRequest{method: r.Method, uri: r.URL.RequestURI(), body: string(body), header: r.Header.Clone()})
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		_, _ = w.Write([]byte("EVENT_RECEIVED"))
	}))
	t.Cleanup(upstream.Close)
	return &relay{
		upstream: upstream.URL,
		client:   &http.Client{Timeout: time.Second},
		logger:   logging.NewWithWriter(&bytes.Buffer{}, "error"),
	}, seen
}

func request(method, path string) events.APIGatewayV2HTTPRequest {
	evt := events.APIGatewayV2HTTPRequest{RawPath: path, Headers: map[string]string{}}
	evt.RequestContext.HTTP.Method = method
	evt.RequestContext.RequestID = "req-1"
	return evt
}

func TestRelayWhatsAppVerification(t *testing.T) {
	r, seen := newTestRelay(t, http.StatusOK)
	evt := request(http.MethodGet, "/webhook")
	evt.RawQueryString = "hub.mode=subscribe&hub.verify_token=t&hub.challenge=9"

	resp, err := r.handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodGet, (*seen)[0].method)
	assert.Equal(t, "/webhook?hub.mode=subscribe&hub.verify_token=t&hub.challenge=9", (*seen)[0].uri)
}

func TestRelayPreservesSignatureHeaders(t *testing.T) {
	r, seen := newTestRelay(t, http.StatusOK)

	evt := request(http.MethodPost, "/webhook")
	evt.Body = base64.StdEncoding.EncodeToString([]byte(`{"object":"whatsapp_business_account"}`))
	evt.IsBase64Encoded = true
	evt.Headers["X-Hub-Signature-256"] = "sha256=abc"
	evt.Headers["Content-Type"] = "application/json"
	evt.Headers["Authorization"] = "Bearer should-not-pass"
	resp, err := r.handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, "EVENT_RECEIVED", resp.Body)

	lk := request(http.MethodPost, "/webhooks/livekit")
	lk.Body = `{"event":"room_finished"}`
	lk.Headers["authorization"] = "Bearer lk-token"
	_, err = r.handle(context.Background(), lk)
	require.NoError(t, err)

	require.Len(t, *seen, 2)
	assert.Equal(t, `{"object":"whatsapp_business_account"}`, (*seen)[0].body)
	assert.Equal(t, "sha256=abc", (*seen)[0].header.Get("X-Hub-Signature-256"))
	assert.Empty(t, (*seen)[0].header.Get("Authorization"))
	assert.Equal(t, "req-1", (*seen)[0].header.Get("X-Request-ID"))
	assert.Equal(t, "Bearer lk-token", (*seen)[1].header.Get("Authorization"))
}

func TestRelayRejectsUnknownRoutes(t *testing.T) {
	r, seen := newTestRelay(t, http.StatusOK)

	resp, _ := r.handle(context.Background(), request(http.MethodGet, "/health"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = r.handle(context.Background(), request(http.MethodPost, "/send-message"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = r.handle(context.Background(), request(http.MethodGet, "/webhooks/livekit"))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	bad := request(http.MethodPost, "/webhook")
	bad.IsBase64Encoded = true
	bad.Body = "%%%"
	resp, _ = r.handle(context.Background(), bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, *seen)
}

func TestRelayUpstreamDown(t *testing.T) {
	r, _ := newTestRelay(t, http.StatusOK)
	r.upstream = "http://127.0.0.1:1"
	resp, err := r.handle(context.Background(), request(http.MethodPost, "/webhook"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestNewRelayConfig(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	_, err := newRelay()
	assert.Error(t, err)

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.test/")
	t.Setenv("UPSTREAM_TIMEOUT", "bogus")
	_, err = newRelay()
	assert.Error(t, err)

	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	r, err := newRelay()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test", r.upstream)
	assert.Equal(t, 3*time.Second, r.client.Timeout)
}
