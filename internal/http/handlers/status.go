package handlers

import (
	"net/http"

	"github.com/wolfman30/career-coach/internal/config"
)

// StatusHandler reports service health and which credentials are configured.
type StatusHandler struct {
	cfg *config.Config
}

func NewStatusHandler(cfg *config.Config) *StatusHandler {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &StatusHandler{cfg: cfg}
}

func mark(v string) string {
	return markBool(v != "")
}

func markBool(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// Root handles GET /.
func (h *StatusHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "WhatsApp Career Coach Bot",
		"status":      "healthy",
		"webhook_url": "/webhook",
		"environment": map[string]string{
			"phone_id":     mark(h.cfg.WhatsAppPhoneID),
			"access_token": mark(h.cfg.WhatsAppAccessToken),
			"app_secret":   mark(h.cfg.WhatsAppAppSecret),
			"verify_token": mark(h.cfg.WhatsAppVerifyToken),
			"livekit":      markBool(h.cfg.LiveKitReady()),
		},
		"missing": h.cfg.Missing(),
	})
}

// Health handles GET /health.
func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"webhook_path": "/webhook",
		"ready":        h.cfg.WhatsAppReady() && h.cfg.WhatsAppVerifyToken != "",
		"calls_ready":  h.cfg.LiveKitReady(),
	})
}

// WebhookCheck handles GET /test-webhook, a setup aid for the Meta dashboard.
func (h *StatusHandler) WebhookCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"webhook_url":              "/webhook",
		"verify_token_configured":  h.cfg.WhatsAppVerifyToken != "",
		"app_secret_configured":    h.cfg.WhatsAppAppSecret != "",
		"phone_id_configured":      h.cfg.WhatsAppPhoneID != "",
		"access_token_configured":  h.cfg.WhatsAppAccessToken != "",
		"signature_checks_enabled": !h.cfg.SkipSignatureCheck,
	})
}
