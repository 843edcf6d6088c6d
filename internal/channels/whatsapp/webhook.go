package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/career-coach/internal/events"
	"github.com/wolfman30/career-coach/internal/observability/metrics"
	"github.com/wolfman30/career-coach/internal/session"
	"github.com/wolfman30/career-coach/pkg/logging"
)

var webhookTracer = otel.Tracer("coach.internal.channels.whatsapp.webhook")

const maxWebhookBody = 1 << 20

// EventSink receives the ordered events of one change. The context carries a
// session.Context for the receiving business number.
type EventSink interface {
	HandleEvents(ctx context.Context, evts []events.InboundEvent)
}

// WebhookConfig configures the WhatsApp webhook handler.
type WebhookConfig struct {
	VerifyToken string
	AppSecret   string
	AccessToken string
	// SkipSignature disables X-Hub-Signature-256 checks. Local use only.
	SkipSignature bool
	// Async acknowledges before the sink finishes. Each batch then runs
	// detached from the request with DispatchTimeout as its bound.
	Async           bool
	DispatchTimeout time.Duration
	Sink            EventSink
	Logger          *logging.Logger
	Metrics         *metrics.MessagingMetrics
	Now             func() time.Time
}

// WebhookHandler handles WhatsApp webhook verification and inbound events.
type WebhookHandler struct {
	cfg      WebhookConfig
	logger   *logging.Logger
	inflight sync.WaitGroup
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 20 * time.Second
	}
	return &WebhookHandler{cfg: cfg, logger: cfg.Logger.Component("whatsapp_webhook")}
}

// HandleVerification answers the GET subscription challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && h.cfg.VerifyToken != "" && token == h.cfg.VerifyToken {
		h.logger.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		h.cfg.Metrics.ObserveWebhook(http.MethodGet, "verified", time.Since(start))
		return
	}

	h.logger.Warn("webhook verification rejected", "mode", mode)
	h.cfg.Metrics.ObserveWebhook(http.MethodGet, "forbidden", time.Since(start))
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound handles POST webhook notifications.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := webhookTracer.Start(r.Context(), "whatsapp.webhook.inbound")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		h.cfg.Metrics.ObserveWebhook(http.MethodPost, "unreadable", time.Since(start))
		return
	}

	if !h.cfg.SkipSignature && !VerifySignature(h.cfg.AppSecret, body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected", "has_header", r.Header.Get(SignatureHeader) != "")
		http.Error(w, "Forbidden", http.StatusForbidden)
		h.cfg.Metrics.ObserveWebhook(http.MethodPost, "forbidden", time.Since(start))
		return
	}

	outcome := "accepted"
	notification, err := ParseNotification(body)
	if err != nil {
		h.logger.Warn("dropping malformed webhook payload", "error", err, "bytes", len(body))
		outcome = "malformed"
	} else if notification.Object != BusinessAccountObject {
		h.logger.Info("ignoring webhook object", "object", notification.Object)
		outcome = "ignored"
	}

	batches := Normalize(notification, h.cfg.Now())
	span.SetAttributes(attribute.Int("coach.batches", len(batches)))
	for _, batch := range batches {
		for _, evt := range batch.Events {
			h.cfg.Metrics.ObserveEvent(string(evt.Channel), string(evt.Kind))
			if evt.Kind == events.KindUnhandled {
				h.logger.Info("unhandled message type", "type", evt.ProviderType, "message_id", evt.MessageID)
			}
		}
	}

	if h.cfg.Async {
		h.writeAck(w)
		h.dispatchDetached(ctx, batches)
	} else {
		for _, batch := range batches {
			h.deliver(ctx, batch)
		}
		h.writeAck(w)
	}
	h.cfg.Metrics.ObserveWebhook(http.MethodPost, outcome, time.Since(start))
}

// Wait blocks until detached batches have finished.
func (h *WebhookHandler) Wait() {
	h.inflight.Wait()
}

func (h *WebhookHandler) dispatchDetached(ctx context.Context, batches []Batch) {
	if len(batches) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		ctx, cancel := context.WithTimeout(detached, h.cfg.DispatchTimeout)
		defer cancel()
		for _, batch := range batches {
			h.deliver(ctx, batch)
		}
	}()
}

func (h *WebhookHandler) deliver(ctx context.Context, batch Batch) {
	if h.cfg.Sink == nil {
		return
	}
	ctx = session.With(ctx, session.Context{
		Channel:     events.ChannelWhatsApp,
		ChannelID:   batch.ChannelID,
		VerifyToken: h.cfg.VerifyToken,
		Secrets: session.Secrets{
			AppSecret:   h.cfg.AppSecret,
			AccessToken: h.cfg.AccessToken,
		},
	})
	h.cfg.Sink.HandleEvents(ctx, batch.Events)
}

func (h *WebhookHandler) writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Ack{Status: "EVENT_RECEIVED"})
}
