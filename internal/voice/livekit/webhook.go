package livekit

import (
	"net/http"
	"time"

	"github.com/livekit/protocol/auth"
	lkproto "github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/wolfman30/career-coach/internal/calls"
	"github.com/wolfman30/career-coach/pkg/logging"
)

const maxWebhookBody = 1 << 20

var signalKinds = map[string]calls.SignalKind{
	"participant_joined": calls.SignalParticipantJoined,
	"participant_left":   calls.SignalParticipantLeft,
	"room_finished":      calls.SignalRoomFinished,
}

var webhookJSON = protojson.UnmarshalOptions{DiscardUnknown: true}

// WebhookHandler verifies LiveKit webhooks and republishes room events as
// call signals.
type WebhookHandler struct {
	keys    auth.KeyProvider
	signals calls.Signals
	logger  *logging.Logger
	now     func() time.Time
}

func NewWebhookHandler(apiKey, apiSecret string, signals calls.Signals, logger *logging.Logger) *WebhookHandler {
	h := &WebhookHandler{
		signals: signals,
		logger:  logger.Component("livekit-webhook"),
		now:     time.Now,
	}
	if apiKey != "" && apiSecret != "" {
		h.keys = auth.NewSimpleKeyProvider(apiKey, apiSecret)
	}
	return h
}

// EventSignal maps evt to a call signal. ok is false for events the call
// lifecycle ignores.
func EventSignal(evt *lkproto.WebhookEvent, now time.Time) (calls.Signal, bool) {
	kind, ok := signalKinds[evt.GetEvent()]
	room := evt.GetRoom().GetName()
	if !ok || room == "" {
		return calls.Signal{}, false
	}
	sig := calls.Signal{
		Room:     room,
		Kind:     kind,
		Identity: evt.GetParticipant().GetIdentity(),
		At:       now.UTC(),
	}
	if secs := evt.GetCreatedAt(); secs > 0 {
		sig.At = time.Unix(secs, 0).UTC()
	}
	return sig, true
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.keys == nil {
		http.Error(w, "livekit webhooks not configured", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	body, err := webhook.Receive(r, h.keys)
	if err != nil {
		h.logger.Warn("rejected livekit webhook", "error", err)
		http.Error(w, "invalid webhook signature", http.StatusUnauthorized)
		return
	}

	var evt lkproto.WebhookEvent
	if err := webhookJSON.Unmarshal(body, &evt); err != nil {
		h.logger.Warn("malformed livekit webhook", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	sig, ok := EventSignal(&evt, h.now())
	if !ok {
		h.logger.Debug("ignoring livekit event", "event", evt.GetEvent(), "id", evt.GetId())
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := h.signals.Publish(r.Context(), sig); err != nil {
		// LiveKit retries on non-2xx.
		h.logger.Error("failed to publish call signal", "event", evt.GetEvent(), "room", sig.Room, "error", err)
		http.Error(w, "failed to publish signal", http.StatusInternalServerError)
		return
	}
	h.logger.Info("call signal published", "event", evt.GetEvent(), "room", sig.Room, "identity", sig.Identity)
	w.WriteHeader(http.StatusOK)
}
