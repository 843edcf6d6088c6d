package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wolfman30/career-coach/internal/errs"
	"github.com/wolfman30/career-coach/internal/events"
	"github.com/wolfman30/career-coach/pkg/logging"
)

// ReplySender delivers one outbound reply.
type ReplySender interface {
	Send(ctx context.Context, reply events.OutboundReply) (string, error)
}

// SendMessageHandler serves POST /send-message and POST /broadcast, direct
// text sends on behalf of an operator.
type SendMessageHandler struct {
	sender        ReplySender
	phoneNumberID string
	logger        *logging.Logger
}

func NewSendMessageHandler(sender ReplySender, phoneNumberID string, logger *logging.Logger) *SendMessageHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendMessageHandler{
		sender:        sender,
		phoneNumberID: phoneNumberID,
		logger:        logger.Component("send_message"),
	}
}

type sendMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

const maxBroadcastRecipients = 100

type broadcastRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

// BroadcastResult is the outcome of one recipient of a broadcast.
type BroadcastResult struct {
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *SendMessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" || strings.TrimSpace(req.Message) == "" {
		writeDetail(w, http.StatusBadRequest, "to and message are required")
		return
	}
	if !h.configured() {
		writeDetail(w, http.StatusInternalServerError, "Missing configuration")
		return
	}

	id, err := h.send(r.Context(), req.To, req.Message)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, failureDetail(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "sent",
		"to":         req.To,
		"message_id": id,
	})
}

// Broadcast serves POST /broadcast: one text to many recipients, sent in
// order with one attempt each. A failed recipient does not stop the rest.
func (h *SendMessageHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Recipients) == 0 || strings.TrimSpace(req.Message) == "" {
		writeDetail(w, http.StatusBadRequest, "recipients and message are required")
		return
	}
	if len(req.Recipients) > maxBroadcastRecipients {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("at most %d recipients per broadcast", maxBroadcastRecipients))
		return
	}
	if !h.configured() {
		writeDetail(w, http.StatusInternalServerError, "Missing configuration")
		return
	}

	results := make([]BroadcastResult, 0, len(req.Recipients))
	sent := 0
	for _, recipient := range req.Recipients {
		recipient = strings.TrimSpace(recipient)
		result := BroadcastResult{Recipient: recipient}
		if recipient == "" {
			result.Status, result.Error = "failed", "recipient is required"
			results = append(results, result)
			continue
		}
		id, err := h.send(r.Context(), recipient, req.Message)
		if err != nil {
			result.Status, result.Error = "failed", failureDetail(err)
		} else {
			result.Status, result.MessageID = "sent", id
			sent++
		}
		results = append(results, result)
	}
	h.logger.Info("broadcast finished", "recipients", len(results), "sent", sent)
	writeJSON(w, http.StatusOK, map[string][]BroadcastResult{"results": results})
}

func (h *SendMessageHandler) configured() bool {
	return h.sender != nil && h.phoneNumberID != ""
}

func (h *SendMessageHandler) send(ctx context.Context, to, text string) (string, error) {
	id, err := h.sender.Send(ctx, events.OutboundReply{
		Target:    to,
		ChannelID: h.phoneNumberID,
		Kind:      events.ReplyText,
		Text:      text,
	})
	if err != nil {
		h.logger.Error("direct send failed",
			"to", logging.MaskPhone(to),
			"error_kind", errs.Kind(err),
			"error", err,
		)
	}
	return id, err
}

func failureDetail(err error) string {
	if errors.Is(err, errs.ErrNotInitialized) {
		return "Missing configuration"
	}
	return "Failed to send message"
}
