package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/career-coach/internal/calls"
	"github.com/wolfman30/career-coach/pkg/logging"
)

// CallEnqueuer queues an outbound coaching call.
type CallEnqueuer interface {
	Enqueue(ctx context.Context, phoneNumber string) (calls.DispatchJob, error)
}

// CallsConfig wires CallsHandler.
type CallsConfig struct {
	Enqueuer CallEnqueuer
	Store    calls.Store
	Signals  calls.Signals
	Logger   *logging.Logger
	Now      func() time.Time
}

// CallsHandler serves the call dispatch and session endpoints.
type CallsHandler struct {
	enqueuer CallEnqueuer
	store    calls.Store
	signals  calls.Signals
	logger   *logging.Logger
	now      func() time.Time
}

func NewCallsHandler(cfg CallsConfig) *CallsHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CallsHandler{
		enqueuer: cfg.Enqueuer,
		store:    cfg.Store,
		signals:  cfg.Signals,
		logger:   cfg.Logger.Component("calls_api"),
		now:      cfg.Now,
	}
}

type createCallRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// Create handles POST /calls.
func (h *CallsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.enqueuer == nil {
		writeDetail(w, http.StatusServiceUnavailable, "call dispatch not configured")
		return
	}
	job, err := h.enqueuer.Enqueue(r.Context(), strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		if errors.Is(err, calls.ErrInvalidDestination) {
			writeDetail(w, http.StatusBadRequest, "phone number must start with + and country code")
			return
		}
		h.logger.Error("failed to enqueue call", "error", err)
		writeDetail(w, http.StatusInternalServerError, "failed to queue call")
		return
	}
	h.logger.Info("call queued", "room_id", job.RoomName, "job_id", job.ID,
		"to", logging.MaskPhone(req.PhoneNumber))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "queued",
		"room_id": job.RoomName,
		"job_id":  job.ID,
	})
}

// Get handles GET /calls/{roomID}.
func (h *CallsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Complete handles POST /calls/{roomID}/complete, reported by the voice agent
// when the conversation is over.
func (h *CallsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if sess.State.Terminal() || sess.State == calls.StateEnding {
		writeDetail(w, http.StatusConflict, "call already "+string(sess.State))
		return
	}
	if h.signals == nil {
		writeDetail(w, http.StatusServiceUnavailable, "call signals not configured")
		return
	}
	sig := calls.Signal{Room: sess.RoomID, Kind: calls.SignalSessionEnded, At: h.now().UTC()}
	if err := h.signals.Publish(r.Context(), sig); err != nil {
		h.logger.Error("failed to publish session end", "room_id", sess.RoomID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "failed to end call")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ending", "room_id": sess.RoomID})
}

func (h *CallsHandler) lookup(w http.ResponseWriter, r *http.Request) (*calls.CallSession, bool) {
	room := chi.URLParam(r, "roomID")
	if room == "" {
		writeDetail(w, http.StatusBadRequest, "room id is required")
		return nil, false
	}
	if h.store == nil {
		writeDetail(w, http.StatusServiceUnavailable, "call store not configured")
		return nil, false
	}
	sess, err := h.store.Get(r.Context(), room)
	if err != nil {
		if errors.Is(err, calls.ErrSessionNotFound) {
			writeDetail(w, http.StatusNotFound, "call not found")
			return nil, false
		}
		h.logger.Error("failed to load call", "room_id", room, "error", err)
		writeDetail(w, http.StatusInternalServerError, "failed to load call")
		return nil, false
	}
	return sess, true
}
