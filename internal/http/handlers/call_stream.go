package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/career-coach/internal/calls"
	"github.com/wolfman30/career-coach/pkg/logging"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = streamPongWait * 9 / 10
)

// StreamFrame is one message pushed to a call stream client.
type StreamFrame struct {
	Type    string             `json:"type"` // "session", "signal", "error"
	Signal  *calls.Signal      `json:"signal,omitempty"`
	Session *calls.CallSession `json:"session,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// CallStreamHandler serves GET /calls/{roomID}/stream. It pushes the session
// on connect, on every room signal, and whenever a poll sees a new state, and
// closes the socket once the session is terminal.
type CallStreamHandler struct {
	store        calls.Store
	signals      calls.Signals
	logger       *logging.Logger
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

func NewCallStreamHandler(store calls.Store, signals calls.Signals, logger *logging.Logger, pollInterval time.Duration) *CallStreamHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &CallStreamHandler{
		store:        store,
		signals:      signals,
		logger:       logger.Component("call_stream"),
		pollInterval: pollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// operator tooling only, the route is behind admin auth
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *CallStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "roomID")
	if h.store == nil {
		writeDetail(w, http.StatusServiceUnavailable, "call store not configured")
		return
	}
	sess, err := h.store.Get(r.Context(), room)
	if err != nil {
		if errors.Is(err, calls.ErrSessionNotFound) {
			writeDetail(w, http.StatusNotFound, "call not found")
			return
		}
		writeDetail(w, http.StatusInternalServerError, "failed to load call")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "room_id", room, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readPump(conn, cancel)

	if err := h.write(conn, StreamFrame{Type: "session", Session: sess}); err != nil {
		return
	}
	if sess.State.Terminal() {
		h.close(conn)
		return
	}

	signals := h.forwardSignals(ctx, room)
	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()
	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	last := sess.State
	for {
		var frame *StreamFrame
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
			continue
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if err := h.write(conn, StreamFrame{Type: "signal", Signal: &sig}); err != nil {
				return
			}
			frame = &StreamFrame{Type: "session"}
		case <-poll.C:
		}

		current, err := h.store.Get(ctx, room)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Warn("call stream refresh failed", "room_id", room, "error", err)
			continue
		}
		if frame == nil && current.State == last {
			continue
		}
		last = current.State
		if err := h.write(conn, StreamFrame{Type: "session", Session: current}); err != nil {
			return
		}
		if current.State.Terminal() {
			h.close(conn)
			return
		}
	}
}

// forwardSignals relays the room's signals until ctx is done. The channel is
// nil when no signal source is configured.
func (h *CallStreamHandler) forwardSignals(ctx context.Context, room string) <-chan calls.Signal {
	if h.signals == nil {
		return nil
	}
	sub, err := h.signals.Subscribe(ctx, room)
	if err != nil {
		h.logger.Warn("call stream subscribe failed", "room_id", room, "error", err)
		return nil
	}
	out := make(chan calls.Signal)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			sig, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- sig:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// readPump drains client frames so control messages are processed, and
// cancels the stream when the client goes away.
func (h *CallStreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *CallStreamHandler) write(conn *websocket.Conn, frame StreamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Debug("call stream write failed", "error", err)
		return err
	}
	return nil
}

func (h *CallStreamHandler) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
