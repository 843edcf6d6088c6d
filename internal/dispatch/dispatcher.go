// Package dispatch turns routed events into outbound replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/career-coach/internal/coach"
	"github.com/wolfman30/career-coach/internal/errs"
	"github.com/wolfman30/career-coach/internal/events"
	"github.com/wolfman30/career-coach/internal/observability/metrics"
	"github.com/wolfman30/career-coach/internal/session"
	"github.com/wolfman30/career-coach/pkg/logging"
)

// Sender delivers one reply and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, reply events.OutboundReply) (string, error)
}

// Generator produces AI text for a prompt.
type Generator interface {
	GenerateReply(ctx context.Context, prompt string) (string, error)
}

// Config wires a Dispatcher.
type Config struct {
	Router    *coach.Router
	Sender    Sender
	Generator Generator
	// Deduper skips units already handled. Optional.
	Deduper events.Deduper
	Logger  *logging.Logger
	Metrics *metrics.MessagingMetrics
}

// Decision is the materialized outcome for one event.
type Decision struct {
	Action coach.Action
	// Reply is nil when the action sends nothing.
	Reply *events.OutboundReply
	// Generated is true when Reply.Text came from the AI generator.
	Generated bool
}

// Dispatcher routes events and sends the resulting replies.
type Dispatcher struct {
	router    *coach.Router
	sender    Sender
	generator Generator
	deduper   events.Deduper
	logger    *logging.Logger
	metrics   *metrics.MessagingMetrics
}

func New(cfg Config) *Dispatcher {
	if cfg.Router == nil {
		cfg.Router = coach.NewRouter(coach.ModeCanned)
	}
	return &Dispatcher{
		router:    cfg.Router,
		sender:    cfg.Sender,
		generator: cfg.Generator,
		deduper:   cfg.Deduper,
		logger:    cfg.Logger.Component("dispatch"),
		metrics:   cfg.Metrics,
	}
}

// HandleEvents processes evts in order. Failures are logged and do not stop
// later events.
func (d *Dispatcher) HandleEvents(ctx context.Context, evts []events.InboundEvent) {
	for _, evt := range evts {
		if err := d.HandleEvent(ctx, evt); err != nil {
			d.logger.Error("event dispatch failed",
				"event_kind", evt.Kind,
				"message_id", evt.MessageID,
				"error_kind", errs.Kind(err),
				"error", err,
			)
		}
	}
}

// HandleEvent routes and replies to a single event.
func (d *Dispatcher) HandleEvent(ctx context.Context, evt events.InboundEvent) error {
	key := evt.DedupeKey()
	provider := string(evt.Channel)
	if d.deduper != nil && key != "" {
		seen, err := d.deduper.AlreadyProcessed(ctx, provider, key)
		if err != nil {
			d.logger.Warn("dedupe lookup failed, processing anyway", "message_id", evt.MessageID, "error", err)
		} else if seen {
			d.logger.Info("skipping redelivered event", "message_id", evt.MessageID, "event_kind", evt.Kind)
			return nil
		}
	}

	decision := d.Decide(ctx, evt)
	d.metrics.ObserveAction(string(decision.Action.Kind))

	if decision.Reply == nil {
		if decision.Action.Kind == coach.ActionStartCall {
			d.logger.Warn("call start requested outside the call worker", "channel", evt.Channel)
		} else {
			d.logger.Debug("no reply for event", "event_kind", evt.Kind, "reason", decision.Action.Reason)
		}
		d.markProcessed(ctx, provider, key)
		return nil
	}

	if _, err := d.Send(ctx, *decision.Reply); err != nil {
		return err
	}
	d.markProcessed(ctx, provider, key)
	return nil
}

// Decide routes evt and builds its reply, calling the generator for AI mode
// career questions. Generator failures fall back to the canned reply.
func (d *Dispatcher) Decide(ctx context.Context, evt events.InboundEvent) Decision {
	action := d.router.Route(evt)
	decision := Decision{Action: action}

	channelID := evt.ChannelID
	if channelID == "" {
		channelID = session.ChannelID(ctx, "")
	}
	reply, ok := action.Reply(evt.Sender, channelID)
	if !ok {
		return decision
	}

	if action.Kind == coach.ActionGenerateReply {
		if action.Mode == coach.ModeAI {
			text, err := d.generate(ctx, action.Prompt)
			if err != nil {
				d.logger.Warn("reply generation failed, using canned advice",
					"message_id", evt.MessageID,
					"error_kind", errs.Kind(err),
					"error", err,
				)
				d.metrics.ObserveGeneration(string(action.Mode), "fallback")
			} else {
				reply.Text = text
				decision.Generated = true
				d.metrics.ObserveGeneration(string(action.Mode), "ok")
			}
		} else {
			d.metrics.ObserveGeneration(string(action.Mode), "ok")
		}
	}

	decision.Reply = &reply
	return decision
}

// Send delivers reply with exactly one sender call.
func (d *Dispatcher) Send(ctx context.Context, reply events.OutboundReply) (string, error) {
	if d.sender == nil {
		return "", errs.NotInitialized("reply sender")
	}
	start := time.Now()
	id, err := d.sender.Send(ctx, reply)
	elapsed := time.Since(start)
	if err != nil {
		d.metrics.ObserveReply(string(reply.Kind), errs.Kind(err), elapsed)
		return "", fmt.Errorf("dispatch: send %s reply: %w", reply.Kind, err)
	}
	d.metrics.ObserveReply(string(reply.Kind), "sent", elapsed)
	d.logger.Info("reply sent",
		"kind", reply.Kind,
		"channel_id", reply.ChannelID,
		"message_id", id,
		"duration_ms", elapsed.Milliseconds(),
	)
	return id, nil
}

func (d *Dispatcher) generate(ctx context.Context, prompt string) (string, error) {
	if d.generator == nil {
		return "", errs.NotInitialized("reply generator")
	}
	text, err := d.generator.GenerateReply(ctx, prompt)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("dispatch: generator returned empty text")
	}
	return text, nil
}

func (d *Dispatcher) markProcessed(ctx context.Context, provider, key string) {
	if d.deduper == nil || key == "" {
		return
	}
	if _, err := d.deduper.MarkProcessed(ctx, provider, key); err != nil {
		d.logger.Warn("failed to mark event processed", "event_id", key, "error", err)
	}
}
