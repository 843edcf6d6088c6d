// Package session carries per-request channel metadata through dispatch.
package session

import (
	"context"

	"github.com/wolfman30/career-coach/internal/events"
)

type ctxKey string

const sessionKey ctxKey = "coach.session"

// Secrets are the credentials one request may need downstream.
type Secrets struct {
	AppSecret   string
	AccessToken string
}

// Context is scoped to one webhook change or one call. ChannelID is the
// WhatsApp phone number id or the LiveKit room name.
type Context struct {
	Channel     events.Channel
	ChannelID   string
	VerifyToken string
	Secrets     Secrets
}

// With stores sc in ctx.
func With(ctx context.Context, sc Context) context.Context {
	return context.WithValue(ctx, sessionKey, sc)
}

// From extracts the session context if present.
func From(ctx context.Context) (Context, bool) {
	sc, ok := ctx.Value(sessionKey).(Context)
	return sc, ok
}

// ChannelID returns the channel id stored in ctx, or fallback.
func ChannelID(ctx context.Context, fallback string) string {
	if sc, ok := From(ctx); ok && sc.ChannelID != "" {
		return sc.ChannelID
	}
	return fallback
}
