package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/career-coach/internal/events"
)

func TestWithAndFrom(t *testing.T) {
	ctx := With(context.Background(), Context{
		Channel:   events.ChannelWhatsApp,
		ChannelID: "phone-1",
		Secrets:   Secrets{AccessToken: "token"},
	})

	sc, ok := From(ctx)
	assert.True(t, ok)
	assert.Equal(t, "phone-1", sc.ChannelID)
	assert.Equal(t, "token", sc.Secrets.AccessToken)
}

func TestFromMissing(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), sessionKey, "not a session")
	_, ok = From(ctx)
	assert.False(t, ok)
}

func TestChannelIDFallback(t *testing.T) {
	assert.Equal(t, "default", ChannelID(context.Background(), "default"))

	ctx := With(context.Background(), Context{ChannelID: "room-9"})
	assert.Equal(t, "room-9", ChannelID(ctx, "default"))

	ctx = With(context.Background(), Context{})
	assert.Equal(t, "default", ChannelID(ctx, "default"))
}

func TestNestedContextsDoNotLeak(t *testing.T) {
	parent := With(context.Background(), Context{ChannelID: "a"})
	child := With(parent, Context{ChannelID: "b"})

	assert.Equal(t, "a", ChannelID(parent, ""))
	assert.Equal(t, "b", ChannelID(child, ""))
}
