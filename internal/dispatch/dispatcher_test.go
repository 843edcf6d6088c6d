package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/career-coach/internal/coach"
	"github.com/wolfman30/career-coach/internal/errs"
	"github.com/wolfman30/career-coach/internal/events"
	"github.com/wolfman30/career-coach/internal/session"
	"github.com/wolfman30/career-coach/pkg/logging"
)

type fakeSender struct {
	mu      sync.Mutex
	replies []events.OutboundReply
	errFor  map[string]error
}

func (f *fakeSender) Send(_ context.Context, reply events.OutboundReply) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply)
	if err := f.errFor[reply.Target]; err != nil {
		return "", err
	}
	return "wamid.out", nil
}

func (f *fakeSender) sent() []events.OutboundReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.OutboundReply(nil), f.replies...)
}

type fakeGenerator struct {
	text    string
	err     error
	prompts []string
}

func (g *fakeGenerator) GenerateReply(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.text, g.err
}

func newDispatcher(sender Sender, mode coach.GenerationMode, gen Generator, deduper events.Deduper) *Dispatcher {
	return New(Config{
		Router:    coach.NewRouter(mode),
		Sender:    sender,
		Generator: gen,
		Deduper:   deduper,
		Logger:    logging.New("error"),
	})
}

func text(sender, id, body string) events.InboundEvent {
	return events.InboundEvent{
		Channel:   events.ChannelWhatsApp,
		Kind:      events.KindText,
		Sender:    sender,
		MessageID: id,
		ChannelID: "pn-1",
		BodyText:  body,
	}
}

func TestHandleEventsSendsInOrder(t *testing.T) {
	sender := &fakeSender{}
	d := newDispatcher(sender, coach.ModeCanned, nil, nil)

	d.HandleEvents(context.Background(), []events.InboundEvent{
		text("1", "m1", "hi"),
		{Channel: events.ChannelWhatsApp, Kind: events.KindStatusUpdate, MessageID: "m0", Status: "read"},
		text("2", "m2", "ping"),
		{Channel: events.ChannelWhatsApp, Kind: events.KindButtonReply, Sender: "3", MessageID: "m3", ChannelID: "pn-1", SelectionID: "jobs"},
	})

	replies := sender.sent()
	require.Len(t, replies, 3)
	assert.Equal(t, events.ReplyButtonMenu, replies[0].Kind)
	assert.Equal(t, "1", replies[0].Target)
	assert.Equal(t, "pn-1", replies[0].ChannelID)
	assert.Equal(t, "2", replies[1].Target)
	assert.Contains(t, replies[1].Text, "Webhook Working")
	assert.Contains(t, replies[2].Text, "Job Search Strategy")
}

func TestHandleEventsContinuesAfterSendFailure(t *testing.T) {
	sender := &fakeSender{errFor: map[string]error{"bad": errs.Downstream("whatsapp", errors.New("503"))}}
	d := newDispatcher(sender, coach.ModeCanned, nil, nil)

	d.HandleEvents(context.Background(), []events.InboundEvent{
		text("bad", "m1", "hello"),
		text("good", "m2", "hello"),
	})

	replies := sender.sent()
	require.Len(t, replies, 2)
	assert.Equal(t, "good", replies[1].Target)
}

func TestHandleEventSendsOnce(t *testing.T) {
	sender := &fakeSender{errFor: map[string]error{"1": errors.New("timeout")}}
	d := newDispatcher(sender, coach.ModeCanned, nil, nil)

	err := d.HandleEvent(context.Background(), text("1", "m1", "resume"))
	require.Error(t, err)
	assert.Len(t, sender.sent(), 1)
}

func TestDecideUsesSessionChannel(t *testing.T) {
	d := newDispatcher(&fakeSender{}, coach.ModeCanned, nil, nil)
	evt := text("1", "m1", "hi")
	evt.ChannelID = ""

	ctx := session.With(context.Background(), session.Context{ChannelID: "pn-session"})
	decision := d.Decide(ctx, evt)
	require.NotNil(t, decision.Reply)
	assert.Equal(t, "pn-session", decision.Reply.ChannelID)
}

func TestDecideAIMode(t *testing.T) {
	gen := &fakeGenerator{text: "Talk to your manager about growth."}
	d := newDispatcher(&fakeSender{}, coach.ModeAI, gen, nil)

	decision := d.Decide(context.Background(), text("1", "m1", "my boss ignores me"))
	require.NotNil(t, decision.Reply)
	assert.True(t, decision.Generated)
	assert.Equal(t, "Talk to your manager about growth.", decision.Reply.Text)
	assert.Equal(t, []string{"my boss ignores me"}, gen.prompts)

	staticDecision := d.Decide(context.Background(), text("1", "m2", "resume help"))
	assert.False(t, staticDecision.Generated)
	assert.Len(t, gen.prompts, 1)
}

func TestDecideAIFailureFallsBackToCanned(t *testing.T) {
	for name, gen := range map[string]Generator{
		"error":   &fakeGenerator{err: errs.Downstream("llm", errors.New("throttled"))},
		"empty":   &fakeGenerator{},
		"missing": nil,
	} {
		t.Run(name, func(t *testing.T) {
			d := newDispatcher(&fakeSender{}, coach.ModeAI, gen, nil)
			decision := d.Decide(context.Background(), text("1", "m1", "career switch"))
			require.NotNil(t, decision.Reply)
			assert.False(t, decision.Generated)
			assert.Equal(t, coach.CannedCareerAdvice("career switch"), decision.Reply.Text)
		})
	}
}

func TestDecideCannedModeSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{text: "ai"}
	d := newDispatcher(&fakeSender{}, coach.ModeCanned, gen, nil)

	decision := d.Decide(context.Background(), text("1", "m1", "work life balance"))
	assert.Equal(t, coach.ActionGenerateReply, decision.Action.Kind)
	assert.Equal(t, coach.ModeCanned, decision.Action.Mode)
	assert.Empty(t, gen.prompts)
}

func TestDuplicateDeliveryIdenticalDecision(t *testing.T) {
	d := newDispatcher(&fakeSender{}, coach.ModeCanned, nil, nil)
	evt := text("1", "wamid.same", "hey")

	first := d.Decide(context.Background(), evt)
	second := d.Decide(context.Background(), evt)
	assert.Equal(t, first.Reply, second.Reply)
}

func TestDeduperSkipsRedelivery(t *testing.T) {
	sender := &fakeSender{}
	store := events.NewMemoryProcessedStore(0)
	d := newDispatcher(sender, coach.ModeCanned, nil, store)

	evt := text("1", "wamid.dup", "hi")
	require.NoError(t, d.HandleEvent(context.Background(), evt))
	require.NoError(t, d.HandleEvent(context.Background(), evt))
	assert.Len(t, sender.sent(), 1)
}

func TestDeduperAllowsRetryAfterFailedSend(t *testing.T) {
	sender := &fakeSender{errFor: map[string]error{"1": errors.New("down")}}
	store := events.NewMemoryProcessedStore(0)
	d := newDispatcher(sender, coach.ModeCanned, nil, store)

	evt := text("1", "wamid.retry", "hi")
	require.Error(t, d.HandleEvent(context.Background(), evt))

	sender.errFor = nil
	require.NoError(t, d.HandleEvent(context.Background(), evt))
	assert.Len(t, sender.sent(), 2)
}

func TestSendWithoutSender(t *testing.T) {
	d := New(Config{Logger: logging.New("error")})
	_, err := d.Send(context.Background(), events.OutboundReply{Target: "1", Kind: events.ReplyText, Text: "x"})
	assert.ErrorIs(t, err, errs.ErrNotInitialized)
}

func TestStartCallProducesNoReply(t *testing.T) {
	sender := &fakeSender{}
	d := newDispatcher(sender, coach.ModeCanned, nil, nil)

	require.NoError(t, d.HandleEvent(context.Background(), events.InboundEvent{
		Channel: events.ChannelVoice,
		Kind:    events.KindSessionStart,
		Sender:  "+15550001234",
	}))
	assert.Empty(t, sender.sent())
}
