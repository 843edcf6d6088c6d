package llm

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/career-coach/internal/errs"
)

var generatorTracer = otel.Tracer("coach.internal.llm.generator")

// GeneratorConfig configures a ReplyGenerator.
type GeneratorConfig struct {
	Client    Client
	Model     string
	System    string
	MaxTokens int32
	Timeout   time.Duration
}

// ReplyGenerator turns one user message into a coaching reply.
type ReplyGenerator struct {
	client    Client
	model     string
	system    string
	maxTokens int32
	timeout   time.Duration
}

func NewReplyGenerator(cfg GeneratorConfig) *ReplyGenerator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	return &ReplyGenerator{
		client:    cfg.Client,
		model:     cfg.Model,
		system:    cfg.System,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

// GenerateReply returns provider text for prompt. Every failure wraps
// errs.ErrDownstreamUnavailable, or errs.ErrNotInitialized without a client.
func (g *ReplyGenerator) GenerateReply(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.client == nil {
		return "", errs.NotInitialized("llm generator")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ctx, span := generatorTracer.Start(ctx, "llm.generate_reply")
	defer span.End()
	span.SetAttributes(attribute.String("coach.model", g.model), attribute.Int("coach.prompt_len", len(prompt)))

	var system []string
	if g.system != "" {
		system = []string{g.system}
	}
	resp, err := g.client.Complete(ctx, Request{
		Model:       g.model,
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   g.maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		span.RecordError(err)
		return "", errs.Downstream("llm: generate reply", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errs.Downstream("llm: generate reply: empty text", nil)
	}
	return text, nil
}
