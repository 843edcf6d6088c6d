package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/career-coach/internal/coach"
	appconfig "github.com/wolfman30/career-coach/internal/config"
	"github.com/wolfman30/career-coach/internal/llm"
	"github.com/wolfman30/career-coach/pkg/logging"
)

// GenerationMode picks the router mode implied by config.
func GenerationMode(cfg *appconfig.Config) coach.GenerationMode {
	if cfg != nil && cfg.AIRepliesEnabled {
		return coach.ModeAI
	}
	return coach.ModeCanned
}

// BuildReplyGenerator wires the AI reply generator. The configured provider
// is primary; the other one, when it has credentials, becomes the fallback.
// It returns a nil generator when AI replies are off or nothing is
// configured, which leaves the dispatcher on canned replies.
func BuildReplyGenerator(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*llm.ReplyGenerator, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.AIRepliesEnabled {
		return nil, noop, nil
	}

	var bedrock, gemini llm.Client
	closer := noop
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		bedrock = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, noop, err
		}
		gemini = client
		closer = func() { _ = client.Close() }
	}

	primary, secondary := bedrock, gemini
	if cfg.LLMProvider == "gemini" {
		primary, secondary = gemini, bedrock
	}
	if primary == nil {
		primary, secondary = secondary, nil
	}
	if primary == nil {
		logger.Warn("AI replies enabled but no provider configured; using canned replies")
		return nil, closer, nil
	}

	client := primary
	if secondary != nil {
		client = llm.NewFallbackClient(primary, secondary, logger)
	}
	logger.Info("AI replies enabled", "provider", cfg.LLMProvider, "fallback", secondary != nil)
	return llm.NewReplyGenerator(llm.GeneratorConfig{
		Client:    client,
		Model:     cfg.BedrockModelID,
		System:    coach.SystemPrompt,
		MaxTokens: int32(cfg.LLMMaxTokens),
		Timeout:   cfg.LLMTimeout,
	}), closer, nil
}
