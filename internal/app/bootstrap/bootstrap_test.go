package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/career-coach/internal/calls"
	"github.com/wolfman30/career-coach/internal/coach"
	appconfig "github.com/wolfman30/career-coach/internal/config"
	"github.com/wolfman30/career-coach/internal/events"
	"github.com/wolfman30/career-coach/pkg/logging"
)

var testAWS = aws.Config{Region: "us-east-1"}

func TestBuildRedisClient(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, BuildRedisClient(ctx, &appconfig.Config{}, nil, true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(ctx, &appconfig.Config{RedisAddr: mr.Addr()}, logging.Default(), true)
	require.NotNil(t, client)
	defer client.Close()
	assert.NoError(t, client.Ping(ctx).Err())

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, BuildRedisClient(ctx, &appconfig.Config{RedisAddr: addr}, nil, true))
}

func TestBuildDeduperDefaultsToMemory(t *testing.T) {
	deduper, closeFn, err := BuildDeduper(context.Background(), &appconfig.Config{}, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &events.MemoryProcessedStore{}, deduper)
}

func TestBuildCallRuntimeDefaults(t *testing.T) {
	rt, err := BuildCallRuntime(&appconfig.Config{UseMemoryQueue: true}, testAWS, nil, nil)
	require.NoError(t, err)

	assert.IsType(t, &calls.MemoryStore{}, rt.Store)
	assert.IsType(t, &calls.MemorySignals{}, rt.Signals)
	assert.IsType(t, &calls.MemoryQueue{}, rt.Queue)
	assert.True(t, rt.InProcess)
	assert.Nil(t, rt.Archiver)
	assert.False(t, rt.Voice.Ready())
	assert.NotNil(t, rt.Publisher)
}

func TestBuildCallRuntimeBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	defer rdb.Close()

	rt, err := BuildCallRuntime(&appconfig.Config{
		CallStore:         "redis",
		CallSignals:       "redis",
		CallQueueURL:      "https://sqs.us-east-1.amazonaws.com/123/calls",
		CallArchiveBucket: "coach-archive",
		LiveKitURL:        "wss://coach.livekit.cloud",
		LiveKitAPIKey:     "key",
		LiveKitAPISecret:  "secret",
	}, testAWS, rdb, logging.Default())
	require.NoError(t, err)

	assert.IsType(t, &calls.RedisStore{}, rt.Store)
	assert.IsType(t, &calls.RedisSignals{}, rt.Signals)
	assert.IsType(t, &calls.SQSQueue{}, rt.Queue)
	assert.False(t, rt.InProcess)
	assert.True(t, rt.Archiver.Enabled())
	assert.True(t, rt.Voice.Ready())

	rt, err = BuildCallRuntime(&appconfig.Config{CallStore: "dynamodb", CallSessionsTable: "call_sessions"}, testAWS, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &calls.DynamoStore{}, rt.Store)
}

func TestBuildCallRuntimeRejectsBadSelection(t *testing.T) {
	cases := []*appconfig.Config{
		{CallStore: "redis"},
		{CallSignals: "redis"},
		{CallStore: "cassandra"},
		{CallSignals: "kafka"},
	}
	for _, cfg := range cases {
		_, err := BuildCallRuntime(cfg, testAWS, nil, nil)
		assert.Error(t, err, "store=%q signals=%q", cfg.CallStore, cfg.CallSignals)
	}
	_, err := BuildCallRuntime(nil, testAWS, nil, nil)
	assert.Error(t, err)
}

func TestCallRuntimeOrchestrator(t *testing.T) {
	rt, err := BuildCallRuntime(&appconfig.Config{}, testAWS, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, rt.Orchestrator(&appconfig.Config{RecordingDir: "recordings"}, logging.Default(), nil))
}

func TestBuildReplyGenerator(t *testing.T) {
	ctx := context.Background()

	gen, closeFn, err := BuildReplyGenerator(ctx, &appconfig.Config{}, testAWS, nil)
	require.NoError(t, err)
	closeFn()
	assert.Nil(t, gen)

	gen, closeFn, err = BuildReplyGenerator(ctx, &appconfig.Config{AIRepliesEnabled: true}, testAWS, nil)
	require.NoError(t, err)
	closeFn()
	assert.Nil(t, gen, "no provider configured")

	gen, closeFn, err = BuildReplyGenerator(ctx, &appconfig.Config{
		AIRepliesEnabled: true,
		LLMProvider:      "bedrock",
		BedrockModelID:   "anthropic.claude-3-haiku",
		LLMMaxTokens:     300,
	}, testAWS, logging.Default())
	require.NoError(t, err)
	closeFn()
	assert.NotNil(t, gen)

	_, _, err = BuildReplyGenerator(ctx, nil, testAWS, nil)
	assert.Error(t, err)
}

func TestGenerationMode(t *testing.T) {
	assert.Equal(t, coach.ModeCanned, GenerationMode(&appconfig.Config{}))
	assert.Equal(t, coach.ModeAI, GenerationMode(&appconfig.Config{AIRepliesEnabled: true}))
	assert.Equal(t, coach.ModeCanned, GenerationMode(nil))
}

func TestBuildWhatsAppClient(t *testing.T) {
	assert.False(t, BuildWhatsAppClient(&appconfig.Config{}, logging.Default()).Ready())
	assert.True(t, BuildWhatsAppClient(&appconfig.Config{
		WhatsAppAccessToken: "token",
		WhatsAppPhoneID:     "PN1",
		GraphAPIURL:         "https://graph.example.test/v18.0",
	}, nil).Ready())
}
