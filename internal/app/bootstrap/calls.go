package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/career-coach/internal/calls"
	appconfig "github.com/wolfman30/career-coach/internal/config"
	"github.com/wolfman30/career-coach/internal/observability/metrics"
	"github.com/wolfman30/career-coach/internal/voice/livekit"
	"github.com/wolfman30/career-coach/pkg/logging"
)

const memoryQueueBuffer = 64

// CallRuntime is the call dispatch plumbing selected by config.
type CallRuntime struct {
	Store     calls.Store
	Signals   calls.Signals
	Queue     calls.Queue
	Publisher *calls.Publisher
	Archiver  *calls.Archiver
	Voice     *livekit.Client
	// InProcess is true when jobs travel over a memory queue and the worker
	// must run inside the publishing process.
	InProcess bool
}

// BuildCallRuntime picks the session store, signal bus, and dispatch queue.
// rdb may be nil unless CALL_STORE or CALL_SIGNALS asks for redis.
func BuildCallRuntime(cfg *appconfig.Config, awsCfg aws.Config, rdb *redis.Client, logger *logging.Logger) (*CallRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	rt := &CallRuntime{}
	switch cfg.CallStore {
	case "", "memory":
		rt.Store = calls.NewMemoryStore()
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("bootstrap: CALL_STORE=redis requires REDIS_ADDR")
		}
		rt.Store = calls.NewRedisStore(rdb)
	case "dynamodb":
		rt.Store = calls.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.CallSessionsTable)
	default:
		return nil, fmt.Errorf("bootstrap: unknown CALL_STORE %q", cfg.CallStore)
	}

	switch cfg.CallSignals {
	case "", "memory":
		rt.Signals = calls.NewMemorySignals()
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("bootstrap: CALL_SIGNALS=redis requires REDIS_ADDR")
		}
		rt.Signals = calls.NewRedisSignals(rdb)
	default:
		return nil, fmt.Errorf("bootstrap: unknown CALL_SIGNALS %q", cfg.CallSignals)
	}

	if cfg.UseMemoryQueue || cfg.CallQueueURL == "" {
		rt.Queue = calls.NewMemoryQueue(memoryQueueBuffer)
		rt.InProcess = true
	} else {
		rt.Queue = calls.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.CallQueueURL)
	}
	rt.Publisher = calls.NewPublisher(rt.Queue, logger)

	if cfg.CallArchiveBucket != "" {
		rt.Archiver = calls.NewArchiver(s3.NewFromConfig(awsCfg), cfg.CallArchiveBucket, logger)
	}

	rt.Voice = livekit.NewClient(livekit.Config{
		URL:        cfg.LiveKitURL,
		APIKey:     cfg.LiveKitAPIKey,
		APISecret:  cfg.LiveKitAPISecret,
		SIPTrunkID: cfg.LiveKitSIPTrunkID,
		AgentName:  cfg.LiveKitAgentName,
	})
	if !rt.Voice.Ready() {
		logger.Warn("livekit credentials missing; calls will fail until configured")
	}

	logger.Info("call runtime configured",
		"store", storeName(cfg.CallStore),
		"signals", storeName(cfg.CallSignals),
		"in_process_queue", rt.InProcess,
		"archive", rt.Archiver.Enabled(),
	)
	return rt, nil
}

// Orchestrator builds the call state machine over the runtime's plumbing.
func (rt *CallRuntime) Orchestrator(cfg *appconfig.Config, logger *logging.Logger, m *metrics.CallMetrics) *calls.Orchestrator {
	return calls.NewOrchestrator(calls.OrchestratorConfig{
		Dialer:          rt.Voice,
		Recorder:        rt.Voice,
		Rooms:           rt.Voice,
		Agents:          rt.Voice,
		Signals:         rt.Signals,
		Store:           rt.Store,
		Archiver:        rt.Archiver,
		RecordingDir:    cfg.RecordingDir,
		RecordingExt:    cfg.RecordingExt,
		ParticipantWait: cfg.ParticipantWaitTimeout,
		MaxDuration:     cfg.CallSessionMaxDuration,
		Logger:          logger,
		Metrics:         m,
	})
}

func storeName(v string) string {
	if v == "" {
		return "memory"
	}
	return v
}
