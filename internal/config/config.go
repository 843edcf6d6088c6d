package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// WhatsApp Cloud API
	WhatsAppPhoneID        string
	WhatsAppAccessToken    string
	WhatsAppAppSecret      string
	WhatsAppVerifyToken    string
	GraphAPIURL            string
	SkipSignatureCheck     bool
	WebhookAsyncDispatch   bool
	WebhookDispatchTimeout time.Duration

	// Reply generation
	AIRepliesEnabled bool
	LLMProvider      string
	BedrockModelID   string
	GeminiAPIKey     string
	GeminiModelID    string
	LLMTimeout       time.Duration
	LLMMaxTokens     int

	// LiveKit
	LiveKitURL        string
	LiveKitAPIKey     string
	LiveKitAPISecret  string
	LiveKitSIPTrunkID string
	LiveKitAgentName  string

	RecordingDir string
	RecordingExt string

	// Call workers
	UseMemoryQueue         bool
	CallQueueURL           string
	CallStore              string
	CallSessionsTable      string
	CallSignals            string
	CallWorkerCount        int
	MaxConcurrentCalls     int
	ParticipantWaitTimeout time.Duration
	CallSessionMaxDuration time.Duration
	CallArchiveBucket      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	DatabaseURL    string
	AdminJWTSecret string
	AdminRateLimit int
	AdminRateBurst int
}

// LoadDotEnv loads a .env file when one exists. Variables already present in
// the environment win.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		WhatsAppPhoneID:        getEnv("PHONE_ID", ""),
		WhatsAppAccessToken:    getEnv("ACCESS_TOKEN", ""),
		WhatsAppAppSecret:      getEnv("APP_SECRET", ""),
		WhatsAppVerifyToken:    getEnv("VERIFY_TOKEN", "career_coach_verify_token"),
		GraphAPIURL:            strings.TrimRight(getEnv("GRAPH_API_URL", "https://graph.facebook.com/v18.0"), "/"),
		SkipSignatureCheck:     getEnvAsBool("WHATSAPP_SKIP_SIGNATURE", false),
		WebhookAsyncDispatch:   getEnvAsBool("WEBHOOK_ASYNC_DISPATCH", false),
		WebhookDispatchTimeout: getEnvAsDuration("WEBHOOK_DISPATCH_TIMEOUT", 20*time.Second),

		AIRepliesEnabled: getEnvAsBool("AI_REPLIES_ENABLED", false),
		LLMProvider:      strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMTimeout:       getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
		LLMMaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 400),

		LiveKitURL:        strings.TrimRight(getEnv("LIVEKIT_URL", ""), "/"),
		LiveKitAPIKey:     getEnv("LIVEKIT_API_KEY", ""),
		LiveKitAPISecret:  getEnv("LIVEKIT_API_SECRET", ""),
		LiveKitSIPTrunkID: getEnv("LIVEKIT_SIP_TRUNK_ID", ""),
		LiveKitAgentName:  getEnv("LIVEKIT_AGENT_NAME", "career-guidance-agent"),

		RecordingDir: getEnv("RECORDING_DIR", "recordings"),
		RecordingExt: strings.TrimPrefix(getEnv("RECORDING_EXT", "mp4"), "."),

		UseMemoryQueue:         getEnvAsBool("USE_MEMORY_QUEUE", true),
		CallQueueURL:           getEnv("CALL_QUEUE_URL", ""),
		CallStore:              strings.ToLower(strings.TrimSpace(getEnv("CALL_STORE", "memory"))),
		CallSessionsTable:      getEnv("CALL_SESSIONS_TABLE", "call_sessions"),
		CallSignals:            strings.ToLower(strings.TrimSpace(getEnv("CALL_SIGNALS", "memory"))),
		CallWorkerCount:        getEnvAsInt("CALL_WORKER_COUNT", 2),
		MaxConcurrentCalls:     getEnvAsInt("MAX_CONCURRENT_CALLS", 16),
		ParticipantWaitTimeout: getEnvAsDuration("PARTICIPANT_WAIT_TIMEOUT", 2*time.Minute),
		CallSessionMaxDuration: getEnvAsDuration("CALL_SESSION_MAX_DURATION", time.Hour),
		CallArchiveBucket:      getEnv("CALL_ARCHIVE_BUCKET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AdminRateLimit: getEnvAsInt("ADMIN_RATE_LIMIT", 5),
		AdminRateBurst: getEnvAsInt("ADMIN_RATE_BURST", 10),
	}
}

// WhatsAppReady reports whether outbound WhatsApp sends can be made.
func (c *Config) WhatsAppReady() bool {
	return strings.TrimSpace(c.WhatsAppPhoneID) != "" && strings.TrimSpace(c.WhatsAppAccessToken) != ""
}

// LiveKitReady reports whether the voice platform credentials are complete.
func (c *Config) LiveKitReady() bool {
	return c.LiveKitURL != "" && c.LiveKitAPIKey != "" && c.LiveKitAPISecret != ""
}

// Missing lists the credential variables that are unset. Components that
// depend on them stay inert.
func (c *Config) Missing() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("PHONE_ID", c.WhatsAppPhoneID)
	check("ACCESS_TOKEN", c.WhatsAppAccessToken)
	if !c.SkipSignatureCheck {
		check("APP_SECRET", c.WhatsAppAppSecret)
	}
	check("LIVEKIT_URL", c.LiveKitURL)
	check("LIVEKIT_API_KEY", c.LiveKitAPIKey)
	check("LIVEKIT_API_SECRET", c.LiveKitAPISecret)
	check("LIVEKIT_SIP_TRUNK_ID", c.LiveKitSIPTrunkID)
	if c.AIRepliesEnabled {
		switch c.LLMProvider {
		case "gemini":
			check("GEMINI_API_KEY", c.GeminiAPIKey)
		default:
			check("BEDROCK_MODEL_ID", c.BedrockModelID)
		}
	}
	return missing
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
