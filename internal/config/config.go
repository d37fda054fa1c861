// Package config provides environment-based configuration management
// Following .rulesgemini Section 7: Load all config from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DBConfig holds database connection parameters
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// GetDSN returns MariaDB connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// RedisConfig holds Redis connection parameters
type RedisConfig struct {
	Addr string // Format: host:port
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Port        int
	Environment string // development | staging | production
	Version     string
	MeshSecret  string // operator websocket auth, reused from the teacher's LogHub
}

// WebhookConfig holds provider webhook signature/verification settings
type WebhookConfig struct {
	Secret        string // WEBHOOK_SECRET, required outside development
	VerifyToken   string
	AccessToken   string
	PhoneNumberID string
	APIBaseURL    string
}

// DedupeConfig selects the C2 backend and TTLs
type DedupeConfig struct {
	Backend         string // memory | kv | document
	TTL             time.Duration
	OutboundBackend string
}

// QueueConfig selects the task queue backend
type QueueConfig struct {
	Backend       string // memory | push_http
	InternalToken string
	PushBaseURL   string
}

// SessionConfig governs C3 bounds and TTLs
type SessionConfig struct {
	Backend        string
	Timeout        time.Duration
	MaxIntents     int
	MaxHistory     int
}

// FloodConfig governs C4's sliding-window counter
type FloodConfig struct {
	Threshold int64
	Window    time.Duration
}

// LLMConfig governs C6's provider endpoint, per-stage timeouts, and gating
type LLMConfig struct {
	Enabled            bool
	BaseURL            string
	APIKey             string
	Stage1Model        string
	Stage2Model        string
	Stage3Model        string
	Stage1Timeout      time.Duration
	Stage2Timeout      time.Duration
	Stage3Timeout      time.Duration
	DeciderTimeout      time.Duration
	AcceptThreshold     float64
	MinResponseOptions int
}

// CircuitBreakerConfig governs C8's per-endpoint breaker
type CircuitBreakerConfig struct {
	Enabled         bool
	FailMax         int
	ResetTimeout    time.Duration
	HalfOpenMax     int
}

// DispatcherConfig governs C8's retry/backoff policy
type DispatcherConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// ExportConfig governs C9's blob export backend
type ExportConfig struct {
	GCSBucket string
}

// Config aggregates all configuration sections
type Config struct {
	DB       DBConfig
	Redis    RedisConfig
	App      AppConfig
	Webhook  WebhookConfig
	Dedupe   DedupeConfig
	Queue    QueueConfig
	Session  SessionConfig
	Flood    FloodConfig
	LLM      LLMConfig
	Breaker  CircuitBreakerConfig
	Dispatch DispatcherConfig
	Export   ExportConfig
}

// LoadConfig reads configuration from environment variables, validating the
// boot-time invariants spec.md §4.1/§4.2 require: a missing webhook secret
// or an in-memory backend selected outside development is a fatal config
// error, mirroring the teacher's LoadConfig rejecting a missing DB_PASS.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.App.Environment = getEnv("ENVIRONMENT", "development")
	cfg.App.Port = getEnvAsInt("APP_PORT", 8080)
	cfg.App.Version = getEnv("VERSION", "dev")
	cfg.App.MeshSecret = getEnv("MESH_SECRET", "")

	cfg.DB.Host = getEnv("DB_HOST", "chat_os_db")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 3306)
	cfg.DB.User = getEnv("DB_USER", "root")
	cfg.DB.Password = getEnv("DB_PASS", "")
	cfg.DB.Database = getEnv("DB_NAME", "wagateway")
	if cfg.DB.Password == "" && cfg.App.Environment != "development" {
		return nil, fmt.Errorf("DB_PASS environment variable is required outside development")
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "chat_os_redis:6379")

	cfg.Webhook.Secret = getEnv("WEBHOOK_SECRET", "")
	cfg.Webhook.VerifyToken = getEnv("VERIFY_TOKEN", "")
	cfg.Webhook.AccessToken = getEnv("ACCESS_TOKEN", "")
	cfg.Webhook.PhoneNumberID = getEnv("PHONE_NUMBER_ID", "")
	cfg.Webhook.APIBaseURL = getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0")
	if cfg.Webhook.Secret == "" && cfg.App.Environment != "development" {
		return nil, fmt.Errorf("WEBHOOK_SECRET environment variable is required outside development")
	}

	cfg.Dedupe.Backend = getEnv("DEDUPE_BACKEND", "memory")
	cfg.Dedupe.TTL = getEnvAsDuration("DEDUPE_TTL_SECONDS", 604800*time.Second)
	cfg.Dedupe.OutboundBackend = getEnv("OUTBOUND_DEDUPE_BACKEND", cfg.Dedupe.Backend)
	if cfg.App.Environment != "development" {
		if cfg.Dedupe.Backend == "memory" {
			return nil, fmt.Errorf("DEDUPE_BACKEND=memory is rejected outside development")
		}
		if cfg.Dedupe.OutboundBackend == "memory" {
			return nil, fmt.Errorf("OUTBOUND_DEDUPE_BACKEND=memory is rejected outside development")
		}
	}

	cfg.Queue.Backend = getEnv("QUEUE_BACKEND", "memory")
	cfg.Queue.InternalToken = getEnv("INTERNAL_TOKEN", "")
	cfg.Queue.PushBaseURL = getEnv("QUEUE_PUSH_BASE_URL", "")
	if cfg.Queue.Backend != "memory" && cfg.App.Environment != "development" && cfg.Queue.InternalToken == "" {
		return nil, fmt.Errorf("INTERNAL_TOKEN environment variable is required when QUEUE_BACKEND != memory outside development")
	}
	if cfg.Queue.Backend == "memory" && cfg.App.Environment != "development" {
		return nil, fmt.Errorf("QUEUE_BACKEND=memory is rejected outside development")
	}

	cfg.Session.Backend = getEnv("SESSION_STORE_BACKEND", "memory")
	cfg.Session.Timeout = getEnvAsDuration("SESSION_TIMEOUT_MINUTES_SECONDS", 0)
	if cfg.Session.Timeout == 0 {
		cfg.Session.Timeout = time.Duration(getEnvAsInt("SESSION_TIMEOUT_MINUTES", 60*24)) * time.Minute
	}
	cfg.Session.MaxIntents = getEnvAsInt("SESSION_MAX_INTENTS", 3)
	cfg.Session.MaxHistory = getEnvAsInt("SESSION_HISTORY_MAX_ENTRIES", 200)
	if cfg.Session.Backend == "memory" && cfg.App.Environment != "development" {
		return nil, fmt.Errorf("SESSION_STORE_BACKEND=memory is rejected outside development")
	}

	cfg.Flood.Threshold = int64(getEnvAsInt("FLOOD_THRESHOLD", 10))
	cfg.Flood.Window = getEnvAsDuration("FLOOD_WINDOW_SECONDS", 60*time.Second)

	cfg.LLM.Enabled = getEnvAsBool("LLM_ENABLED", true)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", "")
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", "")
	cfg.LLM.Stage1Model = getEnv("LLM_STAGE1_MODEL", "stage1-event-detector")
	cfg.LLM.Stage2Model = getEnv("LLM_STAGE2_MODEL", "stage2-response-generator")
	cfg.LLM.Stage3Model = getEnv("LLM_STAGE3_MODEL", "stage3-message-type-selector")
	cfg.LLM.Stage1Timeout = getEnvAsDuration("LLM_STAGE1_TIMEOUT_MS", 3*time.Second)
	cfg.LLM.Stage2Timeout = getEnvAsDuration("LLM_STAGE2_TIMEOUT_MS", 5*time.Second)
	cfg.LLM.Stage3Timeout = getEnvAsDuration("LLM_STAGE3_TIMEOUT_MS", 3*time.Second)
	cfg.LLM.DeciderTimeout = getEnvAsDuration("LLM_DECIDER_TIMEOUT_MS", 3*time.Second)
	cfg.LLM.AcceptThreshold = getEnvAsFloat("LLM_ACCEPT_THRESHOLD", 0.6)
	cfg.LLM.MinResponseOptions = getEnvAsInt("LLM_MIN_RESPONSE_OPTIONS", 3)

	cfg.Breaker.Enabled = getEnvAsBool("CB_ENABLED", true)
	cfg.Breaker.FailMax = getEnvAsInt("CB_FAIL_MAX", 5)
	cfg.Breaker.ResetTimeout = getEnvAsDuration("CB_RESET_TIMEOUT_SECONDS", 30*time.Second)
	cfg.Breaker.HalfOpenMax = getEnvAsInt("CB_HALF_OPEN_MAX", 1)

	cfg.Dispatch.MaxRetries = getEnvAsInt("DISPATCH_MAX_RETRIES", 3)
	cfg.Dispatch.BaseBackoff = getEnvAsDuration("DISPATCH_BASE_BACKOFF_MS", 500*time.Millisecond)
	cfg.Dispatch.MaxBackoff = getEnvAsDuration("DISPATCH_MAX_BACKOFF_MS", 30*time.Second)

	cfg.Export.GCSBucket = getEnv("EXPORT_GCS_BUCKET", "")

	return cfg, nil
}

// getEnv reads environment variable with fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads environment variable as integer with fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBool reads environment variable as bool with fallback default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsFloat reads environment variable as float64 with fallback default
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration reads an environment variable holding a count of
// milliseconds-or-seconds (per the variable's own suffix, e.g.
// LLM_STAGE1_TIMEOUT_MS or FLOOD_WINDOW_SECONDS) and returns it as the
// given unit; defaultValue is already a time.Duration in the right unit.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	switch {
	case len(key) > 3 && key[len(key)-3:] == "_MS":
		return time.Duration(n) * time.Millisecond
	default:
		return time.Duration(n) * time.Second
	}
}
