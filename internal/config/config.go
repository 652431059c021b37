// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Write lock modes.
const (
	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Env                string
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AppBaseURL         string
	CORSOrigins        []string

	// Session settings
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// Identity provider
	CognitoDomain       string
	CognitoClientID     string
	CognitoClientSecret string
	CognitoRedirectURL  string
	AllowedEmailDomains []string

	// Object store
	StoreBackend    string
	StoreMaxRetries int
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	AWSAccessKey    string
	AWSSecretKey    string
	GCSBucket       string

	// NATS settings
	NATSURL           string
	NATSCAFile        string
	NATSCertFile      string
	NATSKeyFile       string
	NATSToken         string
	NATSKVBucket      string
	NATSEventsEnabled bool

	// Write locking
	WriteLock string
	RedisURL  string
	LockTTL   time.Duration
	LockWait  time.Duration

	// LLM settings
	LLMProvider      string
	LLMModel         string
	LLMTemperature   float64
	LLMMaxTokens     int
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	GeminiAPIKey     string
	SystemPromptFile string

	// Conversation history
	HistoryLimit int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. Values in a .env
// file in the working directory are used for variables not already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		Env:                getEnv("ENV", "production"),
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		AppBaseURL:         getEnv("APP_BASE_URL", "http://localhost:8080/"),
		CORSOrigins:        getListEnv("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),

		// Session
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getDurationEnv("SESSION_TTL", 12*time.Hour),
		CookieSecure:  getBoolEnv("COOKIE_SECURE", true),

		// Identity provider
		CognitoDomain:       getEnv("COGNITO_DOMAIN", ""),
		CognitoClientID:     getEnv("COGNITO_CLIENT_ID", ""),
		CognitoClientSecret: getEnv("COGNITO_CLIENT_SECRET", ""),
		CognitoRedirectURL:  getEnv("COGNITO_REDIRECT_URL", "http://localhost:8080/auth/callback"),
		AllowedEmailDomains: getListEnv("ALLOWED_EMAIL_DOMAINS", []string{"uga.edu"}),

		// Object store
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", BackendS3)),
		StoreMaxRetries: getIntEnv("STORE_MAX_RETRIES", 5),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		AWSAccessKey:    getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		GCSBucket:       getEnv("GCS_BUCKET", ""),

		// NATS
		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:        getEnv("NATS_CA_FILE", ""),
		NATSCertFile:      getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:       getEnv("NATS_KEY_FILE", ""),
		NATSToken:         getEnv("NATS_TOKEN", ""),
		NATSKVBucket:      getEnv("NATS_KV_BUCKET", "archpal"),
		NATSEventsEnabled: getBoolEnv("NATS_EVENTS_ENABLED", false),

		// Write locking
		WriteLock: strings.ToLower(getEnv("WRITE_LOCK", LockLocal)),
		RedisURL:  getEnv("REDIS_URL", ""),
		LockTTL:   getDurationEnv("LOCK_TTL", 30*time.Second),
		LockWait:  getDurationEnv("LOCK_WAIT", 10*time.Second),

		// LLM
		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
		LLMModel:         getEnv("LLM_MODEL", ""),
		LLMTemperature:   getFloatEnv("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:     getIntEnv("LLM_MAX_TOKENS", 4096),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		SystemPromptFile: getEnv("SYSTEM_PROMPT_FILE", ""),

		// History
		HistoryLimit: getIntEnv("HISTORY_LIMIT", 5),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters"))
	}
	if c.CognitoDomain == "" || c.CognitoClientID == "" {
		errs = append(errs, errors.New("COGNITO_DOMAIN and COGNITO_CLIENT_ID are required"))
	}
	if len(c.AllowedEmailDomains) == 0 {
		errs = append(errs, errors.New("ALLOWED_EMAIL_DOMAINS must not be empty"))
	}

	switch c.StoreBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 backend"))
		}
	case BackendGCS:
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for the gcs backend"))
		}
	case BackendNATS:
		if c.NATSKVBucket == "" {
			errs = append(errs, errors.New("NATS_KV_BUCKET is required for the nats backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.WriteLock {
	case LockNone, LockLocal:
	case LockRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when WRITE_LOCK=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown WRITE_LOCK %q", c.WriteLock))
	}

	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errs = append(errs, errors.New("LLM_TEMPERATURE must be between 0 and 2"))
	}
	if c.HistoryLimit < 1 {
		errs = append(errs, errors.New("HISTORY_LIMIT must be positive"))
	}

	return errors.Join(errs...)
}

// APIKey returns the key of the configured LLM provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case "openai":
		return c.OpenAIAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

// IsDevelopment reports whether ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
