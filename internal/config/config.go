package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Classifier provider names accepted by CLASSIFIER_PROVIDER.
const (
	ClassifierAuto    = "auto"
	ClassifierGemini  = "gemini"
	ClassifierBedrock = "bedrock"
	ClassifierNone    = "none"
)

// Session store backends accepted by SESSION_STORE.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Location directory (tenant listings backend)
	BackendURL       string
	DirectoryTimeout time.Duration

	// Intent classifier
	ClassifierProvider    string
	ClassifierTimeout     time.Duration
	ClassifierTemperature float64
	GeminiAPIKey          string
	GeminiModel           string
	BedrockModelID        string
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string

	// Session storage
	SessionStore      string
	SessionTTL        time.Duration
	SessionMaxEntries int
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool

	// Turn transcripts (optional)
	DatabaseURL string

	// HTTP surface
	AdminJWTSecret     string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:       strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8080"), "/"),
		DirectoryTimeout: getEnvAsDuration("DIRECTORY_TIMEOUT", 10*time.Second),

		ClassifierProvider:    strings.ToLower(strings.TrimSpace(getEnv("CLASSIFIER_PROVIDER", ClassifierAuto))),
		ClassifierTimeout:     getEnvAsDuration("CLASSIFIER_TIMEOUT", 20*time.Second),
		ClassifierTemperature: getEnvAsFloat("CLASSIFIER_TEMPERATURE", 0.7),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:        getEnv("BEDROCK_MODEL_ID", ""),
		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SessionStore:      strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", SessionStoreMemory))),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SessionMaxEntries: getEnvAsInt("SESSION_MAX_ENTRIES", 10000),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

// ClassifierConfigured reports whether any live classifier backend has credentials.
func (c *Config) ClassifierConfigured() bool {
	if c == nil || c.ClassifierProvider == ClassifierNone {
		return false
	}
	return strings.TrimSpace(c.GeminiAPIKey) != "" || strings.TrimSpace(c.BedrockModelID) != ""
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma-separated variable, dropping blank items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
