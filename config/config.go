package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the capture analyze pipeline service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string

	// Object storage configuration
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StoragePublicURL string

	// SendGrid configuration
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// Admin credentials for the management endpoints
	AdminUsername string
	AdminPassword string

	// Capture analysis configuration
	DefaultWatchDescription string
	JPEGQuality             int

	// Per-call timeouts for external collaborators
	StorageTimeout  time.Duration
	AnalysisTimeout time.Duration
	MailTimeout     time.Duration

	// RabbitMQ configuration
	AMQPURL           string
	AMQPExchange      string
	CaptureRoutingKey string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "capturewatch"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Gemini defaults
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		// Object storage defaults
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", "cctv-photos"),
		StorageUseSSL:    getBoolEnv("STORAGE_USE_SSL", false),
		StoragePublicURL: getEnv("STORAGE_PUBLIC_URL", ""),

		// SendGrid defaults
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Capture Watch"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "alerts@capturewatch.io"),

		// Admin defaults
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),

		// Analysis defaults
		DefaultWatchDescription: getEnv("DEFAULT_WATCH_DESCRIPTION", "Fire, smoke, intruder, open door"),
		JPEGQuality:             getIntEnv("JPEG_QUALITY", 85),

		// Timeout defaults
		StorageTimeout:  getDurationEnv("STORAGE_TIMEOUT", 10*time.Second),
		AnalysisTimeout: getDurationEnv("ANALYSIS_TIMEOUT", 30*time.Second),
		MailTimeout:     getDurationEnv("MAIL_TIMEOUT", 10*time.Second),

		// RabbitMQ defaults (empty URL disables publishing)
		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "capturewatch"),
		CaptureRoutingKey: getEnv("CAPTURE_ROUTING_KEY", "capture.ingested"),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
