// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Pluggy    PluggyConfig
	Gemini    GeminiConfig
	Firebase  FirebaseConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
	Log       LogConfig
	Messages  MessagesConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	AllowedHosts []string
	ForceHTTPS   bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ConnectionString builds a lib/pq connection string.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PluggyConfig struct {
	BaseURL      string
	APIKey       string
	LookbackDays int
	PageSize     int
	MaxPages     int
}

type GeminiConfig struct {
	APIKey string
	Models []string
}

type FirebaseConfig struct {
	CredentialsFile string
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type MessagesConfig struct {
	Path string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	lookbackDays, err := strconv.Atoi(getEnv("PLUGGY_LOOKBACK_DAYS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLUGGY_LOOKBACK_DAYS: %w", err)
	}
	pageSize, err := strconv.Atoi(getEnv("PLUGGY_PAGE_SIZE", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLUGGY_PAGE_SIZE: %w", err)
	}
	maxPages, err := strconv.Atoi(getEnv("PLUGGY_MAX_PAGES", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLUGGY_MAX_PAGES: %w", err)
	}

	pluggyKey := getEnv("PLUGGY_API_KEY", "")
	if pluggyKey == "" {
		return nil, fmt.Errorf("PLUGGY_API_KEY is required")
	}

	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			AllowedHosts: getListEnv("ALLOWED_HOSTS", ""),
			ForceHTTPS:   getBoolEnv("FORCE_HTTPS", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "grana"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "grana"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Pluggy: PluggyConfig{
			BaseURL:      getEnv("PLUGGY_BASE_URL", "https://api.pluggy.ai"),
			APIKey:       pluggyKey,
			LookbackDays: lookbackDays,
			PageSize:     pageSize,
			MaxPages:     maxPages,
		},
		Gemini: GeminiConfig{
			// Empty key is valid: enrichment degrades to keyword categorization.
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Models: getListEnv("GEMINI_MODELS", "gemini-2.0-flash,gemini-2.0-flash-lite,gemini-1.5-flash"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			ScheduleTimes: getListEnv("SCHEDULER_TIMES", "05:00,10:00,14:00,20:00"),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("TELEMETRY_ENABLED", false),
			ServiceName:  getEnv("TELEMETRY_SERVICE_NAME", "grana"),
			Environment:  getEnv("TELEMETRY_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("TELEMETRY_OTLP_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("TELEMETRY_METRICS_PORT", "9090"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBoolEnv("LOG_PRETTY", false),
		},
		Messages: MessagesConfig{
			Path: getEnv("MESSAGES_PATH", "config/notifications.json"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getListEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
