package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Stream   StreamConfig
	Ingest   IngestConfig
	LogLevel slog.Level
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" or "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr    string
	GRPCAddr    string
	MaxUploadMB int
	MaxPages    int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model          string
	APIKey         string
	BaseURL        string
	Temperature    float32
	AttemptTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	MaxInputChars  int
}

// StreamConfig bounds a whole streamed run, independently of a single model call.
type StreamConfig struct {
	Timeout   time.Duration
	Heartbeat time.Duration
}

// IngestConfig holds watch-folder and worker queue configuration
type IngestConfig struct {
	WatchDirs    []string
	Debounce     time.Duration
	Workers      int
	QueueSize    int
	JobTimeout   time.Duration
	BatchWorkers int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:    getEnv("GRPC_ADDR", ":8081"),
			MaxUploadMB: getEnvAsInt("MAX_UPLOAD_MB", 20),
			MaxPages:    getEnvAsInt("MAX_PAGES", 60),
		},
		LLM: LLMConfig{
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			Temperature:    getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			AttemptTimeout: getEnvAsDuration("LLM_ATTEMPT_TIMEOUT", 50*time.Second),
			MaxRetries:     getEnvAsInt("LLM_MAX_RETRIES", 2),
			RetryDelay:     getEnvAsDuration("LLM_RETRY_DELAY", 500*time.Millisecond),
			MaxInputChars:  getEnvAsInt("LLM_MAX_INPUT_CHARS", 60000),
		},
		Stream: StreamConfig{
			Timeout:   getEnvAsDuration("STREAM_TIMEOUT", 7*time.Minute),
			Heartbeat: getEnvAsDuration("STREAM_HEARTBEAT", 15*time.Second),
		},
		Ingest: IngestConfig{
			WatchDirs:    getEnvAsList("WATCH_DIRS"),
			Debounce:     getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
			Workers:      getEnvAsInt("QUEUE_WORKERS", 2),
			QueueSize:    getEnvAsInt("QUEUE_SIZE", 64),
			JobTimeout:   getEnvAsDuration("QUEUE_JOB_TIMEOUT", 7*time.Minute),
			BatchWorkers: getEnvAsInt("BATCH_WORKERS", 4),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration for the server.
// A missing model credential is not a config error here; it surfaces per run as a fatal LLMError.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.LLM.AttemptTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_ATTEMPT_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.LLM.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_RETRIES must not be negative", ErrInvalidInput)
	}
	if c.Stream.Timeout > 0 && c.Stream.Timeout < c.LLM.AttemptTimeout {
		return NewAppError("CONFIG_ERROR", "STREAM_TIMEOUT must not be shorter than LLM_ATTEMPT_TIMEOUT", ErrInvalidInput)
	}
	return nil
}
