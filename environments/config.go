package environments

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	Sync      SyncConfig
	Message   MessageConfig
	Bulk      BulkConfig
	Scheduler SchedulerConfig
	Alert     AlertConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// GatewayConfig points at the HTTP SMS provider that actually delivers texts.
type GatewayConfig struct {
	URL     string
	AuthKey string
	Timeout time.Duration
}

// SyncConfig points at the optional remote backend the gateway pulls pending
// messages from and pushes status updates to. Empty BaseURL disables sync.
type SyncConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type MessageConfig struct {
	BatchSize         int
	MaxContentLength  int
	MaxRetries        int
	PerMessageTimeout time.Duration
}

type BulkConfig struct {
	PacingDelay      time.Duration
	ChunkSize        int
	MaxTrackedErrors int
}

type SchedulerConfig struct {
	Interval time.Duration
}

type AlertConfig struct {
	WebhookURL     string
	IterationCount int
}

type AuthConfig struct {
	MessagesAPIKey  string
	SchedulerAPIKey string
}

func Load() *Config {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: GetEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "smsgw"),
			Password: GetEnv("DB_PASSWORD", "smsgw123"),
			DBName:   GetEnv("DB_NAME", "sms_gateway"),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvAsInt("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			URL:     GetEnv("GATEWAY_URL", ""),
			AuthKey: GetEnv("GATEWAY_AUTH_KEY", ""),
			Timeout: time.Duration(GetEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Sync: SyncConfig{
			BaseURL: GetEnv("SYNC_BASE_URL", ""),
			APIKey:  GetEnv("SYNC_API_KEY", ""),
			Timeout: time.Duration(GetEnvAsInt("SYNC_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Message: MessageConfig{
			BatchSize:         GetEnvAsInt("MESSAGE_BATCH_SIZE", 50),
			MaxContentLength:  GetEnvAsInt("MESSAGE_MAX_CONTENT_LENGTH", 1000),
			MaxRetries:        GetEnvAsInt("MESSAGE_MAX_RETRIES", 3),
			PerMessageTimeout: time.Duration(GetEnvAsInt("MESSAGE_SEND_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Bulk: BulkConfig{
			PacingDelay:      GetEnvAsDuration("BULK_PACING_DELAY", 500*time.Millisecond),
			ChunkSize:        GetEnvAsInt("BULK_CHUNK_SIZE", 10),
			MaxTrackedErrors: GetEnvAsInt("BULK_MAX_TRACKED_ERRORS", 50),
		},
		Scheduler: SchedulerConfig{
			Interval: time.Duration(GetEnvAsInt("SCHEDULER_INTERVAL_MINUTES", 5)) * time.Minute,
		},
		Alert: AlertConfig{
			WebhookURL:     GetEnv("ALERT_WEBHOOK_URL", ""),
			IterationCount: GetEnvAsInt("ALERT_ITERATION_COUNT", 0),
		},
		Auth: AuthConfig{
			MessagesAPIKey:  GetEnv("MESSAGES_API_KEY", ""),
			SchedulerAPIKey: GetEnv("SCHEDULER_API_KEY", ""),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
