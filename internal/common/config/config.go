package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/uma-arai/venue-reservation/internal/common/database"
)

type RedisConfig struct {
	URL      string `validate:"required"`
	PoolSize int    `validate:"min=1"`
}

type HTTPConfig struct {
	Port           int           `validate:"min=1,max=65535"`
	RequestTimeout time.Duration `validate:"gt=0"`
}

// ReservationConfig は予約処理の設定です
type ReservationConfig struct {
	// 予約日時を解釈するタイムゾーン
	Location            *time.Location `validate:"required"`
	CompletionBatchSize int            `validate:"min=1"`
}

// RetryConfig は通知再送キューの設定です
type RetryConfig struct {
	QueueKey    string        `validate:"required"`
	BaseDelay   time.Duration `validate:"gt=0"`
	MaxDelay    time.Duration `validate:"gtefield=BaseDelay"`
	MaxAttempts int           `validate:"min=1"`
	DrainLimit  int           `validate:"min=1"`
}

type Config struct {
	DB          database.Config
	Redis       RedisConfig
	HTTP        HTTPConfig
	Reservation ReservationConfig
	Retry       RetryConfig
	SFN         struct {
		TaskToken string
	}
	EnableTracing bool
}

// LoadConfig は設定を読み込みます
func LoadConfig(taskToken string) (*Config, error) {
	// ローカル環境では.envを読み込む。存在しなくてもエラーにしない
	if os.Getenv("ENV") == "LOCAL" {
		if err := godotenv.Load(); err != nil {
			log.Printf("No .env file loaded: %v", err)
		}
	}

	tz := getEnvOrDefault("APP_TIMEZONE", "Asia/Manila")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}

	cfg := &Config{
		DB: database.Config{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvAsIntOrDefault("DB_PORT", 5432),
			UserName: getEnvOrDefault("DB_USERNAME", "venueapp"),
			Password: getEnvOrDefault("DB_PASSWORD", "password"),
			DBName:   getEnvOrDefault("DB_NAME", "venueapp"),
			SSLMode:  os.Getenv("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			URL:      getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize: getEnvAsIntOrDefault("REDIS_POOL_SIZE", 10),
		},
		HTTP: HTTPConfig{
			Port:           getEnvAsIntOrDefault("API_PORT", 8080),
			RequestTimeout: getEnvAsDurationOrDefault("REQUEST_TIMEOUT", 10*time.Second),
		},
		Reservation: ReservationConfig{
			Location:            loc,
			CompletionBatchSize: getEnvAsIntOrDefault("COMPLETION_BATCH_SIZE", 500),
		},
		Retry: RetryConfig{
			QueueKey:    getEnvOrDefault("RETRY_QUEUE_KEY", "venue:notification:retry"),
			BaseDelay:   getEnvAsDurationOrDefault("RETRY_BASE_DELAY", 5*time.Minute),
			MaxDelay:    getEnvAsDurationOrDefault("RETRY_MAX_DELAY", 24*time.Hour),
			MaxAttempts: getEnvAsIntOrDefault("RETRY_MAX_ATTEMPTS", 5),
			DrainLimit:  getEnvAsIntOrDefault("RETRY_DRAIN_LIMIT", 100),
		},
		SFN: struct {
			TaskToken string
		}{
			TaskToken: taskToken,
		},
		EnableTracing: false,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Printf("Environment variable %s is not set, using default value", key)
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Environment variable %s has invalid duration %q, using default value", key, value)
	}
	return defaultValue
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
