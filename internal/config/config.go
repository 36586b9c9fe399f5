package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// SMTP
	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// AI分析（OpenAI互換API）
	AIEndpoint string
	AIAPIKey   string
	AIModel    string

	// 送信キュー
	QueueBatchSize  int
	QueueRetryDelay time.Duration
	QueueInterval   time.Duration
	SendPacing      time.Duration

	// 証拠キャプチャ
	CaptureTimeout time.Duration
	CaptureMaxSize int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitNotice  int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SMTPAddr = os.Getenv("SMTP_ADDR")
	if cfg.SMTPAddr == "" {
		missing = append(missing, "SMTP_ADDR")
	}

	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPFrom == "" {
		missing = append(missing, "SMTP_FROM")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.SMTPFromName = getEnvString("SMTP_FROM_NAME", "ProductGuard")
	cfg.AIEndpoint = getEnvString("AI_ENDPOINT", "https://api.openai.com/v1/chat/completions")
	cfg.AIAPIKey = getEnvString("AI_API_KEY", "")
	cfg.AIModel = getEnvString("AI_MODEL", "gpt-4o-mini")
	cfg.QueueBatchSize = getEnvInt("QUEUE_BATCH_SIZE", 5)
	cfg.QueueRetryDelay = getEnvDuration("QUEUE_RETRY_DELAY", 5*time.Minute)
	cfg.QueueInterval = getEnvDuration("QUEUE_INTERVAL", time.Minute)
	cfg.SendPacing = getEnvDuration("SEND_PACING", 200*time.Millisecond)
	cfg.CaptureTimeout = getEnvDuration("CAPTURE_TIMEOUT", 30*time.Second)
	cfg.CaptureMaxSize = getEnvInt64("CAPTURE_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitNotice = getEnvInt("RATE_LIMIT_NOTICE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
