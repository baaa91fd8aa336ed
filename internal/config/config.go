// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	SupabaseJWTSecret string

	// Razorpay
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayAPIURL        string
	RazorpayPlanNavigator string
	RazorpayPlanVoyager   string
	GatewayTimeout        time.Duration

	// AI
	AIServiceURL string
	AIServiceKey string
	AITimeout    time.Duration

	// Rate Limit（req/min単位）
	RateLimitGeneral    int
	RateLimitGeneration int
	RateLimitWebhook    int

	// Saga
	SagaRetryAttempts int
	SagaRetryDelay    time.Duration

	// Worker
	EventWorkerInterval time.Duration
	EventMaxAttempts    int
	EventRetryDelay     time.Duration
	WorkerMaxConcurrent int

	// Retention
	EventRetentionDays int
	DraftRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがある場合は先に読み込む（未設定の変数のみ反映）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envはローカル開発用。存在しない場合のエラーは無視する。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SupabaseJWTSecret = os.Getenv("SUPABASE_JWT_SECRET")
	if cfg.SupabaseJWTSecret == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET")
	}

	cfg.RazorpayKeyID = os.Getenv("RAZORPAY_KEY_ID")
	if cfg.RazorpayKeyID == "" {
		missing = append(missing, "RAZORPAY_KEY_ID")
	}

	cfg.RazorpayKeySecret = os.Getenv("RAZORPAY_KEY_SECRET")
	if cfg.RazorpayKeySecret == "" {
		missing = append(missing, "RAZORPAY_KEY_SECRET")
	}

	cfg.RazorpayWebhookSecret = os.Getenv("RAZORPAY_WEBHOOK_SECRET")
	if cfg.RazorpayWebhookSecret == "" {
		missing = append(missing, "RAZORPAY_WEBHOOK_SECRET")
	}

	cfg.AIServiceKey = os.Getenv("AI_SERVICE_KEY")
	if cfg.AIServiceKey == "" {
		missing = append(missing, "AI_SERVICE_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RazorpayAPIURL = getEnvString("RAZORPAY_API_URL", "https://api.razorpay.com")
	cfg.RazorpayPlanNavigator = getEnvString("RAZORPAY_PLAN_NAVIGATOR", "")
	cfg.RazorpayPlanVoyager = getEnvString("RAZORPAY_PLAN_VOYAGER", "")
	cfg.GatewayTimeout = getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second)
	cfg.AIServiceURL = getEnvString("AI_SERVICE_URL", "https://ai.smartslate.io")
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", 30*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitGeneration = getEnvInt("RATE_LIMIT_GENERATION", 5)
	cfg.RateLimitWebhook = getEnvInt("RATE_LIMIT_WEBHOOK", 60)
	cfg.SagaRetryAttempts = getEnvInt("SAGA_RETRY_ATTEMPTS", 3)
	cfg.SagaRetryDelay = getEnvDuration("SAGA_RETRY_DELAY", 2*time.Second)
	cfg.EventWorkerInterval = getEnvDuration("EVENT_WORKER_INTERVAL", 30*time.Second)
	cfg.EventMaxAttempts = getEnvInt("EVENT_MAX_ATTEMPTS", 5)
	cfg.EventRetryDelay = getEnvDuration("EVENT_RETRY_DELAY", time.Minute)
	cfg.WorkerMaxConcurrent = getEnvInt("WORKER_MAX_CONCURRENT", 4)
	cfg.EventRetentionDays = getEnvInt("EVENT_RETENTION_DAYS", 90)
	cfg.DraftRetentionDays = getEnvInt("DRAFT_RETENTION_DAYS", 60)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
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
