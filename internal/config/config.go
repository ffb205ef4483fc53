// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinTTL はトークン有効期間の下限。JWTのexpは秒単位のため、1秒未満は受け付けない。
const MinTTL = time.Second

// MinJWTSecretLength はHMAC-SHA256の署名鍵として受け付ける最小バイト数。
const MinJWTSecretLength = 32

// 失効ストアのバックエンド種別。
const (
	RevocationBackendMemory = "memory"
	RevocationBackendRedis  = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	// Revocation
	RevocationBackend string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	// OAuth（ClientIDが空のプロバイダーは無効）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	NaverClientID      string
	NaverClientSecret  string
	NaverRedirectURL   string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// GoogleEnabled はGoogleログインが設定されているかを返す。
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

// NaverEnabled はNaverログインが設定されているかを返す。
func (c *Config) NaverEnabled() bool {
	return c.NaverClientID != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	accessTTL := os.Getenv("JWT_ACCESS_TTL")
	if accessTTL == "" {
		missing = append(missing, "JWT_ACCESS_TTL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", MinJWTSecretLength, len(cfg.JWTSecret))
	}

	var err error
	cfg.JWTAccessTTL, err = ParseTTL(accessTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TTL: %w", err)
	}

	cfg.JWTRefreshTTL = 7 * 24 * time.Hour
	if v := os.Getenv("JWT_REFRESH_TTL"); v != "" {
		cfg.JWTRefreshTTL, err = ParseTTL(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_REFRESH_TTL: %w", err)
		}
	}

	cfg.RevocationBackend = strings.ToLower(getEnvString("REVOCATION_BACKEND", RevocationBackendMemory))
	switch cfg.RevocationBackend {
	case RevocationBackendMemory, RevocationBackendRedis:
	default:
		return nil, fmt.Errorf("REVOCATION_BACKEND must be %q or %q, got %q",
			RevocationBackendMemory, RevocationBackendRedis, cfg.RevocationBackend)
	}

	// Optional fields with defaults
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB, err = getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	if cfg.RedisDB < 0 {
		return nil, fmt.Errorf("REDIS_DB must not be negative, got %d", cfg.RedisDB)
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	cfg.NaverClientID = os.Getenv("NAVER_CLIENT_ID")
	cfg.NaverClientSecret = os.Getenv("NAVER_CLIENT_SECRET")
	cfg.NaverRedirectURL = os.Getenv("NAVER_REDIRECT_URL")

	cfg.RateLimitGeneral, err = getEnvPositiveInt("RATE_LIMIT_GENERAL", 120)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitLogin, err = getEnvPositiveInt("RATE_LIMIT_LOGIN", 10)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ParseTTL はGoのduration表記（"30m"）または整数のミリ秒（"1800000"）を解釈する。
// MinTTL未満の値はエラーとする。
func ParseTTL(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)

	var d time.Duration
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		d = time.Duration(ms) * time.Millisecond
	} else {
		d, err = time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%q is neither a duration nor milliseconds", v)
		}
	}

	if d < MinTTL {
		return 0, fmt.Errorf("TTL must be at least %v, got %v", MinTTL, d)
	}
	return d, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt は整数の環境変数を読む。未設定ならdefaultValを返し、数値でなければエラーを返す。
func getEnvInt(key string, defaultVal int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return i, nil
}

// getEnvPositiveInt はgetEnvIntに加えて0以下の値をエラーとする。
func getEnvPositiveInt(key string, defaultVal int) (int, error) {
	i, err := getEnvInt(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if i <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, i)
	}
	return i, nil
}
