package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Image host (MongoDB GridFS)
	MongoURL      string
	MongoDatabase string

	// Facet cache / broker（空の場合は無効）
	RedisURL      string
	FacetCacheTTL time.Duration
	AMQPURL       string

	// Session / credentials
	SessionMaxAge int
	BcryptCost    int

	// Upload / image import
	UploadMaxSize     int64
	ImageFetchTimeout time.Duration
	ImageFetchMaxSize int64

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitAuth    int

	// Worker
	OrphanSweepInterval time.Duration
	SessionRetention    time.Duration

	// Seed
	SeedOwnerUsername string
	SeedOwnerEmail    string
	SeedOwnerPassword string

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// LoadDotEnv は.envファイルを環境変数に読み込む。
// 既に設定されている環境変数は上書きしない。ファイルが無い場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
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

	cfg.MongoURL = os.Getenv("MONGO_URL")
	if cfg.MongoURL == "" {
		missing = append(missing, "MONGO_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.MongoDatabase = getEnvString("MONGO_DATABASE", "wanderlust")
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.FacetCacheTTL = getEnvDuration("FACET_CACHE_TTL", 5*time.Minute)
	cfg.AMQPURL = getEnvString("AMQP_URL", "")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 3600)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 10<<20)
	cfg.ImageFetchTimeout = getEnvDuration("IMAGE_FETCH_TIMEOUT", 10*time.Second)
	cfg.ImageFetchMaxSize = getEnvInt64("IMAGE_FETCH_MAX_SIZE", 5<<20)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.OrphanSweepInterval = getEnvDuration("ORPHAN_SWEEP_INTERVAL", time.Hour)
	cfg.SessionRetention = getEnvDuration("SESSION_RETENTION", 24*time.Hour)
	cfg.SeedOwnerUsername = getEnvString("SEED_OWNER_USERNAME", "wanderlust-host")
	cfg.SeedOwnerEmail = getEnvString("SEED_OWNER_EMAIL", "host@wanderlust.example")
	cfg.SeedOwnerPassword = getEnvString("SEED_OWNER_PASSWORD", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

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
