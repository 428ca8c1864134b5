package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxUploadBytes int64 = 2 * 1024 * 1024 * 1024
	DefaultQuotaBytes     int64 = 5 * 1024 * 1024 * 1024
	DefaultPageSize             = 20
	DefaultMaxPageSize          = 100
)

type AppConfig struct {
	Server         ServerConfig    `yaml:"server"`
	DatabaseConfig DatabaseConfig  `yaml:"databaseConfig"`
	RedisConfig    RedisConfig     `yaml:"redisConfig"`
	S3Config       S3Config        `yaml:"s3Config"`
	Storage        StorageConfig   `yaml:"storage"`
	JWT            JWTConfig       `yaml:"jwt"`
	Admin          AdminConfig     `yaml:"admin"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	TTL            TTL             `yaml:"TTL"`
}

// LoadConfig : читает config.yaml, затем применяет переменные окружения (и .env, если он есть)
func LoadConfig(path string) (*AppConfig, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка чтения .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (cfg *AppConfig) applyEnv() error {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.DatabaseConfig.DSN = v
	}
	if v := os.Getenv("JWT_SECRET_KEY"); v != "" {
		cfg.JWT.SecretKey = v
	}
	if v := os.Getenv("STORAGE_ROOT"); v != "" {
		cfg.Storage.Root = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisConfig.Addr = v
	}
	if v := os.Getenv("USER_QUOTA_GB"); v != "" {
		gb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("некорректное значение USER_QUOTA_GB: %w", err)
		}
		cfg.Storage.QuotaBytes = gb * 1024 * 1024 * 1024
	}
	return nil
}

func (cfg *AppConfig) applyDefaults() {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "media"
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		cfg.Storage.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Storage.QuotaBytes <= 0 {
		cfg.Storage.QuotaBytes = DefaultQuotaBytes
	}
	if cfg.Storage.DefaultPageSize <= 0 {
		cfg.Storage.DefaultPageSize = DefaultPageSize
	}
	if cfg.Storage.MaxPageSize <= 0 {
		cfg.Storage.MaxPageSize = DefaultMaxPageSize
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 5
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
	if cfg.RateLimit.IdleTTL <= 0 {
		cfg.RateLimit.IdleTTL = 600
	}
	if cfg.JWT.AccessTokenTTL == "" {
		cfg.JWT.AccessTokenTTL = "15m"
	}
	if cfg.JWT.RefreshTokenTTL == "" {
		cfg.JWT.RefreshTokenTTL = "720h"
	}
	if cfg.TTL.PublicLinkCache <= 0 {
		cfg.TTL.PublicLinkCache = 3600
	}
}

// RequestTimeout : таймаут обычного запроса, загрузки и архивы его не используют
func (cfg *AppConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(cfg.Server.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func SetupServer(serverAddress string) (*http.Server, *chi.Mux) {
	router := chi.NewRouter()
	server := &http.Server{
		Addr:              serverAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server, router
}

func SetupDatabase(dsn string) (*Database, error) {
	return NewDatabaseConnection("postgres", dsn)
}

func SetupRedis(cfg *RedisConfig) (*RedisClient, error) {
	return NewRedisClient(cfg)
}
