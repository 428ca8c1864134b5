package config

import "github.com/aws/aws-sdk-go-v2/service/s3"

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	PublicBaseURL  string `yaml:"public_base_url"`
	RequestTimeout string `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Client   *s3.Client
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Local    bool   `yaml:"local"`
}

// StorageConfig : параметры хранилища блобов и квот
type StorageConfig struct {
	// Backend : local или s3
	Backend         string `yaml:"backend"`
	Root            string `yaml:"root"`
	TempDir         string `yaml:"temp_dir"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	QuotaBytes      int64  `yaml:"quota_bytes"`
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
}

type JWTConfig struct {
	SecretKey       string `yaml:"secret_key"`
	AccessTokenTTL  string `yaml:"access_token_ttl"`
	RefreshTokenTTL string `yaml:"refresh_token_ttl"`
}

// AdminConfig : начальный администратор, создаётся при старте, если его ещё нет
type AdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// RateLimitConfig : ограничение анонимных скачиваний по IP
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// IdleTTL : через сколько секунд без запросов лимитер ip забывается
	IdleTTL int `yaml:"idle_ttl"`
	// TrustProxy : брать адрес клиента из X-Forwarded-For / X-Real-IP.
	// Включать только за своим reverse proxy
	TrustProxy bool `yaml:"trust_proxy"`
}

type TTL struct {
	// PublicLinkCache : время жизни записи public_link:<token> в Redis, в секундах
	PublicLinkCache int `yaml:"public_link_cache"`
}
