package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates portal and worker settings sourced from environment variables.
type Config struct {
	Portal   PortalConfig   `mapstructure:"portal"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	ClamAV   ClamAVConfig   `mapstructure:"clamav"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// PortalConfig contains HTTP server settings.
type PortalConfig struct {
	Port           int           `mapstructure:"port"`
	UploadMaxBytes int64         `mapstructure:"upload_max_bytes"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	DraftTTL       time.Duration `mapstructure:"draft_ttl"`
	SubmitLockTTL  time.Duration `mapstructure:"submit_lock_ttl"`
	RateLimit      int64         `mapstructure:"rate_limit"`
	RateWindow     time.Duration `mapstructure:"rate_window"`
	ReceiptLinkTTL time.Duration `mapstructure:"receipt_link_ttl"`
}

// BackendConfig points at the REST API that owns submissions and credentials.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig controls the browser session cookie.
type SessionConfig struct {
	Secret       string        `mapstructure:"secret"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig contains the redis connection settings.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	Bucket           string `mapstructure:"bucket"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// ClamAVConfig configures CV scanning. An empty address disables scanning.
type ClamAVConfig struct {
	Address string        `mapstructure:"address"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BrowserConfig configures the headless Chromium used for receipts.
type BrowserConfig struct {
	Bin string `mapstructure:"bin"`
}

// WorkerConfig tunes the asynq worker.
type WorkerConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	SweepSpec     string        `mapstructure:"sweep_spec"`
	StagingMaxAge time.Duration `mapstructure:"staging_max_age"`
	MetricsPort   int           `mapstructure:"metrics_port"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portal.port", 8080)
	v.SetDefault("portal.upload_max_bytes", 5*1024*1024)
	v.SetDefault("portal.cache_ttl", 5*time.Minute)
	v.SetDefault("portal.draft_ttl", 24*time.Hour)
	v.SetDefault("portal.submit_lock_ttl", 30*time.Second)
	v.SetDefault("portal.rate_limit", 10)
	v.SetDefault("portal.rate_window", time.Minute)
	v.SetDefault("portal.receipt_link_ttl", 15*time.Minute)
	v.SetDefault("backend.base_url", "http://localhost:5000/api")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("session.cookie_name", "wafi_session")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "wafi")
	v.SetDefault("database.user", "wafi")
	v.SetDefault("database.password", "wafi")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "applications")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("clamav.timeout", 30*time.Second)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.sweep_spec", "@hourly")
	v.SetDefault("worker.staging_max_age", 48*time.Hour)
	v.SetDefault("worker.metrics_port", 9091)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"portal.port":               "PORTAL_PORT",
		"portal.upload_max_bytes":   "PORTAL_UPLOAD_MAX_BYTES",
		"portal.cache_ttl":          "PORTAL_CACHE_TTL",
		"portal.draft_ttl":          "PORTAL_DRAFT_TTL",
		"portal.submit_lock_ttl":    "PORTAL_SUBMIT_LOCK_TTL",
		"portal.rate_limit":         "PORTAL_RATE_LIMIT",
		"portal.rate_window":        "PORTAL_RATE_WINDOW",
		"portal.receipt_link_ttl":   "PORTAL_RECEIPT_LINK_TTL",
		"backend.base_url":          "BACKEND_BASE_URL",
		"backend.timeout":           "BACKEND_TIMEOUT",
		"session.secret":            "SESSION_SECRET",
		"session.cookie_name":       "SESSION_COOKIE_NAME",
		"session.cookie_secure":     "SESSION_COOKIE_SECURE",
		"session.ttl":               "SESSION_TTL",
		"database.host":             "DATABASE_HOST",
		"database.port":             "DATABASE_PORT",
		"database.name":             "POSTGRES_DB",
		"database.user":             "POSTGRES_USER",
		"database.password":         "POSTGRES_PASSWORD",
		"database.sslmode":          "DATABASE_SSLMODE",
		"redis.host":                "REDIS_HOST",
		"redis.port":                "REDIS_PORT",
		"minio.endpoint":            "MINIO_ENDPOINT",
		"minio.public_endpoint":     "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":       "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":   "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":             "MINIO_USE_SSL",
		"minio.region":              "MINIO_REGION",
		"minio.bucket_lookup":       "MINIO_BUCKET_LOOKUP",
		"minio.bucket":              "MINIO_BUCKET",
		"minio.auto_create_bucket":  "MINIO_AUTO_CREATE_BUCKET",
		"clamav.address":            "CLAMAV_ADDRESS",
		"clamav.timeout":            "CLAMAV_TIMEOUT",
		"browser.bin":               "ROD_BROWSER_BIN",
		"worker.concurrency":        "WORKER_CONCURRENCY",
		"worker.sweep_spec":         "WORKER_SWEEP_SPEC",
		"worker.staging_max_age":    "WORKER_STAGING_MAX_AGE",
		"worker.metrics_port":       "WORKER_METRICS_PORT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.Portal.Port <= 0 {
		return errors.New("portal port must be positive")
	}
	if cfg.Portal.UploadMaxBytes <= 0 {
		return errors.New("portal upload max bytes must be positive")
	}
	if cfg.Backend.BaseURL == "" {
		return errors.New("backend base url is required")
	}
	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base url %q must be absolute", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	if len(strings.TrimSpace(cfg.Session.Secret)) < 16 {
		return errors.New("session secret must be at least 16 characters")
	}
	if cfg.Session.CookieName == "" {
		return errors.New("session cookie name is required")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	return nil
}
