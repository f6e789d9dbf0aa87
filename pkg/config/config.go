package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for content-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""` // Empty uses the environment default

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Webhooks  WebhookConfig   `yaml:"webhooks"`
	Storage   StorageConfig   `yaml:"storage"`
	WordPress WordPressConfig `yaml:"wordpress"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`

	// Encryption key for webhook signing secrets stored in the database.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	SecretsKey string `yaml:"-" env:"SECRETS_ENCRYPTION_KEY"` // Secret - not in YAML
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWTSecret verifies HS256 tokens (Supabase-style shared secret).
	JWTSecret string `yaml:"-" env:"AUTH_JWT_SECRET"` // Secret - not in YAML

	// JWKSURL verifies asymmetric tokens when set. Takes precedence over JWTSecret.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`

	// Issuer and Audience are checked when non-empty.
	Issuer   string `yaml:"issuer" env:"AUTH_ISSUER" env-default:""`
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:"authenticated"`

	// AdminRole is the role claim value that grants maintenance access.
	AdminRole string `yaml:"admin_role" env:"AUTH_ADMIN_ROLE" env-default:"admin"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"content"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"content_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration used for cross-instance cache invalidation.
type RedisConfig struct {
	// Enabled turns on the pub/sub bridge. Single-instance deployments can leave it off.
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Channel  string `yaml:"channel" env:"REDIS_CHANNEL" env-default:"content-engine:invalidations"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LifecycleConfig holds retry and timeout bounds.
type LifecycleConfig struct {
	MaxRetries        int           `yaml:"max_retries" env:"LIFECYCLE_MAX_RETRIES" env-default:"3"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout" env:"LIFECYCLE_PROCESSING_TIMEOUT" env-default:"30m"`
}

// WebhookConfig holds outbound webhook and callback settings.
type WebhookConfig struct {
	// CallbackBaseURL is the public base of the serverless functions the worker calls back into.
	// Empty means BaseURL.
	CallbackBaseURL string `yaml:"callback_base_url" env:"WEBHOOK_CALLBACK_BASE_URL" env-default:""`

	// Idea submissions and idea retries report to IdeaCallbackPath, everything else to ContentProcessingPath.
	ContentProcessingPath string `yaml:"content_processing_path" env:"WEBHOOK_CONTENT_PROCESSING_PATH" env-default:"/api/callbacks/content_processing"`
	IdeaCallbackPath      string `yaml:"idea_callback_path" env:"WEBHOOK_IDEA_CALLBACK_PATH" env-default:"/api/callbacks/content_idea"`

	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"WEBHOOK_DELIVERY_TIMEOUT" env-default:"15s"`
	MaxConcurrency  int           `yaml:"max_concurrency" env:"WEBHOOK_MAX_CONCURRENCY" env-default:"8"`

	// CallbackSecret authenticates worker callbacks (X-Callback-Secret header).
	CallbackSecret string `yaml:"-" env:"WEBHOOK_CALLBACK_SECRET"` // Secret - not in YAML
}

// StorageConfig holds object storage (MinIO / S3-compatible) configuration.
type StorageConfig struct {
	Endpoint         string `yaml:"endpoint" env:"STORAGE_ENDPOINT" env-default:"localhost:9000"`
	UseSSL           bool   `yaml:"use_ssl" env:"STORAGE_USE_SSL" env-default:"false"`
	AccessKey        string `yaml:"-" env:"STORAGE_ACCESS_KEY"` // Secret - not in YAML
	SecretKey        string `yaml:"-" env:"STORAGE_SECRET_KEY"` // Secret - not in YAML
	Region           string `yaml:"region" env:"STORAGE_REGION" env-default:"us-east-1"`
	IdeaBucket       string `yaml:"idea_bucket" env:"STORAGE_IDEA_BUCKET" env-default:"content-idea-files"`
	DerivativeBucket string `yaml:"derivative_bucket" env:"STORAGE_DERIVATIVE_BUCKET" env-default:"content-derivatives"`
	// PublicBaseURL prefixes public object URLs: <base>/<bucket>/<path>.
	PublicBaseURL string `yaml:"public_base_url" env:"STORAGE_PUBLIC_BASE_URL" env-default:"http://localhost:9000"`
	MaxUploadMB   int64  `yaml:"max_upload_mb" env:"STORAGE_MAX_UPLOAD_MB" env-default:"20"`
}

// WordPressConfig holds WordPress REST API credentials.
type WordPressConfig struct {
	BaseURL     string        `yaml:"base_url" env:"WORDPRESS_BASE_URL" env-default:""`
	Username    string        `yaml:"username" env:"WORDPRESS_USERNAME" env-default:""`
	AppPassword string        `yaml:"-" env:"WORDPRESS_APP_PASSWORD"` // Secret - not in YAML
	PostStatus  string        `yaml:"post_status" env:"WORDPRESS_POST_STATUS" env-default:"publish"`
	Timeout     time.Duration `yaml:"timeout" env:"WORDPRESS_TIMEOUT" env-default:"30s"`
}

// IsConfigured returns true if publishing is possible.
func (c *WordPressConfig) IsConfigured() bool {
	return c.BaseURL != "" && c.Username != "" && c.AppPassword != ""
}

// SchedulerConfig holds cron expressions for background jobs. Empty disables a job.
type SchedulerConfig struct {
	TimeoutSweepCron     string `yaml:"timeout_sweep_cron" env:"SCHEDULER_TIMEOUT_SWEEP_CRON" env-default:"*/5 * * * *"`
	CleanupCron          string `yaml:"cleanup_cron" env:"SCHEDULER_CLEANUP_CRON" env-default:"0 3 * * *"`
	CleanupOlderThanDays int    `yaml:"cleanup_older_than_days" env:"SCHEDULER_CLEANUP_OLDER_THAN_DAYS" env-default:"90"`
	CleanupBatchSize     int    `yaml:"cleanup_batch_size" env:"SCHEDULER_CLEANUP_BATCH_SIZE" env-default:"1000"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateLifecycle(); err != nil {
		return nil, fmt.Errorf("invalid lifecycle configuration: %w", err)
	}

	cfg.resolveDockerHosts()

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}
	if cfg.Webhooks.CallbackBaseURL == "" {
		cfg.Webhooks.CallbackBaseURL = cfg.BaseURL
	}
	cfg.Webhooks.CallbackBaseURL = strings.TrimRight(cfg.Webhooks.CallbackBaseURL, "/")
	cfg.Storage.PublicBaseURL = strings.TrimRight(cfg.Storage.PublicBaseURL, "/")

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (c *Config) validateLifecycle() error {
	// retry_count is CHECKed to 0..3 in the schema.
	if c.Lifecycle.MaxRetries < 1 || c.Lifecycle.MaxRetries > 3 {
		return fmt.Errorf("max_retries must be between 1 and 3, got %d", c.Lifecycle.MaxRetries)
	}
	if c.Lifecycle.ProcessingTimeout <= 0 {
		return fmt.Errorf("processing_timeout must be positive, got %s", c.Lifecycle.ProcessingTimeout)
	}
	if c.Webhooks.MaxConcurrency < 1 {
		return fmt.Errorf("webhooks.max_concurrency must be positive, got %d", c.Webhooks.MaxConcurrency)
	}
	return nil
}

// CallbackURL joins the callback base URL and a function path.
func (c *WebhookConfig) CallbackURL(path string) string {
	return c.CallbackBaseURL + "/" + strings.TrimLeft(path, "/")
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}
