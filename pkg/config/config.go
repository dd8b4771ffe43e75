package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Blocklist  BlocklistConfig
	Campaigns  CampaignsConfig
	Enrichment EnrichmentConfig
	NATS       NATSConfig
	Tracing    TracingConfig
	Sentry     SentryConfig
	Secrets    SecretsConfig
	Limits     LimitsConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	Environment    string
	LogLevel       string // overrides the environment's default level
	ServiceName    string
	Version        string
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout time.Duration // hard stop for one HTTP request
	ScanBudget     time.Duration // engine budget for one score() call
	ScorerTimeout  time.Duration // budget of each subsystem inside a scan
	CORSOrigins    string        // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// RateLimitConfig configures the sliding-window abuse gate.
type RateLimitConfig struct {
	Enabled        bool
	Backend        string // memory | redis
	PerMinute      int
	PerHour        int
	RedisPrefix    string
	CooldownWindow time.Duration // spacing of outbound calls to one host
}

// BlocklistConfig points at the denylist source.
type BlocklistConfig struct {
	FilePath          string
	S3Bucket          string
	S3Key             string
	S3Region          string
	S3Endpoint        string // S3-compatible stores such as MinIO
	FalsePositiveRate float64
}

// CampaignsConfig points at the campaign seed used by the in-memory repository.
type CampaignsConfig struct {
	SeedPath string
}

// EnrichmentConfig holds settings for best-effort third-party lookups.
type EnrichmentConfig struct {
	Enabled           bool
	LookupTimeout     time.Duration
	FactCheckURL      string
	FactCheckAPIKey   string
	UsernamePlatforms []string
	DomainProfileURL  string
	AIDetectorURL     string
}

// NATSConfig holds result-emission settings
type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

// SentryConfig holds error reporting settings
type SentryConfig struct {
	Enabled bool
	DSN     string
}

// SecretsConfig configures where aws-sm:// and file:// references in other
// settings are resolved from.
type SecretsConfig struct {
	AWSRegion   string
	AWSEndpoint string
	FileBase    string
	CacheTTL    time.Duration
}

// LimitsConfig holds input size limits enforced at the HTTP boundary.
type LimitsConfig struct {
	MaxTextLength  int
	MaxQueryLength int
	MaxBodyBytes   int64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			LogLevel:       getEnv("LOG_LEVEL", ""),
			ServiceName:    serviceName,
			Version:        getEnv("SERVICE_VERSION", "0.1.0"),
			ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 10),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 8*time.Second),
			ScanBudget:     getEnvAsDuration("SCAN_BUDGET", 5*time.Second),
			ScorerTimeout:  getEnvAsDuration("SCORER_TIMEOUT", 2*time.Second),
			CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "scamshield"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 20),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Backend:        getEnv("RATE_LIMIT_BACKEND", "memory"),
			PerMinute:      getEnvAsInt("RATE_LIMIT_PER_MINUTE", 10),
			PerHour:        getEnvAsInt("RATE_LIMIT_PER_HOUR", 100),
			RedisPrefix:    getEnv("RATE_LIMIT_REDIS_PREFIX", "scamshield:rl"),
			CooldownWindow: getEnvAsDuration("ENRICHMENT_HOST_COOLDOWN", 250*time.Millisecond),
		},
		Blocklist: BlocklistConfig{
			FilePath:          getEnv("BLOCKLIST_PATH", "data/blocklist.txt"),
			S3Bucket:          getEnv("BLOCKLIST_S3_BUCKET", ""),
			S3Key:             getEnv("BLOCKLIST_S3_KEY", ""),
			S3Region:          getEnv("BLOCKLIST_S3_REGION", "us-east-1"),
			S3Endpoint:        getEnv("BLOCKLIST_S3_ENDPOINT", ""),
			FalsePositiveRate: getEnvAsFloat("BLOCKLIST_FP_RATE", 0.001),
		},
		Campaigns: CampaignsConfig{
			SeedPath: getEnv("CAMPAIGN_SEED_PATH", "data/campaigns.json"),
		},
		Enrichment: EnrichmentConfig{
			Enabled:           getEnvAsBool("ENRICHMENT_ENABLED", false),
			LookupTimeout:     getEnvAsDuration("ENRICHMENT_LOOKUP_TIMEOUT", 3*time.Second),
			FactCheckURL:      getEnv("FACT_CHECK_URL", "https://factchecktools.googleapis.com"),
			FactCheckAPIKey:   getEnv("FACT_CHECK_API_KEY", ""),
			UsernamePlatforms: getEnvAsList("USERNAME_PLATFORMS", "https://github.com/%s,https://www.reddit.com/user/%s"),
			DomainProfileURL:  getEnv("DOMAIN_PROFILE_URL", "https://rdap.org"),
			AIDetectorURL:     getEnv("AI_DETECTOR_URL", ""),
		},
		NATS: NATSConfig{
			Enabled:       getEnvAsBool("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "scamshield"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio: getEnvAsFloat("TRACING_SAMPLE_RATIO", 1.0),
		},
		Sentry: SentryConfig{
			Enabled: getEnvAsBool("SENTRY_ENABLED", false),
			DSN:     getEnv("SENTRY_DSN", ""),
		},
		Secrets: SecretsConfig{
			AWSRegion:   getEnv("SECRETS_AWS_REGION", ""),
			AWSEndpoint: getEnv("SECRETS_AWS_ENDPOINT", ""),
			FileBase:    getEnv("SECRETS_FILE_BASE", "/var/run/secrets"),
			CacheTTL:    getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
		},
		Limits: LimitsConfig{
			MaxTextLength:  getEnvAsInt("MAX_TEXT_LENGTH", 5000),
			MaxQueryLength: getEnvAsInt("MAX_QUERY_LENGTH", 500),
			MaxBodyBytes:   int64(getEnvAsInt("MAX_BODY_BYTES", 64*1024)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.PerHour <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		errs = append(errs, fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend))
	}
	if c.Blocklist.FalsePositiveRate <= 0 || c.Blocklist.FalsePositiveRate >= 1 {
		errs = append(errs, fmt.Errorf("blocklist false positive rate %v outside (0,1)", c.Blocklist.FalsePositiveRate))
	}
	if c.Limits.MaxTextLength <= 0 || c.Limits.MaxQueryLength <= 0 {
		errs = append(errs, errors.New("input limits must be positive"))
	}
	if c.Enrichment.LookupTimeout <= 0 {
		errs = append(errs, errors.New("enrichment lookup timeout must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the database connection string in URL form, as golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
