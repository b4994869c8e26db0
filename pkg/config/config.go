package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/storage"
)

// FileEnv names the environment variable pointing at an optional YAML file
const FileEnv = "TENANTGATE_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Redis         RedisConfig         `yaml:"redis"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit"`
	Authorization AuthorizationConfig `yaml:"authorization"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"healthPort"`
}

// DatabaseConfig holds the grant and membership store connection
type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	Dialect        string        `yaml:"dialect"`
	MaxOpenConns   int           `yaml:"maxOpenConns"`
	MaxIdleConns   int           `yaml:"maxIdleConns"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	AutoMigrate    bool          `yaml:"autoMigrate"`
}

// AuthConfig selects how bearer credentials are resolved. Both resolvers may
// be configured; JWT is tried first.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwtSecret"`
	JWTIssuer    string        `yaml:"jwtIssuer"`
	TokenTTL     time.Duration `yaml:"tokenTTL"`
	OIDCIssuer   string        `yaml:"oidcIssuer"`
	OIDCClientID string        `yaml:"oidcClientId"`
}

// RedisConfig enables the shared rate limiter when URL is set
type RedisConfig struct {
	URL string `yaml:"url"`
}

// RateLimitConfig limits mutations per caller
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requestsPerWindow"`
	Window            time.Duration `yaml:"window"`
}

// AuthorizationConfig tunes the grant service
type AuthorizationConfig struct {
	DirectoryCacheSize   int           `yaml:"directoryCacheSize"`
	DirectoryCacheTTL    time.Duration `yaml:"directoryCacheTTL"`
	ExpiryReportSchedule string        `yaml:"expiryReportSchedule"`
	SeedManagerGrant     bool          `yaml:"seedManagerGrant"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel"`
	AuditFile string `yaml:"auditFile"`

	MetricsEnabled bool `yaml:"metricsEnabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otelEnabled"`
	OTelEndpoint       string  `yaml:"otelEndpoint"`
	OTelServiceName    string  `yaml:"otelServiceName"`
	OTelServiceVersion string  `yaml:"otelServiceVersion"`
	OTelInsecure       bool    `yaml:"otelInsecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otelSampleRatio"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	db := storage.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Dialect:        string(db.Dialect),
			MaxOpenConns:   db.MaxOpenConns,
			MaxIdleConns:   db.MaxIdleConns,
			ConnectTimeout: db.Timeout,
			AutoMigrate:    true,
		},
		Auth: AuthConfig{
			JWTIssuer: "tenantgate",
			TokenTTL:  time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 60,
			Window:            time.Minute,
		},
		Authorization: AuthorizationConfig{
			DirectoryCacheSize:   1024,
			DirectoryCacheTTL:    time.Minute,
			ExpiryReportSchedule: "*/5 * * * *",
			SeedManagerGrant:     true,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "tenantgate",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// Load reads the YAML file named by TENANTGATE_CONFIG_FILE, if any, then
// applies TENANTGATE_* environment overrides and validates the result
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides every field whose environment variable is set
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("TENANTGATE_HOST", s.Host)
	s.Port = getEnv("TENANTGATE_PORT", s.Port)
	s.HealthPort = getEnv("TENANTGATE_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("TENANTGATE_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("TENANTGATE_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("TENANTGATE_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("TENANTGATE_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("TENANTGATE_MAX_BODY_BYTES", s.MaxBodyBytes)

	d := &c.Database
	d.URL = getEnv("TENANTGATE_DATABASE_URL", d.URL)
	d.Dialect = getEnv("TENANTGATE_DATABASE_DIALECT", d.Dialect)
	d.MaxOpenConns = getEnvInt("TENANTGATE_DATABASE_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("TENANTGATE_DATABASE_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnectTimeout = getEnvDuration("TENANTGATE_DATABASE_CONNECT_TIMEOUT", d.ConnectTimeout)
	d.AutoMigrate = getEnvBool("TENANTGATE_AUTO_MIGRATE", d.AutoMigrate)

	a := &c.Auth
	a.JWTSecret = getEnv("TENANTGATE_JWT_SECRET", a.JWTSecret)
	a.JWTIssuer = getEnv("TENANTGATE_JWT_ISSUER", a.JWTIssuer)
	a.TokenTTL = getEnvDuration("TENANTGATE_TOKEN_TTL", a.TokenTTL)
	a.OIDCIssuer = getEnv("TENANTGATE_OIDC_ISSUER", a.OIDCIssuer)
	a.OIDCClientID = getEnv("TENANTGATE_OIDC_CLIENT_ID", a.OIDCClientID)

	c.Redis.URL = getEnv("TENANTGATE_REDIS_URL", c.Redis.URL)

	r := &c.RateLimit
	r.RequestsPerWindow = getEnvInt("TENANTGATE_RATE_LIMIT_REQUESTS", r.RequestsPerWindow)
	r.Window = getEnvDuration("TENANTGATE_RATE_LIMIT_WINDOW", r.Window)

	z := &c.Authorization
	z.DirectoryCacheSize = getEnvInt("TENANTGATE_DIRECTORY_CACHE_SIZE", z.DirectoryCacheSize)
	z.DirectoryCacheTTL = getEnvDuration("TENANTGATE_DIRECTORY_CACHE_TTL", z.DirectoryCacheTTL)
	z.ExpiryReportSchedule = getEnv("TENANTGATE_EXPIRY_REPORT_SCHEDULE", z.ExpiryReportSchedule)
	z.SeedManagerGrant = getEnvBool("TENANTGATE_SEED_MANAGER_GRANT", z.SeedManagerGrant)

	o := &c.Observability
	o.LogLevel = getEnv("TENANTGATE_LOG_LEVEL", o.LogLevel)
	o.AuditFile = getEnv("TENANTGATE_AUDIT_FILE", o.AuditFile)
	o.MetricsEnabled = getEnvBool("TENANTGATE_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("TENANTGATE_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("TENANTGATE_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("TENANTGATE_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("TENANTGATE_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("TENANTGATE_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("TENANTGATE_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	switch storage.Dialect(c.Database.Dialect) {
	case storage.DialectPostgres, storage.DialectSQLite:
	default:
		return fmt.Errorf("invalid database dialect: %s (must be postgres or sqlite3)", c.Database.Dialect)
	}

	// Validate auth config
	if c.Auth.JWTSecret == "" && c.Auth.OIDCIssuer == "" {
		return fmt.Errorf("a JWT secret or an OIDC issuer is required")
	}
	if c.Auth.OIDCIssuer != "" && c.Auth.OIDCClientID == "" {
		return fmt.Errorf("OIDC client id is required when an OIDC issuer is set")
	}

	// Validate rate limit config
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("rate limit requests per window must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// StorageConfig converts the database section for storage.Open
func (c *Config) StorageConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Dialect = storage.Dialect(c.Database.Dialect)
	cfg.URL = c.Database.URL
	if c.Database.MaxOpenConns > 0 {
		cfg.MaxOpenConns = c.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns > 0 {
		cfg.MaxIdleConns = c.Database.MaxIdleConns
	}
	if c.Database.ConnectTimeout > 0 {
		cfg.Timeout = c.Database.ConnectTimeout
	}
	return cfg
}

// OTelConfig converts the observability section for observability.InitOTel
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// LogLevel parses the configured log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
