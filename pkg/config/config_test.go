package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/storage"
)

// setRequired sets the minimum environment for a valid configuration
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TENANTGATE_DATABASE_URL", "postgres://localhost/tenantgate")
	t.Setenv("TENANTGATE_JWT_SECRET", "secret")
}

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "tenantgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv(FileEnv, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, string(storage.DialectPostgres), cfg.Database.Dialect)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "*/5 * * * *", cfg.Authorization.ExpiryReportSchedule)
	assert.True(t, cfg.Authorization.SeedManagerGrant)
	assert.Equal(t, observability.InfoLevel, cfg.LogLevel())
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TENANTGATE_PORT", "8181")
	t.Setenv("TENANTGATE_READ_TIMEOUT", "3s")
	t.Setenv("TENANTGATE_AUTO_MIGRATE", "false")
	t.Setenv("TENANTGATE_SEED_MANAGER_GRANT", "0")
	t.Setenv("TENANTGATE_RATE_LIMIT_REQUESTS", "5")
	t.Setenv("TENANTGATE_LOG_LEVEL", "debug")
	t.Setenv("TENANTGATE_DATABASE_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Authorization.SeedManagerGrant)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel())
	assert.Equal(t, storage.DefaultConfig().MaxOpenConns, cfg.Database.MaxOpenConns, "unparsable values keep the default")
}

func TestLoadFileWithEnvironmentPrecedence(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
server:
  port: "7000"
  healthPort: "7001"
  writeTimeout: 20s
database:
  url: sqlite-from-file
  dialect: sqlite3
auth:
  jwtSecret: from-file
rateLimit:
  requestsPerWindow: 10
observability:
  logLevel: warn
  auditFile: /var/log/tenantgate/audit.log
`)
	t.Setenv("TENANTGATE_PORT", "7100")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Server.Port, "environment wins")
	assert.Equal(t, "7001", cfg.Server.HealthPort)
	assert.Equal(t, 20*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "sqlite-from-file", cfg.Database.URL)
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, observability.WarnLevel, cfg.LogLevel())
	assert.Equal(t, "/var/log/tenantgate/audit.log", cfg.Observability.AuditFile)

	sc := cfg.StorageConfig()
	assert.Equal(t, storage.DialectSQLite, sc.Dialect)
	assert.Equal(t, "sqlite-from-file", sc.URL)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "server: [unclosed")
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Database.URL = "postgres://localhost/tenantgate"
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"empty health port", func(c *Config) { c.Server.HealthPort = "" }},
		{"same ports", func(c *Config) { c.Server.HealthPort = c.Server.Port }},
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"unknown dialect", func(c *Config) { c.Database.Dialect = "mysql" }},
		{"no credential resolver", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"oidc without client", func(c *Config) { c.Auth.OIDCIssuer = "https://issuer.example" }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("oidc only", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.JWTSecret = ""
		cfg.Auth.OIDCIssuer = "https://issuer.example"
		cfg.Auth.OIDCClientID = "tenantgate"
		assert.NoError(t, cfg.Validate())
	})
}

func TestOTelConfig(t *testing.T) {
	cfg := Default()
	cfg.Observability.OTelEnabled = true
	cfg.Observability.OTelSampleRatio = 0.25

	otel := cfg.OTelConfig()
	assert.True(t, otel.Enabled)
	assert.Equal(t, "tenantgate", otel.ServiceName)
	assert.Equal(t, 0.25, otel.SampleRatio)
}

func TestWatchFileReloads(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "observability:\n  logLevel: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *Config, 16)
	failures := make(chan error, 16)
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, path, func(cfg *Config, err error) {
			if err != nil {
				select {
				case failures <- err:
				default:
				}
				return
			}
			select {
			case reloads <- cfg:
			default:
			}
		})
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  logLevel: error\n"), 0o600))

	// a truncating write can surface as more than one event
	deadline := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-reloads:
			reloaded = cfg.LogLevel() == observability.ErrorLevel
		case err := <-failures:
			t.Fatalf("unexpected reload failure: %v", err)
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
