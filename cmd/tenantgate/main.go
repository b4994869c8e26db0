package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/tenantgate/pkg/api"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/config"
	"github.com/platinummonkey/tenantgate/pkg/middleware"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/orgs"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
	"github.com/platinummonkey/tenantgate/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tenantgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	logger.WithFields(map[string]interface{}{
		"port":        cfg.Server.Port,
		"health_port": cfg.Server.HealthPort,
		"dialect":     cfg.Database.Dialect,
	}).Info("Starting tenantgate")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, cfg.OTelConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Database
	db, err := storage.Open(ctx, cfg.StorageConfig())
	if err != nil {
		return err
	}
	if cfg.Database.AutoMigrate {
		if err := storage.RunMigrations(ctx, db, storage.Dialect(cfg.Database.Dialect), logger.Entry()); err != nil {
			db.Close()
			return err
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Audit
	auditLogger, err := newAuditLogger(cfg, logger)
	if err != nil {
		db.Close()
		return err
	}

	// Services
	rbacStore := rbac.NewStore(db, rbac.WithStoreMetrics(metrics))
	directory := rbac.NewDirectory(db, rbac.DirectoryConfig{
		Size: cfg.Authorization.DirectoryCacheSize,
		TTL:  cfg.Authorization.DirectoryCacheTTL,
	}, metrics)
	rbacService := rbac.NewService(rbacStore, directory, rbac.WithAuditLogger(auditLogger), rbac.WithMetrics(metrics))

	orgOpts := []orgs.ServiceOption{orgs.WithAuditLogger(auditLogger), orgs.WithMetrics(metrics)}
	if cfg.Authorization.SeedManagerGrant {
		orgOpts = append(orgOpts, orgs.WithCreationHook(rbacService.SeedManagerGrant()))
	}
	orgService := orgs.NewService(orgs.NewStore(db, orgs.WithStoreMetrics(metrics)), orgOpts...)

	resolver, err := newResolver(ctx, cfg)
	if err != nil {
		db.Close()
		return err
	}

	// Rate limiting
	var redisClient *redis.Client
	var limiter middleware.Limiter
	limitCfg := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		WindowDuration:    cfg.RateLimit.Window,
	}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		limiter = middleware.NewRedisLimiter(redisClient, limitCfg, "")
		logger.Info("Using Redis rate limiter")
	} else {
		memory := middleware.NewMemoryLimiter(limitCfg)
		memory.StartCleanup(ctx)
		limiter = memory
	}

	enforcer := middleware.NewEnforcer(orgService, rbacService.Checker(),
		middleware.WithDenialAudit(auditLogger),
		middleware.WithDecisionMetrics(metrics))

	apiServer := api.NewServer(api.Dependencies{
		Organizations: orgService,
		Permissions:   rbacService,
		Enforcer:      enforcer,
		Identity:      middleware.NewIdentityMiddleware(resolver),
		Limiter:       limiter,
		Logger:        logger,
		Metrics:       metrics,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	})

	var handler http.Handler = apiServer
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(apiServer, "tenantgate")
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, cfg.Observability.OTelServiceVersion))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	reporter, err := rbac.NewExpiryReporter(rbacStore, cfg.Authorization.ExpiryReportSchedule, metrics, logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("invalid expiry report schedule: %w", err)
	}
	reporter.Start(ctx)

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	shutdown.RegisterShutdownFunc(reporter.Stop)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return auditLogger.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("API server listening")
		return serve(httpServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		return serve(healthServer)
	})
	if path := os.Getenv(config.FileEnv); path != "" {
		g.Go(func() error {
			return config.WatchFile(gctx, path, func(next *config.Config, err error) {
				if err != nil {
					logger.WithError(err).Warn("Ignoring config reload")
					return
				}
				logger.SetLevel(next.LogLevel())
				logger.WithField("level", next.LogLevel().String()).Info("Log level reloaded")
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		err := shutdown.Shutdown(context.Background())
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// serve runs srv until it is shut down
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s: %w", srv.Addr, err)
	}
	return nil
}

// newResolver chains the configured credential resolvers, JWT first
func newResolver(ctx context.Context, cfg *config.Config) (auth.Resolver, error) {
	var chain auth.ChainResolver
	if cfg.Auth.JWTSecret != "" {
		chain = append(chain, auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL))
	}
	if cfg.Auth.OIDCIssuer != "" {
		oidcResolver, err := auth.NewOIDCResolver(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC: %w", err)
		}
		chain = append(chain, oidcResolver)
	}
	return chain, nil
}

// newAuditLogger writes audit events to stdout and, when configured, a file
func newAuditLogger(cfg *config.Config, logger *observability.Logger) (audit.Logger, error) {
	sinks := []audit.Logger{audit.NewLogrusLogger(os.Stdout)}
	if cfg.Observability.AuditFile != "" {
		fileLogger, err := audit.NewFileLogger(cfg.Observability.AuditFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		sinks = append(sinks, fileLogger)
		logger.WithField("path", cfg.Observability.AuditFile).Info("Writing audit events to file")
	}
	return audit.NewMultiLogger(sinks...), nil
}
