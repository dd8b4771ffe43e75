package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/scamshield/internal/blocklist"
	"github.com/richxcame/scamshield/internal/decay"
	"github.com/richxcame/scamshield/internal/enrichment"
	"github.com/richxcame/scamshield/internal/entity"
	"github.com/richxcame/scamshield/internal/features"
	"github.com/richxcame/scamshield/internal/fingerprint"
	"github.com/richxcame/scamshield/internal/intel"
	"github.com/richxcame/scamshield/internal/scan"
	"github.com/richxcame/scamshield/internal/scheduler"
	"github.com/richxcame/scamshield/pkg/common"
	"github.com/richxcame/scamshield/pkg/config"
	"github.com/richxcame/scamshield/pkg/database"
	"github.com/richxcame/scamshield/pkg/eventbus"
	"github.com/richxcame/scamshield/pkg/health"
	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/middleware"
	"github.com/richxcame/scamshield/pkg/ratelimit"
	"github.com/richxcame/scamshield/pkg/redis"
	"github.com/richxcame/scamshield/pkg/secrets"
	"github.com/richxcame/scamshield/pkg/storage"
	"github.com/richxcame/scamshield/pkg/tracing"
	"go.uber.org/zap"
)

const serviceName = "scamshield"

// edges older than this no longer link entities
const graphEdgeMaxAge = 180 * 24 * time.Hour

// routeDeps are the handlers and probes the HTTP router is built from
type routeDeps struct {
	scan    *scan.Handler
	reports *entity.Handler
	limiter ratelimit.Limiter
	checks  map[string]func() error

	// probed for diagnostics only; scans degrade without them
	upstreams map[string]func() error
}

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment, cfg.Server.LogLevel,
		zap.String("service", serviceName),
		zap.String("version", cfg.Server.Version),
	); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting scamshield", zap.String("environment", cfg.Server.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := resolveSecrets(ctx, cfg); err != nil {
		logger.Fatal("Failed to resolve secrets", zap.Error(err))
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     serviceName + "@" + cfg.Server.Version,
		}); err != nil {
			logger.Warn("Failed to initialize sentry", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, serviceName, cfg.Server.Version)
	if err != nil {
		logger.Warn("Failed to initialize tracing, continuing without it", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	checks := map[string]func() error{}

	// Intelligence store: Postgres when configured, otherwise the curated seed in memory
	var repo intel.Repository
	if cfg.Database.Enabled {
		pool, err := database.NewPostgresPool(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(pool)

		if err := database.Migrate(&cfg.Database); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		db := database.OpenDB(pool)
		repo = intel.NewPostgresRepository(db)
		checks["database"] = health.NewCachedChecker(health.DatabaseChecker(db), 5*time.Second).Check
		logger.Info("Connected to PostgreSQL database")
	} else {
		campaigns, err := intel.LoadCampaignSeed(cfg.Campaigns.SeedPath)
		if err != nil {
			logger.Warn("Campaign seed unavailable, starting with no campaigns",
				zap.String("path", cfg.Campaigns.SeedPath),
				zap.Error(err),
			)
		}
		repo = intel.NewMemoryRepository(campaigns)
		logger.Info("Using in-memory intelligence store", zap.Int("campaigns", len(campaigns)))
	}

	housekeeping := scheduler.NewWorker(logger.Get())

	limiter, err := newLimiter(ctx, cfg, checks, housekeeping)
	if err != nil {
		logger.Fatal("Failed to initialize rate limiter", zap.Error(err))
	}

	bl, err := loadBlocklist(ctx, cfg.Blocklist)
	if err != nil {
		// scans run without the blocklist stage; /blocklist/check answers 503
		logger.Error("Failed to load blocklist", zap.Error(err))
	}

	var bus eventbus.Bus = eventbus.NoopBus{}
	if cfg.NATS.Enabled {
		nb, err := eventbus.Connect(cfg.NATS, serviceName)
		if err != nil {
			logger.Warn("NATS unavailable, events disabled", zap.Error(err))
		} else {
			bus = nb
			logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
		}
	}
	defer bus.Close()

	source := serviceName + "-" + uuid.NewString()

	graph := entity.NewGraph()
	entities := entity.NewService(repo, graph, decay.NewEngine(nil), bus, source)
	if err := bus.Subscribe(eventbus.TypeReportSubmitted, entities.HandleReportSubmitted); err != nil {
		logger.Warn("Failed to subscribe to report events", zap.Error(err))
	}

	matcher, err := fingerprint.Load(ctx, repo)
	if err != nil {
		logger.Fatal("Failed to load campaign templates", zap.Error(err))
	}

	var ai features.AIDetector = features.NewHeuristicDetector()
	if cfg.Enrichment.AIDetectorURL != "" {
		ai = features.NewRemoteAIDetector(cfg.Enrichment.AIDetectorURL, cfg.Enrichment.LookupTimeout, ai)
	}

	cooldown := ratelimit.NewCooldown(cfg.RateLimit.CooldownWindow)
	var enricher scan.Enricher
	if cfg.Enrichment.Enabled {
		enricher = enrichment.NewService(cfg.Enrichment, cooldown)
	}

	engine := scan.NewEngine(scan.Deps{
		Blocklist: bl,
		AI:        ai,
		Graph:     entities,
		Matcher:   matcher,
		Enricher:  enricher,
		Bus:       bus,
		Source:    source,
	}, scan.Options{
		Budget:         cfg.Server.ScanBudget,
		ScorerTimeout:  cfg.Server.ScorerTimeout,
		MaxTextLength:  cfg.Limits.MaxTextLength,
		MaxQueryLength: cfg.Limits.MaxQueryLength,
	})

	for _, job := range []scheduler.Job{
		scheduler.Sweep("cooldown_sweep", "@every 5m", cooldown.Sweep),
		scheduler.Sweep("graph_purge", "@every 1h", func() int { return entities.PurgeGraph(graphEdgeMaxAge) }),
	} {
		if err := housekeeping.Add(job); err != nil {
			logger.Fatal("Failed to schedule housekeeping", zap.Error(err))
		}
	}
	housekeeping.Start()

	router := newRouter(cfg, routeDeps{
		scan:    scan.NewHandler(engine),
		reports: entity.NewHandler(entities),
		limiter:   limiter,
		checks:    checks,
		upstreams: upstreamChecks(cfg.Enrichment),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := housekeeping.Stop(shutdownCtx); err != nil {
		logger.Warn("Housekeeping did not stop cleanly", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// resolveSecrets replaces secret references in cfg with the values they name
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	resolver := secrets.NewResolver(secrets.Config{
		AWSRegion:   cfg.Secrets.AWSRegion,
		AWSEndpoint: cfg.Secrets.AWSEndpoint,
		FileBase:    cfg.Secrets.FileBase,
		CacheTTL:    cfg.Secrets.CacheTTL,
	})

	targets := []struct {
		name  string
		value *string
	}{
		{"database_password", &cfg.Database.Password},
		{"redis_password", &cfg.Redis.Password},
		{"fact_check_api_key", &cfg.Enrichment.FactCheckAPIKey},
		{"sentry_dsn", &cfg.Sentry.DSN},
	}
	for _, t := range targets {
		v, err := resolver.Resolve(ctx, t.name, *t.value)
		if err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
		*t.value = v
	}
	return nil
}

// newLimiter picks the rate limit backend and registers its upkeep
func newLimiter(ctx context.Context, cfg *config.Config, checks map[string]func() error, hk *scheduler.Worker) (ratelimit.Limiter, error) {
	if cfg.RateLimit.Backend == "redis" {
		if !cfg.Redis.Enabled {
			return nil, errors.New("redis rate limit backend requires REDIS_ENABLED")
		}
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := redis.NewRedisClient(dialCtx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		checks["redis"] = health.AsyncChecker(health.RedisChecker(client.Client), 2*time.Second)
		logger.Info("Using Redis rate limiter", zap.String("addr", cfg.Redis.RedisAddr()))
		return ratelimit.NewRedisLimiter(client.Client, cfg.RateLimit), nil
	}

	mem := ratelimit.NewMemoryLimiter(cfg.RateLimit)
	if err := hk.Add(scheduler.Sweep("limiter_sweep", "@every 1m", mem.Sweep)); err != nil {
		return nil, err
	}
	return mem, nil
}

// loadBlocklist reads the denylist from S3 when a bucket is configured, otherwise from disk
func loadBlocklist(ctx context.Context, cfg config.BlocklistConfig) (*blocklist.Blocklist, error) {
	var (
		src storage.Source
		key = cfg.FilePath
	)
	if cfg.S3Bucket != "" {
		s3src, err := storage.NewS3Source(ctx, storage.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("blocklist source: %w", err)
		}
		src, key = s3src, cfg.S3Key
	} else {
		src = storage.NewLocalSource("")
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return blocklist.Load(loadCtx, src, key, cfg.FalsePositiveRate)
}

func newRouter(cfg *config.Config, deps routeDeps) *gin.Engine {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	if cfg.Sentry.Enabled {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger("/healthz", "/healthz/upstreams", "/readyz", "/metrics"))
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())

	corsConfig := cors.DefaultConfig()
	if origins := splitOrigins(cfg.Server.CORSOrigins); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{"Retry-After", "X-RateLimit-Remaining", middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheck(serviceName, cfg.Server.Version))
	router.GET("/readyz", common.HealthCheckWithDeps(serviceName, cfg.Server.Version, deps.checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if len(deps.upstreams) > 0 {
		router.GET("/healthz/upstreams", common.HealthCheckWithDeps(serviceName, cfg.Server.Version, deps.upstreams))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.MaxBodySize(cfg.Limits.MaxBodyBytes))
	if cfg.RateLimit.Enabled && deps.limiter != nil {
		api.Use(middleware.RateLimit(deps.limiter))
	}
	api.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	deps.scan.RegisterRoutes(api)
	deps.reports.RegisterRoutes(api)

	return router
}

// upstreamChecks probes the configured scoring upstreams. Results are cached
// so a scraping monitor does not turn into load on third-party APIs.
func upstreamChecks(cfg config.EnrichmentConfig) map[string]func() error {
	const ttl = 30 * time.Second
	checks := map[string]func() error{}
	if cfg.AIDetectorURL != "" {
		checks["ai_detector"] = health.NewCachedChecker(health.HTTPEndpointChecker(cfg.AIDetectorURL), ttl).Check
	}
	if !cfg.Enabled {
		return checks
	}

	lookups := map[string]health.Checker{}
	if cfg.FactCheckURL != "" {
		lookups["fact_check"] = health.HTTPEndpointChecker(cfg.FactCheckURL)
	}
	if cfg.DomainProfileURL != "" {
		lookups["rdap"] = health.HTTPEndpointChecker(cfg.DomainProfileURL)
	}
	if len(lookups) > 0 {
		checks["enrichment"] = health.NewCachedChecker(health.CompositeChecker("enrichment", lookups), ttl).Check
	}
	return checks
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
