package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	registryclient "seller-gateway/internal/clients/registry"
	redisclient "seller-gateway/internal/clients/redis"
	"seller-gateway/internal/config"
	"seller-gateway/internal/handlers/protocol"
	"seller-gateway/internal/middleware"
	auditrepo "seller-gateway/internal/repository/audit"
	"seller-gateway/internal/services/audit"
	"seller-gateway/internal/services/auth"
	"seller-gateway/internal/services/cache"
	"seller-gateway/internal/services/callback"
	"seller-gateway/internal/services/idempotency"
	"seller-gateway/internal/services/metrics"
	"seller-gateway/internal/services/registry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsService := metrics.NewService(promRegistry)

	redisClient, err := redisclient.NewClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	var auditService *audit.Service
	var db *sql.DB
	if cfg.Postgres.Host != "" {
		db, err = openPostgres(cfg.Postgres)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close()
		auditService = audit.NewService(auditrepo.NewRepository(db, logger), logger)
	} else {
		logger.Warn("postgres not configured, audit logging disabled")
	}

	signer, err := auth.NewSigner(cfg.Protocol)
	if err != nil {
		logger.Fatal("failed to load signing keys", zap.Error(err))
	}
	if err := signer.SelfTest(); err != nil {
		logger.Fatal("signing key self test failed", zap.Error(err))
	}

	lookupClient := registryclient.NewClient(cfg.Registry, cfg.Protocol, logger)
	resolver := registry.NewResolver(
		lookupClient,
		cache.NewRedisStore(redisClient, logger),
		cfg.Registry.CacheTTL,
		metricsService,
		logger,
	)

	gate := auth.NewGate(
		resolver,
		time.Duration(cfg.Protocol.ClockSkewSeconds)*time.Second,
		cfg.Protocol.DevModeBypass,
		logger,
	)
	if cfg.Protocol.DevModeBypass {
		logger.Warn("dev mode bypass is enabled, signature verification can be skipped per request")
	}

	dispatcher := callback.NewDispatcher(cfg.Callback, signer, logger)
	retryService := callback.NewRetryService(
		dispatcher, cfg.Retry, cfg.Callback, redisClient, deliveryAuditor(auditService), metricsService, logger,
	)

	providerName := cfg.Protocol.ProviderName
	if providerName == "" {
		providerName = cfg.Protocol.SubscriberID
	}
	pipeline := protocol.NewPipeline(
		protocol.DefaultProcessors(cfg.Protocol, providerName),
		retryService,
		cfg.Protocol,
		logger,
	)

	queue := callback.NewQueue(cfg.Callback, pipeline, metricsService, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)

	idempotencyService := idempotency.NewService(
		idempotency.NewRedisStorage(redisClient, cfg.Redis.KeyPrefix),
		cfg.TTL.IdempotencyKey,
		metricsService,
		logger,
	)

	router, err := buildRouter(cfg, gate, resolver, idempotencyService, queue, auditService, metricsService, promRegistry, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("gateway listening",
			zap.String("addr", server.Addr),
			zap.String("subscriber_id", cfg.Protocol.SubscriberID),
			zap.String("domain", cfg.Protocol.Domain),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	// Drain in-flight callback deliveries before the process exits.
	queue.Stop()
	logger.Info("shutdown complete")
}

func buildRouter(
	cfg *config.Config,
	gate *auth.Gate,
	resolver *registry.Resolver,
	idempotencyService *idempotency.Service,
	queue *callback.Queue,
	auditService *audit.Service,
	metricsService *metrics.Service,
	promRegistry *prometheus.Registry,
	redisClient *redisclient.Client,
	logger *zap.Logger,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics(metricsService))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := redisClient.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	// Operational surface for key rotations: drop one cached subscriber
	// record, or all of them when no key is given. Bind this behind the
	// deployment's internal network, not the public ingress.
	router.POST("/internal/registry/invalidate", func(c *gin.Context) {
		var req struct {
			SubscriberID string `json:"subscriber_id"`
			UkID         string `json:"uk_id"`
		}
		_ = c.ShouldBindJSON(&req)

		var err error
		if req.SubscriberID != "" && req.UkID != "" {
			err = resolver.Invalidate(c.Request.Context(), req.SubscriberID, req.UkID)
		} else {
			err = resolver.InvalidateAll(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	proxies, err := middleware.NewTrustedProxyList(cfg.Server.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted proxy list: %w", err)
	}

	signed := router.Group("/")
	signed.Use(middleware.SignatureAuthWithConfig(gate, logger, middleware.SignatureAuthConfig{
		Realm:               cfg.Protocol.SubscriberID,
		TrustedProxyChecker: proxies,
		Metrics:             metricsService,
	}))
	protocol.RegisterRoutes(signed, idempotencyService, queue, requestAuditor(auditService), cfg.Protocol, cfg.TTL.RequestTTL, logger)

	return router, nil
}

// requestAuditor and deliveryAuditor keep a typed nil out of the interface
// values when postgres is not configured.
func requestAuditor(s *audit.Service) protocol.AuditLogger {
	if s == nil {
		return nil
	}
	return s
}

func deliveryAuditor(s *audit.Service) callback.DeliveryAuditor {
	if s == nil {
		return nil
	}
	return s
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	return zapCfg.Build()
}

func openPostgres(cfg config.PostgresConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DB, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
