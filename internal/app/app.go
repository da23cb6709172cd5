package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/geb2701/storefront/internal/catalog"
	"github.com/geb2701/storefront/internal/config"
	"github.com/geb2701/storefront/internal/event"
	handler "github.com/geb2701/storefront/internal/handler/http"
	"github.com/geb2701/storefront/internal/notify"
	"github.com/geb2701/storefront/internal/orders"
	"github.com/geb2701/storefront/internal/repository"
	"github.com/geb2701/storefront/internal/repository/memory"
	"github.com/geb2701/storefront/internal/repository/postgres"
	redisrepo "github.com/geb2701/storefront/internal/repository/redis"
	"github.com/geb2701/storefront/internal/service"
	"github.com/geb2701/storefront/pkg/database"
	"github.com/geb2701/storefront/pkg/health"
	"github.com/geb2701/storefront/pkg/httpclient"
	pkgkafka "github.com/geb2701/storefront/pkg/kafka"
	"github.com/geb2701/storefront/pkg/middleware"
	"github.com/geb2701/storefront/pkg/tracing"
)

const serviceVersion = "0.1.0"

// App wires together all dependencies and runs the storefront server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	stateRepo      *postgres.StateRepository
	producer       *pkgkafka.Producer
	registry       *service.SessionRegistry
	limiter        *middleware.SessionLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tcfg := tracing.DefaultConfig(handler.ServiceName)
	tcfg.ServiceVersion = serviceVersion
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.Insecure = cfg.OTELInsecure
	tracerShutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	// Cart state persistence.
	repo, err := a.initStateRepository(ctx, healthHandler)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	// Backend API clients share one retrying client; each gets its own breaker
	// so a failing order endpoint does not block catalog reads.
	baseClient := httpclient.New(cfg.HTTPClientConfig())

	var products service.ProductCatalog
	switch cfg.CatalogSource {
	case config.CatalogHTTP:
		cb := httpclient.NewCircuitBreakerClient(baseClient, cfg.CircuitBreakerConfig("catalog"), logger)
		products = catalog.NewHTTPCatalog(cfg.APIBaseURL, cb, logger)
		logger.Info("using backend catalog", slog.String("base_url", cfg.APIBaseURL))
	default:
		products = catalog.DefaultMemoryCatalog()
		logger.Info("using bundled catalog seed")
	}

	orderBreaker := httpclient.NewCircuitBreakerClient(baseClient, cfg.CircuitBreakerConfig("order"), logger)
	orderClient := orders.NewHTTPClient(cfg.APIBaseURL, orderBreaker, logger)

	// Notifications fan out to the per-session feed, the log and, when
	// enabled, Kafka.
	feed := notify.NewFeed(cfg.NotificationFeedSize)
	notifiers := notify.Multi{feed, notify.NewLogNotifier(logger)}

	deps := service.StoreDeps{
		Repo:     repo,
		Logger:   logger,
		Currency: cfg.CurrencySymbol,
	}

	if cfg.KafkaEnabled {
		// Carts publish while holding their session lock, so writes must not
		// wait on the broker.
		pcfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		pcfg.Async = true
		a.producer = pkgkafka.NewProducer(pcfg, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

		eventProducer := event.NewProducer(a.producer, logger)
		deps.Events = eventProducer
		notifiers = append(notifiers, eventProducer)

		producer := a.producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}
	deps.Notifier = notifiers

	a.registry = service.NewSessionRegistry(deps)
	a.registry.OnEvict(feed.Forget)
	checkoutService := service.NewCheckoutService(a.registry, orderClient, notifiers, cfg.CurrencySymbol, logger)

	// HTTP router.
	a.limiter = middleware.NewSessionLimiter(cfg.RateLimitConfig())
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(
		handler.NewCartHandler(a.registry, products, feed, cfg.CurrencySymbol, logger),
		handler.NewProductHandler(products, cfg.CurrencySymbol, logger),
		handler.NewCheckoutHandler(checkoutService, cfg.CurrencySymbol, logger),
		healthHandler,
		logger,
		handler.RouterConfig{
			CORS:            cors,
			PprofCIDRs:      cfg.PprofAllowedCIDRs,
			RequestTimeout:  time.Duration(cfg.RequestTimeout) * time.Second,
			CatalogCacheAge: cfg.CatalogCacheSeconds,
			Limiter:         a.limiter,
		},
	)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStateRepository connects the configured backend and registers its
// readiness check.
func (a *App) initStateRepository(ctx context.Context, h *health.Handler) (repository.StateRepository, error) {
	cfg := a.cfg

	switch cfg.StateBackend {
	case config.BackendRedis:
		client, err := database.NewRedisClient(ctx, cfg.RedisConfig(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		a.logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

		h.RegisterCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return redisrepo.NewStateRepository(client, cfg.StateTTL()), nil

	case config.BackendPostgres:
		pgCfg := cfg.PostgresConfig()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
			a.logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}

		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")

		if cfg.SlowQueryThresholdMs > 0 {
			database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
		}

		h.RegisterCritical("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		a.stateRepo = postgres.NewStateRepository(pool, cfg.StateTTL())
		return a.stateRepo, nil

	default:
		a.logger.Info("cart state kept in memory")
		return memory.NewStateRepository(), nil
	}
}

// Run starts the HTTP server and background janitors, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if idle := a.cfg.SessionIdle(); idle > 0 {
		go a.registry.RunJanitor(ctx, janitorInterval(idle), idle)
	}
	if a.cfg.RateLimitRPS > 0 {
		go a.limiter.Run(ctx)
	}
	if a.stateRepo != nil && a.cfg.PurgeIntervalMins > 0 {
		go a.runPurge(ctx, time.Duration(a.cfg.PurgeIntervalMins)*time.Minute)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// janitorInterval sweeps twice per idle window, at most once a minute.
func janitorInterval(idle time.Duration) time.Duration {
	if iv := idle / 2; iv > time.Minute {
		return iv
	}
	return time.Minute
}

// runPurge deletes expired cart rows every interval until ctx is done.
func (a *App) runPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.stateRepo.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("failed to purge expired carts", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired carts", slog.Int64("rows", n))
			}
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. State store connections
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close state store connections.
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var err error
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.logger.Error("redis close error", slog.String("error", cerr.Error()))
			err = cerr
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return err
}
