package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cimillas/flash-sale/internal/app"
	"github.com/cimillas/flash-sale/internal/cache"
	"github.com/cimillas/flash-sale/internal/clock"
	"github.com/cimillas/flash-sale/internal/config"
	"github.com/cimillas/flash-sale/internal/events"
	"github.com/cimillas/flash-sale/internal/lock"
	"github.com/cimillas/flash-sale/internal/observability"
	"github.com/cimillas/flash-sale/internal/storage/postgres"
	transporthttp "github.com/cimillas/flash-sale/internal/transport/http"
	"github.com/cimillas/flash-sale/internal/worker"
	"github.com/cimillas/flash-sale/migrations"
)

const serviceName = "flash-sale-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	envPath, envErr := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(serviceName, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	switch {
	case envErr != nil:
		logger.Warn("failed to load .env", zap.Error(envErr))
	case envPath != "":
		logger.Info("loaded env file", zap.String("path", envPath))
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(stopCtx, 10*time.Second)
	defer cancel()

	pool, err := openPool(startupCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.Apply(startupCtx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(startupCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	publisher, closePublisher := newPublisher(cfg.NATS, logger)
	defer closePublisher()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	clk := clock.NewSystem()
	locker := newLocker(cfg, pool, redisClient)
	ledgerCache := newLedgerCache(cfg, redisClient)

	productRepo := postgres.NewProductRepository(pool)
	holdRepo := postgres.NewHoldRepository(pool)

	ledger := app.NewStockLedger(productRepo, ledgerCache, clk,
		app.WithLedgerCacheTTL(cfg.Ledger.CacheTTL),
		app.WithLedgerLogger(logger),
		app.WithLedgerMetrics(metrics),
	)
	holdSvc := app.NewHoldService(holdRepo, locker, ledger, clk,
		app.WithHoldTTL(cfg.Holds.TTL),
		app.WithLockWait(cfg.Holds.LockWait),
		app.WithHoldLogger(logger),
		app.WithHoldMetrics(metrics),
		app.WithHoldPublisher(publisher),
	)
	orderSvc := app.NewOrderService(postgres.NewOrderRepository(pool), ledger, clk,
		app.WithOrderLogger(logger),
		app.WithOrderMetrics(metrics),
		app.WithOrderPublisher(publisher),
	)
	paymentSvc := app.NewPaymentService(postgres.NewPaymentRepository(pool), ledger, clk,
		app.WithPaymentLogger(logger),
		app.WithPaymentMetrics(metrics),
		app.WithPaymentPublisher(publisher),
	)
	productSvc := app.NewProductService(productRepo, ledger)
	sweeper := app.NewExpirySweeper(holdRepo, ledger, clk,
		app.WithSweepBatchSize(cfg.Sweeper.BatchSize),
		app.WithSweeperLogger(logger),
		app.WithSweeperMetrics(metrics),
		app.WithSweeperPublisher(publisher),
	)
	expiryWorker := worker.NewExpiryWorker(sweeper, locker, logger, metrics, cfg.Sweeper.Interval)

	handler := transporthttp.NewRouter(transporthttp.Services{
		Holds:    holdSvc,
		Orders:   orderSvc,
		Payments: paymentSvc,
		Products: productSvc,
	}, transporthttp.RouterConfig{
		Logger:       logger,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Gatherer:     reg,
		HealthChecks: healthChecks(pool, redisClient),
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(stopCtx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		expiryWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func newLocker(cfg *config.Config, pool *pgxpool.Pool, client *redis.Client) lock.Locker {
	switch cfg.Locks.Backend {
	case config.BackendPostgres:
		return lock.NewPostgresLocker(pool)
	case config.BackendMemory:
		return lock.NewMemoryLocker()
	default:
		return lock.NewRedisLocker(client, cfg.Holds.LockLease)
	}
}

func newLedgerCache(cfg *config.Config, client *redis.Client) cache.IntCache {
	if cfg.Ledger.CacheBackend == config.BackendMemory {
		return cache.NewMemoryCache()
	}
	return cache.NewRedisCache(client)
}

// newPublisher falls back to dropping events when NATS is not configured or
// unreachable at startup.
func newPublisher(cfg config.NATSConfig, logger *zap.Logger) (events.Publisher, func()) {
	if cfg.URL == "" {
		return events.Nop{}, func() {}
	}
	nc, err := events.Connect(cfg.URL)
	if err != nil {
		logger.Warn("nats unavailable, events disabled", zap.Error(err))
		return events.Nop{}, func() {}
	}
	return events.NewNATSPublisher(nc), func() { _ = nc.Drain() }
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]transporthttp.HealthCheck {
	checks := map[string]transporthttp.HealthCheck{"postgres": pool.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
