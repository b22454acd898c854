package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balance-ledger/config"
	kafkaEvents "balance-ledger/internal/adapter/events/kafka"
	httpHandler "balance-ledger/internal/adapter/http/handler"
	memStorage "balance-ledger/internal/adapter/storage/memory"
	pgStorage "balance-ledger/internal/adapter/storage/postgres"
	redisStorage "balance-ledger/internal/adapter/storage/redis"
	"balance-ledger/internal/core/ports"
	"balance-ledger/internal/service"
	"balance-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ledgerStorage is the set of repositories behind one storage driver.
type ledgerStorage struct {
	users        ports.UserRepository
	balances     ports.BalanceRepository
	transactions ports.TransactionRepository
	audit        ports.AuditRepository
	transactor   ports.DBTransactor
	health       []ports.HealthChecker
	close        func()
}

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting balance ledger")

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger storage")
	}
	defer store.close()

	healthCheckers := store.health

	// Redis is optional: without it there is no idempotency fast path and no rate limiting.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, rate limiting off")
	}

	var publisher ports.EventPublisher
	if cfg.Kafka.Enabled() {
		p := kafkaEvents.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer func() {
			if err := p.Close(); err != nil {
				log.Warn().Err(err).Msg("kafka publisher close failed")
			}
		}()
		publisher = p
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Ledger events enabled")
	}

	// Core services
	hashSvc := service.NewBcryptHashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(store.users, hashSvc, tokenSvc)
	ledgerSvc := service.NewLedgerService(
		store.balances,
		store.transactions,
		store.transactor,
		idempotencyCache,
		publisher,
		cfg.Ledger.LockTimeout,
		cfg.Ledger.IdempotencyTTL,
		log,
	)
	historySvc := service.NewHistoryService(store.balances, store.transactions, cfg.Ledger.HistoryMaxLimit, log)
	auditSvc := service.NewAuditService(store.audit, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:             authSvc,
		LedgerSvc:           ledgerSvc,
		HistorySvc:          historySvc,
		TokenSvc:            tokenSvc,
		RateLimitStore:      rateLimitStore,
		HealthCheckers:      healthCheckers,
		AuditSvc:            auditSvc,
		HistoryDefaultLimit: cfg.Ledger.HistoryDefaultLimit,
		Logger:              log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStorage connects the configured driver. For PostgreSQL the schema is
// provisioned here, once, before any request is served.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ledgerStorage, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory storage; data is lost on exit and only one process may serve it")
		s := memStorage.NewStore()
		return &ledgerStorage{
			users:        memStorage.NewUserRepo(s),
			balances:     memStorage.NewBalanceRepo(s),
			transactions: memStorage.NewTransactionRepo(s),
			audit:        memStorage.NewAuditRepo(s),
			transactor:   s,
			close:        func() {},
		}, nil

	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("PostgreSQL connected")

		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("provisioning schema: %w", err)
		}
		log.Info().Msg("Schema provisioned")

		return &ledgerStorage{
			users:        pgStorage.NewUserRepo(pool),
			balances:     pgStorage.NewBalanceRepo(pool),
			transactions: pgStorage.NewTransactionRepo(pool),
			audit:        pgStorage.NewAuditRepo(pool),
			transactor:   pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout),
			health:       []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:        pool.Close,
		}, nil
	}
}
