// Package app wires configuration, storage and the league engines. It is
// shared by cmd/server and cmd/leaguectl.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/alexfall862/simBaseball-API-sub000/internal/config"
	"github.com/alexfall862/simBaseball-API-sub000/internal/contracts"
	"github.com/alexfall862/simBaseball-API-sub000/internal/finance"
	"github.com/alexfall862/simBaseball-API-sub000/internal/roster"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
	"github.com/alexfall862/simBaseball-API-sub000/internal/transactions"
)

// App holds the store and every engine built on it.
type App struct {
	Store     store.Store
	Postgres  *store.PostgresStore // nil when running in memory
	Books     *finance.Books
	Summaries *finance.Reconstructor
	Lifecycle *contracts.Lifecycle
	Engine    *transactions.Engine

	cleanup []func()
}

// NewLogger returns a JSON logger at level and installs it as the default.
func NewLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// New connects storage and builds the engines. An empty DATABASE_URL selects
// the in-memory store; REDIS_URL additionally enables the summary cache.
// notifier may be nil.
func New(ctx context.Context, cfg *config.Config, notifier transactions.Notifier, logger *slog.Logger) (*App, error) {
	a := &App{}
	var cache finance.SummaryCache

	if cfg.DatabaseURL != "" {
		pool, err := newPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, pool.Close)
		a.Postgres = store.NewPostgresStore(pool)
		a.Store = a.Postgres
		logger.Info("connected to PostgreSQL",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)

		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("parse REDIS_URL: %w", err)
			}
			rdb := redis.NewClient(opt)
			a.cleanup = append(a.cleanup, func() { rdb.Close() })
			cached := store.NewCachedStore(a.Postgres, rdb, cfg.CacheTTL)
			a.Store = cached
			cache = cached
			logger.Info("Redis summary cache enabled", "ttl", cfg.CacheTTL.String())
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		a.Store = store.NewMemoryStore()
	}

	terms := contracts.Terms{
		MinorRenewalSalary: cfg.MinorRenewalSalary,
		PreArbSalary:       cfg.PreArbSalary,
		ArbThresholdYears:  cfg.ArbThresholdYears,
	}

	a.Books = finance.NewBooks(a.Store, logger)
	a.Summaries = finance.NewReconstructor(a.Store, cache)
	a.Lifecycle = contracts.NewLifecycle(a.Store, terms, logger)
	a.Engine = transactions.NewEngine(a.Store, roster.NewLimiter(cfg.RosterLimits), notifier, logger)
	return a, nil
}

// Close releases pools and clients in reverse order.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
