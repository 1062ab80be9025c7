package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const applicationName = "odyssey-ledger"

// LedgerDeps are the optional collaborators of the ledger service.
type LedgerDeps struct {
	Logger  *slog.Logger
	Cache   accounting.BalanceCache
	Locker  accounting.Locker
	Metrics accounting.Metrics
}

// NewLedger wires a ledger service over any repository and audit sink.
func NewLedger(repo accounting.RepositoryPort, audit accounting.AuditPort, settings accounting.Settings, deps LedgerDeps) *accounting.Service {
	svc := accounting.NewService(repo, audit, settings)
	if deps.Logger != nil {
		svc.WithLogger(deps.Logger)
	}
	if deps.Cache != nil {
		svc.WithCache(deps.Cache)
	}
	if deps.Locker != nil {
		svc.WithLocker(deps.Locker)
	}
	if deps.Metrics != nil {
		svc.WithMetrics(deps.Metrics)
	}
	return svc
}

// Runtime holds the connections and services shared by the binaries.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Cache   *cache.Balances
	Locker  *cache.Locker
	Metrics *observability.Metrics
	Ledger  *accounting.Service
}

// Bootstrap connects to Postgres and Redis and builds the ledger service.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	settings, err := cfg.LedgerSettings()
	if err != nil {
		return nil, err
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ApplicationName: applicationName})
	if err != nil {
		return nil, err
	}

	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, err
	}

	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   client,
		Cache:   cache.NewBalances(client, cfg.CacheTTL),
		Locker:  cache.NewLocker(client, cfg.LockLease, cfg.LockRetry),
		Metrics: observability.NewMetrics(),
	}
	rt.Ledger = NewLedger(accounting.NewRepository(pool), shared.NewAuditLogger(pool), settings, LedgerDeps{
		Logger:  logger,
		Cache:   rt.Cache,
		Locker:  rt.Locker,
		Metrics: rt.Metrics,
	})
	logger.Info("ledger ready",
		slog.Int("forex_scale", int(settings.ForexScale)),
		slog.String("settings_file", cfg.LedgerSettingsFile))
	return rt, nil
}

// Probes returns readiness checks for the runtime's backing services.
func (rt *Runtime) Probes() map[string]Probe {
	return map[string]Probe{
		"postgres": func(ctx context.Context) error {
			if err := rt.Pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return nil
		},
		"redis": func(ctx context.Context) error {
			return cache.Ping(ctx, rt.Redis)
		},
	}
}

// Close releases the runtime's connections.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil && rt.Logger != nil {
			rt.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
