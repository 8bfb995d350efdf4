package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ledgerAppName         = "linechat-ledger"
	ledgerHealthCheck     = 30 * time.Second
	ledgerMaxConnIdle     = 5 * time.Minute
	ledgerMaxConnLifetime = time.Hour
	ledgerConnectTimeout  = 5 * time.Second
)

// ledgerPoolConfig parses the database URL and applies the ledger's pool settings.
// The ledger writes a handful of rows per session, so the pool stays small and idle
// connections are let go quickly. An application_name in the URL wins over ours.
func ledgerPoolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	pcfg.MinConns = min(cfg.DBMinConns, pcfg.MaxConns)

	pcfg.HealthCheckPeriod = ledgerHealthCheck
	pcfg.MaxConnIdleTime = ledgerMaxConnIdle
	pcfg.MaxConnLifetime = ledgerMaxConnLifetime

	if pcfg.ConnConfig.ConnectTimeout == 0 {
		pcfg.ConnConfig.ConnectTimeout = ledgerConnectTimeout
	}
	if _, ok := pcfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		pcfg.ConnConfig.RuntimeParams["application_name"] = ledgerAppName
	}

	return pcfg, nil
}

// NewDBPool opens the ledger pool and checks that a connection can be acquired.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := ledgerPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger pool: %w", err)
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PingDB acquires and releases one connection within timeout. /readyz uses it.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return conn.Ping(ctx)
}
