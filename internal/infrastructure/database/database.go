// Package database manages the PostgreSQL connection pool lifecycle: pool
// configuration, startup health check and graceful shutdown.
package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	loader "github.com/avelinor/orders-service/internal/infrastructure/config_loader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPgxPool builds a configured pgxpool.Pool from the normalized database
// section and verifies it with a startup health check. The returned cleanup
// closes the pool.
func NewPgxPool(ctx context.Context, cfg loader.PostgresConfig, logger log.Logger) (*pgxpool.Pool, func(), error) {
	helper := log.NewHelper(logger)

	if cfg.DSN == "" {
		return nil, nil, fmt.Errorf("postgres DSN is required (set DATABASE_URL)")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MinOpenConns >= 0 {
		poolConfig.MinConns = cfg.MinOpenConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	poolConfig.ConnConfig.Tracer = &pgxLogger{helper: helper}

	// Configured schema wins over any search_path embedded in the DSN.
	if schema := cfg.Schema; schema != "" {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema))
			if err != nil {
				return fmt.Errorf("failed to set search_path: %w", err)
			}
			return nil
		}
	}

	// Connection poolers in transaction mode require the simple protocol.
	if !cfg.EnablePreparedStatements {
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := healthCheck(ctx, pool, helper); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres health check failed: %w", err)
	}

	helper.Infof(
		"postgres pool created: dsn=%s max_conns=%d min_conns=%d schema=%s prepared_statements=%v",
		sanitizeDSN(cfg.DSN),
		poolConfig.MaxConns,
		poolConfig.MinConns,
		cfg.Schema,
		cfg.EnablePreparedStatements,
	)

	cleanup := func() {
		helper.Info("closing postgres pool")
		pool.Close()
	}

	return pool, cleanup, nil
}

// healthCheck pings the pool and runs a trivial query so a misconfigured DSN
// fails at startup instead of on the first request.
func healthCheck(ctx context.Context, pool *pgxpool.Pool, helper *log.Helper) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(healthCtx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var version string
	err := pool.QueryRow(healthCtx, "SELECT version()").Scan(&version)
	if err != nil {
		return fmt.Errorf("version query failed: %w", err)
	}

	helper.Infof(
		"database health check passed: version=%s",
		truncateVersion(version),
	)

	return nil
}

// sanitizeDSN hides the password component before the DSN reaches logs.
func sanitizeDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(username, "***")
		}
	}

	return parsed.String()
}

// truncateVersion keeps the short form of the server version string.
func truncateVersion(version string) string {
	if idx := strings.Index(version, "("); idx != -1 {
		return strings.TrimSpace(version[:idx])
	}
	if len(version) > 100 {
		return version[:100] + "..."
	}
	return version
}

// pgxLogger forwards pgx query failures to the Kratos logger. Successful
// queries are not logged to keep the noise down, and SQL text is omitted to
// avoid leaking parameters.
type pgxLogger struct {
	helper *log.Helper
}

func (l *pgxLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	return ctx
}

func (l *pgxLogger) TraceQueryEnd(_ context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		l.helper.Errorf(
			"postgres query failed: error=%v command_tag=%s",
			data.Err,
			data.CommandTag.String(),
		)
	}
}
