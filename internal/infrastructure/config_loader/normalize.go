package loader

import (
	"fmt"
	"strings"
	"time"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	txconfig "github.com/bionicotaku/lingo-utils/txmanager"
)

const (
	defaultSchema            = "orders"
	defaultMaxOpenConns      = int32(16)
	defaultMinOpenConns      = int32(2)
	defaultConnLifetime      = 30 * time.Minute
	defaultConnIdleTime      = 5 * time.Minute
	defaultHealthCheckPeriod = time.Minute

	defaultTxTimeout   = 5 * time.Second
	defaultLockTimeout = 3 * time.Second
	defaultTxRetries   = int32(3)

	defaultOutboxBatchSize      = int32(50)
	defaultOutboxTick           = 2 * time.Second
	defaultOutboxInitialBackoff = 5 * time.Second
	defaultOutboxMaxBackoff     = 5 * time.Minute
	defaultOutboxMaxAttempts    = int32(10)
	defaultOutboxPublishTimeout = 10 * time.Second
)

// normalize converts the file DTOs into typed configuration, applying defaults
// and parsing every string duration exactly once.
func normalize(raw fileBootstrap) (*Bootstrap, error) {
	pg, err := normalizePostgres(raw.Data.Postgres)
	if err != nil {
		return nil, fmt.Errorf("data.postgres: %w", err)
	}
	tx, err := normalizeTx(raw.Data.Postgres.Transaction)
	if err != nil {
		return nil, fmt.Errorf("data.postgres.transaction: %w", err)
	}
	outbox, err := normalizeOutbox(raw.Outbox)
	if err != nil {
		return nil, fmt.Errorf("outbox: %w", err)
	}

	obs, err := normalizeObservability(raw.Observability)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	mode := NotifierMode(strings.ToLower(strings.TrimSpace(raw.Notifier.Mode)))
	if mode == "" {
		mode = NotifierModeLog
	}

	return &Bootstrap{
		Postgres:      pg,
		Pubsub:        PubsubConfig(raw.Pubsub),
		Outbox:        outbox,
		NotifierMode:  mode,
		Observability: obs,
		Transaction:   tx,
	}, nil
}

// normalizeObservability maps the file section into the shapes the
// observability bootstrap consumes. Sections are pointers there, nil when the
// signal is absent from the file.
func normalizeObservability(raw fileObservability) (obswire.ObservabilityConfig, error) {
	var cfg obswire.ObservabilityConfig
	if raw.Tracing != (fileTracing{}) {
		cfg.Tracing = &obswire.TracingConfig{
			Enabled:       raw.Tracing.Enabled,
			Exporter:      raw.Tracing.Exporter,
			Endpoint:      raw.Tracing.Endpoint,
			Insecure:      raw.Tracing.Insecure,
			SamplingRatio: raw.Tracing.SamplingRatio,
		}
	}
	if raw.Metrics != (fileMetrics{}) {
		interval, err := parseDuration(raw.Metrics.Interval, 0)
		if err != nil {
			return obswire.ObservabilityConfig{}, fmt.Errorf("metrics.interval: %w", err)
		}
		cfg.Metrics = &obswire.MetricsConfig{
			Enabled:             raw.Metrics.Enabled,
			Exporter:            raw.Metrics.Exporter,
			Endpoint:            raw.Metrics.Endpoint,
			Insecure:            raw.Metrics.Insecure,
			Interval:            interval,
			DisableRuntimeStats: raw.Metrics.DisableRuntimeStats,
		}
	}
	return cfg, nil
}

func normalizePostgres(raw filePostgres) (PostgresConfig, error) {
	cfg := PostgresConfig{
		DSN:                      raw.DSN,
		Schema:                   raw.Schema,
		MaxOpenConns:             raw.MaxOpenConns,
		MinOpenConns:             raw.MinOpenConns,
		EnablePreparedStatements: raw.EnablePreparedStatements,
	}
	if cfg.Schema == "" {
		cfg.Schema = defaultSchema
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.MinOpenConns <= 0 {
		cfg.MinOpenConns = defaultMinOpenConns
	}
	if cfg.MinOpenConns > cfg.MaxOpenConns {
		cfg.MinOpenConns = cfg.MaxOpenConns
	}

	var err error
	if cfg.MaxConnLifetime, err = parseDuration(raw.MaxConnLifetime, defaultConnLifetime); err != nil {
		return PostgresConfig{}, fmt.Errorf("max_conn_lifetime: %w", err)
	}
	if cfg.MaxConnIdleTime, err = parseDuration(raw.MaxConnIdleTime, defaultConnIdleTime); err != nil {
		return PostgresConfig{}, fmt.Errorf("max_conn_idle_time: %w", err)
	}
	if cfg.HealthCheckPeriod, err = parseDuration(raw.HealthCheckPeriod, defaultHealthCheckPeriod); err != nil {
		return PostgresConfig{}, fmt.Errorf("health_check_period: %w", err)
	}
	return cfg, nil
}

func normalizeTx(raw fileTx) (txconfig.Config, error) {
	cfg := txconfig.Config{
		DefaultIsolation: raw.DefaultIsolation,
		MaxRetries:       int(raw.MaxRetries),
	}
	if cfg.DefaultIsolation == "" {
		cfg.DefaultIsolation = "read_committed"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = int(defaultTxRetries)
	}

	var err error
	if cfg.DefaultTimeout, err = parseDuration(raw.DefaultTimeout, defaultTxTimeout); err != nil {
		return txconfig.Config{}, fmt.Errorf("default_timeout: %w", err)
	}
	if cfg.LockTimeout, err = parseDuration(raw.LockTimeout, defaultLockTimeout); err != nil {
		return txconfig.Config{}, fmt.Errorf("lock_timeout: %w", err)
	}
	return cfg, nil
}

func normalizeOutbox(raw fileOutbox) (OutboxDispatcherConfig, error) {
	cfg := OutboxDispatcherConfig{
		BatchSize:   raw.BatchSize,
		MaxAttempts: raw.MaxAttempts,
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultOutboxBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultOutboxMaxAttempts
	}

	var err error
	if cfg.TickInterval, err = parseDuration(raw.TickInterval, defaultOutboxTick); err != nil {
		return OutboxDispatcherConfig{}, fmt.Errorf("tick_interval: %w", err)
	}
	if cfg.InitialBackoff, err = parseDuration(raw.InitialBackoff, defaultOutboxInitialBackoff); err != nil {
		return OutboxDispatcherConfig{}, fmt.Errorf("initial_backoff: %w", err)
	}
	if cfg.MaxBackoff, err = parseDuration(raw.MaxBackoff, defaultOutboxMaxBackoff); err != nil {
		return OutboxDispatcherConfig{}, fmt.Errorf("max_backoff: %w", err)
	}
	if cfg.PublishTimeout, err = parseDuration(raw.PublishTimeout, defaultOutboxPublishTimeout); err != nil {
		return OutboxDispatcherConfig{}, fmt.Errorf("publish_timeout: %w", err)
	}
	if cfg.InitialBackoff > cfg.MaxBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return cfg, nil
}
