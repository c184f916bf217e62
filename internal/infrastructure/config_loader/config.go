// Package loader loads and validates the bootstrap configuration: YAML file
// source, .env overlays, environment overrides, then normalization into the
// typed structs the rest of the wiring consumes.
package loader

import (
	"time"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	txconfig "github.com/bionicotaku/lingo-utils/txmanager"
)

// fileBootstrap mirrors the YAML layout. Durations are strings here and
// parsed during normalization so a malformed value fails the load, not a
// request.
type fileBootstrap struct {
	Data          fileData          `json:"data"`
	Pubsub        filePubsub        `json:"pubsub"`
	Outbox        fileOutbox        `json:"outbox"`
	Notifier      fileNotifier      `json:"notifier"`
	Observability fileObservability `json:"observability"`
}

type fileData struct {
	Postgres filePostgres `json:"postgres"`
}

type filePostgres struct {
	DSN                      string `json:"dsn"`
	Schema                   string `json:"schema"`
	MaxOpenConns             int32  `json:"max_open_conns"`
	MinOpenConns             int32  `json:"min_open_conns"`
	MaxConnLifetime          string `json:"max_conn_lifetime"`
	MaxConnIdleTime          string `json:"max_conn_idle_time"`
	HealthCheckPeriod        string `json:"health_check_period"`
	EnablePreparedStatements bool   `json:"enable_prepared_statements"`
	Transaction              fileTx `json:"transaction"`
}

type fileTx struct {
	DefaultIsolation string `json:"default_isolation"`
	DefaultTimeout   string `json:"default_timeout"`
	LockTimeout      string `json:"lock_timeout"`
	MaxRetries       int32  `json:"max_retries"`
}

type filePubsub struct {
	ProjectID        string `json:"project_id"`
	TopicID          string `json:"topic_id"`
	SubscriptionID   string `json:"subscription_id"`
	EmulatorEndpoint string `json:"emulator_endpoint"`
}

type fileOutbox struct {
	BatchSize      int32  `json:"batch_size"`
	TickInterval   string `json:"tick_interval"`
	InitialBackoff string `json:"initial_backoff"`
	MaxBackoff     string `json:"max_backoff"`
	MaxAttempts    int32  `json:"max_attempts"`
	PublishTimeout string `json:"publish_timeout"`
}

type fileNotifier struct {
	Mode string `json:"mode"` // "pubsub" or "log"
}

type fileObservability struct {
	Tracing fileTracing `json:"tracing"`
	Metrics fileMetrics `json:"metrics"`
}

type fileTracing struct {
	Enabled       bool    `json:"enabled"`
	Exporter      string  `json:"exporter"`
	Endpoint      string  `json:"endpoint"`
	Insecure      bool    `json:"insecure"`
	SamplingRatio float64 `json:"sampling_ratio"`
}

type fileMetrics struct {
	Enabled             bool   `json:"enabled"`
	Exporter            string `json:"exporter"`
	Endpoint            string `json:"endpoint"`
	Insecure            bool   `json:"insecure"`
	Interval            string `json:"interval"`
	DisableRuntimeStats bool   `json:"disable_runtime_stats"`
}

// PostgresConfig is the normalized database section.
type PostgresConfig struct {
	DSN                      string
	Schema                   string
	MaxOpenConns             int32
	MinOpenConns             int32
	MaxConnLifetime          time.Duration
	MaxConnIdleTime          time.Duration
	HealthCheckPeriod        time.Duration
	EnablePreparedStatements bool
}

// PubsubConfig is the normalized broker section.
type PubsubConfig struct {
	ProjectID        string
	TopicID          string
	SubscriptionID   string
	EmulatorEndpoint string
}

// OutboxDispatcherConfig is the normalized dispatcher section.
type OutboxDispatcherConfig struct {
	BatchSize      int32
	TickInterval   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int32
	PublishTimeout time.Duration
}

// NotifierMode selects the notification adapter bound at composition time.
type NotifierMode string

const (
	// NotifierModePubsub binds the Google Pub/Sub adapter.
	NotifierModePubsub NotifierMode = "pubsub"
	// NotifierModeLog binds the structured-log adapter.
	NotifierModeLog NotifierMode = "log"
)

// Bootstrap is the normalized configuration handed to wire providers.
type Bootstrap struct {
	Postgres      PostgresConfig
	Pubsub        PubsubConfig
	Outbox        OutboxDispatcherConfig
	NotifierMode  NotifierMode
	Observability obswire.ObservabilityConfig
	Transaction   txconfig.Config
}
