package loader

import (
	txconfig "github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/wire"
)

// ProviderSet exposes the configuration sections consumed by the Wire graph.
// Service metadata, logger and observability settings are read off the
// Loader in main before the graph is built.
var ProviderSet = wire.NewSet(
	ProvideBootstrap,
	ProvidePostgresConfig,
	ProvidePubsubConfig,
	ProvideOutboxConfig,
	ProvideNotifierMode,
	ProvideTxManagerConfig,
)

// ProvideBootstrap exposes the strongly typed bootstrap configuration.
func ProvideBootstrap(l *Loader) *Bootstrap {
	if l == nil {
		return nil
	}
	return l.Bootstrap
}

// ProvidePostgresConfig returns the database section.
func ProvidePostgresConfig(b *Bootstrap) PostgresConfig {
	if b == nil {
		return PostgresConfig{}
	}
	return b.Postgres
}

// ProvidePubsubConfig returns the broker section.
func ProvidePubsubConfig(b *Bootstrap) PubsubConfig {
	if b == nil {
		return PubsubConfig{}
	}
	return b.Pubsub
}

// ProvideOutboxConfig returns the dispatcher section.
func ProvideOutboxConfig(b *Bootstrap) OutboxDispatcherConfig {
	if b == nil {
		return OutboxDispatcherConfig{}
	}
	return b.Outbox
}

// ProvideNotifierMode returns the notification adapter selector.
func ProvideNotifierMode(b *Bootstrap) NotifierMode {
	if b == nil {
		return NotifierModeLog
	}
	return b.NotifierMode
}

// ProvideTxManagerConfig returns the transaction-manager settings.
func ProvideTxManagerConfig(b *Bootstrap) txconfig.Config {
	if b == nil {
		return txconfig.Config{}
	}
	return b.Transaction
}
