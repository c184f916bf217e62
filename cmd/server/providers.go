package main

import (
	"context"
	"fmt"

	loader "github.com/avelinor/orders-service/internal/infrastructure/config_loader"
	"github.com/avelinor/orders-service/internal/notifiers"
	"github.com/avelinor/orders-service/internal/repositories"
	"github.com/avelinor/orders-service/internal/tasks/outbox"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

func provideTxManager(pool *pgxpool.Pool, cfg txmanager.Config, logger log.Logger) (txmanager.Manager, error) {
	return txmanager.NewManager(pool, cfg, txmanager.Dependencies{Logger: logger})
}

// providePublisher builds the Pub/Sub component only when the pubsub notifier
// is selected; in log mode the publisher stays nil and unused.
func providePublisher(
	ctx context.Context,
	mode loader.NotifierMode,
	cfg loader.PubsubConfig,
	logger log.Logger,
) (gcpubsub.Publisher, func(), error) {
	if mode != loader.NotifierModePubsub {
		return nil, func() {}, nil
	}
	component, cleanup, err := gcpubsub.NewComponent(ctx, gcpubsub.Config{
		ProjectID:        cfg.ProjectID,
		TopicID:          cfg.TopicID,
		SubscriptionID:   cfg.SubscriptionID,
		EmulatorEndpoint: cfg.EmulatorEndpoint,
	}, gcpubsub.Dependencies{Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub component: %w", err)
	}
	return gcpubsub.ProvidePublisher(component), cleanup, nil
}

// provideNotifier binds the notification adapter selected by configuration.
func provideNotifier(
	mode loader.NotifierMode,
	publisher gcpubsub.Publisher,
	logger log.Logger,
) (notifiers.Notifier, error) {
	switch mode {
	case loader.NotifierModePubsub:
		if publisher == nil {
			return nil, fmt.Errorf("notifier mode %q requires a pubsub publisher", mode)
		}
		return notifiers.NewPubSubNotifier(publisher, logger), nil
	case loader.NotifierModeLog:
		return notifiers.NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier mode: %q", mode)
	}
}

func provideDispatcher(
	store *repositories.OutboxRepository,
	notifier notifiers.Notifier,
	cfg loader.OutboxDispatcherConfig,
	logger log.Logger,
) (*outbox.Dispatcher, error) {
	return outbox.NewDispatcher(outbox.DispatcherParams{
		Store:    store,
		Notifier: notifier,
		Config: outbox.Config{
			BatchSize:      cfg.BatchSize,
			TickInterval:   cfg.TickInterval,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			MaxAttempts:    cfg.MaxAttempts,
			PublishTimeout: cfg.PublishTimeout,
		},
		Logger: logger,
	})
}
