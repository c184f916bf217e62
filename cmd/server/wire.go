//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	loader "github.com/avelinor/orders-service/internal/infrastructure/config_loader"
	"github.com/avelinor/orders-service/internal/infrastructure/database"
	"github.com/avelinor/orders-service/internal/repositories"
	"github.com/avelinor/orders-service/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

// wireApp assembles the orders application.
func wireApp(context.Context, *loader.Loader, log.Logger) (*serverApp, func(), error) {
	panic(wire.Build(
		loader.ProviderSet,
		database.ProviderSet,
		provideTxManager,
		repositories.ProviderSet,
		services.ProviderSet,
		providePublisher,
		provideNotifier,
		provideDispatcher,
		newApp,
	))
}
