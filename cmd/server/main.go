// Package main boots the orders service: configuration, logging,
// observability, then the Wire-assembled application.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	loader "github.com/avelinor/orders-service/internal/infrastructure/config_loader"
	loginfra "github.com/avelinor/orders-service/internal/infrastructure/logger"
	"github.com/avelinor/orders-service/internal/services"
	"github.com/avelinor/orders-service/internal/tasks/outbox"

	"github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string
	// Version is the version of the compiled software.
	Version string

	id, _ = os.Hostname()
)

// serverApp bundles the Kratos app with the use-case services the process
// exposes. The services are the library surface; the dispatcher is the only
// hosted server.
type serverApp struct {
	App      *kratos.App
	Commands *services.OrderCommandService
	Queries  *services.OrderQueryService
}

func newApp(
	logger log.Logger,
	dispatcher *outbox.Dispatcher,
	commands *services.OrderCommandService,
	queries *services.OrderQueryService,
) *serverApp {
	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			dispatcher,
		),
	)
	return &serverApp{
		App:      app,
		Commands: commands,
		Queries:  queries,
	}
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	confPath, err := loader.ParseConfPath(fs, os.Args[1:])
	if err != nil {
		panic(err)
	}

	cfgLoader, cleanupConfig, err := loader.LoadBootstrap(confPath, Name, Version)
	if err != nil {
		panic(err)
	}
	defer cleanupConfig()

	loggr, err := loginfra.NewLogger(cfgLoader.LoggerCfg)
	if err != nil {
		panic(err)
	}

	obsShutdown, err := observability.Init(context.Background(), cfgLoader.Bootstrap.Observability,
		observability.WithLogger(loggr),
		observability.WithServiceName(cfgLoader.LoggerCfg.Service),
		observability.WithServiceVersion(cfgLoader.LoggerCfg.Version),
		observability.WithEnvironment(cfgLoader.LoggerCfg.Env),
	)
	if err != nil {
		panic(err)
	}
	defer func() {
		if obsShutdown == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obsShutdown(ctx); err != nil {
			log.NewHelper(loggr).Warnf("shutdown observability: %v", err)
		}
	}()

	app, cleanupApp, err := wireApp(context.Background(), cfgLoader, loggr)
	if err != nil {
		panic(err)
	}
	defer cleanupApp()

	if err := app.App.Run(); err != nil {
		panic(err)
	}
}
