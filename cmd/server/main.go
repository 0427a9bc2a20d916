package main

import (
	"context"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bops-digital/bops/modules"
	"github.com/bops-digital/bops/pkg/application"
	"github.com/bops-digital/bops/pkg/configuration"
	"github.com/bops-digital/bops/pkg/constants"
	"github.com/bops-digital/bops/pkg/eventbus"
	"github.com/bops-digital/bops/pkg/middleware"
	"github.com/bops-digital/bops/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}
	if err := app.Migrations().Apply(ctx); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	app.RegisterMiddleware(
		middleware.Cors("http://localhost:*"),
		middleware.RequestParams(),
		middleware.WithLogger(logger),
		middleware.Provide(constants.PoolKey, pool),
		middleware.Provide(constants.AppKey, app),
		middleware.TenantID(),
		middleware.Actor(),
	)

	serverInstance := server.NewHTTPServer(app)
	log.Printf("listening on %s", conf.SocketAddress)
	if err := serverInstance.Start(conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
