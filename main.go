package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/clubops/supporter360/app/repository"
	"github.com/clubops/supporter360/internal/pkg/cache"
	"github.com/clubops/supporter360/internal/pkg/database"
	"github.com/clubops/supporter360/internal/pkg/env"
	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/ingest"
	"github.com/clubops/supporter360/internal/pkg/processor"
	"github.com/clubops/supporter360/internal/pkg/providers"
	"github.com/clubops/supporter360/internal/pkg/rawstore"
	"github.com/clubops/supporter360/internal/pkg/router"
)

func main() {
	app, queue := NewApplication()
	queue.Start()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		queue.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

// NewApplication wires the full pipeline: database, redis queue, raw payload
// store, per-provider processors and the HTTP surface.
func NewApplication() (*fiber.App, *eventqueue.Queue) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	storeCfg, err := rawstore.LoadConfig()
	if err != nil {
		log.Fatalf("raw payload store configuration: %v", err)
	}
	store, err := rawstore.NewClient(storeCfg)
	if err != nil {
		log.Fatalf("raw payload store setup: %v", err)
	}

	queue := eventqueue.NewQueue(3)
	svc := ingest.NewService(repos.Supporter, repos.Event, repos.Membership)
	proc := processor.New(
		svc,
		providers.NewGoCardlessClientFromEnv(),
		providers.NewStripeClientFromEnv(),
		providers.NewShopifyClientFromEnv(),
	)
	proc.RegisterAll(queue)

	app := fiber.New(fiber.Config{
		AppName: "supporter360",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app, &router.Dependencies{
		Repos:    repos,
		RawStore: store,
		Queue:    queue,
	})

	return app, queue
}
