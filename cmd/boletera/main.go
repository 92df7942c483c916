package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/boletera/boletera/internal/pkg/cache"
	"github.com/boletera/boletera/internal/pkg/database"
	"github.com/boletera/boletera/internal/pkg/env"
	"github.com/boletera/boletera/internal/pkg/reconciler"
	"github.com/boletera/boletera/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Start the background sweep once the pipeline is wired.
	manager := reconciler.GetManager()
	manager.Start()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "boletera",
		BodyLimit: 1 << 20, // webhook and admin payloads only
	})

	// recovery and logging
	app.Use(recover.New(), requestid.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
