package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/boletera/boletera/app/controllers"
	"github.com/boletera/boletera/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "boletera payment api",
		})
	})

	// Admin routes: refunds, gateway settings, reconciliation controls.
	admin := api.Group("/admin", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_USER", "admin"): env.GetEnv("ADMIN_PASSWORD", "admin"),
		},
	}))
	admin.Post("/payments/:id/refund", controllers.HandleAdminRefund)
	admin.Put("/settings/:organizer/:event?", controllers.HandleAdminSaveSettings)
	admin.Get("/connection-test/:organizer/:event?", controllers.HandleAdminTestConnection)
	admin.Post("/reconcile/sweep", controllers.HandleAdminSweep)
	admin.Get("/stats/:event", controllers.HandleAdminStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
