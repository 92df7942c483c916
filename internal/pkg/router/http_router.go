package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/boletera/boletera/app/controllers"
	"github.com/boletera/boletera/internal/pkg/constants"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Initialize the payment pipeline before any route can fire.
	controllers.InitializePaymentControllers()

	// Global webhook endpoint first: it must win over the parameterized
	// organizer/event routes.
	app.Post(constants.GlobalWebhookRoute, controllers.HandleGlobalWebhook)

	// Event-scoped payment routes.
	app.Post(constants.EventWebhookRoute, controllers.HandleEventWebhook)
	app.Get(constants.PayRoute, controllers.HandleCreateCheckout)
	app.Get(constants.OrderStatusRoute, controllers.HandleOrderStatus)
	app.Post(constants.RefreshRoute, controllers.HandleRefreshPayment)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
