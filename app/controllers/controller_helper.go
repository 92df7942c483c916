package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/app/repository"
	"github.com/boletera/boletera/internal/pkg/payments"
)

// gatewaySettingsResolver adapts the settings repository to the resolver
// the payment pipeline expects.
type gatewaySettingsResolver struct {
	repo repository.GatewaySettingRepository
}

func (r gatewaySettingsResolver) ResolveGatewaySetting(scope payments.Scope) (*models.GatewaySetting, error) {
	return r.repo.Resolve(scope.OrganizerSlug, scope.EventSlug)
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}

// scopeFromParams reads the organizer/event slugs of an event-scoped route.
func scopeFromParams(c *fiber.Ctx) payments.Scope {
	return payments.Scope{
		OrganizerSlug: c.Params("organizer"),
		EventSlug:     c.Params("event"),
	}
}
