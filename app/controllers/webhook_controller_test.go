package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boletera/boletera/internal/pkg/locks"
	"github.com/boletera/boletera/internal/pkg/payments"
)

func TestWebhookErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid payload", payments.ErrInvalidPayload, fiber.StatusBadRequest},
		{"unknown scope", payments.ErrScopeUnresolved, fiber.StatusBadRequest},
		{"bad signature", payments.ErrSignatureInvalid, fiber.StatusUnauthorized},
		{"no webhook secret", payments.ErrNoWebhookSecret, fiber.StatusUnauthorized},
		{"payment not found", payments.ErrPaymentNotFound, fiber.StatusNotFound},
		{"ambiguous match", payments.ErrAmbiguousMatch, fiber.StatusConflict},
		{"conflicting state", payments.ErrConflictingState, fiber.StatusConflict},
		{"lock timeout", locks.ErrLockTimeout, fiber.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/hook", func(c *fiber.Ctx) error {
				return webhookError(c, nil, tc.err)
			})

			req := httptest.NewRequest(http.MethodPost, "/hook", nil)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestFirstHeaderValue(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		id := firstHeaderValue(c, "svix-id", "webhook-id")
		return c.SendString(id)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("webhook-id", "evt_42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := make([]byte, 6)
	n, _ := resp.Body.Read(body)
	assert.Equal(t, "evt_42", string(body[:n]))
}

func TestScopeFromParams(t *testing.T) {
	app := fiber.New()
	app.Get("/:organizer/:event", func(c *fiber.Ctx) error {
		scope := scopeFromParams(c)
		assert.Equal(t, payments.Scope{OrganizerSlug: "acme", EventSlug: "congress-2026"}, scope)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/acme/congress-2026", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
