package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/app/repository"
	"github.com/boletera/boletera/internal/pkg/cache"
	"github.com/boletera/boletera/internal/pkg/database"
	"github.com/boletera/boletera/internal/pkg/locks"
	metrics "github.com/boletera/boletera/internal/pkg/metrics/counter"
	"github.com/boletera/boletera/internal/pkg/payments"
	"github.com/boletera/boletera/internal/pkg/reconciler"
	"github.com/boletera/boletera/internal/pkg/recurrente"
)

var (
	webhookService   *payments.Service
	paymentsRepo     payments.Repository
	statusReconciler *payments.Reconciler
)

// InitializePaymentControllers wires the webhook pipeline, the reconciler
// and the repositories the payment controllers share.
func InitializePaymentControllers() {
	db := database.GetDB()
	repository.InitializeFactory(db)

	paymentsRepo = payments.NewRepository(db)
	resolver := gatewaySettingsResolver{repo: repository.GetGlobalFactory().GetGatewaySettingRepository()}
	trans := payments.NewTransitioner(paymentsRepo, newLocker())

	webhookService = payments.NewService(paymentsRepo, payments.NewMatcher(paymentsRepo), trans, resolver)
	if client := cache.GetClient(); client != nil {
		webhookService.UseDedupMarker(payments.NewRedisDedup(client))
	}
	statusReconciler = payments.NewReconciler(paymentsRepo, trans, resolver, func(s *models.GatewaySetting) payments.CheckoutAPI {
		return recurrente.NewClient(s)
	})
	reconciler.GetManager().Configure(statusReconciler)
}

// newLocker prefers the Redis locker so multiple nodes serialize on the
// same payment; without Redis the in-process locker covers a single node.
func newLocker() locks.Locker {
	if client := cache.GetClient(); client != nil {
		return locks.NewRedisLocker(client)
	}
	log.Warn("[Webhook] Redis unavailable, falling back to in-process payment locks")
	return locks.NewMemoryLocker()
}

// HandleEventWebhook receives deliveries on the event-scoped endpoint.
func HandleEventWebhook(c *fiber.Ctx) error {
	scope := scopeFromParams(c)
	return handleWebhook(c, &scope)
}

// HandleGlobalWebhook receives deliveries on the provider-global endpoint;
// the target event comes from the checkout metadata.
func HandleGlobalWebhook(c *fiber.Ctx) error {
	return handleWebhook(c, nil)
}

func handleWebhook(c *fiber.Ctx, scope *payments.Scope) error {
	in := payments.InboundWebhook{
		Body: append([]byte(nil), c.BodyRaw()...),
		Headers: payments.SignatureHeaders{
			ID:        firstHeaderValue(c, "svix-id", "webhook-id"),
			Timestamp: firstHeaderValue(c, "svix-timestamp", "webhook-timestamp"),
			Signature: firstHeaderValue(c, "svix-signature", "webhook-signature"),
		},
		Scope: scope,
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	res, err := webhookService.HandleWebhook(ctx, in)
	if err != nil {
		// Global deliveries arrive without a route scope; the pipeline
		// may still have resolved one from metadata before failing.
		if scope == nil && res != nil && !res.Scope.IsZero() {
			scope = &res.Scope
		}
		return webhookError(c, scope, err)
	}

	countOutcome(res)
	switch res.Disposition {
	case payments.DispositionDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case payments.DispositionIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

// webhookError maps pipeline errors to the status codes that control the
// provider's redelivery: 4xx verdicts are final, 5xx asks for a retry.
func webhookError(c *fiber.Ctx, scope *payments.Scope, err error) error {
	if scope != nil {
		_ = metrics.AddOutcome(scope.EventSlug, models.OutcomeCounterRejected)
	}
	switch {
	case errors.Is(err, payments.ErrInvalidPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case errors.Is(err, payments.ErrScopeUnresolved):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_event"})
	case errors.Is(err, payments.ErrSignatureInvalid):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, payments.ErrNoWebhookSecret):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "no_webhook_secret"})
	case errors.Is(err, payments.ErrPaymentNotFound):
		// Non-2xx so the provider redelivers; the payment record may not
		// be visible yet when checkout and webhook race.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment_not_found"})
	case errors.Is(err, payments.ErrAmbiguousMatch):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "ambiguous_match"})
	case errors.Is(err, payments.ErrConflictingState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflicting_state"})
	case errors.Is(err, locks.ErrLockTimeout):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "busy", "retry": true})
	default:
		log.Errorf("[Webhook] Processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}
}

func countOutcome(res *payments.WebhookResult) {
	eventSlug := res.Scope.EventSlug
	switch res.Disposition {
	case payments.DispositionDuplicate:
		_ = metrics.AddOutcome(eventSlug, models.OutcomeCounterDuplicate)
	case payments.DispositionProcessed:
		if res.Payment == nil {
			return
		}
		switch res.Payment.State {
		case models.PaymentStateConfirmed:
			_ = metrics.AddOutcome(eventSlug, models.OutcomeCounterConfirmed)
		case models.PaymentStateFailed, models.PaymentStateCanceled:
			_ = metrics.AddOutcome(eventSlug, models.OutcomeCounterFailed)
		case models.PaymentStateRefunded:
			_ = metrics.AddOutcome(eventSlug, models.OutcomeCounterRefunded)
		}
	}
}
