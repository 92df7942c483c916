package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/app/repository"
	"github.com/boletera/boletera/internal/pkg/database"
	"github.com/boletera/boletera/internal/pkg/payments"
	"github.com/boletera/boletera/internal/pkg/reconciler"
	"github.com/boletera/boletera/internal/pkg/recurrente"
)

// HandleAdminRefund initiates a refund for a confirmed payment. Recurrente
// accepting the request puts the refund in transit; the charge.refunded
// webhook (or the poller) completes the payment transition.
func HandleAdminRefund(c *fiber.Ctx) error {
	paymentID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payment_id"})
	}

	pp, err := paymentsRepo.GetPaymentWithScope(uint(paymentID))
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_lookup_failed"})
	}
	if pp.Payment.State != models.PaymentStateConfirmed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "payment_not_confirmed", "state": pp.Payment.State})
	}

	providerPaymentID := pp.Payment.InfoString("payment_id")
	if providerPaymentID == "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no_provider_payment_id"})
	}

	setting, err := repository.GetGlobalFactory().GetGatewaySettingRepository().Resolve(pp.Scope.OrganizerSlug, pp.Scope.EventSlug)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "gateway_not_configured"})
	}

	refunds := repository.GetGlobalFactory().GetRefundRepository()
	refund := &models.Refund{
		PaymentID:   pp.Payment.ID,
		State:       models.RefundStateCreated,
		AmountCents: pp.Payment.AmountCents,
	}
	if err := refunds.Create(refund); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "refund_create_failed"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	resp, err := recurrente.NewClient(setting).RefundPayment(ctx, providerPaymentID)
	if err != nil {
		refund.State = models.RefundStateFailed
		refund.InfoJSON = `{"error":` + strconv.Quote(err.Error()) + `}`
		_ = refunds.Update(refund)
		log.Errorf("[Admin] Refund of payment %d rejected by provider: %v", pp.Payment.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "refund_rejected"})
	}

	refund.State = models.RefundStateTransit
	refund.InfoJSON = `{"provider_refund_id":` + strconv.Quote(resp.ID) + `,"provider_status":` + strconv.Quote(resp.Status) + `}`
	if err := refunds.Update(refund); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "refund_update_failed"})
	}

	log.Infof("[Admin] Refund %d in transit for payment %d (provider refund %s)", refund.ID, pp.Payment.ID, resp.ID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"refund_id": refund.ID, "state": refund.State})
}

// HandleAdminSaveSettings upserts the gateway settings for a scope. The
// event slug is optional; without it the row is the organizer-level
// fallback.
func HandleAdminSaveSettings(c *fiber.Ctx) error {
	var setting models.GatewaySetting
	if err := c.BodyParser(&setting); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	setting.OrganizerSlug = c.Params("organizer")
	setting.EventSlug = c.Params("event", "")

	if err := repository.GetGlobalFactory().GetGatewaySettingRepository().Save(&setting); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_settings", "detail": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleAdminTestConnection probes Recurrente with the credentials stored
// for a scope.
func HandleAdminTestConnection(c *fiber.Ctx) error {
	setting, err := repository.GetGlobalFactory().GetGatewaySettingRepository().Resolve(c.Params("organizer"), c.Params("event", ""))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "gateway_not_configured"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	if err := recurrente.NewClient(setting).TestConnection(ctx); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleAdminSweep runs one reconciliation pass immediately.
func HandleAdminSweep(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Minute)
	defer cancel()

	stats := reconciler.GetManager().SweepNow(ctx)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"total":     stats.Total,
		"updated":   stats.Updated,
		"confirmed": stats.Confirmed,
		"errors":    stats.Errors,
	})
}

// HandleAdminStats returns the flushed webhook outcome counters for an
// event.
func HandleAdminStats(c *fiber.Ctx) error {
	var stats []models.PaymentStat
	err := database.GetDB().
		Where("event_slug = ?", c.Params("event")).
		Order("outcome ASC").
		Find(&stats).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_lookup_failed"})
	}

	out := fiber.Map{}
	for _, s := range stats {
		out[s.Outcome] = s.Count
	}
	return c.Status(fiber.StatusOK).JSON(out)
}
