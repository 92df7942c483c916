package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/app/repository"
	"github.com/boletera/boletera/internal/pkg/env"
	"github.com/boletera/boletera/internal/pkg/payments"
	"github.com/boletera/boletera/internal/pkg/recurrente"
)

// HandleCreateCheckout starts a Recurrente checkout for a pending order. It
// creates the local payment record first so the checkout metadata can carry
// its id, then redirects the buyer to the hosted checkout page.
func HandleCreateCheckout(c *fiber.Ctx) error {
	scope := scopeFromParams(c)
	orders := repository.GetGlobalFactory().GetOrderRepository()

	order, err := orders.GetByCodeAndSecret(scope.OrganizerSlug, scope.EventSlug, c.Params("code"), c.Params("secret"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}
	if order.Status != models.OrderStatusPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "order_not_pending", "status": order.Status})
	}

	setting, err := repository.GetGlobalFactory().GetGatewaySettingRepository().Resolve(scope.OrganizerSlug, scope.EventSlug)
	if err != nil {
		log.Errorf("[Payment] No gateway settings for %s/%s: %v", scope.OrganizerSlug, scope.EventSlug, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "gateway_not_configured"})
	}

	payment := &models.Payment{
		OrderID:     order.ID,
		Provider:    models.PaymentProviderRecurrente,
		State:       models.PaymentStateCreated,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
	}
	if err := orders.CreatePayment(payment); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_create_failed"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	statusURL := fmt.Sprintf("%s/%s/%s/order/%s/%s/status",
		env.GetEnv("APP_URL", "http://localhost:4000"),
		scope.OrganizerSlug, scope.EventSlug, order.Code, order.Secret)

	checkout, err := recurrente.NewClient(setting).CreateCheckout(ctx, &recurrente.CreateCheckoutRequest{
		Items: []recurrente.CheckoutItem{{
			Name:          fmt.Sprintf("Order %s", order.Code),
			AmountInCents: order.TotalCents,
			Currency:      order.Currency,
			Quantity:      1,
		}},
		SuccessURL: statusURL,
		CancelURL:  statusURL,
		// The metadata is what lets webhooks and the global endpoint find
		// this payment again.
		Metadata: map[string]string{
			"order_code":     order.Code,
			"payment_id":     strconv.FormatUint(uint64(payment.ID), 10),
			"organizer_slug": scope.OrganizerSlug,
			"event_slug":     scope.EventSlug,
		},
	})
	if err != nil {
		_ = payment.MergeInfo(map[string]interface{}{"checkout_error": err.Error()})
		payment.State = models.PaymentStateFailed
		_ = paymentsRepo.UpdatePaymentState(payment)
		log.Errorf("[Payment] Checkout creation failed for order %s: %v", order.Code, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_create_failed"})
	}

	if err := payment.MergeInfo(map[string]interface{}{
		"checkout_id":  checkout.ID,
		"checkout_url": checkout.CheckoutURL,
		"expires_at":   checkout.ExpiresAt,
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_update_failed"})
	}
	payment.State = models.PaymentStatePending
	if err := paymentsRepo.UpdatePaymentState(payment); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_update_failed"})
	}

	log.Infof("[Payment] Checkout %s created for order %s (payment %d)", checkout.ID, order.Code, payment.ID)
	return c.Redirect(checkout.CheckoutURL, fiber.StatusSeeOther)
}

// HandleOrderStatus returns the buyer-facing order status with its payment
// attempts.
func HandleOrderStatus(c *fiber.Ctx) error {
	scope := scopeFromParams(c)
	orders := repository.GetGlobalFactory().GetOrderRepository()

	order, err := orders.GetByCodeAndSecret(scope.OrganizerSlug, scope.EventSlug, c.Params("code"), c.Params("secret"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}

	attempts := make([]fiber.Map, 0, len(order.Payments))
	for _, p := range order.Payments {
		attempts = append(attempts, fiber.Map{
			"id":           p.ID,
			"state":        p.State,
			"amount_cents": p.AmountCents,
			"currency":     p.Currency,
			"created_at":   p.CreatedAt,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"code":     order.Code,
		"status":   order.Status,
		"paid_at":  order.PaidAt,
		"payments": attempts,
	})
}

// HandleRefreshPayment reconciles one payment against Recurrente on demand,
// for the "I already paid" button. The result flows through the same
// transitioner as webhooks.
func HandleRefreshPayment(c *fiber.Ctx) error {
	scope := scopeFromParams(c)
	orders := repository.GetGlobalFactory().GetOrderRepository()

	order, err := orders.GetByCodeAndSecret(scope.OrganizerSlug, scope.EventSlug, c.Params("code"), c.Params("secret"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}

	paymentID, err := strconv.ParseUint(c.Params("payment"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payment_id"})
	}
	payment, err := paymentsRepo.GetPayment(uint(paymentID))
	if err != nil || payment.OrderID != order.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment_not_found"})
	}
	if payment.IsTerminal() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"state": payment.State, "changed": false})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	result, err := statusReconciler.RefreshPayment(ctx, payment, scope)
	if err != nil {
		log.Warnf("[Payment] Manual refresh of payment %d failed: %v", payment.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "refresh_failed"})
	}

	refreshed, err := paymentsRepo.GetPayment(payment.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_lookup_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"state":   refreshed.State,
		"changed": result == payments.ResultTransitioned,
	})
}
