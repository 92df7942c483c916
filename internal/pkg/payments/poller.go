package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/internal/pkg/recurrente"
)

// Sweep bounds: skip payments younger than minAge (the webhook is probably
// still in flight) and older than maxAge (the checkout has long expired).
const (
	DefaultSweepMinAge = 5 * time.Minute
	DefaultSweepMaxAge = 48 * time.Hour
)

// CheckoutAPI is the slice of the Recurrente client the poller needs.
type CheckoutAPI interface {
	GetCheckout(ctx context.Context, checkoutID string) (*recurrente.Checkout, error)
}

// SettingsResolver resolves gateway settings for a scope, event-level rows
// taking precedence over organizer-level ones.
type SettingsResolver interface {
	ResolveGatewaySetting(scope Scope) (*models.GatewaySetting, error)
}

// ClientFactory builds an API client from resolved settings. Indirection
// keeps the poller testable and the sandbox/production choice scoped.
type ClientFactory func(setting *models.GatewaySetting) CheckoutAPI

// SweepStats summarizes one reconciliation pass.
type SweepStats struct {
	Total     int
	Updated   int
	Confirmed int
	Failed    int
	Errors    int
}

// Reconciler is the status reconciliation poller: the fallback path that
// queries Recurrente directly when no webhook has arrived, or when a buyer
// asks for a manual refresh. All outcomes flow through the same
// transitioner as webhooks, so late or duplicate statuses are no-ops.
type Reconciler struct {
	repo      Repository
	trans     *Transitioner
	settings  SettingsResolver
	newClient ClientFactory

	minAge time.Duration
	maxAge time.Duration
}

// NewReconciler creates a reconciler with the default sweep bounds.
func NewReconciler(repo Repository, trans *Transitioner, settings SettingsResolver, newClient ClientFactory) *Reconciler {
	return &Reconciler{
		repo:      repo,
		trans:     trans,
		settings:  settings,
		newClient: newClient,
		minAge:    DefaultSweepMinAge,
		maxAge:    DefaultSweepMaxAge,
	}
}

// SweepPending reconciles every eligible pending payment. Transient API
// failures are counted and retried on the next sweep; they never abort the
// pass or reach a buyer.
func (r *Reconciler) SweepPending(ctx context.Context) SweepStats {
	stats := SweepStats{}

	pending, err := r.repo.ListPendingPayments(r.minAge, r.maxAge)
	if err != nil {
		log.Errorf("[Reconciler] Listing pending payments failed: %v", err)
		stats.Errors++
		return stats
	}
	stats.Total = len(pending)

	for _, pp := range pending {
		if ctx.Err() != nil {
			return stats
		}
		result, err := r.reconcileOne(ctx, &pp)
		if err != nil {
			log.Warnf("[Reconciler] Payment %d: %v", pp.Payment.ID, err)
			stats.Errors++
			continue
		}
		switch result {
		case ResultTransitioned:
			stats.Updated++
			if pp.Payment.State == models.PaymentStateConfirmed {
				stats.Confirmed++
			}
		case ResultDuplicate:
			stats.Updated++
		}
	}

	log.Infof("[Reconciler] Sweep done: total=%d updated=%d confirmed=%d errors=%d",
		stats.Total, stats.Updated, stats.Confirmed, stats.Errors)
	return stats
}

// RefreshPayment reconciles a single payment synchronously, for the manual
// refresh endpoint. An empty result means the provider still reports the
// checkout as pending.
func (r *Reconciler) RefreshPayment(ctx context.Context, payment *models.Payment, scope Scope) (Result, error) {
	pp := &PendingPayment{Payment: *payment, Scope: scope}
	return r.reconcileOne(ctx, pp)
}

func (r *Reconciler) reconcileOne(ctx context.Context, pp *PendingPayment) (Result, error) {
	checkoutID := pp.Payment.InfoString("checkout_id")
	if checkoutID == "" {
		return "", fmt.Errorf("payment %d has no checkout_id to poll", pp.Payment.ID)
	}

	setting, err := r.settings.ResolveGatewaySetting(pp.Scope)
	if err != nil {
		return "", fmt.Errorf("resolving gateway settings: %w", err)
	}

	checkout, err := r.newClient(setting).GetCheckout(ctx, checkoutID)
	if err != nil {
		return "", fmt.Errorf("querying checkout %s: %w", checkoutID, err)
	}

	meta := infoFromCheckout(checkout)
	meta["auto_updated"] = true
	meta["last_polled_at"] = time.Now().Format(time.RFC3339)

	outcome, ok := OutcomeForProviderStatus(checkout.Status)
	if !ok {
		// Still pending on the provider side; record the poll under the
		// payment lock so a racing webhook's fields survive.
		if err := r.trans.MergeInfo(ctx, pp.Payment.ID, meta); err != nil {
			return "", err
		}
		return "", nil
	}

	result, err := r.trans.Apply(ctx, pp.Payment.ID, outcome, meta)
	if err != nil {
		return result, err
	}
	pp.Payment.State = outcome.TargetState()
	return result, nil
}

// infoFromCheckout flattens the checkout fields worth keeping on the
// payment record.
func infoFromCheckout(c *recurrente.Checkout) map[string]interface{} {
	meta := map[string]interface{}{
		"checkout_id":     c.ID,
		"provider_status": c.Status,
	}
	if c.ExpiresAt != "" {
		meta["expires_at"] = c.ExpiresAt
	}
	if c.FailureReason != "" {
		meta["failure_reason"] = c.FailureReason
	}
	if c.Payment != nil {
		if c.Payment.ID != "" {
			meta["payment_id"] = c.Payment.ID
		}
		if c.Payment.ReceiptNumber != "" {
			meta["receipt_number"] = c.Payment.ReceiptNumber
		}
		if c.Payment.AuthorizationCode != "" {
			meta["authorization_code"] = c.Payment.AuthorizationCode
		}
	}
	if pm := c.PaymentMethod; pm != nil {
		if pm.Type != "" {
			meta["payment_method"] = pm.Type
		}
		if pm.Card != nil {
			meta["card_last4"] = pm.Card.Last4
			meta["card_network"] = pm.Card.Network
		}
	}
	return meta
}
