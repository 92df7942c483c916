// Package payments implements the Recurrente reconciliation core: webhook
// signature verification, payment matching, idempotent state transitions
// and status polling.
package payments

import (
	"strings"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/internal/pkg/recurrente"
)

// Outcome is what a notification or API status asks us to do to a payment.
type Outcome string

const (
	OutcomeConfirm Outcome = "confirm"
	OutcomeFail    Outcome = "fail"
	OutcomeCancel  Outcome = "cancel"
	OutcomeRefund  Outcome = "refund"
)

// TargetState maps an outcome onto the payment state it drives toward.
func (o Outcome) TargetState() string {
	switch o {
	case OutcomeConfirm:
		return models.PaymentStateConfirmed
	case OutcomeFail:
		return models.PaymentStateFailed
	case OutcomeCancel:
		return models.PaymentStateCanceled
	case OutcomeRefund:
		return models.PaymentStateRefunded
	default:
		return ""
	}
}

// Scope identifies the organizer/event a notification belongs to. Every
// matcher query is bounded by it so identifiers colliding across events can
// never cross-match.
type Scope struct {
	OrganizerSlug string
	EventSlug     string
}

func (s Scope) IsZero() bool {
	return s.OrganizerSlug == "" || s.EventSlug == ""
}

// Notification is the normalized form of one inbound webhook.
type Notification struct {
	EventID           string
	EventType         string
	CheckoutID        string
	ProviderPaymentID string
	Status            string
	AmountInCents     int64
	Currency          string
	FailureReason     string
	PaymentMethod     string
	CardLast4         string
	CardNetwork       string
	CreatedAt         string

	// Checkout metadata planted at checkout creation time.
	OrderCode      string
	LocalPaymentID string
	OrganizerSlug  string
	EventSlug      string

	Raw []byte
}

// MetadataScope returns the scope carried in the notification metadata.
func (n *Notification) MetadataScope() Scope {
	return Scope{OrganizerSlug: n.OrganizerSlug, EventSlug: n.EventSlug}
}

// OutcomeForEventType maps Recurrente webhook event types onto outcomes.
// Unhandled event types are acknowledged but ignored.
func OutcomeForEventType(eventType string) (Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "payment_intent.succeeded", "checkout.completed":
		return OutcomeConfirm, true
	case "payment.failed", "checkout.expired", "payment_intent.payment_failed":
		return OutcomeFail, true
	case "charge.refunded":
		return OutcomeRefund, true
	default:
		return "", false
	}
}

// OutcomeForProviderStatus maps the status vocabulary of Recurrente's
// checkout API onto outcomes. Pending carries no outcome.
func OutcomeForProviderStatus(status string) (Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case recurrente.StatusPaid:
		return OutcomeConfirm, true
	case recurrente.StatusFailed, recurrente.StatusExpired:
		return OutcomeFail, true
	case recurrente.StatusCanceled:
		return OutcomeCancel, true
	case recurrente.StatusRefunded:
		return OutcomeRefund, true
	default:
		return "", false
	}
}
