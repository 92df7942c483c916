package payments

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

type rawCard struct {
	Last4   string `json:"last4"`
	Network string `json:"network"`
}

type rawPaymentMethod struct {
	Type string   `json:"type"`
	Card *rawCard `json:"card"`
}

type rawCheckout struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason"`
	CreatedAt     string            `json:"created_at"`
	PaymentMethod *rawPaymentMethod `json:"payment_method"`
	Metadata      map[string]string `json:"metadata"`
}

type rawRef struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// rawEnvelope covers the payload variants Recurrente sends. Metadata may
// appear under checkout, payment, data or at the top level depending on the
// event type.
type rawEnvelope struct {
	EventType     string            `json:"event_type"`
	Type          string            `json:"type"`
	ID            string            `json:"id"`
	CreatedAt     string            `json:"created_at"`
	AmountInCents int64             `json:"amount_in_cents"`
	Currency      string            `json:"currency"`
	FailureReason string            `json:"failure_reason"`
	Checkout      *rawCheckout      `json:"checkout"`
	Payment       *rawRef           `json:"payment"`
	Data          *rawRef           `json:"data"`
	Metadata      map[string]string `json:"metadata"`
}

// ParseNotification normalizes a raw Recurrente webhook body. It never
// rejects on missing identifiers; the matcher decides what is usable.
func ParseNotification(payload []byte) (*Notification, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	n := &Notification{
		EventType:     strings.TrimSpace(firstNonEmpty(raw.EventType, raw.Type)),
		CreatedAt:     raw.CreatedAt,
		AmountInCents: raw.AmountInCents,
		Currency:      raw.Currency,
		FailureReason: raw.FailureReason,
		Raw:           append([]byte(nil), payload...),
	}

	// Provider payment id lives at the top level or under payment.
	n.ProviderPaymentID = strings.TrimSpace(raw.ID)
	if n.ProviderPaymentID == "" && raw.Payment != nil {
		n.ProviderPaymentID = strings.TrimSpace(raw.Payment.ID)
	}

	if raw.Checkout != nil {
		n.CheckoutID = strings.TrimSpace(raw.Checkout.ID)
		n.Status = strings.TrimSpace(raw.Checkout.Status)
		if n.FailureReason == "" {
			n.FailureReason = raw.Checkout.FailureReason
		}
		if pm := raw.Checkout.PaymentMethod; pm != nil {
			n.PaymentMethod = pm.Type
			if pm.Card != nil {
				n.CardLast4 = pm.Card.Last4
				n.CardNetwork = pm.Card.Network
			}
		}
	}

	// The event type is authoritative for the status; the checkout status
	// is only a fallback for event types we do not recognize.
	if outcome, ok := OutcomeForEventType(n.EventType); ok {
		switch outcome {
		case OutcomeConfirm:
			n.Status = "succeeded"
		case OutcomeFail:
			n.Status = "failed"
		case OutcomeRefund:
			n.Status = "refunded"
		}
	}

	meta := firstMetadata(raw)
	n.OrderCode = strings.TrimSpace(meta["order_code"])
	n.LocalPaymentID = strings.TrimSpace(meta["payment_id"])
	n.OrganizerSlug = strings.TrimSpace(meta["organizer_slug"])
	n.EventSlug = strings.TrimSpace(meta["event_slug"])

	n.EventID = n.dedupID()
	return n, nil
}

func firstMetadata(raw rawEnvelope) map[string]string {
	if raw.Checkout != nil && len(raw.Checkout.Metadata) > 0 {
		return raw.Checkout.Metadata
	}
	if len(raw.Metadata) > 0 {
		return raw.Metadata
	}
	if raw.Payment != nil && len(raw.Payment.Metadata) > 0 {
		return raw.Payment.Metadata
	}
	if raw.Data != nil && len(raw.Data.Metadata) > 0 {
		return raw.Data.Metadata
	}
	return map[string]string{}
}

// dedupID derives a stable identifier for duplicate detection: the provider
// payment id, then the checkout id, then the metadata tuple, then a payload
// hash as the last resort. Every variant carries the event type: the same
// provider payment id legitimately appears again on a later event of a
// different type (succeeded, then refunded), and those are distinct
// deliveries, not replays.
func (n *Notification) dedupID() string {
	if n.ProviderPaymentID != "" {
		return fmt.Sprintf("%s_%s", n.ProviderPaymentID, n.EventType)
	}
	if n.CheckoutID != "" {
		return fmt.Sprintf("%s_%s", n.CheckoutID, n.EventType)
	}
	if n.OrderCode != "" && n.LocalPaymentID != "" {
		return fmt.Sprintf("%s_%s_%s", n.OrderCode, n.LocalPaymentID, n.EventType)
	}
	sum := sha256.Sum256(n.Raw)
	return "hash:" + hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
