package recurrente

// Checkout status vocabulary returned by Recurrente's API and webhooks.
const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
	StatusRefunded = "refunded"
	StatusExpired  = "expired"
)

// Card carries the card metadata Recurrente exposes on settled checkouts.
type Card struct {
	Last4   string `json:"last4"`
	Network string `json:"network"`
}

// PaymentMethod describes how a checkout was paid.
type PaymentMethod struct {
	Type string `json:"type"`
	Card *Card  `json:"card,omitempty"`
}

// PaymentDetails is the payment object nested inside a checkout.
type PaymentDetails struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
}

// Checkout is Recurrente's checkout session object.
type Checkout struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	CheckoutURL   string            `json:"checkout_url"`
	AmountInCents int64             `json:"amount_in_cents"`
	Currency      string            `json:"currency"`
	CreatedAt     string            `json:"created_at"`
	ExpiresAt     string            `json:"expires_at,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Payment       *PaymentDetails   `json:"payment,omitempty"`
	PaymentMethod *PaymentMethod    `json:"payment_method,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CheckoutItem is one line item on a checkout.
type CheckoutItem struct {
	Name          string `json:"name"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
	Quantity      int    `json:"quantity"`
}

// CreateCheckoutRequest creates a new checkout session. Metadata must carry
// order code, local payment id and the organizer/event slugs so webhooks
// and the global endpoint can resolve scope later.
type CreateCheckoutRequest struct {
	Items      []CheckoutItem    `json:"items"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

// RefundResponse is Recurrente's answer to a refund request.
type RefundResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}
