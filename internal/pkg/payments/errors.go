package payments

import "errors"

var (
	// ErrPaymentNotFound means no matcher strategy produced a candidate.
	// The processor may retry; after enough retries this becomes an
	// operator-visible stuck notification.
	ErrPaymentNotFound = errors.New("no matching payment record")

	// ErrAmbiguousMatch means an identifier that must be unique matched
	// more than one payment. Never guess; reject for operator review.
	ErrAmbiguousMatch = errors.New("ambiguous payment match")

	// ErrConflictingState means a notification asked for a terminal state
	// while the payment already sits in a different terminal state. This
	// signals potential financial inconsistency and is never swallowed.
	ErrConflictingState = errors.New("conflicting terminal payment state")

	// ErrSignatureInvalid covers bad signatures, stale timestamps and
	// missing signature headers.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")

	// ErrNoWebhookSecret means no secret is configured for the scope and
	// lenient mode does not apply. Fail closed.
	ErrNoWebhookSecret = errors.New("no webhook secret configured for scope")

	// ErrScopeUnresolved means the organizer/event a notification names
	// could not be determined or does not exist.
	ErrScopeUnresolved = errors.New("cannot determine target event for notification")

	// ErrInvalidPayload means the webhook body was not a usable envelope.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)
