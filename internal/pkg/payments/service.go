package payments

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/internal/pkg/locks"
)

// Disposition says how an accepted webhook was concluded.
type Disposition string

const (
	// DispositionProcessed: a fresh transition happened.
	DispositionProcessed Disposition = "processed"
	// DispositionDuplicate: the delivery was a replay; idempotent success.
	DispositionDuplicate Disposition = "duplicate"
	// DispositionIgnored: recognized envelope, unhandled event type.
	DispositionIgnored Disposition = "ignored"
)

// InboundWebhook is one delivery as received by a controller. Scope is set
// for the event-scoped endpoint and nil for the global one, which must
// resolve it from metadata.
type InboundWebhook struct {
	Body    []byte
	Headers SignatureHeaders
	Scope   *Scope
}

// WebhookResult is the controller-facing conclusion of a delivery.
type WebhookResult struct {
	Disposition    Disposition
	Result         Result
	Payment        *models.Payment
	Notification   *Notification
	Scope          Scope
	SignatureValid bool
}

// Service runs the full webhook pipeline: scope resolution, signature
// verification, dedup, matching and the idempotent transition.
type Service struct {
	repo      Repository
	matcher   *Matcher
	trans     *Transitioner
	settings  SettingsResolver
	dedup     DedupMarker
	tolerance time.Duration
}

// NewService wires the pipeline.
func NewService(repo Repository, matcher *Matcher, trans *Transitioner, settings SettingsResolver) *Service {
	return &Service{
		repo:      repo,
		matcher:   matcher,
		trans:     trans,
		settings:  settings,
		tolerance: DefaultSignatureTolerance,
	}
}

// UseDedupMarker installs the optional fast-path marker in front of the
// event record. Without one every delivery goes straight to the DB
// insert-if-absent, which stays correct on its own.
func (s *Service) UseDedupMarker(d DedupMarker) {
	s.dedup = d
}

// Transitioner exposes the shared transitioner for the poller and refund
// flow so every state change funnels through one lock discipline.
func (s *Service) Transitioner() *Transitioner {
	return s.trans
}

// Repo exposes the reconciliation repository.
func (s *Service) Repo() Repository {
	return s.repo
}

// HandleWebhook processes one delivery to a terminal conclusion. Every
// error maps onto the caller's HTTP taxonomy: signature/secret ->
// ErrSignatureInvalid / ErrNoWebhookSecret, unresolvable target ->
// ErrScopeUnresolved, matching -> ErrPaymentNotFound / ErrAmbiguousMatch,
// state -> ErrConflictingState, contention -> locks.ErrLockTimeout.
func (s *Service) HandleWebhook(ctx context.Context, in InboundWebhook) (*WebhookResult, error) {
	n, err := ParseNotification(in.Body)
	if err != nil {
		return nil, err
	}

	global := in.Scope == nil
	scope := n.MetadataScope()
	if !global {
		scope = *in.Scope
	}
	if scope.IsZero() {
		log.Errorf("[Webhook] Event %s carries no organizer/event metadata, cannot determine target", n.EventID)
		return nil, ErrScopeUnresolved
	}
	exists, err := s.repo.ScopeExists(scope)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Errorf("[Webhook] Event %s names unknown scope %s/%s", n.EventID, scope.OrganizerSlug, scope.EventSlug)
		return nil, ErrScopeUnresolved
	}

	// From here on the scope is known good; error returns still carry a
	// partial result so the global endpoint can attribute the rejection.
	signatureValid, err := s.verify(in, scope, global)
	if err != nil {
		return &WebhookResult{Notification: n, Scope: scope}, err
	}

	if s.dedup != nil {
		if seen, derr := s.dedup.Seen(ctx, n.EventID); derr != nil {
			log.Warnf("[Webhook] Dedup marker lookup failed, falling back to DB: %v", derr)
		} else if seen {
			log.Infof("[Webhook] Event %s already processed (marker hit), idempotent no-op", n.EventID)
			return &WebhookResult{
				Disposition:    DispositionDuplicate,
				Notification:   n,
				Scope:          scope,
				SignatureValid: signatureValid,
			}, nil
		}
	}

	stored, dup, err := s.recordEvent(n, scope, signatureValid)
	if err != nil {
		return &WebhookResult{Notification: n, Scope: scope, SignatureValid: signatureValid}, err
	}
	if dup {
		log.Infof("[Webhook] Event %s already processed, idempotent no-op", n.EventID)
		return &WebhookResult{
			Disposition:    DispositionDuplicate,
			Notification:   n,
			Scope:          scope,
			SignatureValid: signatureValid,
		}, nil
	}

	outcome, handled := OutcomeForEventType(n.EventType)
	if !handled {
		_ = s.repo.MarkWebhookProcessed(stored.ID, "")
		s.markSeen(ctx, n.EventID)
		log.Infof("[Webhook] Event type %s not handled, acknowledging", n.EventType)
		return &WebhookResult{
			Disposition:    DispositionIgnored,
			Notification:   n,
			Scope:          scope,
			SignatureValid: signatureValid,
		}, nil
	}

	payment, err := s.matcher.Match(n, scope)
	if err != nil {
		_ = s.repo.MarkWebhookProcessed(stored.ID, err.Error())
		return &WebhookResult{Notification: n, Scope: scope, SignatureValid: signatureValid}, err
	}

	result, err := s.trans.Apply(ctx, payment.ID, outcome, webhookInfo(n, signatureValid))
	if err != nil {
		_ = s.repo.MarkWebhookProcessed(stored.ID, err.Error())
		return &WebhookResult{Notification: n, Scope: scope, SignatureValid: signatureValid, Payment: payment}, err
	}
	payment.State = outcome.TargetState()
	_ = s.repo.MarkWebhookProcessed(stored.ID, "")
	s.markSeen(ctx, n.EventID)

	disposition := DispositionProcessed
	if result == ResultDuplicate {
		disposition = DispositionDuplicate
	}
	return &WebhookResult{
		Disposition:    disposition,
		Result:         result,
		Payment:        payment,
		Notification:   n,
		Scope:          scope,
		SignatureValid: signatureValid,
	}, nil
}

// verify applies the fail-closed signature policy. A configured secret is
// always enforced. A missing secret rejects unless the discouraged lenient
// mode is enabled for the scope and the delivery came through the global
// endpoint, in which case the event is processed flagged as unverified.
func (s *Service) verify(in InboundWebhook, scope Scope, global bool) (bool, error) {
	setting, err := s.settings.ResolveGatewaySetting(scope)
	if err != nil {
		return false, err
	}

	if setting.WebhookSecret != "" {
		if err := VerifyWebhookSignature(in.Body, in.Headers, setting.WebhookSecret, s.tolerance); err != nil {
			log.Errorf("[Webhook] Signature rejected for %s/%s: %v", scope.OrganizerSlug, scope.EventSlug, err)
			return false, err
		}
		return true, nil
	}

	if global && setting.LenientWebhooks {
		log.Warnf("[Webhook] No secret for %s/%s, lenient mode is on: processing UNVERIFIED delivery", scope.OrganizerSlug, scope.EventSlug)
		return false, nil
	}

	log.Errorf("[Webhook] No secret configured for %s/%s, rejecting delivery", scope.OrganizerSlug, scope.EventSlug)
	return false, ErrNoWebhookSecret
}

// markSeen records a cleanly concluded event in the dedup fast path.
func (s *Service) markSeen(ctx context.Context, eventID string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Mark(ctx, eventID); err != nil {
		log.Warnf("[Webhook] Dedup marker write failed for %s: %v", eventID, err)
	}
}

// recordEvent persists the delivery insert-if-absent. A previously stored
// event counts as a duplicate only if its processing concluded cleanly;
// failed attempts are reprocessed so the processor's retries are not
// swallowed.
func (s *Service) recordEvent(n *Notification, scope Scope, signatureValid bool) (*models.WebhookEvent, bool, error) {
	event := &models.WebhookEvent{
		Provider:        models.PaymentProviderRecurrente,
		ProviderEventID: n.EventID,
		EventType:       n.EventType,
		OrganizerSlug:   scope.OrganizerSlug,
		EventSlug:       scope.EventSlug,
		PayloadJSON:     string(n.Raw),
		SignatureValid:  signatureValid,
	}
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(event)
	if err != nil {
		return nil, false, err
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return stored, true, nil
	}
	return stored, false, nil
}

// webhookInfo builds the info-blob fields a webhook contributes.
func webhookInfo(n *Notification, signatureValid bool) map[string]interface{} {
	meta := map[string]interface{}{
		"webhook_received":    true,
		"webhook_event_type":  n.EventType,
		"webhook_id":          n.EventID,
		"webhook_received_at": time.Now().Format(time.RFC3339),
		"webhook_verified":    signatureValid,
	}
	if n.CheckoutID != "" {
		meta["checkout_id"] = n.CheckoutID
	}
	if n.ProviderPaymentID != "" {
		meta["payment_id"] = n.ProviderPaymentID
	}
	if n.AmountInCents > 0 {
		meta["amount_in_cents"] = n.AmountInCents
	}
	if n.Currency != "" {
		meta["currency"] = n.Currency
	}
	if n.FailureReason != "" {
		meta["failure_reason"] = n.FailureReason
	}
	if n.PaymentMethod != "" {
		meta["payment_method"] = n.PaymentMethod
	}
	if n.CardLast4 != "" {
		meta["card_last4"] = n.CardLast4
		meta["card_network"] = n.CardNetwork
	}
	return meta
}

// IsRetryable reports whether the processor should redeliver after err.
// Only lock contention is retryable; everything else is a terminal verdict
// for this delivery.
func IsRetryable(err error) bool {
	return errors.Is(err, locks.ErrLockTimeout)
}
