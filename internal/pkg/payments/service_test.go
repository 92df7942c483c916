package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/internal/pkg/locks"
)

func newTestService(repo *fakeRepo, setting *models.GatewaySetting) *Service {
	return NewService(repo, NewMatcher(repo), NewTransitioner(repo, locks.NewMemoryLocker()), &fakeSettings{setting: setting})
}

func testSetting(secret string, lenient bool) *models.GatewaySetting {
	return &models.GatewaySetting{
		OrganizerSlug:   testScope.OrganizerSlug,
		EventSlug:       testScope.EventSlug,
		APIKey:          "pk_test",
		APISecret:       "sk_test",
		WebhookSecret:   secret,
		LenientWebhooks: lenient,
	}
}

// confirmDedupID is the dedup identity confirmBody parses to.
const confirmDedupID = "pa_100_payment_intent.succeeded"

const confirmBody = `{
	"event_type": "payment_intent.succeeded",
	"id": "pa_100",
	"checkout": {
		"id": "ch_100",
		"metadata": {"order_code": "ABC123", "organizer_slug": "acme", "event_slug": "congress-2026"}
	}
}`

func TestServiceHandleWebhookConfirms(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	svc := newTestService(repo, testSetting(testSecret, false))

	body := []byte(confirmBody)
	in := InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret), Scope: &testScope}

	res, err := svc.HandleWebhook(context.Background(), in)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if res.Disposition != DispositionProcessed || res.Result != ResultTransitioned {
		t.Errorf("disposition/result = %v/%v", res.Disposition, res.Result)
	}
	if !res.SignatureValid {
		t.Error("signature should be marked valid")
	}

	p, _ := repo.GetPayment(1)
	if p.State != models.PaymentStateConfirmed {
		t.Errorf("payment state = %q", p.State)
	}
	if p.InfoString("webhook_event_type") != "payment_intent.succeeded" {
		t.Errorf("webhook metadata not merged: %s", p.InfoJSON)
	}
	if repo.paidCount() != 1 {
		t.Errorf("MarkOrderPaid fired %d times", repo.paidCount())
	}

	repo.mu.Lock()
	stored := repo.webhookEvents[models.PaymentProviderRecurrente+"/"+confirmDedupID]
	repo.mu.Unlock()
	if stored == nil {
		t.Fatal("webhook event not recorded")
	}
	if stored.ProcessedAt == nil || stored.ProcessingError != "" {
		t.Errorf("webhook event not marked processed cleanly: %+v", stored)
	}
}

func TestServiceHandleWebhookReplay(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	svc := newTestService(repo, testSetting(testSecret, false))

	body := []byte(confirmBody)
	in := InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret), Scope: &testScope}

	if _, err := svc.HandleWebhook(context.Background(), in); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	res, err := svc.HandleWebhook(context.Background(), in)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if res.Disposition != DispositionDuplicate {
		t.Errorf("replay disposition = %v, want duplicate", res.Disposition)
	}
	if repo.paidCount() != 1 {
		t.Errorf("replay re-fired the side effect: %d calls", repo.paidCount())
	}
}

func TestServiceHandleWebhookRefundAfterConfirmSameProviderID(t *testing.T) {
	// Recurrente reuses the payment id across the lifecycle: the refund
	// notification arrives under the same id as the earlier confirmation.
	// It must be processed as a fresh event, not swallowed as a replay.
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	svc := newTestService(repo, testSetting(testSecret, false))

	body := []byte(confirmBody)
	if _, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret), Scope: &testScope}); err != nil {
		t.Fatalf("confirm delivery failed: %v", err)
	}

	refundBody := []byte(`{
		"event_type": "charge.refunded",
		"id": "pa_100",
		"checkout": {
			"id": "ch_100",
			"metadata": {"order_code": "ABC123", "organizer_slug": "acme", "event_slug": "congress-2026"}
		}
	}`)
	res, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: refundBody, Headers: signedHeaders(t, refundBody, testSecret), Scope: &testScope})
	if err != nil {
		t.Fatalf("refund delivery failed: %v", err)
	}
	if res.Disposition != DispositionProcessed || res.Result != ResultTransitioned {
		t.Fatalf("refund disposition/result = %v/%v, want processed/transitioned", res.Disposition, res.Result)
	}

	p, _ := repo.GetPayment(1)
	if p.State != models.PaymentStateRefunded {
		t.Errorf("payment state = %q, want refunded", p.State)
	}
	if repo.refundedCount() != 1 {
		t.Errorf("MarkOrderRefunded fired %d times", repo.refundedCount())
	}
}

func TestServiceHandleWebhookRetriesFailedAttempt(t *testing.T) {
	// A delivery that failed processing (no payment yet) is stored but must
	// be reprocessed when redelivered, not reported as a duplicate.
	repo := newFakeRepo()
	repo.addScope(testScope)
	svc := newTestService(repo, testSetting(testSecret, false))

	body := []byte(confirmBody)
	in := InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret), Scope: &testScope}

	if _, err := svc.HandleWebhook(context.Background(), in); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound on first attempt, got %v", err)
	}

	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	res, err := svc.HandleWebhook(context.Background(), in)
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if res.Disposition != DispositionProcessed {
		t.Errorf("redelivery disposition = %v, want processed", res.Disposition)
	}
}

func TestServiceHandleWebhookInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	svc := newTestService(repo, testSetting(testSecret, false))

	body := []byte(confirmBody)
	headers := signedHeaders(t, body, "whsec_d3JvbmctbmV0d29yay1rZXk=")
	_, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: headers, Scope: &testScope})
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	p, _ := repo.GetPayment(1)
	if p.State != models.PaymentStatePending {
		t.Errorf("rejected delivery mutated payment state to %q", p.State)
	}
}

func TestServiceHandleWebhookNoSecretFailsClosed(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	svc := newTestService(repo, testSetting("", false))

	body := []byte(confirmBody)
	_, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Scope: &testScope})
	if !errors.Is(err, ErrNoWebhookSecret) {
		t.Fatalf("expected ErrNoWebhookSecret, got %v", err)
	}
}

func TestServiceHandleWebhookLenientGlobalOnly(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	svc := newTestService(repo, testSetting("", true))

	body := []byte(confirmBody)

	// Lenient mode never applies to the event-scoped endpoint.
	if _, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Scope: &testScope}); !errors.Is(err, ErrNoWebhookSecret) {
		t.Fatalf("event-scoped lenient delivery must be rejected, got %v", err)
	}

	// The global endpoint processes it, flagged unverified.
	res, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body})
	if err != nil {
		t.Fatalf("global lenient delivery failed: %v", err)
	}
	if res.SignatureValid {
		t.Error("unverified delivery flagged as verified")
	}
	if res.Disposition != DispositionProcessed {
		t.Errorf("disposition = %v", res.Disposition)
	}
	repo.mu.Lock()
	stored := repo.webhookEvents[models.PaymentProviderRecurrente+"/"+confirmDedupID]
	repo.mu.Unlock()
	if stored == nil || stored.SignatureValid {
		t.Error("stored webhook event should record the unverified flag")
	}
}

func TestServiceHandleWebhookGlobalScopeFromMetadata(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	svc := newTestService(repo, testSetting(testSecret, false))

	body := []byte(confirmBody)
	res, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret)})
	if err != nil {
		t.Fatalf("global delivery failed: %v", err)
	}
	if res.Scope != testScope {
		t.Errorf("resolved scope = %+v", res.Scope)
	}
}

func TestServiceHandleWebhookErrorCarriesResolvedScope(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	svc := newTestService(repo, testSetting(testSecret, false))

	// A global delivery rejected after scope resolution still reports the
	// scope so the caller can count the rejection against it.
	body := []byte(confirmBody)
	headers := signedHeaders(t, body, "whsec_d3JvbmctbmV0d29yay1rZXk=")
	res, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: headers})
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
	if res == nil || res.Scope != testScope {
		t.Fatalf("rejected delivery lost its scope: %+v", res)
	}

	// Same when matching fails: the stored payment belongs to another
	// checkout, so the pipeline errors after resolving the scope.
	repo2 := newFakeRepo()
	repo2.addPayment(pendingPayment(1, 10, time.Now(), map[string]interface{}{"checkout_id": "ch_other"}), testScope, "ZZZ999")
	svc2 := newTestService(repo2, testSetting(testSecret, false))

	res, err = svc2.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret)})
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
	if res == nil || res.Scope != testScope {
		t.Fatalf("unmatched delivery lost its scope: %+v", res)
	}
	if !res.SignatureValid {
		t.Error("verified delivery should report SignatureValid")
	}
}

func TestServiceHandleWebhookUnresolvableScope(t *testing.T) {
	repo := newFakeRepo()
	repo.addScope(testScope)
	svc := newTestService(repo, testSetting(testSecret, false))

	// No scope metadata at all.
	body := []byte(`{"event_type":"payment_intent.succeeded","id":"pa_1"}`)
	if _, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret)}); !errors.Is(err, ErrScopeUnresolved) {
		t.Fatalf("expected ErrScopeUnresolved, got %v", err)
	}

	// Metadata names an event that does not exist.
	body = []byte(`{"event_type":"payment_intent.succeeded","id":"pa_2","metadata":{"organizer_slug":"ghost","event_slug":"nowhere"}}`)
	if _, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret)}); !errors.Is(err, ErrScopeUnresolved) {
		t.Fatalf("expected ErrScopeUnresolved for unknown event, got %v", err)
	}
}

func TestServiceHandleWebhookIgnoresUnhandledEventType(t *testing.T) {
	repo := newFakeRepo()
	repo.addScope(testScope)
	svc := newTestService(repo, testSetting(testSecret, false))

	body := []byte(`{"event_type":"subscription.created","id":"sub_1","metadata":{"organizer_slug":"acme","event_slug":"congress-2026"}}`)
	res, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret), Scope: &testScope})
	if err != nil {
		t.Fatalf("unhandled event type must be acknowledged, got %v", err)
	}
	if res.Disposition != DispositionIgnored {
		t.Errorf("disposition = %v, want ignored", res.Disposition)
	}
}

func TestServiceHandleWebhookAmbiguousMatch(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayment(pendingPayment(1, 10, time.Now().Add(-time.Minute), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "ABC123")
	repo.addPayment(pendingPayment(2, 11, time.Now(), map[string]interface{}{"checkout_id": "ch_100"}), testScope, "DEF456")
	svc := newTestService(repo, testSetting(testSecret, false))

	body := []byte(confirmBody)
	_, err := svc.HandleWebhook(context.Background(), InboundWebhook{Body: body, Headers: signedHeaders(t, body, testSecret), Scope: &testScope})
	if !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}

	// The stored event carries the failure so the next delivery retries it.
	repo.mu.Lock()
	stored := repo.webhookEvents[models.PaymentProviderRecurrente+"/"+confirmDedupID]
	repo.mu.Unlock()
	if stored == nil || stored.ProcessingError == "" {
		t.Error("match failure should be recorded on the webhook event")
	}
}
