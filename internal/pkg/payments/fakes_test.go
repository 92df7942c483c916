package payments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/internal/pkg/recurrente"
)

// fakeRepo is an in-memory Repository for the matcher, transitioner and
// service tests.
type fakeRepo struct {
	mu sync.Mutex

	scopes   map[string]bool
	payments map[uint]*models.Payment
	orders   map[uint]*models.Order

	// Per-payment scope and order code, so scoped lookups work without a
	// real join.
	scopeOf map[uint]Scope
	codeOf  map[uint]string

	webhookEvents map[string]*models.WebhookEvent
	nextWebhookID uint

	pending []PendingPayment

	// Effective order flips, mirroring the guarded SQL updates: a
	// re-asserted side effect on an already-flipped order counts nothing.
	markPaidCalls     int
	markRefundedCalls int

	failSavePaymentInfo   error
	failMarkOrderPaidOnce error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		scopes:        map[string]bool{},
		payments:      map[uint]*models.Payment{},
		orders:        map[uint]*models.Order{},
		scopeOf:       map[uint]Scope{},
		codeOf:        map[uint]string{},
		webhookEvents: map[string]*models.WebhookEvent{},
	}
}

func (r *fakeRepo) addScope(scope Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes[scope.OrganizerSlug+"/"+scope.EventSlug] = true
}

func (r *fakeRepo) addPayment(p *models.Payment, scope Scope, orderCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes[scope.OrganizerSlug+"/"+scope.EventSlug] = true
	r.payments[p.ID] = p
	r.scopeOf[p.ID] = scope
	r.codeOf[p.ID] = orderCode
	if _, ok := r.orders[p.OrderID]; !ok {
		r.orders[p.OrderID] = &models.Order{
			ID:     p.OrderID,
			Code:   orderCode,
			Status: models.OrderStatusPending,
		}
	}
}

func (r *fakeRepo) ScopeExists(scope Scope) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scopes[scope.OrganizerSlug+"/"+scope.EventSlug], nil
}

func (r *fakeRepo) FindPaymentsByInfoRef(scope Scope, ref string) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for id, p := range r.payments {
		if r.scopeOf[id] != scope {
			continue
		}
		if strings.Contains(p.InfoJSON, ref) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) FindPaymentByLocalID(scope Scope, orderCode string, paymentID uint) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok || r.scopeOf[paymentID] != scope || r.codeOf[paymentID] != orderCode {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) FindLatestNonTerminalPayment(scope Scope, orderCode string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*models.Payment
	for id, p := range r.payments {
		if r.scopeOf[id] != scope || r.codeOf[id] != orderCode {
			continue
		}
		if p.State == models.PaymentStateCreated || p.State == models.PaymentStatePending {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrPaymentNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.After(candidates[j].CreatedAt) })
	cp := *candidates[0]
	return &cp, nil
}

func (r *fakeRepo) GetPayment(id uint) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetPaymentWithScope(id uint) (*PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &PendingPayment{
		Payment:   *p,
		OrderCode: r.codeOf[id],
		Scope:     r.scopeOf[id],
	}, nil
}

func (r *fakeRepo) SavePaymentInfo(p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSavePaymentInfo != nil {
		return r.failSavePaymentInfo
	}
	stored, ok := r.payments[p.ID]
	if !ok {
		return ErrPaymentNotFound
	}
	stored.InfoJSON = p.InfoJSON
	return nil
}

func (r *fakeRepo) UpdatePaymentState(p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.ID]
	if !ok {
		return ErrPaymentNotFound
	}
	stored.State = p.State
	stored.InfoJSON = p.InfoJSON
	return nil
}

func (r *fakeRepo) ListPendingPayments(minAge, maxAge time.Duration) ([]PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PendingPayment(nil), r.pending...), nil
}

func (r *fakeRepo) MarkOrderPaid(orderID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failMarkOrderPaidOnce; err != nil {
		r.failMarkOrderPaidOnce = nil
		return err
	}
	if o, ok := r.orders[orderID]; ok && o.Status == models.OrderStatusPending {
		o.Status = models.OrderStatusPaid
		now := time.Now()
		o.PaidAt = &now
		r.markPaidCalls++
	}
	return nil
}

func (r *fakeRepo) MarkOrderRefunded(orderID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok && o.Status != models.OrderStatusRefunded {
		o.Status = models.OrderStatusRefunded
		r.markRefundedCalls++
	}
	return nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := r.webhookEvents[key]; ok {
		cp := *stored
		return false, &cp, nil
	}
	r.nextWebhookID++
	event.ID = r.nextWebhookID
	cp := *event
	r.webhookEvents[key] = &cp
	out := cp
	return true, &out, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.webhookEvents {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return fmt.Errorf("webhook event %d not found", id)
}

// paidCount reads the side effect counter under the repo lock.
func (r *fakeRepo) paidCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markPaidCalls
}

func (r *fakeRepo) refundedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markRefundedCalls
}

func mustInfo(fields map[string]interface{}) string {
	p := &models.Payment{}
	if err := p.SetInfoData(fields); err != nil {
		panic(err)
	}
	return p.InfoJSON
}

type fakeSettings struct {
	setting *models.GatewaySetting
	err     error
}

func (f *fakeSettings) ResolveGatewaySetting(scope Scope) (*models.GatewaySetting, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.setting, nil
}

type fakeCheckoutAPI struct {
	checkout *recurrente.Checkout
	err      error
	calls    int
}

func (f *fakeCheckoutAPI) GetCheckout(ctx context.Context, checkoutID string) (*recurrente.Checkout, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.checkout, nil
}
