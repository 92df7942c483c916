package payments

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/boletera/boletera/app/models"
)

// PendingPayment is a pending payment together with the scope the sweep
// needs to resolve credentials and run scoped matching.
type PendingPayment struct {
	Payment   models.Payment
	OrderCode string
	Scope     Scope
}

// Repository provides the DB operations used by the reconciliation core.
// All lookups are scoped to one organizer/event.
type Repository interface {
	ScopeExists(scope Scope) (bool, error)

	// FindPaymentsByInfoRef returns recurrente payments in scope whose
	// info blob contains ref, newest first.
	FindPaymentsByInfoRef(scope Scope, ref string) ([]models.Payment, error)
	// FindPaymentByLocalID returns the payment with the given local id
	// belonging to the order with code within scope.
	FindPaymentByLocalID(scope Scope, orderCode string, paymentID uint) (*models.Payment, error)
	// FindLatestNonTerminalPayment returns the most recent created/pending
	// recurrente payment for the order within scope.
	FindLatestNonTerminalPayment(scope Scope, orderCode string) (*models.Payment, error)

	GetPayment(id uint) (*models.Payment, error)
	// GetPaymentWithScope loads a payment together with its order code and
	// organizer/event scope.
	GetPaymentWithScope(id uint) (*PendingPayment, error)
	SavePaymentInfo(p *models.Payment) error
	UpdatePaymentState(p *models.Payment) error

	// ListPendingPayments returns pending recurrente payments created
	// between maxAge and minAge ago, with their scope resolved.
	ListPendingPayments(minAge, maxAge time.Duration) ([]PendingPayment, error)

	MarkOrderPaid(orderID uint) error
	MarkOrderRefunded(orderID uint) error

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ScopeExists(scope Scope) (bool, error) {
	if scope.IsZero() {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.Event{}).
		Joins("JOIN organizers ON organizers.id = events.organizer_id").
		Where("organizers.slug = ? AND events.slug = ?", scope.OrganizerSlug, scope.EventSlug).
		Count(&count).Error
	return count > 0, err
}

// scopedPayments narrows a payment query to the recurrente provider and one
// organizer/event.
func (r *gormRepository) scopedPayments(scope Scope) *gorm.DB {
	return r.db.Model(&models.Payment{}).
		Joins("JOIN orders ON orders.id = payments.order_id").
		Joins("JOIN events ON events.id = orders.event_id").
		Joins("JOIN organizers ON organizers.id = events.organizer_id").
		Where("payments.provider = ?", models.PaymentProviderRecurrente).
		Where("organizers.slug = ? AND events.slug = ?", scope.OrganizerSlug, scope.EventSlug)
}

func (r *gormRepository) FindPaymentsByInfoRef(scope Scope, ref string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.scopedPayments(scope).
		Where("payments.info_json LIKE ?", "%"+ref+"%").
		Order("payments.created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *gormRepository) FindPaymentByLocalID(scope Scope, orderCode string, paymentID uint) (*models.Payment, error) {
	var p models.Payment
	err := r.scopedPayments(scope).
		Where("orders.code = ? AND payments.id = ?", orderCode, paymentID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindLatestNonTerminalPayment(scope Scope, orderCode string) (*models.Payment, error) {
	var p models.Payment
	err := r.scopedPayments(scope).
		Where("orders.code = ?", orderCode).
		Where("payments.state IN ?", []string{models.PaymentStateCreated, models.PaymentStatePending}).
		Order("payments.created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPayment(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPaymentWithScope(id uint) (*PendingPayment, error) {
	var p models.Payment
	err := r.db.
		Preload("Order").
		Preload("Order.Event").
		Preload("Order.Event.Organizer").
		First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &PendingPayment{
		Payment:   p,
		OrderCode: p.Order.Code,
		Scope: Scope{
			OrganizerSlug: p.Order.Event.Organizer.Slug,
			EventSlug:     p.Order.Event.Slug,
		},
	}, nil
}

func (r *gormRepository) SavePaymentInfo(p *models.Payment) error {
	return r.db.Model(&models.Payment{}).
		Where("id = ?", p.ID).
		Update("info_json", p.InfoJSON).Error
}

func (r *gormRepository) UpdatePaymentState(p *models.Payment) error {
	return r.db.Model(&models.Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"state":     p.State,
			"info_json": p.InfoJSON,
		}).Error
}

func (r *gormRepository) ListPendingPayments(minAge, maxAge time.Duration) ([]PendingPayment, error) {
	now := time.Now()
	var payments []models.Payment
	err := r.db.Model(&models.Payment{}).
		Preload("Order").
		Preload("Order.Event").
		Preload("Order.Event.Organizer").
		Where("provider = ? AND state = ?", models.PaymentProviderRecurrente, models.PaymentStatePending).
		Where("created_at < ? AND created_at > ?", now.Add(-minAge), now.Add(-maxAge)).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	out := make([]PendingPayment, 0, len(payments))
	for _, p := range payments {
		out = append(out, PendingPayment{
			Payment:   p,
			OrderCode: p.Order.Code,
			Scope: Scope{
				OrganizerSlug: p.Order.Event.Organizer.Slug,
				EventSlug:     p.Order.Event.Slug,
			},
		})
	}
	return out, nil
}

func (r *gormRepository) MarkOrderPaid(orderID uint) error {
	now := time.Now()
	return r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":  models.OrderStatusPaid,
			"paid_at": &now,
		}).Error
}

func (r *gormRepository) MarkOrderRefunded(orderID uint) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", models.OrderStatusRefunded).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": processingError,
		}).Error
}
