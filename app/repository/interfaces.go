package repository

import (
	"github.com/boletera/boletera/app/models"
	"gorm.io/gorm"
)

// EventRepository defines the interface for organizer/event lookups
type EventRepository interface {
	GetBySlug(organizerSlug, eventSlug string) (*models.Event, error)
	Exists(organizerSlug, eventSlug string) (bool, error)
	Create(event *models.Event) error
}

// OrderRepository defines the interface for order and payment record operations
type OrderRepository interface {
	GetByCode(organizerSlug, eventSlug, code string) (*models.Order, error)
	GetByCodeAndSecret(organizerSlug, eventSlug, code, secret string) (*models.Order, error)
	Create(order *models.Order) error
	CreatePayment(payment *models.Payment) error
	GetPayment(id uint) (*models.Payment, error)
	GetPaymentsByOrder(orderID uint) ([]models.Payment, error)
}

// GatewaySettingRepository defines the interface for per-scope Recurrente configuration.
// Resolve prefers an event-level row over the organizer-level one.
type GatewaySettingRepository interface {
	Resolve(organizerSlug, eventSlug string) (*models.GatewaySetting, error)
	Save(setting *models.GatewaySetting) error
}

// RefundRepository defines the interface for refund record operations
type RefundRepository interface {
	Create(refund *models.Refund) error
	Update(refund *models.Refund) error
	GetByPaymentID(paymentID uint) ([]models.Refund, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Event          EventRepository
	Order          OrderRepository
	GatewaySetting GatewaySettingRepository
	Refund         RefundRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Event:          NewEventRepository(db),
		Order:          NewOrderRepository(db),
		GatewaySetting: NewGatewaySettingRepository(db),
		Refund:         NewRefundRepository(db),
	}
}
