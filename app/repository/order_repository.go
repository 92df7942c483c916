package repository

import (
	"github.com/boletera/boletera/app/models"
	"gorm.io/gorm"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// scoped narrows an order query to one organizer/event.
func (r *orderRepository) scoped(organizerSlug, eventSlug string) *gorm.DB {
	return r.db.Model(&models.Order{}).
		Joins("JOIN events ON events.id = orders.event_id").
		Joins("JOIN organizers ON organizers.id = events.organizer_id").
		Where("organizers.slug = ? AND events.slug = ?", organizerSlug, eventSlug)
}

func (r *orderRepository) GetByCode(organizerSlug, eventSlug, code string) (*models.Order, error) {
	var order models.Order
	err := r.scoped(organizerSlug, eventSlug).
		Preload("Event").
		Where("orders.code = ?", code).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByCodeAndSecret is the buyer-facing lookup: the order secret comes from
// the order confirmation link, so guessing a code alone reveals nothing.
func (r *orderRepository) GetByCodeAndSecret(organizerSlug, eventSlug, code, secret string) (*models.Order, error) {
	var order models.Order
	err := r.scoped(organizerSlug, eventSlug).
		Preload("Event").
		Preload("Payments").
		Where("orders.code = ? AND orders.secret = ?", code, secret).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *orderRepository) CreatePayment(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

func (r *orderRepository) GetPayment(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Preload("Order").First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *orderRepository) GetPaymentsByOrder(orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}
