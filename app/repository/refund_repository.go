package repository

import (
	"github.com/boletera/boletera/app/models"
	"gorm.io/gorm"
)

// refundRepository implements the RefundRepository interface
type refundRepository struct {
	db *gorm.DB
}

// NewRefundRepository creates a new refund repository instance
func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(refund *models.Refund) error {
	return r.db.Create(refund).Error
}

func (r *refundRepository) Update(refund *models.Refund) error {
	return r.db.Save(refund).Error
}

func (r *refundRepository) GetByPaymentID(paymentID uint) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.Where("payment_id = ?", paymentID).
		Order("created_at DESC").
		Find(&refunds).Error
	return refunds, err
}
