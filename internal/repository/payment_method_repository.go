package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cleanmarket/service-booking/internal/domain/paymentmethod"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

// PaymentMethodModel is the GORM model for the saved_payment_methods table.
type PaymentMethodModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Method    string    `gorm:"type:varchar(20);not null"`
	Reference string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (PaymentMethodModel) TableName() string { return "saved_payment_methods" }

// FetchSavedPaymentMethods lists an owner's vault, newest first.
func (s *GormBookingStore) FetchSavedPaymentMethods(ctx context.Context, ownerID uuid.UUID) ([]*paymentmethod.PaymentMethod, error) {
	var models []PaymentMethodModel
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, storeError("fetch saved payment methods", err)
	}
	methods := make([]*paymentmethod.PaymentMethod, len(models))
	for i := range models {
		methods[i] = toPaymentMethodDomain(&models[i])
	}
	return methods, nil
}

func (s *GormBookingStore) FetchSavedPaymentMethod(ctx context.Context, id uuid.UUID) (*paymentmethod.PaymentMethod, error) {
	var model PaymentMethodModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment method", id.String())
		}
		return nil, storeError("fetch saved payment method", err)
	}
	return toPaymentMethodDomain(&model), nil
}

// DeleteSavedMethod removes a vault entry. Bookings keep the reference they were paid with.
func (s *GormBookingStore) DeleteSavedMethod(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&PaymentMethodModel{})
	if result.Error != nil {
		return storeError("delete saved payment method", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("payment method", id.String())
	}
	return nil
}

// --- Conversions ---

func toPaymentMethodModel(p *paymentmethod.PaymentMethod) *PaymentMethodModel {
	return &PaymentMethodModel{
		ID:        p.ID(),
		OwnerID:   p.OwnerID(),
		Method:    string(p.Method()),
		Reference: p.Reference(),
		CreatedAt: p.CreatedAt(),
	}
}

func toPaymentMethodDomain(m *PaymentMethodModel) *paymentmethod.PaymentMethod {
	return paymentmethod.Reconstruct(
		m.ID, m.OwnerID,
		paymentmethod.Method(m.Method),
		m.Reference,
		m.CreatedAt,
	)
}
