package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cleanmarket/service-booking/internal/domain/paymentmethod"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

// PaymentMethodDTO is the API response representation of a saved payment method.
// Only the last four characters of the reference leave the service.
type PaymentMethodDTO struct {
	ID        uuid.UUID `json:"id"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// ListSavedMethods returns the viewer's saved payment methods.
func (e *LifecycleEngine) ListSavedMethods(ctx context.Context, viewer Viewer) ([]PaymentMethodDTO, error) {
	methods, err := e.store.FetchSavedPaymentMethods(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	dtos := make([]PaymentMethodDTO, len(methods))
	for i, pm := range methods {
		dtos[i] = toPaymentMethodDTO(pm)
	}
	return dtos, nil
}

// DeleteSavedMethod removes one of the viewer's saved payment methods.
// Bookings already paid with it keep their copied reference.
func (e *LifecycleEngine) DeleteSavedMethod(ctx context.Context, viewer Viewer, methodID uuid.UUID) error {
	pm, err := e.store.FetchSavedPaymentMethod(ctx, methodID)
	if err != nil {
		return err
	}
	if !pm.IsOwnedBy(viewer.UserID) {
		return domain.NewForbiddenError("payment method does not belong to this user")
	}

	if err := e.store.DeleteSavedMethod(ctx, methodID); err != nil {
		return err
	}

	e.logger.Info("saved payment method deleted",
		zap.String("payment_method_id", methodID.String()),
		zap.String("owner_id", viewer.UserID.String()),
	)
	return nil
}

func toPaymentMethodDTO(pm *paymentmethod.PaymentMethod) PaymentMethodDTO {
	return PaymentMethodDTO{
		ID:        pm.ID(),
		Method:    string(pm.Method()),
		Reference: pm.MaskedReference(),
		CreatedAt: pm.CreatedAt(),
	}
}
