package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmarket/service-booking/internal/domain/booking"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
	"github.com/cleanmarket/service-booking/internal/pkg/events"
)

// IntakeService applies the transitions that other services drive: booking creation when an
// employer requests a cleaner, and the cleaner's acceptance or refusal.
type IntakeService struct {
	store    bookingDomain.Store
	recorder bookingDomain.LifecycleRecorder
	events   emitter
	logger   *zap.Logger
}

// NewIntakeService creates a new IntakeService.
func NewIntakeService(
	store bookingDomain.Store,
	recorder bookingDomain.LifecycleRecorder,
	producer EventPublisher,
	logger *zap.Logger,
) *IntakeService {
	return &IntakeService{
		store:    store,
		recorder: recorder,
		events:   emitter{producer: producer, logger: logger},
		logger:   logger,
	}
}

// RequestCleaner creates a booking awaiting the cleaner's confirmation.
// A delivery that was already applied returns bookingDomain.ErrEventAlreadyApplied.
func (s *IntakeService) RequestCleaner(ctx context.Context, d bookingDomain.Delivery, evt events.CleanerRequestedEvent) (*BookingDTO, error) {
	bk, err := bookingDomain.NewBooking(evt.JobID, evt.EmployerID, evt.CleanerID)
	if err != nil {
		return nil, err
	}
	if err := s.recorder.Create(ctx, bk, d); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("job_id", bk.JobID().String()),
		zap.String("cleaner_id", bk.CleanerID().String()),
	)

	s.events.publish(ctx, events.BookingCreated, bk.ID().String(), events.BookingCreatedEvent{
		BookingID:  bk.ID(),
		JobID:      bk.JobID(),
		EmployerID: bk.EmployerID(),
		CleanerID:  bk.CleanerID(),
		OccurredAt: time.Now().UTC(),
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// ConfirmByCleaner records the requested cleaner's acceptance.
func (s *IntakeService) ConfirmByCleaner(ctx context.Context, d bookingDomain.Delivery, bookingID, cleanerID uuid.UUID) (*BookingDTO, error) {
	if err := s.checkCleaner(ctx, bookingID, cleanerID); err != nil {
		return nil, err
	}

	bk, err := s.recorder.MutateCleanerConfirmation(ctx, bookingID, d)
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking confirmed by cleaner", zap.String("booking_id", bk.ID().String()))
	s.publishStatus(ctx, events.BookingCleanerConfirmed, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// Reject terminates an unpaid booking after the cleaner declined it.
func (s *IntakeService) Reject(ctx context.Context, d bookingDomain.Delivery, bookingID, cleanerID uuid.UUID, reason string) (*BookingDTO, error) {
	if err := s.checkCleaner(ctx, bookingID, cleanerID); err != nil {
		return nil, err
	}

	bk, err := s.recorder.MutateRejection(ctx, bookingID, reason, d)
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking rejected",
		zap.String("booking_id", bk.ID().String()),
		zap.String("reason", bk.RejectReason()),
	)
	s.publishStatus(ctx, events.BookingRejected, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

func (s *IntakeService) checkCleaner(ctx context.Context, bookingID, cleanerID uuid.UUID) error {
	bk, err := s.store.FetchBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if bk.CleanerID() != cleanerID {
		return domain.NewForbiddenError("booking was requested from a different cleaner")
	}
	return nil
}

func (s *IntakeService) publishStatus(ctx context.Context, eventType string, bk *bookingDomain.Booking) {
	s.events.publish(ctx, eventType, bk.ID().String(), events.BookingStatusEvent{
		BookingID:  bk.ID(),
		JobID:      bk.JobID(),
		EmployerID: bk.EmployerID(),
		CleanerID:  bk.CleanerID(),
		Status:     string(bk.Status()),
		Reason:     bk.RejectReason(),
		OccurredAt: time.Now().UTC(),
	})
}
