package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cleanmarket/service-booking/internal/application"
	bookingDomain "github.com/cleanmarket/service-booking/internal/domain/booking"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
	"github.com/cleanmarket/service-booking/internal/pkg/events"
	"github.com/cleanmarket/service-booking/internal/pkg/kafka"
)

// Intake is the part of the application layer driven by inbound events.
// *application.IntakeService satisfies it.
type Intake interface {
	RequestCleaner(ctx context.Context, d bookingDomain.Delivery, evt events.CleanerRequestedEvent) (*application.BookingDTO, error)
	ConfirmByCleaner(ctx context.Context, d bookingDomain.Delivery, bookingID, cleanerID uuid.UUID) (*application.BookingDTO, error)
	Reject(ctx context.Context, d bookingDomain.Delivery, bookingID, cleanerID uuid.UUID, reason string) (*application.BookingDTO, error)
}

// LifecycleEventConsumer listens to job and cleaner events and applies the booking
// transitions they imply.
type LifecycleEventConsumer struct {
	consumer *kafka.Consumer
	intake   Intake
	logger   *zap.Logger
}

// NewLifecycleEventConsumer creates a new LifecycleEventConsumer.
func NewLifecycleEventConsumer(
	brokers []string,
	groupID string,
	intake Intake,
	logger *zap.Logger,
) *LifecycleEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, []string{events.TopicJobEvents, events.TopicCleanerEvents}, logger)
	return &LifecycleEventConsumer{
		consumer: consumer,
		intake:   intake,
		logger:   logger,
	}
}

// Start begins consuming events. This blocks until the context is cancelled.
func (c *LifecycleEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.HandleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *LifecycleEventConsumer) Close() error {
	return c.consumer.Close()
}

// HandleMessage applies one inbound message. Malformed messages and events that were already
// applied are skipped without error. A store failure is returned so the message is retried;
// the event id is only recorded once its transition commits.
func (c *LifecycleEventConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event",
			zap.String("topic", msg.Topic),
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.JobCleanerRequested, events.CleanerBookingAccepted, events.CleanerBookingDeclined:
	default:
		c.logger.Debug("ignoring unhandled event type",
			zap.String("topic", msg.Topic),
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}

	switch cloudEvent.Type {
	case events.JobCleanerRequested:
		return c.handleCleanerRequested(ctx, cloudEvent)
	case events.CleanerBookingAccepted:
		return c.handleCleanerDecision(ctx, cloudEvent, true)
	default:
		return c.handleCleanerDecision(ctx, cloudEvent, false)
	}
}

func (c *LifecycleEventConsumer) handleCleanerRequested(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.CleanerRequestedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse CleanerRequestedEvent data", zap.Error(err))
		return nil // Don't retry malformed data
	}

	result, err := c.intake.RequestCleaner(ctx, delivery(cloudEvent), evt)
	if err != nil {
		return c.reject(cloudEvent, err)
	}

	c.logger.Info("booking created from cleaner request",
		zap.String("booking_id", result.ID.String()),
		zap.String("job_id", evt.JobID.String()),
	)
	return nil
}

func (c *LifecycleEventConsumer) handleCleanerDecision(ctx context.Context, cloudEvent kafka.CloudEvent, accepted bool) error {
	var evt events.CleanerDecisionEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse CleanerDecisionEvent data", zap.Error(err))
		return nil // Don't retry malformed data
	}

	var err error
	if accepted {
		_, err = c.intake.ConfirmByCleaner(ctx, delivery(cloudEvent), evt.BookingID, evt.CleanerID)
	} else {
		_, err = c.intake.Reject(ctx, delivery(cloudEvent), evt.BookingID, evt.CleanerID, evt.Reason)
	}
	if err != nil {
		return c.reject(cloudEvent, err)
	}

	c.logger.Info("cleaner decision applied",
		zap.String("booking_id", evt.BookingID.String()),
		zap.Bool("accepted", accepted),
	)
	return nil
}

func delivery(ce kafka.CloudEvent) bookingDomain.Delivery {
	return bookingDomain.Delivery{EventID: ce.ID, EventType: ce.Type}
}

// reject logs events the domain refuses. Only store failures are returned to the caller.
func (c *LifecycleEventConsumer) reject(cloudEvent kafka.CloudEvent, err error) error {
	if errors.Is(err, bookingDomain.ErrEventAlreadyApplied) {
		c.logger.Info("skipping already applied event",
			zap.String("event_id", cloudEvent.ID),
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
	if domain.IsKind(err, domain.KindStoreUnavailable) {
		return err
	}
	c.logger.Warn("event rejected by booking lifecycle",
		zap.String("event_id", cloudEvent.ID),
		zap.String("type", cloudEvent.Type),
		zap.Error(err),
	)
	return nil
}
