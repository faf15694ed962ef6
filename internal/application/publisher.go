package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/cleanmarket/service-booking/internal/pkg/events"
	"github.com/cleanmarket/service-booking/internal/pkg/kafka"
)

const eventSource = "service-booking"

// EventPublisher sends CloudEvents to a topic. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEventWithKey(ctx context.Context, topic, key string, ce kafka.CloudEvent) error
}

// emitter publishes booking events keyed by booking id so that a booking's events stay ordered
// within a partition. Publish failures are logged and never fail the operation that caused them.
type emitter struct {
	producer EventPublisher
	logger   *zap.Logger
}

func (e emitter) publish(ctx context.Context, eventType, key string, data interface{}) {
	if e.producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		e.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := e.producer.PublishEventWithKey(ctx, events.TopicBookingEvents, key, cloudEvent); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("topic", events.TopicBookingEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
