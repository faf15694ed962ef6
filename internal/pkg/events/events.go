// Package events holds the Kafka topics, CloudEvent types and payloads exchanged
// between the booking service and the job and cleaner services.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents = "booking.events"
	TopicJobEvents     = "job.events"
	TopicCleanerEvents = "cleaner.events"
)

// Outbound event types published on TopicBookingEvents.
const (
	BookingCreated          = "booking.created"
	BookingCleanerConfirmed = "booking.cleaner_confirmed"
	BookingRejected         = "booking.rejected"
	BookingPaid             = "booking.paid"
	BookingCompleted        = "booking.completed"
	BookingCleanerReviewed  = "booking.cleaner_reviewed"
)

// Inbound event types.
const (
	JobCleanerRequested    = "job.cleaner_requested"
	CleanerBookingAccepted = "cleaner.booking_accepted"
	CleanerBookingDeclined = "cleaner.booking_declined"
)

// CleanerRequestedEvent is emitted by the job service when an employer picks a cleaner for a job.
type CleanerRequestedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	EmployerID uuid.UUID `json:"employer_id"`
	CleanerID  uuid.UUID `json:"cleaner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CleanerDecisionEvent is emitted by the cleaner service when a cleaner accepts or declines.
type CleanerDecisionEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	CleanerID  uuid.UUID `json:"cleaner_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingCreatedEvent announces a booking awaiting the cleaner's confirmation.
type BookingCreatedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	JobID      uuid.UUID `json:"job_id"`
	EmployerID uuid.UUID `json:"employer_id"`
	CleanerID  uuid.UUID `json:"cleaner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingStatusEvent is the payload shared by confirmation, rejection and completion events.
type BookingStatusEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	JobID      uuid.UUID `json:"job_id"`
	EmployerID uuid.UUID `json:"employer_id"`
	CleanerID  uuid.UUID `json:"cleaner_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingPaidEvent announces a recorded payment. The raw reference is never published.
type BookingPaidEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	JobID         uuid.UUID `json:"job_id"`
	EmployerID    uuid.UUID `json:"employer_id"`
	CleanerID     uuid.UUID `json:"cleaner_id"`
	PaymentMethod string    `json:"payment_method"`
	PaidAt        time.Time `json:"paid_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CleanerReviewedEvent carries the employer's rating so the cleaner profile can update its score.
type CleanerReviewedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	CleanerID  uuid.UUID `json:"cleaner_id"`
	EmployerID uuid.UUID `json:"employer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
