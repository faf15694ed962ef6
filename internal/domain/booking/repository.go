package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/cleanmarket/service-booking/internal/domain/paymentmethod"
)

// Participant selects which side of a booking a list query matches on.
type Participant string

const (
	ParticipantEmployer Participant = "employer"
	ParticipantCleaner  Participant = "cleaner"
)

// ListFilter narrows FetchBookings.
type ListFilter struct {
	OwnerID  uuid.UUID
	Side     Participant
	Statuses []BookingStatus
	Page     int
	Limit    int
}

// PaymentMutation is the request to record a payment on a booking.
type PaymentMutation struct {
	BookingID   uuid.UUID
	Reference   string
	Method      paymentmethod.Method
	SaveDetails bool
}

// Store is the booking store of record consumed by the lifecycle engine.
//
// Every mutation is atomic: it is either fully applied or not applied at all.
// Transport and backend failures are reported with the StoreUnavailable kind.
type Store interface {
	// FetchBookings lists bookings for a participant, newest first.
	FetchBookings(ctx context.Context, filter ListFilter) ([]*Booking, int64, error)

	// FetchBooking loads a single booking.
	FetchBooking(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FetchSavedPaymentMethods lists the owner's vault entries.
	FetchSavedPaymentMethods(ctx context.Context, ownerID uuid.UUID) ([]*paymentmethod.PaymentMethod, error)

	// FetchSavedPaymentMethod loads a single vault entry.
	FetchSavedPaymentMethod(ctx context.Context, id uuid.UUID) (*paymentmethod.PaymentMethod, error)

	// MutatePayment records the payment and, when requested, saves the reference to the vault.
	MutatePayment(ctx context.Context, m PaymentMutation) (*Booking, error)

	// MutateComplete marks the booking completed.
	MutateComplete(ctx context.Context, id uuid.UUID) (*Booking, error)

	// MutateReview attaches the cleaner review.
	MutateReview(ctx context.Context, id uuid.UUID, rating int, comment string) (*Booking, error)

	// DeleteSavedMethod removes a vault entry. Bookings paid with it are unaffected.
	DeleteSavedMethod(ctx context.Context, id uuid.UUID) error
}

// Delivery identifies the inbound event behind a LifecycleRecorder call.
// The zero value applies the change without deduplication.
type Delivery struct {
	EventID   string
	EventType string
}

// LifecycleRecorder applies the transitions driven by other services.
//
// A Delivery with an EventID is recorded in the same transaction as the change it drives.
// If that id was recorded before, nothing is written and ErrEventAlreadyApplied is returned;
// if the change fails, the id is not recorded and a redelivery applies it.
type LifecycleRecorder interface {
	// Create persists a new booking.
	Create(ctx context.Context, b *Booking, d Delivery) error

	// MutateCleanerConfirmation records the cleaner's acceptance.
	MutateCleanerConfirmation(ctx context.Context, id uuid.UUID, d Delivery) (*Booking, error)

	// MutateRejection terminates a booking before payment.
	MutateRejection(ctx context.Context, id uuid.UUID, reason string, d Delivery) (*Booking, error)
}

// RatingSummary aggregates a cleaner's reviews.
type RatingSummary struct {
	CleanerID uuid.UUID `json:"cleaner_id"`
	Average   float64   `json:"average"`
	Count     int64     `json:"count"`
}

// Reporting serves admin and profile read models.
type Reporting interface {
	// ListAll retrieves all bookings with pagination.
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status.
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// CleanerRating aggregates reviews of completed bookings for a cleaner.
	CleanerRating(ctx context.Context, cleanerID uuid.UUID) (*RatingSummary, error)
}
