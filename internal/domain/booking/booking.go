package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleanmarket/service-booking/internal/domain/paymentmethod"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

// Action is a user-triggerable lifecycle operation.
type Action string

const (
	ActionPay      Action = "pay"
	ActionComplete Action = "complete"
	ActionReview   Action = "review"
)

const maxRejectReasonLength = 500

// Booking is the aggregate root for the booking lifecycle.
type Booking struct {
	id         uuid.UUID
	jobID      uuid.UUID
	employerID uuid.UUID
	cleanerID  uuid.UUID
	status     BookingStatus

	cleanerConfirmed bool
	paymentReference *string
	paymentMethod    paymentmethod.Method
	paidAt           *time.Time
	completedAt      *time.Time
	cleanerReview    *CleanerReview
	rejectedAt       *time.Time
	rejectReason     string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates a booking awaiting the cleaner's confirmation.
func NewBooking(jobID, employerID, cleanerID uuid.UUID) (*Booking, error) {
	if jobID == uuid.Nil {
		return nil, domain.NewValidationError("job ID is required")
	}
	if employerID == uuid.Nil {
		return nil, domain.NewValidationError("employer ID is required")
	}
	if cleanerID == uuid.Nil {
		return nil, domain.NewValidationError("cleaner ID is required")
	}
	if employerID == cleanerID {
		return nil, domain.NewValidationError("employer and cleaner must differ")
	}

	now := time.Now().UTC()
	return &Booking{
		id:         uuid.New(),
		jobID:      jobID,
		employerID: employerID,
		cleanerID:  cleanerID,
		status:     StatusPendingCleanerConfirmation,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Snapshot is the full persisted state of a booking.
type Snapshot struct {
	ID               uuid.UUID
	JobID            uuid.UUID
	EmployerID       uuid.UUID
	CleanerID        uuid.UUID
	Status           BookingStatus
	CleanerConfirmed bool
	PaymentReference *string
	PaymentMethod    paymentmethod.Method
	PaidAt           *time.Time
	CompletedAt      *time.Time
	CleanerReview    *CleanerReview
	RejectedAt       *time.Time
	RejectReason     string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(s Snapshot) *Booking {
	return &Booking{
		id:               s.ID,
		jobID:            s.JobID,
		employerID:       s.EmployerID,
		cleanerID:        s.CleanerID,
		status:           s.Status,
		cleanerConfirmed: s.CleanerConfirmed,
		paymentReference: s.PaymentReference,
		paymentMethod:    s.PaymentMethod,
		paidAt:           s.PaidAt,
		completedAt:      s.CompletedAt,
		cleanerReview:    s.CleanerReview,
		rejectedAt:       s.RejectedAt,
		rejectReason:     s.RejectReason,
		version:          s.Version,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// JobID returns the job posting this booking fulfils.
func (b *Booking) JobID() uuid.UUID { return b.jobID }

// EmployerID returns the client who requested the cleaner.
func (b *Booking) EmployerID() uuid.UUID { return b.employerID }

// CleanerID returns the requested cleaner.
func (b *Booking) CleanerID() uuid.UUID { return b.cleanerID }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// CleanerConfirmed reports whether the cleaner accepted the booking.
func (b *Booking) CleanerConfirmed() bool { return b.cleanerConfirmed }

// PaymentReference returns the recorded payment reference, or nil if unpaid.
func (b *Booking) PaymentReference() *string { return b.paymentReference }

// PaymentMethod returns the channel the booking was paid with, or "" if unpaid.
func (b *Booking) PaymentMethod() paymentmethod.Method { return b.paymentMethod }

// PaidAt returns the payment time, or nil if unpaid.
func (b *Booking) PaidAt() *time.Time { return b.paidAt }

// CompletedAt returns the completion time, or nil.
func (b *Booking) CompletedAt() *time.Time { return b.completedAt }

// CleanerReview returns the employer's review of the cleaner, or nil.
func (b *Booking) CleanerReview() *CleanerReview { return b.cleanerReview }

// RejectedAt returns the rejection time, or nil.
func (b *Booking) RejectedAt() *time.Time { return b.rejectedAt }

// RejectReason returns the rejection note.
func (b *Booking) RejectReason() string { return b.rejectReason }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// IsParticipant reports whether userID is the booking's employer or cleaner.
func (b *Booking) IsParticipant(userID uuid.UUID) bool {
	return userID == b.employerID || userID == b.cleanerID
}

// --- Queries ---

// CanPay reports whether payment may be recorded now.
func (b *Booking) CanPay() bool {
	return b.status == StatusAwaitingPayment && b.cleanerConfirmed && b.paidAt == nil
}

// CanComplete reports whether the booking may be marked completed.
func (b *Booking) CanComplete() bool {
	return b.status == StatusConfirmedActive
}

// CanReview reports whether the cleaner may be reviewed.
func (b *Booking) CanReview() bool {
	return b.status == StatusCompleted && b.cleanerReview == nil
}

// LegalActions returns the actions currently permitted, in a stable order.
func (b *Booking) LegalActions() []Action {
	actions := make([]Action, 0, 1)
	if b.CanPay() {
		actions = append(actions, ActionPay)
	}
	if b.CanComplete() {
		actions = append(actions, ActionComplete)
	}
	if b.CanReview() {
		actions = append(actions, ActionReview)
	}
	return actions
}

// CheckInvariants verifies the relations between status and the payment/review fields.
func (b *Booking) CheckInvariants() error {
	if !b.status.IsValid() {
		return fmt.Errorf("%w: unknown booking status %q", ErrDataIntegrity, b.status)
	}
	awaiting := b.cleanerConfirmed && b.paidAt == nil
	switch {
	case b.status == StatusAwaitingPayment && !awaiting:
		return fmt.Errorf("%w: booking %s awaits payment without a confirmed, unpaid state", ErrDataIntegrity, b.id)
	case b.status == StatusPendingCleanerConfirmation && b.cleanerConfirmed:
		return fmt.Errorf("%w: booking %s is pending although the cleaner confirmed", ErrDataIntegrity, b.id)
	case (b.status == StatusConfirmedActive || b.status == StatusCompleted) && b.paidAt == nil:
		return fmt.Errorf("%w: booking %s is %s without a payment", ErrDataIntegrity, b.id, b.status)
	case (b.paidAt == nil) != (b.paymentReference == nil):
		return fmt.Errorf("%w: booking %s has a partial payment record", ErrDataIntegrity, b.id)
	case b.cleanerReview != nil && b.status != StatusCompleted:
		return fmt.Errorf("%w: booking %s has a review while %s", ErrDataIntegrity, b.id, b.status)
	}
	return nil
}

// --- Behavior ---

// ConfirmByCleaner records the cleaner's acceptance.
func (b *Booking) ConfirmByCleaner() error {
	if b.status != StatusPendingCleanerConfirmation || !b.status.CanTransitionTo(StatusAwaitingPayment) {
		return domain.NewInvalidTransitionError(string(b.status), "confirm")
	}
	b.cleanerConfirmed = true
	b.status = StatusAwaitingPayment
	b.updatedAt = time.Now().UTC()
	return nil
}

// Reject terminates a booking that has not been paid yet.
func (b *Booking) Reject(reason string) error {
	if !b.status.CanBeRejected() {
		return domain.NewInvalidTransitionError(string(b.status), "reject")
	}
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > maxRejectReasonLength {
		return domain.NewValidationError(fmt.Sprintf("reject reason must be at most %d characters", maxRejectReasonLength))
	}
	now := time.Now().UTC()
	b.status = StatusRejected
	b.rejectReason = reason
	b.rejectedAt = &now
	b.updatedAt = now
	return nil
}

// RecordPayment moves an awaiting-payment booking to confirmed_active.
// Reference and paidAt are set together and never overwritten.
func (b *Booking) RecordPayment(reference string, method paymentmethod.Method) error {
	if err := paymentmethod.ValidateReference(reference); err != nil {
		return err
	}
	if !method.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid payment method: %q", method))
	}
	if !b.CanPay() || !b.status.CanTransitionTo(StatusConfirmedActive) {
		return domain.NewInvalidTransitionError(string(b.status), "pay")
	}

	now := time.Now().UTC()
	ref := reference
	b.paymentReference = &ref
	b.paymentMethod = method
	b.paidAt = &now
	b.status = StatusConfirmedActive
	b.updatedAt = now
	return nil
}

// Complete transitions the booking from confirmed_active to completed.
func (b *Booking) Complete() error {
	if !b.CanComplete() || !b.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidTransitionError(string(b.status), "complete")
	}
	now := time.Now().UTC()
	b.status = StatusCompleted
	b.completedAt = &now
	b.updatedAt = now
	return nil
}

// AttachReview records the employer's single review of the cleaner.
func (b *Booking) AttachReview(rating int, comment string) error {
	review, err := NewCleanerReview(rating, comment)
	if err != nil {
		return err
	}
	if b.status != StatusCompleted {
		return domain.NewInvalidTransitionError(string(b.status), "review")
	}
	if b.cleanerReview != nil {
		return domain.NewConflictError("booking has already been reviewed")
	}
	b.cleanerReview = review
	b.updatedAt = review.ReviewedAt
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
