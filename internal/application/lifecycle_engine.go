package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmarket/service-booking/internal/domain/booking"
	"github.com/cleanmarket/service-booking/internal/domain/paymentmethod"
	"github.com/cleanmarket/service-booking/internal/pkg/auth"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
	"github.com/cleanmarket/service-booking/internal/pkg/events"
)

// Viewer is the authenticated caller of an engine operation.
type Viewer struct {
	UserID uuid.UUID
	Role   auth.Role
}

// ListBookingsQuery selects a page of the viewer's bookings.
type ListBookingsQuery struct {
	Tab   string
	Page  int
	Limit int
}

// PaymentRequest is the request DTO for paying a booking.
type PaymentRequest struct {
	Reference     string `json:"reference"`
	Method        string `json:"method"`
	SaveDetails   bool   `json:"save_details"`
	UseSaved      bool   `json:"use_saved"`
	SavedMethodID string `json:"saved_method_id"`
}

// ReviewRequest is the request DTO for reviewing the cleaner of a completed booking.
type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// BookingDTO is the response representation of a booking. LegalActions and CanReview are the
// only fields a client should use to decide which actions to offer.
type BookingDTO struct {
	ID               uuid.UUID                    `json:"id"`
	JobID            uuid.UUID                    `json:"job_id"`
	EmployerID       uuid.UUID                    `json:"employer_id"`
	CleanerID        uuid.UUID                    `json:"cleaner_id"`
	Status           string                       `json:"status"`
	CleanerConfirmed bool                         `json:"cleaner_confirmed"`
	PaymentReference *string                      `json:"payment_reference,omitempty"`
	PaymentMethod    string                       `json:"payment_method,omitempty"`
	PaidAt           *time.Time                   `json:"paid_at,omitempty"`
	CompletedAt      *time.Time                   `json:"completed_at,omitempty"`
	CleanerReview    *bookingDomain.CleanerReview `json:"cleaner_review,omitempty"`
	RejectedAt       *time.Time                   `json:"rejected_at,omitempty"`
	RejectReason     string                       `json:"reject_reason,omitempty"`
	LegalActions     []bookingDomain.Action       `json:"legal_actions"`
	CanReview        bool                         `json:"can_review"`
	Version          int64                        `json:"version"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

// LegalActions returns exactly the actions permitted on bk in its current state.
func LegalActions(bk *bookingDomain.Booking) []bookingDomain.Action {
	return bk.LegalActions()
}

// CanReview reports whether bk is completed and not yet reviewed.
func CanReview(bk *bookingDomain.Booking) bool {
	return bk.CanReview()
}

// LifecycleEngine enforces the booking state machine on behalf of employers and cleaners.
// It holds no booking state of its own: every mutation is delegated to the store and the
// result is re-read from the store before it is returned.
type LifecycleEngine struct {
	store    bookingDomain.Store
	inflight *inflightSet
	events   emitter
	logger   *zap.Logger
}

// NewLifecycleEngine creates a new LifecycleEngine.
func NewLifecycleEngine(store bookingDomain.Store, producer EventPublisher, logger *zap.Logger) *LifecycleEngine {
	return &LifecycleEngine{
		store:    store,
		inflight: newInflightSet(),
		events:   emitter{producer: producer, logger: logger},
		logger:   logger,
	}
}

// ListBookings returns the viewer's bookings for the requested tab, newest first.
func (e *LifecycleEngine) ListBookings(ctx context.Context, viewer Viewer, q ListBookingsQuery) (*domain.PaginatedResult[BookingDTO], error) {
	var side bookingDomain.Participant
	switch viewer.Role {
	case auth.RoleEmployer:
		side = bookingDomain.ParticipantEmployer
	case auth.RoleCleaner:
		side = bookingDomain.ParticipantCleaner
	default:
		return nil, domain.NewForbiddenError("only employers and cleaners have bookings")
	}

	tab, ok := bookingDomain.ParseTab(q.Tab)
	if !ok {
		return nil, domain.NewValidationError("unknown tab: " + q.Tab)
	}

	page, limit := domain.NormalizePage(q.Page, q.Limit)
	bookings, total, err := e.store.FetchBookings(ctx, bookingDomain.ListFilter{
		OwnerID:  viewer.UserID,
		Side:     side,
		Statuses: tab.Statuses(),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetBooking retrieves a single booking visible to the viewer.
func (e *LifecycleEngine) GetBooking(ctx context.Context, viewer Viewer, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := e.store.FetchBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if viewer.Role != auth.RoleAdmin && !bk.IsParticipant(viewer.UserID) {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ProcessPayment records the employer's payment and moves the booking to confirmed_active.
//
// The effective reference is resolved before the booking is touched: a selected saved method
// wins, otherwise the typed reference is used. A blank result fails with a validation error
// and nothing is mutated.
func (e *LifecycleEngine) ProcessPayment(ctx context.Context, viewer Viewer, bookingID uuid.UUID, req PaymentRequest) (*BookingDTO, error) {
	release, err := e.inflight.acquire(bookingID, bookingDomain.ActionPay)
	if err != nil {
		return nil, err
	}
	defer release()

	var saved []*paymentmethod.PaymentMethod
	if req.UseSaved && req.SavedMethodID != "" {
		saved, err = e.store.FetchSavedPaymentMethods(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
	}
	typedMethod := paymentmethod.Method(strings.ToLower(strings.TrimSpace(req.Method)))
	res, err := paymentmethod.ResolveReference(req.UseSaved, req.SavedMethodID, req.Reference, typedMethod, saved)
	if err != nil {
		return nil, err
	}

	bk, err := e.fetchOwned(ctx, viewer, bookingID)
	if err != nil {
		return nil, err
	}
	if !bk.CanPay() {
		return nil, domain.NewInvalidTransitionError(string(bk.Status()), string(bookingDomain.ActionPay))
	}

	mutated, err := e.store.MutatePayment(ctx, bookingDomain.PaymentMutation{
		BookingID:   bookingID,
		Reference:   res.Reference,
		Method:      res.Method,
		SaveDetails: req.SaveDetails && res.SavedID == nil,
	})
	if err != nil {
		return nil, err
	}
	bk = e.refetch(ctx, mutated)

	e.logger.Info("booking paid",
		zap.String("booking_id", bk.ID().String()),
		zap.String("method", string(res.Method)),
		zap.Bool("saved_method", res.SavedID != nil),
		zap.Bool("save_details", req.SaveDetails && res.SavedID == nil),
	)

	var paidAt time.Time
	if bk.PaidAt() != nil {
		paidAt = *bk.PaidAt()
	}
	e.events.publish(ctx, events.BookingPaid, bk.ID().String(), events.BookingPaidEvent{
		BookingID:     bk.ID(),
		JobID:         bk.JobID(),
		EmployerID:    bk.EmployerID(),
		CleanerID:     bk.CleanerID(),
		PaymentMethod: string(bk.PaymentMethod()),
		PaidAt:        paidAt,
		OccurredAt:    time.Now().UTC(),
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// CompleteBooking marks a confirmed_active booking as completed.
func (e *LifecycleEngine) CompleteBooking(ctx context.Context, viewer Viewer, bookingID uuid.UUID) (*BookingDTO, error) {
	release, err := e.inflight.acquire(bookingID, bookingDomain.ActionComplete)
	if err != nil {
		return nil, err
	}
	defer release()

	bk, err := e.fetchOwned(ctx, viewer, bookingID)
	if err != nil {
		return nil, err
	}
	if !bk.CanComplete() {
		return nil, domain.NewInvalidTransitionError(string(bk.Status()), string(bookingDomain.ActionComplete))
	}

	mutated, err := e.store.MutateComplete(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	bk = e.refetch(ctx, mutated)

	e.logger.Info("booking completed", zap.String("booking_id", bk.ID().String()))

	// The job service closes the job for further applicants on this event.
	e.events.publish(ctx, events.BookingCompleted, bk.ID().String(), events.BookingStatusEvent{
		BookingID:  bk.ID(),
		JobID:      bk.JobID(),
		EmployerID: bk.EmployerID(),
		CleanerID:  bk.CleanerID(),
		Status:     string(bk.Status()),
		OccurredAt: time.Now().UTC(),
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// ReviewCleaner attaches the employer's single review to a completed booking.
// A second review is a conflict even when the caller did not check first.
func (e *LifecycleEngine) ReviewCleaner(ctx context.Context, viewer Viewer, bookingID uuid.UUID, req ReviewRequest) (*BookingDTO, error) {
	if err := bookingDomain.ValidateRating(req.Rating); err != nil {
		return nil, err
	}

	release, err := e.inflight.acquire(bookingID, bookingDomain.ActionReview)
	if err != nil {
		return nil, err
	}
	defer release()

	bk, err := e.fetchOwned(ctx, viewer, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.Status() != bookingDomain.StatusCompleted {
		return nil, domain.NewInvalidTransitionError(string(bk.Status()), string(bookingDomain.ActionReview))
	}
	if bk.CleanerReview() != nil {
		return nil, domain.NewConflictError("booking has already been reviewed")
	}

	mutated, err := e.store.MutateReview(ctx, bookingID, req.Rating, req.Comment)
	if err != nil {
		return nil, err
	}
	bk = e.refetch(ctx, mutated)

	e.logger.Info("cleaner reviewed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("cleaner_id", bk.CleanerID().String()),
		zap.Int("rating", req.Rating),
	)

	evt := events.CleanerReviewedEvent{
		BookingID:  bk.ID(),
		CleanerID:  bk.CleanerID(),
		EmployerID: bk.EmployerID(),
		Rating:     req.Rating,
		OccurredAt: time.Now().UTC(),
	}
	if r := bk.CleanerReview(); r != nil {
		evt.Rating = r.Rating
		evt.Comment = r.Comment
	}
	e.events.publish(ctx, events.BookingCleanerReviewed, bk.ID().String(), evt)

	result := toBookingDTO(bk)
	return &result, nil
}

// BookingActions returns the legal actions of a booking visible to the viewer.
func (e *LifecycleEngine) BookingActions(ctx context.Context, viewer Viewer, bookingID uuid.UUID) ([]bookingDomain.Action, error) {
	dto, err := e.GetBooking(ctx, viewer, bookingID)
	if err != nil {
		return nil, err
	}
	return dto.LegalActions, nil
}

// fetchOwned loads a booking the viewer may act on as its employer.
func (e *LifecycleEngine) fetchOwned(ctx context.Context, viewer Viewer, bookingID uuid.UUID) (*bookingDomain.Booking, error) {
	bk, err := e.store.FetchBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.EmployerID() != viewer.UserID {
		return nil, domain.NewForbiddenError("only the booking's employer can perform this action")
	}
	return bk, nil
}

// refetch re-reads a mutated booking from the store. The mutation is already committed, so
// a failed read falls back to the copy the store returned rather than reporting a failure.
func (e *LifecycleEngine) refetch(ctx context.Context, mutated *bookingDomain.Booking) *bookingDomain.Booking {
	fresh, err := e.store.FetchBooking(ctx, mutated.ID())
	if err != nil {
		e.logger.Warn("failed to re-fetch booking after mutation",
			zap.String("booking_id", mutated.ID().String()),
			zap.Error(err),
		)
		return mutated
	}
	return fresh
}

// --- Helpers ---

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:               bk.ID(),
		JobID:            bk.JobID(),
		EmployerID:       bk.EmployerID(),
		CleanerID:        bk.CleanerID(),
		Status:           string(bk.Status()),
		CleanerConfirmed: bk.CleanerConfirmed(),
		PaymentReference: bk.PaymentReference(),
		PaymentMethod:    string(bk.PaymentMethod()),
		PaidAt:           bk.PaidAt(),
		CompletedAt:      bk.CompletedAt(),
		CleanerReview:    bk.CleanerReview(),
		RejectedAt:       bk.RejectedAt(),
		RejectReason:     bk.RejectReason(),
		LegalActions:     LegalActions(bk),
		CanReview:        CanReview(bk),
		Version:          bk.Version(),
		CreatedAt:        bk.CreatedAt(),
		UpdatedAt:        bk.UpdatedAt(),
	}
}
