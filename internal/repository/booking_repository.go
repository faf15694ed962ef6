package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/cleanmarket/service-booking/internal/domain/booking"
	"github.com/cleanmarket/service-booking/internal/domain/paymentmethod"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	JobID            uuid.UUID  `gorm:"type:uuid;index;not null"`
	EmployerID       uuid.UUID  `gorm:"type:uuid;index;not null"`
	CleanerID        uuid.UUID  `gorm:"type:uuid;index;not null"`
	Status           string     `gorm:"not null;size:40;index"`
	CleanerConfirmed bool       `gorm:"not null;default:false"`
	PaymentReference *string    `gorm:"size:255"`
	PaymentMethod    string     `gorm:"size:20"`
	PaidAt           *time.Time `gorm:""`
	CompletedAt      *time.Time `gorm:""`
	ReviewRating     *int       `gorm:"check:review_rating >= 1 AND review_rating <= 5"`
	ReviewComment    string     `gorm:"size:2000"`
	ReviewedAt       *time.Time `gorm:""`
	RejectedAt       *time.Time `gorm:""`
	RejectReason     string     `gorm:"size:500"`
	Version          int64      `gorm:"not null;default:1"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// EventConsumedModel records inbound events that have already been applied.
type EventConsumedModel struct {
	ID          string    `gorm:"primaryKey;size:64"`
	EventType   string    `gorm:"size:100;not null"`
	ProcessedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (EventConsumedModel) TableName() string {
	return "event_consumed"
}

// GormBookingStore is the GORM-based booking store. It also owns the payment method vault
// because a payment and its optional vault entry are written in one transaction.
type GormBookingStore struct {
	db *gorm.DB
}

// NewGormBookingStore creates a new GormBookingStore.
func NewGormBookingStore(db *gorm.DB) *GormBookingStore {
	return &GormBookingStore{db: db}
}

var (
	_ bookingDomain.Store             = (*GormBookingStore)(nil)
	_ bookingDomain.LifecycleRecorder = (*GormBookingStore)(nil)
	_ bookingDomain.Reporting         = (*GormBookingStore)(nil)
)

// FetchBookings lists bookings for one side of the marketplace, newest first.
func (s *GormBookingStore) FetchBookings(ctx context.Context, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	column := "employer_id"
	if filter.Side == bookingDomain.ParticipantCleaner {
		column = "cleaner_id"
	}

	var statuses []string
	for _, st := range filter.Statuses {
		statuses = append(statuses, string(st))
	}
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where(column+" = ?", filter.OwnerID)
		if len(statuses) > 0 {
			db = db.Where("status IN ?", statuses)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&BookingModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, storeError("count bookings", err)
	}

	var models []BookingModel
	offset := (filter.Page - 1) * filter.Limit
	if err := s.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&models).Error; err != nil {
		return nil, 0, storeError("fetch bookings", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FetchBooking retrieves a booking by its unique identifier.
func (s *GormBookingStore) FetchBooking(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, storeError("fetch booking", err)
	}
	return toDomainBooking(&model)
}

// Create persists a new booking together with the delivery that requested it.
func (s *GormBookingStore) Create(ctx context.Context, bk *bookingDomain.Booking, d bookingDomain.Delivery) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := recordDelivery(tx, d); err != nil {
			return err
		}
		return tx.Create(toBookingModel(bk)).Error
	})
	if err != nil {
		return storeError("create booking", err)
	}
	return nil
}

// MutatePayment records a payment and, when requested, saves the reference to the employer's vault.
// Both writes commit together. A booking that is already paid when the row lock is acquired
// yields a Conflict, so two racing payments never both succeed.
func (s *GormBookingStore) MutatePayment(ctx context.Context, m bookingDomain.PaymentMutation) (*bookingDomain.Booking, error) {
	return s.mutate(ctx, m.BookingID, func(tx *gorm.DB, bk *bookingDomain.Booking) error {
		if bk.PaidAt() != nil {
			return domain.NewConflictError("booking has already been paid")
		}
		if err := bk.RecordPayment(m.Reference, m.Method); err != nil {
			return err
		}
		if !m.SaveDetails {
			return nil
		}
		pm, err := paymentmethod.NewPaymentMethod(bk.EmployerID(), m.Method, m.Reference)
		if err != nil {
			return err
		}
		return tx.Create(toPaymentMethodModel(pm)).Error
	})
}

// MutateComplete marks a paid booking as completed.
func (s *GormBookingStore) MutateComplete(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return s.mutate(ctx, id, func(_ *gorm.DB, bk *bookingDomain.Booking) error {
		return bk.Complete()
	})
}

// MutateReview attaches the employer's review of the cleaner.
func (s *GormBookingStore) MutateReview(ctx context.Context, id uuid.UUID, rating int, comment string) (*bookingDomain.Booking, error) {
	return s.mutate(ctx, id, func(_ *gorm.DB, bk *bookingDomain.Booking) error {
		return bk.AttachReview(rating, comment)
	})
}

// MutateCleanerConfirmation records the cleaner's acceptance.
func (s *GormBookingStore) MutateCleanerConfirmation(ctx context.Context, id uuid.UUID, d bookingDomain.Delivery) (*bookingDomain.Booking, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, bk *bookingDomain.Booking) error {
		if err := recordDelivery(tx, d); err != nil {
			return err
		}
		return bk.ConfirmByCleaner()
	})
}

// MutateRejection terminates an unpaid booking.
func (s *GormBookingStore) MutateRejection(ctx context.Context, id uuid.UUID, reason string, d bookingDomain.Delivery) (*bookingDomain.Booking, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, bk *bookingDomain.Booking) error {
		if err := recordDelivery(tx, d); err != nil {
			return err
		}
		return bk.Reject(reason)
	})
}

// recordDelivery inserts the event id into the consumed table inside tx. A concurrent
// delivery of the same id blocks on the primary key until tx finishes.
func recordDelivery(tx *gorm.DB, d bookingDomain.Delivery) error {
	if d.EventID == "" {
		return nil
	}
	rec := EventConsumedModel{ID: d.EventID, EventType: d.EventType, ProcessedAt: time.Now().UTC()}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("failed to record event %s: %w", d.EventID, result.Error)
	}
	if result.RowsAffected == 0 {
		return bookingDomain.ErrEventAlreadyApplied
	}
	return nil
}

// mutate loads the booking under a row lock, applies fn and writes the result back
// with an optimistic version check, all inside one transaction.
func (s *GormBookingStore) mutate(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, bk *bookingDomain.Booking) error) (*bookingDomain.Booking, error) {
	var out *bookingDomain.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model BookingModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("booking", id.String())
			}
			return err
		}

		bk, err := toDomainBooking(&model)
		if err != nil {
			return err
		}
		if err := fn(tx, bk); err != nil {
			return err
		}
		bk.IncrementVersion()
		if err := updateBooking(tx, bk); err != nil {
			return err
		}
		out = bk
		return nil
	})
	if err != nil {
		return nil, storeError("mutate booking", err)
	}
	return out, nil
}

func updateBooking(tx *gorm.DB, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// Optimistic locking: only update if the version matches (current version - 1 since IncrementVersion was called)
	expectedVersion := bk.Version() - 1
	result := tx.Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":            model.Status,
			"cleaner_confirmed": model.CleanerConfirmed,
			"payment_reference": model.PaymentReference,
			"payment_method":    model.PaymentMethod,
			"paid_at":           model.PaidAt,
			"completed_at":      model.CompletedAt,
			"review_rating":     model.ReviewRating,
			"review_comment":    model.ReviewComment,
			"reviewed_at":       model.ReviewedAt,
			"rejected_at":       model.RejectedAt,
			"reject_reason":     model.RejectReason,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// ListAll retrieves all bookings with pagination (admin).
func (s *GormBookingStore) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, storeError("count bookings", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, storeError("list bookings", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (s *GormBookingStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := s.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, storeError("count by status", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// CleanerRating averages the ratings a cleaner received on completed bookings.
func (s *GormBookingStore) CleanerRating(ctx context.Context, cleanerID uuid.UUID) (*bookingDomain.RatingSummary, error) {
	var row struct {
		Average float64
		Count   int64
	}
	if err := s.db.WithContext(ctx).Model(&BookingModel{}).
		Select("COALESCE(AVG(review_rating), 0) AS average, COUNT(review_rating) AS count").
		Where("cleaner_id = ? AND status = ? AND review_rating IS NOT NULL", cleanerID, string(bookingDomain.StatusCompleted)).
		Scan(&row).Error; err != nil {
		return nil, storeError("cleaner rating", err)
	}
	return &bookingDomain.RatingSummary{CleanerID: cleanerID, Average: row.Average, Count: row.Count}, nil
}

// storeError passes domain errors and integrity violations through and reports
// everything else, including context deadlines, as StoreUnavailable.
func storeError(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) || errors.Is(err, bookingDomain.ErrDataIntegrity) || errors.Is(err, bookingDomain.ErrEventAlreadyApplied) {
		return err
	}
	return domain.NewStoreUnavailableError("failed to "+op, err)
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	m := &BookingModel{
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
		RejectedAt:       bk.RejectedAt(),
		RejectReason:     bk.RejectReason(),
		Version:          bk.Version(),
		CreatedAt:        bk.CreatedAt(),
		UpdatedAt:        bk.UpdatedAt(),
	}
	if r := bk.CleanerReview(); r != nil {
		rating := r.Rating
		reviewedAt := r.ReviewedAt
		m.ReviewRating = &rating
		m.ReviewComment = r.Comment
		m.ReviewedAt = &reviewedAt
	}
	return m
}

// toDomainBooking rebuilds the aggregate and refuses rows that break the lifecycle rules.
func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", m.ID, err)
	}

	var review *bookingDomain.CleanerReview
	if m.ReviewRating != nil {
		review = &bookingDomain.CleanerReview{Rating: *m.ReviewRating, Comment: m.ReviewComment}
		if m.ReviewedAt != nil {
			review.ReviewedAt = *m.ReviewedAt
		}
	}

	bk := bookingDomain.ReconstructBooking(bookingDomain.Snapshot{
		ID:               m.ID,
		JobID:            m.JobID,
		EmployerID:       m.EmployerID,
		CleanerID:        m.CleanerID,
		Status:           status,
		CleanerConfirmed: m.CleanerConfirmed,
		PaymentReference: m.PaymentReference,
		PaymentMethod:    paymentmethod.Method(m.PaymentMethod),
		PaidAt:           m.PaidAt,
		CompletedAt:      m.CompletedAt,
		CleanerReview:    review,
		RejectedAt:       m.RejectedAt,
		RejectReason:     m.RejectReason,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	})
	if err := bk.CheckInvariants(); err != nil {
		return nil, err
	}
	return bk, nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
