package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	bookingDomain "github.com/cleanmarket/service-booking/internal/domain/booking"
	"github.com/cleanmarket/service-booking/internal/domain/paymentmethod"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
	"github.com/cleanmarket/service-booking/internal/pkg/kafka"
)

// memStore is an in-memory store with the same atomicity as the GORM store:
// each mutation runs under one lock on a private copy of the booking.
type memStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]bookingDomain.Snapshot
	vault    map[uuid.UUID]*paymentmethod.PaymentMethod
	consumed map[string]bool

	// failNext, when set, fails the next recorder write after its delivery is recorded.
	failNext error
}

func newMemStore() *memStore {
	return &memStore{
		bookings: make(map[uuid.UUID]bookingDomain.Snapshot),
		vault:    make(map[uuid.UUID]*paymentmethod.PaymentMethod),
		consumed: make(map[string]bool),
	}
}

func snapshotOf(bk *bookingDomain.Booking) bookingDomain.Snapshot {
	s := bookingDomain.Snapshot{
		ID:               bk.ID(),
		JobID:            bk.JobID(),
		EmployerID:       bk.EmployerID(),
		CleanerID:        bk.CleanerID(),
		Status:           bk.Status(),
		CleanerConfirmed: bk.CleanerConfirmed(),
		PaymentMethod:    bk.PaymentMethod(),
		PaidAt:           bk.PaidAt(),
		CompletedAt:      bk.CompletedAt(),
		RejectedAt:       bk.RejectedAt(),
		RejectReason:     bk.RejectReason(),
		Version:          bk.Version(),
		CreatedAt:        bk.CreatedAt(),
		UpdatedAt:        bk.UpdatedAt(),
	}
	if ref := bk.PaymentReference(); ref != nil {
		r := *ref
		s.PaymentReference = &r
	}
	if rv := bk.CleanerReview(); rv != nil {
		c := *rv
		s.CleanerReview = &c
	}
	return s
}

func (m *memStore) put(s bookingDomain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.bookings[s.ID] = s
}

func (m *memStore) get(id uuid.UUID) *bookingDomain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.bookings[id]
	if !ok {
		return nil
	}
	return bookingDomain.ReconstructBooking(s)
}

func (m *memStore) putMethod(pm *paymentmethod.PaymentMethod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vault[pm.ID()] = pm
}

func (m *memStore) FetchBookings(_ context.Context, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []bookingDomain.Snapshot
	for _, s := range m.bookings {
		owner := s.EmployerID
		if filter.Side == bookingDomain.ParticipantCleaner {
			owner = s.CleanerID
		}
		if owner != filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, s.Status) {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*bookingDomain.Booking, 0, end-start)
	for _, s := range matched[start:end] {
		out = append(out, bookingDomain.ReconstructBooking(s))
	}
	return out, total, nil
}

func containsStatus(list []bookingDomain.BookingStatus, s bookingDomain.BookingStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memStore) FetchBooking(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	if bk := m.get(id); bk != nil {
		return bk, nil
	}
	return nil, domain.NewNotFoundError("booking", id.String())
}

func (m *memStore) FetchSavedPaymentMethods(_ context.Context, ownerID uuid.UUID) ([]*paymentmethod.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*paymentmethod.PaymentMethod
	for _, pm := range m.vault {
		if pm.IsOwnedBy(ownerID) {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (m *memStore) FetchSavedPaymentMethod(_ context.Context, id uuid.UUID) (*paymentmethod.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.vault[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment method", id.String())
	}
	return pm, nil
}

func (m *memStore) DeleteSavedMethod(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vault[id]; !ok {
		return domain.NewNotFoundError("payment method", id.String())
	}
	delete(m.vault, id)
	return nil
}

func (m *memStore) mutate(id uuid.UUID, fn func(bk *bookingDomain.Booking) error) (*bookingDomain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	bk := bookingDomain.ReconstructBooking(s)
	if err := fn(bk); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	m.bookings[id] = snapshotOf(bk)
	return bk, nil
}

func (m *memStore) MutatePayment(_ context.Context, p bookingDomain.PaymentMutation) (*bookingDomain.Booking, error) {
	var saved *paymentmethod.PaymentMethod
	bk, err := m.mutate(p.BookingID, func(bk *bookingDomain.Booking) error {
		if bk.PaidAt() != nil {
			return domain.NewConflictError("booking has already been paid")
		}
		if err := bk.RecordPayment(p.Reference, p.Method); err != nil {
			return err
		}
		if p.SaveDetails {
			pm, err := paymentmethod.NewPaymentMethod(bk.EmployerID(), p.Method, p.Reference)
			if err != nil {
				return err
			}
			saved = pm
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if saved != nil {
		m.putMethod(saved)
	}
	return bk, nil
}

func (m *memStore) MutateComplete(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return m.mutate(id, func(bk *bookingDomain.Booking) error { return bk.Complete() })
}

func (m *memStore) MutateReview(_ context.Context, id uuid.UUID, rating int, comment string) (*bookingDomain.Booking, error) {
	return m.mutate(id, func(bk *bookingDomain.Booking) error { return bk.AttachReview(rating, comment) })
}

func (m *memStore) Create(_ context.Context, bk *bookingDomain.Booking, d bookingDomain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withDelivery(d, func() error {
		m.bookings[bk.ID()] = snapshotOf(bk)
		return nil
	})
}

func (m *memStore) MutateCleanerConfirmation(_ context.Context, id uuid.UUID, d bookingDomain.Delivery) (*bookingDomain.Booking, error) {
	return m.mutate(id, func(bk *bookingDomain.Booking) error {
		return m.withDelivery(d, bk.ConfirmByCleaner)
	})
}

func (m *memStore) MutateRejection(_ context.Context, id uuid.UUID, reason string, d bookingDomain.Delivery) (*bookingDomain.Booking, error) {
	return m.mutate(id, func(bk *bookingDomain.Booking) error {
		return m.withDelivery(d, func() error { return bk.Reject(reason) })
	})
}

// withDelivery records d and runs apply as one unit: on failure the record is dropped.
// Callers hold m.mu.
func (m *memStore) withDelivery(d bookingDomain.Delivery, apply func() error) error {
	if d.EventID != "" {
		if m.consumed[d.EventID] {
			return bookingDomain.ErrEventAlreadyApplied
		}
		m.consumed[d.EventID] = true
	}
	err := m.failNext
	m.failNext = nil
	if err == nil {
		err = apply()
	}
	if err != nil && d.EventID != "" {
		delete(m.consumed, d.EventID)
	}
	return err
}

func (m *memStore) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	m.mu.Lock()
	all := make([]bookingDomain.Snapshot, 0, len(m.bookings))
	for _, s := range m.bookings {
		all = append(all, s)
	}
	m.mu.Unlock()

	out := make([]*bookingDomain.Booking, 0, len(all))
	for _, s := range all {
		out = append(out, bookingDomain.ReconstructBooking(s))
	}
	return out, int64(len(all)), nil
}

func (m *memStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, s := range m.bookings {
		counts[string(s.Status)]++
	}
	return counts, nil
}

func (m *memStore) CleanerRating(_ context.Context, cleanerID uuid.UUID) (*bookingDomain.RatingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &bookingDomain.RatingSummary{CleanerID: cleanerID}
	var sum int
	for _, s := range m.bookings {
		if s.CleanerID == cleanerID && s.CleanerReview != nil {
			sum += s.CleanerReview.Rating
			summary.Count++
		}
	}
	if summary.Count > 0 {
		summary.Average = float64(sum) / float64(summary.Count)
	}
	return summary, nil
}

// mockStore is a testify mock of bookingDomain.Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchBookings(ctx context.Context, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	args := m.Called(ctx, filter)
	bookings, _ := args.Get(0).([]*bookingDomain.Booking)
	return bookings, args.Get(1).(int64), args.Error(2)
}

func (m *mockStore) FetchBooking(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, id)
	bk, _ := args.Get(0).(*bookingDomain.Booking)
	return bk, args.Error(1)
}

func (m *mockStore) FetchSavedPaymentMethods(ctx context.Context, ownerID uuid.UUID) ([]*paymentmethod.PaymentMethod, error) {
	args := m.Called(ctx, ownerID)
	methods, _ := args.Get(0).([]*paymentmethod.PaymentMethod)
	return methods, args.Error(1)
}

func (m *mockStore) FetchSavedPaymentMethod(ctx context.Context, id uuid.UUID) (*paymentmethod.PaymentMethod, error) {
	args := m.Called(ctx, id)
	pm, _ := args.Get(0).(*paymentmethod.PaymentMethod)
	return pm, args.Error(1)
}

func (m *mockStore) MutatePayment(ctx context.Context, p bookingDomain.PaymentMutation) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, p)
	bk, _ := args.Get(0).(*bookingDomain.Booking)
	return bk, args.Error(1)
}

func (m *mockStore) MutateComplete(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, id)
	bk, _ := args.Get(0).(*bookingDomain.Booking)
	return bk, args.Error(1)
}

func (m *mockStore) MutateReview(ctx context.Context, id uuid.UUID, rating int, comment string) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, id, rating, comment)
	bk, _ := args.Get(0).(*bookingDomain.Booking)
	return bk, args.Error(1)
}

func (m *mockStore) DeleteSavedMethod(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// recordingPublisher captures published CloudEvents.
type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	keys   []string
}

func (p *recordingPublisher) PublishEventWithKey(_ context.Context, _ string, key string, ce kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ce)
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
