package application

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	bookingDomain "github.com/cleanmarket/service-booking/internal/domain/booking"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

type inflightKey struct {
	bookingID uuid.UUID
	action    bookingDomain.Action
}

// inflightSet marks (booking, action) pairs that are currently being processed so a duplicate
// submission of the same action on the same booking is refused instead of queued.
// Distinct bookings, and distinct actions on one booking, never contend.
type inflightSet struct {
	mu   sync.Mutex
	keys map[inflightKey]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{keys: make(map[inflightKey]struct{})}
}

// acquire marks the pair and returns the function that clears it.
func (s *inflightSet) acquire(bookingID uuid.UUID, action bookingDomain.Action) (func(), error) {
	key := inflightKey{bookingID: bookingID, action: action}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.keys[key]; busy {
		return nil, domain.NewConflictError(fmt.Sprintf("a %s request for booking %s is already in progress", action, bookingID))
	}
	s.keys[key] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.keys, key)
		s.mu.Unlock()
	}, nil
}
