package booking

import (
	"errors"
	"fmt"
)

// ErrDataIntegrity marks persisted booking data that violates the lifecycle rules.
var ErrDataIntegrity = errors.New("booking data integrity violation")

// ErrEventAlreadyApplied reports that an inbound event was applied by an earlier delivery.
var ErrEventAlreadyApplied = errors.New("event already applied")

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPendingCleanerConfirmation BookingStatus = "pending_cleaner_confirmation"
	StatusAwaitingPayment            BookingStatus = "awaiting_payment"
	StatusConfirmedActive            BookingStatus = "confirmed_active"
	StatusCompleted                  BookingStatus = "completed"
	StatusRejected                   BookingStatus = "rejected"
)

// validTransitions defines the state machine for booking status transitions.
// Reviews keep a booking in completed and are not status transitions.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPendingCleanerConfirmation: {StatusAwaitingPayment, StatusRejected},
	StatusAwaitingPayment:            {StatusConfirmedActive, StatusRejected},
	StatusConfirmedActive:            {StatusCompleted},
	StatusCompleted:                  {},
	StatusRejected:                   {},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further status transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanBeRejected returns true if the booking can still be rejected from this status.
func (s BookingStatus) CanBeRejected() bool {
	return s.CanTransitionTo(StatusRejected)
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus.
// Unknown values are data integrity errors, never defaulted.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrDataIntegrity, s)
	}
	return status, nil
}

// Tab is a dashboard grouping of booking statuses.
type Tab string

const (
	TabAll             Tab = "all"
	TabPending         Tab = "pending"
	TabAwaitingPayment Tab = "awaiting_payment"
	TabActive          Tab = "active"
	TabCompleted       Tab = "completed"
	TabRejected        Tab = "rejected"
)

var tabStatuses = map[Tab][]BookingStatus{
	TabAll:             nil,
	TabPending:         {StatusPendingCleanerConfirmation},
	TabAwaitingPayment: {StatusAwaitingPayment},
	TabActive:          {StatusConfirmedActive},
	TabCompleted:       {StatusCompleted},
	TabRejected:        {StatusRejected},
}

// ParseTab returns the tab for s; an empty string means TabAll.
func ParseTab(s string) (Tab, bool) {
	if s == "" {
		return TabAll, true
	}
	_, ok := tabStatuses[Tab(s)]
	return Tab(s), ok
}

// Statuses returns the statuses shown under the tab; nil means no filter.
func (t Tab) Statuses() []BookingStatus {
	return tabStatuses[t]
}
