// Package paymentmethod models the client's vault of reusable payment references.
package paymentmethod

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

// Method is the payment channel a reference belongs to.
type Method string

const (
	MethodCard   Method = "card"
	MethodPayPal Method = "paypal"
	MethodStripe Method = "stripe"
	MethodBank   Method = "bank"
)

// MaxReferenceLength is the longest payment reference, in characters, the store accepts.
const MaxReferenceLength = 255

// ValidateReference rejects a blank reference or one longer than MaxReferenceLength.
func ValidateReference(reference string) error {
	if strings.TrimSpace(reference) == "" {
		return domain.NewValidationError("payment reference is required")
	}
	if utf8.RuneCountInString(reference) > MaxReferenceLength {
		return domain.NewValidationError(fmt.Sprintf("payment reference must be at most %d characters", MaxReferenceLength))
	}
	return nil
}

// IsValid returns true if the method is recognized.
func (m Method) IsValid() bool {
	switch m {
	case MethodCard, MethodPayPal, MethodStripe, MethodBank:
		return true
	}
	return false
}

// ParseMethod converts a string to a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("invalid payment method: %q", s))
	}
	return m, nil
}

// PaymentMethod is a saved payment reference. It is never mutated after creation.
type PaymentMethod struct {
	id        uuid.UUID
	ownerID   uuid.UUID
	method    Method
	reference string
	createdAt time.Time
}

// NewPaymentMethod creates a vault entry for the owner.
func NewPaymentMethod(ownerID uuid.UUID, method Method, reference string) (*PaymentMethod, error) {
	if ownerID == uuid.Nil {
		return nil, domain.NewValidationError("owner ID is required")
	}
	if !method.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid payment method: %q", method))
	}
	if err := ValidateReference(reference); err != nil {
		return nil, err
	}

	return &PaymentMethod{
		id:        uuid.New(),
		ownerID:   ownerID,
		method:    method,
		reference: reference,
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a PaymentMethod from persistence data (no validation).
func Reconstruct(id, ownerID uuid.UUID, method Method, reference string, createdAt time.Time) *PaymentMethod {
	return &PaymentMethod{
		id:        id,
		ownerID:   ownerID,
		method:    method,
		reference: reference,
		createdAt: createdAt,
	}
}

func (p *PaymentMethod) ID() uuid.UUID        { return p.id }
func (p *PaymentMethod) OwnerID() uuid.UUID   { return p.ownerID }
func (p *PaymentMethod) Method() Method       { return p.method }
func (p *PaymentMethod) Reference() string    { return p.reference }
func (p *PaymentMethod) CreatedAt() time.Time { return p.createdAt }

// IsOwnedBy checks if the method belongs to the given owner.
func (p *PaymentMethod) IsOwnedBy(ownerID uuid.UUID) bool {
	return p.ownerID == ownerID
}

// MaskedReference hides all but the last four characters of the reference.
func (p *PaymentMethod) MaskedReference() string {
	r := []rune(p.reference)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

// Resolution is the outcome of choosing between a saved and a freshly typed reference.
type Resolution struct {
	Reference string
	Method    Method
	SavedID   *uuid.UUID
}

// ResolveReference picks the effective payment reference.
//
// When useSaved is set and savedID names one of saved, that entry's reference and method
// are used verbatim. Otherwise the typed reference (trimmed) and typedMethod are used.
// savedID is compared as a UUID, so any textual form of the ID matches; an ID that does not
// parse is treated like an unknown one. An empty result is a validation error.
func ResolveReference(useSaved bool, savedID, typed string, typedMethod Method, saved []*PaymentMethod) (Resolution, error) {
	if useSaved && savedID != "" {
		wantID, parseErr := uuid.Parse(strings.TrimSpace(savedID))
		for _, pm := range saved {
			if parseErr != nil || pm.ID() != wantID {
				continue
			}
			if strings.TrimSpace(pm.Reference()) == "" {
				break
			}
			id := pm.ID()
			return Resolution{Reference: pm.Reference(), Method: pm.Method(), SavedID: &id}, nil
		}
	}

	ref := strings.TrimSpace(typed)
	if err := ValidateReference(ref); err != nil {
		return Resolution{}, err
	}
	if !typedMethod.IsValid() {
		return Resolution{}, domain.NewValidationError(fmt.Sprintf("invalid payment method: %q", typedMethod))
	}
	return Resolution{Reference: ref, Method: typedMethod}, nil
}
