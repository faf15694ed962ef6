package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

const (
	MinRating = 1
	MaxRating = 5

	maxCommentLength = 2000
)

// CleanerReview is an immutable value object holding the employer's rating of the cleaner.
type CleanerReview struct {
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// ValidateRating checks that rating lies in [MinRating, MaxRating].
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return domain.NewValidationError(fmt.Sprintf("rating must be between %d and %d, got %d", MinRating, MaxRating, rating))
	}
	return nil
}

// NewCleanerReview validates and builds a review. Comments are optional.
func NewCleanerReview(rating int, comment string) (*CleanerReview, error) {
	if err := ValidateRating(rating); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if len([]rune(comment)) > maxCommentLength {
		return nil, domain.NewValidationError(fmt.Sprintf("comment must be at most %d characters", maxCommentLength))
	}
	return &CleanerReview{
		Rating:     rating,
		Comment:    comment,
		ReviewedAt: time.Now().UTC(),
	}, nil
}
