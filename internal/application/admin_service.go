package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	bookingDomain "github.com/cleanmarket/service-booking/internal/domain/booking"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ReportingService serves admin listings and cleaner rating summaries.
type ReportingService struct {
	repo bookingDomain.Reporting
}

// NewReportingService creates a new ReportingService.
func NewReportingService(repo bookingDomain.Reporting) *ReportingService {
	return &ReportingService{repo: repo}
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *ReportingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	page, limit = domain.NormalizePage(page, limit)
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos, total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *ReportingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// CleanerRating returns the average rating a cleaner received on reviewed bookings.
func (s *ReportingService) CleanerRating(ctx context.Context, cleanerID uuid.UUID) (*bookingDomain.RatingSummary, error) {
	return s.repo.CleanerRating(ctx, cleanerID)
}
