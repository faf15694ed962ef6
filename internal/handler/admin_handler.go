package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cleanmarket/service-booking/internal/application"
	"github.com/cleanmarket/service-booking/internal/pkg/auth"
	"github.com/cleanmarket/service-booking/internal/pkg/middleware"
	"github.com/cleanmarket/service-booking/internal/pkg/response"
)

// AdminBookingHandler handles admin HTTP requests for booking management and
// the public cleaner rating summary.
type AdminBookingHandler struct {
	service *application.ReportingService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service *application.ReportingService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
	}

	r.GET("/api/v1/cleaners/:id/rating", authMW, h.CleanerRating)
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	bookings, total, err := h.service.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// CleanerRating handles GET /api/v1/cleaners/:id/rating.
func (h *AdminBookingHandler) CleanerRating(c *gin.Context) {
	cleanerID, ok := parseID(c, "cleaner")
	if !ok {
		return
	}

	summary, err := h.service.CleanerRating(c.Request.Context(), cleanerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, summary)
}
