package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanmarket/service-booking/internal/application"
	"github.com/cleanmarket/service-booking/internal/pkg/auth"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
	"github.com/cleanmarket/service-booking/internal/pkg/middleware"
	"github.com/cleanmarket/service-booking/internal/pkg/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	engine *application.LifecycleEngine
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(engine *application.LifecycleEngine) *BookingHandler {
	return &BookingHandler{engine: engine}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	employerOnly := middleware.RequireRole(auth.RoleEmployer)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.GET("", middleware.RequireRole(auth.RoleEmployer, auth.RoleCleaner), h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/actions", h.GetActions)
		bookings.POST("/:id/pay", employerOnly, h.ProcessPayment)
		bookings.POST("/:id/complete", employerOnly, h.CompleteBooking)
		bookings.POST("/:id/review", employerOnly, h.ReviewCleaner)
	}
}

// ListBookings handles GET /api/v1/bookings?tab=. Employers see the bookings they requested,
// cleaners the bookings requested from them.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	result, err := h.engine.ListBookings(c.Request.Context(), viewer, application.ListBookingsQuery{
		Tab:   c.Query("tab"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	result, err := h.engine.GetBooking(c.Request.Context(), viewer, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetActions handles GET /api/v1/bookings/:id/actions.
func (h *BookingHandler) GetActions(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	actions, err := h.engine.BookingActions(c.Request.Context(), viewer, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"booking_id": bookingID, "legal_actions": actions})
}

// ProcessPayment handles POST /api/v1/bookings/:id/pay.
func (h *BookingHandler) ProcessPayment(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	var req application.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.engine.ProcessPayment(c.Request.Context(), viewer, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete.
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	result, err := h.engine.CompleteBooking(c.Request.Context(), viewer, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ReviewCleaner handles POST /api/v1/bookings/:id/review.
func (h *BookingHandler) ReviewCleaner(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	var req application.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.engine.ReviewCleaner(c.Request.Context(), viewer, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// currentViewer reads the authenticated user from the context, writing 401 when absent.
func currentViewer(c *gin.Context) (application.Viewer, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Viewer{}, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Viewer{}, false
	}
	return application.Viewer{UserID: userID, Role: role}, true
}

func parseID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+entity+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return domain.NormalizePage(page, limit)
}
