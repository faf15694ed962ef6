package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cleanmarket/service-booking/internal/application"
	"github.com/cleanmarket/service-booking/internal/pkg/auth"
	"github.com/cleanmarket/service-booking/internal/pkg/middleware"
	"github.com/cleanmarket/service-booking/internal/pkg/response"
)

// PaymentMethodHandler serves the employer's saved payment methods.
type PaymentMethodHandler struct {
	engine *application.LifecycleEngine
}

func NewPaymentMethodHandler(engine *application.LifecycleEngine) *PaymentMethodHandler {
	return &PaymentMethodHandler{engine: engine}
}

func (h *PaymentMethodHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	methods := r.Group("/api/v1/payment-methods")
	methods.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleEmployer))
	{
		methods.GET("", h.List)
		methods.DELETE("/:id", h.Delete)
	}
}

// List handles GET /api/v1/payment-methods.
func (h *PaymentMethodHandler) List(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	methods, err := h.engine.ListSavedMethods(c.Request.Context(), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, methods)
}

// Delete handles DELETE /api/v1/payment-methods/:id.
func (h *PaymentMethodHandler) Delete(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	methodID, ok := parseID(c, "payment method")
	if !ok {
		return
	}

	if err := h.engine.DeleteSavedMethod(c.Request.Context(), viewer, methodID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
