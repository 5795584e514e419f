package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/banquethub/service-reservation/internal/application"
	"github.com/banquethub/service-reservation/pkg/auth"
	"github.com/banquethub/service-reservation/pkg/middleware"
	"github.com/banquethub/service-reservation/pkg/response"
)

// AdminReservationHandler handles admin HTTP requests for reservation management.
type AdminReservationHandler struct {
	service *application.ReservationService
}

// NewAdminReservationHandler creates a new AdminReservationHandler.
func NewAdminReservationHandler(service *application.ReservationService) *AdminReservationHandler {
	return &AdminReservationHandler{service: service}
}

// RegisterRoutes registers admin reservation routes.
func (h *AdminReservationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/reservations", h.ListReservations)
		admin.GET("/stats/reservations", h.ReservationStats)
	}
}

// ListReservations handles GET /api/v1/admin/reservations.
func (h *AdminReservationHandler) ListReservations(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.service.ListAllReservations(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, *result)
}

// ReservationStats handles GET /api/v1/admin/stats/reservations.
func (h *AdminReservationHandler) ReservationStats(c *gin.Context) {
	stats, err := h.service.GetReservationStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
