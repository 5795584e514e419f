package handler

import (
	"strconv"
	"strings"

	"github.com/banquethub/service-reservation/internal/application"
	"github.com/banquethub/service-reservation/pkg/auth"
	"github.com/banquethub/service-reservation/pkg/middleware"
	"github.com/banquethub/service-reservation/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader carries the client's retry key for POST /reservations.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReservationHandler handles HTTP requests for reservation operations.
type ReservationHandler struct {
	service *application.ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(service *application.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

// RegisterRoutes registers all reservation routes on the given router group.
func (h *ReservationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	reservations := r.Group("/api/v1/reservations")
	reservations.Use(authMW)
	{
		reservations.POST("", h.SubmitReservation)
		reservations.GET("", h.ListReservations)
		reservations.GET("/:id", h.GetReservation)
		reservations.POST("/:id/confirm", middleware.RequireRole(auth.RoleOwner), h.transition("confirm"))
		reservations.POST("/:id/reject", middleware.RequireRole(auth.RoleOwner), h.transition("reject"))
		reservations.POST("/:id/cancel", h.transition("cancel"))
	}

	venues := r.Group("/api/v1/venues")
	venues.Use(authMW)
	{
		venues.GET("/:id/reservations", middleware.RequireRole(auth.RoleOwner), h.ListVenueReservations)
	}
}

// SubmitReservation handles POST /api/v1/reservations.
func (h *ReservationHandler) SubmitReservation(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.SubmitReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
		if req.IdempotencyKey != "" && req.IdempotencyKey != key {
			response.BadRequest(c, "idempotency key in header and body differ")
			return
		}
		req.IdempotencyKey = key
	}

	result, err := h.service.SubmitReservation(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListReservations handles GET /api/v1/reservations: the caller's own reservations.
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListRequesterReservations(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, *result)
}

// GetReservation handles GET /api/v1/reservations/:id.
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation ID")
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.GetReservation(c.Request.Context(), reservationID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// transition handles POST /api/v1/reservations/:id/{confirm|reject|cancel}.
func (h *ReservationHandler) transition(event string) gin.HandlerFunc {
	return func(c *gin.Context) {
		reservationID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid reservation ID")
			return
		}

		userID, ok := middleware.GetUserID(c)
		if !ok {
			response.Unauthorized(c, "unauthorized")
			return
		}

		var req application.TransitionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.BadRequest(c, err.Error())
				return
			}
		}

		result, err := h.service.ApplyTransition(c.Request.Context(), reservationID, event, userID, req.Note)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, result)
	}
}

// ListVenueReservations handles GET /api/v1/venues/:id/reservations (venue owner).
func (h *ReservationHandler) ListVenueReservations(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid venue ID")
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListVenueReservations(c.Request.Context(), venueID, userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, *result)
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
