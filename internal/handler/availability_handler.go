package handler

import (
	"github.com/banquethub/service-reservation/internal/application"
	"github.com/banquethub/service-reservation/pkg/auth"
	"github.com/banquethub/service-reservation/pkg/middleware"
	"github.com/banquethub/service-reservation/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SetBlockRequest is the optional body of PUT /venues/:id/blocks/:date/:slot.
type SetBlockRequest struct {
	Reason string `json:"reason"`
}

// AvailabilityHandler handles HTTP requests for venue calendars and blocks.
type AvailabilityHandler struct {
	availability *application.AvailabilityService
	catalog      *application.CatalogService
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(availability *application.AvailabilityService, catalog *application.CatalogService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, catalog: catalog}
}

// RegisterRoutes registers venue calendar routes. Reads are public.
func (h *AvailabilityHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	ownerRole := middleware.RequireRole(auth.RoleOwner)

	venues := r.Group("/api/v1/venues")
	{
		venues.GET("/:id", h.GetVenue)
		venues.GET("/:id/availability", h.GetAvailability)
		venues.PUT("/:id/blocks/:date/:slot", authMW, ownerRole, h.SetBlock)
		venues.DELETE("/:id/blocks/:date/:slot", authMW, ownerRole, h.ClearBlock)
	}
}

// GetVenue handles GET /api/v1/venues/:id.
func (h *AvailabilityHandler) GetVenue(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid venue ID")
		return
	}

	result, err := h.catalog.GetVenue(c.Request.Context(), venueID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetAvailability handles GET /api/v1/venues/:id/availability?from=&to=.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid venue ID")
		return
	}

	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		response.BadRequest(c, "from and to query parameters are required")
		return
	}

	result, err := h.availability.GetAvailability(c.Request.Context(), venueID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetBlock handles PUT /api/v1/venues/:id/blocks/:date/:slot.
func (h *AvailabilityHandler) SetBlock(c *gin.Context) {
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

	var req SetBlockRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.availability.SetBlock(c.Request.Context(), venueID, c.Param("date"), c.Param("slot"), userID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ClearBlock handles DELETE /api/v1/venues/:id/blocks/:date/:slot.
func (h *AvailabilityHandler) ClearBlock(c *gin.Context) {
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

	if err := h.availability.ClearBlock(c.Request.Context(), venueID, c.Param("date"), c.Param("slot"), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
