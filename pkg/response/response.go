// Package response writes the JSON envelopes shared by every HTTP handler.
package response

import (
	"errors"
	"net/http"

	"github.com/banquethub/service-reservation/pkg/domain"
	"github.com/gin-gonic/gin"
)

// Envelope is the body of every response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code                     string `json:"code"`
	Message                  string `json:"message"`
	ConflictingReservationID string `json:"conflicting_reservation_id,omitempty"`
}

// Meta carries paging information for list responses.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// NoContent writes 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Paginated writes 200 with one page of items.
func Paginated[T any](c *gin.Context, page domain.PaginatedResult[T]) {
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    page.Items,
		Meta: &Meta{
			Total:      page.Total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: page.TotalPages,
		},
	})
}

// BadRequest writes 400 with a validation error.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, ErrorBody{Code: string(domain.CodeValidation), Message: message})
}

// Unauthorized writes 401.
func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, ErrorBody{Code: string(domain.CodeUnauthorized), Message: message})
}

// Forbidden writes 403.
func Forbidden(c *gin.Context, message string) {
	abort(c, http.StatusForbidden, ErrorBody{Code: string(domain.CodeForbidden), Message: message})
}

// Error maps err to a status code. Errors outside the domain taxonomy become 500
// and their text is not leaked.
func Error(c *gin.Context, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, ErrorBody{Code: "INTERNAL_ERROR", Message: "internal server error"})
		return
	}
	abort(c, StatusFor(de.Code), ErrorBody{
		Code:                     string(de.Code),
		Message:                  de.Message,
		ConflictingReservationID: de.ConflictingID,
	})
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeSlotConflict, domain.CodeSlotBlocked, domain.CodeInvalidTransition,
		domain.CodeSlotNotToggleable, domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeTimeout:
		return http.StatusServiceUnavailable
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &body})
}
