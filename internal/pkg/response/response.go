package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// PublicFromError is FromError for unauthenticated routes: conflicting
// bookings are reduced to their slots so no customer details leave the venue.
func PublicFromError(c *gin.Context, err error) int {
	var cerr *apperr.ConflictError
	if errors.As(err, &cerr) {
		return conflict(c, cerr, domain.Slots(cerr.Bookings))
	}
	return FromError(c, err)
}

func conflict(c *gin.Context, cerr *apperr.ConflictError, bookings any) int {
	ErrorWithDetails(c, http.StatusConflict, string(cerr.Reason), cerr.Message, gin.H{
		"bookings":     bookings,
		"blocks":       cerr.Blocks,
		"alternatives": cerr.Alternatives,
	})
	return http.StatusConflict
}

// FromError renders err according to its apperr kind and returns the status used.
// Unknown errors are reported as 500 without leaking their text.
func FromError(c *gin.Context, err error) int {
	var (
		verr *apperr.ValidationError
		cerr *apperr.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message, gin.H{
			"field": verr.Field,
			"rule":  verr.Rule,
		})
		return http.StatusBadRequest
	case errors.As(err, &cerr):
		return conflict(c, cerr, cerr.Bookings)
	case errors.Is(err, apperr.ErrValidation):
		Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAuthenticity):
		Error(c, http.StatusUnauthorized, "AUTHENTICITY_FAILED", "signature verification failed")
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrTransientStore):
		_ = c.Error(err)
		c.Header("Retry-After", "1")
		Error(c, http.StatusServiceUnavailable, "TEMPORARILY_UNAVAILABLE", "please retry")
		return http.StatusServiceUnavailable
	}
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	return http.StatusInternalServerError
}
