package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
)

func render(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	FromError(c, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Invalid("party_size", "min", "too small"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped conflict", fmt.Errorf("create: %w", apperr.Conflict(apperr.ReasonTimeConflict, "taken")), http.StatusConflict, "TIME_CONFLICT"},
		{"not found", apperr.NotFound("booking"), http.StatusNotFound, "NOT_FOUND"},
		{"authenticity", fmt.Errorf("%w: mismatch", apperr.ErrAuthenticity), http.StatusUnauthorized, "AUTHENTICITY_FAILED"},
		{"transient", apperr.Transient(errors.New("connection reset")), http.StatusServiceUnavailable, "TEMPORARILY_UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := render(t, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, false, body["success"])
			errBody := body["error"].(map[string]any)
			assert.Equal(t, tt.code, errBody["code"])
		})
	}
}

func TestFromError_HidesInternalText(t *testing.T) {
	_, body := render(t, apperr.Transient(errors.New("dial tcp 10.0.0.5:5432")))
	assert.NotContains(t, body["error"].(map[string]any)["message"], "10.0.0.5")
}

func TestPublicFromError_ReducesBookingsToSlots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cerr := apperr.Conflict(apperr.ReasonTimeConflict, "taken")
	cerr.Bookings = []domain.Booking{{
		ID:            7,
		TableID:       1,
		BookingTime:   "20:00",
		Status:        domain.BookingConfirmed,
		CustomerEmail: "alice@example.com",
		InternalNotes: "VIP",
	}}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.Equal(t, http.StatusConflict, PublicFromError(c, fmt.Errorf("create: %w", cerr)))
	assert.Contains(t, w.Body.String(), `"booking_time":"20:00"`)
	assert.NotContains(t, w.Body.String(), "alice@example.com")
	assert.NotContains(t, w.Body.String(), "VIP")

	staff, _ := render(t, cerr)
	assert.Contains(t, staff.Body.String(), "alice@example.com")
}

func TestPublicFromError_OtherKindsUnchanged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.Equal(t, http.StatusNotFound, PublicFromError(c, apperr.NotFound("booking")))
}
