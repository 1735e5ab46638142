package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebooking/internal/testutil"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestHandler_BookingFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, store := newService(t)
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	testutil.SeedTable(t, store, 2, 2, 4)

	r := gin.New()
	h := NewHandler(svc)
	h.RegisterPublicRoutes(r.Group("/api/v1"))
	h.RegisterStaffRoutes(r.Group("/api/v1/staff"))

	body := createReq(t1.ID, testutil.Day(1), "20:00", 2)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/bookings", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var created struct {
		Booking struct {
			ID        int64  `json:"id"`
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "PENDING", created.Booking.Status)

	t.Run("conflict carries alternatives", func(t *testing.T) {
		body := createReq(t1.ID, testutil.Day(1), "21:00", 2)
		body.Customer = Customer{Name: "Grace", Email: "grace@example.com"}
		w, env := doJSON(t, r, http.MethodPost, "/api/v1/bookings", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "TIME_CONFLICT", env.Error.Code)

		var details struct {
			Alternatives []struct {
				Table struct {
					Number int `json:"number"`
				} `json:"table"`
			} `json:"alternatives"`
		}
		require.NoError(t, json.Unmarshal(env.Error.Details, &details))
		require.Len(t, details.Alternatives, 1)
		assert.Equal(t, 2, details.Alternatives[0].Table.Number)
	})

	t.Run("conflict hides the other customer", func(t *testing.T) {
		_, err := svc.UpdateNotes(context.Background(), created.Booking.ID, UpdateNotesRequest{Notes: "allergic to nuts"})
		require.NoError(t, err)

		w, env := doJSON(t, r, http.MethodPost, "/api/v1/bookings", createReq(t1.ID, testutil.Day(1), "21:00", 2))
		require.Equal(t, http.StatusConflict, w.Code)

		var details struct {
			Bookings []map[string]any `json:"bookings"`
		}
		require.NoError(t, json.Unmarshal(env.Error.Details, &details))
		require.Len(t, details.Bookings, 1)
		assert.EqualValues(t, created.Booking.ID, details.Bookings[0]["id"])
		assert.Equal(t, "20:00", details.Bookings[0]["booking_time"])

		raw := w.Body.String()
		for _, field := range []string{"customer_email", "customer_name", "customer_phone", "internal_notes", "reference", "payment_intent_id"} {
			assert.NotContains(t, raw, `"`+field+`"`)
		}
		assert.NotContains(t, raw, "ada@example.com")
		assert.NotContains(t, raw, "allergic")
	})

	t.Run("lookup by reference", func(t *testing.T) {
		_, err := svc.UpdateNotes(context.Background(), created.Booking.ID, UpdateNotesRequest{Notes: "allergic to nuts"})
		require.NoError(t, err)

		w, env := doJSON(t, r, http.MethodGet, "/api/v1/bookings/ref/"+created.Booking.Reference, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), created.Booking.Reference)
		assert.NotContains(t, w.Body.String(), "internal_notes")
		assert.NotContains(t, w.Body.String(), "allergic")

		w, _ = doJSON(t, r, http.MethodGet, "/api/v1/staff/bookings/"+strconv.FormatInt(created.Booking.ID, 10), nil)
		assert.Contains(t, w.Body.String(), "allergic")

		w, env = doJSON(t, r, http.MethodGet, "/api/v1/bookings/ref/TB-NOPE0000", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("staff status change", func(t *testing.T) {
		path := "/api/v1/staff/bookings/" + strconv.FormatInt(created.Booking.ID, 10) + "/status"
		w, _ := doJSON(t, r, http.MethodPatch, path, map[string]string{"status": "COMPLETED"})
		assert.Equal(t, http.StatusConflict, w.Code)

		w, _ = doJSON(t, r, http.MethodPatch, path, map[string]string{"status": "CONFIRMED"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodGet, "/api/v1/staff/bookings/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ID", env.Error.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodPost, "/api/v1/bookings", map[string]any{"table_id": "one"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})
}
