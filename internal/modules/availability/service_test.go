package availability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebooking/internal/cache"
	"tablebooking/internal/domain"
	"tablebooking/internal/testutil"
)

func TestService_StaleCacheNeverOffersInactiveTable(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tables := cache.NewTableCache(client, time.Hour)
	now := time.Date(2030, time.June, 10, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(NewWindow(time.UTC, 31, func() time.Time { return now }), tables, defaultSlots, nil)
	svc := NewService(store, engine, nil)

	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	testutil.SeedTable(t, store, 2, 2, 4)

	resp, err := svc.CheckAvailability(ctx, CheckRequest{Date: testutil.Day(1).String(), Time: "20:00", PartySize: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Alternatives, 2)

	// Deactivate behind the cache's back.
	t1.IsActive = false
	require.NoError(t, store.Repos().Tables.Save(ctx, t1))

	resp, err = svc.CheckAvailability(ctx, CheckRequest{Date: testutil.Day(1).String(), Time: "20:00", PartySize: 2})
	require.NoError(t, err)
	require.Len(t, resp.Alternatives, 1)
	assert.Equal(t, 2, resp.Alternatives[0].Table.Number)
}

func TestService_UnavailableIncludesAlternatives(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	svc := NewService(store, newEngine(), nil)
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	testutil.SeedTable(t, store, 2, 2, 4)
	testutil.SeedBooking(t, store, &domain.Booking{TableID: t1.ID, BookingDate: testutil.Day(1), BookingTime: "20:00", PartySize: 2})

	resp, err := svc.CheckAvailability(ctx, CheckRequest{TableID: &t1.ID, Date: testutil.Day(1).String(), Time: "20:00", PartySize: 2})
	require.NoError(t, err)
	assert.False(t, resp.Available)
	assert.Equal(t, "TIME_CONFLICT", resp.Reason)
	assert.Len(t, resp.Conflicts, 1)
	require.Len(t, resp.Alternatives, 1)
	assert.Equal(t, 2, resp.Alternatives[0].Table.Number)
}

func TestHandler_CheckAvailability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := testutil.NewStore(t)
	t1 := testutil.SeedTable(t, store, 1, 2, 4)

	r := gin.New()
	NewHandler(NewService(store, newEngine(), nil)).RegisterRoutes(r.Group("/api/v1"))

	t.Run("day view", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/availability?table_id=1&date="+testutil.Day(1).String(), nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Success bool          `json:"success"`
			Data    CheckResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Success)
		require.NotNil(t, body.Data.Day)
		assert.Equal(t, t1.ID, body.Data.Day.TableID)
		assert.Len(t, body.Data.Day.FreeSlots, len(defaultSlots))
	})

	t.Run("missing date", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/availability?table_id=1", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown table", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/availability?table_id=99&date=2030-06-11&time=20:00", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("conflicts show slots only", func(t *testing.T) {
		intent := "pi_secret"
		booked := testutil.SeedBooking(t, store, &domain.Booking{
			TableID:         t1.ID,
			BookingDate:     testutil.Day(2),
			BookingTime:     "20:00",
			PartySize:       2,
			CustomerName:    "Alice Secret",
			CustomerEmail:   "alice@example.com",
			CustomerPhone:   "+447700900123",
			InternalNotes:   "VIP, allergic",
			PaymentIntentID: &intent,
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/availability?table_id=1&date="+testutil.Day(2).String()+"&time=21:00", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Data CheckResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Data.Available)
		require.Len(t, body.Data.Conflicts, 1)
		assert.Equal(t, booked.ID, body.Data.Conflicts[0].ID)
		assert.Equal(t, "20:00", body.Data.Conflicts[0].BookingTime)

		raw := w.Body.String()
		for _, leak := range []string{"customer_email", "alice@example.com", "Alice Secret", "+447700900123", "allergic", "pi_secret", booked.Reference} {
			assert.NotContains(t, raw, leak)
		}
	})
}
