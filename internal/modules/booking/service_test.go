package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tablebooking/internal/domain"
	"tablebooking/internal/modules/availability"
	"tablebooking/internal/modules/livefeed"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/repository"
	"tablebooking/internal/testutil"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SlotChanged(change livefeed.SlotChange) {
	m.Called(change)
}

func newService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	now := time.Date(2030, time.June, 10, 12, 0, 0, 0, time.UTC)
	engine := availability.NewEngine(availability.NewWindow(time.UTC, 31, func() time.Time { return now }), nil, nil, nil)
	svc := NewService(store, engine, nil, Config{DepositAmount: 2000, Currency: "gbp"}, nil)
	svc.now = func() time.Time { return now }
	return svc, store
}

func createReq(tableID int64, date domain.Date, tm string, party int) CreateBookingRequest {
	return CreateBookingRequest{
		TableID:       tableID,
		Date:          date.String(),
		Time:          tm,
		PartySize:     party,
		Customer:      Customer{Name: "Ada", Email: "ada@example.com"},
		DrinksPackage: "prosecco",
	}
}

func conflictReason(t *testing.T, err error) apperr.ConflictReason {
	t.Helper()
	var cerr *apperr.ConflictError
	require.True(t, errors.As(err, &cerr), "expected conflict, got %v", err)
	return cerr.Reason
}

func TestCreateBooking_Success(t *testing.T) {
	svc, store := newService(t)
	notifier := new(MockNotifier)
	svc.notifier = notifier
	t1 := testutil.SeedTable(t, store, 1, 2, 4)

	notifier.On("SlotChanged", mock.MatchedBy(func(c livefeed.SlotChange) bool {
		return c.TableID == t1.ID && c.Time == "20:00" && c.Status == domain.BookingPending
	})).Once()

	b, err := svc.CreateBooking(context.Background(), createReq(t1.ID, testutil.Day(2), "20:00", 2))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Regexp(t, `^TB-[0-9A-F]{8}$`, b.Reference)
	assert.EqualValues(t, 2000, b.DepositAmount)
	assert.Equal(t, "gbp", b.Currency)
	assert.Equal(t, "ada@example.com", b.CustomerRef)
	assert.False(t, b.DepositPaid)
	notifier.AssertExpectations(t)

	got, err := svc.GetBookingByReference(context.Background(), b.Reference)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestCreateBooking_DoubleBookingScenario(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t1 := testutil.SeedTable(t, store, 1, 4, 4)
	testutil.SeedTable(t, store, 2, 4, 4)
	d := testutil.Day(5)

	first, err := svc.CreateBooking(ctx, createReq(t1.ID, d, "20:00", 4))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, first.ID, UpdateStatusRequest{Status: domain.BookingConfirmed})
	require.NoError(t, err)

	_, err = svc.CreateBooking(ctx, createReq(t1.ID, d, "21:00", 4))
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonTimeConflict, conflictReason(t, err))
	var cerr *apperr.ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Len(t, cerr.Bookings, 1)
	require.Len(t, cerr.Alternatives, 1)
	assert.Equal(t, 2, cerr.Alternatives[0].Table.Number)

	_, err = svc.CreateBooking(ctx, createReq(t1.ID, d, "22:00", 4))
	assert.NoError(t, err)
}

func TestCreateBooking_CombinedTables(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t15 := testutil.SeedTable(t, store, 15, 4, 6, 16)
	t16 := testutil.SeedTable(t, store, 16, 3, 6, 15)
	d := testutil.Day(3)

	_, err := svc.CreateBooking(ctx, createReq(t15.ID, d, "20:00", 10))
	assert.Equal(t, apperr.ReasonCapacityMismatch, conflictReason(t, err))
	_, err = svc.CreateBooking(ctx, createReq(t16.ID, d, "20:00", 10))
	assert.Equal(t, apperr.ReasonCapacityMismatch, conflictReason(t, err))

	req := createReq(t15.ID, d, "20:00", 10)
	req.PartnerTableID = &t16.ID
	b, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, b.PartnerTableID)

	// The partner table is now held too.
	_, err = svc.CreateBooking(ctx, createReq(t16.ID, d, "21:00", 4))
	assert.Equal(t, apperr.ReasonTimeConflict, conflictReason(t, err))

	req.PartySize = 13
	req.Time = "17:00"
	_, err = svc.CreateBooking(ctx, req)
	assert.Equal(t, apperr.ReasonCapacityMismatch, conflictReason(t, err))
}

func TestCreateBooking_NonCombinablePair(t *testing.T) {
	svc, store := newService(t)
	t1 := testutil.SeedTable(t, store, 1, 2, 4, 2)
	t2 := testutil.SeedTable(t, store, 2, 2, 4)

	req := createReq(t1.ID, testutil.Day(1), "20:00", 6)
	req.PartnerTableID = &t2.ID
	_, err := svc.CreateBooking(context.Background(), req)
	assert.Equal(t, apperr.ReasonCombinationInvalid, conflictReason(t, err))
}

func TestCreateBooking_BlockedTable(t *testing.T) {
	svc, store := newService(t)
	t2 := testutil.SeedTable(t, store, 2, 2, 4)
	require.NoError(t, store.Repos().Blocks.Create(context.Background(), &domain.TableBlock{
		TableID: t2.ID, StartDate: testutil.Day(1), EndDate: testutil.Day(5),
	}))

	_, err := svc.CreateBooking(context.Background(), createReq(t2.ID, testutil.Day(3), "17:00", 2))
	assert.Equal(t, apperr.ReasonTableBlocked, conflictReason(t, err))
}

func TestCreateBooking_Validation(t *testing.T) {
	svc, store := newService(t)
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	ctx := context.Background()

	tests := map[string]func(r *CreateBookingRequest){
		"bad date":          func(r *CreateBookingRequest) { r.Date = "11/06/2030" },
		"bad time":          func(r *CreateBookingRequest) { r.Time = "8pm" },
		"no package":        func(r *CreateBookingRequest) { r.DrinksPackage = "" },
		"package and order": func(r *CreateBookingRequest) { r.CustomOrder = []domain.OrderLine{{Item: "gin", Quantity: 1}} },
		"bad order line": func(r *CreateBookingRequest) {
			r.DrinksPackage = ""
			r.CustomOrder = []domain.OrderLine{{Item: "gin", Quantity: 0}}
		},
		"bad email":    func(r *CreateBookingRequest) { r.Customer.Email = "ada" },
		"self partner": func(r *CreateBookingRequest) { r.PartnerTableID = &r.TableID },
		"zero party":   func(r *CreateBookingRequest) { r.PartySize = 0 },
		"missing name": func(r *CreateBookingRequest) { r.Customer.Name = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := createReq(t1.ID, testutil.Day(1), "20:00", 2)
			mutate(&req)
			_, err := svc.CreateBooking(ctx, req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := svc.CreateBooking(ctx, createReq(t1.ID, testutil.Day(32), "20:00", 2))
	assert.Equal(t, apperr.ReasonOutsideWindow, conflictReason(t, err))
	_, err = svc.CreateBooking(ctx, createReq(t1.ID, testutil.Day(-1), "20:00", 2))
	assert.Equal(t, apperr.ReasonOutsideWindow, conflictReason(t, err))
}

func TestCreateBooking_ConcurrentRequestsSingleWinner(t *testing.T) {
	svc, store := newService(t)
	t1 := testutil.SeedTable(t, store, 1, 2, 4)

	const n = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tm := []string{"19:00", "20:00", "21:00"}[i%3]
			_, err := svc.CreateBooking(context.Background(), createReq(t1.ID, testutil.Day(1), tm, 2))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			assert.ErrorIs(t, err, apperr.ErrConflict)
		}(i)
	}
	wg.Wait()

	// 19:00 and 21:00 can coexist; 20:00 conflicts with both.
	got, err := store.Repos().Bookings.ListOccupying(context.Background(), []int64{t1.ID}, testutil.Day(1), nil)
	require.NoError(t, err)
	assert.Equal(t, wins, len(got))
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			hi, _ := got[i].SlotHour()
			hj, _ := got[j].SlotHour()
			assert.False(t, domain.SlotsConflict(hi, hj), "%s vs %s", got[i].BookingTime, got[j].BookingTime)
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)

	b, err := svc.CreateBooking(ctx, createReq(t1.ID, testutil.Day(1), "20:00", 2))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, b.ID, UpdateStatusRequest{Status: domain.BookingCompleted})
	assert.Equal(t, apperr.ReasonInvalidTransition, conflictReason(t, err))

	_, err = svc.UpdateStatus(ctx, b.ID, UpdateStatusRequest{Status: "bogus"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	notes := "regulars"
	got, err := svc.UpdateStatus(ctx, b.ID, UpdateStatusRequest{Status: domain.BookingCancelled, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	assert.Equal(t, "regulars", got.InternalNotes)

	// Cancelling frees the slot.
	_, err = svc.CreateBooking(ctx, createReq(t1.ID, testutil.Day(1), "20:00", 2))
	assert.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, 9999, UpdateStatusRequest{Status: domain.BookingCancelled})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateStatus_NoShowForfeitsDeposit(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	paidAt := time.Now()
	b := testutil.SeedBooking(t, store, &domain.Booking{
		TableID: t1.ID, BookingDate: testutil.Day(0), BookingTime: "20:00", PartySize: 2,
		Status: domain.BookingConfirmed, DepositPaid: true, DepositPaidAt: &paidAt,
	})

	got, err := svc.UpdateStatus(ctx, b.ID, UpdateStatusRequest{Status: domain.BookingNoShow})
	require.NoError(t, err)
	assert.False(t, got.DepositPaid)
	assert.True(t, got.DepositForfeited)
	assert.NoError(t, got.CheckInvariants())
}

func TestUpdateNotes(t *testing.T) {
	svc, store := newService(t)
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	b := testutil.SeedBooking(t, store, &domain.Booking{TableID: t1.ID, BookingDate: testutil.Day(0), BookingTime: "20:00", PartySize: 2})

	got, err := svc.UpdateNotes(context.Background(), b.ID, UpdateNotesRequest{Notes: "window seat"})
	require.NoError(t, err)
	assert.Equal(t, "window seat", got.InternalNotes)
}

func TestReschedule(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	t2 := testutil.SeedTable(t, store, 2, 2, 4)

	b, err := svc.CreateBooking(ctx, createReq(t1.ID, testutil.Day(1), "20:00", 2))
	require.NoError(t, err)
	other, err := svc.CreateBooking(ctx, createReq(t2.ID, testutil.Day(1), "20:00", 2))
	require.NoError(t, err)

	// Moving within its own window is fine: the booking does not conflict with itself.
	moved, err := svc.Reschedule(ctx, b.ID, RescheduleRequest{TableID: t1.ID, Date: testutil.Day(1).String(), Time: "21:00", PartySize: 3})
	require.NoError(t, err)
	assert.Equal(t, "21:00", moved.BookingTime)
	assert.Equal(t, 3, moved.PartySize)

	// The old 19:00..20:00 claim is gone.
	_, err = svc.CreateBooking(ctx, createReq(t1.ID, testutil.Day(1), "19:00", 2))
	assert.NoError(t, err)

	_, err = svc.Reschedule(ctx, b.ID, RescheduleRequest{TableID: t2.ID, Date: testutil.Day(1).String(), Time: "21:00", PartySize: 2})
	assert.Equal(t, apperr.ReasonTimeConflict, conflictReason(t, err))

	_, err = svc.UpdateStatus(ctx, other.ID, UpdateStatusRequest{Status: domain.BookingCancelled})
	require.NoError(t, err)
	_, err = svc.Reschedule(ctx, other.ID, RescheduleRequest{TableID: t2.ID, Date: testutil.Day(2).String(), Time: "20:00", PartySize: 2})
	assert.Equal(t, apperr.ReasonInvalidTransition, conflictReason(t, err))
}

func TestListBookings(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	for i := 0; i < 3; i++ {
		_, err := svc.CreateBooking(ctx, createReq(t1.ID, testutil.Day(i), "20:00", 2))
		require.NoError(t, err)
	}

	resp, err := svc.ListBookings(ctx, ListRequest{Status: "pending", From: testutil.Day(1).String()})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Total)

	_, err = svc.ListBookings(ctx, ListRequest{From: testutil.Day(2).String(), To: testutil.Day(1).String()})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
