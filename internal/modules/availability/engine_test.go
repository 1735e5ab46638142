package availability

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/testutil"
)

var defaultSlots = []string{"17:00", "18:00", "19:00", "20:00", "21:00", "22:00", "23:00"}

// newEngine pins "today" to testutil.Day(0).
func newEngine() *Engine {
	now := time.Date(2030, time.June, 10, 12, 0, 0, 0, time.UTC)
	return NewEngine(NewWindow(time.UTC, 31, func() time.Time { return now }), nil, defaultSlots, nil)
}

func TestEngine_DoubleBookingRule(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	e := newEngine()
	t1 := testutil.SeedTable(t, store, 1, 4, 4)
	d := testutil.Day(3)

	testutil.SeedBooking(t, store, &domain.Booking{
		TableID: t1.ID, BookingDate: d, BookingTime: "20:00", PartySize: 4, Status: domain.BookingConfirmed,
	})

	res, err := e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: d, Time: "21:00"})
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, apperr.ReasonTimeConflict, res.Reason)
	assert.Len(t, res.Conflicts, 1)

	res, err = e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: d, Time: "22:00"})
	require.NoError(t, err)
	assert.True(t, res.Available)

	res, err = e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: d, Time: "18:00"})
	require.NoError(t, err)
	assert.True(t, res.Available)

	// Minutes are ignored: 21:59 is read as hour 21.
	res, err = e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: d, Time: "21:59"})
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestEngine_ExcludeBooking(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	e := newEngine()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	b := testutil.SeedBooking(t, store, &domain.Booking{
		TableID: t1.ID, BookingDate: testutil.Day(1), BookingTime: "20:00", PartySize: 2,
	})

	res, err := e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: testutil.Day(1), Time: "20:00", ExcludeBookingID: &b.ID})
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestEngine_CancelledAndNoShowNeverBlock(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	e := newEngine()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	for _, st := range []domain.BookingStatus{domain.BookingCancelled, domain.BookingNoShow, domain.BookingCompleted} {
		testutil.SeedBooking(t, store, &domain.Booking{
			TableID: t1.ID, BookingDate: testutil.Day(1), BookingTime: "20:00", PartySize: 2, Status: st,
		})
	}

	res, err := e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: testutil.Day(1), Time: "20:00"})
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestEngine_BlockPreventsBooking(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	e := newEngine()
	t2 := testutil.SeedTable(t, store, 2, 2, 4)
	require.NoError(t, store.Repos().Blocks.Create(ctx, &domain.TableBlock{
		TableID: t2.ID, StartDate: testutil.Day(1), EndDate: testutil.Day(5), Reason: "maintenance",
	}))

	for _, slot := range defaultSlots {
		res, err := e.Check(ctx, store.Repos(), Query{TableID: t2.ID, Date: testutil.Day(3), Time: slot})
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, apperr.ReasonTableBlocked, res.Reason)
		assert.Len(t, res.Blocks, 1)
	}

	res, err := e.Check(ctx, store.Repos(), Query{TableID: t2.ID, Date: testutil.Day(6), Time: "20:00"})
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestEngine_WindowAndInactive(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	e := newEngine()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)

	res, err := e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: testutil.Day(32), Time: "20:00"})
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, apperr.ReasonOutsideWindow, res.Reason)
	assert.Empty(t, res.Conflicts)

	t1.IsActive = false
	require.NoError(t, store.Repos().Tables.Save(ctx, t1))
	res, err = e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: testutil.Day(1), Time: "20:00"})
	require.NoError(t, err)
	assert.Equal(t, apperr.ReasonTableInactive, res.Reason)

	_, err = e.Check(ctx, store.Repos(), Query{TableID: 999, Date: testutil.Day(1), Time: "20:00"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.Check(ctx, store.Repos(), Query{TableID: t1.ID, Date: testutil.Day(1), Time: "8pm"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEngine_PartnerBookingBlocksBothTables(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	e := newEngine()
	t15 := testutil.SeedTable(t, store, 15, 4, 6, 16)
	t16 := testutil.SeedTable(t, store, 16, 3, 6, 15)
	testutil.SeedBooking(t, store, &domain.Booking{
		TableID: t15.ID, PartnerTableID: &t16.ID, BookingDate: testutil.Day(2), BookingTime: "20:00", PartySize: 10,
	})

	res, err := e.Check(ctx, store.Repos(), Query{TableID: t16.ID, Date: testutil.Day(2), Time: "21:00"})
	require.NoError(t, err)
	assert.Equal(t, apperr.ReasonTimeConflict, res.Reason)
}

func TestEngine_Alternatives(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	e := newEngine()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	testutil.SeedTable(t, store, 2, 2, 6)
	testutil.SeedTable(t, store, 3, 2, 4)
	t15 := testutil.SeedTable(t, store, 15, 4, 6, 16)
	testutil.SeedTable(t, store, 16, 3, 6, 15)
	d := testutil.Day(4)

	testutil.SeedBooking(t, store, &domain.Booking{TableID: t1.ID, BookingDate: d, BookingTime: "20:00", PartySize: 4})

	alts, err := e.Alternatives(ctx, store.Repos(), AlternativesQuery{Date: d, Time: "20:00", PartySize: 4})
	require.NoError(t, err)

	var got []string
	for _, a := range alts {
		got = append(got, label(a))
	}
	// Slack 0: T3; slack 2: T2, T15, T16; slack 8: T15+T16.
	assert.Equal(t, []string{"3", "2", "15", "16", "15+16"}, got)

	alts, err = e.Alternatives(ctx, store.Repos(), AlternativesQuery{Date: d, Time: "20:00", PartySize: 10})
	require.NoError(t, err)
	require.Len(t, alts, 1)
	assert.Equal(t, "15+16", label(alts[0]))
	assert.Equal(t, 3, alts[0].CapacityMin)
	assert.Equal(t, 12, alts[0].CapacityMax)

	// A booking on T15 takes the pair out too.
	testutil.SeedBooking(t, store, &domain.Booking{TableID: t15.ID, BookingDate: d, BookingTime: "19:00", PartySize: 4})
	alts, err = e.Alternatives(ctx, store.Repos(), AlternativesQuery{Date: d, Time: "20:00", PartySize: 10})
	require.NoError(t, err)
	assert.Empty(t, alts)
}

func TestEngine_DayView(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	e := newEngine()
	t1 := testutil.SeedTable(t, store, 1, 2, 4)
	testutil.SeedBooking(t, store, &domain.Booking{TableID: t1.ID, BookingDate: testutil.Day(1), BookingTime: "20:00", PartySize: 2})

	day, err := e.DayView(ctx, store.Repos(), t1.ID, testutil.Day(1))
	require.NoError(t, err)
	assert.True(t, day.Bookable)
	assert.Equal(t, []string{"20:00"}, day.BookedSlots)
	assert.Equal(t, []string{"17:00", "18:00", "22:00", "23:00"}, day.FreeSlots)
}

func label(a domain.Alternative) string {
	s := strconv.Itoa(a.Table.Number)
	if a.Partner != nil {
		s += "+" + strconv.Itoa(a.Partner.Number)
	}
	return s
}
