package tables

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebooking/internal/cache"
	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/repository"
	"tablebooking/internal/testutil"
)

func newService(t *testing.T) (*Service, *repository.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := testutil.NewStore(t)
	return NewService(store, cache.NewTableCache(client, time.Hour), nil), store, mr
}

func createReq(number int, combinable ...int) CreateTableRequest {
	return CreateTableRequest{
		Number:         number,
		Floor:          domain.FloorGround,
		CapacityMin:    2,
		CapacityMax:    6,
		CombinableWith: combinable,
	}
}

func numbersOf(t *testing.T, store *repository.Store, number int) []int {
	t.Helper()
	tbl, err := store.Repos().Tables.GetByNumber(context.Background(), number)
	require.NoError(t, err)
	return tbl.CombinableWith
}

func TestCreateTable_MirrorsCombinability(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateTable(ctx, createReq(15))
	require.NoError(t, err)
	t16, err := svc.CreateTable(ctx, createReq(16, 15))
	require.NoError(t, err)

	assert.Equal(t, []int{16}, numbersOf(t, store, 15))
	assert.Equal(t, []int{15}, t16.CombinableWith)
	assert.True(t, t16.IsActive)

	report, err := svc.VerifySymmetry(ctx)
	require.NoError(t, err)
	assert.True(t, report.Symmetric)
	assert.Empty(t, report.Asymmetric)
}

func TestCreateTable_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateTable(ctx, createReq(1))
	require.NoError(t, err)

	tests := map[string]CreateTableRequest{
		"self partner":    createReq(2, 2),
		"unknown partner": createReq(2, 99),
		"duplicate":       createReq(1),
		"bad floor":       {Number: 3, Floor: "ROOF", CapacityMin: 2, CapacityMax: 4},
		"inverted range":  {Number: 3, Floor: domain.FloorGround, CapacityMin: 6, CapacityMax: 4},
		"repeat partner":  createReq(3, 1, 1),
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateTable(ctx, req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	// Nothing from the failed requests was written.
	list, err := svc.ListTables(ctx, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Empty(t, list[0].CombinableWith)
}

func TestUpdateTable_AddsAndRemovesPartners(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	for _, n := range []int{1, 2, 3} {
		_, err := svc.CreateTable(ctx, createReq(n))
		require.NoError(t, err)
	}
	t1, err := store.Repos().Tables.GetByNumber(ctx, 1)
	require.NoError(t, err)

	_, err = svc.UpdateTable(ctx, t1.ID, UpdateTableRequest{Floor: domain.FloorMezzanine, CapacityMin: 2, CapacityMax: 8, CombinableWith: []int{3, 2}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, numbersOf(t, store, 1))
	assert.Equal(t, []int{1}, numbersOf(t, store, 2))
	assert.Equal(t, []int{1}, numbersOf(t, store, 3))

	updated, err := svc.UpdateTable(ctx, t1.ID, UpdateTableRequest{Floor: domain.FloorMezzanine, CapacityMin: 2, CapacityMax: 8, CombinableWith: []int{3}})
	require.NoError(t, err)
	assert.Equal(t, domain.FloorMezzanine, updated.Floor)
	assert.Equal(t, 8, updated.CapacityMax)
	assert.Empty(t, numbersOf(t, store, 2))
	assert.Equal(t, []int{1}, numbersOf(t, store, 3))

	_, err = svc.UpdateTable(ctx, t1.ID, UpdateTableRequest{Floor: domain.FloorGround, CapacityMin: 2, CapacityMax: 4, CombinableWith: []int{42}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []int{3}, numbersOf(t, store, 1))

	_, err = svc.UpdateTable(ctx, 999, UpdateTableRequest{Floor: domain.FloorGround, CapacityMin: 2, CapacityMax: 4})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVerifySymmetry_ReportsDrift(t *testing.T) {
	svc, store, _ := newService(t)
	testutil.SeedTable(t, store, 15, 4, 6, 16)
	testutil.SeedTable(t, store, 16, 3, 6)

	report, err := svc.VerifySymmetry(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Symmetric)
	assert.Equal(t, []domain.AsymmetricPair{{Table: 15, Partner: 16}}, report.Asymmetric)
}

func TestListTables_CacheInvalidatedOnWrite(t *testing.T) {
	svc, _, mr := newService(t)
	ctx := context.Background()
	t1, err := svc.CreateTable(ctx, createReq(1))
	require.NoError(t, err)

	list, err := svc.ListTables(ctx, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, mr.Exists("tables:active"))

	_, err = svc.SetActive(ctx, t1.ID, false)
	require.NoError(t, err)
	assert.False(t, mr.Exists("tables:active"))

	list, err = svc.ListTables(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, list)

	all, err := svc.ListTables(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}

func TestListTables_WithoutCache(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewService(store, nil, nil)
	testutil.SeedTable(t, store, 7, 2, 2)

	list, err := svc.ListTables(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 7, list[0].Number)
}
