// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tablebooking/internal/database"
	"tablebooking/internal/domain"
	"tablebooking/internal/repository"
)

// NewStore opens a private in-memory SQLite store with the schema migrated.
func NewStore(t *testing.T) *repository.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Connect(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	return repository.NewStore(db, repository.StoreOptions{Timeout: 5 * time.Second})
}

// SeedTable inserts an active table.
func SeedTable(t *testing.T, s *repository.Store, number, capMin, capMax int, combinable ...int) *domain.Table {
	t.Helper()

	tbl := &domain.Table{
		Number:         number,
		Floor:          domain.FloorGround,
		CapacityMin:    capMin,
		CapacityMax:    capMax,
		IsActive:       true,
		CombinableWith: combinable,
	}
	require.NoError(t, s.Repos().Tables.Create(context.Background(), tbl))
	return tbl
}

// SeedBooking inserts a booking with its slot claims.
func SeedBooking(t *testing.T, s *repository.Store, b *domain.Booking) *domain.Booking {
	t.Helper()

	if b.Reference == "" {
		b.Reference = "TB-" + uuid.NewString()[:8]
	}
	if b.CustomerRef == "" {
		b.CustomerRef = "guest"
	}
	if b.Status == "" {
		b.Status = domain.BookingPending
	}
	if b.Currency == "" {
		b.Currency = "gbp"
	}
	if b.DepositAmount == 0 {
		b.DepositAmount = 2000
	}
	require.NoError(t, s.Repos().Bookings.Create(context.Background(), b))
	return b
}

// Day returns the date offset days from 2030-06-10.
func Day(offset int) domain.Date {
	return domain.NewDate(2030, time.June, 10).AddDays(offset)
}
