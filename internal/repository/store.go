package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"tablebooking/internal/metrics"
)

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Tables   *TableRepository
	Blocks   *TableBlockRepository
	Bookings *BookingRepository
	Audit    *PaymentAuditRepository
}

func newRepos(db *gorm.DB, lockNoWait bool) Repos {
	return Repos{
		Tables:   NewTableRepository(db),
		Blocks:   NewTableBlockRepository(db),
		Bookings: &BookingRepository{db: db, lockNoWait: lockNoWait},
		Audit:    NewPaymentAuditRepository(db),
	}
}

type StoreOptions struct {
	// Timeout bounds every unit of work against the store.
	Timeout time.Duration
	// Serializable runs transactions at SERIALIZABLE isolation (PostgreSQL only).
	Serializable bool
	// LockNoWait makes row locks fail fast instead of queueing (PostgreSQL only).
	LockNoWait bool
}

// Store is the transactional boundary shared by every module.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
	txOpts  *sql.TxOptions
	noWait  bool
}

func NewStore(db *gorm.DB, opts StoreOptions) *Store {
	s := &Store{db: db, timeout: opts.Timeout}
	if db.Dialector.Name() == "postgres" {
		if opts.Serializable {
			s.txOpts = &sql.TxOptions{Isolation: sql.LevelSerializable}
		}
		s.noWait = opts.LockNoWait
	}
	return s
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// Repos returns repositories outside of any transaction.
func (s *Store) Repos() Repos {
	return newRepos(s.db, s.noWait)
}

// WithTimeout derives the bounded context used for a single store call.
func (s *Store) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// InTx runs fn inside one transaction. Returning an error rolls everything
// back; store failures surface as apperr.ErrTransientStore where retryable.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	timer := prometheus.NewTimer(metrics.StoreTxDuration)
	defer timer.ObserveDuration()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, newRepos(tx, s.noWait))
	}, s.txOpts)
	return classify(err)
}

// Ping verifies the store is reachable within the store timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return classify(sqlDB.PingContext(ctx))
}
