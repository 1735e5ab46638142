package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"tablebooking/internal/pkg/apperr"
)

// ErrDuplicate reports a unique-constraint violation.
var ErrDuplicate = errors.New("duplicate key")

// sqliteCoder matches driver errors that expose an extended result code.
type sqliteCoder interface {
	Code() int
}

const (
	sqliteBusy                 = 5
	sqliteLocked               = 6
	sqliteConstraintPK         = 1555
	sqliteConstraintUniq       = 2067
	pgUniqueViolation          = "23505"
	pgSerializationFail        = "40001"
	pgDeadlockDetected         = "40P01"
	pgLockNotAvailable         = "55P03"
	pgQueryCanceled            = "57014"
	pgConnectionExceptionClass = "08"
)

// classify maps driver errors onto the store error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, apperr.ErrTransientStore), errors.Is(err, apperr.ErrNotFound), errors.Is(err, ErrDuplicate):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("record")
	case isDuplicate(err):
		return errors.Join(ErrDuplicate, err)
	case isTransient(err):
		return apperr.Transient(err)
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var coder sqliteCoder
	if errors.As(err, &coder) {
		c := coder.Code()
		if c == sqliteConstraintUniq || c == sqliteConstraintPK {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFail, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
			return true
		}
		return strings.HasPrefix(pgErr.Code, pgConnectionExceptionClass)
	}
	var coder sqliteCoder
	if errors.As(err, &coder) {
		c := coder.Code() & 0xff
		if c == sqliteBusy || c == sqliteLocked {
			return true
		}
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
