package apperr

import (
	"errors"
	"fmt"

	"tablebooking/internal/domain"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrAuthenticity      = errors.New("authenticity check failed")
	ErrTransientStore    = errors.New("transient store error")
	ErrUnrecognizedEvent = errors.New("unrecognized event")
	ErrNotFound          = errors.New("not found")
)

// ValidationError names the input rule that failed.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, rule, message string) error {
	return &ValidationError{Field: field, Rule: rule, Message: message}
}

type ConflictReason string

const (
	ReasonTimeConflict       ConflictReason = "TIME_CONFLICT"
	ReasonTableBlocked       ConflictReason = "TABLE_BLOCKED"
	ReasonTableInactive      ConflictReason = "TABLE_INACTIVE"
	ReasonOutsideWindow      ConflictReason = "OUTSIDE_BOOKING_WINDOW"
	ReasonCapacityMismatch   ConflictReason = "CAPACITY_MISMATCH"
	ReasonCombinationInvalid ConflictReason = "COMBINATION_MISMATCH"
	ReasonBlockOverlap       ConflictReason = "BLOCK_OVERLAPS_BOOKINGS"
	ReasonInvalidTransition  ConflictReason = "INVALID_STATUS_TRANSITION"
	ReasonPaymentState       ConflictReason = "PAYMENT_STATE"
)

// ConflictError carries everything a caller needs to pick different parameters.
type ConflictError struct {
	Reason       ConflictReason
	Message      string
	Bookings     []domain.Booking
	Blocks       []domain.TableBlock
	Alternatives []domain.Alternative
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s: %s", e.Reason, e.Message)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(reason ConflictReason, message string) *ConflictError {
	return &ConflictError{Reason: reason, Message: message}
}

// Transient wraps a store failure that the caller may retry with backoff.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransientStore) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransientStore, err)
}

func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}
