package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"tablebooking/internal/domain"
	"tablebooking/internal/gateway"
	"tablebooking/internal/metrics"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/pkg/validator"
	"tablebooking/internal/repository"
)

func depositKey(bookingID int64) string {
	return "booking-" + strconv.FormatInt(bookingID, 10) + "-deposit"
}

// gatewayError marks retryable gateway failures as transient.
func gatewayError(op string, err error) error {
	if gateway.IsTemporary(err) {
		return apperr.Transient(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateIntent returns the deposit intent for an unpaid booking, creating it
// on first use. An intent that already succeeded confirms the booking at once.
func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequest) (*IntentResponse, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	b, err := s.getBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingPending {
		return nil, apperr.Conflict(apperr.ReasonPaymentState,
			fmt.Sprintf("booking is %s and does not take a deposit", b.Status))
	}

	if b.PaymentIntentID != nil {
		return s.reuseIntent(ctx, b, *b.PaymentIntentID)
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.CreateIntentParams{
		Amount:   b.DepositAmount,
		Currency: b.Currency,
		Metadata: map[string]string{
			gateway.MetaBookingID:  strconv.FormatInt(b.ID, 10),
			gateway.MetaBookingRef: b.Reference,
		},
		IdempotencyKey: depositKey(b.ID),
	})
	if err != nil {
		s.log.Error().Err(err).Int64("booking_id", b.ID).Msg("create payment intent failed")
		return nil, gatewayError("create payment intent", err)
	}

	sctx, cancel := s.store.WithTimeout(ctx)
	assigned, err := s.store.Repos().Bookings.AssignIntent(sctx, b.ID, intent.ID)
	cancel()
	if err != nil {
		return nil, err
	}
	if !assigned {
		// A concurrent request stored its intent first; hand back that one.
		current, err := s.getBooking(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if current.PaymentIntentID != nil && *current.PaymentIntentID != intent.ID {
			return s.reuseIntent(ctx, current, *current.PaymentIntentID)
		}
	}

	s.log.Info().Int64("booking_id", b.ID).Str("intent_id", intent.ID).Int64("amount", intent.Amount).Msg("payment intent created")
	return intentResponse(b.ID, intent, false), nil
}

func (s *Service) reuseIntent(ctx context.Context, b *domain.Booking, intentID string) (*IntentResponse, error) {
	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		s.log.Error().Err(err).Int64("booking_id", b.ID).Str("intent_id", intentID).Msg("get payment intent failed")
		return nil, gatewayError("get payment intent", err)
	}

	switch intent.Status {
	case gateway.StatusSucceeded:
		if err := s.confirmFromIntent(ctx, b.ID, intent); err != nil {
			return nil, err
		}
		return intentResponse(b.ID, intent, true), nil
	case gateway.StatusCanceled:
		return nil, apperr.Conflict(apperr.ReasonPaymentState, "the deposit payment for this booking was cancelled")
	}
	return intentResponse(b.ID, intent, false), nil
}

// confirmFromIntent applies a succeeded intent without waiting for its
// notification. The audit row is keyed on the intent so a repeat is a no-op.
func (s *Service) confirmFromIntent(ctx context.Context, bookingID int64, intent *gateway.Intent) error {
	var changed *domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		b, err := r.Bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		key := "intent:" + intent.ID
		seen, err := r.Audit.Exists(ctx, key)
		if err != nil || seen {
			return err
		}

		entry, modified := s.settle(b, intent)
		if !modified {
			return nil
		}
		entry.BookingID = b.ID
		entry.DedupeKey = key
		entry.EventType = "intent.status_check"
		entry.Applied = true
		if err := b.CheckInvariants(); err != nil {
			return err
		}
		if err := r.Bookings.Save(ctx, b); err != nil {
			return err
		}
		inserted, err := r.Audit.AppendIfAbsent(ctx, entry)
		if err != nil {
			return err
		}
		if !inserted {
			return errDuplicateEvent
		}
		changed = b
		return nil
	})
	if errors.Is(err, errDuplicateEvent) {
		return nil
	}
	if err != nil {
		return err
	}
	if changed != nil {
		s.log.Info().Int64("booking_id", bookingID).Str("intent_id", intent.ID).Msg("booking confirmed from succeeded intent")
		s.notify(changed)
	}
	return nil
}

// Refund asks the gateway to return some or all of a paid deposit. The
// booking itself changes only when the refund notification arrives.
func (s *Service) Refund(ctx context.Context, bookingID int64, req RefundRequest) (*RefundResponse, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PaymentIntentID == nil {
		metrics.RefundsRequested.WithLabelValues("rejected").Inc()
		return nil, apperr.Conflict(apperr.ReasonPaymentState, "booking has no deposit payment")
	}

	intent, err := s.gateway.GetIntent(ctx, *b.PaymentIntentID)
	if err != nil {
		metrics.RefundsRequested.WithLabelValues("error").Inc()
		return nil, gatewayError("get payment intent", err)
	}
	if intent.Status != gateway.StatusSucceeded {
		metrics.RefundsRequested.WithLabelValues("rejected").Inc()
		return nil, apperr.Conflict(apperr.ReasonPaymentState,
			fmt.Sprintf("payment is %s; only succeeded payments can be refunded", intent.Status))
	}
	if req.Amount != nil && *req.Amount > intent.Amount {
		metrics.RefundsRequested.WithLabelValues("rejected").Inc()
		return nil, apperr.Invalid("amount", "lte", fmt.Sprintf("amount exceeds the %d paid", intent.Amount))
	}

	refund, err := s.gateway.CreateRefund(ctx, gateway.CreateRefundParams{
		PaymentIntentID: intent.ID,
		Amount:          req.Amount,
		Reason:          req.Reason,
		IdempotencyKey:  uuid.NewString(),
	})
	if err != nil {
		metrics.RefundsRequested.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Int64("booking_id", b.ID).Str("intent_id", intent.ID).Msg("create refund failed")
		return nil, gatewayError("create refund", err)
	}

	metrics.RefundsRequested.WithLabelValues("ok").Inc()
	s.log.Info().
		Int64("booking_id", b.ID).
		Str("refund_id", refund.ID).
		Int64("amount", refund.Amount).
		Str("reason", req.Reason).
		Msg("refund requested")
	return &RefundResponse{RefundID: refund.ID, Amount: refund.Amount, Currency: refund.Currency, Status: refund.Status}, nil
}

func (s *Service) getBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	return s.store.Repos().Bookings.GetByID(ctx, id)
}

func intentResponse(bookingID int64, intent *gateway.Intent, confirmed bool) *IntentResponse {
	return &IntentResponse{
		BookingID:    bookingID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Status:       intent.Status,
		Confirmed:    confirmed,
	}
}
