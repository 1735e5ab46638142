package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tablebooking/internal/domain"
	"tablebooking/internal/gateway"
	"tablebooking/internal/metrics"
	"tablebooking/internal/modules/livefeed"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/repository"
)

// errDuplicateEvent rolls back a transaction that lost the race to record an event.
var errDuplicateEvent = errors.New("gateway event already recorded")

type Config struct {
	WebhookSecret      string
	SignatureTolerance time.Duration
	// Location is the venue time zone used for audit export date ranges.
	Location *time.Location
}

type Service struct {
	store    *repository.Store
	gateway  Gateway
	notifier SlotNotifier
	cfg      Config
	log      *zerolog.Logger
	now      func() time.Time
}

func NewService(store *repository.Store, gw Gateway, notifier SlotNotifier, cfg Config, log *zerolog.Logger) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Service{
		store:    store,
		gateway:  gw,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Reconcile verifies and applies one gateway notification. The signature is
// checked over the exact bytes received before anything is parsed.
func (s *Service) Reconcile(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error) {
	if err := gateway.VerifySignature(payload, signature, s.cfg.WebhookSecret, s.cfg.SignatureTolerance, s.now()); err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return nil, err
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "malformed").Inc()
		return nil, err
	}
	hdr := event.Header()

	var res *ReconcileResult
	switch ev := event.(type) {
	case *gateway.IntentSucceeded:
		id, ok := ev.Intent.BookingID()
		res, err = s.record(ctx, hdr, ev.Intent.ID, id, ok, func(b *domain.Booking) (*domain.PaymentAuditEntry, bool) {
			return s.settle(b, &ev.Intent)
		})
	case *gateway.IntentFailed:
		id, ok := ev.Intent.BookingID()
		res, err = s.record(ctx, hdr, ev.Intent.ID, id, ok, func(b *domain.Booking) (*domain.PaymentAuditEntry, bool) {
			return failedEntry(b, &ev.Intent), false
		})
	case *gateway.ChargeRefunded:
		id, ok := ev.Charge.BookingID()
		res, err = s.record(ctx, hdr, ev.Charge.PaymentIntent, id, ok, func(b *domain.Booking) (*domain.PaymentAuditEntry, bool) {
			return s.refunded(b, &ev.Charge)
		})
	default:
		s.log.Info().Str("event_id", hdr.ID).Str("event_type", hdr.Type).Msg("ignoring unhandled gateway event")
		res = &ReconcileResult{Outcome: OutcomeIgnored, EventID: hdr.ID, EventType: hdr.Type, Reason: apperr.ErrUnrecognizedEvent.Error()}
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(hdr.Type, "error").Inc()
		return nil, err
	}

	metrics.WebhookEvents.WithLabelValues(hdr.Type, string(res.Outcome)).Inc()
	return res, nil
}

// mutation applies an event to a locked booking. It returns the audit entry
// to append and whether the booking was modified.
type mutation func(b *domain.Booking) (*domain.PaymentAuditEntry, bool)

// record resolves the booking, dedupes on the event id and applies mutate,
// writing the booking and its audit entry in one transaction.
func (s *Service) record(ctx context.Context, hdr gateway.EventHeader, intentID string, bookingID int64, hasBookingID bool, mutate mutation) (*ReconcileResult, error) {
	res := &ReconcileResult{EventID: hdr.ID, EventType: hdr.Type}
	var changed *domain.Booking

	err := s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		b, err := resolveBooking(ctx, r, bookingID, hasBookingID, intentID)
		if err != nil {
			return err
		}
		if b == nil {
			res.Outcome = OutcomeIgnored
			res.Reason = "no booking matches the event"
			return nil
		}
		res.BookingID = b.ID
		if b.PaymentIntentID != nil && intentID != "" && *b.PaymentIntentID != intentID {
			res.Outcome = OutcomeIgnored
			res.Reason = "event intent does not match the booking"
			return nil
		}

		seen, err := r.Audit.Exists(ctx, hdr.ID)
		if err != nil {
			return err
		}
		if seen {
			res.Outcome = OutcomeAlreadyApplied
			return nil
		}

		before := b.Status
		entry, modified := mutate(b)
		entry.BookingID = b.ID
		entry.DedupeKey = hdr.ID
		entry.GatewayEventID = &hdr.ID
		entry.EventType = hdr.Type
		entry.Applied = modified
		if modified {
			if err := b.CheckInvariants(); err != nil {
				return err
			}
			if err := r.Bookings.Save(ctx, b); err != nil {
				return err
			}
			if before.Occupies() && !b.Status.Occupies() {
				if err := r.Bookings.ReleaseClaims(ctx, b.ID); err != nil {
					return err
				}
			}
			changed = b
		}

		inserted, err := r.Audit.AppendIfAbsent(ctx, entry)
		if err != nil {
			return err
		}
		if !inserted {
			return errDuplicateEvent
		}
		res.Outcome = OutcomeApplied
		res.StateChanged = modified
		return nil
	})
	if errors.Is(err, errDuplicateEvent) {
		changed = nil
		res.Outcome = OutcomeAlreadyApplied
		res.StateChanged = false
		err = nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("event_id", hdr.ID).Str("event_type", hdr.Type).Msg("gateway event not applied")
		return nil, err
	}

	ev := s.log.Info().Str("event_id", hdr.ID).Str("event_type", hdr.Type).Str("outcome", string(res.Outcome))
	if res.BookingID != 0 {
		ev = ev.Int64("booking_id", res.BookingID)
	}
	if res.Reason != "" {
		ev = ev.Str("reason", res.Reason)
	}
	ev.Bool("state_changed", res.StateChanged).Msg("gateway event reconciled")

	if changed != nil {
		s.notify(changed)
	}
	return res, nil
}

// resolveBooking locks the booking named in metadata, falling back to the
// booking that holds the intent. A nil booking means nothing matched.
func resolveBooking(ctx context.Context, r repository.Repos, bookingID int64, hasBookingID bool, intentID string) (*domain.Booking, error) {
	if hasBookingID {
		b, err := r.Bookings.GetForUpdate(ctx, bookingID)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	if intentID == "" {
		return nil, nil
	}

	b, err := r.Bookings.GetByIntentID(ctx, intentID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Bookings.GetForUpdate(ctx, b.ID)
}

// settle confirms a PENDING booking whose intent succeeded. A booking staff
// already confirmed (or completed) by hand only has the payment recorded.
// Any other status is left alone and the attempt is still recorded.
func (s *Service) settle(b *domain.Booking, intent *gateway.Intent) (*domain.PaymentAuditEntry, bool) {
	entry := &domain.PaymentAuditEntry{
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Outcome:         domain.AuditSucceeded,
		RawMetadata:     encodeMetadata(intent.Metadata),
	}
	switch {
	case b.Status == domain.BookingPending:
		b.Status = domain.BookingConfirmed
	case b.DepositPaid || b.DepositForfeited:
		return entry, false
	case b.Status == domain.BookingConfirmed || b.Status == domain.BookingCompleted:
	default:
		s.log.Warn().Int64("booking_id", b.ID).Str("status", string(b.Status)).Str("intent_id", intent.ID).
			Msg("deposit succeeded for a booking that is no longer pending")
		return entry, false
	}

	now := s.now()
	b.DepositPaid = true
	b.DepositPaidAt = &now
	if b.PaymentIntentID == nil {
		id := intent.ID
		b.PaymentIntentID = &id
	}
	if intent.LatestCharge != "" {
		charge := intent.LatestCharge
		b.PaymentChargeID = &charge
	}
	return entry, true
}

func failedEntry(b *domain.Booking, intent *gateway.Intent) *domain.PaymentAuditEntry {
	msg := intent.FailureMessage()
	if msg == "" {
		msg = "payment failed"
	}
	return &domain.PaymentAuditEntry{
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Outcome:         domain.AuditFailed,
		ErrorMessage:    msg,
		RawMetadata:     encodeMetadata(intent.Metadata),
	}
}

// refunded cancels a CONFIRMED booking. Refunds for bookings in any other
// status are recorded without touching the booking.
func (s *Service) refunded(b *domain.Booking, charge *gateway.Charge) (*domain.PaymentAuditEntry, bool) {
	entry := &domain.PaymentAuditEntry{
		PaymentIntentID: charge.PaymentIntent,
		Amount:          charge.AmountRefunded,
		Currency:        charge.Currency,
		Outcome:         domain.AuditRefunded,
		RawMetadata:     encodeMetadata(charge.Metadata),
	}
	if b.Status != domain.BookingConfirmed {
		entry.ErrorMessage = "booking is " + string(b.Status) + "; refund not applied"
		return entry, false
	}

	now := s.now()
	b.Status = domain.BookingCancelled
	b.CancelledAt = &now
	b.DepositPaid = false
	b.DepositRefunded = true
	b.RefundAmount = charge.AmountRefunded
	return entry, true
}

func encodeMetadata(md map[string]string) string {
	if len(md) == 0 {
		return ""
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (s *Service) notify(b *domain.Booking) {
	s.notifier.SlotChanged(livefeed.SlotChange{
		BookingID:      b.ID,
		TableID:        b.TableID,
		PartnerTableID: b.PartnerTableID,
		Date:           b.BookingDate,
		Time:           b.BookingTime,
		Status:         b.Status,
	})
}
