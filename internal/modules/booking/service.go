package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tablebooking/internal/domain"
	"tablebooking/internal/metrics"
	"tablebooking/internal/modules/availability"
	"tablebooking/internal/modules/livefeed"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/pkg/validator"
	"tablebooking/internal/repository"
)

const referenceAttempts = 5

type Config struct {
	DepositAmount int64
	Currency      string
}

type Service struct {
	store    *repository.Store
	engine   *availability.Engine
	notifier SlotNotifier
	cfg      Config
	log      *zerolog.Logger
	now      func() time.Time
}

func NewService(store *repository.Store, engine *availability.Engine, notifier SlotNotifier, cfg Config, log *zerolog.Logger) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Service{
		store:    store,
		engine:   engine,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// NewReference returns a fresh "TB-XXXXXXXX" code.
func NewReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TB-" + strings.ToUpper(id[:8])
}

// slot is a parsed table/date/time/party request shared by create and reschedule.
type slot struct {
	tableID   int64
	partnerID *int64
	date      domain.Date
	time      string
	party     int
}

func parseSlot(tableID int64, partnerID *int64, date, tm string, party int) (slot, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return slot{}, apperr.Invalid("date", "date", "date must be YYYY-MM-DD")
	}
	if _, err := domain.SlotHour(tm); err != nil {
		return slot{}, apperr.Invalid("time", "slot", "time must be HH:MM")
	}
	if partnerID != nil && *partnerID == tableID {
		return slot{}, apperr.Invalid("partner_table_id", "ne", "a table cannot be combined with itself")
	}
	return slot{tableID: tableID, partnerID: partnerID, date: d, time: tm, party: party}, nil
}

// checkSlot runs window, combination, capacity and availability rules inside r.
func (s *Service) checkSlot(ctx context.Context, r repository.Repos, sl slot, exclude *int64) error {
	res, err := s.engine.Check(ctx, r, availability.Query{
		TableID:          sl.tableID,
		PartnerTableID:   sl.partnerID,
		Date:             sl.date,
		Time:             sl.time,
		ExcludeBookingID: exclude,
	})
	if err != nil {
		return err
	}
	if res.Reason == apperr.ReasonOutsideWindow {
		return res.Err()
	}

	if res.Partner != nil {
		if !availability.Combinable(res.Table, res.Partner) {
			return apperr.Conflict(apperr.ReasonCombinationInvalid,
				fmt.Sprintf("tables %d and %d cannot be combined", res.Table.Number, res.Partner.Number))
		}
		if !availability.FitsCombined(res.Table, res.Partner, sl.party) {
			lo, hi := availability.CombinedRange(res.Table, res.Partner)
			return apperr.Conflict(apperr.ReasonCapacityMismatch,
				fmt.Sprintf("combined tables seat %d to %d guests", lo, hi))
		}
	} else if !availability.Fits(res.Table, sl.party) {
		return apperr.Conflict(apperr.ReasonCapacityMismatch,
			fmt.Sprintf("table %d seats %d to %d guests", res.Table.Number, res.Table.CapacityMin, res.Table.CapacityMax))
	}

	return res.Err()
}

// withAlternatives attaches fresh suggestions to a conflict error.
func (s *Service) withAlternatives(ctx context.Context, err error, sl slot, exclude *int64) error {
	var cerr *apperr.ConflictError
	if !errors.As(err, &cerr) {
		return err
	}
	metrics.BookingConflicts.WithLabelValues(string(cerr.Reason)).Inc()
	if cerr.Reason == apperr.ReasonOutsideWindow || cerr.Reason == apperr.ReasonInvalidTransition {
		return err
	}

	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	alts, altErr := s.engine.Alternatives(ctx, s.store.Repos(), availability.AlternativesQuery{
		Date: sl.date, Time: sl.time, PartySize: sl.party, ExcludeBookingID: exclude,
	})
	if altErr != nil {
		s.log.Warn().Err(altErr).Msg("alternatives lookup failed")
		return err
	}
	cerr.Alternatives = alts
	return err
}

func slotTaken() error {
	return apperr.Conflict(apperr.ReasonTimeConflict, "table was booked by another request for this time")
}

// CreateBooking validates the request and inserts a PENDING booking. The
// availability check and the insert share one transaction, and the slot
// claims make a concurrent double booking fail at the store.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	hasPackage := strings.TrimSpace(req.DrinksPackage) != ""
	if hasPackage == (len(req.CustomOrder) > 0) {
		return nil, apperr.Invalid("package", "xor", "exactly one of package or custom_order is required")
	}
	sl, err := parseSlot(req.TableID, req.PartnerTableID, req.Date, req.Time, req.PartySize)
	if err != nil {
		return nil, err
	}

	customerRef := req.Customer.Ref
	if customerRef == "" {
		customerRef = strings.ToLower(req.Customer.Email)
	}

	var created *domain.Booking
	err = s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := s.checkSlot(ctx, r, sl, nil); err != nil {
			return err
		}

		ref, err := uniqueReference(ctx, r)
		if err != nil {
			return err
		}

		b := &domain.Booking{
			Reference:      ref,
			CustomerRef:    customerRef,
			CustomerName:   req.Customer.Name,
			CustomerEmail:  req.Customer.Email,
			CustomerPhone:  req.Customer.Phone,
			TableID:        sl.tableID,
			PartnerTableID: sl.partnerID,
			BookingDate:    sl.date,
			BookingTime:    sl.time,
			PartySize:      sl.party,
			Status:         domain.BookingPending,
			DrinksPackage:  strings.TrimSpace(req.DrinksPackage),
			CustomOrder:    req.CustomOrder,
			DepositAmount:  s.cfg.DepositAmount,
			Currency:       s.cfg.Currency,
		}
		if err := r.Bookings.Create(ctx, b); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return slotTaken()
			}
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, s.withAlternatives(ctx, err, sl, nil)
	}

	metrics.BookingsCreated.Inc()
	s.log.Info().
		Int64("booking_id", created.ID).
		Str("reference", created.Reference).
		Int64("table_id", created.TableID).
		Str("date", created.BookingDate.String()).
		Str("time", created.BookingTime).
		Msg("booking created")
	s.notify(created)
	return created, nil
}

func uniqueReference(ctx context.Context, r repository.Repos) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		ref := NewReference()
		taken, err := r.Bookings.ReferenceExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique booking reference")
}

func (s *Service) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	return s.store.Repos().Bookings.GetByID(ctx, id)
}

func (s *Service) GetBookingByReference(ctx context.Context, ref string) (*domain.Booking, error) {
	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	return s.store.Repos().Bookings.GetByReference(ctx, strings.ToUpper(strings.TrimSpace(ref)))
}

func (s *Service) ListBookings(ctx context.Context, req ListRequest) (*ListResponse, error) {
	var f repository.BookingFilter
	if req.Status != "" {
		st := domain.BookingStatus(strings.ToUpper(req.Status))
		if !st.Valid() {
			return nil, apperr.Invalid("status", "oneof", "unknown booking status")
		}
		f.Status = &st
	}
	if req.From != "" {
		d, err := domain.ParseDate(req.From)
		if err != nil {
			return nil, apperr.Invalid("from", "date", "from must be YYYY-MM-DD")
		}
		f.From = &d
	}
	if req.To != "" {
		d, err := domain.ParseDate(req.To)
		if err != nil {
			return nil, apperr.Invalid("to", "date", "to must be YYYY-MM-DD")
		}
		f.To = &d
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, apperr.Invalid("to", "gtefield", "to must not be before from")
	}
	f.Limit, f.Offset = req.Limit, req.Offset
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	list, total, err := s.store.Repos().Bookings.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Bookings: list, Total: total}, nil
}

// UpdateStatus applies a staff status change. Leaving a paid booking through
// NO_SHOW or CANCELLED forfeits the deposit.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req UpdateStatusRequest) (*domain.Booking, error) {
	next := domain.BookingStatus(strings.ToUpper(string(req.Status)))
	if !next.Valid() {
		return nil, apperr.Invalid("status", "oneof", "unknown booking status")
	}

	var updated *domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		b, err := r.Bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(next) {
			return apperr.Conflict(apperr.ReasonInvalidTransition,
				fmt.Sprintf("cannot move booking from %s to %s", b.Status, next))
		}

		b.Status = next
		if (next == domain.BookingNoShow || next == domain.BookingCancelled) && b.DepositPaid {
			b.DepositPaid = false
			b.DepositForfeited = true
		}
		if next == domain.BookingCancelled {
			now := s.now()
			b.CancelledAt = &now
		}
		if req.Notes != nil {
			b.InternalNotes = *req.Notes
		}
		if err := b.CheckInvariants(); err != nil {
			return fmt.Errorf("booking %d: %w", b.ID, err)
		}

		if err := r.Bookings.Save(ctx, b); err != nil {
			return err
		}
		if !next.Occupies() {
			if err := r.Bookings.ReleaseClaims(ctx, b.ID); err != nil {
				return err
			}
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("booking_id", id).Str("status", string(next)).Msg("booking status updated")
	s.notify(updated)
	return updated, nil
}

func (s *Service) UpdateNotes(ctx context.Context, id int64, req UpdateNotesRequest) (*domain.Booking, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	var updated *domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		b, err := r.Bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		b.InternalNotes = req.Notes
		if err := r.Bookings.Save(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Reschedule moves an active booking to another table, date or time,
// re-running every booking rule with the booking itself excluded.
func (s *Service) Reschedule(ctx context.Context, id int64, req RescheduleRequest) (*domain.Booking, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	sl, err := parseSlot(req.TableID, req.PartnerTableID, req.Date, req.Time, req.PartySize)
	if err != nil {
		return nil, err
	}

	var before, after domain.Booking
	err = s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		b, err := r.Bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !b.Status.Occupies() {
			return apperr.Conflict(apperr.ReasonInvalidTransition,
				fmt.Sprintf("a %s booking cannot be rescheduled", b.Status))
		}
		before = *b

		if err := s.checkSlot(ctx, r, sl, &b.ID); err != nil {
			return err
		}

		b.TableID = sl.tableID
		b.PartnerTableID = sl.partnerID
		b.BookingDate = sl.date
		b.BookingTime = sl.time
		b.PartySize = sl.party
		if err := r.Bookings.Save(ctx, b); err != nil {
			return err
		}
		if err := r.Bookings.ReplaceClaims(ctx, b); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return slotTaken()
			}
			return err
		}
		after = *b
		return nil
	})
	if err != nil {
		return nil, s.withAlternatives(ctx, err, sl, &id)
	}

	s.log.Info().Int64("booking_id", id).
		Str("from", before.BookingDate.String()+" "+before.BookingTime).
		Str("to", after.BookingDate.String()+" "+after.BookingTime).
		Msg("booking rescheduled")

	released := before
	released.Status = domain.BookingCancelled
	s.notify(&released)
	s.notify(&after)
	return &after, nil
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
