package availability

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"tablebooking/internal/cache"
	"tablebooking/internal/domain"
	"tablebooking/internal/metrics"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/repository"
)

// Query asks whether a table (or a combined pair) is free at one slot.
type Query struct {
	TableID          int64
	PartnerTableID   *int64
	Date             domain.Date
	Time             string
	ExcludeBookingID *int64
}

// Result is the decision for a Query. Reason names the first rule that
// failed; Conflicts and Blocks list everything found.
type Result struct {
	Available bool                  `json:"available"`
	Reason    apperr.ConflictReason `json:"reason,omitempty"`
	Table     *domain.Table         `json:"-"`
	Partner   *domain.Table         `json:"-"`
	Conflicts []domain.Booking      `json:"conflicts"`
	Blocks    []domain.TableBlock   `json:"blocks"`
}

// Err converts an unavailable result into a conflict error.
func (r *Result) Err() error {
	if r.Available {
		return nil
	}
	return &apperr.ConflictError{
		Reason:   r.Reason,
		Message:  reasonMessage(r.Reason),
		Bookings: r.Conflicts,
		Blocks:   r.Blocks,
	}
}

func reasonMessage(reason apperr.ConflictReason) string {
	switch reason {
	case apperr.ReasonOutsideWindow:
		return "date is outside the booking window"
	case apperr.ReasonTableInactive:
		return "table is not in service"
	case apperr.ReasonTableBlocked:
		return "table is blocked on this date"
	case apperr.ReasonCombinationInvalid:
		return "tables cannot be combined"
	case apperr.ReasonTimeConflict:
		return "table is already booked within two hours of this time"
	}
	return "table is not available"
}

// AlternativesQuery asks for every table or pair that can seat a party at a slot.
type AlternativesQuery struct {
	Date             domain.Date
	Time             string
	PartySize        int
	ExcludeBookingID *int64
}

// Day summarises one table's availability over a whole date.
type Day struct {
	TableID     int64               `json:"table_id"`
	Date        domain.Date         `json:"date"`
	Bookable    bool                `json:"bookable"`
	Active      bool                `json:"active"`
	Blocks      []domain.TableBlock `json:"blocks"`
	BookedSlots []string            `json:"booked_slots"`
	FreeSlots   []string            `json:"free_slots"`
}

// Engine makes availability decisions. Every method reads through the
// repositories it is given, so callers choose whether the read happens
// inside a transaction.
type Engine struct {
	window *Window
	tables *cache.TableCache
	slots  []string
	log    *zerolog.Logger
}

func NewEngine(window *Window, tables *cache.TableCache, slots []string, log *zerolog.Logger) *Engine {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Engine{window: window, tables: tables, slots: slots, log: log}
}

func (e *Engine) Window() *Window { return e.window }

// Check runs the availability rules for q against the authoritative store.
func (e *Engine) Check(ctx context.Context, r repository.Repos, q Query) (*Result, error) {
	hour, err := domain.SlotHour(q.Time)
	if err != nil {
		return nil, apperr.Invalid("time", "slot", err.Error())
	}

	if !e.window.IsBookable(q.Date) {
		metrics.ObserveAvailability(false)
		return &Result{Reason: apperr.ReasonOutsideWindow}, nil
	}

	res := &Result{}
	res.Table, err = r.Tables.GetByID(ctx, q.TableID)
	if err != nil {
		return nil, err
	}
	ids := []int64{res.Table.ID}
	if q.PartnerTableID != nil {
		res.Partner, err = r.Tables.GetByID(ctx, *q.PartnerTableID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, res.Partner.ID)
	}

	existing, err := r.Bookings.ListOccupying(ctx, ids, q.Date, q.ExcludeBookingID)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if e.conflicts(b, hour) {
			res.Conflicts = append(res.Conflicts, b)
		}
	}

	res.Blocks, err = r.Blocks.Covering(ctx, ids, q.Date)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Partner != nil && !Combinable(res.Table, res.Partner):
		res.Reason = apperr.ReasonCombinationInvalid
	case !res.Table.IsActive || (res.Partner != nil && !res.Partner.IsActive):
		res.Reason = apperr.ReasonTableInactive
	case len(res.Blocks) > 0:
		res.Reason = apperr.ReasonTableBlocked
	case len(res.Conflicts) > 0:
		res.Reason = apperr.ReasonTimeConflict
	default:
		res.Available = true
	}
	metrics.ObserveAvailability(res.Available)
	return res, nil
}

// conflicts applies the slot-hour rule. A stored booking whose time no
// longer parses is treated as conflicting.
func (e *Engine) conflicts(b domain.Booking, hour int) bool {
	h, err := b.SlotHour()
	if err != nil {
		e.log.Warn().Int64("booking_id", b.ID).Str("time", b.BookingTime).Msg("stored booking has unparsable slot time")
		return true
	}
	return domain.SlotsConflict(h, hour)
}

// Alternatives lists free tables and combined pairs that seat the party,
// tightest fit first, then by table number. The catalog may come from the
// cache; bookings and blocks always come from the store, and every
// candidate table is re-read before it is returned.
func (e *Engine) Alternatives(ctx context.Context, r repository.Repos, q AlternativesQuery) ([]domain.Alternative, error) {
	hour, err := domain.SlotHour(q.Time)
	if err != nil {
		return nil, apperr.Invalid("time", "slot", err.Error())
	}
	if q.PartySize <= 0 {
		return nil, apperr.Invalid("party_size", "min", "party size must be positive")
	}
	if !e.window.IsBookable(q.Date) {
		return []domain.Alternative{}, nil
	}

	catalog, err := e.catalog(ctx, r)
	if err != nil {
		return nil, err
	}

	bookings, err := r.Bookings.ListOccupyingOnDate(ctx, q.Date, q.ExcludeBookingID)
	if err != nil {
		return nil, err
	}
	blocks, err := r.Blocks.CoveringAny(ctx, q.Date)
	if err != nil {
		return nil, err
	}

	unavailable := make(map[int64]bool)
	for _, b := range bookings {
		if e.conflicts(b, hour) {
			for _, id := range b.TableIDs() {
				unavailable[id] = true
			}
		}
	}
	for _, bl := range blocks {
		unavailable[bl.TableID] = true
	}

	// Re-read the candidate tables so a stale catalog cannot offer a
	// table that was deactivated or resized since it was cached.
	numbers := make([]int, 0, len(catalog))
	for _, t := range catalog {
		if !unavailable[t.ID] {
			numbers = append(numbers, t.Number)
		}
	}
	fresh, err := r.Tables.GetByNumbers(ctx, numbers)
	if err != nil {
		return nil, err
	}
	free := make([]*domain.Table, 0, len(fresh))
	for _, n := range numbers {
		t, ok := fresh[n]
		if ok && t.IsActive && !unavailable[t.ID] {
			free = append(free, t)
		}
	}

	return buildAlternatives(free, q.PartySize), nil
}

func buildAlternatives(free []*domain.Table, party int) []domain.Alternative {
	byNumber := make(map[int]*domain.Table, len(free))
	for _, t := range free {
		byNumber[t.Number] = t
	}

	out := []domain.Alternative{}
	for _, t := range free {
		if Fits(t, party) {
			out = append(out, domain.Alternative{Table: *t, CapacityMin: t.CapacityMin, CapacityMax: t.CapacityMax})
		}
		for _, n := range t.CombinableWith {
			p, ok := byNumber[n]
			if !ok || n <= t.Number || !FitsCombined(t, p, party) {
				continue
			}
			lo, hi := CombinedRange(t, p)
			partner := *p
			out = append(out, domain.Alternative{Table: *t, Partner: &partner, CapacityMin: lo, CapacityMax: hi})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if sa, sb := a.CapacityMax-party, b.CapacityMax-party; sa != sb {
			return sa < sb
		}
		if a.Table.Number != b.Table.Number {
			return a.Table.Number < b.Table.Number
		}
		if (a.Partner == nil) != (b.Partner == nil) {
			return a.Partner == nil
		}
		return a.Partner != nil && a.Partner.Number < b.Partner.Number
	})
	return out
}

// catalog returns active tables, preferring the cache.
func (e *Engine) catalog(ctx context.Context, r repository.Repos) ([]domain.Table, error) {
	if tables, ok, err := e.tables.Get(ctx, true); err != nil {
		e.log.Warn().Err(err).Msg("table cache read failed")
	} else if ok {
		return tables, nil
	}

	tables, err := r.Tables.List(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := e.tables.Set(ctx, true, tables); err != nil {
		e.log.Warn().Err(err).Msg("table cache write failed")
	}
	return tables, nil
}

// DayView reports which configured slots are booked or free on date.
func (e *Engine) DayView(ctx context.Context, r repository.Repos, tableID int64, date domain.Date) (*Day, error) {
	t, err := r.Tables.GetByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	day := &Day{
		TableID:     t.ID,
		Date:        date,
		Bookable:    e.window.IsBookable(date),
		Active:      t.IsActive,
		BookedSlots: []string{},
		FreeSlots:   []string{},
	}

	bookings, err := r.Bookings.ListOccupying(ctx, []int64{t.ID}, date, nil)
	if err != nil {
		return nil, err
	}
	day.Blocks, err = r.Blocks.Covering(ctx, []int64{t.ID}, date)
	if err != nil {
		return nil, err
	}

	for _, b := range bookings {
		day.BookedSlots = append(day.BookedSlots, b.BookingTime)
	}
	if !day.Bookable || !day.Active || len(day.Blocks) > 0 {
		return day, nil
	}

	for _, slot := range e.slots {
		hour, err := domain.SlotHour(slot)
		if err != nil {
			continue
		}
		taken := false
		for _, b := range bookings {
			if e.conflicts(b, hour) {
				taken = true
				break
			}
		}
		if !taken {
			day.FreeSlots = append(day.FreeSlots, slot)
		}
	}
	return day, nil
}
