package availability

import (
	"time"

	"tablebooking/internal/domain"
)

// Window decides whether a date is open for booking relative to the
// venue's local calendar day.
type Window struct {
	loc     *time.Location
	maxDays int
	now     func() time.Time
}

func NewWindow(loc *time.Location, maxDays int, now func() time.Time) *Window {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Window{loc: loc, maxDays: maxDays, now: now}
}

// Today is the current calendar day at the venue.
func (w *Window) Today() domain.Date {
	return domain.DateOf(w.now().In(w.loc))
}

// IsBookable reports whether today <= date <= today+maxDays.
func (w *Window) IsBookable(date domain.Date) bool {
	today := w.Today()
	return date.Between(today, today.AddDays(w.maxDays))
}

func (w *Window) Location() *time.Location { return w.loc }
