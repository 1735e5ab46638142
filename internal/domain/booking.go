package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingNoShow    BookingStatus = "NO_SHOW"
)

// ConflictWindowHours is the span a booking occupies on its table,
// measured in whole slot hours.
const ConflictWindowHours = 2

// OccupyingStatuses are the statuses that hold a table.
var OccupyingStatuses = []BookingStatus{BookingPending, BookingConfirmed}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingNoShow:
		return true
	}
	return false
}

// Occupies reports whether a booking in this status blocks its table.
func (s BookingStatus) Occupies() bool {
	return s == BookingPending || s == BookingConfirmed
}

// staffTransitions lists the status changes staff may make by hand.
var staffTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingNoShow, BookingCancelled},
}

// CanTransitionTo reports whether staff may move a booking from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range staffTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderLine is one item of a custom drinks order.
type OrderLine struct {
	Item     string `json:"item" validate:"required,max=128"`
	Quantity int    `json:"quantity" validate:"min=1,max=100"`
}

type Booking struct {
	ID             int64         `gorm:"primaryKey" json:"id"`
	Reference      string        `gorm:"type:varchar(16);uniqueIndex;not null" json:"reference"`
	CustomerRef    string        `gorm:"type:varchar(255);not null" json:"customer_ref"`
	CustomerName   string        `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail  string        `gorm:"type:varchar(255)" json:"customer_email"`
	CustomerPhone  string        `gorm:"type:varchar(32)" json:"customer_phone,omitempty"`
	TableID        int64         `gorm:"not null;index:idx_bookings_table_date,priority:1" json:"table_id"`
	PartnerTableID *int64        `gorm:"index" json:"partner_table_id,omitempty"`
	BookingDate    Date          `gorm:"type:date;not null;index:idx_bookings_table_date,priority:2;index:idx_bookings_status_date,priority:2" json:"booking_date"`
	BookingTime    string        `gorm:"type:varchar(5);not null" json:"booking_time"`
	PartySize      int           `gorm:"not null" json:"party_size"`
	Status         BookingStatus `gorm:"type:varchar(16);not null;default:'PENDING';index:idx_bookings_status_date,priority:1" json:"status"`
	DrinksPackage  string        `gorm:"type:varchar(64)" json:"drinks_package,omitempty"`
	CustomOrder    []OrderLine   `gorm:"serializer:json;type:text" json:"custom_order,omitempty"`

	DepositAmount    int64      `gorm:"not null" json:"deposit_amount"`
	Currency         string     `gorm:"type:varchar(3);not null" json:"currency"`
	DepositPaid      bool       `gorm:"not null;default:false" json:"deposit_paid"`
	DepositPaidAt    *time.Time `json:"deposit_paid_at,omitempty"`
	DepositForfeited bool       `gorm:"not null;default:false" json:"deposit_forfeited"`
	PaymentIntentID  *string    `gorm:"type:varchar(128);uniqueIndex" json:"payment_intent_id,omitempty"`
	PaymentChargeID  *string    `gorm:"type:varchar(128)" json:"payment_charge_id,omitempty"`
	DepositRefunded  bool       `gorm:"not null;default:false" json:"deposit_refunded"`
	RefundAmount     int64      `gorm:"not null;default:0" json:"refund_amount"`

	InternalNotes string     `gorm:"type:text" json:"internal_notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func (Booking) TableName() string { return "bookings" }

// BookedSlot is the part of a booking that may be shown to anyone asking
// about availability: where and when, never who.
type BookedSlot struct {
	ID             int64         `json:"id"`
	TableID        int64         `json:"table_id"`
	PartnerTableID *int64        `json:"partner_table_id,omitempty"`
	BookingDate    Date          `json:"booking_date"`
	BookingTime    string        `json:"booking_time"`
	Status         BookingStatus `json:"status"`
}

func (b *Booking) Slot() BookedSlot {
	return BookedSlot{
		ID:             b.ID,
		TableID:        b.TableID,
		PartnerTableID: b.PartnerTableID,
		BookingDate:    b.BookingDate,
		BookingTime:    b.BookingTime,
		Status:         b.Status,
	}
}

// Slots maps bookings to their public slot view.
func Slots(bookings []Booking) []BookedSlot {
	out := make([]BookedSlot, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookings[i].Slot())
	}
	return out
}

// TableIDs returns every table the booking occupies.
func (b *Booking) TableIDs() []int64 {
	if b.PartnerTableID != nil {
		return []int64{b.TableID, *b.PartnerTableID}
	}
	return []int64{b.TableID}
}

// SlotHour is the hour component of the booking time.
func (b *Booking) SlotHour() (int, error) {
	return SlotHour(b.BookingTime)
}

// CheckInvariants verifies the payment/status invariants of a booking.
func (b *Booking) CheckInvariants() error {
	if b.DepositPaid && b.Status != BookingConfirmed && b.Status != BookingCompleted {
		return fmt.Errorf("deposit paid but status is %s", b.Status)
	}
	if b.DepositRefunded && b.Status != BookingCancelled {
		return fmt.Errorf("deposit refunded but status is %s", b.Status)
	}
	return nil
}

// SlotHour parses an "HH:MM" slot label and returns its hour. Minutes are
// validated but ignored: conflicts are decided on whole hours.
func SlotHour(label string) (int, error) {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid slot time %q", label)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid slot hour %q", label)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid slot minute %q", label)
	}
	return h, nil
}

// SlotsConflict applies the conflict window rule to two slot hours.
func SlotsConflict(a, b int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < ConflictWindowHours
}

// BookingSlotClaim reserves one hour of a table on a date for a booking.
// The unique index is the store-level guard against double booking.
type BookingSlotClaim struct {
	ID          int64 `gorm:"primaryKey"`
	BookingID   int64 `gorm:"not null;index"`
	TableID     int64 `gorm:"not null;uniqueIndex:idx_slot_claims_unique,priority:1"`
	BookingDate Date  `gorm:"type:date;not null;uniqueIndex:idx_slot_claims_unique,priority:2"`
	Hour        int   `gorm:"not null;uniqueIndex:idx_slot_claims_unique,priority:3"`
}

func (BookingSlotClaim) TableName() string { return "booking_slot_claims" }

// ClaimsFor builds the slot claims a booking needs while it occupies its tables.
func ClaimsFor(b *Booking) ([]BookingSlotClaim, error) {
	h, err := b.SlotHour()
	if err != nil {
		return nil, err
	}
	claims := make([]BookingSlotClaim, 0, ConflictWindowHours*2)
	for _, tableID := range b.TableIDs() {
		for i := 0; i < ConflictWindowHours; i++ {
			claims = append(claims, BookingSlotClaim{
				BookingID:   b.ID,
				TableID:     tableID,
				BookingDate: b.BookingDate,
				Hour:        h + i,
			})
		}
	}
	return claims, nil
}
