package booking

import (
	"time"

	"tablebooking/internal/domain"
)

type Customer struct {
	Ref   string `json:"ref" validate:"omitempty,max=255"`
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

type CreateBookingRequest struct {
	TableID        int64              `json:"table_id" binding:"required" validate:"min=1"`
	PartnerTableID *int64             `json:"partner_table_id" validate:"omitempty,min=1"`
	Date           string             `json:"date" binding:"required"`
	Time           string             `json:"time" binding:"required"`
	PartySize      int                `json:"party_size" binding:"required" validate:"min=1,max=50"`
	Customer       Customer           `json:"customer"`
	DrinksPackage  string             `json:"package" validate:"omitempty,max=64"`
	CustomOrder    []domain.OrderLine `json:"custom_order" validate:"omitempty,dive"`
}

type RescheduleRequest struct {
	TableID        int64  `json:"table_id" binding:"required" validate:"min=1"`
	PartnerTableID *int64 `json:"partner_table_id" validate:"omitempty,min=1"`
	Date           string `json:"date" binding:"required"`
	Time           string `json:"time" binding:"required"`
	PartySize      int    `json:"party_size" binding:"required" validate:"min=1,max=50"`
}

type UpdateStatusRequest struct {
	Status domain.BookingStatus `json:"status" binding:"required"`
	Notes  *string              `json:"notes"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

type ListRequest struct {
	Status string `form:"status"`
	From   string `form:"from"`
	To     string `form:"to"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type ListResponse struct {
	Bookings []domain.Booking `json:"bookings"`
	Total    int64            `json:"total"`
}

// BookingView is what a customer holding the reference code gets back.
// Staff notes and gateway identifiers stay on the staff routes.
type BookingView struct {
	ID               int64                `json:"id"`
	Reference        string               `json:"reference"`
	CustomerName     string               `json:"customer_name"`
	CustomerEmail    string               `json:"customer_email"`
	TableID          int64                `json:"table_id"`
	PartnerTableID   *int64               `json:"partner_table_id,omitempty"`
	BookingDate      domain.Date          `json:"booking_date"`
	BookingTime      string               `json:"booking_time"`
	PartySize        int                  `json:"party_size"`
	Status           domain.BookingStatus `json:"status"`
	DrinksPackage    string               `json:"drinks_package,omitempty"`
	CustomOrder      []domain.OrderLine   `json:"custom_order,omitempty"`
	DepositAmount    int64                `json:"deposit_amount"`
	Currency         string               `json:"currency"`
	DepositPaid      bool                 `json:"deposit_paid"`
	DepositForfeited bool                 `json:"deposit_forfeited"`
	DepositRefunded  bool                 `json:"deposit_refunded"`
	RefundAmount     int64                `json:"refund_amount"`
	CreatedAt        time.Time            `json:"created_at"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
}

func viewOf(b *domain.Booking) BookingView {
	return BookingView{
		ID:               b.ID,
		Reference:        b.Reference,
		CustomerName:     b.CustomerName,
		CustomerEmail:    b.CustomerEmail,
		TableID:          b.TableID,
		PartnerTableID:   b.PartnerTableID,
		BookingDate:      b.BookingDate,
		BookingTime:      b.BookingTime,
		PartySize:        b.PartySize,
		Status:           b.Status,
		DrinksPackage:    b.DrinksPackage,
		CustomOrder:      b.CustomOrder,
		DepositAmount:    b.DepositAmount,
		Currency:         b.Currency,
		DepositPaid:      b.DepositPaid,
		DepositForfeited: b.DepositForfeited,
		DepositRefunded:  b.DepositRefunded,
		RefundAmount:     b.RefundAmount,
		CreatedAt:        b.CreatedAt,
		CancelledAt:      b.CancelledAt,
	}
}
