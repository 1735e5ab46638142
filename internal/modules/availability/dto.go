package availability

import "tablebooking/internal/domain"

// CheckRequest is the query string of GET /availability.
type CheckRequest struct {
	TableID          *int64 `form:"table_id" binding:"omitempty,min=1"`
	PartnerTableID   *int64 `form:"partner_table_id" binding:"omitempty,min=1"`
	Date             string `form:"date" binding:"required"`
	Time             string `form:"time"`
	PartySize        int    `form:"party_size" binding:"omitempty,min=1"`
	ExcludeBookingID *int64 `form:"exclude_booking_id" binding:"omitempty,min=1"`
}

type CheckResponse struct {
	Available    bool                 `json:"available"`
	Reason       string               `json:"reason,omitempty"`
	Conflicts    []domain.BookedSlot  `json:"conflicts"`
	Blocks       []domain.TableBlock  `json:"blocks"`
	Alternatives []domain.Alternative `json:"alternatives"`
	Day          *Day                 `json:"day,omitempty"`
}
