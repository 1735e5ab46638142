package payment

// Outcome is how a gateway notification was handled.
type Outcome string

const (
	// OutcomeApplied means the event was recorded for the first time.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied means the event id was seen before; nothing changed.
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeIgnored means there was nothing to act on.
	OutcomeIgnored Outcome = "ignored"
)

type ReconcileResult struct {
	Outcome   Outcome `json:"outcome"`
	EventID   string  `json:"event_id"`
	EventType string  `json:"event_type"`
	BookingID int64   `json:"booking_id,omitempty"`
	// StateChanged reports whether the booking itself was modified.
	StateChanged bool   `json:"state_changed"`
	Reason       string `json:"reason,omitempty"`
}

type CreateIntentRequest struct {
	BookingID int64 `json:"booking_id" binding:"required" validate:"min=1"`
}

type IntentResponse struct {
	BookingID    int64  `json:"booking_id"`
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	// Confirmed is set when the intent had already succeeded and the
	// booking was confirmed on the spot.
	Confirmed bool `json:"confirmed"`
}

type RefundRequest struct {
	Amount *int64 `json:"amount" validate:"omitempty,min=1"`
	Reason string `json:"reason" validate:"max=255"`
}

type RefundResponse struct {
	RefundID string `json:"refund_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type ExportRequest struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}
