package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tablebooking/internal/pkg/apperr"
)

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded  = "charge.refunded"
)

// Metadata keys written at intent creation.
const (
	MetaBookingID  = "booking_id"
	MetaBookingRef = "booking_ref"
)

// Event is one parsed gateway notification. The concrete type is one of
// *IntentSucceeded, *IntentFailed, *ChargeRefunded or *Unrecognized.
type Event interface {
	Header() EventHeader
	isEvent()
}

type EventHeader struct {
	ID      string
	Type    string
	Created time.Time
}

type IntentSucceeded struct {
	EventHeader
	Intent Intent
}

type IntentFailed struct {
	EventHeader
	Intent Intent
}

type ChargeRefunded struct {
	EventHeader
	Charge Charge
}

// Unrecognized is any event type this service does not act on.
type Unrecognized struct {
	EventHeader
}

func (e *IntentSucceeded) Header() EventHeader { return e.EventHeader }
func (e *IntentFailed) Header() EventHeader    { return e.EventHeader }
func (e *ChargeRefunded) Header() EventHeader  { return e.EventHeader }
func (e *Unrecognized) Header() EventHeader    { return e.EventHeader }

func (*IntentSucceeded) isEvent() {}
func (*IntentFailed) isEvent()    {}
func (*ChargeRefunded) isEvent()  {}
func (*Unrecognized) isEvent()    {}

type Intent struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	ClientSecret     string            `json:"client_secret"`
	LatestCharge     string            `json:"latest_charge"`
	LastPaymentError *PaymentError     `json:"last_payment_error"`
	Metadata         map[string]string `json:"metadata"`
}

type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BookingID returns the booking id embedded in metadata, if any.
func (i *Intent) BookingID() (int64, bool) {
	return metadataBookingID(i.Metadata)
}

func (i *Intent) FailureMessage() string {
	if i.LastPaymentError == nil {
		return ""
	}
	return i.LastPaymentError.Message
}

type Charge struct {
	ID             string            `json:"id"`
	PaymentIntent  string            `json:"payment_intent"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
}

func (c *Charge) BookingID() (int64, bool) {
	return metadataBookingID(c.Metadata)
}

func metadataBookingID(md map[string]string) (int64, bool) {
	raw, ok := md[MetaBookingID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes and validates a notification body. Malformed bodies
// return an apperr.ErrValidation error; unknown types parse to *Unrecognized.
func ParseEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperr.Invalid("body", "json", fmt.Sprintf("decode event: %v", err))
	}
	if env.ID == "" {
		return nil, apperr.Invalid("id", "required", "event id is required")
	}
	if env.Type == "" {
		return nil, apperr.Invalid("type", "required", "event type is required")
	}
	hdr := EventHeader{ID: env.ID, Type: env.Type, Created: time.Unix(env.Created, 0).UTC()}

	switch env.Type {
	case EventIntentSucceeded, EventIntentFailed:
		intent, err := decodeIntent(env.Data.Object)
		if err != nil {
			return nil, err
		}
		if env.Type == EventIntentSucceeded {
			return &IntentSucceeded{EventHeader: hdr, Intent: intent}, nil
		}
		return &IntentFailed{EventHeader: hdr, Intent: intent}, nil
	case EventChargeRefunded:
		charge, err := decodeCharge(env.Data.Object)
		if err != nil {
			return nil, err
		}
		return &ChargeRefunded{EventHeader: hdr, Charge: charge}, nil
	default:
		return &Unrecognized{EventHeader: hdr}, nil
	}
}

func decodeIntent(obj json.RawMessage) (Intent, error) {
	var intent Intent
	if len(obj) == 0 {
		return intent, apperr.Invalid("data.object", "required", "payment intent object is required")
	}
	if err := json.Unmarshal(obj, &intent); err != nil {
		return intent, apperr.Invalid("data.object", "json", fmt.Sprintf("decode payment intent: %v", err))
	}
	if intent.ID == "" {
		return intent, apperr.Invalid("data.object.id", "required", "payment intent id is required")
	}
	if intent.Amount < 0 {
		return intent, apperr.Invalid("data.object.amount", "min", "amount must not be negative")
	}
	return intent, nil
}

func decodeCharge(obj json.RawMessage) (Charge, error) {
	var charge Charge
	if len(obj) == 0 {
		return charge, apperr.Invalid("data.object", "required", "charge object is required")
	}
	if err := json.Unmarshal(obj, &charge); err != nil {
		return charge, apperr.Invalid("data.object", "json", fmt.Sprintf("decode charge: %v", err))
	}
	if charge.ID == "" {
		return charge, apperr.Invalid("data.object.id", "required", "charge id is required")
	}
	if charge.PaymentIntent == "" {
		return charge, apperr.Invalid("data.object.payment_intent", "required", "charge has no payment intent")
	}
	if charge.AmountRefunded < 0 {
		return charge, apperr.Invalid("data.object.amount_refunded", "min", "amount must not be negative")
	}
	return charge, nil
}
