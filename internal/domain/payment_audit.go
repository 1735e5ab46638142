package domain

import "time"

type AuditOutcome string

const (
	AuditSucceeded AuditOutcome = "SUCCEEDED"
	AuditFailed    AuditOutcome = "FAILED"
	AuditRefunded  AuditOutcome = "REFUNDED"
)

// PaymentAuditEntry is an append-only record of a gateway notification that was processed.
type PaymentAuditEntry struct {
	ID              int64        `gorm:"primaryKey" json:"id"`
	BookingID       int64        `gorm:"not null;index" json:"booking_id"`
	DedupeKey       string       `gorm:"type:varchar(160);uniqueIndex;not null" json:"dedupe_key"`
	GatewayEventID  *string      `gorm:"type:varchar(128)" json:"gateway_event_id,omitempty"`
	PaymentIntentID string       `gorm:"type:varchar(128);index" json:"payment_intent_id"`
	EventType       string       `gorm:"type:varchar(64)" json:"event_type"`
	Amount          int64        `gorm:"not null" json:"amount"`
	Currency        string       `gorm:"type:varchar(3)" json:"currency"`
	Outcome         AuditOutcome `gorm:"type:varchar(16);not null" json:"outcome"`
	Applied         bool         `gorm:"not null" json:"applied"`
	ErrorMessage    string       `gorm:"type:text" json:"error_message,omitempty"`
	RawMetadata     string       `gorm:"type:text" json:"raw_metadata,omitempty"`
	CreatedAt       time.Time    `gorm:"index" json:"created_at"`
}

func (PaymentAuditEntry) TableName() string { return "payment_audit_entries" }
