package domain

// Models lists every persisted entity for migrations.
func Models() []interface{} {
	return []interface{}{
		&Table{},
		&TableBlock{},
		&Booking{},
		&BookingSlotClaim{},
		&PaymentAuditEntry{},
	}
}
