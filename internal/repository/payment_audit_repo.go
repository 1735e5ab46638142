package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tablebooking/internal/domain"
)

type PaymentAuditRepository struct {
	db *gorm.DB
}

func NewPaymentAuditRepository(db *gorm.DB) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db}
}

// AppendIfAbsent inserts e unless an entry with the same dedupe key exists.
// It reports whether the row was written.
func (r *PaymentAuditRepository) AppendIfAbsent(ctx context.Context, e *domain.PaymentAuditEntry) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(e)
	if res.Error != nil {
		return false, classify(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PaymentAuditRepository) Exists(ctx context.Context, dedupeKey string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.PaymentAuditEntry{}).
		Where("dedupe_key = ?", dedupeKey).
		Count(&n).Error
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

func (r *PaymentAuditRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.PaymentAuditEntry, error) {
	var out []domain.PaymentAuditEntry
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ListRange returns entries created in [from, to).
func (r *PaymentAuditRepository) ListRange(ctx context.Context, from, to time.Time) ([]domain.PaymentAuditEntry, error) {
	var out []domain.PaymentAuditEntry
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}
