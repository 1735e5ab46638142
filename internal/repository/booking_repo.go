package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
)

// ErrSlotTaken reports that a slot claim collided with another booking's claim.
var ErrSlotTaken = errors.New("slot already claimed")

type BookingRepository struct {
	db         *gorm.DB
	lockNoWait bool
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type BookingFilter struct {
	Status *domain.BookingStatus
	From   *domain.Date
	To     *domain.Date
	Limit  int
	Offset int
}

// Create inserts the booking and, when it occupies its tables, its slot claims.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		return classify(err)
	}
	if b.Status.Occupies() {
		return r.insertClaims(ctx, b)
	}
	return nil
}

func (r *BookingRepository) insertClaims(ctx context.Context, b *domain.Booking) error {
	claims, err := domain.ClaimsFor(b)
	if err != nil {
		return apperr.Invalid("booking_time", "slot", err.Error())
	}
	if err := r.db.WithContext(ctx).Create(&claims).Error; err != nil {
		err = classify(err)
		if errors.Is(err, ErrDuplicate) {
			return ErrSlotTaken
		}
		return err
	}
	return nil
}

// ReleaseClaims frees every slot held by the booking.
func (r *BookingRepository) ReleaseClaims(ctx context.Context, bookingID int64) error {
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Delete(&domain.BookingSlotClaim{}).Error
	return classify(err)
}

// ReplaceClaims rewrites the booking's claims after its table, date or time changed.
func (r *BookingRepository) ReplaceClaims(ctx context.Context, b *domain.Booking) error {
	if err := r.ReleaseClaims(ctx, b.ID); err != nil {
		return err
	}
	if !b.Status.Occupies() {
		return nil
	}
	return r.insertClaims(ctx, b)
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// GetForUpdate loads the booking with a row lock. On PostgreSQL with
// lock-nowait enabled a held lock fails immediately as a transient error.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	lock := clause.Locking{Strength: "UPDATE"}
	if r.lockNoWait {
		lock.Options = "NOWAIT"
	}
	return r.first(r.db.WithContext(ctx).Clauses(lock).Where("id = ?", id))
}

func (r *BookingRepository) GetByReference(ctx context.Context, ref string) (*domain.Booking, error) {
	return r.first(r.db.WithContext(ctx).Where("reference = ?", ref))
}

func (r *BookingRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Booking, error) {
	return r.first(r.db.WithContext(ctx).Where("payment_intent_id = ?", intentID))
}

func (r *BookingRepository) first(q *gorm.DB) (*domain.Booking, error) {
	var b domain.Booking
	if err := q.First(&b).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("booking")
		}
		return nil, classify(err)
	}
	return &b, nil
}

// ReferenceExists reports whether a reference code is already taken.
func (r *BookingRepository) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Booking{}).Where("reference = ?", ref).Count(&n).Error
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

func (r *BookingRepository) occupying(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("status IN ?", domain.OccupyingStatuses)
}

// ListOccupying returns PENDING/CONFIRMED bookings on date that hold any of
// tableIDs, either as their own table or as a combined partner.
func (r *BookingRepository) ListOccupying(ctx context.Context, tableIDs []int64, date domain.Date, excludeID *int64) ([]domain.Booking, error) {
	q := r.occupying(ctx).
		Where("booking_date = ?", date).
		Where("table_id IN ? OR partner_table_id IN ?", tableIDs, tableIDs)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var out []domain.Booking
	if err := q.Order("booking_time ASC, id ASC").Find(&out).Error; err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ListOccupyingOnDate returns every PENDING/CONFIRMED booking on date.
func (r *BookingRepository) ListOccupyingOnDate(ctx context.Context, date domain.Date, excludeID *int64) ([]domain.Booking, error) {
	q := r.occupying(ctx).Where("booking_date = ?", date)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var out []domain.Booking
	if err := q.Order("booking_time ASC, id ASC").Find(&out).Error; err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ListOccupyingInRange returns PENDING/CONFIRMED bookings holding tableID on
// any date in the inclusive range.
func (r *BookingRepository) ListOccupyingInRange(ctx context.Context, tableID int64, from, to domain.Date) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.occupying(ctx).
		Where("table_id = ? OR partner_table_id = ?", tableID, tableID).
		Where("booking_date >= ? AND booking_date <= ?", from, to).
		Order("booking_date ASC, booking_time ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]domain.Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Booking{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.From != nil {
		q = q.Where("booking_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("booking_date <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var out []domain.Booking
	if err := q.Order("booking_date ASC, booking_time ASC, id ASC").Find(&out).Error; err != nil {
		return nil, 0, classify(err)
	}
	return out, total, nil
}

// Save writes every column of b.
func (r *BookingRepository) Save(ctx context.Context, b *domain.Booking) error {
	if err := r.db.WithContext(ctx).Save(b).Error; err != nil {
		return classify(err)
	}
	return nil
}

// AssignIntent sets the gateway intent id only if none is assigned yet.
// It reports false when another caller assigned one first.
func (r *BookingRepository) AssignIntent(ctx context.Context, bookingID int64, intentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND payment_intent_id IS NULL", bookingID).
		Update("payment_intent_id", intentID)
	if res.Error != nil {
		return false, classify(res.Error)
	}
	return res.RowsAffected == 1, nil
}
