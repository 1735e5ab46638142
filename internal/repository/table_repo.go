package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
)

type TableRepository struct {
	db *gorm.DB
}

func NewTableRepository(db *gorm.DB) *TableRepository {
	return &TableRepository{db: db}
}

// List returns tables ordered by number.
func (r *TableRepository) List(ctx context.Context, activeOnly bool) ([]domain.Table, error) {
	var tables []domain.Table
	q := r.db.WithContext(ctx).Order("number ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&tables).Error; err != nil {
		return nil, classify(err)
	}
	return tables, nil
}

func (r *TableRepository) GetByID(ctx context.Context, id int64) (*domain.Table, error) {
	var t domain.Table
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("table")
		}
		return nil, classify(err)
	}
	return &t, nil
}

func (r *TableRepository) GetByNumber(ctx context.Context, number int) (*domain.Table, error) {
	var t domain.Table
	if err := r.db.WithContext(ctx).Where("number = ?", number).First(&t).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("table")
		}
		return nil, classify(err)
	}
	return &t, nil
}

// GetByNumbers returns the tables with the given numbers, keyed by number.
func (r *TableRepository) GetByNumbers(ctx context.Context, numbers []int) (map[int]*domain.Table, error) {
	out := make(map[int]*domain.Table, len(numbers))
	if len(numbers) == 0 {
		return out, nil
	}
	var tables []domain.Table
	if err := r.db.WithContext(ctx).Where("number IN ?", numbers).Find(&tables).Error; err != nil {
		return nil, classify(err)
	}
	for i := range tables {
		out[tables[i].Number] = &tables[i]
	}
	return out, nil
}

func (r *TableRepository) Create(ctx context.Context, t *domain.Table) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return classify(err)
	}
	return nil
}

// Save writes every column of t, including zero values such as is_active=false.
func (r *TableRepository) Save(ctx context.Context, t *domain.Table) error {
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		return classify(err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
