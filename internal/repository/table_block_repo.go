package repository

import (
	"context"

	"gorm.io/gorm"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
)

type TableBlockRepository struct {
	db *gorm.DB
}

func NewTableBlockRepository(db *gorm.DB) *TableBlockRepository {
	return &TableBlockRepository{db: db}
}

type BlockFilter struct {
	TableID *int64
	// ActiveOn hides blocks that ended before this date when set.
	ActiveOn *domain.Date
}

func (r *TableBlockRepository) Create(ctx context.Context, b *domain.TableBlock) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		return classify(err)
	}
	return nil
}

func (r *TableBlockRepository) Save(ctx context.Context, b *domain.TableBlock) error {
	if err := r.db.WithContext(ctx).Save(b).Error; err != nil {
		return classify(err)
	}
	return nil
}

func (r *TableBlockRepository) GetByID(ctx context.Context, id int64) (*domain.TableBlock, error) {
	var b domain.TableBlock
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("table block")
		}
		return nil, classify(err)
	}
	return &b, nil
}

func (r *TableBlockRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&domain.TableBlock{}, id)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("table block")
	}
	return nil
}

// Covering returns blocks on any of tableIDs whose range contains date.
func (r *TableBlockRepository) Covering(ctx context.Context, tableIDs []int64, date domain.Date) ([]domain.TableBlock, error) {
	var blocks []domain.TableBlock
	err := r.db.WithContext(ctx).
		Where("table_id IN ? AND start_date <= ? AND end_date >= ?", tableIDs, date, date).
		Order("start_date ASC, id ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, classify(err)
	}
	return blocks, nil
}

// CoveringAny returns every block whose range contains date, across all tables.
func (r *TableBlockRepository) CoveringAny(ctx context.Context, date domain.Date) ([]domain.TableBlock, error) {
	var blocks []domain.TableBlock
	err := r.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", date, date).
		Find(&blocks).Error
	if err != nil {
		return nil, classify(err)
	}
	return blocks, nil
}

func (r *TableBlockRepository) List(ctx context.Context, f BlockFilter) ([]domain.TableBlock, error) {
	var blocks []domain.TableBlock
	q := r.db.WithContext(ctx).Order("start_date ASC, id ASC")
	if f.TableID != nil {
		q = q.Where("table_id = ?", *f.TableID)
	}
	if f.ActiveOn != nil {
		q = q.Where("end_date >= ?", *f.ActiveOn)
	}
	if err := q.Find(&blocks).Error; err != nil {
		return nil, classify(err)
	}
	return blocks, nil
}
