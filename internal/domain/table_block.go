package domain

import "time"

type TableBlock struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	TableID   int64     `gorm:"not null;index:idx_table_blocks_range,priority:1" json:"table_id"`
	StartDate Date      `gorm:"type:date;not null;index:idx_table_blocks_range,priority:2" json:"start_date"`
	EndDate   Date      `gorm:"type:date;not null;index:idx_table_blocks_range,priority:3" json:"end_date"`
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedBy string    `gorm:"type:varchar(255)" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TableBlock) TableName() string { return "table_blocks" }

// Covers reports whether date falls inside the inclusive block range.
func (b *TableBlock) Covers(date Date) bool {
	return date.Between(b.StartDate, b.EndDate)
}
