package domain

import (
	"sort"
	"time"
)

type Floor string

const (
	FloorGround    Floor = "GROUND"
	FloorMezzanine Floor = "MEZZANINE"
)

func (f Floor) Valid() bool {
	return f == FloorGround || f == FloorMezzanine
}

type Table struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Number         int       `gorm:"uniqueIndex;not null" json:"number"`
	Floor          Floor     `gorm:"type:varchar(16);not null" json:"floor"`
	CapacityMin    int       `gorm:"not null" json:"capacity_min"`
	CapacityMax    int       `gorm:"not null" json:"capacity_max"`
	IsVIP          bool      `gorm:"column:is_vip;not null;default:false" json:"is_vip"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CombinableWith []int     `gorm:"serializer:json;type:text" json:"combinable_with"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Table) TableName() string { return "tables" }

// CanCombineWith reports whether number is listed as a combinable partner.
func (t *Table) CanCombineWith(number int) bool {
	for _, n := range t.CombinableWith {
		if n == number {
			return true
		}
	}
	return false
}

// AsymmetricPair names a combinability entry that its partner does not mirror.
type AsymmetricPair struct {
	Table   int `json:"table"`
	Partner int `json:"partner"`
}

// FindAsymmetricPairs returns every A->B combinability entry where B does not list A
// (or B does not exist).
func FindAsymmetricPairs(tables []Table) []AsymmetricPair {
	byNumber := make(map[int]*Table, len(tables))
	for i := range tables {
		byNumber[tables[i].Number] = &tables[i]
	}
	var out []AsymmetricPair
	for _, t := range tables {
		for _, p := range t.CombinableWith {
			partner, ok := byNumber[p]
			if !ok || !partner.CanCombineWith(t.Number) {
				out = append(out, AsymmetricPair{Table: t.Number, Partner: p})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Partner < out[j].Partner
	})
	return out
}
