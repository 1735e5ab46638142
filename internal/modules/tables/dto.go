package tables

import "tablebooking/internal/domain"

type CreateTableRequest struct {
	Number         int          `json:"number" binding:"required" validate:"min=1,max=999"`
	Floor          domain.Floor `json:"floor" binding:"required"`
	CapacityMin    int          `json:"capacity_min" binding:"required" validate:"min=1"`
	CapacityMax    int          `json:"capacity_max" binding:"required" validate:"min=1,gtefield=CapacityMin"`
	IsVIP          bool         `json:"is_vip"`
	CombinableWith []int        `json:"combinable_with" validate:"omitempty,unique,dive,min=1"`
}

// UpdateTableRequest replaces the mutable attributes of a table. The table
// number is fixed once created because combinability lists refer to it.
type UpdateTableRequest struct {
	Floor          domain.Floor `json:"floor" binding:"required"`
	CapacityMin    int          `json:"capacity_min" binding:"required" validate:"min=1"`
	CapacityMax    int          `json:"capacity_max" binding:"required" validate:"min=1,gtefield=CapacityMin"`
	IsVIP          bool         `json:"is_vip"`
	CombinableWith []int        `json:"combinable_with" validate:"omitempty,unique,dive,min=1"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type SymmetryReport struct {
	Symmetric  bool                    `json:"symmetric"`
	Asymmetric []domain.AsymmetricPair `json:"asymmetric"`
}
