package tableblock

type BlockRequest struct {
	TableID   int64  `json:"table_id" binding:"required" validate:"min=1"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

type ListRequest struct {
	TableID        *int64 `form:"table_id"`
	IncludeExpired bool   `form:"include_expired"`
}
