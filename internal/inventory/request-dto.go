package inventory

import "time"

type CreateCategoryRequest struct {
	Name          string               `json:"name" binding:"required,min=1,max=255"`
	TotalQuantity int                  `json:"total_quantity" binding:"required,min=1"`
	Price         int64                `json:"price" binding:"min=0"`
	Batches       []CreateBatchRequest `json:"batches" binding:"omitempty,dive"`
}

type CreateBatchRequest struct {
	BatchNumber int        `json:"batch_number" binding:"required,min=1"`
	Quantity    int        `json:"quantity" binding:"required,min=1"`
	Price       int64      `json:"price" binding:"min=0"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}
