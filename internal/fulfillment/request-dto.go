package fulfillment

type CourtesyRequest struct {
	UserID   string `json:"user_id" binding:"required,max=255"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=500"`
}
