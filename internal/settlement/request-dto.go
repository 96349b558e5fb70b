package settlement

import "github.com/google/uuid"

type CreateOrganizationRequest struct {
	Name    string   `json:"name" binding:"required,min=1,max=255"`
	PixKeys []PixKey `json:"pix_keys" binding:"omitempty,dive"`
}

type UpdatePixKeysRequest struct {
	PixKeys []PixKey `json:"pix_keys" binding:"required,dive"`
}

// CreateWithdrawalRequest is the HTTP body; the organization comes from the path.
type CreateWithdrawalRequest struct {
	Amount      int64      `json:"amount" binding:"required,min=1"`
	PixKeyIndex int        `json:"pix_key_index" binding:"min=0"`
	EventID     *uuid.UUID `json:"event_id"`
}

type WithdrawalRequest struct {
	OrganizationID uuid.UUID
	EventID        *uuid.UUID
	Amount         int64
	PixKeyIndex    int
	RequestedBy    string
}

type UpdateWithdrawalStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=processing completed failed cancelled"`
	Reason string `json:"reason" binding:"max=500"`
}
