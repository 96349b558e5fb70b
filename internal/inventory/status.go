package inventory

type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusRefunded  TicketStatus = "refunded"
	TicketStatusCancelled TicketStatus = "cancelled"
)
