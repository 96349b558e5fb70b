package payments

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusPaid     TransactionStatus = "paid"
	StatusFailed   TransactionStatus = "failed"
	StatusRefunded TransactionStatus = "refunded"
)

// transitions lists the gateway status changes accepted for a stored transaction
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending: {StatusPaid, StatusFailed},
	StatusFailed:  {StatusPaid},
	StatusPaid:    {StatusRefunded},
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
