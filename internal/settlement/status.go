package settlement

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
	WithdrawalCancelled  WithdrawalStatus = "cancelled"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:    {WithdrawalProcessing, WithdrawalCancelled},
	WithdrawalProcessing: {WithdrawalCompleted, WithdrawalFailed},
}

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalProcessing, WithdrawalCompleted, WithdrawalFailed, WithdrawalCancelled:
		return true
	}
	return false
}

func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Final reports whether no further transition is possible.
func (s WithdrawalStatus) Final() bool {
	return len(withdrawalTransitions[s]) == 0
}

// deductedStatuses are the withdrawals subtracted from a balance snapshot
var deductedStatuses = []WithdrawalStatus{WithdrawalProcessing, WithdrawalCompleted}
