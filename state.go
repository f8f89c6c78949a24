package upload

// State is the lifecycle position of one file within a batch.
type State int

const (
	Pending State = iota
	Attempting
	RetryWait
	Succeeded
	CancelledFailed
	ExhaustedFailed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Attempting:
		return "attempting"
	case RetryWait:
		return "retry_wait"
	case Succeeded:
		return "succeeded"
	case CancelledFailed:
		return "cancelled"
	case ExhaustedFailed:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempt follows this state.
func (s State) Terminal() bool {
	return s == Succeeded || s == CancelledFailed || s == ExhaustedFailed
}
