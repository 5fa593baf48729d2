package parser

// Status represents the lifecycle state of the single parse job
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusInProgress           Status = "in_progress"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusCompleted            Status = "completed"
	StatusError                Status = "error"
	StatusCanceled             Status = "canceled"
)

// String implements fmt.Stringer for logging
func (s Status) String() string {
	if s == "" {
		return string(StatusIdle)
	}
	return string(s)
}

// Live reports whether a job in this status occupies the single job slot.
// A new job may only start while no live job exists.
func (s Status) Live() bool {
	return s == StatusInProgress || s == StatusAwaitingConfirmation
}

// Terminal reports whether no further automatic transition occurs from
// this status without a new start
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCanceled:
		return true
	}
	return false
}
