package workflow

import "github.com/garyjia/reembolso/internal/domain/entity"

// State is a step in the delivery lifecycle of a submission. Values match
// the status column of the submissions table.
type State string

const (
	StatePending State = entity.SubmissionStatusPending
	StateSending State = entity.SubmissionStatusSending
	StateSent    State = entity.SubmissionStatusSent
	StateFailed  State = entity.SubmissionStatusFailed
)

var validStates = map[State]bool{
	StatePending: true,
	StateSending: true,
	StateSent:    true,
	StateFailed:  true,
}

var terminalStates = map[State]bool{
	StateSent:   true,
	StateFailed: true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
