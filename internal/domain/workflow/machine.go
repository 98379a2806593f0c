// Package workflow models the delivery lifecycle of a submission as a small
// guarded state machine.
package workflow

import "context"

// StateMachine tracks a current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has a transition from the current state
	CanFire(trigger Trigger) bool

	// Fire takes the first transition of trigger whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers configured for the current state
	PermittedTriggers() []Trigger
}
