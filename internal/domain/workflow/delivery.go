package workflow

import "context"

// NewDeliveryMachine returns the lifecycle of a submission in state after
// attempts delivery attempts. A failed attempt goes back to PENDING while
// attempts remain and to FAILED otherwise.
func NewDeliveryMachine(state State, attempts, maxAttempts int) StateMachine {
	canRetry := func(context.Context) bool { return attempts < maxAttempts }

	b := NewBuilder()
	b.Configure(StatePending).
		Permit(TriggerClaim, StateSending)
	b.Configure(StateSending).
		Permit(TriggerDeliver, StateSent).
		PermitIf(TriggerFail, StatePending, canRetry).
		Permit(TriggerFail, StateFailed).
		Permit(TriggerRequeue, StatePending)

	return b.Build(state)
}
