package workflow

// Trigger is an event that moves a submission through its lifecycle
type Trigger string

const (
	TriggerClaim   Trigger = "CLAIM"
	TriggerDeliver Trigger = "DELIVER"
	TriggerFail    Trigger = "FAIL"
	TriggerRequeue Trigger = "REQUEUE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
