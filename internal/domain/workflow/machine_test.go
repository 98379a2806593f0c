package workflow

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateSending, false},
		{StateSent, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	if !StateSending.IsValid() {
		t.Error("SENDING should be valid")
	}
	if State("DRAFT").IsValid() || State("").IsValid() {
		t.Error("unknown states should be invalid")
	}
}

func TestBuilder_PanicsOnUnknownState(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Configure() did not panic")
		}
	}()
	NewBuilder().Configure(State("DRAFT"))
}

func TestBuilder_BuildIsIsolated(t *testing.T) {
	b := NewBuilder()
	b.Configure(StatePending).Permit(TriggerClaim, StateSending)
	m := b.Build(StatePending)

	b.Configure(StatePending).Permit(TriggerDeliver, StateSent)

	if m.CanFire(TriggerDeliver) {
		t.Error("machine picked up a transition added after Build()")
	}
	if !b.Build(StatePending).CanFire(TriggerDeliver) {
		t.Error("new machine is missing the added transition")
	}
}

func TestStateMachine_Fire(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured trigger", func(t *testing.T) {
		m := NewDeliveryMachine(StatePending, 0, 3)
		err := m.Fire(ctx, TriggerDeliver)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Fire() error = %v, want ErrInvalidTransition", err)
		}
		if m.State() != StatePending {
			t.Errorf("State() = %v, want PENDING", m.State())
		}
	})

	t.Run("terminal state", func(t *testing.T) {
		m := NewDeliveryMachine(StateSent, 1, 3)
		if got := m.PermittedTriggers(); len(got) != 0 {
			t.Errorf("PermittedTriggers() = %v, want none", got)
		}
		if err := m.Fire(ctx, TriggerClaim); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("all guards fail", func(t *testing.T) {
		b := NewBuilder()
		b.Configure(StatePending).PermitIf(TriggerClaim, StateSending, func(context.Context) bool { return false })
		m := b.Build(StatePending)

		if !m.CanFire(TriggerClaim) {
			t.Error("CanFire() = false, want true")
		}
		if err := m.Fire(ctx, TriggerClaim); !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire() error = %v, want ErrGuardFailed", err)
		}
	})
}

func TestDeliveryMachine(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		attempts int
		trigger  Trigger
		want     State
	}{
		{"delivered", 1, TriggerDeliver, StateSent},
		{"failure with attempts left", 1, TriggerFail, StatePending},
		{"failure on last attempt", 3, TriggerFail, StateFailed},
		{"interrupted", 2, TriggerRequeue, StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewDeliveryMachine(StateSending, tt.attempts, 3)
			if err := m.Fire(ctx, tt.trigger); err != nil {
				t.Fatalf("Fire() error = %v", err)
			}
			if m.State() != tt.want {
				t.Errorf("State() = %v, want %v", m.State(), tt.want)
			}
		})
	}

	t.Run("permitted triggers while sending", func(t *testing.T) {
		got := NewDeliveryMachine(StateSending, 1, 3).PermittedTriggers()
		want := []Trigger{TriggerDeliver, TriggerFail, TriggerRequeue}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("PermittedTriggers() = %v, want %v", got, want)
		}
	})

	t.Run("claim", func(t *testing.T) {
		m := NewDeliveryMachine(StatePending, 0, 3)
		if err := m.Fire(ctx, TriggerClaim); err != nil || m.State() != StateSending {
			t.Errorf("Fire(CLAIM) = %v, state %v", err, m.State())
		}
	})
}
