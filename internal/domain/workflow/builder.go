package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds state machines sharing one configuration
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration
	Build(initialState State) StateMachine
}

// StateConfiguration configures the transitions leaving one state.
// Transitions of a trigger are tried in the order they were added.
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type transitions map[Trigger][]transition

type stateConfig struct {
	transitions transitions
}

type stateMachineBuilder struct {
	states map[State]*stateConfig
}

type stateMachine struct {
	current State
	states  map[State]transitions
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{states: make(map[State]*stateConfig)}
}

// Configure returns the configuration of state, creating it on first use.
// It panics on an unknown state.
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	mustBeValid(state)

	cfg, ok := b.states[state]
	if !ok {
		cfg = &stateConfig{transitions: make(transitions)}
		b.states[state] = cfg
	}
	return cfg
}

// Build returns a machine in initialState. Later changes to the builder do
// not affect it.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	mustBeValid(initialState)

	states := make(map[State]transitions, len(b.states))
	for state, cfg := range b.states {
		copied := make(transitions, len(cfg.transitions))
		for trigger, ts := range cfg.transitions {
			copied[trigger] = append([]transition(nil), ts...)
		}
		states[state] = copied
	}

	return &stateMachine{current: initialState, states: states}
}

// Permit adds an unconditional transition
func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf adds a transition taken only when guard passes
func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	mustBeValid(toState)
	c.transitions[trigger] = append(c.transitions[trigger], transition{toState: toState, guard: guard})
	return c
}

func (m *stateMachine) State() State {
	return m.current
}

// CanFire does not evaluate guards
func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.states[m.current][trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	ts := m.states[m.current][trigger]
	if len(ts) == 0 {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.toState
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	out := make([]Trigger, 0, len(m.states[m.current]))
	for trigger := range m.states[m.current] {
		out = append(out, trigger)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func mustBeValid(s State) {
	if !s.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", s))
	}
}
