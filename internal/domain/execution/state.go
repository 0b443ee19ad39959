// Package execution holds the task execution state machine and the live
// per-task execution context driven by the orchestrator.
package execution

// State represents a state of the task execution machine
type State string

const (
	StateIdle         State = "idle"
	StateParsing      State = "parsing"
	StatePlanning     State = "planning"
	StateExecuting    State = "executing"
	StateValidating   State = "validating"
	StateRetrying     State = "retrying"
	StateStepFailed   State = "step_failed"
	StateTaskComplete State = "task_complete"
	StateFailed       State = "failed"
	StateTimeout      State = "timeout"
	StateAborted      State = "aborted"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known machine state
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateParsing, StatePlanning, StateExecuting,
		StateValidating, StateRetrying, StateStepFailed,
		StateTaskComplete, StateFailed, StateTimeout, StateAborted:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no transition may leave the state
func (s State) IsTerminal() bool {
	switch s {
	case StateTaskComplete, StateFailed, StateTimeout, StateAborted:
		return true
	default:
		return false
	}
}

// isEmergency reports whether the state is a valid emergency destination.
// Emergency transitions are accepted from every non-terminal state.
func (s State) isEmergency() bool {
	return s == StateFailed || s == StateTimeout || s == StateAborted
}

// CanTransitionTo validates if a transition to the next state is allowed
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next.isEmergency() {
		return true
	}

	validTransitions := map[State][]State{
		StateIdle:       {StateParsing},
		StateParsing:    {StatePlanning},
		StatePlanning:   {StateExecuting},
		StateExecuting:  {StateValidating, StateStepFailed, StateTaskComplete},
		StateValidating: {StateExecuting, StateRetrying, StateStepFailed},
		StateRetrying:   {StateExecuting},
		StateStepFailed: {StateExecuting},
	}

	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}

	for _, validNext := range allowed {
		if validNext == next {
			return true
		}
	}
	return false
}

// Machine owns the current execution state and rejects illegal transitions.
// It is exclusively owned by the orchestrator driving one task and is not
// safe for concurrent use.
type Machine struct {
	state State
}

// NewMachine creates a machine in the idle state
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// ReconstructMachine creates a machine in an arbitrary valid state
func ReconstructMachine(s State) (*Machine, error) {
	if !s.IsValid() {
		return nil, ErrInvalidTransition.WithDetails(map[string]interface{}{
			"state": s.String(),
		})
	}
	return &Machine{state: s}, nil
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Transition moves the machine to next, or returns an invalid-transition
// error. Illegal transitions are never silently ignored.
func (m *Machine) Transition(next State) error {
	if !next.IsValid() || !m.state.CanTransitionTo(next) {
		return ErrInvalidTransition.WithDetails(map[string]interface{}{
			"from": m.state.String(),
			"to":   next.String(),
		})
	}
	m.state = next
	return nil
}

// InLoop reports whether the machine is inside the per-step execution loop
func (m *Machine) InLoop() bool {
	switch m.state {
	case StateExecuting, StateValidating, StateRetrying, StateStepFailed:
		return true
	default:
		return false
	}
}

// TaskStatus maps the machine state to the persisted task status string
func (m *Machine) TaskStatus() string {
	switch m.state {
	case StateIdle:
		return "PENDING"
	case StateTaskComplete:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateTimeout:
		return "TIMEOUT"
	case StateAborted:
		return "ABORTED"
	default:
		return "IN_PROGRESS"
	}
}
