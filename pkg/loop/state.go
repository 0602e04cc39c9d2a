package loop

import "fmt"

// State identifies a phase of the agent cycle.
type State string

// Agent cycle states.
const (
	StateIdle         State = "IDLE"
	StatePrompting    State = "PROMPTING"
	StateInterpreting State = "INTERPRETING"
	StateDispatching  State = "DISPATCHING"
	StateResting      State = "RESTING"
	StateStopped      State = "STOPPED"
)

// validTransitions defines the legal state graph. Every phase can move to
// RESTING (on failure) and STOPPED (on shutdown); STOPPED is terminal.
var validTransitions = map[State][]State{
	StateIdle:         {StatePrompting, StateStopped},
	StatePrompting:    {StateInterpreting, StateResting, StateStopped},
	StateInterpreting: {StateDispatching, StateResting, StateStopped},
	StateDispatching:  {StateResting, StateStopped},
	StateResting:      {StatePrompting, StateStopped},
	StateStopped:      {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transitionTo validates and applies a state change.
func (a *Agent) transitionTo(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !CanTransition(a.state, to) {
		return fmt.Errorf("invalid state transition: %s -> %s", a.state, to)
	}
	a.logger.Debug("state transition: %s -> %s", a.state, to)
	a.state = to
	return nil
}

// State returns the agent's current state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
