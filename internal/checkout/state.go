package checkout

import (
	"sync"

	"github.com/immutable/checkout-go/internal/entity"
)

type State string

const (
	StateIdle      State = "IDLE"
	StateQuoting   State = "QUOTING"
	StateQuoted    State = "QUOTED"
	StateSigning   State = "SIGNING"
	StateSigned    State = "SIGNED"
	StateExecuting State = "EXECUTING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// transitions lists the legal successor states. Retry re-enters the failed
// step from its beginning, so FAILED can move back into any active step.
var transitions = map[State][]State{
	StateIdle:      {StateQuoting},
	StateQuoting:   {StateQuoted, StateFailed},
	StateQuoted:    {StateQuoting, StateSigning},
	StateSigning:   {StateSigned, StateFailed},
	StateSigned:    {StateExecuting, StateSigning},
	StateExecuting: {StateExecuting, StateDone, StateFailed},
	StateFailed:    {StateQuoting, StateSigning, StateExecuting},
	StateDone:      {},
}

// Machine validates checkout state transitions synchronously. Side effects
// live in the Orchestrator, which feeds results back as transitions.
type Machine struct {
	mu      sync.Mutex
	current State
}

func NewMachine() *Machine {
	return &Machine{current: StateIdle}
}

func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, allowed := range transitions[m.current] {
		if allowed == to {
			m.current = to
			return nil
		}
	}

	return entity.NewCheckoutError(entity.InvalidParameters, "illegal state transition", nil).
		WithData("from", string(m.current)).
		WithData("to", string(to))
}
