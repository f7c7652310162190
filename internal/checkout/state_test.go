package checkout

import (
	"errors"
	"testing"

	"github.com/immutable/checkout-go/internal/entity"
)

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine()
	path := []State{StateQuoting, StateQuoted, StateSigning, StateSigned, StateExecuting, StateDone}

	for _, next := range path {
		if err := m.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if m.Current() != StateDone {
		t.Errorf("final state = %s, want %s", m.Current(), StateDone)
	}
}

func TestMachineRejectsIllegalTransition(t *testing.T) {
	m := NewMachine()

	err := m.Transition(StateExecuting)
	var cerr *entity.CheckoutError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want CheckoutError", err)
	}
	if cerr.Type != entity.InvalidParameters {
		t.Errorf("error type = %s, want %s", cerr.Type, entity.InvalidParameters)
	}
	if cerr.Data["from"] != "IDLE" || cerr.Data["to"] != "EXECUTING" {
		t.Errorf("error data = %v", cerr.Data)
	}
	if m.Current() != StateIdle {
		t.Errorf("state changed on rejected transition: %s", m.Current())
	}
}

func TestMachineDoneIsTerminal(t *testing.T) {
	m := &Machine{current: StateDone}

	for _, next := range []State{StateQuoting, StateSigning, StateExecuting, StateFailed} {
		if err := m.Transition(next); err == nil {
			t.Errorf("transition %s -> %s allowed", StateDone, next)
		}
	}
}

func TestMachineFailedAllowsRetry(t *testing.T) {
	for _, retry := range []State{StateQuoting, StateSigning, StateExecuting} {
		m := &Machine{current: StateFailed}
		if err := m.Transition(retry); err != nil {
			t.Errorf("retry into %s: %v", retry, err)
		}
	}
}

func TestMachineRequoteFromQuoted(t *testing.T) {
	m := &Machine{current: StateQuoted}
	if err := m.Transition(StateQuoting); err != nil {
		t.Errorf("re-quote from QUOTED: %v", err)
	}
}
