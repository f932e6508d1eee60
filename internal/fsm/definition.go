package fsm

import "github.com/librescoot/librefsm"

// NewDefinition creates the operating state FSM definition. The actions
// parameter provides the implementation for state entry callbacks.
func NewDefinition(actions Actions) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateInit).
		State(StateRunning,
			librefsm.WithOnEnter(actions.EnterRunning),
		).
		State(StateDegraded,
			librefsm.WithOnEnter(actions.EnterDegraded),
		).
		State(StateShuttingDown,
			librefsm.WithOnEnter(actions.EnterShuttingDown),
		).

		// From Init
		Transition(StateInit, EvStart, StateRunning).

		// Running and Degraded mirror the fault tracker: any active fault
		// degrades, an empty tracker restores.
		Transition(StateRunning, EvFaultRaised, StateDegraded).
		Transition(StateDegraded, EvFaultsCleared, StateRunning).

		// Shutdown is reachable from every operational state.
		Transition(StateRunning, EvShutdown, StateShuttingDown).
		Transition(StateDegraded, EvShutdown, StateShuttingDown).
		Transition(StateInit, EvShutdown, StateShuttingDown).

		// Initial state
		Initial(StateInit)
}
