package fsm

import "github.com/librescoot/librefsm"

// Operating states
const (
	StateInit         librefsm.StateID = "init"
	StateRunning      librefsm.StateID = "running"
	StateDegraded     librefsm.StateID = "degraded"
	StateShuttingDown librefsm.StateID = "shutting-down"
)

// Operating events
const (
	// Lifecycle
	EvStart    librefsm.EventID = "start"
	EvShutdown librefsm.EventID = "shutdown"

	// Fault tracker edges
	EvFaultRaised   librefsm.EventID = "fault-raised"
	EvFaultsCleared librefsm.EventID = "faults-cleared"
)
