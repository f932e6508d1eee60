package fsm

import "github.com/librescoot/librefsm"

// Actions defines the interface for operating state machine actions.
// BCMSystem implements this interface to handle state entry.
type Actions interface {
	EnterRunning(c *librefsm.Context) error
	EnterDegraded(c *librefsm.Context) error
	EnterShuttingDown(c *librefsm.Context) error
}
