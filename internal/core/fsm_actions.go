package core

import (
	"context"

	"github.com/librescoot/librefsm"

	"bcm-service/internal/fsm"
	"bcm-service/internal/types"
)

// Ensure BCMSystem implements fsm.Actions
var _ fsm.Actions = (*BCMSystem)(nil)

// stateIDToOperatingState converts a librefsm StateID to the published
// operating state.
func stateIDToOperatingState(id librefsm.StateID) types.OperatingState {
	switch id {
	case fsm.StateInit:
		return types.StateInit
	case fsm.StateRunning:
		return types.StateRunning
	case fsm.StateDegraded:
		return types.StateDegraded
	case fsm.StateShuttingDown:
		return types.StateShuttingDown
	default:
		return types.OperatingState(string(id))
	}
}

// initFSM builds and starts the librefsm machine.
func (b *BCMSystem) initFSM(ctx context.Context) error {
	def := fsm.NewDefinition(b)
	machine, err := def.Build()
	if err != nil {
		return err
	}
	b.machine = machine

	b.machine.OnStateChange(func(from, to librefsm.StateID) {
		newState := stateIDToOperatingState(to)
		b.mu.Lock()
		b.opState = newState
		b.mu.Unlock()
		b.log.Infof("Operating state: %s -> %s", from, to)
	})

	return b.machine.Start(ctx)
}

// OperatingState returns the mirrored machine state. Safe from any
// goroutine.
func (b *BCMSystem) OperatingState() types.OperatingState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.opState
}

// syncOperatingState keeps the running/degraded pair aligned with the
// fault tracker.
func (b *BCMSystem) syncOperatingState() {
	state := b.OperatingState()
	active := b.faults.Count() > 0

	switch {
	case state == types.StateRunning && active:
		if err := b.machine.SendSync(librefsm.Event{ID: fsm.EvFaultRaised}); err != nil {
			b.log.Warnf("Degrade transition failed: %v", err)
		}
	case state == types.StateDegraded && !active:
		if err := b.machine.SendSync(librefsm.Event{ID: fsm.EvFaultsCleared}); err != nil {
			b.log.Warnf("Recovery transition failed: %v", err)
		}
	}
}

// === State Entry Actions ===

func (b *BCMSystem) EnterRunning(c *librefsm.Context) error {
	b.log.Infof("All subsystems nominal")
	return nil
}

func (b *BCMSystem) EnterDegraded(c *librefsm.Context) error {
	b.log.Warnf("Entering degraded operation, %d active faults", b.faults.Count())
	return nil
}

func (b *BCMSystem) EnterShuttingDown(c *librefsm.Context) error {
	b.log.Infof("Shutdown initiated")
	return nil
}
