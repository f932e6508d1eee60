// Package core owns the BCM control loop: it routes inbound CAN frames to
// the subsystem controllers, runs the periodic scheduler and renders the
// outbound status frames. Everything domain-stateful happens on the single
// loop goroutine; collaborators hand work in through a command queue.
package core

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/librescoot/librefsm"

	"bcm-service/internal/config"
	"bcm-service/internal/door"
	"bcm-service/internal/fault"
	"bcm-service/internal/frame"
	"bcm-service/internal/fsm"
	"bcm-service/internal/lighting"
	"bcm-service/internal/logger"
	"bcm-service/internal/turnsignal"
	"bcm-service/internal/types"
)

// Key fob command bytes.
const (
	keyfobLock   = 0x01
	keyfobUnlock = 0x02
	keyfobPanic  = 0x04
)

// Door switch input channels, indexed by door.
var doorInputs = [door.Count]string{
	"door_open_fl", "door_open_fr", "door_open_rl", "door_open_rr",
}

// BCMSystem ties the controllers, the fault tracker and the scheduler
// together. All methods except the Request* family must be called from the
// loop goroutine.
type BCMSystem struct {
	cfg *config.Config
	log *logger.Logger

	faults *fault.Tracker
	doors  *door.Controller
	lights *lighting.Controller
	turns  *turnsignal.Controller

	transport FrameTransport
	hw        HardwareIO
	publisher StatePublisher
	clock     Clock

	machine *librefsm.Machine
	mu      sync.RWMutex
	opState types.OperatingState

	startMs      int64
	lastFastMs   int64
	lastStatusMs int64
	lastFaultMs  int64
	lastBeatMs   int64
	firstPass    bool
	ignition     uint8
	faultCounter uint8
	beatCounter  uint8

	commands chan func()
}

// NewBCMSystem wires a system from its configuration and collaborators.
// Transport, hardware and publisher may be nil; the corresponding side
// effects are then skipped.
func NewBCMSystem(cfg *config.Config, transport FrameTransport, hw HardwareIO,
	publisher StatePublisher, clock Clock, log *logger.Logger) *BCMSystem {

	faults := fault.NewTracker(cfg.Fault.Capacity)
	doors := door.New(faults, log.WithTag("door"))
	doors.ConfigureAutoLock(cfg.Door.AutoLockEnabled, cfg.Door.AutoLockSpeedKmh)
	lights := lighting.New(faults, log.WithTag("lighting"))
	lights.ConfigureThresholds(cfg.Lighting.OnThreshold, cfg.Lighting.OffThreshold,
		cfg.Lighting.SensorTimeoutMs)
	turns := turnsignal.New(faults, log.WithTag("turn"))
	turns.ConfigureTiming(cfg.TurnSignal.TurnOnMs, cfg.TurnSignal.TurnOffMs,
		cfg.TurnSignal.HazardOnMs, cfg.TurnSignal.HazardOffMs, cfg.TurnSignal.IdleCancelMs)

	return &BCMSystem{
		cfg:       cfg,
		log:       log,
		faults:    faults,
		doors:     doors,
		lights:    lights,
		turns:     turns,
		transport: transport,
		hw:        hw,
		publisher: publisher,
		clock:     clock,
		opState:   types.StateInit,
		firstPass: true,
		commands:  make(chan func(), 16),
	}
}

// Start initializes hardware, registers input callbacks and brings the
// operating state machine to running.
func (b *BCMSystem) Start(ctx context.Context) error {
	b.log.Infof("Starting BCM system")

	if b.hw != nil {
		if err := b.hw.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize hardware: %w", err)
		}
		for i, name := range doorInputs {
			idx := i
			b.hw.RegisterInputCallback(name, func(_ string, open bool) error {
				b.enqueue(func() { b.doors.SetDoorOpen(idx, open) })
				return nil
			})
		}
	}

	if err := b.initFSM(ctx); err != nil {
		return fmt.Errorf("failed to init state machine: %w", err)
	}
	if err := b.machine.SendSync(librefsm.Event{ID: fsm.EvStart}); err != nil {
		return fmt.Errorf("failed to enter running: %w", err)
	}

	b.startMs = b.clock.NowMs()
	b.log.Infof("BCM system started")
	return nil
}

// Shutdown transitions the operating state and releases hardware.
func (b *BCMSystem) Shutdown() {
	b.log.Infof("Shutting down BCM system")
	if b.machine != nil {
		if err := b.machine.SendSync(librefsm.Event{ID: fsm.EvShutdown}); err != nil {
			b.log.Warnf("Shutdown transition failed: %v", err)
		}
	}
	if b.hw != nil {
		b.hw.Cleanup()
	}
}

// enqueue hands a closure to the loop goroutine. Requests beyond the queue
// capacity are dropped.
func (b *BCMSystem) enqueue(fn func()) {
	select {
	case b.commands <- fn:
	default:
		b.log.Warnf("Command queue full, dropping request")
	}
}

// RequestClearFaults clears the fault tracker from another goroutine.
func (b *BCMSystem) RequestClearFaults() {
	b.enqueue(func() {
		b.log.Infof("Clearing all faults on external request")
		b.faults.ClearAll()
	})
}

// RequestHazard switches the hazard flashers from another goroutine.
func (b *BCMSystem) RequestHazard(on bool) {
	b.enqueue(func() {
		if on {
			b.turns.ActivateHazard(b.clock.NowMs())
		} else {
			b.turns.DeactivateHazard()
		}
	})
}

// RequestDoorLock locks or unlocks all doors from another goroutine.
func (b *BCMSystem) RequestDoorLock(lock bool) {
	b.enqueue(func() {
		if lock {
			b.doors.LockAll()
		} else {
			b.doors.UnlockAll()
		}
	})
}

// Route dispatches one inbound frame by identifier. Unknown identifiers
// are other modules' traffic and are ignored.
func (b *BCMSystem) Route(f frame.Frame, now int64) {
	switch f.ID {
	case frame.IDDoorCommand:
		if res := b.doors.HandleCommand(f, now); res != frame.ResultOK {
			b.log.Debugf("Door command rejected: %v", res)
		}
	case frame.IDLightingCommand:
		if res := b.lights.HandleCommand(f, now); res != frame.ResultOK {
			b.log.Debugf("Lighting command rejected: %v", res)
		}
	case frame.IDTurnCommand:
		if res := b.turns.HandleCommand(f, now); res != frame.ResultOK {
			b.log.Debugf("Turn command rejected: %v", res)
		}
	case frame.IDAmbientLight:
		if f.Length >= 1 {
			b.lights.SetAmbient(f.Data[0], now)
		}
	case frame.IDVehicleSpeed:
		if f.Length >= 2 {
			b.doors.UpdateVehicleSpeed(binary.BigEndian.Uint16(f.Data[:2]))
		}
	case frame.IDKeyfobCommand:
		if f.Length >= 1 {
			b.handleKeyfob(f.Data[0], now)
		}
	case frame.IDIgnitionStatus:
		if f.Length >= 1 {
			b.ignition = f.Data[0]
		}
	}
}

func (b *BCMSystem) handleKeyfob(cmd uint8, now int64) {
	switch cmd {
	case keyfobLock:
		b.log.Infof("Key fob lock")
		b.doors.LockAll()
	case keyfobUnlock:
		b.log.Infof("Key fob unlock")
		b.doors.UnlockAll()
	case keyfobPanic:
		b.log.Infof("Key fob panic")
		b.turns.ActivateHazard(now)
	default:
		b.log.Debugf("Unknown key fob command %02X", cmd)
	}
}

// Process runs one scheduler pass. Each periodic trigger fires at most
// once per call, so a stalled loop catches up with a single burst-free
// step. Inbound frames drain before any status frame renders.
func (b *BCMSystem) Process(now int64) {
	b.drainCommands()
	b.drainInbound(now)

	if b.firstPass {
		// Align the triggers so nothing fires on the very first pass.
		b.lastFastMs, b.lastStatusMs = now, now
		b.lastFaultMs, b.lastBeatMs = now, now
		b.firstPass = false
		return
	}

	if now-b.lastFastMs >= b.cfg.Timing.FastPeriodMs {
		b.lastFastMs = now
		b.doors.Tick()
		b.lights.Tick(now)
		b.turns.Tick(now)
		b.refreshOutputs()
	}

	if now-b.lastStatusMs >= b.cfg.Timing.StatusPeriodMs {
		b.lastStatusMs = now
		b.sendFrame(b.doors.RenderStatus(b.faults.Count()), now)
		b.sendFrame(b.lights.RenderStatus(), now)
		b.sendFrame(b.turns.RenderStatus(), now)
	}

	if now-b.lastFaultMs >= b.cfg.Timing.FaultPeriodMs {
		b.lastFaultMs = now
		b.sendFrame(b.renderFaultStatus(), now)
	}

	if now-b.lastBeatMs >= b.cfg.Timing.HeartbeatPeriodMs {
		b.lastBeatMs = now
		b.turns.CheckTimeout(now)
		b.syncOperatingState()
		b.sendFrame(b.renderHeartbeat(now), now)
		b.publishSnapshot(now)
	}
}

func (b *BCMSystem) drainCommands() {
	for {
		select {
		case fn := <-b.commands:
			fn()
		default:
			return
		}
	}
}

func (b *BCMSystem) drainInbound(now int64) {
	if b.transport == nil {
		return
	}
	for {
		f, ok, err := b.transport.TryReceive()
		if err != nil {
			b.log.Errorf("CAN receive failed: %v", err)
			b.faults.Report(fault.SystemCANError, now)
			return
		}
		if !ok {
			return
		}
		b.Route(f, now)
	}
}

func (b *BCMSystem) sendFrame(f frame.Frame, now int64) {
	if b.transport == nil {
		return
	}
	if err := b.transport.Send(f); err != nil {
		b.log.Errorf("CAN send of %03X failed: %v", f.ID, err)
		b.faults.Report(fault.SystemCANError, now)
	}
}

// renderFaultStatus builds the 8-byte aggregate fault frame: two flag
// bytes, total count, most recent code and its last-seen time in seconds.
func (b *BCMSystem) renderFaultStatus() frame.Frame {
	flags1, flags2 := b.faults.Flags()
	count := b.faults.Count()
	if count > 255 {
		count = 255
	}
	recent := b.faults.MostRecent()
	var seconds uint16
	if rec, ok := b.faults.Get(recent); ok {
		seconds = uint16(rec.LastSeen / 1000)
	}

	payload := []byte{
		flags1,
		flags2,
		byte(count),
		byte(recent),
		byte(seconds >> 8),
		byte(seconds),
		frame.PackVerCtr(frame.SchemaVersion, b.faultCounter),
	}
	b.faultCounter = (b.faultCounter + 1) & 0x0F
	payload = append(payload, frame.Checksum(payload))
	return frame.New(frame.IDFaultStatus, payload...)
}

// renderHeartbeat builds the 4-byte liveness frame: operating state and
// uptime minutes wrapped to a byte.
func (b *BCMSystem) renderHeartbeat(now int64) frame.Frame {
	uptime := (now - b.startMs) / 60_000

	payload := []byte{
		b.OperatingState().WireCode(),
		byte(uptime),
		frame.PackVerCtr(frame.SchemaVersion, b.beatCounter),
	}
	b.beatCounter = (b.beatCounter + 1) & 0x0F
	payload = append(payload, frame.Checksum(payload))
	return frame.New(frame.IDHeartbeat, payload...)
}

// refreshOutputs mirrors the controller states onto the actuator lines.
func (b *BCMSystem) refreshOutputs() {
	if b.hw == nil {
		return
	}
	lockMask := b.doors.LockMask()
	for i, name := range [door.Count]string{
		"door_lock_fl", "door_lock_fr", "door_lock_rl", "door_lock_rr",
	} {
		b.writeOutput(name, lockMask&(1<<i) != 0)
	}

	out := b.lights.Output()
	b.writeOutput("headlight_low", out != lighting.OutputOff)
	b.writeOutput("headlight_high", out == lighting.OutputHighBeam)
	_, brightness := b.lights.Interior()
	b.writeOutput("interior_light", brightness > 0)

	lamps := b.turns.LampMask()
	b.writeOutput("turn_left", lamps&0x01 != 0)
	b.writeOutput("turn_right", lamps&0x02 != 0)
}

func (b *BCMSystem) writeOutput(name string, value bool) {
	if err := b.hw.WriteDigitalOutput(name, value); err != nil {
		b.log.Warnf("Failed to write %s: %v", name, err)
	}
}

// Snapshot assembles the externally visible state.
func (b *BCMSystem) Snapshot(now int64) types.Snapshot {
	_, brightness := b.lights.Interior()
	return types.Snapshot{
		State:              b.OperatingState(),
		UptimeMinutes:      uint8((now - b.startMs) / 60_000),
		Ignition:           b.ignition,
		DoorLockMask:       b.doors.LockMask(),
		DoorOpenMask:       b.doors.OpenMask(),
		HeadlightOutput:    uint8(b.lights.Output()),
		InteriorBrightness: brightness,
		AmbientLevel:       b.lights.Ambient(),
		TurnMode:           uint8(b.turns.Mode()),
		LampMask:           b.turns.LampMask(),
		FlashCount:         b.turns.FlashCount(),
		FaultCount:         b.faults.Count(),
		FaultFlags:         b.faults.FlagWord(),
		RecentFault:        uint8(b.faults.MostRecent()),
	}
}

func (b *BCMSystem) publishSnapshot(now int64) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.PublishSnapshot(b.Snapshot(now)); err != nil {
		b.log.Warnf("Failed to publish snapshot: %v", err)
	}
}

// RunLoop drives Process on the fast period until the context ends.
func (b *BCMSystem) RunLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(b.cfg.Timing.FastPeriodMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Process(b.clock.NowMs())
		}
	}
}
