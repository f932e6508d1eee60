// Package turnsignal drives the turn indicators and hazard flashers. Hazard
// is sticky: once active it ignores direction commands and only an explicit
// hazard-off command exits it. The idle timeout that cancels a forgotten
// turn signal therefore never applies to hazard.
package turnsignal

import (
	"bcm-service/internal/fault"
	"bcm-service/internal/frame"
	"bcm-service/internal/logger"
)

// Mode is the active flash pattern.
type Mode uint8

const (
	Off Mode = iota
	Left
	Right
	Hazard
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "off"
	case Left:
		return "left"
	case Right:
		return "right"
	case Hazard:
		return "hazard"
	default:
		return "unknown"
	}
}

// Command bytes accepted on the turn channel.
const (
	CmdOff       uint8 = 0x00
	CmdLeft      uint8 = 0x01
	CmdRight     uint8 = 0x02
	CmdHazardOn  uint8 = 0x03
	CmdHazardOff uint8 = 0x04
)

const cmdFrameLen = 4

// Default flash cadence and idle cancel threshold, in milliseconds. Hazard
// flashes faster than a normal turn signal.
const (
	DefaultTurnOnMs     = 500
	DefaultTurnOffMs    = 500
	DefaultHazardOnMs   = 400
	DefaultHazardOffMs  = 400
	DefaultIdleCancelMs = 120_000
)

// Controller is the turn signal state machine.
type Controller struct {
	mode         Mode
	lampOn       bool
	flashCount   uint8
	lastToggleMs int64

	turnOnMs     int64
	turnOffMs    int64
	hazardOnMs   int64
	hazardOffMs  int64
	idleCancelMs int64

	lastCounter   uint8
	counterSeeded bool
	lastCommandMs int64
	lastResult    frame.Result

	txCounter uint8

	faults *fault.Tracker
	log    *logger.Logger
}

// New creates a turn signal controller reporting into the given tracker.
func New(faults *fault.Tracker, log *logger.Logger) *Controller {
	return &Controller{
		turnOnMs:     DefaultTurnOnMs,
		turnOffMs:    DefaultTurnOffMs,
		hazardOnMs:   DefaultHazardOnMs,
		hazardOffMs:  DefaultHazardOffMs,
		idleCancelMs: DefaultIdleCancelMs,
		faults:       faults,
		log:          log,
	}
}

// ConfigureTiming overrides the flash cadence and idle cancel threshold.
// Non-positive values keep the current setting.
func (c *Controller) ConfigureTiming(turnOnMs, turnOffMs, hazardOnMs, hazardOffMs, idleCancelMs int64) {
	if turnOnMs > 0 {
		c.turnOnMs = turnOnMs
	}
	if turnOffMs > 0 {
		c.turnOffMs = turnOffMs
	}
	if hazardOnMs > 0 {
		c.hazardOnMs = hazardOnMs
	}
	if hazardOffMs > 0 {
		c.hazardOffMs = hazardOffMs
	}
	if idleCancelMs > 0 {
		c.idleCancelMs = idleCancelMs
	}
}

func (c *Controller) reject(result frame.Result, code fault.Code, now int64) frame.Result {
	c.lastResult = result
	c.faults.Report(code, now)
	return result
}

// HandleCommand validates and applies one turn command frame.
func (c *Controller) HandleCommand(f frame.Frame, now int64) frame.Result {
	if f.Length != cmdFrameLen {
		return c.reject(frame.ResultInvalidCommand, fault.TurnInvalidLength, now)
	}
	if !frame.ValidChecksum(f.Data[:cmdFrameLen-1], f.Data[cmdFrameLen-1]) {
		return c.reject(frame.ResultChecksumError, fault.TurnInvalidChecksum, now)
	}
	counter := frame.Counter(f.Data[2])
	if c.counterSeeded && !frame.ValidCounter(counter, c.lastCounter) {
		return c.reject(frame.ResultCounterError, fault.TurnInvalidCounter, now)
	}

	cmd := f.Data[0]
	if cmd > CmdHazardOff {
		return c.reject(frame.ResultInvalidCommand, fault.TurnInvalidCommand, now)
	}

	switch cmd {
	case CmdOff:
		// Hazard only exits via the explicit hazard-off command.
		if c.mode == Left || c.mode == Right {
			c.deactivate()
		}
	case CmdLeft:
		if c.mode != Hazard && c.mode != Left {
			c.activate(Left, now)
		}
	case CmdRight:
		if c.mode != Hazard && c.mode != Right {
			c.activate(Right, now)
		}
	case CmdHazardOn:
		if c.mode != Hazard {
			c.activate(Hazard, now)
		}
	case CmdHazardOff:
		if c.mode == Hazard {
			c.deactivate()
		}
	}

	c.lastCounter = counter
	c.counterSeeded = true
	c.lastCommandMs = now
	c.lastResult = frame.ResultOK
	return frame.ResultOK
}

// activate starts a flash pattern with the lamp lit. The activation edge
// counts as the first rising edge.
func (c *Controller) activate(mode Mode, now int64) {
	c.mode = mode
	c.flashCount = 0
	c.lampOn = false
	c.riseLamp(now)
}

func (c *Controller) deactivate() {
	c.mode = Off
	c.lampOn = false
}

func (c *Controller) riseLamp(now int64) {
	c.lampOn = true
	c.lastToggleMs = now
	c.flashCount++
}

// ActivateHazard turns the hazard flashers on without frame validation.
// Used by the key fob panic handler.
func (c *Controller) ActivateHazard(now int64) {
	if c.mode == Hazard {
		return
	}
	c.log.Infof("Hazard activated externally")
	c.activate(Hazard, now)
	c.lastCommandMs = now
}

// DeactivateHazard turns the hazard flashers off without frame validation.
// A no-op in any other mode.
func (c *Controller) DeactivateHazard() {
	if c.mode != Hazard {
		return
	}
	c.log.Infof("Hazard deactivated externally")
	c.deactivate()
}

// Tick advances the flash phase. The lamp holds each phase for the mode's
// on or off duration and the flash count increments on rising edges only.
func (c *Controller) Tick(now int64) {
	if c.mode == Off {
		return
	}

	onMs, offMs := c.turnOnMs, c.turnOffMs
	if c.mode == Hazard {
		onMs, offMs = c.hazardOnMs, c.hazardOffMs
	}

	threshold := offMs
	if c.lampOn {
		threshold = onMs
	}
	if now-c.lastToggleMs >= threshold {
		if c.lampOn {
			c.lampOn = false
			c.lastToggleMs = now
		} else {
			c.riseLamp(now)
		}
	}
}

// CheckTimeout cancels a turn signal left flashing past the idle threshold.
// Hazard must never auto-cancel.
func (c *Controller) CheckTimeout(now int64) {
	if c.mode != Left && c.mode != Right {
		return
	}
	if now-c.lastCommandMs > c.idleCancelMs {
		c.log.Warnf("Turn signal %v idle for %dms, cancelling", c.mode, now-c.lastCommandMs)
		c.deactivate()
		c.faults.Report(fault.TurnCommandTimeout, now)
	}
}

// Mode returns the active flash pattern.
func (c *Controller) Mode() Mode {
	return c.mode
}

// LampMask returns the lit lamps: bit 0 left, bit 1 right.
func (c *Controller) LampMask() uint8 {
	if !c.lampOn {
		return 0
	}
	switch c.mode {
	case Left:
		return 0x01
	case Right:
		return 0x02
	case Hazard:
		return 0x03
	default:
		return 0
	}
}

// FlashCount returns the wrapping count of completed rising edges.
func (c *Controller) FlashCount() uint8 {
	return c.flashCount
}

// LastResult returns the outcome of the most recent command.
func (c *Controller) LastResult() frame.Result {
	return c.lastResult
}

// RenderStatus builds the turn signal status frame.
func (c *Controller) RenderStatus() frame.Frame {
	payload := []byte{
		byte(c.mode),
		c.LampMask(),
		c.flashCount,
		byte(c.lastResult),
		frame.PackVerCtr(frame.SchemaVersion, c.txCounter),
	}
	c.txCounter = (c.txCounter + 1) & 0x0F
	payload = append(payload, frame.Checksum(payload))
	return frame.New(frame.IDTurnStatus, payload...)
}
