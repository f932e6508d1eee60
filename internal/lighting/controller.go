// Package lighting drives the headlights and interior light. The command
// intent (headlight mode, interior mode and brightness) is kept separate
// from the physical headlight output, which is recomputed from the mode,
// the ambient light sample and the high-beam flag after every command and
// tick. Auto mode uses a hysteresis band so the output does not chatter
// around a single threshold.
package lighting

import (
	"bcm-service/internal/fault"
	"bcm-service/internal/frame"
	"bcm-service/internal/logger"
)

// HeadlightMode is the command-driven intent.
type HeadlightMode uint8

const (
	ModeOff HeadlightMode = iota
	ModeOn
	ModeAuto
)

func (m HeadlightMode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeOn:
		return "on"
	case ModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// Output is the computed physical headlight result.
type Output uint8

const (
	OutputOff Output = iota
	OutputOn
	OutputAuto
	OutputHighBeam
)

// InteriorMode selects the interior light behavior.
type InteriorMode uint8

const (
	InteriorOff InteriorMode = iota
	InteriorOn
	InteriorAuto
)

// Headlight command bytes.
const (
	CmdHeadlightOff  uint8 = 0x00
	CmdHeadlightOn   uint8 = 0x01
	CmdHeadlightAuto uint8 = 0x02
	CmdHighBeamOn    uint8 = 0x03
	CmdHighBeamOff   uint8 = 0x04
)

const cmdFrameLen = 4

// Default hysteresis thresholds on the 0..255 ambient scale. The on
// threshold must stay below the off threshold.
const (
	DefaultOnThreshold  = 80
	DefaultOffThreshold = 160
)

// DefaultSensorTimeoutMs is how long the ambient sensor may stay silent
// in Auto mode before it is presumed dead.
const DefaultSensorTimeoutMs = 5000

// Controller is the lighting state machine.
type Controller struct {
	mode     HeadlightMode
	output   Output
	highBeam bool

	interiorMode InteriorMode
	brightness   uint8 // 0..15

	ambient        uint8
	lastAmbientMs  int64
	sensorFaulted  bool
	onThreshold    uint8
	offThreshold   uint8
	sensorTimeout  int64

	lastCounter   uint8
	counterSeeded bool
	lastCommandMs int64
	lastResult    frame.Result

	txCounter uint8

	faults *fault.Tracker
	log    *logger.Logger
}

// New creates a lighting controller reporting into the given tracker.
func New(faults *fault.Tracker, log *logger.Logger) *Controller {
	return &Controller{
		onThreshold:   DefaultOnThreshold,
		offThreshold:  DefaultOffThreshold,
		sensorTimeout: DefaultSensorTimeoutMs,
		faults:        faults,
		log:           log,
	}
}

// ConfigureThresholds sets the auto-headlight hysteresis band and the
// ambient sensor timeout. Invalid bands (on >= off) are ignored.
func (c *Controller) ConfigureThresholds(on, off uint8, sensorTimeoutMs int64) {
	if on < off {
		c.onThreshold = on
		c.offThreshold = off
	}
	if sensorTimeoutMs > 0 {
		c.sensorTimeout = sensorTimeoutMs
	}
}

func (c *Controller) reject(result frame.Result, code fault.Code, now int64) frame.Result {
	c.lastResult = result
	c.faults.Report(code, now)
	return result
}

// HandleCommand validates and applies one lighting command frame.
func (c *Controller) HandleCommand(f frame.Frame, now int64) frame.Result {
	if f.Length != cmdFrameLen {
		return c.reject(frame.ResultInvalidCommand, fault.LightingInvalidLength, now)
	}
	if !frame.ValidChecksum(f.Data[:cmdFrameLen-1], f.Data[cmdFrameLen-1]) {
		return c.reject(frame.ResultChecksumError, fault.LightingInvalidChecksum, now)
	}
	counter := frame.Counter(f.Data[2])
	if c.counterSeeded && !frame.ValidCounter(counter, c.lastCounter) {
		return c.reject(frame.ResultCounterError, fault.LightingInvalidCounter, now)
	}

	headlight := f.Data[0]
	if headlight > CmdHighBeamOff {
		return c.reject(frame.ResultInvalidCommand, fault.LightingInvalidCommand, now)
	}
	interior := f.Data[1]
	interiorMode := InteriorMode(interior & 0x03)
	if interiorMode > InteriorAuto {
		return c.reject(frame.ResultInvalidCommand, fault.LightingInvalidCommand, now)
	}

	switch headlight {
	case CmdHeadlightOff:
		c.mode = ModeOff
	case CmdHeadlightOn:
		c.mode = ModeOn
	case CmdHeadlightAuto:
		c.mode = ModeAuto
	case CmdHighBeamOn:
		c.highBeam = true
	case CmdHighBeamOff:
		c.highBeam = false
	}

	c.interiorMode = interiorMode
	switch interiorMode {
	case InteriorOff:
		c.brightness = 0
	case InteriorOn:
		c.brightness = interior >> 4
	case InteriorAuto:
		// Brightness unmanaged in auto mode.
	}

	c.lastCounter = counter
	c.counterSeeded = true
	c.lastCommandMs = now
	c.lastResult = frame.ResultOK
	c.recompute()
	return frame.ResultOK
}

// recompute derives the physical output from mode, ambient sample and
// high-beam flag. Auto mode is hysteretic: once lit, the output holds
// until ambient rises above the off threshold.
func (c *Controller) recompute() {
	var out Output
	switch c.mode {
	case ModeOff:
		out = OutputOff
	case ModeOn:
		out = OutputOn
	case ModeAuto:
		lit := c.output != OutputOff
		switch {
		case !lit && c.ambient < c.onThreshold:
			out = OutputAuto
		case lit && c.ambient > c.offThreshold:
			out = OutputOff
		case lit:
			out = OutputAuto
		default:
			out = OutputOff
		}
	}
	if c.highBeam && out != OutputOff {
		out = OutputHighBeam
	}
	c.output = out
}

// SetAmbient stores a fresh ambient light sample and recomputes the
// output. A fresh sample clears a previously raised sensor fault.
func (c *Controller) SetAmbient(level uint8, now int64) {
	c.ambient = level
	c.lastAmbientMs = now
	if c.sensorFaulted {
		c.faults.Clear(fault.LightingSensorTimeout)
		c.sensorFaulted = false
	}
	c.recompute()
}

// Tick recomputes the output and checks ambient sensor liveness. A silent
// sensor only matters while the headlights depend on it (Auto mode).
func (c *Controller) Tick(now int64) {
	if c.mode == ModeAuto && !c.sensorFaulted && now-c.lastAmbientMs > c.sensorTimeout {
		c.log.Warnf("Ambient sensor silent for %dms", now-c.lastAmbientMs)
		c.faults.Report(fault.LightingSensorTimeout, now)
		c.sensorFaulted = true
	}
	c.recompute()
}

// Mode returns the commanded headlight mode.
func (c *Controller) Mode() HeadlightMode {
	return c.mode
}

// Output returns the computed physical headlight output.
func (c *Controller) Output() Output {
	return c.output
}

// Interior returns the interior mode and brightness.
func (c *Controller) Interior() (InteriorMode, uint8) {
	return c.interiorMode, c.brightness
}

// Ambient returns the latest ambient sample.
func (c *Controller) Ambient() uint8 {
	return c.ambient
}

// LastResult returns the outcome of the most recent command.
func (c *Controller) LastResult() frame.Result {
	return c.lastResult
}

// RenderStatus builds the lighting status frame.
func (c *Controller) RenderStatus() frame.Frame {
	interior := byte(c.interiorMode) | (c.brightness&0x0F)<<2
	payload := []byte{
		byte(c.output),
		interior,
		c.ambient,
		byte(c.lastResult),
		frame.PackVerCtr(frame.SchemaVersion, c.txCounter),
	}
	c.txCounter = (c.txCounter + 1) & 0x0F
	payload = append(payload, frame.Checksum(payload))
	return frame.New(frame.IDLightingStatus, payload...)
}
