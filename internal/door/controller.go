// Package door drives the four door lock actuators. All doors share one
// command channel: a single CAN identifier with a door-select byte, guarded
// by the checksum and rolling-counter discipline.
package door

import (
	"bcm-service/internal/fault"
	"bcm-service/internal/frame"
	"bcm-service/internal/logger"
)

// Count is the number of doors on this platform.
const Count = 4

// LockState is the lock position of one door. Locking and Unlocking are
// transient: they hold for exactly one fast tick before settling.
type LockState uint8

const (
	Unlocked LockState = iota
	Locked
	Locking
	Unlocking
)

func (s LockState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Locked:
		return "locked"
	case Locking:
		return "locking"
	case Unlocking:
		return "unlocking"
	default:
		return "unknown"
	}
}

// Command bytes accepted on the door channel.
const (
	CmdLockAll      uint8 = 0x01
	CmdUnlockAll    uint8 = 0x02
	CmdLockSingle   uint8 = 0x03
	CmdUnlockSingle uint8 = 0x04
)

const cmdFrameLen = 4

// DefaultAutoLockSpeedKmh is the speed at which the doors self-lock.
const DefaultAutoLockSpeedKmh = 15

// Controller is the door lock state machine.
type Controller struct {
	locks [Count]LockState
	open  [Count]bool

	lastCounter   uint8
	counterSeeded bool
	lastCommandMs int64
	lastResult    frame.Result

	txCounter uint8

	autoLockEnabled    bool
	autoLockSpeedKmh   uint16
	vehicleSpeedKmh    uint16
	speedLockTriggered bool

	faults *fault.Tracker
	log    *logger.Logger
}

// New creates a door controller reporting into the given tracker.
func New(faults *fault.Tracker, log *logger.Logger) *Controller {
	return &Controller{
		autoLockEnabled:  true,
		autoLockSpeedKmh: DefaultAutoLockSpeedKmh,
		faults:           faults,
		log:              log,
	}
}

// ConfigureAutoLock sets the speed-sensitive auto-lock behavior.
func (c *Controller) ConfigureAutoLock(enabled bool, speedKmh uint16) {
	c.autoLockEnabled = enabled
	if speedKmh > 0 {
		c.autoLockSpeedKmh = speedKmh
	}
}

func (c *Controller) reject(result frame.Result, code fault.Code, now int64) frame.Result {
	c.lastResult = result
	c.faults.Report(code, now)
	return result
}

// HandleCommand validates and applies one door command frame. Validation
// order is fixed: length, checksum, counter, command byte, door select.
func (c *Controller) HandleCommand(f frame.Frame, now int64) frame.Result {
	if f.Length != cmdFrameLen {
		return c.reject(frame.ResultInvalidCommand, fault.DoorInvalidLength, now)
	}
	if !frame.ValidChecksum(f.Data[:cmdFrameLen-1], f.Data[cmdFrameLen-1]) {
		return c.reject(frame.ResultChecksumError, fault.DoorInvalidChecksum, now)
	}
	counter := frame.Counter(f.Data[2])
	if c.counterSeeded && !frame.ValidCounter(counter, c.lastCounter) {
		return c.reject(frame.ResultCounterError, fault.DoorInvalidCounter, now)
	}

	cmd := f.Data[0]
	doorID := f.Data[1]
	switch cmd {
	case CmdLockAll:
		c.lockAll()
	case CmdUnlockAll:
		c.unlockAll()
	case CmdLockSingle:
		if doorID >= Count {
			return c.reject(frame.ResultInvalidCommand, fault.DoorInvalidCommand, now)
		}
		c.lock(int(doorID))
	case CmdUnlockSingle:
		if doorID >= Count {
			return c.reject(frame.ResultInvalidCommand, fault.DoorInvalidCommand, now)
		}
		c.unlock(int(doorID))
	default:
		return c.reject(frame.ResultInvalidCommand, fault.DoorInvalidCommand, now)
	}

	c.lastCounter = counter
	c.counterSeeded = true
	c.lastCommandMs = now
	c.lastResult = frame.ResultOK
	return frame.ResultOK
}

func (c *Controller) lock(i int) {
	// Locking an already locked door is an accepted no-op.
	if c.locks[i] == Locked || c.locks[i] == Locking {
		return
	}
	c.locks[i] = Locking
}

func (c *Controller) unlock(i int) {
	if c.locks[i] == Unlocked || c.locks[i] == Unlocking {
		return
	}
	c.locks[i] = Unlocking
}

func (c *Controller) lockAll() {
	for i := 0; i < Count; i++ {
		c.lock(i)
	}
}

func (c *Controller) unlockAll() {
	for i := 0; i < Count; i++ {
		c.unlock(i)
	}
}

// LockAll drives every door toward Locked without frame validation. Used
// by the key fob handler and the speed auto-lock.
func (c *Controller) LockAll() {
	c.lockAll()
}

// UnlockAll drives every door toward Unlocked without frame validation.
func (c *Controller) UnlockAll() {
	c.unlockAll()
}

// Tick advances transient lock states by one fast-period step.
func (c *Controller) Tick() {
	for i := range c.locks {
		switch c.locks[i] {
		case Locking:
			c.locks[i] = Locked
		case Unlocking:
			c.locks[i] = Unlocked
		}
	}
}

// SetDoorOpen reflects a door switch input into the open bitmask.
func (c *Controller) SetDoorOpen(door int, open bool) {
	if door < 0 || door >= Count {
		return
	}
	c.open[door] = open
}

// UpdateVehicleSpeed feeds the speed signal from the ABS/ESP broadcast.
// Crossing the auto-lock threshold locks all doors once per drive cycle;
// the trigger re-arms at standstill.
func (c *Controller) UpdateVehicleSpeed(speedKmh uint16) {
	c.vehicleSpeedKmh = speedKmh

	if c.autoLockEnabled && !c.speedLockTriggered && speedKmh >= c.autoLockSpeedKmh {
		c.log.Infof("Auto-lock at %d km/h", speedKmh)
		c.lockAll()
		c.speedLockTriggered = true
	}
	if speedKmh == 0 {
		c.speedLockTriggered = false
	}
}

// LockMask returns the bitmask of fully locked doors.
func (c *Controller) LockMask() uint8 {
	var mask uint8
	for i, s := range c.locks {
		if s == Locked {
			mask |= 1 << i
		}
	}
	return mask
}

// OpenMask returns the bitmask of open doors.
func (c *Controller) OpenMask() uint8 {
	var mask uint8
	for i, open := range c.open {
		if open {
			mask |= 1 << i
		}
	}
	return mask
}

// State returns the lock state of one door.
func (c *Controller) State(door int) LockState {
	if door < 0 || door >= Count {
		return Unlocked
	}
	return c.locks[door]
}

// LastResult returns the outcome of the most recent command.
func (c *Controller) LastResult() frame.Result {
	return c.lastResult
}

// RenderStatus builds the door status frame. The TX counter is independent
// of the RX validation counter and increments per frame sent.
func (c *Controller) RenderStatus(faultCount int) frame.Frame {
	if faultCount > 255 {
		faultCount = 255
	}
	payload := []byte{
		c.LockMask(),
		c.OpenMask(),
		byte(c.lastResult),
		byte(faultCount),
		frame.PackVerCtr(frame.SchemaVersion, c.txCounter),
	}
	c.txCounter = (c.txCounter + 1) & 0x0F
	payload = append(payload, frame.Checksum(payload))
	return frame.New(frame.IDDoorStatus, payload...)
}
