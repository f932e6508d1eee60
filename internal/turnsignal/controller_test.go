package turnsignal

import (
	"testing"

	"bcm-service/internal/fault"
	"bcm-service/internal/frame"
	"bcm-service/internal/logger"
)

func newTestController() (*Controller, *fault.Tracker) {
	tr := fault.NewTracker(8)
	l := logger.NewLogger(nil, logger.LogLevelNone)
	return New(tr, l), tr
}

func cmdFrame(cmd, counter uint8) frame.Frame {
	payload := []byte{cmd, 0x00, frame.PackVerCtr(frame.SchemaVersion, counter)}
	payload = append(payload, frame.Checksum(payload))
	return frame.New(frame.IDTurnCommand, payload...)
}

// ===== Validation Tests =====

func TestRejectWrongLength(t *testing.T) {
	c, tr := newTestController()

	f := frame.New(frame.IDTurnCommand, CmdLeft)
	if res := c.HandleCommand(f, 0); res != frame.ResultInvalidCommand {
		t.Errorf("result = %v", res)
	}
	if !tr.IsActive(fault.TurnInvalidLength) {
		t.Error("length fault not reported")
	}
}

func TestRejectUnknownCommand(t *testing.T) {
	c, tr := newTestController()

	if res := c.HandleCommand(cmdFrame(0x05, 0), 0); res != frame.ResultInvalidCommand {
		t.Errorf("result = %v", res)
	}
	if !tr.IsActive(fault.TurnInvalidCommand) {
		t.Error("command fault not reported")
	}
	if c.Mode() != Off {
		t.Errorf("mode changed by rejected command: %v", c.Mode())
	}
}

func TestRejectCounterReplay(t *testing.T) {
	c, tr := newTestController()

	c.HandleCommand(cmdFrame(CmdLeft, 5), 0)
	if res := c.HandleCommand(cmdFrame(CmdOff, 5), 1); res != frame.ResultCounterError {
		t.Errorf("result = %v", res)
	}
	if !tr.IsActive(fault.TurnInvalidCounter) {
		t.Error("counter fault not reported")
	}
	if c.Mode() != Left {
		t.Errorf("mode changed by rejected command: %v", c.Mode())
	}
}

// ===== Mode Transition Tests =====

func TestDirectionCommands(t *testing.T) {
	c, _ := newTestController()

	c.HandleCommand(cmdFrame(CmdLeft, 0), 0)
	if c.Mode() != Left {
		t.Fatalf("mode = %v, want left", c.Mode())
	}
	if c.LampMask() != 0x01 {
		t.Errorf("lamp mask = %02X, want 01", c.LampMask())
	}

	// Switching sides restarts the pattern on the other lamp.
	c.HandleCommand(cmdFrame(CmdRight, 1), 100)
	if c.Mode() != Right {
		t.Fatalf("mode = %v, want right", c.Mode())
	}
	if c.LampMask() != 0x02 {
		t.Errorf("lamp mask = %02X, want 02", c.LampMask())
	}

	c.HandleCommand(cmdFrame(CmdOff, 2), 200)
	if c.Mode() != Off || c.LampMask() != 0 {
		t.Errorf("mode=%v mask=%02X after off", c.Mode(), c.LampMask())
	}
}

func TestHazardLightsBothLamps(t *testing.T) {
	c, _ := newTestController()

	c.HandleCommand(cmdFrame(CmdHazardOn, 0), 0)
	if c.Mode() != Hazard {
		t.Fatalf("mode = %v, want hazard", c.Mode())
	}
	if c.LampMask() != 0x03 {
		t.Errorf("lamp mask = %02X, want 03", c.LampMask())
	}
}

func TestHazardIsSticky(t *testing.T) {
	c, _ := newTestController()

	c.HandleCommand(cmdFrame(CmdHazardOn, 0), 0)

	// Neither a direction command nor a plain off exits hazard.
	if res := c.HandleCommand(cmdFrame(CmdLeft, 1), 10); res != frame.ResultOK {
		t.Fatalf("direction during hazard rejected: %v", res)
	}
	if c.Mode() != Hazard {
		t.Errorf("direction command broke hazard: %v", c.Mode())
	}
	c.HandleCommand(cmdFrame(CmdOff, 2), 20)
	if c.Mode() != Hazard {
		t.Errorf("off command broke hazard: %v", c.Mode())
	}

	c.HandleCommand(cmdFrame(CmdHazardOff, 3), 30)
	if c.Mode() != Off {
		t.Errorf("hazard-off did not exit hazard: %v", c.Mode())
	}
}

func TestHazardOverridesDirection(t *testing.T) {
	c, _ := newTestController()

	c.HandleCommand(cmdFrame(CmdLeft, 0), 0)
	c.HandleCommand(cmdFrame(CmdHazardOn, 1), 10)
	if c.Mode() != Hazard {
		t.Errorf("mode = %v, want hazard", c.Mode())
	}
}

func TestRepeatedDirectionIsNoOp(t *testing.T) {
	c, _ := newTestController()

	c.HandleCommand(cmdFrame(CmdLeft, 0), 0)
	c.Tick(200)
	count := c.FlashCount()

	// Repeating the active direction must not restart the pattern.
	c.HandleCommand(cmdFrame(CmdLeft, 1), 300)
	if c.FlashCount() != count {
		t.Errorf("flash count reset by repeated command: %d -> %d", count, c.FlashCount())
	}
}

func TestActivateHazardExternal(t *testing.T) {
	c, _ := newTestController()

	c.ActivateHazard(0)
	if c.Mode() != Hazard || c.LampMask() != 0x03 {
		t.Errorf("mode=%v mask=%02X", c.Mode(), c.LampMask())
	}
	if c.FlashCount() != 1 {
		t.Errorf("flash count = %d, want 1", c.FlashCount())
	}
}

// ===== Flash Cadence Tests =====

func TestTurnFlashCadence(t *testing.T) {
	c, _ := newTestController()

	c.HandleCommand(cmdFrame(CmdLeft, 0), 0)
	if c.LampMask() != 0x01 || c.FlashCount() != 1 {
		t.Fatalf("activation: mask=%02X count=%d", c.LampMask(), c.FlashCount())
	}

	// Lit for [0,500), dark for [500,1000), lit again at 1000.
	c.Tick(499)
	if c.LampMask() != 0x01 {
		t.Error("lamp dropped before on-duration elapsed")
	}
	c.Tick(500)
	if c.LampMask() != 0x00 {
		t.Error("lamp still lit after on-duration")
	}
	c.Tick(999)
	if c.LampMask() != 0x00 {
		t.Error("lamp lit before off-duration elapsed")
	}
	c.Tick(1000)
	if c.LampMask() != 0x01 {
		t.Error("lamp not relit after off-duration")
	}
	if c.FlashCount() != 2 {
		t.Errorf("flash count = %d, want 2", c.FlashCount())
	}
}

func TestHazardFlashesFaster(t *testing.T) {
	c, _ := newTestController()

	c.HandleCommand(cmdFrame(CmdHazardOn, 0), 0)
	c.Tick(400)
	if c.LampMask() != 0x00 {
		t.Error("hazard lamps still lit after 400ms")
	}
	c.Tick(800)
	if c.LampMask() != 0x03 {
		t.Error("hazard lamps not relit after 800ms")
	}
}

func TestFlashCountWraps(t *testing.T) {
	c, _ := newTestController()
	c.HandleCommand(cmdFrame(CmdLeft, 0), 0)

	now := int64(0)
	for i := 0; i < 300; i++ {
		now += DefaultTurnOnMs
		c.Tick(now)
		now += DefaultTurnOffMs
		c.Tick(now)
	}
	// 1 activation edge + 300 cycle edges, modulo 256.
	if c.FlashCount() != uint8(301%256) {
		t.Errorf("flash count = %d, want %d", c.FlashCount(), 301%256)
	}
}

// ===== Idle Timeout Tests =====

func TestIdleTimeoutCancelsTurn(t *testing.T) {
	c, tr := newTestController()

	c.HandleCommand(cmdFrame(CmdLeft, 0), 0)
	c.CheckTimeout(DefaultIdleCancelMs)
	if c.Mode() != Left {
		t.Fatal("cancelled at exactly the threshold")
	}

	c.CheckTimeout(DefaultIdleCancelMs + 1)
	if c.Mode() != Off {
		t.Errorf("mode = %v after idle timeout, want off", c.Mode())
	}
	if !tr.IsActive(fault.TurnCommandTimeout) {
		t.Error("timeout fault not reported")
	}
}

func TestIdleTimeoutNeverCancelsHazard(t *testing.T) {
	c, tr := newTestController()

	c.HandleCommand(cmdFrame(CmdHazardOn, 0), 0)
	c.CheckTimeout(DefaultIdleCancelMs * 100)
	if c.Mode() != Hazard {
		t.Error("hazard auto-cancelled")
	}
	if tr.IsActive(fault.TurnCommandTimeout) {
		t.Error("timeout fault reported for hazard")
	}
}

// ===== Status Frame Tests =====

func TestRenderStatus(t *testing.T) {
	c, _ := newTestController()

	c.HandleCommand(cmdFrame(CmdRight, 0), 0)
	f := c.RenderStatus()
	if f.ID != frame.IDTurnStatus || f.Length != 6 {
		t.Fatalf("frame %03X len %d", f.ID, f.Length)
	}
	if f.Data[0] != byte(Right) {
		t.Errorf("mode byte = %02X", f.Data[0])
	}
	if f.Data[1] != 0x02 {
		t.Errorf("lamp mask = %02X, want 02", f.Data[1])
	}
	if f.Data[2] != 1 {
		t.Errorf("flash count = %d, want 1", f.Data[2])
	}
	if f.Data[3] != byte(frame.ResultOK) {
		t.Errorf("result byte = %02X", f.Data[3])
	}
	if !frame.ValidChecksum(f.Data[:5], f.Data[5]) {
		t.Error("status checksum invalid")
	}
}
