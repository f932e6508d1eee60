package fault

import "testing"

// ===== Report / Query Tests =====

func TestReportNewFault(t *testing.T) {
	tr := NewTracker(8)

	if !tr.Report(DoorInvalidChecksum, 100) {
		t.Fatal("Report returned false with capacity available")
	}
	if !tr.IsActive(DoorInvalidChecksum) {
		t.Error("fault not active after report")
	}
	if tr.Count() != 1 {
		t.Errorf("Count = %d, want 1", tr.Count())
	}
	if tr.MostRecent() != DoorInvalidChecksum {
		t.Errorf("MostRecent = %v", tr.MostRecent())
	}
}

func TestReportRepeatedFaultBumpsCount(t *testing.T) {
	tr := NewTracker(8)

	tr.Report(TurnCommandTimeout, 100)
	tr.Report(TurnCommandTimeout, 250)

	rec, ok := tr.Get(TurnCommandTimeout)
	if !ok {
		t.Fatal("record missing")
	}
	if rec.Count != 2 {
		t.Errorf("Count = %d, want 2", rec.Count)
	}
	if rec.FirstSeen != 100 || rec.LastSeen != 250 {
		t.Errorf("timestamps = %d/%d, want 100/250", rec.FirstSeen, rec.LastSeen)
	}
	if tr.Count() != 1 {
		t.Errorf("tracker Count = %d, want 1", tr.Count())
	}
}

func TestReportBeyondCapacityDropsSilently(t *testing.T) {
	tr := NewTracker(4)

	codes := []Code{
		DoorInvalidLength, DoorInvalidChecksum,
		DoorInvalidCounter, DoorInvalidCommand,
	}
	for _, c := range codes {
		if !tr.Report(c, 10) {
			t.Fatalf("report of %v failed below capacity", c)
		}
	}

	if tr.Report(LightingSensorTimeout, 20) {
		t.Error("report beyond capacity returned true")
	}
	if tr.Count() != 4 {
		t.Errorf("Count = %d, want 4", tr.Count())
	}
	if tr.IsActive(LightingSensorTimeout) {
		t.Error("dropped fault reported as active")
	}
	// Existing records must be untouched.
	for _, c := range codes {
		if !tr.IsActive(c) {
			t.Errorf("existing fault %v corrupted", c)
		}
	}
	if tr.MostRecent() != DoorInvalidCommand {
		t.Errorf("MostRecent changed by dropped fault: %v", tr.MostRecent())
	}
}

func TestReportExistingCodeAtCapacity(t *testing.T) {
	tr := NewTracker(2)
	tr.Report(DoorInvalidLength, 1)
	tr.Report(DoorInvalidChecksum, 2)

	// Re-reporting an existing code still works when full.
	if !tr.Report(DoorInvalidLength, 3) {
		t.Error("re-report of existing code failed at capacity")
	}
}

// ===== Clear Tests =====

func TestClearFault(t *testing.T) {
	tr := NewTracker(8)
	tr.Report(LightingInvalidCommand, 50)

	tr.Clear(LightingInvalidCommand)
	if tr.IsActive(LightingInvalidCommand) {
		t.Error("fault still active after clear")
	}
	if tr.Count() != 0 {
		t.Errorf("Count = %d, want 0", tr.Count())
	}

	// Clearing an absent code is a no-op.
	tr.Clear(LightingInvalidCommand)
}

func TestClearAll(t *testing.T) {
	tr := NewTracker(8)
	tr.Report(DoorInvalidLength, 1)
	tr.Report(TurnInvalidChecksum, 2)

	tr.ClearAll()
	if tr.Count() != 0 {
		t.Errorf("Count = %d, want 0", tr.Count())
	}
	f1, f2 := tr.Flags()
	if f1 != 0 || f2 != 0 {
		t.Errorf("flags = %02X %02X, want zero", f1, f2)
	}
	if tr.MostRecent() != None {
		t.Errorf("MostRecent = %v, want None", tr.MostRecent())
	}
}

// ===== Flag Bitmask Tests =====

func TestFlagsBitPerCode(t *testing.T) {
	tr := NewTracker(8)

	tr.Report(DoorInvalidLength, 1) // bit 0
	f1, f2 := tr.Flags()
	if f1 != 0x01 || f2 != 0x00 {
		t.Errorf("flags = %02X %02X, want 01 00", f1, f2)
	}

	tr.Report(LightingSensorTimeout, 2) // bit 8
	f1, f2 = tr.Flags()
	if f1 != 0x01 || f2 != 0x01 {
		t.Errorf("flags = %02X %02X, want 01 01", f1, f2)
	}

	tr.Report(TurnCommandTimeout, 3) // bit 13
	_, f2 = tr.Flags()
	if f2&0x20 == 0 {
		t.Errorf("turn timeout bit not set: %02X", f2)
	}

	tr.Clear(DoorInvalidLength)
	f1, _ = tr.Flags()
	if f1&0x01 != 0 {
		t.Errorf("door bit not cleared: %02X", f1)
	}
}

func TestFlagBitMapping(t *testing.T) {
	cases := []struct {
		code Code
		bit  uint
	}{
		{DoorInvalidLength, 0},
		{DoorInvalidCommand, 3},
		{LightingInvalidLength, 4},
		{LightingSensorTimeout, 8},
		{TurnInvalidLength, 9},
		{TurnCommandTimeout, 13},
		{SystemCANError, 14},
	}
	for _, c := range cases {
		bit, ok := c.code.FlagBit()
		if !ok {
			t.Errorf("%v has no flag bit", c.code)
			continue
		}
		if bit != c.bit {
			t.Errorf("%v bit = %d, want %d", c.code, bit, c.bit)
		}
	}
	if _, ok := Code(0x4F).FlagBit(); ok {
		t.Error("unknown code mapped to a flag bit")
	}
	if _, ok := None.FlagBit(); ok {
		t.Error("None mapped to a flag bit")
	}
}
