package frame

import "testing"

// ===== Checksum Tests =====

func TestChecksumEmpty(t *testing.T) {
	if got := Checksum(nil); got != ChecksumSeed {
		t.Errorf("Checksum(nil) = 0x%02X, want 0x%02X", got, ChecksumSeed)
	}
}

func TestChecksumKnownValue(t *testing.T) {
	// 0xAA ^ 0x01 ^ 0xFF ^ 0x10 = 0x44
	got := Checksum([]byte{0x01, 0xFF, 0x10})
	if got != 0x44 {
		t.Errorf("Checksum = 0x%02X, want 0x44", got)
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x00},
		{0x01, 0x02, 0x03},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		{0xAA, 0x55, 0xAA, 0x55},
	}
	for _, b := range payloads {
		if !ValidChecksum(b, Checksum(b)) {
			t.Errorf("round trip failed for % X", b)
		}
	}
}

func TestChecksumDetectsSingleByteMutation(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03, 0x04}
	sum := Checksum(b)
	for i := range b {
		mutated := append([]byte(nil), b...)
		mutated[i] ^= 0x80
		if ValidChecksum(mutated, sum) {
			t.Errorf("mutation at byte %d not detected", i)
		}
	}
}

// ===== Ver/Ctr Packing Tests =====

func TestPackVerCtr(t *testing.T) {
	b := PackVerCtr(1, 5)
	if b != 0x15 {
		t.Errorf("PackVerCtr(1,5) = 0x%02X, want 0x15", b)
	}
	if Version(b) != 1 {
		t.Errorf("Version = %d, want 1", Version(b))
	}
	if Counter(b) != 5 {
		t.Errorf("Counter = %d, want 5", Counter(b))
	}
}

func TestPackVerCtrMasksOverflow(t *testing.T) {
	b := PackVerCtr(0x1F, 0x1F)
	if Version(b) != 0x0F || Counter(b) != 0x0F {
		t.Errorf("overflow not masked: ver=%d ctr=%d", Version(b), Counter(b))
	}
}

// ===== Rolling Counter Tests =====

func TestValidCounterSequence(t *testing.T) {
	for last := uint8(0); last < 16; last++ {
		next := (last + 1) % 16
		if !ValidCounter(next, last) {
			t.Errorf("counter %d after %d rejected", next, last)
		}
	}
}

func TestValidCounterWrap(t *testing.T) {
	if !ValidCounter(0, 15) {
		t.Error("wrap 15 -> 0 rejected")
	}
	if ValidCounter(15, 15) {
		t.Error("repeated counter accepted")
	}
	if ValidCounter(2, 0) {
		t.Error("skipped counter accepted")
	}
}

// ===== Frame Value Tests =====

func TestNewFrame(t *testing.T) {
	f := New(IDDoorCommand, 0x01, 0xFF, 0x10, 0x44)
	if f.ID != IDDoorCommand {
		t.Errorf("ID = 0x%03X, want 0x%03X", f.ID, IDDoorCommand)
	}
	if f.Length != 4 {
		t.Errorf("Length = %d, want 4", f.Length)
	}
	if len(f.Payload()) != 4 || f.Payload()[0] != 0x01 {
		t.Errorf("Payload = % X", f.Payload())
	}
}

func TestNewFrameTruncatesLongPayload(t *testing.T) {
	f := New(0x123, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	if f.Length != MaxDataLen {
		t.Errorf("Length = %d, want %d", f.Length, MaxDataLen)
	}
}
