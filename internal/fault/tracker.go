// Package fault keeps the BCM's bounded fault log. The log is best-effort:
// when the fixed capacity is exhausted, new codes are dropped silently, and
// the system keeps running. Every state machine reports into one shared
// tracker; queries feed the fault status frame.
package fault

// DefaultCapacity bounds the fault log when no explicit capacity is given.
const DefaultCapacity = 8

// Record is one logged fault condition.
type Record struct {
	Code      Code
	FirstSeen int64 // milliseconds, monotonic
	LastSeen  int64
	Count     uint16
}

// Tracker is the bounded fault log. It performs no I/O and is not
// internally synchronized: the core mutates it from a single control flow.
type Tracker struct {
	records []Record
	flags   uint16
	recent  Code
}

// NewTracker creates a tracker with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		records: make([]Record, 0, capacity),
	}
}

func (t *Tracker) find(code Code) int {
	for i := range t.records {
		if t.records[i].Code == code {
			return i
		}
	}
	return -1
}

// Report logs one occurrence of a fault. An already active code bumps its
// occurrence count; a new code is inserted if capacity remains. Returns
// false when the log is full and the fault was dropped.
func (t *Tracker) Report(code Code, now int64) bool {
	if idx := t.find(code); idx >= 0 {
		t.records[idx].LastSeen = now
		t.records[idx].Count++
		t.recent = code
		return true
	}

	if len(t.records) == cap(t.records) {
		// Best-effort log: full means the fault is lost, not an error.
		return false
	}

	t.records = append(t.records, Record{
		Code:      code,
		FirstSeen: now,
		LastSeen:  now,
		Count:     1,
	})
	if bit, ok := code.FlagBit(); ok {
		t.flags |= 1 << bit
	}
	t.recent = code
	return true
}

// Clear removes a fault from the log. Absent codes are a no-op.
func (t *Tracker) Clear(code Code) {
	idx := t.find(code)
	if idx < 0 {
		return
	}
	t.records = append(t.records[:idx], t.records[idx+1:]...)
	if bit, ok := code.FlagBit(); ok {
		t.flags &^= 1 << bit
	}
	if t.recent == code {
		t.recent = None
	}
}

// ClearAll empties the log and zeroes both flag bytes.
func (t *Tracker) ClearAll() {
	t.records = t.records[:0]
	t.flags = 0
	t.recent = None
}

// IsActive reports whether the code is currently logged.
func (t *Tracker) IsActive(code Code) bool {
	return t.find(code) >= 0
}

// Count returns the number of active fault records.
func (t *Tracker) Count() int {
	return len(t.records)
}

// Flags returns the two aggregate flag bytes, one bit per known code.
func (t *Tracker) Flags() (byte, byte) {
	return byte(t.flags & 0xFF), byte(t.flags >> 8)
}

// FlagWord returns the full 16-bit aggregate flag word.
func (t *Tracker) FlagWord() uint16 {
	return t.flags
}

// MostRecent returns the last reported code, or None.
func (t *Tracker) MostRecent() Code {
	return t.recent
}

// Get returns the record for a code, if logged.
func (t *Tracker) Get(code Code) (Record, bool) {
	idx := t.find(code)
	if idx < 0 {
		return Record{}, false
	}
	return t.records[idx], true
}

// Records returns a copy of the active records, oldest insertion first.
func (t *Tracker) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}
