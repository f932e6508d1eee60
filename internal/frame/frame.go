// Package frame defines the CAN frame value type and the codec helpers
// shared by every BCM command and status channel: the XOR checksum and the
// packed version/rolling-counter byte.
package frame

// MaxDataLen is the standard CAN payload limit.
const MaxDataLen = 8

// SchemaVersion is carried in the upper nibble of every ver/ctr byte.
const SchemaVersion uint8 = 1

// ChecksumSeed is the XOR fold seed for all BCM frames.
const ChecksumSeed byte = 0xAA

// Command frame IDs received by the BCM.
const (
	IDDoorCommand     uint16 = 0x100
	IDLightingCommand uint16 = 0x110
	IDTurnCommand     uint16 = 0x120
)

// External ECU frame IDs received by the BCM. These carry plain sensor
// data from other modules and do not use the checksum/counter discipline.
const (
	IDIgnitionStatus uint16 = 0x130
	IDVehicleSpeed   uint16 = 0x140
	IDAmbientLight   uint16 = 0x150
	IDKeyfobCommand  uint16 = 0x160
)

// Status frame IDs transmitted by the BCM.
const (
	IDDoorStatus     uint16 = 0x200
	IDLightingStatus uint16 = 0x210
	IDTurnStatus     uint16 = 0x220
	IDFaultStatus    uint16 = 0x230
	IDHeartbeat      uint16 = 0x240
)

// Frame is one CAN transmission unit. It is a plain value: created at the
// transport boundary, consumed once by a handler or produced once by a
// status render, never shared.
type Frame struct {
	ID     uint16 // 11-bit identifier
	Length uint8  // 0..8
	Data   [MaxDataLen]byte
}

// New builds a frame from an identifier and payload bytes. Payloads longer
// than MaxDataLen are truncated.
func New(id uint16, data ...byte) Frame {
	f := Frame{ID: id}
	if len(data) > MaxDataLen {
		data = data[:MaxDataLen]
	}
	f.Length = uint8(len(data))
	copy(f.Data[:], data)
	return f
}

// Payload returns the valid portion of the data bytes.
func (f Frame) Payload() []byte {
	n := f.Length
	if n > MaxDataLen {
		n = MaxDataLen
	}
	return f.Data[:n]
}

// Result is the per-channel command validation outcome, carried in the
// result byte of every status frame.
type Result uint8

const (
	ResultOK Result = iota
	ResultInvalidCommand
	ResultChecksumError
	ResultCounterError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultInvalidCommand:
		return "invalid-command"
	case ResultChecksumError:
		return "checksum-error"
	case ResultCounterError:
		return "counter-error"
	default:
		return "unknown"
	}
}

// Checksum XOR-folds the given bytes over the seed. An empty slice yields
// the seed itself.
func Checksum(b []byte) byte {
	sum := ChecksumSeed
	for _, v := range b {
		sum ^= v
	}
	return sum
}

// ValidChecksum reports whether the claimed checksum matches the bytes.
func ValidChecksum(b []byte, claimed byte) bool {
	return Checksum(b) == claimed
}

// PackVerCtr packs a 4-bit schema version and 4-bit rolling counter into
// one byte.
func PackVerCtr(version, counter uint8) byte {
	return (version&0x0F)<<4 | (counter & 0x0F)
}

// Version extracts the schema version nibble from a ver/ctr byte.
func Version(b byte) uint8 {
	return b >> 4
}

// Counter extracts the rolling counter nibble from a ver/ctr byte.
func Counter(b byte) uint8 {
	return b & 0x0F
}

// ValidCounter reports whether received is the successor of last in the
// 4-bit rolling sequence, including the 15 -> 0 wrap.
func ValidCounter(received, last uint8) bool {
	return received == (last+1)&0x0F
}
