package fault

// Code identifies one diagnosable fault condition. Codes are grouped by
// subsystem base so the wire value alone tells a technician which channel
// raised it.
type Code uint8

const (
	baseDoor     Code = 0x10
	baseLighting Code = 0x20
	baseTurn     Code = 0x30
	baseSystem   Code = 0x40
)

const (
	None Code = 0

	DoorInvalidLength   Code = baseDoor + 0
	DoorInvalidChecksum Code = baseDoor + 1
	DoorInvalidCounter  Code = baseDoor + 2
	DoorInvalidCommand  Code = baseDoor + 3

	LightingInvalidLength   Code = baseLighting + 0
	LightingInvalidChecksum Code = baseLighting + 1
	LightingInvalidCounter  Code = baseLighting + 2
	LightingInvalidCommand  Code = baseLighting + 3
	LightingSensorTimeout   Code = baseLighting + 4

	TurnInvalidLength   Code = baseTurn + 0
	TurnInvalidChecksum Code = baseTurn + 1
	TurnInvalidCounter  Code = baseTurn + 2
	TurnInvalidCommand  Code = baseTurn + 3
	TurnCommandTimeout  Code = baseTurn + 4

	SystemCANError Code = baseSystem + 0
)

// Bit offsets of each subsystem group within the 16-bit flag word.
var groupBitOffsets = [4]uint{0, 4, 9, 14}

// Sizes of each subsystem group (number of defined kinds).
var groupSizes = [4]uint{4, 5, 5, 1}

// FlagBit returns this code's position in the 16-bit aggregate flag word,
// or false if the code is outside the known set.
func (c Code) FlagBit() (uint, bool) {
	group := uint(c>>4) - 1
	kind := uint(c & 0x0F)
	if group >= uint(len(groupBitOffsets)) || kind >= groupSizes[group] {
		return 0, false
	}
	return groupBitOffsets[group] + kind, true
}

func (c Code) String() string {
	switch c {
	case None:
		return "none"
	case DoorInvalidLength:
		return "door-invalid-length"
	case DoorInvalidChecksum:
		return "door-invalid-checksum"
	case DoorInvalidCounter:
		return "door-invalid-counter"
	case DoorInvalidCommand:
		return "door-invalid-command"
	case LightingInvalidLength:
		return "lighting-invalid-length"
	case LightingInvalidChecksum:
		return "lighting-invalid-checksum"
	case LightingInvalidCounter:
		return "lighting-invalid-counter"
	case LightingInvalidCommand:
		return "lighting-invalid-command"
	case LightingSensorTimeout:
		return "lighting-sensor-timeout"
	case TurnInvalidLength:
		return "turn-invalid-length"
	case TurnInvalidChecksum:
		return "turn-invalid-checksum"
	case TurnInvalidCounter:
		return "turn-invalid-counter"
	case TurnInvalidCommand:
		return "turn-invalid-command"
	case TurnCommandTimeout:
		return "turn-command-timeout"
	case SystemCANError:
		return "can-error"
	default:
		return "unknown"
	}
}
