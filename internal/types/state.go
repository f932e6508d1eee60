package types

// OperatingState is the BCM's top-level operating state, mirrored into the
// heartbeat frame and published to collaborators.
type OperatingState string

const (
	StateInit         OperatingState = "init"
	StateRunning      OperatingState = "running"
	StateDegraded     OperatingState = "degraded"
	StateShuttingDown OperatingState = "shutting-down"
)

// WireCode returns the byte carried in the heartbeat frame for this state.
func (s OperatingState) WireCode() uint8 {
	switch s {
	case StateInit:
		return 0
	case StateRunning:
		return 1
	case StateDegraded:
		return 2
	case StateShuttingDown:
		return 3
	default:
		return 0
	}
}

// Snapshot is the externally visible BCM state, published to the redis
// mirror and the websocket feed.
type Snapshot struct {
	State         OperatingState `json:"state"`
	UptimeMinutes uint8          `json:"uptime_min"`
	Ignition      uint8          `json:"ignition"`

	DoorLockMask uint8 `json:"door_lock_mask"`
	DoorOpenMask uint8 `json:"door_open_mask"`

	HeadlightOutput    uint8 `json:"headlight_output"`
	InteriorBrightness uint8 `json:"interior_brightness"`
	AmbientLevel       uint8 `json:"ambient_level"`

	TurnMode   uint8 `json:"turn_mode"`
	LampMask   uint8 `json:"lamp_mask"`
	FlashCount uint8 `json:"flash_count"`

	FaultCount  int    `json:"fault_count"`
	FaultFlags  uint16 `json:"fault_flags"`
	RecentFault uint8  `json:"recent_fault"`
}
