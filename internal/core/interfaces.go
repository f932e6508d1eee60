package core

import (
	"bcm-service/internal/frame"
	"bcm-service/internal/hardware"
	"bcm-service/internal/types"
)

// FrameTransport defines the CAN bus operations needed by BCMSystem.
// TryReceive never blocks: the second return is false when no frame is
// queued.
type FrameTransport interface {
	Send(f frame.Frame) error
	TryReceive() (frame.Frame, bool, error)
}

// HardwareIO defines the GPIO operations needed by BCMSystem.
type HardwareIO interface {
	Initialize() error
	Cleanup()
	WriteDigitalOutput(name string, value bool) error
	RegisterInputCallback(name string, callback hardware.InputCallback)
}

// StatePublisher pushes state snapshots to outside observers (redis
// mirror, websocket feed).
type StatePublisher interface {
	PublishSnapshot(s types.Snapshot) error
}

// Clock supplies the monotonic timestamps the scheduler runs on.
type Clock interface {
	NowMs() int64
}
