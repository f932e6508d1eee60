// Package transport carries BCM frames over a SocketCAN interface. A pump
// goroutine feeds received frames into a bounded queue so the control loop
// can poll without blocking.
package transport

import (
	"context"
	"fmt"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"bcm-service/internal/frame"
	"bcm-service/internal/logger"
)

// SocketCANTransport implements the core frame transport over one CAN
// interface.
type SocketCANTransport struct {
	conn net.Conn
	tx   *socketcan.Transmitter
	rx   *socketcan.Receiver

	ctx    context.Context
	frames chan frame.Frame
	errs   chan error
	log    *logger.Logger
}

// Dial opens the named interface (can0, vcan0) and starts the receive pump.
func Dial(ctx context.Context, ifname string, rxBuffer int, log *logger.Logger) (*SocketCANTransport, error) {
	conn, err := socketcan.DialContext(ctx, "can", ifname)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", ifname, err)
	}
	if rxBuffer <= 0 {
		rxBuffer = 64
	}

	t := &SocketCANTransport{
		conn:   conn,
		tx:     socketcan.NewTransmitter(conn),
		rx:     socketcan.NewReceiver(conn),
		ctx:    ctx,
		frames: make(chan frame.Frame, rxBuffer),
		errs:   make(chan error, 1),
		log:    log,
	}
	go t.pump()

	log.Infof("CAN transport up on %s", ifname)
	return t, nil
}

// pump drains the socket into the frame queue. Frames beyond the queue
// capacity are dropped; the bus has no flow control to offer anyway.
func (t *SocketCANTransport) pump() {
	for t.rx.Receive() {
		cf := t.rx.Frame()
		if cf.IsRemote || cf.IsExtended {
			continue
		}
		select {
		case t.frames <- fromCAN(cf):
		default:
			t.log.Warnf("RX queue full, dropping frame %03X", cf.ID)
		}
	}
	if err := t.rx.Err(); err != nil {
		select {
		case t.errs <- err:
		default:
		}
	}
}

// TryReceive returns the next queued frame without blocking. A pump
// failure surfaces here exactly once.
func (t *SocketCANTransport) TryReceive() (frame.Frame, bool, error) {
	select {
	case err := <-t.errs:
		return frame.Frame{}, false, fmt.Errorf("can receive: %w", err)
	case f := <-t.frames:
		return f, true, nil
	default:
		return frame.Frame{}, false, nil
	}
}

// Send transmits one frame.
func (t *SocketCANTransport) Send(f frame.Frame) error {
	if err := t.tx.TransmitFrame(t.ctx, toCAN(f)); err != nil {
		return fmt.Errorf("can transmit %03X: %w", f.ID, err)
	}
	return nil
}

// Close shuts the socket down, which also ends the pump.
func (t *SocketCANTransport) Close() error {
	return t.conn.Close()
}

func fromCAN(cf can.Frame) frame.Frame {
	f := frame.Frame{
		ID:     uint16(cf.ID & 0x7FF),
		Length: cf.Length,
	}
	if f.Length > frame.MaxDataLen {
		f.Length = frame.MaxDataLen
	}
	copy(f.Data[:], cf.Data[:f.Length])
	return f
}

func toCAN(f frame.Frame) can.Frame {
	cf := can.Frame{
		ID:     uint32(f.ID),
		Length: f.Length,
	}
	copy(cf.Data[:], f.Payload())
	return cf
}
