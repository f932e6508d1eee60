// Package hardware drives the BCM's actuator and switch lines through the
// GPIO character device.
package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"bcm-service/internal/logger"
)

// InputCallback is invoked on a switch edge with the debounced level.
type InputCallback func(channel string, value bool) error

const debouncePeriod = 10 * time.Millisecond

// LinuxHardwareIO owns the requested GPIO lines. Outputs are requested at
// Initialize with all actuators released; inputs deliver edge events to the
// registered callbacks.
type LinuxHardwareIO struct {
	log    *logger.Logger
	chips  map[int]*gpiocdev.Chip
	lines  map[string]*gpiocdev.Line
	inputs map[string]*gpiocdev.Line

	mu             sync.RWMutex
	inputCallbacks map[string]InputCallback
}

func NewLinuxHardwareIO(log *logger.Logger) *LinuxHardwareIO {
	return &LinuxHardwareIO{
		log:            log,
		chips:          make(map[int]*gpiocdev.Chip),
		lines:          make(map[string]*gpiocdev.Line),
		inputs:         make(map[string]*gpiocdev.Line),
		inputCallbacks: make(map[string]InputCallback),
	}
}

func (io *LinuxHardwareIO) chip(num int) (*gpiocdev.Chip, error) {
	if c, ok := io.chips[num]; ok {
		return c, nil
	}
	c, err := gpiocdev.NewChip(fmt.Sprintf("gpiochip%d", num))
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %d: %w", num, err)
	}
	io.chips[num] = c
	return c, nil
}

// Initialize requests every mapped line. Callbacks must be registered
// before Initialize so no early edge is lost.
func (io *LinuxHardwareIO) Initialize() error {
	io.log.Infof("Initializing hardware IO")

	for name, mapping := range DoMappings {
		chip, err := io.chip(mapping.Chip)
		if err != nil {
			return err
		}
		line, err := chip.RequestLine(mapping.Line,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer("bcm-service"))
		if err != nil {
			return fmt.Errorf("failed to request output line %s: %w", name, err)
		}
		io.lines[name] = line
		io.log.Debugf("Configured DO %s: chip=%d, line=%d", name, mapping.Chip, mapping.Line)
	}

	for name, mapping := range DiMappings {
		chip, err := io.chip(mapping.Chip)
		if err != nil {
			return err
		}
		channel := name
		line, err := chip.RequestLine(mapping.Line,
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(debouncePeriod),
			gpiocdev.WithConsumer("bcm-service"),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				io.handleEdge(channel, evt)
			}))
		if err != nil {
			return fmt.Errorf("failed to request input line %s: %w", name, err)
		}
		io.inputs[name] = line
		io.log.Debugf("Configured DI %s: chip=%d, line=%d", name, mapping.Chip, mapping.Line)
	}

	return nil
}

func (io *LinuxHardwareIO) handleEdge(channel string, evt gpiocdev.LineEvent) {
	value := evt.Type == gpiocdev.LineEventRisingEdge

	io.mu.RLock()
	callback, ok := io.inputCallbacks[channel]
	io.mu.RUnlock()
	if !ok {
		return
	}
	if err := callback(channel, value); err != nil {
		io.log.Warnf("Input callback for %s failed: %v", channel, err)
	}
}

// RegisterInputCallback sets the handler for a switch channel.
func (io *LinuxHardwareIO) RegisterInputCallback(channel string, callback InputCallback) {
	io.mu.Lock()
	defer io.mu.Unlock()
	io.inputCallbacks[channel] = callback
}

// WriteDigitalOutput drives one actuator line.
func (io *LinuxHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	line, ok := io.lines[channel]
	if !ok {
		return fmt.Errorf("unknown digital output channel: %s", channel)
	}

	val := 0
	if value {
		val = 1
	}
	if err := line.SetValue(val); err != nil {
		return fmt.Errorf("failed to set DO %s=%v: %w", channel, value, err)
	}
	return nil
}

// ReadDigitalInput returns the current level of a switch line.
func (io *LinuxHardwareIO) ReadDigitalInput(channel string) (bool, error) {
	line, ok := io.inputs[channel]
	if !ok {
		return false, fmt.Errorf("unknown input channel: %s", channel)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read DI %s: %w", channel, err)
	}
	return v != 0, nil
}

// Cleanup releases every requested line with the actuators off.
func (io *LinuxHardwareIO) Cleanup() {
	io.log.Infof("Cleaning up hardware resources")

	for name, line := range io.lines {
		if err := line.SetValue(0); err != nil {
			io.log.Warnf("Failed to release %s: %v", name, err)
		}
		line.Close()
	}
	for _, line := range io.inputs {
		line.Close()
	}
	for _, chip := range io.chips {
		chip.Close()
	}
}
