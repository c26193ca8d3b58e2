package device

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// SerialWriter is the minimal port surface the actuator needs. It is
// satisfied by go.bug.st/serial.Port and by in-memory buffers in tests.
type SerialWriter interface {
	io.Writer
	io.Closer
}

// SerialActuator drives a pan/tilt stage over a serial line. Each
// correction goes out as one ASCII line, "M <dx> <dy>", so the firmware
// side stays trivially parseable.
type SerialActuator struct {
	mu   sync.Mutex
	port SerialWriter
	sent int
}

// NewSerialActuator wraps an already open port.
func NewSerialActuator(port SerialWriter) *SerialActuator {
	return &SerialActuator{port: port}
}

// OpenSerialActuator opens the serial device at path and wraps it.
func OpenSerialActuator(path string, baud int) (*SerialActuator, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return NewSerialActuator(port), nil
}

// Move implements Actuator.
func (s *SerialActuator) Move(dx, dy int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.port, "M %d %d\n", dx, dy); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	s.sent++
	return nil
}

// Sent returns how many commands have been written.
func (s *SerialActuator) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Close closes the underlying port.
func (s *SerialActuator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
