package device

import (
	"bytes"
	"errors"
	"testing"
)

// bufPort is an in-memory stand-in for a serial port.
type bufPort struct {
	bytes.Buffer
	closed bool
}

func (p *bufPort) Close() error {
	p.closed = true
	return nil
}

type failPort struct{}

func (failPort) Write(p []byte) (int, error) { return 0, errors.New("port gone") }
func (failPort) Close() error                { return nil }

func TestSerialActuatorWritesCommands(t *testing.T) {
	port := &bufPort{}
	a := NewSerialActuator(port)

	if err := a.Move(3, -2); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := a.Move(0, 15); err != nil {
		t.Fatalf("Move: %v", err)
	}

	want := "M 3 -2\nM 0 15\n"
	if got := port.String(); got != want {
		t.Errorf("wire bytes = %q, want %q", got, want)
	}
	if a.Sent() != 2 {
		t.Errorf("sent = %d, want 2", a.Sent())
	}
}

func TestSerialActuatorWriteError(t *testing.T) {
	a := NewSerialActuator(failPort{})
	if err := a.Move(1, 1); err == nil {
		t.Fatal("Move on a dead port succeeded")
	}
	if a.Sent() != 0 {
		t.Errorf("sent = %d, want 0", a.Sent())
	}
}

func TestSerialActuatorClose(t *testing.T) {
	port := &bufPort{}
	a := NewSerialActuator(port)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed {
		t.Error("underlying port not closed")
	}
}
