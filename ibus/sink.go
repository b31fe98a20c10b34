package ibus

import (
	"io"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Sink transmits encoded frames to the downstream controller. Writes are
// fire-and-forget: there is no acknowledgment, retry or backpressure, and a
// blocked transport stalls the control loop with it.
type Sink interface {
	WriteFrame(f Frame) error
	Close() error
}

// SerialSink writes frames to a serial port.
type SerialSink struct {
	port serial.Port
}

// OpenSerialSink opens portName at the given baud rate, 8N1.
func OpenSerialSink(portName string, baudRate int) (*SerialSink, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open serial port %s", portName)
	}
	return &SerialSink{port: port}, nil
}

// WriteFrame sends one frame over the port.
func (s *SerialSink) WriteFrame(f Frame) error {
	if _, err := s.port.Write(f[:]); err != nil {
		return errors.Wrap(err, "Can't write frame to serial port")
	}
	return nil
}

// Close closes the underlying port.
func (s *SerialSink) Close() error {
	return s.port.Close()
}

// WriterSink writes raw frames to an io.Writer. Useful for piping and
// tests.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink wraps w as a Sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// WriteFrame writes the frame's 32 bytes to the underlying writer.
func (s *WriterSink) WriteFrame(f Frame) error {
	if _, err := s.w.Write(f[:]); err != nil {
		return errors.Wrap(err, "Can't write frame")
	}
	return nil
}

// Close is a no-op; the caller owns the underlying writer.
func (s *WriterSink) Close() error {
	return nil
}
