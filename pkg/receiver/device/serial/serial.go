package serial

import (
	"context"
	"fmt"
	"io"
	"time"

	goserial "go.bug.st/serial"
)

const (
	readSize    = 4096
	readTimeout = 100 * time.Millisecond
)

// SerialDevice reads the receiver over a serial port, 8N1.
type SerialDevice struct {
	name string
	port io.ReadWriteCloser
}

func NewSerialDevice(name string, baudRate int) (*SerialDevice, error) {
	port, err := goserial.Open(name, &goserial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	// Reads return empty on timeout so Start notices cancellation.
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: %s: %w", name, err)
	}
	return &SerialDevice{name: name, port: port}, nil
}

func (s *SerialDevice) Start(ctx context.Context, chunks chan<- []byte) error {
	buf := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("serial: read %s: %w", s.name, err)
		}
		if n == 0 {
			continue
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunks <- chunk:
		}
	}
}

func (s *SerialDevice) Write(b []byte) (int, error) {
	return s.port.Write(b)
}

func (s *SerialDevice) Stop() error {
	return s.port.Close()
}
