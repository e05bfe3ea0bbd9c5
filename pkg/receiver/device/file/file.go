package file

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// FileDevice plays back a capture of the serial stream, one chunk every
// timeBetween. A non-positive timeBetween replays without pacing.
type FileDevice struct {
	readFile    *os.File
	readSize    int
	timeBetween time.Duration
}

func NewFileDevice(file string, readSize int, timeBetween time.Duration) (*FileDevice, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	return &FileDevice{
		readFile:    f,
		readSize:    readSize,
		timeBetween: timeBetween,
	}, nil
}

func (f *FileDevice) Start(ctx context.Context, chunks chan<- []byte) error {
	var tick <-chan time.Time
	if f.timeBetween > 0 {
		ticker := time.NewTicker(f.timeBetween)
		defer ticker.Stop()
		tick = ticker.C
	} else {
		unpaced := make(chan time.Time)
		close(unpaced)
		tick = unpaced
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			buf := make([]byte, f.readSize)
			n, err := f.readFile.Read(buf)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case chunks <- buf[:n]:
			}
		}
	}
}

// Write discards b; a capture has nobody to talk to.
func (f *FileDevice) Write(b []byte) (int, error) {
	return len(b), nil
}

func (f *FileDevice) Stop() error {
	return f.readFile.Close()
}
