package device

import (
	"context"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
)

// Device is the byte transport to the receiver.
type Device interface {
	// Start reads until ctx is done or the transport fails, sending every
	// chunk read to chunks. A nil return means the input is exhausted.
	Start(ctx context.Context, chunks chan<- []byte) error
	Write(b []byte) (int, error)
	Stop() error
}

// RecordingDevice copies every chunk its device reads to a capture file that
// the file device can play back.
type RecordingDevice struct {
	Device
	out io.WriteCloser
}

func NewRecordingDevice(d Device, recordLocation string) (*RecordingDevice, error) {
	out, err := os.Create(recordLocation)
	if err != nil {
		return nil, err
	}
	return &RecordingDevice{Device: d, out: out}, nil
}

func (r *RecordingDevice) Start(ctx context.Context, chunks chan<- []byte) error {
	eg, ctx := errgroup.WithContext(ctx)
	tee := make(chan []byte)

	eg.Go(func() error {
		defer close(tee)
		return r.Device.Start(ctx, tee)
	})

	eg.Go(func() error {
		for chunk := range tee {
			if _, err := r.out.Write(chunk); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case chunks <- chunk:
			}
		}
		return nil
	})

	return eg.Wait()
}

func (r *RecordingDevice) Stop() error {
	defer r.out.Close()
	return r.Device.Stop()
}
