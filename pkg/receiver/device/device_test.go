package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceDevice struct {
	chunks  [][]byte
	stopped bool
}

func (s *sliceDevice) Start(ctx context.Context, chunks chan<- []byte) error {
	for _, chunk := range s.chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunks <- chunk:
		}
	}
	return nil
}

func (s *sliceDevice) Write(b []byte) (int, error) { return len(b), nil }

func (s *sliceDevice) Stop() error {
	s.stopped = true
	return nil
}

func TestRecordingDevice(t *testing.T) {
	inner := &sliceDevice{chunks: [][]byte{{0x2A, 0x01}, {0x02, 0x0A}, {0x0A}}}
	path := filepath.Join(t.TempDir(), "capture.bin")

	d, err := NewRecordingDevice(inner, path)
	require.NoError(t, err)

	chunks := make(chan []byte, 3)
	require.NoError(t, d.Start(context.Background(), chunks))
	require.NoError(t, d.Stop())
	assert.True(t, inner.stopped)

	require.Len(t, chunks, 3)
	assert.Equal(t, []byte{0x2A, 0x01}, <-chunks)

	captured, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2A, 0x01, 0x02, 0x0A, 0x0A}, captured)
}
