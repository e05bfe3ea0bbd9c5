package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDevicePlayback(t *testing.T) {
	capture := bytes.Repeat([]byte{0x2A, 0x01, 0x02, 0x0A}, 10)
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, capture, 0o644))

	d, err := NewFileDevice(path, 7, time.Millisecond)
	require.NoError(t, err)
	defer d.Stop()

	chunks := make(chan []byte, len(capture))
	require.NoError(t, d.Start(context.Background(), chunks))
	close(chunks)

	var got []byte
	for chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 7)
		got = append(got, chunk...)
	}
	assert.Equal(t, capture, got)

	n, err := d.Write([]byte{0x2A})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFileDeviceUnpaced(t *testing.T) {
	capture := []byte{0x2A, 0x01, 0x0A, 0x2A, 0x02, 0x0A}
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, capture, 0o644))

	for _, delay := range []time.Duration{0, -time.Second} {
		d, err := NewFileDevice(path, 4, delay)
		require.NoError(t, err)

		chunks := make(chan []byte, len(capture))
		require.NoError(t, d.Start(context.Background(), chunks))
		require.NoError(t, d.Stop())
		close(chunks)

		var got []byte
		for chunk := range chunks {
			got = append(got, chunk...)
		}
		assert.Equal(t, capture, got, "delay %s", delay)
	}
}

func TestFileDeviceMissing(t *testing.T) {
	_, err := NewFileDevice(filepath.Join(t.TempDir(), "missing.bin"), 16, time.Millisecond)
	assert.Error(t, err)
}

func TestFileDeviceCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x0A}, 0o644))

	d, err := NewFileDevice(path, 16, time.Hour)
	require.NoError(t, err)
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Start(ctx, make(chan []byte)), context.Canceled)
}
