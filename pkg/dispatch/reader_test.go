package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronetag/rider-connect-demo/pkg/slip"
)

type recorder struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (rec *recorder) handle(_ context.Context, payload []byte) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.payloads = append(rec.payloads, payload)
	return nil
}

func (rec *recorder) got() [][]byte {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.payloads
}

func newTestReader(reg *Registry, chunks <-chan []byte) *Reader {
	return NewReader(reg, chunks, WithLogger(zerolog.Nop()))
}

func TestReaderRoutesPlainFrame(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	reg.Register(0x2A, rec.handle)

	r := newTestReader(reg, nil)
	r.Receive([]byte{0x2A, 0x01, 0x02, 0x0A})
	r.Wait()

	require.Len(t, rec.got(), 1)
	assert.Equal(t, []byte{0x01, 0x02}, rec.got()[0])
	assert.Equal(t, Stats{Frames: 1}, r.Stats())
}

func TestReaderEscapedAddressWithEmptyPayload(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	reg.Register(0xDB, rec.handle)

	r := newTestReader(reg, nil)
	r.Receive([]byte{0xDB, 0xDD, 0x0A})
	r.Wait()

	require.Len(t, rec.got(), 1)
	assert.Empty(t, rec.got()[0])
}

func TestReaderFragmentedFrames(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	reg.Register(0x01, rec.handle)

	payload := []byte{0x0A, 0xDB, 0xDC, 0xDD, 0x00}
	wire := slip.Encode(append([]byte{0x01}, payload...))

	for i := 1; i < len(wire); i++ {
		rec.payloads = nil
		r := newTestReader(reg, nil)
		r.Receive(wire[:i])
		r.Receive(wire[i:])
		r.Wait()

		require.Len(t, rec.got(), 1, "split %d", i)
		assert.Equal(t, payload, rec.got()[0])
	}
}

func TestReaderKeepAliveAndUnroutable(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	reg.Register(0x01, rec.handle)

	r := newTestReader(reg, nil)
	r.Receive([]byte{0x0A, 0x0A})       // keep-alives
	r.Receive([]byte{0x77, 0x01, 0x0A}) // nobody listens on 0x77
	r.Receive([]byte{0x01, 0x42, 0x0A})
	r.Wait()

	require.Len(t, rec.got(), 1)
	assert.Equal(t, []byte{0x42}, rec.got()[0])
	assert.Equal(t, Stats{Frames: 2, Empty: 2, Unroutable: 1}, r.Stats())
}

func TestReaderSurvivesFailingHandler(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	reg.Register(0x01, func(context.Context, []byte) error { return errors.New("decode failed") })
	reg.Register(0x01, rec.handle)

	r := newTestReader(reg, nil)
	r.Receive(slip.Encode([]byte{0x01, 0xAA}))
	r.Receive(slip.Encode([]byte{0x01, 0xBB}))
	r.Wait()

	assert.ElementsMatch(t, [][]byte{{0xAA}, {0xBB}}, rec.got())
	assert.EqualValues(t, 2, r.Stats().HandlerErrors)
}

func TestReaderStartConsumesChannel(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	reg.Register(0x2A, rec.handle)

	chunks := make(chan []byte)
	r := newTestReader(reg, chunks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	wire := append(slip.Encode([]byte{0x2A, 0x01}), slip.Encode([]byte{0x2A, 0x02})...)
	chunks <- wire[:3]
	chunks <- wire[3:]
	close(chunks)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reader did not stop after the channel closed")
	}
	r.Wait()
	assert.ElementsMatch(t, [][]byte{{0x01}, {0x02}}, rec.got())
}

func TestReaderStartStopsOnCancel(t *testing.T) {
	r := newTestReader(NewRegistry(), make(chan []byte))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Start(ctx), context.Canceled)
}
