package delimited

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (s *sink) consume(_ context.Context, msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func TestFeedEverySplitPoint(t *testing.T) {
	msg := bytes.Repeat([]byte{0xA5}, 200) // two byte prefix
	wire := AppendMessage(nil, msg)
	ctx := context.Background()

	for i := 0; i <= len(wire); i++ {
		s := &sink{}
		b := NewBuffer(s.consume)
		require.NoError(t, b.Feed(ctx, wire[:i]))
		if i < len(wire) {
			assert.Empty(t, s.msgs, "split %d", i)
			assert.Equal(t, i, b.Buffered())
		}
		require.NoError(t, b.Feed(ctx, wire[i:]))
		require.Len(t, s.msgs, 1, "split %d", i)
		assert.Equal(t, msg, s.msgs[0])
		assert.Zero(t, b.Buffered())
	}
}

func TestFeedThreeWaySplits(t *testing.T) {
	msg := []byte("remote id")
	wire := AppendMessage(nil, msg)
	ctx := context.Background()

	for i := 1; i < len(wire); i++ {
		for j := i; j < len(wire); j++ {
			s := &sink{}
			b := NewBuffer(s.consume)
			require.NoError(t, b.Feed(ctx, wire[:i]))
			require.NoError(t, b.Feed(ctx, wire[i:j]))
			require.NoError(t, b.Feed(ctx, wire[j:]))
			require.Len(t, s.msgs, 1)
			assert.Equal(t, msg, s.msgs[0])
		}
	}
}

func TestFeedSeveralMessagesInOneFragment(t *testing.T) {
	var wire []byte
	wire = AppendMessage(wire, []byte("one"))
	wire = AppendMessage(wire, nil)
	wire = AppendMessage(wire, []byte("three"))
	wire = append(wire, 0x05, 'p') // partial fourth

	s := &sink{}
	b := NewBuffer(s.consume)
	require.NoError(t, b.Feed(context.Background(), wire))

	require.Len(t, s.msgs, 3)
	assert.Equal(t, []byte("one"), s.msgs[0])
	assert.Empty(t, s.msgs[1])
	assert.Equal(t, []byte("three"), s.msgs[2])
	assert.Equal(t, 2, b.Buffered())
}

func TestFeedDeclaredLengthNotYetArrived(t *testing.T) {
	s := &sink{}
	b := NewBuffer(s.consume)
	require.NoError(t, b.Feed(context.Background(), []byte{0x80, 0x01, 0x00}))
	assert.Empty(t, s.msgs)
	assert.Equal(t, 3, b.Buffered())
}

func TestFeedConsumerErrorsDoNotStopDelivery(t *testing.T) {
	boom := errors.New("boom")
	s := &sink{err: boom}
	b := NewBuffer(s.consume)

	wire := AppendMessage(AppendMessage(nil, []byte("a")), []byte("b"))
	err := b.Feed(context.Background(), wire)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, s.msgs, 2)
}

func TestFeedOverflowResetsBuffer(t *testing.T) {
	s := &sink{}
	b := NewBuffer(s.consume)

	bad := bytes.Repeat([]byte{0xFF}, 11)
	err := b.Feed(context.Background(), bad)
	assert.ErrorIs(t, err, ErrVarintOverflow)
	assert.Zero(t, b.Buffered())

	require.NoError(t, b.Feed(context.Background(), AppendMessage(nil, []byte("ok"))))
	require.Len(t, s.msgs, 1)
	assert.Equal(t, []byte("ok"), s.msgs[0])
}
