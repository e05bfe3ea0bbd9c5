// Package delimited splits a stream of fragments into varint length-prefixed
// messages, the framing protobuf uses for delimited streams.
package delimited

import (
	"context"
	"errors"
	"sync"
)

// Consumer receives each complete message body.
type Consumer func(ctx context.Context, msg []byte) error

// Buffer accumulates fragments until whole messages are available. Fragments
// may be fed from several goroutines; messages are cut in arrival order.
type Buffer struct {
	mu       sync.Mutex
	buf      []byte
	consumer Consumer
}

func NewBuffer(consumer Consumer) *Buffer {
	return &Buffer{consumer: consumer}
}

// Feed appends fragment and passes every message it completes to the
// consumer. An incomplete tail stays buffered for the next call.
// Consumer errors are joined and returned once all messages were delivered.
// A length prefix overflowing 64 bits returns ErrVarintOverflow and resets
// the buffer.
func (b *Buffer) Feed(ctx context.Context, fragment []byte) error {
	msgs, err := b.extract(fragment)

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, msg := range msgs {
		if cerr := b.consumer(ctx, msg); cerr != nil {
			errs = append(errs, cerr)
		}
	}
	return errors.Join(errs...)
}

func (b *Buffer) extract(fragment []byte) ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, fragment...)

	var msgs [][]byte
	for {
		size, n, err := ReadVarint(b.buf)
		if errors.Is(err, ErrIncomplete) {
			break
		}
		if err != nil {
			// Nothing after a broken prefix can be trusted.
			b.buf = nil
			return msgs, err
		}
		if uint64(len(b.buf)-n) < size {
			break
		}

		end := n + int(size)
		msg := make([]byte, size)
		copy(msg, b.buf[n:end])
		msgs = append(msgs, msg)
		b.buf = b.buf[end:]
	}
	if len(b.buf) == 0 {
		b.buf = nil
	}
	return msgs, nil
}

// Buffered returns the number of bytes waiting for the rest of a message.
func (b *Buffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
