package delimited

import (
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrIncomplete means the buffer ends before the varint does.
	ErrIncomplete = errors.New("delimited: incomplete varint")
	// ErrVarintOverflow means the varint does not fit in 64 bits.
	ErrVarintOverflow = errors.New("delimited: varint overflows 64 bits")
)

// ReadVarint decodes a base-128 varint from the start of b and returns its
// value and encoded length.
func ReadVarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
			return 0, 0, ErrIncomplete
		}
		return 0, 0, ErrVarintOverflow
	}
	return v, n, nil
}

// AppendMessage appends msg to dst behind its varint length prefix.
func AppendMessage(dst, msg []byte) []byte {
	dst = protowire.AppendVarint(dst, uint64(len(msg)))
	return append(dst, msg...)
}
