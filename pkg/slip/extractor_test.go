package slip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect() (*Extractor, *[][]byte) {
	var frames [][]byte
	return NewExtractor(func(raw []byte) { frames = append(frames, raw) }), &frames
}

func TestExtractorEveryTwoWaySplit(t *testing.T) {
	payload := []byte{0x2A, End, Esc, 0x01, EscEnd, EscEsc, 0x02}
	enc := Encode(payload)

	for i := 1; i < len(enc); i++ {
		e, frames := collect()
		e.Receive(enc[:i])
		assert.Empty(t, *frames, "split %d", i)
		e.Receive(enc[i:])
		require.Len(t, *frames, 1, "split %d", i)
		assert.Equal(t, payload, Decode((*frames)[0]))
		assert.Zero(t, e.Buffered())
	}
}

func TestExtractorByteAtATime(t *testing.T) {
	payload := []byte{Esc, Esc, End, End, 0x00}
	e, frames := collect()
	for _, b := range Encode(payload) {
		e.Receive([]byte{b})
	}
	require.Len(t, *frames, 1)
	assert.Equal(t, payload, Decode((*frames)[0]))
}

func TestExtractorMultipleFramesInOneChunk(t *testing.T) {
	f1 := []byte{0x2A, 0x01}
	f2 := []byte{0x01, End, 0x03}
	e, frames := collect()

	chunk := append(Encode(f1), Encode(f2)...)
	chunk = append(chunk, 0x7F) // start of a third frame
	e.Receive(chunk)

	require.Len(t, *frames, 2)
	assert.Equal(t, f1, Decode((*frames)[0]))
	assert.Equal(t, f2, Decode((*frames)[1]))
	assert.Equal(t, 1, e.Buffered())
}

func TestExtractorKeepsIncompleteTail(t *testing.T) {
	e, frames := collect()
	e.Receive([]byte{0x2A, 0x01, 0x02})
	assert.Empty(t, *frames)
	assert.Equal(t, 3, e.Buffered())

	e.Receive([]byte{End})
	require.Len(t, *frames, 1)
	assert.Equal(t, []byte{0x2A, 0x01, 0x02, End}, (*frames)[0])
}

func TestExtractorStrayDelimiters(t *testing.T) {
	e, frames := collect()
	e.Receive([]byte{End, End, 0x2A, End})
	require.Len(t, *frames, 3)
	assert.Empty(t, Decode((*frames)[0]))
	assert.Empty(t, Decode((*frames)[1]))
	assert.Equal(t, []byte{0x2A}, Decode((*frames)[2]))
}
