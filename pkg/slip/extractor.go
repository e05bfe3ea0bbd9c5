package slip

import "bytes"

// Extractor reassembles raw frames from arbitrarily chunked link data.
// Each raw frame still carries its escapes and the trailing End.
//
// An Extractor belongs to one connection and is not safe for concurrent use.
type Extractor struct {
	buf    []byte
	submit func(raw []byte)
}

func NewExtractor(submit func(raw []byte)) *Extractor {
	return &Extractor{submit: submit}
}

// Receive appends chunk and submits every frame it completes, in stream order.
func (e *Extractor) Receive(chunk []byte) {
	e.buf = append(e.buf, chunk...)
	for {
		idx := bytes.IndexByte(e.buf, End)
		if idx < 0 {
			break
		}
		raw := make([]byte, idx+1)
		copy(raw, e.buf[:idx+1])
		e.buf = e.buf[idx+1:]
		e.submit(raw)
	}
	if len(e.buf) == 0 {
		e.buf = nil
	}
}

// Buffered returns how many bytes of an incomplete frame are held.
func (e *Extractor) Buffered() int {
	return len(e.buf)
}
