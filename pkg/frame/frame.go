package frame

import "fmt"

// Frame is one decoded link frame. The first decoded byte routes the frame,
// the rest is opaque to the link layer.
type Frame struct {
	Address byte
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("frame(0x%02X, %d bytes)", f.Address, len(f.Payload))
}

// Split turns a decoded frame body into a Frame. It reports false for an empty
// body, which the link uses as a keep-alive.
func Split(decoded []byte) (Frame, bool) {
	if len(decoded) == 0 {
		return Frame{}, false
	}
	return Frame{Address: decoded[0], Payload: decoded[1:]}, true
}
