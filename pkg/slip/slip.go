// Package slip implements the escaped, newline-terminated framing used on the
// receiver's serial link. It is SLIP with END moved to '\n'.
package slip

import "bytes"

const (
	End    byte = 0x0A
	Esc    byte = 0xDB
	EscEnd byte = 0xDC
	EscEsc byte = 0xDD
)

// Encode escapes data and terminates it with End.
func Encode(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/8+1)
	for _, b := range data {
		switch b {
		case Esc:
			out = append(out, Esc, EscEsc)
		case End:
			out = append(out, Esc, EscEnd)
		default:
			out = append(out, b)
		}
	}
	return append(out, End)
}

// Decode strips the End delimiters around a frame and undoes Encode.
// It never fails: an Esc that does not start a known pair is kept as is.
func Decode(frame []byte) []byte {
	data := bytes.Trim(frame, string(End))
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == Esc && i+1 < len(data) {
			switch data[i+1] {
			case EscEsc:
				out = append(out, Esc)
				i++
				continue
			case EscEnd:
				out = append(out, End)
				i++
				continue
			}
		}
		out = append(out, b)
	}
	return out
}
