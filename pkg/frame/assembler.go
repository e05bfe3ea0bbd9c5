package frame

// Assembler takes raw bytes read off the link and assembles them into frames.
// Chunks may split a frame at any byte, including inside an escape pair.
type Assembler interface {
	Receive([]byte)
}
