package frame

import "context"

// Processor consumes link data until the context is done or the link fails.
// See dispatch.Reader for the SLIP implementation.
type Processor interface {
	Start(context.Context) error
}
