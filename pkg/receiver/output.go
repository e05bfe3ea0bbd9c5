package receiver

import (
	"context"

	"github.com/dronetag/rider-connect-demo/pkg/dri"
)

// RecordOutput handles decoded records.
type RecordOutput interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives decoded records.
	Receive() chan<- *dri.Record
}
