package receiver

import (
	"github.com/dronetag/rider-connect-demo/pkg/dri"
)

type Options struct {
	// Init is sent framed to the device once before reading starts.
	Init         []byte
	Decoder      dri.Decoder
	DriAddress   byte
	LogAddresses []byte
	Outputs      []RecordOutput
}
