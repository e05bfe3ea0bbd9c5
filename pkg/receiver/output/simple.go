package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/dronetag/rider-connect-demo/pkg/dri"
	"github.com/dronetag/rider-connect-demo/pkg/odid"
)

const recordBufferLength int = 32

// JSONOutput writes one JSON object per record.
type JSONOutput struct {
	dest          io.Writer
	recvChan      chan *dri.Record
	messageFilter map[odid.MessageType]struct{}
}

// NewJSONOutput writes to dest the records whose message type is in
// messageTypes, or all records when messageTypes is empty.
func NewJSONOutput(dest io.Writer, messageTypes []odid.MessageType) *JSONOutput {
	ret := &JSONOutput{
		dest:          dest,
		recvChan:      make(chan *dri.Record, recordBufferLength),
		messageFilter: make(map[odid.MessageType]struct{}),
	}

	for _, t := range messageTypes {
		ret.messageFilter[t] = struct{}{}
	}

	return ret
}

func (s *JSONOutput) Receive() chan<- *dri.Record {
	return s.recvChan
}

func (s *JSONOutput) Start(ctx context.Context) error {
	enc := json.NewEncoder(s.dest)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-s.recvChan:
			if len(s.messageFilter) > 0 {
				if _, ok := s.messageFilter[rec.MessageType]; !ok {
					continue
				}
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
	}
}
