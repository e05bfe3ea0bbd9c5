package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dronetag/rider-connect-demo/pkg/frame"
	"github.com/dronetag/rider-connect-demo/pkg/slip"
	"github.com/dronetag/rider-connect-demo/pkg/util"
)

var (
	_ frame.Assembler = (*Reader)(nil)
	_ frame.Processor = (*Reader)(nil)
)

// Stats counts what a Reader has seen since it was created.
type Stats struct {
	Frames        uint64 `json:"frames"`
	Empty         uint64 `json:"empty"`
	Unroutable    uint64 `json:"unroutable"`
	HandlerErrors uint64 `json:"handler_errors"`
}

// Reader extracts frames from one connection's byte stream and dispatches
// each of them on its own goroutine. Frame N+1 may finish before frame N.
type Reader struct {
	registry  *Registry
	extractor *slip.Extractor
	chunks    <-chan []byte
	logger    zerolog.Logger
	writeAPI  api.WriteAPI

	ctx context.Context
	wg  sync.WaitGroup

	frames        atomic.Uint64
	empty         atomic.Uint64
	unroutable    atomic.Uint64
	handlerErrors atomic.Uint64
}

type ReaderOption func(r *Reader)

func WithLogger(logger zerolog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

func WithInfluxDB(writeAPI api.WriteAPI) ReaderOption {
	return func(r *Reader) {
		r.writeAPI = writeAPI
	}
}

// NewReader returns a Reader dispatching through registry. chunks is only
// used by Start; a nil channel is fine when bytes are pushed with Receive.
func NewReader(registry *Registry, chunks <-chan []byte, opts ...ReaderOption) *Reader {
	r := &Reader{
		registry: registry,
		chunks:   chunks,
		logger:   log.Logger,
		writeAPI: &util.MockWriteAPI{},
		ctx:      context.Background(),
	}
	r.extractor = slip.NewExtractor(r.submit)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start feeds chunks into the extractor until ctx is done or the channel is
// closed. Frames still being handled are left running; use Wait to drain them.
func (r *Reader) Start(ctx context.Context) error {
	r.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-r.chunks:
			if !ok {
				return nil
			}
			r.extractor.Receive(chunk)
		}
	}
}

// Receive pushes link bytes directly. It must not be called concurrently
// with itself or with Start.
func (r *Reader) Receive(chunk []byte) {
	r.extractor.Receive(chunk)
}

// Wait blocks until every submitted frame has been handled.
func (r *Reader) Wait() {
	r.wg.Wait()
}

func (r *Reader) Stats() Stats {
	return Stats{
		Frames:        r.frames.Load(),
		Empty:         r.empty.Load(),
		Unroutable:    r.unroutable.Load(),
		HandlerErrors: r.handlerErrors.Load(),
	}
}

func (r *Reader) submit(raw []byte) {
	r.wg.Add(1)
	go r.process(r.ctx, raw)
}

func (r *Reader) process(ctx context.Context, raw []byte) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.handlerErrors.Add(1)
			r.logger.Error().Err(fmt.Errorf("panic: %v", rec)).Hex("raw", raw).Msg("error processing frame")
		}
	}()

	f, ok := frame.Split(slip.Decode(raw))
	if !ok {
		r.empty.Add(1)
		return
	}
	r.frames.Add(1)

	var err error
	duration := util.TimeOperationMicroseconds(func() {
		err = r.registry.Dispatch(ctx, f.Address, f.Payload)
	})

	unroutable := errors.Is(err, ErrUnroutable)
	switch {
	case unroutable:
		r.unroutable.Add(1)
		r.logger.Warn().Str("address", fmt.Sprintf("0x%02X", f.Address)).Msg("no handlers registered for address")
	case err != nil:
		r.handlerErrors.Add(1)
		r.logger.Error().Err(err).Str("address", fmt.Sprintf("0x%02X", f.Address)).Msg("error processing frame")
	}

	go r.writeAPI.WritePoint(influxdb2.NewPoint("slip.frame.processed",
		map[string]string{
			"address": fmt.Sprintf("0x%02X", f.Address),
		},
		map[string]interface{}{
			"payload_bytes": len(f.Payload),
			"handlers":      len(r.registry.Handlers(f.Address)),
			"duration":      duration,
			"unroutable":    unroutable,
			"failed":        err != nil && !unroutable,
		}, time.Now()))
}
