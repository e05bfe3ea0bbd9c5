// Package receiver runs a Remote ID receiver: it reads the framed stream from
// a device, decodes DRI messages and fans the records out to outputs.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dronetag/rider-connect-demo/pkg/delimited"
	"github.com/dronetag/rider-connect-demo/pkg/dispatch"
	"github.com/dronetag/rider-connect-demo/pkg/dri"
	"github.com/dronetag/rider-connect-demo/pkg/receiver/device"
	"github.com/dronetag/rider-connect-demo/pkg/slip"
	"github.com/dronetag/rider-connect-demo/pkg/util"
	"github.com/dronetag/rider-connect-demo/pkg/viz"
)

const (
	chunkBufferLength  = 16
	recordBufferLength = 64
)

type Receiver struct {
	device    device.Device
	opts      Options
	registry  *dispatch.Registry
	reader    *dispatch.Reader
	chunks    chan []byte
	records   chan *dri.Record
	writeAPI  api.WriteAPI
	vizServer *viz.Server
	logger    zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

type ReceiverOption func(r *Receiver) error

func WithInfluxDB(writeAPI api.WriteAPI) ReceiverOption {
	return func(r *Receiver) error {
		r.writeAPI = writeAPI
		return nil
	}
}

func WithImageServer(vizServer *viz.Server) ReceiverOption {
	return func(r *Receiver) error {
		r.vizServer = vizServer
		return nil
	}
}

func WithLogger(logger zerolog.Logger) ReceiverOption {
	return func(r *Receiver) error {
		r.logger = logger
		return nil
	}
}

func NewReceiver(device device.Device, options Options, opts ...ReceiverOption) (*Receiver, error) {
	r := &Receiver{
		device:   device,
		opts:     options,
		registry: dispatch.NewRegistry(),
		chunks:   make(chan []byte, chunkBufferLength),
		records:  make(chan *dri.Record, recordBufferLength),
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		logger:   log.Logger,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.device == nil {
		return nil, errors.New("must specify a device")
	}
	if r.opts.Decoder == nil {
		return nil, errors.New("must specify a decoder")
	}

	r.registry.Register(r.opts.DriAddress, delimited.NewBuffer(r.handleDriMessage).Feed)
	for _, addr := range r.opts.LogAddresses {
		r.registry.Register(addr, r.logPayload(addr))
	}

	r.reader = dispatch.NewReader(r.registry, r.chunks,
		dispatch.WithLogger(r.logger),
		dispatch.WithInfluxDB(r.writeAPI))

	if r.vizServer != nil {
		r.vizServer.SetStatsSource(r.reader.Stats)
	}

	return r, nil
}

// Register adds a handler for address. It must be called before Start.
func (r *Receiver) Register(address byte, h dispatch.Handler) {
	r.registry.Register(address, h)
}

func (r *Receiver) Stats() dispatch.Stats {
	return r.reader.Stats()
}

func (r *Receiver) Stop() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	if r.vizServer != nil {
		r.vizServer.Stop(context.TODO())
	}
	return r.device.Stop()
}

func (r *Receiver) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	if len(r.opts.Init) > 0 {
		if _, err := r.device.Write(slip.Encode(r.opts.Init)); err != nil {
			return fmt.Errorf("write init: %w", err)
		}
		r.logger.Debug().Hex("init", r.opts.Init).Msg("sent init")
	}

	eg.Go(func() error {
		defer close(r.chunks)
		return r.device.Start(ctx, r.chunks)
	})

	eg.Go(func() error {
		if err := r.reader.Start(ctx); err != nil {
			return err
		}
		r.reader.Wait()
		r.logger.Info().Interface("stats", r.reader.Stats()).Msg("input exhausted")
		return nil
	})

	if r.vizServer != nil {
		eg.Go(func() error {
			return r.vizServer.Run(ctx)
		})
	}

	eg.Go(func() error {
		return r.outputRecords(ctx)
	})

	for _, output := range r.opts.Outputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(ctx)
		})
	}

	r.logger.Info().
		Str("dri_address", fmt.Sprintf("0x%02X", r.opts.DriAddress)).
		Int("addresses", r.registry.Addresses()).
		Int("outputs", len(r.opts.Outputs)).
		Msg("Starting")

	return eg.Wait()
}

// handleDriMessage consumes one DriMessage cut by the delimited buffer.
func (r *Receiver) handleDriMessage(ctx context.Context, msg []byte) error {
	var rec *dri.Record
	var err error
	duration := util.TimeOperationMicroseconds(func() {
		rec, err = r.opts.Decoder.Decode(msg)
	})
	if err != nil {
		return fmt.Errorf("decode DriMessage: %w", err)
	}
	if rec == nil {
		return nil
	}

	go r.writeAPI.WritePoint(influxdb2.NewPoint("dri.record",
		map[string]string{
			"tech":     string(rec.Tech),
			"msg_type": rec.MessageType.String(),
		},
		map[string]interface{}{
			"rssi":          rec.RSSI,
			"message_bytes": len(msg),
			"decode_failed": rec.ODIDError != "",
			"duration":      duration,
		}, time.Now()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.records <- rec:
		return nil
	}
}

func (r *Receiver) logPayload(addr byte) dispatch.Handler {
	return func(ctx context.Context, payload []byte) error {
		r.logger.Info().
			Str("address", fmt.Sprintf("0x%02X", addr)).
			Hex("payload", payload).
			Msg("received payload")
		return nil
	}
}

func (r *Receiver) outputRecords(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-r.records:
			if r.vizServer != nil {
				r.vizServer.Observe(rec)
			}

			skippedOutputs := 0
			for _, output := range r.opts.Outputs {
				select {
				case output.Receive() <- rec:
					// We will not wait on blocked channels.
				default:
					skippedOutputs++
				}
			}
			if skippedOutputs > 0 {
				r.logger.Debug().Int("skipped_outputs", skippedOutputs).Str("mac", rec.MAC).Msg("outputs busy")
			}
		}
	}
}
