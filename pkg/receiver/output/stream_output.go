package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dronetag/rider-connect-demo/pkg/dri"
	"github.com/dronetag/rider-connect-demo/pkg/receiver/config"
)

const (
	receiveChannels = 8
	numListeners    = 4
)

// RecordUDPOutput sends every record as a length-prefixed protobuf Struct to
// each destination.
type RecordUDPOutput struct {
	dests    []config.OutputDestination
	recvChan chan *dri.Record
	metrics  api.WriteAPI
	logger   zerolog.Logger
}

func NewRecordUDPOutput(dests []config.OutputDestination, metrics api.WriteAPI, logger zerolog.Logger) *RecordUDPOutput {
	return &RecordUDPOutput{
		dests:    dests,
		recvChan: make(chan *dri.Record, receiveChannels),
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *RecordUDPOutput) Receive() chan<- *dri.Record {
	return s.recvChan
}

// EncodeRecord renders rec as a protobuf Struct prefixed with its
// little-endian uint16 length.
func EncodeRecord(rec *dri.Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	encoded, err := proto.Marshal(st)
	if err != nil {
		return nil, err
	}
	if len(encoded) > 0xFFFF {
		return nil, fmt.Errorf("record too large: %d bytes", len(encoded))
	}

	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, err
	}
	msgBuf.Write(encoded)
	return msgBuf.Bytes(), nil
}

func (s *RecordUDPOutput) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		s.logger.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}

	for i := 0; i < numListeners; i++ {
		eg.Go(func() error {
			conn, err := net.ListenUDP("udp", nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case rec := <-s.recvChan:
					msg, err := EncodeRecord(rec)
					if err != nil {
						s.logger.Warn().Err(err).Str("mac", rec.MAC).Msg("error encoding record")
						continue
					}

					sent, dropped := 0, 0
					for _, destAddr := range destAddrs {
						if _, err := conn.WriteToUDP(msg, destAddr); err != nil {
							s.logger.Error().Err(err).Str("dest", destAddr.String()).Msg("error writing")
							dropped++
							continue
						}
						sent++
					}

					go s.metrics.WritePoint(influxdb2.NewPoint("output.sent",
						map[string]string{
							"output":   "udp",
							"tech":     string(rec.Tech),
							"msg_type": rec.MessageType.String(),
						},
						map[string]interface{}{
							"encoded_length": len(msg),
							"sent":           sent,
							"dropped":        dropped,
						}, time.Now()))
				}
			}
		})
	}

	return eg.Wait()
}
