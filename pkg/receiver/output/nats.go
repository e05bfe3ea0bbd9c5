package output

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/dronetag/rider-connect-demo/pkg/dri"
)

// NATSOutput publishes every record as JSON on a subject derived from its
// technology and message type.
type NATSOutput struct {
	conn          *nats.Conn
	subjectPrefix string
	recvChan      chan *dri.Record
	logger        zerolog.Logger
}

func NewNATSOutput(url, subjectPrefix string, logger zerolog.Logger) (*NATSOutput, error) {
	conn, err := nats.Connect(url,
		nats.Name("riderconnect"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	return &NATSOutput{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		recvChan:      make(chan *dri.Record, receiveChannels),
		logger:        logger,
	}, nil
}

// Subject is prefix.<tech>.<message type>, for example
// "riderconnect.records.b5.location".
func Subject(prefix string, rec *dri.Record) string {
	tech := strings.ToLower(string(rec.Tech))
	if tech == "" {
		tech = "unknown"
	}
	return prefix + "." + tech + "." + strings.ToLower(rec.MessageType.String())
}

func (s *NATSOutput) Receive() chan<- *dri.Record {
	return s.recvChan
}

func (s *NATSOutput) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.conn.Drain()
			return ctx.Err()
		case rec := <-s.recvChan:
			data, err := json.Marshal(rec)
			if err != nil {
				s.logger.Warn().Err(err).Str("mac", rec.MAC).Msg("error encoding record")
				continue
			}
			if err := s.conn.Publish(Subject(s.subjectPrefix, rec), data); err != nil {
				s.logger.Error().Err(err).Msg("error publishing record")
			}
		}
	}
}
