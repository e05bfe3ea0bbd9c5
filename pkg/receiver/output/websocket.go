package output

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dronetag/rider-connect-demo/pkg/dri"
)

const writeTimeout = 10 * time.Second

// Envelope wraps every record sent to websocket clients.
type Envelope struct {
	Type      string      `json:"type"`
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Payload   *dri.Record `json:"payload"`
}

// WebSocketOutput broadcasts records to every connected websocket client.
// Slow or gone clients are dropped.
type WebSocketOutput struct {
	srv      *http.Server
	recvChan chan *dri.Record
	upgrader websocket.Upgrader
	metrics  api.WriteAPI
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

func NewWebSocketOutput(port int, path string, metrics api.WriteAPI, logger zerolog.Logger) *WebSocketOutput {
	s := &WebSocketOutput{
		recvChan: make(chan *dri.Record, receiveChannels),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		metrics: metrics,
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle(path, s)
	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	return s
}

func (s *WebSocketOutput) Receive() chan<- *dri.Record {
	return s.recvChan
}

// Clients returns the number of connected clients.
func (s *WebSocketOutput) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *WebSocketOutput) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("websocket client connected")

	// Clients never send anything we act on; reading only notices the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(conn)
}

func (s *WebSocketOutput) drop(conn *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	if ok {
		conn.Close()
	}
}

func (s *WebSocketOutput) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("websocket output starting")
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		s.srv.Shutdown(context.Background())

		s.mu.Lock()
		for conn := range s.clients {
			conn.Close()
			delete(s.clients, conn)
		}
		s.mu.Unlock()
		return ctx.Err()
	})

	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rec := <-s.recvChan:
				s.broadcast(rec)
			}
		}
	})

	return eg.Wait()
}

func (s *WebSocketOutput) broadcast(rec *dri.Record) {
	data, err := json.Marshal(Envelope{
		Type:      "data",
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   rec,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("mac", rec.MAC).Msg("error encoding record")
		return
	}

	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	sent, dropped := 0, 0
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("dropping websocket client")
			s.drop(conn)
			dropped++
			continue
		}
		sent++
	}

	go s.metrics.WritePoint(influxdb2.NewPoint("output.sent",
		map[string]string{
			"output":   "websocket",
			"tech":     string(rec.Tech),
			"msg_type": rec.MessageType.String(),
		},
		map[string]interface{}{
			"encoded_length": len(data),
			"sent":           sent,
			"dropped":        dropped,
		}, time.Now()))
}
