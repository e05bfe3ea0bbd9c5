package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dronetag/rider-connect-demo/pkg/dispatch"
	"github.com/dronetag/rider-connect-demo/pkg/dri"
)

const historySize = 300

type Server struct {
	mu             sync.RWMutex
	srv            *http.Server
	plotters       map[string]*RSSIPlotter
	images         map[string]*ImageContainer
	updateInterval time.Duration
	lastViewed     time.Time
	stats          func() dispatch.Stats

	registry *prometheus.Registry
	records  *prometheus.CounterVec
}

func NewServer(port int, updateInterval time.Duration) *Server {
	s := &Server{
		plotters:       make(map[string]*RSSIPlotter),
		images:         make(map[string]*ImageContainer),
		srv:            &http.Server{Addr: fmt.Sprintf(":%d", port)},
		updateInterval: updateInterval,
		registry:       prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riderconnect",
			Name:      "records_total",
			Help:      "Decoded records by technology and message type.",
		}, []string{"tech", "msg_type"}),
	}
	s.registry.MustRegister(
		s.records,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.srv.Handler = s.Handler()
	return s
}

// SetStatsSource sets where /stats and /metrics read the frame counters
// from. It must be called at most once.
func (s *Server) SetStatsSource(stats func() dispatch.Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()

	counter := func(name, help string, value func(dispatch.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "riderconnect",
			Subsystem: "frames",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(stats())) })
	}
	s.registry.MustRegister(
		counter("total", "Frames carrying an address.", func(st dispatch.Stats) uint64 { return st.Frames }),
		counter("empty_total", "Keep-alive frames.", func(st dispatch.Stats) uint64 { return st.Empty }),
		counter("unroutable_total", "Frames for addresses without handlers.", func(st dispatch.Stats) uint64 { return st.Unroutable }),
		counter("handler_errors_total", "Frames whose handlers failed.", func(st dispatch.Stats) uint64 { return st.HandlerErrors }),
	)
}

// Observe counts rec and records its RSSI under its MAC. Records without a
// MAC are only counted.
func (s *Server) Observe(rec *dri.Record) {
	s.records.WithLabelValues(string(rec.Tech), rec.MessageType.String()).Inc()
	if rec.MAC == "" {
		return
	}

	s.mu.Lock()
	p, ok := s.plotters[rec.MAC]
	if !ok {
		p = NewRSSIPlotter(rec.MAC, historySize)
		s.plotters[rec.MAC] = p
	}
	s.mu.Unlock()

	p.Append(rec)
}

func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// Run re-renders plots while someone is watching and serves HTTP until ctx
// is done or Stop is called.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				s.srv.Shutdown(context.Background())
				return
			case <-time.After(s.updateInterval):
				s.mu.RLock()
				watched := time.Since(s.lastViewed) < 2*s.updateInterval
				s.mu.RUnlock()
				if watched {
					s.render()
				}
			}
		}
	}()

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) render() {
	s.mu.RLock()
	plotters := make([]*RSSIPlotter, 0, len(s.plotters))
	for _, p := range s.plotters {
		plotters = append(plotters, p)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, p := range plotters {
		wg.Add(1)
		go func(p *RSSIPlotter) {
			defer wg.Done()
			if img := p.GetImage(); img != nil {
				s.mu.Lock()
				s.images[img.name] = img
				s.mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
}

func (s *Server) macs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.plotters)
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Location", "/view")
		w.WriteHeader(http.StatusFound)
	})

	handler.GET("/view", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.Lock()
		s.lastViewed = time.Now()
		s.mu.Unlock()

		macs := s.macs()

		w.Header().Add("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Remote ID receiver</title></head>`))
		w.Write([]byte(fmt.Sprintf(`
		<script type="text/javascript">
			window.onload = function() {
				for (var i = 0; i < %d; i++) {
					var img = document.getElementById('graph-' + i);
					setInterval(function(image) {
						image.src = image.src.split("?")[0] + "?" + new Date().getTime();
					}, %d, img);
				}
			}
		</script>`, len(macs), s.updateInterval.Milliseconds())))
		w.Write([]byte(`<body style='background-color: black; color: white'>`))
		w.Write([]byte(`<a href="/stats" style="color: white">stats</a>`))

		w.Write([]byte(`<div style="display: flex; flex-direction: row; flex-wrap: wrap">`))
		for idx, mac := range macs {
			w.Write([]byte(fmt.Sprintf(`<div><img id="graph-%d" alt="%s" src="/img/%s?%d" /></div>`,
				idx, html.EscapeString(mac), url.PathEscape(mac), time.Now().UnixMicro())))
		}
		w.Write([]byte(`</div></body></html>`))
	})

	handler.GET("/img/:mac", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		mac := params.ByName("mac")

		s.mu.Lock()
		s.lastViewed = time.Now()
		img, ok := s.images[mac]
		p, known := s.plotters[mac]
		s.mu.Unlock()

		if !ok && known {
			img = p.GetImage()
			ok = img != nil
			if ok {
				s.mu.Lock()
				s.images[mac] = img
				s.mu.Unlock()
			}
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Add("Content-Type", "image/png")
		w.Write(img.data)
	})

	handler.GET("/stats", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		out := struct {
			Reader       *dispatch.Stats `json:"reader,omitempty"`
			Transmitters []Summary       `json:"transmitters"`
		}{Transmitters: []Summary{}}

		s.mu.RLock()
		statsFunc := s.stats
		plotters := make([]*RSSIPlotter, 0, len(s.plotters))
		for _, mac := range sortedKeys(s.plotters) {
			plotters = append(plotters, s.plotters[mac])
		}
		s.mu.RUnlock()

		if statsFunc != nil {
			stats := statsFunc()
			out.Reader = &stats
		}
		for _, p := range plotters {
			out.Transmitters = append(out.Transmitters, p.Summary())
		}

		w.Header().Add("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	handler.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return handler
}

func sortedKeys(m map[string]*RSSIPlotter) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
