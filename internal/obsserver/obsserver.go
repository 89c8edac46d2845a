// Package obsserver runs a small local-only HTTP sidecar exposing health
// and Prometheus metrics, plus a websocket feed of run progress events. It
// never serves backtest requests itself — that API boundary is out of
// scope here — it only observes runs that are driven elsewhere.
package obsserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds the Prometheus instrumentation for the backtest engine.
type Metrics struct {
	RunDuration   *prometheus.HistogramVec
	RunsTotal     *prometheus.CounterVec
	TradesEmitted prometheus.Counter
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
}

// NewMetrics builds and registers the Prometheus collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statarb_backtest_run_duration_seconds",
				Help:    "Wall-clock duration of a single pair backtest run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statarb_backtest_runs_total",
				Help: "Total backtest runs by outcome",
			},
			[]string{"outcome"},
		),
		TradesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statarb_backtest_trades_total",
			Help: "Total simulated trades produced across all runs",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statarb_resultcache_hits_total",
			Help: "Total result-cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statarb_resultcache_misses_total",
			Help: "Total result-cache misses",
		}),
	}

	prometheus.MustRegister(m.RunDuration, m.RunsTotal, m.TradesEmitted, m.CacheHits, m.CacheMisses)
	return m
}

// ObserveRun records the outcome and duration of one completed run.
func (m *Metrics) ObserveRun(outcome string, duration time.Duration, trades int) {
	m.RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.TradesEmitted.Add(float64(trades))
}

// ProgressEvent is broadcast over the websocket feed as a batch run advances.
type ProgressEvent struct {
	Pair      string  `json:"pair"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the ops sidecar: health, metrics, and a progress websocket.
type Server struct {
	router  *mux.Router
	httpSrv *http.Server
	metrics *Metrics

	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	ready    func() error
}

// Config configures the sidecar's listen address and timeouts.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns conservative local-only defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:9090",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// New builds a sidecar server. ready is consulted by /healthz; it should
// report a non-nil error while dependencies (cache, store) are unreachable.
func New(cfg Config, metrics *Metrics, ready func() error) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		metrics: metrics,
		clients: make(map[*websocket.Conn]struct{}),
		ready:   ready,
	}
	s.setupRoutes()
	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/progress", s.handleProgress).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"degraded","reason":%q}`, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("progress websocket upgrade failed")
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// Drain reads so the connection stays alive; clients never send data.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast pushes a progress event to every connected websocket client.
// Dead connections are dropped silently; progress reporting is best-effort.
func (s *Server) Broadcast(event ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpSrv.Addr).Msg("obsserver listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
