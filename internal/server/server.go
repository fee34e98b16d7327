package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lacquerai/dashwire/internal/fetch"
	"github.com/lacquerai/dashwire/internal/mapping"
	"github.com/lacquerai/dashwire/internal/refresh"
	"github.com/lacquerai/dashwire/internal/store"
	"github.com/lacquerai/dashwire/pkg/events"
)

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	EnableMetrics   bool
	EnableCORS      bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MinRefreshInterval clamps widget refresh intervals.
	MinRefreshInterval time.Duration
	// StreamBuffer is the number of events queued per WebSocket client.
	StreamBuffer int
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:               "localhost",
		Port:               8080,
		EnableMetrics:      true,
		EnableCORS:         true,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       45 * time.Second,
		IdleTimeout:        60 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		MinRefreshInterval: time.Second,
		StreamBuffer:       64,
	}
}

// Server serves the dashboard API.
type Server struct {
	config    *Config
	store     *store.Store
	engine    *mapping.Engine
	fetcher   fetch.Fetcher
	scheduler *refresh.Scheduler
	events    *events.Broadcaster
	hub       *Hub
	registry  *prometheus.Registry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	detach   func()
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithFetcher replaces the HTTP client used to fetch widget data.
func WithFetcher(f fetch.Fetcher) Option {
	return func(s *Server) {
		s.fetcher = f
	}
}

// WithEngine replaces the mapping engine.
func WithEngine(e *mapping.Engine) Option {
	return func(s *Server) {
		s.engine = e
	}
}

// New creates a server over st.
func New(config *Config, st *store.Store, opts ...Option) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if st == nil {
		return nil, fmt.Errorf("server requires a store")
	}

	s := &Server{
		config:   config,
		store:    st,
		events:   events.NewBroadcaster(),
		registry: prometheus.NewRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return config.EnableCORS // Allow all origins if CORS enabled
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = mapping.NewEngine()
	}
	if s.fetcher == nil {
		s.fetcher = fetch.NewClient()
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.hub = NewHub(s.registry)
	s.scheduler = refresh.New(s.fetcher, s.engine,
		refresh.WithEvents(s.events),
		refresh.WithMetrics(refresh.NewMetrics(s.registry)),
		refresh.WithMinInterval(config.MinRefreshInterval),
	)

	return s, nil
}

// Scheduler returns the scheduler refreshing the store's widgets.
func (s *Server) Scheduler() *refresh.Scheduler {
	return s.scheduler
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	// Apply CORS middleware to all routes if enabled
	if s.config.EnableCORS {
		router.Use(s.corsMiddleware)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)

	// Widget endpoints
	api.HandleFunc("/widgets", s.listWidgets).Methods("GET")
	api.HandleFunc("/widgets", s.createWidget).Methods("POST")
	api.HandleFunc("/widgets/{id}", s.getWidget).Methods("GET")
	api.HandleFunc("/widgets/{id}", s.updateWidget).Methods("PUT", "PATCH")
	api.HandleFunc("/widgets/{id}", s.deleteWidget).Methods("DELETE")
	api.HandleFunc("/widgets/{id}/data", s.widgetData).Methods("GET")
	api.HandleFunc("/widgets/{id}/refresh", s.refreshWidget).Methods("POST")

	// Design-time endpoints
	api.HandleFunc("/discover", s.discover).Methods("POST")
	api.HandleFunc("/preview", s.preview).Methods("POST")

	// Dashboard config
	api.HandleFunc("/config", s.exportConfig).Methods("GET")
	api.HandleFunc("/config", s.importConfig).Methods("POST")

	api.HandleFunc("/stream", s.stream).Methods("GET")

	// Handle OPTIONS for CORS preflight
	if s.config.EnableCORS {
		api.Methods("OPTIONS").HandlerFunc(s.handleOptions)
	}

	if s.config.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	router.HandleFunc("/health", s.healthCheck)

	return router
}

// Start begins refreshing widgets and serving HTTP in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("server already started")
	}

	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.detach = s.events.Attach(s.hub, s.config.StreamBuffer)
	s.scheduler.Follow(s.store)

	s.listener = listener
	s.server = &http.Server{
		Addr:         listener.Addr().String(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	log.Info().
		Str("addr", s.server.Addr).
		Int("widgets", s.store.Len()).
		Bool("metrics", s.config.EnableMetrics).
		Msg("Starting dashwire server")

	srv := s.server
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
		}
	}()

	return nil
}

// Stop shuts the HTTP server down and stops all refresh loops.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, detach := s.server, s.detach
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	log.Info().Msg("Shutting down server...")
	err := srv.Shutdown(ctx)
	s.scheduler.Stop()
	if detach != nil {
		detach()
	}
	s.events.Close()
	return err
}

// StartWithGracefulShutdown starts the server and blocks until ctx is done
// or the process receives SIGINT or SIGTERM.
func (s *Server) StartWithGracefulShutdown(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}

// GetAddr returns the address the server listens on. Before Start it is
// the configured address.
func (s *Server) GetAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
}

// handleOptions handles CORS preflight requests
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	// CORS headers are already set by middleware
	w.WriteHeader(http.StatusOK)
}
