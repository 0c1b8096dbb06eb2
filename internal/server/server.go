// Package server implements the freightview API server. It keeps stages,
// freight and promotions in SQLite and streams promotion changes to
// watchers as newline-delimited JSON.
//
// Architecture:
//
//	CLI / dashboard → HTTP (chi) → handlers → database.Store
//	                                   ↓
//	                                 Broker → watch streams
//
// Every promotion mutation is published to the watchers of the
// promotion's stage after it is committed.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Mr-Dark-debug/freightview/internal/database"
	"github.com/Mr-Dark-debug/freightview/internal/logging"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

// ErrInvalidPhase is returned for a status update with an unknown phase.
var ErrInvalidPhase = errors.New("invalid promotion phase")

// Metrics tracks server activity.
type Metrics struct {
	Watchers          int64 `json:"watchers"`
	WatchersDropped   int64 `json:"watchers_dropped"`
	EventsPublished   int64 `json:"events_published"`
	PromotionsCreated int64 `json:"promotions_created"`
	ErrorCount        int64 `json:"error_count"`
	Uptime            int64 `json:"uptime_seconds"`
}

// Config holds configuration for the API server.
type Config struct {
	// ListenAddr is the TCP address to listen on.
	ListenAddr string

	// HistoryLimit bounds each stage's freight history.
	HistoryLimit int

	// WatchBuffer is the number of events queued per watcher before the
	// watcher is dropped.
	WatchBuffer int

	// TokenSecret enables HS256 bearer auth on /v1 when non-empty.
	TokenSecret string

	// RequestTimeout applies to every route except watch streams.
	RequestTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     "127.0.0.1:9780",
		HistoryLimit:   10,
		WatchBuffer:    64,
		RequestTimeout: 30 * time.Second,
	}
}

// Server serves the freightview HTTP API.
type Server struct {
	config  Config
	store   database.Store
	broker  *Broker
	logger  *log.Logger
	metrics Metrics
	// registry backs /metrics.
	registry *prometheus.Registry

	httpServer *http.Server
	listener   net.Listener
	started    time.Time
	wg         sync.WaitGroup
}

// New creates a server over store. A nil logger discards output.
func New(config Config, store database.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		config:  config,
		store:   store,
		broker:  NewBroker(config.WatchBuffer),
		logger:  logger,
		started: time.Now(),
	}
	s.registry = s.newRegistry()
	return s
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener
	s.started = time.Now()
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err)
		}
	}()

	s.logger.Info("freightview server listening", "addr", listener.Addr().String(), "auth", s.config.TokenSecret != "")
	return nil
}

// Addr returns the bound listen address, or the configured one before
// Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.ListenAddr
}

// Stop ends all watch streams and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.logger.Info("shutting down freightview server")
	s.broker.Close()

	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	s.logger.Info("freightview server stopped")
	return err
}

// Metrics returns a snapshot of the current metrics.
func (s *Server) Metrics() Metrics {
	return Metrics{
		Watchers:          int64(s.broker.Count()),
		WatchersDropped:   atomic.LoadInt64(&s.metrics.WatchersDropped),
		EventsPublished:   atomic.LoadInt64(&s.metrics.EventsPublished),
		PromotionsCreated: atomic.LoadInt64(&s.metrics.PromotionsCreated),
		ErrorCount:        atomic.LoadInt64(&s.metrics.ErrorCount),
		Uptime:            int64(time.Since(s.started).Seconds()),
	}
}

func (s *Server) countError() {
	atomic.AddInt64(&s.metrics.ErrorCount, 1)
}
