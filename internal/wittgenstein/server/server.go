// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     server
// Description: HTTP server for the Wittgenstein voice gateway
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msto63/sprechwerk/internal/wittgenstein/handler"
	"github.com/msto63/sprechwerk/internal/wittgenstein/metrics"
	"github.com/msto63/sprechwerk/internal/wittgenstein/session"
	"github.com/msto63/sprechwerk/pkg/core/health"
	"github.com/msto63/sprechwerk/pkg/core/logging"
	"github.com/msto63/sprechwerk/pkg/core/version"
)

// Server is the Wittgenstein voice gateway server
type Server struct {
	httpServer *http.Server
	voice      *handler.VoiceHandler
	health     *health.Registry
	metrics    *metrics.Metrics
	logger     *logging.Logger
	config     Config
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	AuthToken       string
	MaxConnsPerUser int
	Session         session.Config
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // streaming responses, no global write timeout
		AuthToken:       "",
		MaxConnsPerUser: 5,
		Session:         session.DefaultConfig(),
	}
}

// New creates a new Wittgenstein server
func New(cfg Config, deps handler.Deps) (*Server, error) {
	logger := logging.New("wittgenstein-server")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	voice := handler.NewVoiceHandler(cfg.AuthToken, cfg.MaxConnsPerUser, cfg.Session, deps, m)

	healthRegistry := health.NewRegistry("wittgenstein", version.Wittgenstein)
	healthRegistry.RegisterFunc("http", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{
			Name:    "http",
			Status:  health.StatusHealthy,
			Message: "HTTP server is running",
		}
	})
	healthRegistry.RegisterFunc("stt", func(ctx context.Context) health.CheckResult {
		if deps.STT != nil && deps.STT.IsAvailable(ctx) {
			return health.CheckResult{Name: "stt", Status: health.StatusHealthy}
		}
		return health.CheckResult{
			Name:    "stt",
			Status:  health.StatusUnhealthy,
			Message: "No transcription provider reachable",
		}
	})

	mux := http.NewServeMux()
	mux.Handle("/voice/stream", voice)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := healthRegistry.CheckWithTimeout(5 * time.Second)
		w.Header().Set("Content-Type", "application/json")
		if report.Status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      loggingMiddleware(logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		httpServer: httpServer,
		voice:      voice,
		health:     healthRegistry,
		metrics:    m,
		logger:     logger,
		config:     cfg,
	}, nil
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack is required for the WebSocket upgrade through the wrapper
func (w *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("Starting Wittgenstein Voice Gateway",
		"host", s.config.Host,
		"port", s.config.Port,
	)
	return s.httpServer.ListenAndServe()
}

// StartAsync starts the server asynchronously
func (s *Server) StartAsync() error {
	s.logger.Info("Starting Wittgenstein Voice Gateway (async)",
		"host", s.config.Host,
		"port", s.config.Port,
	)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping Wittgenstein Voice Gateway")

	s.voice.Registry().CloseAll()

	return s.httpServer.Shutdown(ctx)
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// HealthRegistry returns the health check registry
func (s *Server) HealthRegistry() *health.Registry {
	return s.health
}

// Sessions returns the active session registry
func (s *Server) Sessions() *session.Registry {
	return s.voice.Registry()
}
