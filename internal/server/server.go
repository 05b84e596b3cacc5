package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/pipeline"
	"slidecast/internal/registry"
)

// Server exposes the conversion service over HTTP: upload and job endpoints,
// a health probe, static serving of produced images, and a websocket stream
// of job updates.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	history  *registry.History
	pipeline *pipeline.Orchestrator
	hub      *streamHub

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New wires the HTTP surface. history may be nil when persistence is
// disabled.
func New(cfg *config.Config, logger *slog.Logger, reg *registry.Registry, history *registry.History, orch *pipeline.Orchestrator) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		registry: reg,
		history:  history,
		pipeline: orch,
		hub:      newStreamHub(logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/convert", srv.handleConvert)
	mux.HandleFunc("/jobs", srv.handleJobs)
	mux.HandleFunc("/jobs/", srv.handleJob)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/ws", srv.hub.handleSocket)
	mux.Handle("/images/", http.StripPrefix("/images/",
		http.FileServer(http.Dir(cfg.Paths.OutputDir))))
	srv.handler = mux

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the routing handler, primarily for httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving on the configured bind address. The server shuts
// down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	s.hub.start(ctx, s.registry)

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address, useful when binding to port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
