// Package server provides the local HTTP surface of airchord: status,
// recording control, the camera preview and the event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/app"
	"github.com/ayusman/airchord/internal/media"
	"github.com/ayusman/airchord/internal/server/api"
)

// Session is the running session the server exposes.
type Session interface {
	api.Session
	Subscribe() (<-chan app.Event, func())
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Session   Session
	// Frames feeds the MJPEG preview with encoded camera frames.
	Frames media.FrameSource
	Logger *zap.Logger
}

// Server represents the HTTP server for airchord.
type Server struct {
	config Config
	logger *zap.Logger
	mux    *http.ServeMux
	start  time.Time
	srv    *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		logger: config.Logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Session != nil {
		sessions := api.NewSessionHandler(s.config.Session, s.logger)
		recordings := api.NewRecordingHandler(s.config.Session, s.logger)

		s.mux.HandleFunc("/api/status", sessions.Status)
		s.mux.HandleFunc("/api/audio/enable", sessions.EnableAudio)
		s.mux.HandleFunc("/api/recording/start", recordings.Start)
		s.mux.HandleFunc("/api/recording/stop", recordings.Stop)
		s.mux.HandleFunc("/api/recording/artifact", recordings.Artifact)
		s.mux.Handle("/api/events", NewEventsHandler(s.config.Session, s.logger))
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
