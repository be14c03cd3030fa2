// Package api exposes the editing session over a localhost HTTP API.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/playback"
	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/render"
)

type Server struct {
	httpServer  *http.Server
	hub         *ExportHub
	unsubscribe func()
	logger      *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	Session        *project.Session
	Exports        *render.Manager
	Tokens         TokenSource
	Playback       playback.Streamer
	ExportDefaults compose.Settings
	Logger         *slog.Logger
	StartTime      time.Time

	// Hub is created by NewServer when nil.
	Hub *ExportHub
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Hub == nil {
		cfg.Hub = NewExportHub(cfg.Logger)
	}
	s := &Server{
		hub:    cfg.Hub,
		logger: cfg.Logger,
	}
	if cfg.Exports != nil {
		events, unsubscribe := cfg.Exports.Subscribe()
		s.unsubscribe = unsubscribe
		go s.hub.Pump(events)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:      NewRouter(cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
