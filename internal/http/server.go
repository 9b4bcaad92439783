package http

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	// WriteTimeout must outlast a synchronous submit-and-grade request.
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 6 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	return c
}

type Server struct {
	srv *http.Server
}

func NewServer(handler http.Handler, cfg ServerConfig) *Server {
	cfg = cfg.withDefaults()
	return &Server{srv: &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}}
}

// Run blocks until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
