package http

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestServerTimeouts(t *testing.T) {
	s := NewServer(http.NotFoundHandler(), ServerConfig{Addr: "127.0.0.1:0", WriteTimeout: 7 * time.Minute})
	if s.srv.WriteTimeout != 7*time.Minute {
		t.Fatalf("write timeout: got=%s", s.srv.WriteTimeout)
	}
	if s.srv.ReadHeaderTimeout != 10*time.Second || s.srv.IdleTimeout != 2*time.Minute {
		t.Fatalf("defaults: header=%s idle=%s", s.srv.ReadHeaderTimeout, s.srv.IdleTimeout)
	}
}

func TestServerRunAfterShutdownReturnsNil(t *testing.T) {
	s := NewServer(http.NotFoundHandler(), ServerConfig{Addr: "127.0.0.1:0"})
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("Run after shutdown: %v", err)
	}
}
