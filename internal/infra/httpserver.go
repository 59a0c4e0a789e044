package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server with lifecycle helpers.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the HTTP server with timeouts taken from configuration.
// The write timeout must cover a full generate round trip, which can include
// minutes of provider polling, so it is deliberately generous.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
		},
	}
}

// Start begins serving. It blocks until the server stops.
func (s *HTTPServer) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
