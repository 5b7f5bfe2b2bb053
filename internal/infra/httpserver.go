package infra

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

const readHeaderTimeout = 5 * time.Second

// HTTPServer owns the API listener and its graceful shutdown.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer applies the configured timeouts. Errors from net/http are
// routed into logger at warn level.
func NewHTTPServer(cfg *Config, handler http.Handler, logger Logger) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ErrorLog:          log.New(warnWriter{logger.With().Str("component", "http").Logger()}, "", 0),
	}
	return &HTTPServer{server: srv}
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// Start listens on the configured port. It returns nil after Shutdown.
func (s *HTTPServer) Start() error {
	return ignoreClosed(s.server.ListenAndServe())
}

// Serve accepts connections on l until Shutdown.
func (s *HTTPServer) Serve(l net.Listener) error {
	return ignoreClosed(s.server.Serve(l))
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// warnWriter adapts Logger to the io.Writer net/http logs to.
type warnWriter struct {
	logger Logger
}

func (w warnWriter) Write(p []byte) (int, error) {
	w.logger.Warn().Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}
