package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

type serverOption func(*server)

func withAddr(addr string) serverOption {
	return func(s *server) {
		s.addr = addr
	}
}

func withSource(src traceSource) serverOption {
	return func(s *server) {
		s.source = src
	}
}

// server exposes reconstructed views of trace data as a JSON API, for
// consumption by any rendering layer.
type server struct {
	addr   string
	source traceSource
	mux    *http.ServeMux
}

func newServer(opts ...serverOption) *server {
	s := &server{
		addr: ":18700",
		mux:  http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/traces", s.handleListTraces)
	s.mux.HandleFunc("GET /api/traces/{id}", s.handleGetTrace)
	s.mux.HandleFunc("GET /api/traces/{id}/tree", s.handleGetTree)
	s.mux.HandleFunc("GET /api/traces/{id}/context", s.handleGetContext)
	s.mux.HandleFunc("GET /api/traces/{id}/turns", s.handleGetTurns)
	s.mux.HandleFunc("GET /api/episodes/{id}", s.handleGetEpisode)
}

func (s *server) handler() http.Handler {
	return s.mux
}

func (s *server) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return goerr.Wrap(err, "failed to listen", goerr.Value("addr", s.addr))
	}

	addr := listener.Addr().String()
	slog.Info("starting trace viewer server",
		slog.String("addr", addr),
		slog.String("url", "http://"+addr),
	)

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return goerr.Wrap(err, "server error")
	}

	return nil
}
