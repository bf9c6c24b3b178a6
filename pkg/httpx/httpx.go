// Package httpx serves an http.Handler over either net/http or fasthttp,
// selected by config, with a common shutdown path.
package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"deltastore/pkg/logger"
)

// Server wraps one of the two supported listener engines.
type Server struct {
	engine string
	addr   string

	net  *http.Server
	fast *fasthttp.Server
}

// NewServer builds a server for the given engine ("nethttp" by default,
// or "fasthttp").
func NewServer(engine, addr string, h http.Handler) *Server {
	s := &Server{engine: engine, addr: addr}
	switch engine {
	case "fasthttp":
		s.fast = &fasthttp.Server{Handler: fasthttpadaptor.NewFastHTTPHandler(h)}
	default:
		s.engine = "nethttp"
		s.net = &http.Server{Addr: addr, Handler: h}
	}
	return s
}

// ListenAndServe blocks serving requests. TLS is used when both cert and
// key paths are non-empty.
func (s *Server) ListenAndServe(certFile, keyFile string) error {
	logger.Info("http_listening", "engine", s.engine, "addr", s.addr, "tls", certFile != "" && keyFile != "")
	if s.fast != nil {
		if certFile != "" && keyFile != "" {
			return s.fast.ListenAndServeTLS(s.addr, certFile, keyFile)
		}
		return s.fast.ListenAndServe(s.addr)
	}
	if certFile != "" && keyFile != "" {
		return s.net.ListenAndServeTLS(certFile, keyFile)
	}
	return s.net.ListenAndServe()
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline. fasthttp's Shutdown takes no context; it is bounded
// by its own idle handling.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.fast != nil {
		done := make(chan error, 1)
		go func() { done <- s.fast.Shutdown() }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.net != nil {
		return s.net.Shutdown(ctx)
	}
	return fmt.Errorf("server not started")
}
