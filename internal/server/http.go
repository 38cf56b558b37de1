package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// HTTPServer serves the sign-in API with graceful shutdown.
type HTTPServer struct {
	srv *http.Server
}

// NewHTTPServer builds the server around the router. Method-not-allowed
// handling and client IP forwarding are enabled here so every entrypoint
// gets them.
func NewHTTPServer(router *gin.Engine) *HTTPServer {
	router.HandleMethodNotAllowed = true
	router.ForwardedByClientIP = true
	return &HTTPServer{
		srv: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Run listens on addr until ctx is cancelled, then drains in-flight
// requests within the shutdown timeout.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	s.srv.Addr = addr
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
