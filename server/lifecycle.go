package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/logger"
)

// getState returns the current server state
func (s *ReportServer) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *ReportServer) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "ok"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Start listens on the configured port until ctx is cancelled, then drains
// in-flight requests for up to server.shutdown_timeout_seconds.
func (s *ReportServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WithHintf(errors.Wrapf(err, "failed to listen on %s", addr),
			"set server.port or THREATBRIEF_SERVER_PORT to a free port")
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *ReportServer) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		// generation runs take minutes; no write timeout
		IdleTimeout: 120 * time.Second,
	}
	s.setState(ServerStateRunning)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("HTTP server listening", logger.FieldAddress, ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.setState(ServerStateStopped)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server failed")
	case <-ctx.Done():
	}

	timeout := time.Duration(s.cfg.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop drains in-flight requests and WebSocket runs
func (s *ReportServer) Stop(ctx context.Context) error {
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	var shutdownErr error
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(ctx)
	}

	// hijacked WebSocket connections are not tracked by Shutdown
	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("All stream runs finished")
	case <-ctx.Done():
		s.logger.Warnw("Stream runs still active at shutdown deadline")
	}

	s.setState(ServerStateStopped)
	if shutdownErr != nil {
		return errors.Wrap(shutdownErr, "graceful shutdown incomplete")
	}
	s.logger.Infow("Server shutdown complete")
	return nil
}
