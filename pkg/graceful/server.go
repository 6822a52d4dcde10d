// Package graceful runs an http.Server tied to a context, draining in-flight
// requests on cancellation.
package graceful

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server owns the lifecycle of one http.Server.
type Server struct {
	srv          *http.Server
	log          *slog.Logger
	drainTimeout time.Duration
}

// NewServer wraps srv. drainTimeout bounds how long Shutdown waits for
// in-flight requests.
func NewServer(log *slog.Logger, srv *http.Server, drainTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		srv:          srv,
		log:          log,
		drainTimeout: drainTimeout,
	}
}

// ListenAndServe serves until ctx is cancelled or the listener fails, then
// drains. A listener failure is returned as-is; a drain timeout is returned
// from Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	listenErr := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", s.srv.Addr))
		listenErr <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("draining http server", slog.Duration("timeout", s.drainTimeout))

	drainCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()

	if err := s.srv.Shutdown(drainCtx); err != nil {
		s.log.Error("http server drain failed", slog.Any("error", err))
		return err
	}

	return nil
}
