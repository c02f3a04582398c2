package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// httpServer runs an HTTP server until the context is canceled.
type httpServer struct {
	server *http.Server
	logger *slog.Logger
}

func (s *httpServer) Run(ctx context.Context) error {
	s.logger.Debug("http server starting", "addr", s.server.Addr)
	defer s.logger.Debug("http server stopped")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
