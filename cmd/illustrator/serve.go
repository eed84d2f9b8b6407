package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"illustrator/pkg/api"
	"illustrator/pkg/app"
	"illustrator/pkg/logx"
)

// serve runs the HTTP API until ctx is cancelled, then drains in-flight requests for
// at most the configured shutdown timeout.
func serve(ctx context.Context, a *app.Context) error {
	s := a.Config.Server
	srv := &http.Server{
		Addr:         s.Addr(),
		Handler:      api.New(api.Config{App: a}),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	case <-ctx.Done():
	}

	logx.Infof("🛑 Shutting down (grace period %s)", s.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // parent is already cancelled
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
