package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Serve exposes /metrics and /health on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, health *HealthChecker) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", NewMetricsHandler())
	mux.Handle("/health", health)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
