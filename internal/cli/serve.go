package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lfhttp "github.com/aretw0/lendflow/pkg/adapters/http"
	"golang.org/x/sync/errgroup"
)

// ServeOptions configures the HTTP API.
type ServeOptions struct {
	Addr            string
	Version         string
	ShutdownTimeout time.Duration
}

// Handler builds the HTTP API of rt.
func Handler(rt *Runtime, logger *slog.Logger, version string) http.Handler {
	opts := []lfhttp.Option{
		lfhttp.WithLogger(logger),
		lfhttp.WithVersion(version),
	}
	if rt.Metrics != nil {
		opts = append(opts, lfhttp.WithMetrics(rt.Metrics.Handler()))
	}
	if rt.Reloads != nil {
		opts = append(opts, lfhttp.WithKnowledgeWatch(rt.Reloads))
	}
	return lfhttp.NewHandler(rt.Engine, opts...)
}

// Serve runs the HTTP API until ctx is done, then drains in-flight requests.
func Serve(ctx context.Context, rt *Runtime, logger *slog.Logger, opts ServeOptions) error {
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           Handler(rt, logger, opts.Version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "address", opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}
