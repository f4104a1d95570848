package mws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mongodb-labs/mongo-web-shell-sub000/otel_metrics"
)

const shutdownTimeout = 10 * time.Second

// Run serves the resource server until ctx is canceled, then shuts down
// gracefully.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	om, err := otel_metrics.NewOtelManager(ctx, otel_metrics.ServerServiceName, cfg.EnableOtelMetrics)
	if err != nil {
		return fmt.Errorf("unable to set up metrics: %w", err)
	}
	defer func() {
		if err := om.Close(context.Background()); err != nil {
			slog.Error("failed to shut down metrics", slog.Any("error", err))
		}
	}()

	store, err := NewMongoStore(ctx, cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("unable to connect to MongoDB: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Error("failed to close store", slog.Any("error", err))
		}
	}()

	s := NewServer(cfg, store, om)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(gctx, fmt.Sprintf("Starting resource server on port %d", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.expiryLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("Server has been shut down gracefully. Exiting...")
	return err
}
