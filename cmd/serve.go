package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/okian/rota/internal/adapters/http/api"
	"github.com/okian/rota/internal/adapters/http/swagger"
	service "github.com/okian/rota/internal/app"
	"github.com/okian/rota/internal/config"
	"github.com/okian/rota/internal/simulation"
	"github.com/okian/rota/pkg/logger"

	"github.com/spf13/cobra"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the mentorship workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), demo)
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "seed the store with a synthetic marketplace")
	return cmd
}

func runServe(ctx context.Context, demo bool) error {
	cfg, l, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer syncLogger()

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		l.Error(ctx, "listen failed", logger.String("addr", cfg.Addr), logger.Error(err))
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return serve(ctx, cfg, l, lis, demo)
}

// serve runs the service behind lis until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, l logger.Logger, lis net.Listener, demo bool) error {
	svc := service.New(cfg, service.WithLogger(l))
	if err := svc.Start(ctx); err != nil {
		l.Error(ctx, "failed to start service", logger.Error(err))
		_ = lis.Close()
		return err
	}

	if demo {
		pop, err := simulation.Populate(ctx, svc.Store(), simulation.DefaultConfig())
		if err != nil {
			l.Warn(ctx, "demo seeding failed", logger.Error(err))
		} else {
			l.Info(ctx, "demo marketplace seeded",
				logger.Int("operators", len(pop.Operators)),
				logger.Int("agents", len(pop.Agents)),
				logger.Int("tasks", len(pop.TaskIDs)),
			)
		}
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	srv := &http.Server{
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		l.Info(ctx, "starting HTTP server", logger.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			l.Error(ctx, "HTTP server failed", logger.Error(err))
			runErr = err
		}
	}
	l.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		l.Error(ctx, "service shutdown failed", logger.Error(err))
		runErr = errors.Join(runErr, err)
	}

	l.Info(ctx, "server stopped")
	return runErr
}
