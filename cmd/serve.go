package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/playsync/internal/server"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the backend until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	db, err := shared.OpenConfigured(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	srv, err := server.New(db, server.Opts{
		Addr:          addr,
		SessionTTL:    r.config.Server.SessionTTL.Duration,
		PurgeSchedule: r.config.Server.PurgeSchedule,
		Logger:        shared.WithLogger(r.logger, "component", "server"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// Status checks that the backend answers its health endpoint.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	checker, ok := r.backend.(interface{ Health(context.Context) error })
	if !ok {
		return fmt.Errorf("%w: backend does not report health", shared.ErrServiceUnavailable)
	}

	if err := checker.Health(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Backend is healthy (%s)\n", r.config.Client.BaseURL)
}
