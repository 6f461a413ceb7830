// Command sanctuary runs the Sanctuary API.
//
//	sanctuary            same as "sanctuary serve"
//	sanctuary serve      HTTP API plus, when reminder.enabled, the hourly sweep
//	sanctuary sweep      one housekeeping sweep, then exit (for cron)
//
// Configuration comes from config.yaml, .env files and the environment; see
// internal/config.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/sakif/sanctuary/internal/bootstrap"
	"github.com/sakif/sanctuary/internal/config"
	"github.com/sakif/sanctuary/internal/logger"
	"github.com/sakif/sanctuary/internal/reminder"
	"github.com/sakif/sanctuary/internal/server"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "sanctuary",
	Short:         "Sanctuary API server",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one reminder and cleanup sweep, then exit",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}

// setup loads the configuration and builds the container.
func setup() (*config.Config, *slog.Logger, *do.Injector, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(log)
	return cfg, log, bootstrap.BuildContainer(cfg, log), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, inj, err := setup()
	if err != nil {
		return err
	}
	defer closeContainer(inj, log)

	srv, err := do.Invoke[*server.Server](inj)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var background []func(context.Context)
	if cfg.Reminder.Enabled {
		sweeper, err := do.Invoke[*reminder.Sweeper](inj)
		if err != nil {
			return fmt.Errorf("building sweeper: %w", err)
		}
		background = append(background, func(ctx context.Context) {
			sweeper.Run(ctx, cfg.Reminder.Interval)
		})
		log.Info("reminder sweep enabled", slog.Duration("interval", cfg.Reminder.Interval))
	}

	return runUntilDone(ctx, srv.Run, background...)
}

// runUntilDone runs serve in the foreground and each of background in its
// own goroutine. Once serve returns, for whatever reason, the background
// jobs are cancelled and awaited, so nothing still holds the database when
// the container is closed.
func runUntilDone(ctx context.Context, serve func(context.Context) error, background ...func(context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, job := range background {
		wg.Go(func() { job(ctx) })
	}

	err := serve(ctx)
	cancel()
	wg.Wait()
	return err
}

func runSweep(cmd *cobra.Command, _ []string) error {
	_, log, inj, err := setup()
	if err != nil {
		return err
	}
	defer closeContainer(inj, log)

	sweeper, err := do.Invoke[*reminder.Sweeper](inj)
	if err != nil {
		return fmt.Errorf("building sweeper: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := sweeper.CheckOnce(ctx)
	log.Info("sweep finished",
		slog.Int("reminders", res.Reminders),
		slog.Int("spaces_dissolved", res.SpacesDissolved),
		slog.Int("sessions_purged", res.SessionsPurged),
	)
	return err
}

func closeContainer(inj *do.Injector, log *slog.Logger) {
	if err := bootstrap.Close(inj); err != nil {
		log.Warn("closing connections", slog.String("error", err.Error()))
	}
}
