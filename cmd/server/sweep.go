package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/banquethub/service-reservation/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete every confirmed reservation whose date has passed, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			sweeper := worker.NewCompletionSweeper(app.reservations, cfg.SweepInterval, cfg.SweepBatchSize, log)
			n := sweeper.Sweep(ctx)
			log.Info("sweep finished", zap.Int("completed", n))
			return nil
		},
	}
}
