package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/jobqueue"
)

// WorkerCommand returns the command running the snapshot workers
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Run the thread snapshot workers",
		Action: runWorker,
	}
}

func runWorker(c *cli.Context) error {
	cfg, err := appConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Queue.Enabled {
		return fmt.Errorf("queue is disabled in the configuration")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, closeDB, dbURL, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	qc := jobqueue.FromConfig(cfg.Queue)
	jq, err := jobqueue.NewJobQueue(ctx, dbURL, qc, s)
	if err != nil {
		return err
	}
	if err := jq.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	log.Info().Int("max_workers", qc.MaxWorkers).Msg("Snapshot workers started")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log.Info().Msg("Stopping snapshot workers")
	return jq.Stop(stopCtx)
}
