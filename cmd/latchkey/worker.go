// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/latchkey/latchkey/pkg/errutil"
)

// shutdownTimeout bounds the observability server's graceful stop.
const shutdownTimeout = 5 * time.Second

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the queued mail delivery worker",
		Long: `Consume queued account emails from Redis and deliver them, serving
metrics and health probes alongside. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, cmd, deps)
		},
	}
}

func runWorker(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	cfg, logger, err := loadValidConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return oops.With("operation", "validate worker configuration").Wrap(err)
	}

	worker, checks, cleanup, err := deps.WorkerFactory(cfg, logger)
	if err != nil {
		errutil.LogError(ctx, logger, "failed to initialize mail worker", err)
		return err
	}
	defer cleanup()

	var obsErrCh <-chan error
	if cfg.Observability.Addr != "" {
		obs := deps.ObservabilityServerFactory(cfg.Observability.Addr, checks)
		obsErrCh, err = obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Observability.Addr).Wrap(err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := obs.Stop(stopCtx); err != nil {
				errutil.LogError(stopCtx, logger, "failed to stop observability server", err)
			}
		}()
		logger.InfoContext(ctx, "observability server listening", "addr", obs.Addr())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- worker.Run(runCtx) }()

	select {
	case err := <-done:
		return err
	case err, ok := <-obsErrCh:
		cancel()
		workerErr := <-done
		if ok && err != nil {
			return oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
		}
		return workerErr
	}
}
