// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"
)

// taskServer is satisfied by *asynq.Server.
type taskServer interface {
	Start(handler asynq.Handler) error
	Shutdown()
}

// WorkerOptions tunes the asynq server.
type WorkerOptions struct {
	Concurrency int
	Queue       string
	Logger      *slog.Logger
}

// Worker consumes TaskDeliver tasks and delivers them through a Sender.
type Worker struct {
	srv    taskServer
	sender Sender
	logger *slog.Logger
}

// NewWorker creates a Worker reading from the Redis at redisOpt.
func NewWorker(redisOpt asynq.RedisConnOpt, sender Sender, opts WorkerOptions) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queue := opts.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      asynqLogger{logger: logger.With("component", "asynq")},
		LogLevel:    asynq.WarnLevel,
	})
	return newWorker(srv, sender, logger)
}

func newWorker(srv taskServer, sender Sender, logger *slog.Logger) *Worker {
	return &Worker{srv: srv, sender: sender, logger: logger}
}

// Handler routes TaskDeliver to HandleDeliver.
func (w *Worker) Handler() asynq.Handler {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDeliver, w.HandleDeliver)
	return mux
}

// HandleDeliver delivers one message. Malformed payloads and permanent
// failures skip asynq's retries; anything else is retried by the queue.
func (w *Worker) HandleDeliver(ctx context.Context, task *asynq.Task) error {
	msg, err := decodeTask(task)
	if err != nil {
		w.logger.ErrorContext(ctx, "dropping malformed mail task", "error", err)
		recordDelivery("unknown", OutcomeDropped)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		if errors.Is(err, ErrPermanent) {
			w.logger.ErrorContext(ctx, "mail delivery failed permanently", "kind", msg.Kind, "error", err)
			recordDelivery(msg.Kind, OutcomeDropped)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		recordDelivery(msg.Kind, OutcomeRetry)
		return oops.Code("MAIL_DELIVER_FAILED").With("kind", msg.Kind).Wrap(err)
	}

	w.logger.InfoContext(ctx, "mail delivered", "kind", msg.Kind)
	recordDelivery(msg.Kind, OutcomeDelivered)
	return nil
}

// Run starts the server and blocks until ctx is done, then drains in-flight
// tasks before returning.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.srv.Start(w.Handler()); err != nil {
		return oops.Code("MAIL_WORKER_START_FAILED").Wrap(err)
	}
	w.logger.InfoContext(ctx, "mail worker started")

	<-ctx.Done()
	w.srv.Shutdown()
	w.logger.Info("mail worker stopped")
	return nil
}

// asynqLogger adapts slog to asynq.Logger.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
