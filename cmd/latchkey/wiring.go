// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"

	"github.com/latchkey/latchkey/internal/account"
	"github.com/latchkey/latchkey/internal/account/postgres"
	"github.com/latchkey/latchkey/internal/auth"
	"github.com/latchkey/latchkey/internal/config"
	"github.com/latchkey/latchkey/internal/mail"
	"github.com/latchkey/latchkey/internal/observability"
	"github.com/latchkey/latchkey/internal/store"
)

// newAccountService connects to PostgreSQL and wires an account.Manager
// with the configured mail transport.
func newAccountService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (AccountService, func(), error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	pool, err := store.Open(ctx, cfg.Database.URL, store.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		ConnectBackoff:  cfg.Database.ConnectBackoff,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.InfoContext(ctx, "connected to database")

	sender, closeSender, err := newSender(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	cleanup := func() {
		closeSender()
		pool.Close()
	}

	dispatcher, err := mail.NewDispatcher(sender, mail.Settings{
		From:    cfg.Mail.From,
		BaseURL: cfg.Mail.BaseURL,
		Product: cfg.Mail.Product,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	sessions, err := auth.NewSessionIssuer(cfg.Session.Secret, auth.WithIssuer(cfg.Session.Issuer))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	manager, err := account.NewManager(postgres.NewUserStore(pool), dispatcher, sessions,
		account.WithLogger(logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return manager, cleanup, nil
}

// newSender builds the Sender for cfg.Mail.Transport. The returned func
// releases any client the sender holds.
func newSender(cfg *config.Config, logger *slog.Logger) (mail.Sender, func(), error) {
	noop := func() {}

	switch cfg.Mail.Transport {
	case config.TransportLog:
		return mail.NewLogSender(logger), noop, nil
	case config.TransportSMTP:
		smtp, err := newSMTPSender(cfg)
		if err != nil {
			return nil, nil, err
		}
		return mail.NewRetrySender(smtp,
			mail.WithAttempts(cfg.Mail.Attempts),
			mail.WithRetryLogger(logger),
		), noop, nil
	case config.TransportQueue:
		redisOpt, err := mail.ParseRedisURL(cfg.Mail.Queue.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := asynq.NewClient(redisOpt)
		sender := mail.NewQueueSender(client, mail.QueueOptions{
			Queue:    cfg.Mail.Queue.Name,
			MaxRetry: cfg.Mail.Queue.MaxRetry,
			Timeout:  cfg.Mail.Queue.Timeout,
		})
		return sender, func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing queue client failed", "error", err)
			}
		}, nil
	default:
		return nil, nil, oops.Code("CONFIG_MAIL_TRANSPORT_INVALID").
			With("transport", cfg.Mail.Transport).
			Errorf("unknown mail transport")
	}
}

func newSMTPSender(cfg *config.Config) (*mail.SMTPSender, error) {
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.SMTP.Host,
		Port:     cfg.Mail.SMTP.Port,
		Username: cfg.Mail.SMTP.Username,
		Password: cfg.Mail.SMTP.Password,
	})
}

// newMailWorker wires the queue consumer. Queued messages are delivered
// over SMTP with in-process retries, or to the log.
func newMailWorker(cfg *config.Config, logger *slog.Logger) (WorkerRunner, map[string]observability.ReadinessCheck, func(), error) {
	redisOpt, err := mail.ParseRedisURL(cfg.Mail.Queue.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}

	var deliver mail.Sender
	if cfg.Mail.Queue.Deliver == config.TransportSMTP {
		smtp, err := newSMTPSender(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		deliver = mail.NewRetrySender(smtp,
			mail.WithAttempts(cfg.Mail.Attempts),
			mail.WithRetryLogger(logger),
		)
	} else {
		deliver = mail.NewLogSender(logger)
	}

	probe, err := mail.NewRedisProbe(cfg.Mail.Queue.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}

	worker := mail.NewWorker(redisOpt, deliver, mail.WorkerOptions{
		Concurrency: cfg.Mail.Queue.Concurrency,
		Queue:       cfg.Mail.Queue.Name,
		Logger:      logger,
	})
	checks := map[string]observability.ReadinessCheck{"redis": probe.Check}
	cleanup := func() {
		if err := probe.Close(); err != nil {
			logger.Warn("closing redis probe failed", "error", err)
		}
	}
	return worker, checks, cleanup, nil
}
