// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/latchkey/latchkey/internal/account"
	"github.com/latchkey/latchkey/internal/config"
	"github.com/latchkey/latchkey/internal/mail"
	"github.com/latchkey/latchkey/internal/observability"
	"github.com/latchkey/latchkey/internal/store"
)

// Deps contains injectable dependencies for the CLI commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// AccountServiceFactory wires the account manager for admin commands.
	// The returned func releases its resources.
	// Default: newAccountService
	AccountServiceFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (AccountService, func(), error)

	// MigratorFactory opens a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// WorkerFactory wires the mail delivery worker and its readiness checks.
	// Default: newMailWorker
	WorkerFactory func(cfg *config.Config, logger *slog.Logger) (WorkerRunner, map[string]observability.ReadinessCheck, func(), error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checks map[string]observability.ReadinessCheck) ObservabilityServer
}

// AccountService is the slice of account.Manager the admin commands use.
type AccountService interface {
	AdminDeleteAccount(ctx context.Context, email string) (account.Result, error)
	ResendVerification(ctx context.Context, email string) (account.Result, error)
	ForgotPassword(ctx context.Context, email string) (account.Result, error)
}

// Migrator wraps the methods the migrate commands use from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.MigrationStatus, error)
	Close() error
}

// WorkerRunner runs until ctx is done.
type WorkerRunner interface {
	Run(ctx context.Context) error
}

// ObservabilityServer is the lifecycle of observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// withDefaults fills nil factories.
func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.AccountServiceFactory == nil {
		out.AccountServiceFactory = newAccountService
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.WorkerFactory == nil {
		out.WorkerFactory = newMailWorker
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, checks map[string]observability.ReadinessCheck) ObservabilityServer {
			// Only the worker serves metrics, and it records mail deliveries.
			return observability.NewServer(addr, checks, mail.RegisterMetrics)
		}
	}
	return &out
}

var (
	_ AccountService      = (*account.Manager)(nil)
	_ Migrator            = (*store.Migrator)(nil)
	_ ObservabilityServer = (*observability.Server)(nil)
)
