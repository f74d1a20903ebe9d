// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/latchkey/latchkey/internal/account"
	"github.com/latchkey/latchkey/pkg/errutil"
)

// NewAdminCmd creates the admin command group. These operations act on an
// account by email and are only reachable from the CLI.
func NewAdminCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative account operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete-account <email>",
		Short: "Delete an account immediately",
		Long: `Delete an account without the emailed confirmation step. The account
holder is sent a deletion notice on a best-effort basis.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, deps, func(ctx context.Context, svc AccountService) error {
				res, err := svc.AdminDeleteAccount(ctx, args[0])
				if err := checkResult(res, err); err != nil {
					return err
				}
				cmd.Printf("Account %s deleted\n", res.UserID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resend-verification <email>",
		Short: "Send a fresh email verification link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, deps, func(ctx context.Context, svc AccountService) error {
				res, err := svc.ResendVerification(ctx, args[0])
				if err := checkResult(res, err); err != nil {
					return err
				}
				cmd.Printf("Verification email sent to account %s\n", res.UserID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Start a password reset on behalf of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, deps, func(ctx context.Context, svc AccountService) error {
				res, err := svc.ForgotPassword(ctx, args[0])
				if err != nil {
					return err
				}
				// Same notice regardless of outcome, as for end users.
				cmd.Println(account.ForgotPasswordNotice)
				if res.Status == account.StatusSystemError {
					return oops.Code("ADMIN_OPERATION_FAILED").With("reason", res.Reason).Errorf("password reset could not be sent")
				}
				return nil
			})
		},
	})

	return cmd
}

// withAccounts loads configuration, wires the account service and runs fn.
func withAccounts(cmd *cobra.Command, deps *Deps, fn func(context.Context, AccountService) error) error {
	cfg, logger, err := loadValidConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, cleanup, err := deps.AccountServiceFactory(ctx, cfg, logger)
	if err != nil {
		errutil.LogError(ctx, logger, "failed to initialize account service", err)
		return err
	}
	defer cleanup()

	if err := fn(ctx, svc); err != nil {
		errutil.LogError(ctx, logger, "admin operation failed", err)
		return err
	}
	return nil
}

// checkResult turns a non-success Result into an error.
func checkResult(res account.Result, err error) error {
	if err != nil {
		return err
	}
	if res.OK() {
		return nil
	}
	msg := string(res.Status)
	if res.Reason != account.ReasonNone {
		msg += ": " + string(res.Reason)
	}
	return oops.Code("ADMIN_OPERATION_REJECTED").
		With("status", string(res.Status)).
		With("reason", string(res.Reason)).
		Errorf("%s", msg)
}
