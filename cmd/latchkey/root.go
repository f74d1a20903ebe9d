package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/latchkey/latchkey/internal/config"
	"github.com/latchkey/latchkey/internal/logging"
)

const serviceName = "latchkey"

// NewRootCmd creates the root command for the Latchkey CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "latchkey",
		Short: "Latchkey - account credential and token lifecycle",
		Long: `Latchkey manages account registration, email verification, password
reset and account deletion backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().String("config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewWorkerCmd(deps))
	cmd.AddCommand(NewAdminCmd(deps))
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads configuration for cmd from --config, flags and the
// environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}
	return config.Load(config.LoadOptions{Path: path, Flags: cmd.Flags()})
}

// loadValidConfig loads and validates configuration and installs the
// default logger.
func loadValidConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, oops.With("operation", "validate configuration").Wrap(err)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
