// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

// Package config loads Latchkey's runtime configuration.
//
// Values are layered from lowest to highest precedence: built-in defaults,
// the YAML file named by --config, explicitly set command-line flags, and
// finally environment variables. A .env file in the working directory
// supplies variables that are unset or empty in the process environment.
package config

import (
	"time"

	"github.com/samber/oops"

	"github.com/latchkey/latchkey/internal/logging"
)

// Mail transports.
const (
	TransportLog   = "log"
	TransportSMTP  = "smtp"
	TransportQueue = "queue"
)

// Log formats.
const (
	FormatJSON = logging.FormatJSON
	FormatText = logging.FormatText
)

// Config is the effective configuration. Treat it as read-only after Load.
type Config struct {
	Database      DatabaseConfig      `koanf:"database" yaml:"database"`
	Session       SessionConfig       `koanf:"session" yaml:"session"`
	Mail          MailConfig          `koanf:"mail" yaml:"mail"`
	Log           LogConfig           `koanf:"log" yaml:"log"`
	Observability ObservabilityConfig `koanf:"observability" yaml:"observability"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" yaml:"url"`
	MaxConns        int32         `koanf:"max_conns" yaml:"max_conns"`
	ConnectAttempts uint64        `koanf:"connect_attempts" yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff" yaml:"connect_backoff"`
}

// SessionConfig configures the session token issuer.
type SessionConfig struct {
	Secret string `koanf:"secret" yaml:"secret"`
	Issuer string `koanf:"issuer" yaml:"issuer"`
}

// MailConfig selects and tunes the outbound mail path.
type MailConfig struct {
	Transport string      `koanf:"transport" yaml:"transport"`
	From      string      `koanf:"from" yaml:"from"`
	BaseURL   string      `koanf:"base_url" yaml:"base_url"`
	Product   string      `koanf:"product" yaml:"product"`
	Attempts  uint64      `koanf:"attempts" yaml:"attempts"`
	SMTP      SMTPConfig  `koanf:"smtp" yaml:"smtp"`
	Queue     QueueConfig `koanf:"queue" yaml:"queue"`
}

// SMTPConfig addresses the relay.
type SMTPConfig struct {
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
}

// QueueConfig addresses the asynq queue used by the queue transport.
type QueueConfig struct {
	RedisURL    string        `koanf:"redis_url" yaml:"redis_url"`
	Name        string        `koanf:"name" yaml:"name"`
	MaxRetry    int           `koanf:"max_retry" yaml:"max_retry"`
	Timeout     time.Duration `koanf:"timeout" yaml:"timeout"`
	Concurrency int           `koanf:"concurrency" yaml:"concurrency"`
	// Deliver selects the worker's outbound sender: smtp or log.
	Deliver string `koanf:"deliver" yaml:"deliver"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// ObservabilityConfig configures the metrics and health server.
type ObservabilityConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `koanf:"addr" yaml:"addr"`
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return oops.Code("CONFIG_SESSION_SECRET_MISSING").
			Errorf("session secret is required (set %s)", EnvSessionSecret)
	}
	switch c.Log.Format {
	case FormatJSON, FormatText:
	default:
		return oops.Code("CONFIG_LOG_FORMAT_INVALID").
			With("format", c.Log.Format).
			Errorf("log format must be %q or %q", FormatJSON, FormatText)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Mail.Transport {
	case TransportLog:
	case TransportSMTP:
		if c.Mail.SMTP.Host == "" {
			return oops.Code("CONFIG_SMTP_HOST_MISSING").Errorf("smtp transport requires mail.smtp.host")
		}
	case TransportQueue:
		if c.Mail.Queue.RedisURL == "" {
			return oops.Code("CONFIG_REDIS_URL_MISSING").
				Errorf("queue transport requires a redis url (set %s)", EnvRedisURL)
		}
	default:
		return oops.Code("CONFIG_MAIL_TRANSPORT_INVALID").
			With("transport", c.Mail.Transport).
			Errorf("mail transport must be one of %s, %s, %s", TransportLog, TransportSMTP, TransportQueue)
	}
	switch c.Mail.Queue.Deliver {
	case TransportLog, TransportSMTP:
	default:
		return oops.Code("CONFIG_MAIL_TRANSPORT_INVALID").
			With("deliver", c.Mail.Queue.Deliver).
			Errorf("queue deliver transport must be %s or %s", TransportLog, TransportSMTP)
	}
	return nil
}

// RequireDatabase reports whether a database url is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_DATABASE_URL_MISSING").
			Errorf("database url is required (set %s)", EnvDatabaseURL)
	}
	return nil
}

// ValidateWorker checks the settings the queue worker needs beyond Validate.
func (c *Config) ValidateWorker() error {
	if c.Mail.Queue.RedisURL == "" {
		return oops.Code("CONFIG_REDIS_URL_MISSING").
			Errorf("worker requires a redis url (set %s)", EnvRedisURL)
	}
	if c.Mail.Queue.Deliver == TransportSMTP && c.Mail.SMTP.Host == "" {
		return oops.Code("CONFIG_SMTP_HOST_MISSING").Errorf("smtp delivery requires mail.smtp.host")
	}
	return nil
}
