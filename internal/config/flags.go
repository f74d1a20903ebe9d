// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package config

import (
	"github.com/spf13/pflag"
)

// Flag names registered by RegisterFlags.
const (
	FlagDatabaseURL   = "database-url"
	FlagLogFormat     = "log-format"
	FlagLogLevel      = "log-level"
	FlagMailTransport = "mail-transport"
	FlagMetricsAddr   = "metrics-addr"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	FlagDatabaseURL:   "database.url",
	FlagLogFormat:     "log.format",
	FlagLogLevel:      "log.level",
	FlagMailTransport: "mail.transport",
	FlagMetricsAddr:   "observability.addr",
}

// RegisterFlags adds the overridable settings to fs. Only flags the user
// sets explicitly take effect; the defaults shown are informational.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagDatabaseURL, "", "PostgreSQL connection URL")
	fs.String(FlagLogFormat, FormatJSON, "log format (json or text)")
	fs.String(FlagLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(FlagMailTransport, TransportLog, "mail transport (log, smtp or queue)")
	fs.String(FlagMetricsAddr, "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
}
