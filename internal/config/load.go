// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/latchkey/latchkey/internal/auth"
	"github.com/latchkey/latchkey/internal/mail"
)

// Environment variables that override file and flag values.
const (
	EnvSessionSecret = "LATCHKEY_SESSION_SECRET"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvRedisURL      = "LATCHKEY_REDIS_URL"
	EnvSMTPPassword  = "LATCHKEY_SMTP_PASSWORD"
	EnvLogFormat     = "LATCHKEY_LOG_FORMAT"
)

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	EnvSessionSecret: "session.secret",
	EnvDatabaseURL:   "database.url",
	EnvRedisURL:      "mail.queue.redis_url",
	EnvSMTPPassword:  "mail.smtp.password",
	EnvLogFormat:     "log.format",
}

// DefaultDotEnv is the .env file read when LoadOptions.DotEnv is empty.
const DefaultDotEnv = ".env"

// defaults are applied before any other source.
var defaults = map[string]any{
	"database.max_conns":        int32(10),
	"database.connect_attempts": uint64(5),
	"database.connect_backoff":  250 * time.Millisecond,
	"session.issuer":            auth.DefaultSessionIssuer,
	"mail.transport":            TransportLog,
	"mail.from":                 "no-reply@localhost",
	"mail.base_url":             "http://localhost:8080",
	"mail.product":              "Latchkey",
	"mail.attempts":             uint64(3),
	"mail.smtp.port":            587,
	"mail.queue.name":           mail.DefaultQueue,
	"mail.queue.max_retry":      5,
	"mail.queue.timeout":        time.Minute,
	"mail.queue.concurrency":    4,
	"mail.queue.deliver":        TransportLog,
	"log.format":                FormatJSON,
	"log.level":                 "info",
	"observability.addr":        "127.0.0.1:9100",
}

// LoadOptions names the sources Load reads.
type LoadOptions struct {
	// Path is an optional YAML file. A missing explicit path is an error.
	Path string
	// Flags are consulted for flags registered by RegisterFlags that the
	// user set explicitly.
	Flags *pflag.FlagSet
	// DotEnv is the .env file to read; DefaultDotEnv when empty. A missing
	// file is ignored.
	DotEnv string
	// LookupEnv reads the environment; os.LookupEnv when nil.
	LookupEnv func(string) (string, bool)
}

// Load builds the effective configuration. It does not call Validate.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", opts.Path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	lookup, err := envLookup(opts)
	if err != nil {
		return nil, err
	}
	for env, key := range envKeys {
		if val, ok := lookup(env); ok && val != "" {
			if err := k.Set(key, val); err != nil {
				return nil, oops.Code("CONFIG_ENV_INVALID").With("env", env).Wrap(err)
			}
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// envLookup layers the non-empty process environment over the .env file.
func envLookup(opts LoadOptions) (func(string) (string, bool), error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	path := opts.DotEnv
	if path == "" {
		path = DefaultDotEnv
	}
	dotenv, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lookup, nil
		}
		return nil, oops.Code("CONFIG_DOTENV_INVALID").With("path", path).Wrap(err)
	}

	// A variable exported as empty does not hide the .env value.
	return func(name string) (string, bool) {
		if val, ok := lookup(name); ok && val != "" {
			return val, true
		}
		val, ok := dotenv[name]
		return val, ok
	}, nil
}
