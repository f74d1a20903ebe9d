// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package config

import (
	"net/url"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const redacted = "[REDACTED]"

// Redacted returns a copy of c with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Session.Secret != "" {
		out.Session.Secret = redacted
	}
	if out.Mail.SMTP.Password != "" {
		out.Mail.SMTP.Password = redacted
	}
	out.Database.URL = redactURL(out.Database.URL)
	out.Mail.Queue.RedisURL = redactURL(out.Mail.Queue.RedisURL)
	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	r := c.Redacted()
	data, err := yaml.Marshal(&r)
	if err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return data, nil
}

// redactURL masks the password in a connection URL. Unparseable values are
// masked entirely since they may embed credentials.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return u.Redacted()
}
