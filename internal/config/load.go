// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment variables carrying secrets. They override file and flag values.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvTokenSecret  = "PRESSROOM_TOKEN_SECRET"
	EnvSMTPPassword = "PRESSROOM_SMTP_PASSWORD"
)

// flagKeys maps each override flag to its configuration key.
var flagKeys = map[string]string{
	"log-format":       "log.format",
	"log-level":        "log.level",
	"metrics-addr":     "metrics.addr",
	"sweeper-interval": "sweeper.interval",
}

// RegisterFlags adds the configuration override flags to fs. Flag defaults
// mirror Default so an untouched flag never masks a file value.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "observability listen address; empty disables it")
	fs.Duration("sweeper-interval", d.Sweeper.Interval, "interval between retention sweeps")
}

// Loader assembles a Config.
type Loader struct {
	// Path is the optional YAML file. A missing file is an error only when
	// Path is set.
	Path string
	// Flags, when set, supplies overrides registered with RegisterFlags.
	Flags *pflag.FlagSet
	// Getenv looks up secrets; nil uses os.Getenv.
	Getenv func(string) string
}

// Load builds the configuration and validates it.
func (l Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if l.Path != "" {
		data, err := os.ReadFile(l.Path)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", l.Path).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_SCHEMA_INVALID").With("path", l.Path).Wrap(err)
		}
		if err := k.Load(file.Provider(l.Path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_PARSE_FAILED").With("path", l.Path).Wrap(err)
		}
	}

	if l.Flags != nil {
		provider := posflag.ProviderWithFlag(l.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(l.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	applySecret(&cfg.Database.URL, getenv(EnvDatabaseURL))
	applySecret(&cfg.Auth.TokenSecret, getenv(EnvTokenSecret))
	applySecret(&cfg.SMTP.Password, getenv(EnvSMTPPassword))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applySecret(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
