// Package config assembles run settings from defaults, a YAML file, the
// environment and command-line flags, in increasing order of precedence.
//
// Every source is funnelled through Apply, keyed by the flag name, so a
// setting has the same name everywhere: `user-start-id` in YAML,
// DATAGEN_USER_START_ID in the environment, -user-start-id on the command line.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"pkg.jsn.cam/datagen/internal/retain"
	"pkg.jsn.cam/datagen/pkg/datagen/idalloc"
	"pkg.jsn.cam/datagen/pkg/datagen/pipeline"
	"pkg.jsn.cam/datagen/pkg/datagen/sink"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "DATAGEN_"

// Settings is everything the CLI needs for one run.
type Settings struct {
	Pipeline  pipeline.Config
	Progress  string
	TraceFile string
}

// Default returns the built-in defaults.
func Default() Settings {
	return Settings{
		Pipeline: pipeline.DefaultConfig(),
		Progress: "bar",
	}
}

type setter func(s *Settings, v string) error

var setters = map[string]setter{
	"users":        intSetter(func(s *Settings) *int64 { return &s.Pipeline.Users }),
	"transactions": intSetter(func(s *Settings) *int64 { return &s.Pipeline.Transactions }),
	"providers":    intSetter(func(s *Settings) *int64 { return &s.Pipeline.Providers }),
	"skewed": func(s *Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		s.Pipeline.Skewed = b
		return nil
	},
	"output": func(s *Settings, v string) error {
		s.Pipeline.OutputDir = v
		return nil
	},
	"format": func(s *Settings, v string) error {
		f, err := sink.ParseFormat(v)
		s.Pipeline.Format = f
		return err
	},
	"compress": func(s *Settings, v string) error {
		c, err := sink.ParseCompression(v)
		s.Pipeline.Compression = c
		return err
	},
	"id-mode": func(s *Settings, v string) error {
		m, err := idalloc.ParseMode(v)
		s.Pipeline.IDs.Mode = m
		return err
	},
	"start-id":             intSetter(func(s *Settings) *int64 { return &s.Pipeline.IDs.Start }),
	"user-start-id":        intSetter(func(s *Settings) *int64 { return &s.Pipeline.IDs.UserStart }),
	"address-start-id":     intSetter(func(s *Settings) *int64 { return &s.Pipeline.IDs.AddressStart }),
	"provider-start-id":    intSetter(func(s *Settings) *int64 { return &s.Pipeline.IDs.ProviderStart }),
	"transaction-start-id": intSetter(func(s *Settings) *int64 { return &s.Pipeline.IDs.TransactionStart }),
	"snowflake-node":       intSetter(func(s *Settings) *int64 { return &s.Pipeline.IDs.Node }),
	"seed": func(s *Settings, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return err
		}
		s.Pipeline.Seed = n
		return nil
	},
	"retain": func(s *Settings, v string) error {
		m, err := retain.ParseMode(v)
		s.Pipeline.Retention = m
		return err
	},
	"scratch-dir": func(s *Settings, v string) error {
		s.Pipeline.ScratchDir = v
		return nil
	},
	"progress": func(s *Settings, v string) error {
		switch v {
		case "bar", "log", "none":
			s.Progress = v
			return nil
		default:
			return fmt.Errorf("want bar, log or none")
		}
	},
	"trace-file": func(s *Settings, v string) error {
		s.TraceFile = v
		return nil
	},
}

func intSetter(field func(*Settings) *int64) setter {
	return func(s *Settings, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*field(s) = n
		return nil
	}
}

// Keys lists every settable key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply sets one key from its string form.
func (s *Settings) Apply(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := set(s, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return nil
}

// LoadFile applies a flat YAML mapping of key: value.
func (s *Settings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := raw[k]
		switch v.(type) {
		case map[string]any, []any:
			return fmt.Errorf("config %s: %s must be a scalar", path, k)
		case nil:
			continue
		}
		if err := s.Apply(k, fmt.Sprint(v)); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}
	return nil
}

// EnvName is the environment variable for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// LoadEnv applies every DATAGEN_* variable found by lookup.
func (s *Settings) LoadEnv(lookup func(string) (string, bool)) error {
	for _, k := range Keys() {
		if v, ok := lookup(EnvName(k)); ok {
			if err := s.Apply(k, v); err != nil {
				return fmt.Errorf("%s: %w", EnvName(k), err)
			}
		}
	}
	return nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
