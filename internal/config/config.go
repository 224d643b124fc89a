// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package config loads fskv command-line settings with koanf.
//
// Sources are applied in order, later ones overriding earlier ones:
// built-in defaults, a YAML file, FSKV_* environment variables, and
// finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/bpowers/fskv"
	"github.com/bpowers/fskv/codec"
	"github.com/bpowers/fskv/digest"
)

const EnvPrefix = "FSKV_"

type Config struct {
	Root      string `koanf:"root"`
	PrefixLen int    `koanf:"prefix_len"`
	Digest    string `koanf:"digest"`
	Format    string `koanf:"format"`
	Sync      bool   `koanf:"sync"`
	Log       Log    `koanf:"log"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func Default() Config {
	return Config{
		Root:      ".",
		PrefixLen: fskv.DefaultPrefixLen,
		Digest:    "sha256",
		Format:    "json",
		Log: Log{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads path (if non-empty), the environment, and overrides, in
// that order of increasing priority.  overrides is a nested map using
// the koanf tag names, e.g. {"log": {"level": "debug"}}.
func Load(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(toMap(Default())), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(mapProvider(overrides), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps FSKV_PREFIX_LEN to prefix_len and FSKV_LOG_LEVEL to
// log.level.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(s, "log_"); ok {
		return "log." + rest
	}
	return s
}

func toMap(c Config) map[string]any {
	return map[string]any{
		"root":       c.Root,
		"prefix_len": c.PrefixLen,
		"digest":     c.Digest,
		"format":     c.Format,
		"sync":       c.Sync,
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Root == "" {
		errs = append(errs, errors.New("root must not be empty"))
	}
	if c.PrefixLen < 1 {
		errs = append(errs, fmt.Errorf("prefix_len must be positive (got %d)", c.PrefixLen))
	}
	if _, err := digest.ByName(c.Digest); err != nil {
		errs = append(errs, err)
	}
	if _, err := codec.ByName(c.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format))
	}
	return errors.Join(errs...)
}

// StoreOptions translates the configuration into Open options.
func (c Config) StoreOptions(logger *slog.Logger) ([]fskv.Option, error) {
	f, err := digest.ByName(c.Digest)
	if err != nil {
		return nil, err
	}
	return []fskv.Option{
		fskv.WithLogger(logger),
		fskv.WithPrefixLen(c.PrefixLen),
		fskv.WithDigest(f),
		fskv.WithSync(c.Sync),
	}, nil
}

// NewLogger builds a slog.Logger writing to w.
func (l Log) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(l.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// mapProvider feeds a nested map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
