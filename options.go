// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fskv

import (
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bpowers/fskv/digest"
	"github.com/bpowers/fskv/internal/layout"
)

// DefaultPrefixLen is the number of digest characters naming a shard
// directory.
const DefaultPrefixLen = layout.DefaultPrefixLen

// Option configures a Store at Open time.  None of these can change
// over the lifetime of a store directory without orphaning entries,
// except WithLogger, WithSync and WithMetrics.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	prefixLen  int
	digest     digest.Func
	sync       bool
	registerer prometheus.Registerer
	fileMode   os.FileMode
}

func defaultOptions() options {
	return options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		prefixLen: DefaultPrefixLen,
		digest:    digest.SHA256,
		fileMode:  0o644,
	}
}

// WithLogger sets a logger for per-operation debug records and cleanup
// warnings.  If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithPrefixLen sets how many leading digest characters name a shard
// directory.
func WithPrefixLen(n int) Option {
	return func(opts *options) {
		opts.prefixLen = n
	}
}

// WithDigest sets the function used to hash encoded keys.  f must return
// hex strings of one fixed length; operations on a key whose digest is
// not such a string fail with ErrInvalidOption.
func WithDigest(f digest.Func) Option {
	return func(opts *options) {
		opts.digest = f
	}
}

// WithSync makes every mutation fsync the files and directories it
// touched before returning.
func WithSync(sync bool) Option {
	return func(opts *options) {
		opts.sync = sync
	}
}

// WithMetrics registers operation counters and an entry gauge, labelled
// with the store root, on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(opts *options) {
		opts.registerer = reg
	}
}

// WithFileMode sets the permissions of newly created key and value files.
func WithFileMode(mode os.FileMode) Option {
	return func(opts *options) {
		opts.fileMode = mode
	}
}
