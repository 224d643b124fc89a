// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fskv

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bpowers/fskv/codec"
	"github.com/bpowers/fskv/digest"
	"github.com/bpowers/fskv/internal/durable"
	"github.com/bpowers/fskv/internal/layout"
)

// Store maps keys of type K to values of type V, one pair of files per
// mapping.  A Store is not safe for concurrent use, and no two Stores
// (in this or another process) may use the same root at once.
type Store[K, V any] struct {
	layout   layout.Layout
	keys     codec.Codec[K]
	values   codec.Codec[V]
	digest   digest.Func
	size     uint64
	sync     bool
	fileMode os.FileMode
	logger   *slog.Logger
	metrics  *metrics
}

// Open returns a Store rooted at path, creating the directory (and its
// parents) if needed.  Entries already under path are counted so Size
// reflects them.
func Open[K, V any](path string, keys codec.Codec[K], values codec.Codec[V], opts ...Option) (*Store[K, V], error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if keys == nil || values == nil {
		return nil, newError(opOpen, path, ErrInvalidOption, errors.New("nil codec"))
	}
	if options.digest == nil {
		return nil, newError(opOpen, path, ErrInvalidOption, errors.New("nil digest"))
	}

	root, err := filepath.Abs(path)
	if err != nil {
		return nil, newError(opOpen, path, ErrIO, fmt.Errorf("filepath.Abs: %w", err))
	}
	l, err := layout.New(root, options.prefixLen, digest.Len(options.digest))
	if err != nil {
		return nil, newError(opOpen, root, ErrInvalidOption, err)
	}
	if _, err := durable.MkdirAll(root, options.sync); err != nil {
		return nil, newError(opOpen, root, ErrIO, err)
	}
	size, err := layout.CountKeys(root)
	if err != nil {
		return nil, newError(opOpen, root, ErrIO, fmt.Errorf("layout.CountKeys: %w", err))
	}
	m, err := newMetrics(options.registerer, root)
	if err != nil {
		return nil, newError(opOpen, root, ErrInvalidOption, err)
	}
	m.setEntries(size)

	options.logger.Debug("opened store", "root", root, "entries", size, "prefix_len", options.prefixLen)

	return &Store[K, V]{
		layout:   l,
		keys:     keys,
		values:   values,
		digest:   options.digest,
		size:     size,
		sync:     options.sync,
		fileMode: options.fileMode,
		logger:   options.logger,
		metrics:  m,
	}, nil
}

// OpenJSON opens a Store that encodes both keys and values as JSON.
func OpenJSON[K, V any](path string, opts ...Option) (*Store[K, V], error) {
	return Open[K, V](path, codec.JSON[K](), codec.JSON[V](), opts...)
}

// Root returns the absolute path of the store directory.
func (s *Store[K, V]) Root() string {
	return s.layout.Root()
}

// PrefixLen returns the length of shard directory names.
func (s *Store[K, V]) PrefixLen() int {
	return s.layout.PrefixLen()
}

// Size returns the number of mappings in the store.  It never touches
// the file system.
func (s *Store[K, V]) Size() uint64 {
	return s.size
}

func (s *Store[K, V]) resolve(op string, key K) (layout.Entry, []byte, error) {
	encoded, err := s.keys.Encode(key)
	if err != nil {
		return layout.Entry{}, nil, newError(op, "", ErrEncoding, err)
	}
	entry, err := s.layout.Resolve(s.digest(encoded))
	if err != nil {
		return layout.Entry{}, nil, newError(op, "", ErrInvalidOption, fmt.Errorf("digest: %w", err))
	}
	return entry, encoded, nil
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	} else if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Insert adds a new mapping.  If the key is already present Insert fails
// with ErrAlreadyExists and leaves the existing mapping untouched.
func (s *Store[K, V]) Insert(key K, value V) (err error) {
	defer func() { s.metrics.observe(opInsert, err) }()

	entry, encodedKey, err := s.resolve(opInsert, key)
	if err != nil {
		return err
	}
	encodedValue, err := s.values.Encode(value)
	if err != nil {
		return newError(opInsert, "", ErrEncoding, err)
	}

	if ok, err := exists(entry.KeyPath); err != nil {
		return newError(opInsert, entry.KeyPath, ErrIO, err)
	} else if ok {
		return newError(opInsert, entry.KeyPath, ErrAlreadyExists, nil)
	}

	if err := s.create(opInsert, entry, encodedKey, encodedValue); err != nil {
		return err
	}
	s.size++
	s.metrics.setEntries(s.size)
	s.logger.Debug("insert", "digest", entry.Digest, "shard", entry.Dir)
	return nil
}

// create writes a brand new entry.  If the value can't be written the
// key file is removed again, along with the shard directory if this
// entry was its only occupant.
func (s *Store[K, V]) create(op string, entry layout.Entry, encodedKey, encodedValue []byte) error {
	if _, err := durable.MkdirAll(entry.Dir, s.sync); err != nil {
		return newError(op, entry.Dir, ErrIO, err)
	}

	if err := durable.CreateExclusive(entry.KeyPath, encodedKey, s.fileMode, s.sync); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return newError(op, entry.KeyPath, ErrAlreadyExists, nil)
		}
		s.dropShardIfEmpty(entry.Dir)
		return newError(op, entry.KeyPath, ErrIO, err)
	}

	if err := durable.WriteFile(entry.ValuePath, encodedValue, s.fileMode, s.sync); err != nil {
		rollbackErr := os.Remove(entry.KeyPath)
		if rollbackErr != nil {
			s.logger.Warn("leaving key file without value", "path", entry.KeyPath, "err", rollbackErr)
		} else {
			s.dropShardIfEmpty(entry.Dir)
		}
		return newError(op, entry.ValuePath, ErrIO, errors.Join(err, rollbackErr))
	}
	return nil
}

func (s *Store[K, V]) dropShardIfEmpty(dir string) {
	if _, err := durable.RemoveIfEmpty(dir, s.sync); err != nil {
		s.logger.Warn("couldn't remove shard directory", "dir", dir, "err", err)
	}
}

// Upsert stores value under key whether or not it is already present,
// rewriting both the key and value files.  replaced reports whether a
// mapping existed before.
func (s *Store[K, V]) Upsert(key K, value V) (replaced bool, err error) {
	defer func() { s.metrics.observe(opUpsert, err) }()

	entry, encodedKey, err := s.resolve(opUpsert, key)
	if err != nil {
		return false, err
	}
	encodedValue, err := s.values.Encode(value)
	if err != nil {
		return false, newError(opUpsert, "", ErrEncoding, err)
	}

	ok, err := exists(entry.KeyPath)
	if err != nil {
		return false, newError(opUpsert, entry.KeyPath, ErrIO, err)
	}
	if !ok {
		if err := s.create(opUpsert, entry, encodedKey, encodedValue); err != nil {
			return false, err
		}
		s.size++
		s.metrics.setEntries(s.size)
		s.logger.Debug("upsert", "digest", entry.Digest, "shard", entry.Dir, "replaced", false)
		return false, nil
	}

	if err := durable.WriteFile(entry.KeyPath, encodedKey, s.fileMode, s.sync); err != nil {
		return false, newError(opUpsert, entry.KeyPath, ErrIO, err)
	}
	if err := durable.WriteFile(entry.ValuePath, encodedValue, s.fileMode, s.sync); err != nil {
		return false, newError(opUpsert, entry.ValuePath, ErrIO, err)
	}
	s.logger.Debug("upsert", "digest", entry.Digest, "shard", entry.Dir, "replaced", true)
	return true, nil
}

// Lookup returns the value stored under key, or ErrNotFound.
func (s *Store[K, V]) Lookup(key K) (value V, err error) {
	defer func() { s.metrics.observe(opLookup, err) }()

	entry, _, err := s.resolve(opLookup, key)
	if err != nil {
		return value, err
	}
	return s.readValue(opLookup, entry.ValuePath)
}

func (s *Store[K, V]) readValue(op, path string) (V, error) {
	var zero V
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, newError(op, path, ErrNotFound, nil)
	} else if err != nil {
		return zero, newError(op, path, ErrIO, err)
	}
	v, err := s.values.Decode(data)
	if err != nil {
		return zero, newError(op, path, ErrDecoding, err)
	}
	return v, nil
}

// Contains reports whether a mapping for key exists.
func (s *Store[K, V]) Contains(key K) (ok bool, err error) {
	defer func() { s.metrics.observe(opContains, err) }()

	entry, _, err := s.resolve(opContains, key)
	if err != nil {
		return false, err
	}
	ok, err = exists(entry.KeyPath)
	if err != nil {
		return false, newError(opContains, entry.KeyPath, ErrIO, err)
	}
	return ok, nil
}

// Remove deletes the mapping for key and returns the value it held.  A
// shard directory left without files is removed too.
//
// If the entry's files were deleted but the now-empty shard directory
// could not be, the removed value is returned along with the error.
func (s *Store[K, V]) Remove(key K) (value V, err error) {
	defer func() { s.metrics.observe(opRemove, err) }()

	entry, _, err := s.resolve(opRemove, key)
	if err != nil {
		return value, err
	}
	value, err = s.readValue(opRemove, entry.ValuePath)
	if err != nil {
		return value, err
	}

	var zero V
	if err := os.Remove(entry.KeyPath); err != nil {
		return zero, newError(opRemove, entry.KeyPath, ErrIO, err)
	}
	// Size tracks key files, so it drops as soon as the key file is gone.
	if s.size > 0 {
		s.size--
	}
	s.metrics.setEntries(s.size)
	if err := os.Remove(entry.ValuePath); err != nil {
		return zero, newError(opRemove, entry.ValuePath, ErrIO, err)
	}

	removed, err := durable.RemoveIfEmpty(entry.Dir, s.sync)
	if err != nil {
		return value, newError(opRemove, entry.Dir, ErrIO, err)
	}
	if !removed && s.sync {
		if err := durable.SyncDir(entry.Dir); err != nil {
			return value, newError(opRemove, entry.Dir, ErrIO, err)
		}
	}
	s.logger.Debug("remove", "digest", entry.Digest, "shard", entry.Dir, "shard_removed", removed)
	return value, nil
}
