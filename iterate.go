// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fskv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/bpowers/fskv/internal/layout"
)

// Range calls fn for every mapping, in lexical order of the entries'
// digests (not of the keys).  If fn returns ErrStop iteration ends and
// Range returns nil; any other error from fn is returned as-is.
//
// An entry whose value file is missing stops the walk with ErrNotFound;
// Check describes such entries without failing.
func (s *Store[K, V]) Range(fn func(key K, value V) error) error {
	var fnErr error
	err := layout.Walk(s.Root(), func(f layout.File) error {
		if f.IsDir || f.Kind != layout.KindKey {
			return nil
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return newError(opRange, f.Path, ErrIO, err)
		}
		key, err := s.keys.Decode(data)
		if err != nil {
			return newError(opRange, f.Path, ErrDecoding, err)
		}
		valuePath := strings.TrimSuffix(f.Path, layout.KeyExt) + layout.ValueExt
		value, err := s.readValue(opRange, valuePath)
		if err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			fnErr = err
			return filepath.SkipAll
		}
		return nil
	})
	s.metrics.observe(opRange, err)
	if err != nil {
		var storeErr *Error
		if errors.As(err, &storeErr) {
			return err
		}
		return newError(opRange, s.Root(), ErrIO, err)
	}
	if fnErr != nil && !errors.Is(fnErr, ErrStop) {
		return fnErr
	}
	return nil
}

// Keys returns every key in the store.
func (s *Store[K, V]) Keys() ([]K, error) {
	keys := make([]K, 0, s.size)
	err := s.Range(func(key K, _ V) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
