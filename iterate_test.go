// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fskv

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	s := openTestStore(t)
	expected := make(map[string]string)
	for i := 0; i < 25; i++ {
		k, v := fmt.Sprintf("key_%d", i), fmt.Sprintf("value_%d", i)
		require.NoError(t, s.Insert(k, v))
		expected[k] = v
	}

	actual := make(map[string]string)
	err := s.Range(func(k, v string) error {
		_, dup := actual[k]
		require.False(t, dup, "visited %q twice", k)
		actual[k] = v
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, expected, actual)

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Len(t, keys, len(expected))
	sort.Strings(keys)
	for _, k := range keys {
		require.Contains(t, expected, k)
	}
}

func TestRangeStop(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Insert(fmt.Sprintf("key_%d", i), "v"))
	}

	visits := 0
	err := s.Range(func(string, string) error {
		visits++
		if visits == 3 {
			return ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, visits)

	boom := errors.New("boom")
	visits = 0
	err = s.Range(func(string, string) error {
		visits++
		return boom
	})
	require.Equal(t, boom, err)
	require.Equal(t, 1, visits)
}

func TestRangeEmpty(t *testing.T) {
	s := openTestStore(t)
	err := s.Range(func(string, string) error {
		t.Fatal("unexpected entry")
		return nil
	})
	require.NoError(t, err)

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestRangeDanglingKey(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Insert("k", "v"))
	require.NoError(t, os.Remove(entryOf(t, s, "k").ValuePath))

	err := s.Range(func(string, string) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRangeUndecodableKey(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Insert("k", "v"))
	require.NoError(t, os.WriteFile(entryOf(t, s, "k").KeyPath, []byte("{"), 0o644))

	err := s.Range(func(string, string) error { return nil })
	require.ErrorIs(t, err, ErrDecoding)
}
