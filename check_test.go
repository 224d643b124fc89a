// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fskv

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckClean(t *testing.T) {
	s := openTestStore(t)
	report, err := s.Check()
	require.NoError(t, err)
	require.True(t, report.OK())

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Insert(fmt.Sprintf("k%d", i), "v"))
	}
	report, err = s.Check()
	require.NoError(t, err)
	require.True(t, report.OK(), "%v", report.Problems)
	require.Equal(t, uint64(10), report.Entries)
	require.Equal(t, uint64(10), report.Size)
}

func TestCheckSymlinkedKeyIsForeign(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Insert("k", "v"))
	entry := entryOf(t, s, "k")
	link := filepath.Join(entry.Dir, "0123456789.key")
	require.NoError(t, os.Symlink(entry.KeyPath, link))

	reopened := openAt(t, s.Root())
	require.Equal(t, uint64(1), reopened.Size())

	report, err := reopened.Check()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.Entries)
	assert.Equal(t, []Problem{{ForeignFile, link}}, report.Problems)

	keys, err := reopened.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestCheckFindsProblems(t *testing.T) {
	s := openTestStore(t)
	for _, k := range []string{"dangling-key", "dangling-value", "fine"} {
		require.NoError(t, s.Insert(k, "v"))
	}
	danglingKey := entryOf(t, s, "dangling-key")
	danglingValue := entryOf(t, s, "dangling-value")
	require.NoError(t, os.Remove(danglingKey.ValuePath))
	require.NoError(t, os.Remove(danglingValue.KeyPath))

	root := s.Root()
	foreign := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(foreign, nil, 0o644))
	empty := filepath.Join(root, "000000000")
	require.NoError(t, os.Mkdir(empty, 0o755))

	// a well-formed entry filed under the wrong shard
	fine := entryOf(t, s, "fine")
	wrongDir := filepath.Join(root, "fffffffff")
	require.NoError(t, os.Mkdir(wrongDir, 0o755))
	misplacedKey := filepath.Join(wrongDir, filepath.Base(fine.KeyPath))
	misplacedValue := filepath.Join(wrongDir, filepath.Base(fine.ValuePath))
	require.NoError(t, os.Rename(fine.KeyPath, misplacedKey))
	require.NoError(t, os.Rename(fine.ValuePath, misplacedValue))
	require.NoError(t, os.Remove(fine.Dir))

	report, err := s.Check()
	require.NoError(t, err)
	require.False(t, report.OK())
	// dangling-key and the misplaced "fine" still have key files
	assert.Equal(t, uint64(2), report.Entries)
	assert.Equal(t, uint64(3), report.Size)

	expected := []Problem{
		{EmptyShard, empty},
		{MissingValue, danglingKey.KeyPath},
		{MissingKey, danglingValue.ValuePath},
		{Misplaced, misplacedKey},
		{Misplaced, misplacedValue},
		{ForeignFile, foreign},
		{SizeMismatch, root},
	}
	assert.ElementsMatch(t, expected, report.Problems)

	// Check never repairs anything
	require.FileExists(t, danglingKey.KeyPath)
	require.FileExists(t, danglingValue.ValuePath)
	require.DirExists(t, empty)
}

func TestProblemString(t *testing.T) {
	p := Problem{Kind: MissingValue, Path: "/x/y.key"}
	assert.Equal(t, "missing value: /x/y.key", p.String())
	assert.Equal(t, "ProblemKind(99)", ProblemKind(99).String())
}
