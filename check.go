// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fskv

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bpowers/fskv/internal/layout"
)

// ProblemKind classifies an inconsistency found by Check.
type ProblemKind int

const (
	// MissingValue is a .key file without its .value sibling.
	MissingValue ProblemKind = iota + 1
	// MissingKey is a .value file without its .key sibling.
	MissingKey
	// ForeignFile is a file the store never creates.
	ForeignFile
	// EmptyShard is a directory holding nothing at all.
	EmptyShard
	// Misplaced is an entry file that isn't where this store would put
	// its digest: wrong shard, wrong depth, or a digest of the wrong
	// shape for the configured digest function.
	Misplaced
	// SizeMismatch means the number of .key files on disk differs from
	// Size, usually because something else wrote to the root.
	SizeMismatch
)

func (k ProblemKind) String() string {
	switch k {
	case MissingValue:
		return "missing value"
	case MissingKey:
		return "missing key"
	case ForeignFile:
		return "foreign file"
	case EmptyShard:
		return "empty shard"
	case Misplaced:
		return "misplaced"
	case SizeMismatch:
		return "size mismatch"
	default:
		return fmt.Sprintf("ProblemKind(%d)", int(k))
	}
}

type Problem struct {
	Kind ProblemKind
	Path string
}

func (p Problem) String() string {
	return p.Kind.String() + ": " + p.Path
}

// Report is the result of Check.
type Report struct {
	// Entries counts .key files found on disk.
	Entries uint64
	// Size is the store's in-memory counter at the time of the check.
	Size     uint64
	Problems []Problem
}

// OK reports whether Check found nothing wrong.
func (r Report) OK() bool {
	return len(r.Problems) == 0
}

// Check scans the whole store and describes anything that breaks the
// on-disk invariants: half-written or half-removed entries, stray files,
// empty shard directories and misfiled entries.  It only reads; nothing
// is repaired.
func (s *Store[K, V]) Check() (report Report, err error) {
	defer func() { s.metrics.observe(opCheck, err) }()

	type pair struct {
		key, value bool
	}
	root := s.Root()
	pairs := make(map[string]*pair)
	children := make(map[string]int)
	var dirs []string

	report.Size = s.size
	err = layout.Walk(root, func(f layout.File) error {
		children[filepath.Dir(f.Path)]++
		if f.IsDir {
			dirs = append(dirs, f.Path)
			return nil
		}
		if f.Kind == layout.KindForeign {
			report.Problems = append(report.Problems, Problem{ForeignFile, f.Path})
			return nil
		}
		if f.Kind == layout.KindKey {
			report.Entries++
		}
		if !s.wellPlaced(f) {
			report.Problems = append(report.Problems, Problem{Misplaced, f.Path})
		}
		base := filepath.Join(filepath.Dir(f.Path), f.Digest)
		p, ok := pairs[base]
		if !ok {
			p = &pair{}
			pairs[base] = p
		}
		if f.Kind == layout.KindKey {
			p.key = true
		} else {
			p.value = true
		}
		return nil
	})
	if err != nil {
		return Report{}, newError(opCheck, root, ErrIO, err)
	}

	for base, p := range pairs {
		switch {
		case p.key && !p.value:
			report.Problems = append(report.Problems, Problem{MissingValue, base + layout.KeyExt})
		case p.value && !p.key:
			report.Problems = append(report.Problems, Problem{MissingKey, base + layout.ValueExt})
		}
	}
	for _, dir := range dirs {
		if children[dir] == 0 {
			report.Problems = append(report.Problems, Problem{EmptyShard, dir})
		}
	}
	if report.Entries != report.Size {
		report.Problems = append(report.Problems, Problem{SizeMismatch, root})
	}

	sort.Slice(report.Problems, func(i, j int) bool {
		a, b := report.Problems[i], report.Problems[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Kind < b.Kind
	})
	return report, nil
}

func (s *Store[K, V]) wellPlaced(f layout.File) bool {
	entry, err := s.layout.Resolve(f.Digest)
	return err == nil && entry.Dir == filepath.Dir(f.Path)
}
