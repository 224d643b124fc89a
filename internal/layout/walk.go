// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileKind classifies a file found under a store root.
type FileKind int

const (
	KindForeign FileKind = iota
	KindKey
	KindValue
)

func (k FileKind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindValue:
		return "value"
	default:
		return "foreign"
	}
}

// File is a single regular file or directory visited by Walk.
type File struct {
	Path  string
	Kind  FileKind
	IsDir bool
	// Shard is the name of the directory directly below root containing
	// this file, or "" for files directly in root.
	Shard string
	// Digest is the file name without its extension for key and value
	// files.
	Digest string
}

// Classify reports what kind of store file name is.
func Classify(name string) (FileKind, string) {
	switch {
	case strings.HasSuffix(name, KeyExt):
		return KindKey, strings.TrimSuffix(name, KeyExt)
	case strings.HasSuffix(name, ValueExt):
		return KindValue, strings.TrimSuffix(name, ValueExt)
	default:
		return KindForeign, ""
	}
}

// Walk calls fn for every file and directory below root (but not root
// itself) in lexical order.
func Walk(root string, fn func(File) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("filepath.Rel: %w", err)
		}
		f := File{
			Path:  path,
			IsDir: d.IsDir(),
		}
		if parts := strings.Split(rel, string(filepath.Separator)); len(parts) > 1 {
			f.Shard = parts[0]
		}
		// Only regular files can be entry halves; symlinks and other
		// special files are foreign whatever their name.
		if !f.IsDir && d.Type().IsRegular() {
			f.Kind, f.Digest = Classify(d.Name())
		}
		return fn(f)
	})
}

// CountKeys recursively counts the key files below root.  A missing root
// holds zero keys.
func CountKeys(root string) (uint64, error) {
	if _, err := os.Lstat(root); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	var count uint64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && filepath.Ext(d.Name()) == KeyExt {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
