// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package layout maps key digests to locations inside a store's root
// directory.
//
// A store on disk looks like:
//
//	<root>/
//	  <prefix>/
//	    <digest>.key
//	    <digest>.value
//
// where prefix is the first N characters of digest.  There is no header,
// index or metadata file: the directory tree is the index.
package layout

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrBadDigest is returned by Resolve for a digest of the wrong length or
// one containing anything but hex digits.
var ErrBadDigest = errors.New("malformed digest")

const (
	KeyExt   = ".key"
	ValueExt = ".value"

	// DefaultPrefixLen bounds a shard to 16^9 possible digests.
	DefaultPrefixLen = 9
)

// Layout is pure path arithmetic: it never touches the file system.
type Layout struct {
	root      string
	prefixLen int
	digestLen int
}

// Entry names the files backing a single key.
type Entry struct {
	Digest    string
	Dir       string
	KeyPath   string
	ValuePath string
}

func New(root string, prefixLen, digestLen int) (Layout, error) {
	if digestLen <= 0 {
		return Layout{}, fmt.Errorf("digest length must be positive (got %d)", digestLen)
	}
	if prefixLen < 1 || prefixLen > digestLen {
		return Layout{}, fmt.Errorf("prefix length %d out of range [1, %d]", prefixLen, digestLen)
	}
	return Layout{
		root:      root,
		prefixLen: prefixLen,
		digestLen: digestLen,
	}, nil
}

func (l Layout) Root() string {
	return l.root
}

func (l Layout) PrefixLen() int {
	return l.prefixLen
}

// DigestLen is the length of the digests this Layout resolves.
func (l Layout) DigestLen() int {
	return l.digestLen
}

// ShardName returns the shard directory name for digest.
func (l Layout) ShardName(digest string) string {
	return digest[:l.prefixLen]
}

// Resolve returns the paths for digest, which must be a hex string exactly
// as long as the digests this Layout was created for.
func (l Layout) Resolve(digest string) (Entry, error) {
	if err := l.CheckDigest(digest); err != nil {
		return Entry{}, err
	}
	dir := filepath.Join(l.root, l.ShardName(digest))
	return Entry{
		Digest:    digest,
		Dir:       dir,
		KeyPath:   filepath.Join(dir, digest+KeyExt),
		ValuePath: filepath.Join(dir, digest+ValueExt),
	}, nil
}

// CheckDigest reports whether digest could name an entry in this Layout.
func (l Layout) CheckDigest(digest string) error {
	if len(digest) != l.digestLen {
		return fmt.Errorf("%w: %q has length %d, want %d", ErrBadDigest, digest, len(digest), l.digestLen)
	}
	for i := 0; i < len(digest); i++ {
		if !isHex(digest[i]) {
			return fmt.Errorf("%w: %q has non-hex byte at %d", ErrBadDigest, digest, i)
		}
	}
	return nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
