// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package digest turns encoded keys into fixed-length, file-name-safe
// hexadecimal identifiers.
//
// A Func must be pure: the same input bytes always produce the same
// string, and it never looks at the file system.  The first characters
// of a digest name the shard directory an entry lives in, so every Func
// produces lowercase hex of a constant length.
package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgryski/go-farm"
)

// Func hashes an encoded key into a lowercase hex string.
type Func func(encodedKey []byte) string

var (
	ErrUnknown = errors.New("unknown digest")
)

// SHA256 is the default digest: 64 hex characters.
func SHA256(encodedKey []byte) string {
	sum := sha256.Sum256(encodedKey)
	return hex.EncodeToString(sum[:])
}

// SHA1 produces 40 hex characters (160 bits), the smallest output
// we consider safe against accidental collisions.
func SHA1(encodedKey []byte) string {
	sum := sha1.Sum(encodedKey)
	return hex.EncodeToString(sum[:])
}

// Farm128 produces 32 hex characters from FarmHash's 128-bit
// fingerprint.  It is NOT a cryptographic hash: it is fast, stable
// across platforms and releases, but adversarial inputs can collide.
func Farm128(encodedKey []byte) string {
	lo, hi := farm.Fingerprint128(encodedKey)
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], hi)
	binary.BigEndian.PutUint64(buf[8:], lo)
	return hex.EncodeToString(buf[:])
}

var byName = map[string]Func{
	"sha256":  SHA256,
	"sha1":    SHA1,
	"farm128": Farm128,
}

// Names lists the digests accepted by ByName.
func Names() []string {
	return []string{"sha256", "sha1", "farm128"}
}

// ByName looks up one of the built-in digests.
func ByName(name string) (Func, error) {
	f, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %v)", ErrUnknown, name, Names())
	}
	return f, nil
}

// Len reports the length of the strings f produces.
func Len(f Func) int {
	return len(f(nil))
}
