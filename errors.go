// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package fskv

import (
	"errors"
	"strings"
)

var (
	// ErrIO covers failures creating, reading, writing or deleting
	// files and directories under the store root.
	ErrIO = errors.New("i/o failure")
	// ErrAlreadyExists is returned by Insert when an entry for the key's
	// digest is already on disk.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned by Lookup and Remove when no entry exists.
	ErrNotFound = errors.New("not found")
	// ErrEncoding is returned when a key or value cannot be encoded.
	ErrEncoding = errors.New("encoding failure")
	// ErrDecoding is returned when a stored key or value cannot be decoded.
	ErrDecoding = errors.New("decoding failure")
	// ErrInvalidOption is returned by Open for unusable options.
	ErrInvalidOption = errors.New("invalid option")

	// ErrStop may be returned from a Range callback to end iteration
	// early; Range then returns nil.
	ErrStop = errors.New("stop iteration")
)

const (
	opOpen     = "open"
	opInsert   = "insert"
	opUpsert   = "upsert"
	opLookup   = "lookup"
	opRemove   = "remove"
	opContains = "contains"
	opRange    = "range"
	opCheck    = "check"
)

// Error records the failed operation, the file it concerned (if any),
// and the kind of failure.  Both Kind and Err match errors.Is.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func newError(op, path string, kind, err error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("fskv: ")
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteByte(' ')
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindOf maps err to one of the sentinel kinds, for metrics labels.
func kindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrEncoding):
		return "encoding_failure"
	case errors.Is(err, ErrDecoding):
		return "decoding_failure"
	case errors.Is(err, ErrInvalidOption):
		return "invalid_option"
	default:
		return "io_failure"
	}
}
