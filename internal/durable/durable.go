// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package durable contains the small set of file operations a store
// entry is built from.  When sync is requested, file contents and the
// directory entries naming them are flushed with fsync(2) before
// returning.
package durable

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const DirMode = 0o755

// CreateExclusive creates path and writes data to it, failing with an
// error satisfying errors.Is(err, fs.ErrExist) if path already exists.
// If writing fails after path was created, path is removed again.
func CreateExclusive(path string, data []byte, mode os.FileMode, sync bool) error {
	return writeFile(path, data, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode, sync)
}

// WriteFile creates or truncates path and writes data to it.
func WriteFile(path string, data []byte, mode os.FileMode, sync bool) error {
	return writeFile(path, data, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode, sync)
}

func writeFile(path string, data []byte, flag int, mode os.FileMode, sync bool) error {
	f, err := os.OpenFile(path, flag, mode)
	if err != nil {
		return err
	}
	n, err := f.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err == nil && sync {
		if serr := unix.Fsync(int(f.Fd())); serr != nil {
			err = &os.PathError{Op: "fsync", Path: path, Err: serr}
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil && flag&os.O_EXCL != 0 {
		if rerr := os.Remove(path); rerr != nil {
			err = errors.Join(err, fmt.Errorf("os.Remove: %w", rerr))
		}
	}
	return err
}

// MkdirAll creates dir and any missing parents.  With sync, the parent
// of dir is flushed so the new directory entry survives a crash.
func MkdirAll(dir string, sync bool) (created bool, err error) {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return false, &os.PathError{Op: "mkdir", Path: dir, Err: unix.ENOTDIR}
		}
		return false, nil
	}
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return false, err
	}
	if sync {
		if err := SyncDir(parentOf(dir)); err != nil {
			return true, err
		}
	}
	return true, nil
}

// SyncDir flushes the directory entries of dir.
func SyncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: dir, Err: err}
	}
	defer func() {
		_ = unix.Close(fd)
	}()
	if err := unix.Fsync(fd); err != nil {
		return &os.PathError{Op: "fsync", Path: dir, Err: err}
	}
	return nil
}

// IsEmptyDir reports whether dir contains no entries at all.
func IsEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = f.Close()
	}()
	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// RemoveIfEmpty removes dir if it holds no entries, reporting whether it
// did so.
func RemoveIfEmpty(dir string, sync bool) (bool, error) {
	empty, err := IsEmptyDir(dir)
	if err != nil || !empty {
		return false, err
	}
	if err := os.Remove(dir); err != nil {
		return false, err
	}
	if sync {
		if err := SyncDir(parentOf(dir)); err != nil {
			return true, fmt.Errorf("SyncDir: %w", err)
		}
	}
	return true, nil
}

func parentOf(path string) string {
	return filepath.Dir(filepath.Clean(path))
}
