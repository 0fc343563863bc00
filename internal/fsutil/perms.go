// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package fsutil provides filesystem helpers for build outputs.
// Packages and manifests are published artefacts, so they are written
// world-readable (0644 files, 0755 dirs) regardless of umask.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DirPerm is the permission mode for output directories.
const DirPerm os.FileMode = 0755

// FilePerm is the permission mode for output files.
const FilePerm os.FileMode = 0644

// MkdirAll creates a directory and all parents with output permissions.
func MkdirAll(path string) error {
	if err := os.MkdirAll(path, DirPerm); err != nil {
		return err
	}
	return os.Chmod(path, DirPerm)
}

// IsWritable reports whether path could be written or created.
// For a path that does not exist yet, the nearest existing ancestor
// must be a writable directory.
func IsWritable(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	for p := abs; ; p = filepath.Dir(p) {
		info, err := os.Stat(p)
		if err == nil {
			if p == abs && !info.IsDir() {
				return probeFile(p)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", p)
			}
			return probeDir(p)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if parent := filepath.Dir(p); parent == p {
			return fmt.Errorf("no existing ancestor of %s", abs)
		}
	}
}

func probeFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

func probeDir(dir string) error {
	f, err := os.CreateTemp(dir, ".extsign-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Chmod(FilePerm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
