// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package nightly

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/extsign/extsign/internal/errs"
)

// Fingerprint hashes the relative paths and contents of every file under
// dir in lexical order. Dot files and directories are ignored, matching
// what gets packaged.
func Fingerprint(dir string) (string, error) {
	h := sha256.New()

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			// linked directories contribute their name only
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				_, _ = io.WriteString(h, filepath.ToSlash(rel)+"/\x00")
				return nil
			}
		}

		_, _ = io.WriteString(h, filepath.ToSlash(rel))
		_, _ = h.Write([]byte{0})

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		_, _ = h.Write([]byte{0})
		return nil
	})
	if err != nil {
		return "", errs.Wrap(errs.ErrIO, err, "fingerprint %s", dir)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
