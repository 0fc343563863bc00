// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package updatemanifest generates the documents browsers poll for new
// extension versions: Chrome's gupdate XML and Mozilla's signed update.rdf.
package updatemanifest

import (
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/fsutil"
	"github.com/extsign/extsign/internal/util"
)

// Builder produces one update manifest.
type Builder interface {
	// Generate builds the document from the builder's fields.
	Generate() error

	// Save writes the document to path and returns "". With an empty path
	// it returns the document instead. Save generates on first use.
	Save(path string) (string, error)
}

var (
	_ Builder = (*Chrome)(nil)
	_ Builder = (*Mozilla)(nil)
)

// save implements the shared Save contract for a generated document.
func save(doc, path string) (string, error) {
	if path == "" {
		return doc, nil
	}
	if err := fsutil.WriteFileAtomic(path, []byte(doc)); err != nil {
		return "", errs.Wrap(errs.ErrIO, err, "write update manifest %s", path)
	}
	util.Debug("Wrote update manifest", "path", path, "bytes", len(doc))
	return "", nil
}

// requireFields reports the first empty field as an encoding error.
func requireFields(kind string, fields ...[2]string) error {
	for _, f := range fields {
		if f[1] == "" {
			return errs.New(errs.ErrEncoding, "%s update manifest: %s is empty", kind, f[0])
		}
	}
	return nil
}
