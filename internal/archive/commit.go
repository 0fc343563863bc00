// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package archive

import (
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/fsutil"
)

// Commit writes a finished package to path. The write goes through a
// temporary sibling and a rename, so a failed build never leaves a
// truncated package behind.
func Commit(path string, data []byte) error {
	if err := fsutil.WriteFileAtomic(path, data); err != nil {
		return errs.Wrap(errs.ErrIO, err, "write output file %s", path)
	}
	return nil
}
