// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package extmanifest reads and rewrites the manifests shipped inside an
// unpacked extension: Chrome's manifest.json and Mozilla's install.rdf.
package extmanifest

import (
	"strconv"
	"strings"

	"github.com/extsign/extsign/internal/errs"
)

const (
	maxVersionParts     = 4
	maxVersionComponent = 65535
)

// ValidVersion checks a Chrome style version: one to four dot-separated
// integers in 0..65535 without leading zeros.
func ValidVersion(v string) error {
	parts := strings.Split(v, ".")
	if v == "" || len(parts) > maxVersionParts {
		return errs.New(errs.ErrInvalidInput, "version %q must have 1 to %d dot-separated parts", v, maxVersionParts)
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || strings.HasPrefix(p, "+") {
			return errs.New(errs.ErrInvalidInput, "version %q: %q is not a number", v, p)
		}
		if n > maxVersionComponent {
			return errs.New(errs.ErrInvalidInput, "version %q: %d exceeds %d", v, n, maxVersionComponent)
		}
		if len(p) > 1 && p[0] == '0' {
			return errs.New(errs.ErrInvalidInput, "version %q: %q has a leading zero", v, p)
		}
	}
	return nil
}

// validToolkitVersion accepts Mozilla toolkit versions such as "1.0b2" or
// "3.6.*"; it only rejects values that cannot appear in one.
func validToolkitVersion(v string) error {
	if v == "" {
		return errs.New(errs.ErrInvalidInput, "version must not be empty")
	}
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case strings.ContainsRune(".+-*", r):
		default:
			return errs.New(errs.ErrInvalidInput, "version %q contains %q", v, r)
		}
	}
	return nil
}
