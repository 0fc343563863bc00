// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package errs defines the error kinds shared by every build stage.
// Callers wrap one of the sentinels together with the underlying cause
// so that both can be matched with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates malformed arguments, keys, or source manifests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIO indicates a file could not be read, written, or created.
	ErrIO = errors.New("i/o error")

	// ErrSigning indicates the crypto backend refused to produce a signature.
	ErrSigning = errors.New("signing error")

	// ErrEncoding indicates a value could not be represented in the output format.
	ErrEncoding = errors.New("encoding error")
)

// kinds is ordered by how specific the kind is for reporting.
var kinds = []error{ErrSigning, ErrEncoding, ErrIO, ErrInvalidInput}

// Wrap annotates cause with kind and a short description.
// A nil cause yields kind wrapped with the description only.
func Wrap(kind error, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, msg)
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, cause)
}

// New returns kind annotated with a formatted message.
func New(kind error, format string, args ...any) error {
	return Wrap(kind, nil, format, args...)
}

// Kind reports which error kind err carries, or "" if none.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return ""
}
