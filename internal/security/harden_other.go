// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

//go:build !unix

package security

import "errors"

var errUnsupported = errors.New("not supported on this platform")

func DisableCoreDumps() error { return errUnsupported }

func CoreDumpsDisabled() bool { return false }

func LockMemory() error { return errUnsupported }
