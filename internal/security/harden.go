// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package security hardens the process before private keys are loaded.
package security

// Status records which protections are in effect.
type Status struct {
	CoreDumpsDisabled bool
	MemoryLocked      bool
}

// Harden disables core dumps and, when lockMemory is set, locks memory.
// Failures are returned but leave the process usable; callers decide
// whether to warn or abort.
func Harden(lockMemory bool) (Status, error) {
	var st Status
	if err := DisableCoreDumps(); err != nil {
		return st, err
	}
	st.CoreDumpsDisabled = true
	if !lockMemory {
		return st, nil
	}
	if err := LockMemory(); err != nil {
		return st, err
	}
	st.MemoryLocked = true
	return st, nil
}
