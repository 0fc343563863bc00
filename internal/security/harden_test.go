// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

//go:build unix

package security

import "testing"

// TestHardenDisablesCoreDumps verifies the core limit after Harden
func TestHardenDisablesCoreDumps(t *testing.T) {
	st, err := Harden(false)
	if err != nil {
		t.Fatalf("Harden failed: %v", err)
	}
	if !st.CoreDumpsDisabled || st.MemoryLocked {
		t.Errorf("Harden(false) = %+v, want core dumps disabled only", st)
	}
	if !CoreDumpsDisabled() {
		t.Error("RLIMIT_CORE is not zero after Harden")
	}
}
