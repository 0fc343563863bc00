// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

//go:build unix

package security

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DisableCoreDumps sets RLIMIT_CORE to zero so a crash cannot write key
// material to disk.
func DisableCoreDumps() error {
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0}); err != nil {
		return fmt.Errorf("failed to disable core dumps: %w", err)
	}
	return nil
}

// CoreDumpsDisabled reports whether the soft core limit is zero.
func CoreDumpsDisabled() bool {
	var rl unix.Rlimit
	return unix.Getrlimit(unix.RLIMIT_CORE, &rl) == nil && rl.Cur == 0
}

// LockMemory locks current and future pages so keys are never swapped out.
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall failed: %w\n\nTo fix this, run:\n  sudo setcap cap_ipc_lock+ep %s", err, os.Args[0])
	}
	return nil
}
