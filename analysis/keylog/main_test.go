// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"path/filepath"
	"testing"
)

// TestCheckLine verifies which output calls are flagged
func TestCheckLine(t *testing.T) {
	tests := []struct {
		line string
		bad  bool
	}{
		{`fmt.Printf("key: %x\n", privateKey)`, true},
		{`util.Logger.Info("unlocked", "pass", pass)`, true},
		{`return errs.Wrap(errs.ErrIO, err, "seal %s", plaintext)`, true},
		{`a.console.Field("Key", kp.PrivateKeyPEM())`, true},
		{`fmt.Printf("read passphrase for %s\n", path)`, false},
		{`util.Logger.Info("Loaded key", "path", keyFile)`, false},
		{`fmt.Fprintf(w, "| %s |\n", passphrase.EnvVar)`, false},
		{`return errs.Wrap(errs.ErrInvalidInput, err, "unseal %s", path)`, false},
		{`a.console.Field("Public key", humanize.Bytes(uint64(len(header.PublicKey))))`, false},
		{`data, err := kp.PrivateKeyPEM()`, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			reason := checkLine(tt.line)
			if (reason != "") != tt.bad {
				t.Errorf("checkLine() = %q, want flagged=%v", reason, tt.bad)
			}
		})
	}
}

// TestRepositoryClean runs the check over this repository
func TestRepositoryClean(t *testing.T) {
	findings, _, err := scan(filepath.Join("..", ".."))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	for _, f := range findings {
		t.Errorf("%s:%d: %s", f.file, f.line, f.reason)
	}
}
