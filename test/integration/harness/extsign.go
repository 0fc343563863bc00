// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// commandTimeout bounds a single CLI invocation. Sealing runs Argon2id.
const commandTimeout = 60 * time.Second

// ExtsignHarness runs the extsign CLI inside a scratch work directory.
type ExtsignHarness struct {
	t          *testing.T
	workDir    string
	binaryPath string
	envVars    []string
}

// NewExtsignHarness creates a harness with an empty work directory.
func NewExtsignHarness(t *testing.T) *ExtsignHarness {
	workDir := filepath.Join(t.TempDir(), "extsign-test")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		t.Fatalf("Failed to create work directory: %v", err)
	}
	return &ExtsignHarness{
		t:       t,
		workDir: workDir,
		// keep the caller's environment from leaking config or passphrases in
		envVars: []string{"EXTSIGN_CONFIG=", "EXTSIGN_PASSPHRASE="},
	}
}

// Build compiles extsign once per harness.
func (h *ExtsignHarness) Build() error {
	if h.binaryPath != "" {
		return nil
	}
	binaryPath := filepath.Join(h.t.TempDir(), "extsign")

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/extsign")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to build extsign: %w\nOutput: %s", err, output)
	}
	h.binaryPath = binaryPath
	return nil
}

// SetEnv adds an environment variable for later commands.
func (h *ExtsignHarness) SetEnv(key, value string) {
	h.envVars = append(h.envVars, fmt.Sprintf("%s=%s", key, value))
}

// WorkDir is the directory commands run in.
func (h *ExtsignHarness) WorkDir() string {
	return h.workDir
}

// Path joins elements onto the work directory.
func (h *ExtsignHarness) Path(elem ...string) string {
	return filepath.Join(append([]string{h.workDir}, elem...)...)
}

// WriteFile writes a file relative to the work directory.
func (h *ExtsignHarness) WriteFile(rel, content string) string {
	h.t.Helper()
	path := h.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

// Run executes extsign and returns stdout. Stderr is appended on failure.
func (h *ExtsignHarness) Run(args ...string) (string, error) {
	if err := h.Build(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.binaryPath, args...)
	cmd.Dir = h.workDir
	cmd.Env = append(os.Environ(), h.envVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if testing.Verbose() {
		if stdout.Len() > 0 {
			h.t.Logf("extsign stdout: %s", stdout.String())
		}
		if stderr.Len() > 0 {
			h.t.Logf("extsign stderr: %s", stderr.String())
		}
	}

	if err != nil {
		return stdout.String(), fmt.Errorf("extsign %v failed: %w\nOutput: %s%s", args, err, stdout.String(), stderr.String())
	}
	return stdout.String(), nil
}

// RunExpectError executes extsign expecting a non-zero exit.
func (h *ExtsignHarness) RunExpectError(args ...string) (string, error) {
	output, err := h.Run(args...)
	if err == nil {
		return output, fmt.Errorf("expected extsign %v to fail but it succeeded", args)
	}
	return err.Error(), nil
}
