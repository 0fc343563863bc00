// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestIsWritable verifies the nearest-existing-ancestor walk
func TestIsWritable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "exists.txt")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing dir", dir, false},
		{"existing file", file, false},
		{"missing file in dir", filepath.Join(dir, "new.crx"), false},
		{"missing nested dirs", filepath.Join(dir, "a", "b", "c", "new.crx"), false},
		{"under a regular file", filepath.Join(file, "child"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := IsWritable(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("IsWritable(%s) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}

	// IsWritable must not leave files behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only exists.txt in %s, found %d entries", dir, len(entries))
	}
}

// TestWriteFileAtomic verifies contents, permissions and no leftover temp files
func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "update.xml")

	if err := WriteFileAtomic(path, []byte("first")); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != FilePerm {
		t.Errorf("mode = %v, want %v", info.Mode().Perm(), FilePerm)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected one file after atomic writes, found %d", len(entries))
	}
}

// TestWriteFileAtomicMissingDir verifies failure when the directory is absent
func TestWriteFileAtomicMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.crx")
	if err := WriteFileAtomic(path, []byte("x")); err == nil {
		t.Error("expected error for missing directory")
	}
}
