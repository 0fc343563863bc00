// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"crypto"
	_ "crypto/sha1" // register digests for crypto.Hash.New
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashFile computes the digest of a file and returns it as a lowercase hex string.
func HashFile(filePath string, h crypto.Hash) (string, error) {
	if !h.Available() {
		return "", fmt.Errorf("hash function %v is not available", h)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	hash := h.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to compute hash: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
