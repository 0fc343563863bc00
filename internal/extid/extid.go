// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package extid derives Chrome extension ids from public keys.
//
// An id is the first 16 bytes of SHA-256 over the DER-encoded
// SubjectPublicKeyInfo, written as 32 hex digits in the alphabet a-p
// (digit d becomes 'a'+d).
package extid

import (
	"crypto/sha256"

	"github.com/extsign/extsign/internal/keys"
)

// Length is the number of characters in an extension id.
const Length = 32

// IDFor returns the extension id for a DER-encoded public key.
func IDFor(publicKeyDER []byte) string {
	sum := sha256.Sum256(publicKeyDER)
	id := make([]byte, 0, Length)
	for _, b := range sum[:Length/2] {
		id = append(id, 'a'+(b>>4), 'a'+(b&0x0f))
	}
	return string(id)
}

// FromKeyPair returns the extension id of kp's public key.
func FromKeyPair(kp *keys.KeyPair) (string, error) {
	der, err := kp.PublicKeyDER()
	if err != nil {
		return "", err
	}
	return IDFor(der), nil
}

// Valid reports whether id is a well-formed extension id.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 'a' || id[i] > 'p' {
			return false
		}
	}
	return true
}
