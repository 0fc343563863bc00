// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"crypto"
	_ "crypto/sha1" // register SHA-1 for crypto.Hash.New
	_ "crypto/sha256"
	_ "crypto/sha512"
	"strings"

	"github.com/extsign/extsign/internal/util"
)

// Digest names the hash applied to a message before signing.
type Digest string

const (
	// DigestNone signs the message directly (Ed25519).
	DigestNone   Digest = "none"
	DigestSHA1   Digest = "sha1"
	DigestSHA256 Digest = "sha256"
	DigestSHA384 Digest = "sha384"
	DigestSHA512 Digest = "sha512"
)

var digests = util.NewRegistry[crypto.Hash]("digest")

func init() {
	digests.Register(string(DigestNone), 0)
	digests.Register(string(DigestSHA1), crypto.SHA1)
	digests.Register(string(DigestSHA256), crypto.SHA256)
	digests.Register(string(DigestSHA384), crypto.SHA384)
	digests.Register(string(DigestSHA512), crypto.SHA512)
}

// ParseDigest accepts names like "sha512" or "SHA-512".
func ParseDigest(name string) (Digest, error) {
	d := Digest(strings.ReplaceAll(strings.ToLower(name), "-", ""))
	if _, err := digests.Lookup(string(d)); err != nil {
		return "", err
	}
	return d, nil
}

// Hash returns the crypto.Hash for d; zero for DigestNone.
func (d Digest) Hash() (crypto.Hash, error) {
	return digests.Lookup(string(d))
}

// sum hashes data with d, or returns data unchanged for DigestNone.
func (d Digest) sum(data []byte) ([]byte, crypto.Hash, error) {
	h, err := d.Hash()
	if err != nil {
		return nil, 0, err
	}
	if h == 0 {
		return data, 0, nil
	}
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil), h, nil
}
