// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package crx encodes and decodes Chrome CRX version 2 packages.
//
// Layout, all integers little-endian uint32:
//
//	0        "Cr24"
//	4        format version
//	8        public key length N
//	12       signature length M
//	16       public key (DER SubjectPublicKeyInfo, N bytes)
//	16+N     signature over the zip bytes (M bytes)
//	16+N+M   zip archive
package crx

import (
	"crypto/x509"
	"encoding/binary"
	"math"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/extid"
	"github.com/extsign/extsign/internal/signing"
)

const (
	// Magic opens every CRX file.
	Magic = "Cr24"

	// HeaderSize is the size of the fixed part of the header.
	HeaderSize = 16

	// Version2 is the only supported container version.
	Version2 uint32 = 2
)

// Header is the decoded CRX header.
type Header struct {
	Version   uint32
	PublicKey []byte
	Signature []byte
}

// ExtensionID returns the id derived from the embedded public key.
func (h *Header) ExtensionID() string {
	return extid.IDFor(h.PublicKey)
}

// DigestFor returns the digest the given container version signs with.
func DigestFor(version uint32) (signing.Digest, error) {
	switch version {
	case Version2:
		return signing.DigestSHA1, nil
	default:
		return "", errs.New(errs.ErrInvalidInput, "unsupported CRX version %d", version)
	}
}

// Encode prepends a CRX header to zip. signature must already cover zip.
func Encode(zip, publicKeyDER, signature []byte, version uint32) ([]byte, error) {
	if uint64(len(publicKeyDER)) > math.MaxUint32 || uint64(len(signature)) > math.MaxUint32 {
		return nil, errs.New(errs.ErrEncoding, "CRX header field exceeds 4 GiB")
	}

	out := make([]byte, 0, HeaderSize+len(publicKeyDER)+len(signature)+len(zip))
	out = append(out, Magic...)
	out = binary.LittleEndian.AppendUint32(out, version)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(publicKeyDER)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(signature)))
	out = append(out, publicKeyDER...)
	out = append(out, signature...)
	out = append(out, zip...)
	return out, nil
}

// Decode splits a CRX file into its header and zip payload.
func Decode(data []byte) (*Header, []byte, error) {
	if len(data) < HeaderSize {
		return nil, nil, errs.New(errs.ErrEncoding, "CRX file too short (%d bytes)", len(data))
	}
	if string(data[:4]) != Magic {
		return nil, nil, errs.New(errs.ErrEncoding, "bad CRX magic %q", data[:4])
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	keyLen := uint64(binary.LittleEndian.Uint32(data[8:12]))
	sigLen := uint64(binary.LittleEndian.Uint32(data[12:16]))
	if version != Version2 {
		return nil, nil, errs.New(errs.ErrEncoding, "unsupported CRX version %d", version)
	}
	if HeaderSize+keyLen+sigLen > uint64(len(data)) {
		return nil, nil, errs.New(errs.ErrEncoding, "CRX header lengths (key %d, signature %d) exceed file size %d", keyLen, sigLen, len(data))
	}

	keyEnd := HeaderSize + keyLen
	sigEnd := keyEnd + sigLen
	h := &Header{
		Version:   version,
		PublicKey: data[HeaderSize:keyEnd],
		Signature: data[keyEnd:sigEnd],
	}
	return h, data[sigEnd:], nil
}

// Verify decodes data and checks the signature with the embedded key.
func Verify(data []byte) (*Header, error) {
	h, zip, err := Decode(data)
	if err != nil {
		return nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(h.PublicKey)
	if err != nil {
		return h, errs.Wrap(errs.ErrEncoding, err, "parse embedded public key")
	}
	digest, err := DigestFor(h.Version)
	if err != nil {
		return h, err
	}
	if err := signing.Verify(pub, zip, signing.Signature{Bytes: h.Signature, Digest: digest}); err != nil {
		return h, err
	}
	return h, nil
}
