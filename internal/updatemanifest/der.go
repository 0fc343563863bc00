// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package updatemanifest

import (
	"github.com/extsign/extsign/internal/errs"
)

const (
	tagBitString = 0x03
	tagSequence  = 0x30

	maxLength = 0xFFFFFFFF
)

// sha512WithRSAAlgID is the AlgorithmIdentifier the legacy update checker
// expects: SEQUENCE { OID 1.2.840.113549.1.1.13 } with no NULL parameter.
var sha512WithRSAAlgID = []byte{
	0x30, 0x0b,
	0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x0d,
}

// EncodeLength returns the DER length octets for n.
func EncodeLength(n int) ([]byte, error) {
	if n < 0 || uint64(n) > maxLength {
		return nil, errs.New(errs.ErrEncoding, "DER length %d out of range", n)
	}
	if n < 0x80 {
		return []byte{byte(n)}, nil
	}

	var be []byte
	for v := uint64(n); v > 0; v >>= 8 {
		be = append([]byte{byte(v)}, be...)
	}
	return append([]byte{0x80 | byte(len(be))}, be...), nil
}

func tlv(tag byte, content []byte) ([]byte, error) {
	l, err := EncodeLength(len(content))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(l)+len(content))
	out = append(out, tag)
	out = append(out, l...)
	return append(out, content...), nil
}

// bitString wraps payload verbatim. Callers supply the unused-bits octet.
func bitString(payload []byte) ([]byte, error) {
	return tlv(tagBitString, payload)
}

func sequence(content []byte) ([]byte, error) {
	return tlv(tagSequence, content)
}

// SignatureBlock wraps a raw RSA signature as
// SEQUENCE { AlgorithmIdentifier, BIT STRING { 0x00 || sig } }.
func SignatureBlock(sig []byte) ([]byte, error) {
	payload := make([]byte, 0, len(sig)+1)
	payload = append(payload, 0x00)
	payload = append(payload, sig...)

	bits, err := bitString(payload)
	if err != nil {
		return nil, err
	}

	content := make([]byte, 0, len(sha512WithRSAAlgID)+len(bits))
	content = append(content, sha512WithRSAAlgID...)
	content = append(content, bits...)
	return sequence(content)
}
