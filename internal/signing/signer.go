// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package signing produces raw signatures over package and manifest bytes.
//
// A DataSigner is bound to one key pair for its whole lifetime. The key
// family selects a Scheme from the registry; RSA keys produce PKCS#1 v1.5
// signatures, the format CRX and update.rdf consumers verify.
package signing

import (
	"crypto"
	"os"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/keys"
)

// Signature is a raw signature and the digest it was computed with.
type Signature struct {
	Bytes  []byte
	Digest Digest
}

// DataSigner signs byte strings and files with a fixed key pair.
type DataSigner struct {
	kp *keys.KeyPair
}

// New binds a signer to kp. The caller still owns and closes kp.
func New(kp *keys.KeyPair) (*DataSigner, error) {
	if kp == nil {
		return nil, errs.New(errs.ErrInvalidInput, "no key pair supplied")
	}
	return &DataSigner{kp: kp}, nil
}

// KeyPair returns the bound key pair.
func (s *DataSigner) KeyPair() *keys.KeyPair {
	return s.kp
}

// Sign signs data with the given digest.
func (s *DataSigner) Sign(data []byte, d Digest) (Signature, error) {
	key, err := s.kp.Signer()
	if err != nil {
		return Signature{}, err
	}
	scheme, err := schemes.Lookup(familyOf(key.Public()))
	if err != nil {
		return Signature{}, errs.Wrap(errs.ErrSigning, err, "select signature scheme")
	}
	msg, hash, err := d.sum(data)
	if err != nil {
		return Signature{}, err
	}

	sig, err := scheme.Sign(key, msg, hash)
	if err != nil {
		return Signature{}, errs.Wrap(errs.ErrSigning, err, "sign with %s/%s", scheme.Family(), d)
	}
	return Signature{Bytes: sig, Digest: d}, nil
}

// SignFile reads the whole file at path and signs its contents.
func (s *DataSigner) SignFile(path string, d Digest) (Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Signature{}, errs.Wrap(errs.ErrIO, err, "read %s", path)
	}
	return s.Sign(data, d)
}

// Verify checks sig over data against the bound public key.
func (s *DataSigner) Verify(data []byte, sig Signature) error {
	pub, err := s.kp.PublicKey(keys.FormatNative)
	if err != nil {
		return err
	}
	return Verify(pub.(crypto.PublicKey), data, sig)
}

// Verify checks sig over data against pub.
func Verify(pub crypto.PublicKey, data []byte, sig Signature) error {
	scheme, err := schemes.Lookup(familyOf(pub))
	if err != nil {
		return errs.Wrap(errs.ErrSigning, err, "select signature scheme")
	}
	msg, hash, err := sig.Digest.sum(data)
	if err != nil {
		return err
	}
	if err := scheme.Verify(pub, msg, hash, sig.Bytes); err != nil {
		return errs.Wrap(errs.ErrSigning, err, "verify %s/%s signature", scheme.Family(), sig.Digest)
	}
	return nil
}
