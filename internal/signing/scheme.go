// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/extsign/extsign/internal/util"
)

// ErrVerification is returned when a signature does not match.
var ErrVerification = errors.New("signature verification failed")

// Scheme signs and verifies with one key family.
type Scheme interface {
	// Family returns the key family this scheme handles ("rsa", "ecdsa", "ed25519").
	Family() string

	// Sign signs the already-digested message. hash is zero for DigestNone.
	Sign(key crypto.Signer, digest []byte, hash crypto.Hash) ([]byte, error)

	// Verify checks sig over the already-digested message.
	Verify(pub crypto.PublicKey, digest []byte, hash crypto.Hash, sig []byte) error
}

var schemes = util.NewRegistry[Scheme]("signature scheme")

// Register adds a scheme to the registry.
// Panics if a scheme for the same family is already registered.
func Register(s Scheme) {
	schemes.Register(s.Family(), s)
}

// familyOf maps a public key to its scheme family.
func familyOf(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "rsa"
	case *ecdsa.PublicKey:
		return "ecdsa"
	case ed25519.PublicKey:
		return "ed25519"
	default:
		return fmt.Sprintf("%T", pub)
	}
}

// rsaScheme produces PKCS#1 v1.5 signatures.
type rsaScheme struct{}

func (rsaScheme) Family() string { return "rsa" }

func (rsaScheme) Sign(key crypto.Signer, digest []byte, hash crypto.Hash) ([]byte, error) {
	if hash == 0 {
		return nil, errors.New("rsa signatures require a digest")
	}
	return key.Sign(rand.Reader, digest, hash)
}

func (rsaScheme) Verify(pub crypto.PublicKey, digest []byte, hash crypto.Hash, sig []byte) error {
	if hash == 0 {
		return errors.New("rsa signatures require a digest")
	}
	if err := rsa.VerifyPKCS1v15(pub.(*rsa.PublicKey), hash, digest, sig); err != nil {
		return ErrVerification
	}
	return nil
}

type ecdsaScheme struct{}

func (ecdsaScheme) Family() string { return "ecdsa" }

func (ecdsaScheme) Sign(key crypto.Signer, digest []byte, hash crypto.Hash) ([]byte, error) {
	if hash == 0 {
		return nil, errors.New("ecdsa signatures require a digest")
	}
	return key.Sign(rand.Reader, digest, hash)
}

func (ecdsaScheme) Verify(pub crypto.PublicKey, digest []byte, _ crypto.Hash, sig []byte) error {
	if !ecdsa.VerifyASN1(pub.(*ecdsa.PublicKey), digest, sig) {
		return ErrVerification
	}
	return nil
}

type ed25519Scheme struct{}

func (ed25519Scheme) Family() string { return "ed25519" }

func (ed25519Scheme) Sign(key crypto.Signer, message []byte, hash crypto.Hash) ([]byte, error) {
	if hash != 0 {
		return nil, fmt.Errorf("ed25519 signs the message itself; digest %v is not supported", hash)
	}
	return key.Sign(rand.Reader, message, crypto.Hash(0))
}

func (ed25519Scheme) Verify(pub crypto.PublicKey, message []byte, _ crypto.Hash, sig []byte) error {
	if !ed25519.Verify(pub.(ed25519.PublicKey), message, sig) {
		return ErrVerification
	}
	return nil
}

func init() {
	Register(rsaScheme{})
	Register(ecdsaScheme{})
	Register(ed25519Scheme{})
}
