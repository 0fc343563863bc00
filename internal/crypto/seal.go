// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package crypto seals signing keys at rest with a passphrase.
// A sealed key is a JSON envelope holding an Argon2id-derived AES-256-GCM
// ciphertext together with the KDF parameters needed to open it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters (OWASP recommended)
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // AES-256

	saltLen = 32

	envelopeVersion = 1
	kdfArgon2id     = "argon2id"
)

var (
	// ErrWrongPassphrase is returned when authentication of the ciphertext fails.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

	// ErrUnsupportedEnvelope is returned for unknown envelope versions or KDFs.
	ErrUnsupportedEnvelope = errors.New("unsupported key envelope")
)

// KDFParams are the Argon2id cost parameters recorded in each envelope.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultKDFParams returns the parameters used by Seal.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: argon2Time, Memory: argon2Memory, Threads: argon2Threads}
}

// Envelope is the on-disk form of a sealed key.
type Envelope struct {
	EnvelopeVersion int    `json:"envelope_version"`
	KDF             string `json:"kdf"`
	Time            uint32 `json:"time"`
	Memory          uint32 `json:"memory"`
	Threads         uint8  `json:"threads"`
	Salt            string `json:"salt"`       // Base64-encoded Argon2id salt
	Nonce           string `json:"nonce"`      // Base64-encoded AES-GCM nonce
	Ciphertext      string `json:"ciphertext"` // Base64-encoded sealed PEM
}

// IsSealed checks if data appears to be a sealed key envelope
func IsSealed(data []byte) bool {
	var env Envelope
	return json.Unmarshal(data, &env) == nil && env.EnvelopeVersion > 0
}

// deriveKey stretches the passphrase into an AES-256 key.
// Caller is responsible for zeroing the returned key when done.
func deriveKey(passphrase, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, argon2KeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under passphrase with the default KDF parameters.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	return SealWithParams(plaintext, passphrase, DefaultKDFParams())
}

// SealWithParams encrypts plaintext under passphrase with explicit KDF costs.
func SealWithParams(plaintext, passphrase []byte, p KDFParams) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt, p)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	env := Envelope{
		EnvelopeVersion: envelopeVersion,
		KDF:             kdfArgon2id,
		Time:            p.Time,
		Memory:          p.Memory,
		Threads:         p.Threads,
		Salt:            base64.StdEncoding.EncodeToString(salt),
		Nonce:           base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:      base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	}
	return json.MarshalIndent(env, "", "  ")
}

// Open decrypts a sealed envelope with passphrase.
// Caller is responsible for zeroing the returned plaintext when done.
func Open(data, passphrase []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse key envelope: %w", err)
	}
	if env.EnvelopeVersion != envelopeVersion {
		return nil, fmt.Errorf("%w: envelope_version %d", ErrUnsupportedEnvelope, env.EnvelopeVersion)
	}
	if env.KDF != kdfArgon2id {
		return nil, fmt.Errorf("%w: kdf %q", ErrUnsupportedEnvelope, env.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt, KDFParams{Time: env.Time, Memory: env.Memory, Threads: env.Threads})
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}
