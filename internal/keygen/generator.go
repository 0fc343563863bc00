// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package keygen creates fresh signing keys for extensions.
package keygen

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/util"
)

// DefaultRSABits is the modulus size used when none is requested.
const DefaultRSABits = 2048

// Generator produces a random private key of one algorithm.
type Generator interface {
	// Algorithm returns the name used on the command line (e.g. "rsa").
	Algorithm() string

	// Generate creates a key. bits is ignored by fixed-size algorithms.
	Generate(bits int) (crypto.Signer, error)
}

var generators = util.NewRegistry[Generator]("key generator")

// Register adds a generator to the registry.
// Panics if a generator for the same algorithm is already registered.
func Register(g Generator) {
	generators.Register(g.Algorithm(), g)
}

// Algorithms returns the registered algorithm names, sorted.
func Algorithms() []string {
	return generators.Names()
}

// Generate creates a key pair with the named algorithm.
func Generate(algorithm string, bits int) (*keys.KeyPair, error) {
	g, err := generators.Lookup(algorithm)
	if err != nil {
		return nil, err
	}
	signer, err := g.Generate(bits)
	if err != nil {
		return nil, errs.Wrap(errs.ErrSigning, err, "generate %s key", algorithm)
	}
	return keys.FromSigner(signer)
}

type rsaGenerator struct{}

func (rsaGenerator) Algorithm() string { return "rsa" }

func (rsaGenerator) Generate(bits int) (crypto.Signer, error) {
	if bits == 0 {
		bits = DefaultRSABits
	}
	if bits < 2048 {
		return nil, fmt.Errorf("RSA keys must be at least 2048 bits, got %d", bits)
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

type ecdsaGenerator struct{}

func (ecdsaGenerator) Algorithm() string { return "ecdsa" }

func (ecdsaGenerator) Generate(int) (crypto.Signer, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

type ed25519Generator struct{}

func (ed25519Generator) Algorithm() string { return "ed25519" }

func (ed25519Generator) Generate(int) (crypto.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return priv, nil
}

func init() {
	Register(rsaGenerator{})
	Register(ecdsaGenerator{})
	Register(ed25519Generator{})
}
