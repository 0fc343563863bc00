// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keygen

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/keys"
)

// TestAlgorithms verifies the built-in generators are registered
func TestAlgorithms(t *testing.T) {
	want := []string{"ecdsa", "ed25519", "rsa"}
	if diff := cmp.Diff(want, Algorithms()); diff != "" {
		t.Errorf("Algorithms() mismatch (-want +got):\n%s", diff)
	}
}

// TestGenerateRoundTrip verifies generated keys reload to the same public key
func TestGenerateRoundTrip(t *testing.T) {
	for _, alg := range []string{"ecdsa", "ed25519", "rsa"} {
		t.Run(alg, func(t *testing.T) {
			kp, err := Generate(alg, 0)
			if err != nil {
				t.Fatalf("Generate(%s) failed: %v", alg, err)
			}
			defer kp.Close()

			if kp.Algorithm() != alg {
				t.Errorf("Algorithm() = %q, want %q", kp.Algorithm(), alg)
			}

			privPEM, err := kp.PrivateKeyPEM()
			if err != nil {
				t.Fatalf("PrivateKeyPEM failed: %v", err)
			}
			reloaded, err := keys.LoadPEM(privPEM)
			if err != nil {
				t.Fatalf("LoadPEM failed: %v", err)
			}
			defer reloaded.Close()

			a, _ := kp.PublicKeyDER()
			b, _ := reloaded.PublicKeyDER()
			if diff := cmp.Diff(a, b); diff != "" {
				t.Errorf("public key changed after reload (-want +got):\n%s", diff)
			}
		})
	}
}

// TestGenerateRejects verifies unknown algorithms and weak RSA sizes fail
func TestGenerateRejects(t *testing.T) {
	if _, err := Generate("dsa", 0); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("Generate(dsa) error = %v, want ErrInvalidInput", err)
	}
	if _, err := Generate("rsa", 1024); !errors.Is(err, errs.ErrSigning) {
		t.Errorf("Generate(rsa, 1024) error = %v, want ErrSigning", err)
	}
}

// TestRegisterDuplicatePanics verifies duplicate registration is a programming error
func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register(rsaGenerator{})
}
