// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/testutil"
)

func newSigner(t *testing.T, pemData []byte) *DataSigner {
	t.Helper()
	kp, err := keys.LoadPEM(pemData)
	if err != nil {
		t.Fatalf("LoadPEM failed: %v", err)
	}
	t.Cleanup(kp.Close)
	s, err := New(kp)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

// TestSignMatchesOpenSSL verifies RSA signatures are byte-identical to openssl dgst -sign
func TestSignMatchesOpenSSL(t *testing.T) {
	s := newSigner(t, testutil.RSAKeyPEM(t))

	for _, d := range []Digest{DigestSHA1, DigestSHA512} {
		t.Run(string(d), func(t *testing.T) {
			sig, err := s.Sign([]byte(testutil.SignedMessage), d)
			if err != nil {
				t.Fatalf("Sign failed: %v", err)
			}
			if sig.Digest != d {
				t.Errorf("Digest = %s, want %s", sig.Digest, d)
			}
			if want := testutil.RSASignature(t, string(d)); !bytes.Equal(sig.Bytes, want) {
				t.Errorf("signature mismatch:\n got %x\nwant %x", sig.Bytes, want)
			}
		})
	}
}

// TestSignVerifyAllFamilies verifies sign/verify round trips for each key family
func TestSignVerifyAllFamilies(t *testing.T) {
	tests := []struct {
		name   string
		key    func(*testing.T) []byte
		digest Digest
	}{
		{"rsa sha256", testutil.RSAKeyPEM, DigestSHA256},
		{"ecdsa sha256", testutil.P256KeyPEM, DigestSHA256},
		{"ecdsa sha384", testutil.P256KeyPEM, DigestSHA384},
		{"ed25519", testutil.Ed25519KeyPEM, DigestNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSigner(t, tt.key(t))
			data := []byte("package bytes")

			sig, err := s.Sign(data, tt.digest)
			if err != nil {
				t.Fatalf("Sign failed: %v", err)
			}
			if err := s.Verify(data, sig); err != nil {
				t.Errorf("Verify failed: %v", err)
			}
			err = s.Verify([]byte("tampered"), sig)
			if !errors.Is(err, ErrVerification) || !errors.Is(err, errs.ErrSigning) {
				t.Errorf("Verify(tampered) error = %v, want ErrVerification", err)
			}
		})
	}
}

// TestSignDigestMismatch verifies unsupported digest/key combinations fail with ErrSigning
func TestSignDigestMismatch(t *testing.T) {
	tests := []struct {
		name   string
		key    func(*testing.T) []byte
		digest Digest
	}{
		{"ed25519 with sha512", testutil.Ed25519KeyPEM, DigestSHA512},
		{"rsa without digest", testutil.RSAKeyPEM, DigestNone},
		{"ecdsa without digest", testutil.P256KeyPEM, DigestNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSigner(t, tt.key(t))
			if _, err := s.Sign([]byte("x"), tt.digest); !errors.Is(err, errs.ErrSigning) {
				t.Errorf("Sign() error = %v, want ErrSigning", err)
			}
		})
	}
}

// TestSignUnknownDigest verifies unknown digests are invalid input
func TestSignUnknownDigest(t *testing.T) {
	s := newSigner(t, testutil.RSAKeyPEM(t))
	if _, err := s.Sign([]byte("x"), Digest("md5")); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("Sign(md5) error = %v, want ErrInvalidInput", err)
	}
}

// TestSignFile verifies file signing and missing-file errors
func TestSignFile(t *testing.T) {
	s := newSigner(t, testutil.RSAKeyPEM(t))
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "payload", []byte(testutil.SignedMessage))

	sig, err := s.SignFile(path, DigestSHA1)
	if err != nil {
		t.Fatalf("SignFile failed: %v", err)
	}
	if !bytes.Equal(sig.Bytes, testutil.RSASignature(t, "sha1")) {
		t.Error("SignFile signature differs from Sign over the same bytes")
	}

	_, err = s.SignFile(filepath.Join(dir, "missing"), DigestSHA1)
	if !errors.Is(err, errs.ErrIO) || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("SignFile(missing) error = %v, want ErrIO wrapping ErrNotExist", err)
	}
}

// TestSignAfterClose verifies a released key pair cannot sign
func TestSignAfterClose(t *testing.T) {
	kp, err := keys.LoadPEM(testutil.RSAKeyPEM(t))
	if err != nil {
		t.Fatalf("LoadPEM failed: %v", err)
	}
	s, _ := New(kp)
	kp.Close()

	if _, err := s.Sign([]byte("x"), DigestSHA1); !errors.Is(err, keys.ErrReleased) {
		t.Errorf("Sign after Close error = %v, want ErrReleased", err)
	}
}

// TestNewRequiresKeyPair verifies nil key pairs are rejected
func TestNewRequiresKeyPair(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("New(nil) error = %v, want ErrInvalidInput", err)
	}
}

// TestParseDigest verifies digest name normalisation
func TestParseDigest(t *testing.T) {
	tests := []struct {
		in      string
		want    Digest
		wantErr bool
	}{
		{"sha1", DigestSHA1, false},
		{"SHA-512", DigestSHA512, false},
		{"Sha256", DigestSHA256, false},
		{"none", DigestNone, false},
		{"md5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDigest(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDigest(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDigest(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestParseDigestUnknown verifies the error for an unknown digest lists the registered ones
func TestParseDigestUnknown(t *testing.T) {
	_, err := ParseDigest("md5")
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("ParseDigest(md5) error = %v, want ErrInvalidInput", err)
	}
	for _, name := range []string{"none", "sha1", "sha256", "sha384", "sha512"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not list %s", err, name)
		}
	}
}
