// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package keys loads the signing key pair used for a build.
// The public key is always re-derived from the private key; it is never
// supplied independently.
package keys

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"strings"
	"sync"

	extcrypto "github.com/extsign/extsign/internal/crypto"
	"github.com/extsign/extsign/internal/errs"
)

// Format selects how a key is returned by the accessors.
type Format int

const (
	// FormatNative returns the Go crypto object (crypto.Signer or crypto.PublicKey).
	FormatNative Format = iota
	// FormatPEM returns the PEM-armoured bytes.
	FormatPEM
	// FormatDER returns the base64-decoded body of the PEM.
	FormatDER
)

func (f Format) String() string {
	switch f {
	case FormatNative:
		return "native"
	case FormatPEM:
		return "pem"
	case FormatDER:
		return "der"
	default:
		return "unknown"
	}
}

const (
	pemTypeRSA       = "RSA PRIVATE KEY"
	pemTypePKCS8     = "PRIVATE KEY"
	pemTypeEC        = "EC PRIVATE KEY"
	pemTypePublicKey = "PUBLIC KEY"
)

// ErrReleased is returned by accessors after Close.
var ErrReleased = errors.New("key pair released")

// PassphraseFunc supplies the passphrase for a sealed key file.
// The caller zeroes the returned slice after use.
type PassphraseFunc func() ([]byte, error)

// KeyPair holds a private key and the public key derived from it.
type KeyPair struct {
	mu         sync.RWMutex
	signer     crypto.Signer
	privatePEM []byte
	public     crypto.PublicKey
	publicPEM  []byte
}

// Load reads a key pair from a PEM string or, if source carries no PEM
// armour, from the file at that path.
func Load(source string, unlock PassphraseFunc) (*KeyPair, error) {
	if strings.Contains(source, "-----BEGIN") {
		return LoadPEM([]byte(source))
	}
	return LoadFile(source, unlock)
}

// LoadFile reads a PEM private key, or a sealed key envelope, from path.
func LoadFile(path string, unlock PassphraseFunc) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "read private key %s", path)
	}
	defer extcrypto.ZeroBytes(data)

	if extcrypto.IsSealed(data) {
		plain, err := unseal(path, data, unlock)
		if err != nil {
			return nil, err
		}
		defer extcrypto.ZeroBytes(plain)
		return LoadPEM(plain)
	}
	return LoadPEM(data)
}

func unseal(path string, data []byte, unlock PassphraseFunc) ([]byte, error) {
	if unlock == nil {
		return nil, errs.New(errs.ErrInvalidInput, "key file %s is sealed and no passphrase source is configured", path)
	}
	pass, err := unlock()
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, err, "read passphrase for %s", path)
	}
	defer extcrypto.ZeroBytes(pass)

	plain, err := extcrypto.Open(data, pass)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, err, "unseal %s", path)
	}
	return plain, nil
}

// LoadPEM parses the first PEM block of data as a private key.
func LoadPEM(data []byte) (*KeyPair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errs.New(errs.ErrInvalidInput, "no PEM block found in private key")
	}

	signer, err := parsePrivateKey(block)
	if err != nil {
		return nil, err
	}
	return newKeyPair(signer, pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: block.Bytes}))
}

// FromSigner wraps an in-memory private key, encoding it as PKCS#1 for RSA
// and PKCS#8 otherwise.
func FromSigner(signer crypto.Signer) (*KeyPair, error) {
	var block *pem.Block
	if k, ok := signer.(*rsa.PrivateKey); ok {
		block = &pem.Block{Type: pemTypeRSA, Bytes: x509.MarshalPKCS1PrivateKey(k)}
	} else {
		der, err := x509.MarshalPKCS8PrivateKey(signer)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidInput, err, "encode private key")
		}
		block = &pem.Block{Type: pemTypePKCS8, Bytes: der}
	}
	return newKeyPair(signer, pem.EncodeToMemory(block))
}

func parsePrivateKey(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case pemTypeRSA:
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidInput, err, "parse PKCS#1 private key")
		}
		return k, nil
	case pemTypeEC:
		k, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidInput, err, "parse EC private key")
		}
		return k, nil
	case pemTypePKCS8:
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidInput, err, "parse PKCS#8 private key")
		}
		signer, ok := k.(crypto.Signer)
		if !ok {
			return nil, errs.New(errs.ErrInvalidInput, "unsupported PKCS#8 key type %T", k)
		}
		return signer, nil
	case pemTypePublicKey, "RSA PUBLIC KEY", "CERTIFICATE":
		return nil, errs.New(errs.ErrInvalidInput, "expected a private key, got %q", block.Type)
	default:
		return nil, errs.New(errs.ErrInvalidInput, "unsupported PEM block %q", block.Type)
	}
}

func newKeyPair(signer crypto.Signer, privatePEM []byte) (*KeyPair, error) {
	public := signer.Public()
	der, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, err, "derive public key")
	}
	return &KeyPair{
		signer:     signer,
		privatePEM: privatePEM,
		public:     public,
		publicPEM:  pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: der}),
	}, nil
}

// PrivateKey returns the private key in the requested format:
// crypto.Signer for FormatNative, []byte otherwise.
func (kp *KeyPair) PrivateKey(f Format) (any, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.signer == nil {
		return nil, errs.Wrap(errs.ErrEncoding, ErrReleased, "private key")
	}
	return render(kp.signer, kp.privatePEM, f)
}

// PublicKey returns the public key in the requested format:
// crypto.PublicKey for FormatNative, []byte otherwise.
func (kp *KeyPair) PublicKey(f Format) (any, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.public == nil {
		return nil, errs.Wrap(errs.ErrEncoding, ErrReleased, "public key")
	}
	return render(kp.public, kp.publicPEM, f)
}

func render(native any, pemBytes []byte, f Format) (any, error) {
	switch f {
	case FormatNative:
		return native, nil
	case FormatPEM:
		return bytes.Clone(pemBytes), nil
	case FormatDER:
		return PEMToDER(pemBytes)
	default:
		return nil, errs.New(errs.ErrInvalidInput, "unknown key format %d", int(f))
	}
}

// Signer returns the private key as a crypto.Signer.
func (kp *KeyPair) Signer() (crypto.Signer, error) {
	k, err := kp.PrivateKey(FormatNative)
	if err != nil {
		return nil, err
	}
	return k.(crypto.Signer), nil
}

// PrivateKeyPEM returns a copy of the PEM-encoded private key.
func (kp *KeyPair) PrivateKeyPEM() ([]byte, error) {
	k, err := kp.PrivateKey(FormatPEM)
	if err != nil {
		return nil, err
	}
	return k.([]byte), nil
}

// PublicKeyDER returns the DER-encoded SubjectPublicKeyInfo.
func (kp *KeyPair) PublicKeyDER() ([]byte, error) {
	k, err := kp.PublicKey(FormatDER)
	if err != nil {
		return nil, err
	}
	return k.([]byte), nil
}

// Algorithm names the key family: "rsa", "ecdsa" or "ed25519".
func (kp *KeyPair) Algorithm() string {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	switch kp.public.(type) {
	case *rsa.PublicKey:
		return "rsa"
	case *ecdsa.PublicKey:
		return "ecdsa"
	case nil:
		return ""
	default:
		return "ed25519"
	}
}

// Close zeroes the PEM buffers and drops the key handles.
// It is safe to call more than once.
func (kp *KeyPair) Close() {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	extcrypto.ZeroBytes(kp.privatePEM)
	kp.privatePEM = nil
	kp.publicPEM = nil
	kp.signer = nil
	kp.public = nil
}

// PEMToDER strips the armour lines from a PEM document and base64-decodes
// the remaining body.
func PEMToDER(pemBytes []byte) ([]byte, error) {
	var body strings.Builder
	for _, line := range strings.Split(string(pemBytes), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		body.WriteString(line)
	}
	der, err := base64.StdEncoding.DecodeString(body.String())
	if err != nil {
		return nil, errs.Wrap(errs.ErrEncoding, err, "decode PEM body")
	}
	return der, nil
}
