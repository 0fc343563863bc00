// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package testutil provides reusable test infrastructure and utilities.
package testutil

import (
	"embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

//go:embed testdata
var testdata embed.FS

const (
	// RSAExtensionID is the extension id derived from testdata/rsa2048.pem.
	RSAExtensionID = "bagolikejobilomeiklfnhjklgphojlc"

	// RSAPublicKeyDERLen is the length of the SubjectPublicKeyInfo DER of the RSA key.
	RSAPublicKeyDERLen = 294

	// SignedMessage is the payload signed by the reference signatures in testdata.
	SignedMessage = "crx test payload"

	// MozillaGUID is the em:id used in generated install.rdf files.
	MozillaGUID = "test-ext@example.com"
)

func mustRead(t *testing.T, name string) []byte {
	t.Helper()
	data, err := testdata.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("Failed to read test fixture %s: %v", name, err)
	}
	return data
}

// RSAKeyPEM returns a fixed 2048-bit PKCS#1 RSA private key.
func RSAKeyPEM(t *testing.T) []byte { return mustRead(t, "rsa2048.pem") }

// RSAKeyPKCS8PEM returns the same RSA key in PKCS#8 form.
func RSAKeyPKCS8PEM(t *testing.T) []byte { return mustRead(t, "rsa2048_pkcs8.pem") }

// P256KeyPEM returns a fixed SEC1 ECDSA P-256 private key.
func P256KeyPEM(t *testing.T) []byte { return mustRead(t, "p256.pem") }

// Ed25519KeyPEM returns a fixed PKCS#8 Ed25519 private key.
func Ed25519KeyPEM(t *testing.T) []byte { return mustRead(t, "ed25519.pem") }

// RSASignature returns the reference PKCS#1 v1.5 signature of SignedMessage
// produced by openssl with the named digest ("sha1" or "sha512").
func RSASignature(t *testing.T, digest string) []byte {
	t.Helper()
	raw := mustRead(t, fmt.Sprintf("rsa2048_%s.sig.hex", digest))
	sig, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		t.Fatalf("Failed to decode reference signature: %v", err)
	}
	return sig
}

// WriteFile writes data to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// WriteRSAKey writes the fixed RSA key to dir and returns its path.
func WriteRSAKey(t *testing.T, dir string) string {
	t.Helper()
	return WriteFile(t, dir, "key.pem", RSAKeyPEM(t))
}

// ChromeSource creates an unpacked Chrome extension with the given version.
func ChromeSource(t *testing.T, version string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "chrome-src")
	WriteFile(t, dir, "manifest.json", []byte(fmt.Sprintf(`{"name":"Test Extension","version":%q}`, version)))
	WriteFile(t, dir, "icon.png", []byte("\x89PNG\r\n\x1a\nnot really a png"))
	WriteFile(t, dir, "js/content.js", []byte("console.log('hello');\n"))
	return dir
}

// InstallRDF returns an install.rdf document declaring version.
func InstallRDF(version string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<RDF xmlns="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
     xmlns:em="http://www.mozilla.org/2004/em-rdf#">
  <Description about="urn:mozilla:install-manifest">
    <em:id>` + MozillaGUID + `</em:id>
    <em:name>Test Extension</em:name>
    <em:version>` + version + `</em:version>
    <em:type>2</em:type>
    <em:targetApplication>
      <Description>
        <em:id>{ec8030f7-c20a-464f-9b0e-13a3a9e97384}</em:id>
        <em:minVersion>10.0</em:minVersion>
        <em:maxVersion>99.*</em:maxVersion>
      </Description>
    </em:targetApplication>
  </Description>
</RDF>
`
}

// MozillaSource creates an unpacked Mozilla extension with the given version.
func MozillaSource(t *testing.T, version string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "mozilla-src")
	WriteFile(t, dir, "install.rdf", []byte(InstallRDF(version)))
	WriteFile(t, dir, "chrome.manifest", []byte("content test content/\n"))
	WriteFile(t, dir, "content/overlay.js", []byte("var loaded = true;\n"))
	return dir
}
