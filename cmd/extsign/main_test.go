// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/extsign/extsign/internal/build"
	"github.com/extsign/extsign/internal/crypto"
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/testutil"
	"github.com/extsign/extsign/internal/ui"
	"github.com/extsign/extsign/internal/util"
)

const testPassphrase = "correct horse battery staple"

// testApp returns an app whose output lands in the returned buffer.
func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := util.DefaultConfig()
	cfg.TempDir = filepath.Join(t.TempDir(), "scratch")
	return &app{
		cfg:     cfg,
		console: ui.New(&out),
		stdout:  &out,
		unlock: func() ([]byte, error) {
			return []byte(testPassphrase), nil
		},
	}, &out
}

// TestParseBuildArgsAliases verifies that short and long flags fill the same fields
func TestParseBuildArgsAliases(t *testing.T) {
	a, _ := testApp(t)

	short, err := parseBuildArgs(a, []string{"--chrome", "-k", "key.pem", "-o", "out.crx", "-v", "1.2", "-d", "src", "-m", "up.xml", "-u", "https://x/%s", "-f"}, io.Discard)
	if err != nil {
		t.Fatalf("parseBuildArgs(short) failed: %v", err)
	}
	long, err := parseBuildArgs(a, []string{"--chrome", "--key", "key.pem", "--out-file", "out.crx", "--version", "1.2", "--base-dir", "src", "--manifest", "up.xml", "--url", "https://x/%s", "--force"}, io.Discard)
	if err != nil {
		t.Fatalf("parseBuildArgs(long) failed: %v", err)
	}

	short.Unlock, long.Unlock = nil, nil
	if diff := cmp.Diff(short, long); diff != "" {
		t.Errorf("short and long flags differ (-short +long):\n%s", diff)
	}
	if short.Platform != build.PlatformChrome || !short.Force || short.Version != "1.2" {
		t.Errorf("unexpected arguments: %+v", short)
	}
	if short.TempDir != a.cfg.TempDir {
		t.Errorf("TempDir = %q, want config value %q", short.TempDir, a.cfg.TempDir)
	}
}

// TestParseBuildArgsErrors verifies rejected command lines
func TestParseBuildArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"both platforms", []string{"--chrome", "--mozilla", "-k", "key.pem"}},
		{"positional", []string{"--chrome", "extra"}},
		{"unknown flag", []string{"--opera"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := testApp(t)
			_, err := parseBuildArgs(a, tt.args, io.Discard)
			if !errors.Is(err, errs.ErrInvalidInput) {
				t.Errorf("parseBuildArgs(%v) error = %v, want ErrInvalidInput", tt.args, err)
			}
		})
	}
}

// TestBuildAndInspect builds a CRX through the command and inspects it
func TestBuildAndInspect(t *testing.T) {
	a, out := testApp(t)
	src := testutil.ChromeSource(t, "1.0")
	keyFile := testutil.WriteRSAKey(t, t.TempDir())
	dir := t.TempDir()
	pkg := filepath.Join(dir, "ext.crx")
	manifest := filepath.Join(dir, "update.xml")

	err := a.cmdBuild([]string{"--chrome", "-k", keyFile, "-d", src, "-o", pkg, "-m", manifest, "-u", "https://example.com/%s"})
	if err != nil {
		t.Fatalf("cmdBuild failed: %v", err)
	}
	for _, want := range []string{"Built chrome 1.0", pkg, testutil.RSAExtensionID, manifest} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("build output missing %q:\n%s", want, out.String())
		}
	}

	update, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read update manifest: %v", err)
	}
	if !strings.Contains(string(update), `codebase="https://example.com/ext.crx"`) {
		t.Errorf("update manifest has no codebase for ext.crx:\n%s", update)
	}

	out.Reset()
	if err := a.cmdInspect([]string{pkg}); err != nil {
		t.Fatalf("cmdInspect failed: %v", err)
	}
	for _, want := range []string{"CRX2", testutil.RSAExtensionID, "Signature valid"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("inspect output missing %q:\n%s", want, out.String())
		}
	}
}

// TestInspectTampered verifies that a modified archive fails verification
func TestInspectTampered(t *testing.T) {
	a, out := testApp(t)
	src := testutil.ChromeSource(t, "1.0")
	keyFile := testutil.WriteRSAKey(t, t.TempDir())
	pkg := filepath.Join(t.TempDir(), "ext.crx")

	if err := a.cmdBuild([]string{"--chrome", "-k", keyFile, "-d", src, "-o", pkg, "-n"}); err != nil {
		t.Fatalf("cmdBuild failed: %v", err)
	}
	data, err := os.ReadFile(pkg)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	testutil.WriteFile(t, filepath.Dir(pkg), "ext.crx", data)

	out.Reset()
	if err := a.cmdInspect([]string{pkg}); err == nil {
		t.Fatal("cmdInspect succeeded on a tampered package")
	}
	if !strings.Contains(out.String(), "Signature does not match") {
		t.Errorf("inspect output does not report the bad signature:\n%s", out.String())
	}
}

// TestID verifies the id command prints the id of the fixed key
func TestID(t *testing.T) {
	a, out := testApp(t)
	keyFile := testutil.WriteRSAKey(t, t.TempDir())

	if err := a.cmdID([]string{"-k", keyFile}); err != nil {
		t.Fatalf("cmdID failed: %v", err)
	}
	if got := out.String(); got != testutil.RSAExtensionID+"\n" {
		t.Errorf("cmdID output = %q, want %q", got, testutil.RSAExtensionID)
	}

	if err := a.cmdID(nil); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("cmdID without a key: error = %v, want ErrInvalidInput", err)
	}
}

// TestSealUnsealRoundTrip seals a PEM key and recovers the same key
func TestSealUnsealRoundTrip(t *testing.T) {
	a, _ := testApp(t)
	dir := t.TempDir()
	plain := testutil.WriteRSAKey(t, dir)
	sealed := filepath.Join(dir, "key.sealed")
	recovered := filepath.Join(dir, "recovered.pem")

	if err := a.cmdSeal([]string{plain, sealed}); err != nil {
		t.Fatalf("cmdSeal failed: %v", err)
	}
	data, err := os.ReadFile(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if !crypto.IsSealed(data) {
		t.Fatalf("sealed file is not an envelope:\n%s", data)
	}
	info, err := os.Stat(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != secretPerm {
		t.Errorf("sealed file mode = %o, want %o", perm, secretPerm)
	}

	if err := a.cmdSeal([]string{sealed, filepath.Join(dir, "twice")}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("sealing a sealed file: error = %v, want ErrInvalidInput", err)
	}

	if err := a.cmdUnseal([]string{sealed, recovered}); err != nil {
		t.Fatalf("cmdUnseal failed: %v", err)
	}
	want, err := keys.LoadFile(plain, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer want.Close()
	got, err := keys.LoadFile(recovered, nil)
	if err != nil {
		t.Fatalf("load recovered key: %v", err)
	}
	defer got.Close()

	wantDER, _ := want.PublicKeyDER()
	gotDER, _ := got.PublicKeyDER()
	if !bytes.Equal(wantDER, gotDER) {
		t.Error("recovered key does not match the original")
	}

	if err := a.cmdUnseal([]string{sealed, recovered}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("unseal over an existing file: error = %v, want ErrInvalidInput", err)
	}
}

// TestKeygen generates a key and checks the refusal to overwrite
func TestKeygen(t *testing.T) {
	a, out := testApp(t)
	path := filepath.Join(t.TempDir(), "new.pem")

	if err := a.cmdKeygen([]string{"-alg", "ed25519", path}); err != nil {
		t.Fatalf("cmdKeygen failed: %v", err)
	}
	kp, err := keys.LoadFile(path, nil)
	if err != nil {
		t.Fatalf("load generated key: %v", err)
	}
	defer kp.Close()
	if kp.Algorithm() != "ed25519" {
		t.Errorf("Algorithm() = %q, want ed25519", kp.Algorithm())
	}
	if !strings.Contains(out.String(), "Wrote ed25519 key") {
		t.Errorf("unexpected keygen output:\n%s", out.String())
	}

	if err := a.cmdKeygen([]string{"-alg", "ed25519", path}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("keygen over an existing file: error = %v, want ErrInvalidInput", err)
	}
	if err := a.cmdKeygen([]string{"-alg", "ed25519", "-f", path}); err != nil {
		t.Errorf("keygen -f failed: %v", err)
	}
	if err := a.cmdKeygen([]string{"-alg", "dsa", filepath.Join(t.TempDir(), "x.pem")}); err == nil {
		t.Error("keygen accepted an unknown algorithm")
	}
}
