// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package build

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"

	"github.com/extsign/extsign/internal/crx"
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/extmanifest"
	"github.com/extsign/extsign/internal/testutil"
	"github.com/extsign/extsign/internal/util"
)

// readZip returns the entries of a zip archive keyed by name.
func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader failed: %v", err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = string(body)
	}
	return out
}

func names(entries map[string]string) []string {
	var out []string
	for n := range entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// TestChromeEndToEnd builds the minimal extension and checks every output
func TestChromeEndToEnd(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFile(t, src, "manifest.json", []byte(`{"version":"1.0"}`))
	testutil.WriteFile(t, src, "icon.png", []byte("png"))
	keyFile := testutil.WriteRSAKey(t, t.TempDir())
	work := t.TempDir()
	tmp := filepath.Join(t.TempDir(), "scratch")

	res, err := Run(&Arguments{
		Platform: PlatformChrome,
		KeyFile:  keyFile,
		BaseDir:  src,
		URL:      "https://example.com/dl/%s",
		TempDir:  tmp,
		WorkDir:  work,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantPkg := filepath.Join(work, "extension_1.0.crx")
	wantManifest := filepath.Join(work, "update_1.0.xml")
	if res.PackagePath != wantPkg || res.ManifestPath != wantManifest {
		t.Errorf("paths = %s, %s; want %s, %s", res.PackagePath, res.ManifestPath, wantPkg, wantManifest)
	}
	if res.ID != testutil.RSAExtensionID {
		t.Errorf("ID = %s, want %s", res.ID, testutil.RSAExtensionID)
	}
	if res.PackageURL != "https://example.com/dl/extension_1.0.crx" {
		t.Errorf("PackageURL = %s", res.PackageURL)
	}

	data, err := os.ReadFile(wantPkg)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if int64(len(data)) != res.PackageSize {
		t.Errorf("PackageSize = %d, file has %d bytes", res.PackageSize, len(data))
	}
	h, err := crx.Verify(data)
	if err != nil {
		t.Fatalf("crx.Verify failed: %v", err)
	}
	if h.ExtensionID() != testutil.RSAExtensionID {
		t.Errorf("embedded key id = %s", h.ExtensionID())
	}

	_, zipData, _ := crx.Decode(data)
	entries := readZip(t, zipData)
	if diff := cmp.Diff([]string{"icon.png", "manifest.json"}, names(entries)); diff != "" {
		t.Errorf("zip entries mismatch (-want +got):\n%s", diff)
	}
	if entries["manifest.json"] != `{"version":"1.0"}` {
		t.Errorf("manifest.json = %s", entries["manifest.json"])
	}

	doc, err := os.ReadFile(wantManifest)
	if err != nil {
		t.Fatalf("ReadFile(manifest) failed: %v", err)
	}
	wantLine := `<updatecheck codebase="https://example.com/dl/extension_1.0.crx" version="1.0"/>`
	if !strings.Contains(string(doc), wantLine) || !strings.Contains(string(doc), `appid="`+testutil.RSAExtensionID+`"`) {
		t.Errorf("update manifest:\n%s", doc)
	}

	scratch, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir(temp) failed: %v", err)
	}
	if len(scratch) != 0 {
		t.Errorf("temp dir holds %d leftover files", len(scratch))
	}
}

// TestChromeVersionOverride verifies -v rewrites manifest.json in the package
func TestChromeVersionOverride(t *testing.T) {
	src := testutil.ChromeSource(t, "1.0")
	out := filepath.Join(t.TempDir(), "out.crx")

	res, err := Run(&Arguments{
		Platform:   PlatformChrome,
		KeyFile:    testutil.WriteRSAKey(t, t.TempDir()),
		BaseDir:    src,
		Version:    "1.0.42",
		OutFile:    out,
		NoManifest: true,
		TempDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Version != "1.0.42" || res.ManifestPath != "" {
		t.Errorf("Result = %+v", res)
	}

	data, _ := os.ReadFile(out)
	_, zipData, err := crx.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	entries := readZip(t, zipData)
	m, err := extmanifest.ParseChrome([]byte(entries["manifest.json"]))
	if err != nil {
		t.Fatalf("packaged manifest invalid: %v", err)
	}
	if m.Version() != "1.0.42" {
		t.Errorf("packaged version = %s", m.Version())
	}
	want := []string{"icon.png", "js/", "js/content.js", "manifest.json"}
	if diff := cmp.Diff(want, names(entries)); diff != "" {
		t.Errorf("zip entries mismatch (-want +got):\n%s", diff)
	}

	// the source tree is never modified
	orig, _ := extmanifest.LoadChrome(src)
	if orig.Version() != "1.0" {
		t.Errorf("source manifest rewritten to %s", orig.Version())
	}
}

// TestChromePackagesManifestVerbatim verifies manifest.json is not
// re-encoded when the version is not overridden
func TestChromePackagesManifestVerbatim(t *testing.T) {
	src := t.TempDir()
	manifest := "{\n  \"version\": \"1.0\",\n  \"name\": \"x\"\n}\n"
	testutil.WriteFile(t, src, "manifest.json", []byte(manifest))
	out := filepath.Join(t.TempDir(), "out.crx")

	if _, err := Run(&Arguments{
		Platform:   PlatformChrome,
		KeyFile:    testutil.WriteRSAKey(t, t.TempDir()),
		BaseDir:    src,
		OutFile:    out,
		NoManifest: true,
		TempDir:    t.TempDir(),
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	_, zipData, err := crx.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := readZip(t, zipData)["manifest.json"]; got != manifest {
		t.Errorf("packaged manifest.json = %q, want %q", got, manifest)
	}
}

// TestMozillaEndToEnd builds an XPI with a signed update.rdf
func TestMozillaEndToEnd(t *testing.T) {
	src := testutil.MozillaSource(t, "2.0")
	work := t.TempDir()

	res, err := Run(&Arguments{
		Platform: PlatformMozilla,
		KeyFile:  testutil.WriteRSAKey(t, t.TempDir()),
		BaseDir:  src,
		Version:  "2.0.1",
		URL:      "https://example.com/%s",
		TempDir:  t.TempDir(),
		WorkDir:  work,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.ID != testutil.MozillaGUID {
		t.Errorf("ID = %s, want %s", res.ID, testutil.MozillaGUID)
	}
	data, err := os.ReadFile(filepath.Join(work, "extension_2.0.1.xpi"))
	if err != nil {
		t.Fatalf("ReadFile(xpi) failed: %v", err)
	}
	entries := readZip(t, data)
	if diff := cmp.Diff(testutil.InstallRDF("2.0.1"), entries["install.rdf"]); diff != "" {
		t.Errorf("packaged install.rdf mismatch (-want +got):\n%s", diff)
	}
	if _, ok := entries["content/overlay.js"]; !ok {
		t.Errorf("content/overlay.js missing from %v", names(entries))
	}

	doc, err := os.ReadFile(filepath.Join(work, "update_2.0.1.rdf"))
	if err != nil {
		t.Fatalf("ReadFile(rdf) failed: %v", err)
	}
	for _, want := range []string{
		`about="urn:mozilla:extension:` + testutil.MozillaGUID + `:2.0.1"`,
		"<em:updateLink>https://example.com/extension_2.0.1.xpi</em:updateLink>",
		"<em:signature>",
	} {
		if !strings.Contains(string(doc), want) {
			t.Errorf("update.rdf missing %q:\n%s", want, doc)
		}
	}
}

// TestMozillaConfiguredGUID verifies the configured GUID overrides em:id
func TestMozillaConfiguredGUID(t *testing.T) {
	args := &Arguments{
		Platform:   PlatformMozilla,
		KeyFile:    testutil.WriteRSAKey(t, t.TempDir()),
		BaseDir:    testutil.MozillaSource(t, "1.0"),
		NoManifest: true,
		TempDir:    t.TempDir(),
		WorkDir:    t.TempDir(),
	}
	args.Mozilla.ExtensionGUID = "other@example.com"

	res, err := Run(args)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ID != "other@example.com" {
		t.Errorf("ID = %s", res.ID)
	}
}

const thunderbirdGUID = "{3550f703-e582-4d05-9a08-453d09bdfdc6}"

// multiTargetRDF declares Firefox 52.0 to 60.* and Thunderbird 45.0 to 52.*.
const multiTargetRDF = `<?xml version="1.0" encoding="utf-8"?>
<RDF xmlns="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
     xmlns:em="http://www.mozilla.org/2004/em-rdf#">
  <Description about="urn:mozilla:install-manifest">
    <em:id>range@example.com</em:id>
    <em:version>4.0</em:version>
    <em:targetApplication>
      <Description>
        <em:id>{ec8030f7-c20a-464f-9b0e-13a3a9e97384}</em:id>
        <em:minVersion>52.0</em:minVersion>
        <em:maxVersion>60.*</em:maxVersion>
      </Description>
    </em:targetApplication>
    <em:targetApplication>
      <Description em:id="{3550f703-e582-4d05-9a08-453d09bdfdc6}" em:minVersion="45.0" em:maxVersion="52.*"/>
    </em:targetApplication>
  </Description>
</RDF>
`

// TestMozillaTargetRange verifies where the update.rdf version range comes from
func TestMozillaTargetRange(t *testing.T) {
	tests := []struct {
		name     string
		app      string
		min, max string
		wantMin  string
		wantMax  string
	}{
		{"from install.rdf", "", "", "", "52.0", "60.*"},
		{"second application", thunderbirdGUID, "", "", "45.0", "52.*"},
		{"configured max wins", "", "", "61.*", "52.0", "61.*"},
		{"configured range wins", "", "55.0", "58.*", "55.0", "58.*"},
		{"undeclared application", "{aa3c5121-dab2-40e2-81ca-7ea25febc110}", "", "", util.FallbackMinVersion, util.FallbackMaxVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "src")
			testutil.WriteFile(t, src, "install.rdf", []byte(multiTargetRDF))
			work := t.TempDir()
			args := &Arguments{
				Platform: PlatformMozilla,
				KeyFile:  testutil.WriteRSAKey(t, t.TempDir()),
				BaseDir:  src,
				URL:      "https://example.com/%s",
				TempDir:  t.TempDir(),
				WorkDir:  work,
			}
			args.Mozilla.TargetAppGUID = tt.app
			args.Mozilla.MinVersion = tt.min
			args.Mozilla.MaxVersion = tt.max

			if _, err := Run(args); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			doc, err := os.ReadFile(filepath.Join(work, "update_4.0.rdf"))
			if err != nil {
				t.Fatalf("ReadFile(rdf) failed: %v", err)
			}
			for _, want := range []string{
				"<em:minVersion>" + tt.wantMin + "</em:minVersion>",
				"<em:maxVersion>" + tt.wantMax + "</em:maxVersion>",
			} {
				if !strings.Contains(string(doc), want) {
					t.Errorf("update.rdf missing %s:\n%s", want, doc)
				}
			}
		})
	}
}

// TestArgumentsValidate covers the argument rules
func TestArgumentsValidate(t *testing.T) {
	keyFile := testutil.WriteRSAKey(t, t.TempDir())
	src := testutil.ChromeSource(t, "1.0")
	existing := testutil.WriteFile(t, t.TempDir(), "exists.crx", []byte("old"))

	base := func() Arguments {
		return Arguments{Platform: PlatformChrome, KeyFile: keyFile, BaseDir: src, URL: "u", WorkDir: t.TempDir()}
	}

	tests := []struct {
		name   string
		mutate func(a *Arguments)
		ok     bool
	}{
		{"valid", func(a *Arguments) {}, true},
		{"no platform", func(a *Arguments) { a.Platform = "" }, false},
		{"unknown platform", func(a *Arguments) { a.Platform = "safari" }, false},
		{"no key", func(a *Arguments) { a.KeyFile = "" }, false},
		{"missing key", func(a *Arguments) { a.KeyFile = filepath.Join(src, "absent.pem") }, false},
		{"key is dir", func(a *Arguments) { a.KeyFile = src }, false},
		{"missing base dir", func(a *Arguments) { a.BaseDir = filepath.Join(src, "absent") }, false},
		{"base dir is file", func(a *Arguments) { a.BaseDir = keyFile }, false},
		{"output exists", func(a *Arguments) { a.OutFile = existing }, false},
		{"output exists forced", func(a *Arguments) { a.OutFile = existing; a.Force = true }, true},
		{"no url", func(a *Arguments) { a.URL = "" }, false},
		{"no url without manifest", func(a *Arguments) { a.URL = ""; a.NoManifest = true }, true},
		{"manifest and no manifest", func(a *Arguments) { a.NoManifest = true; a.ManifestFile = "m.xml" }, false},
		{"package name with slash", func(a *Arguments) { a.PackageName = "a/b" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base()
			tt.mutate(&a)
			err := a.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, errs.ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

// TestValidateDefaultsBaseDir verifies the base dir defaults to the work dir
func TestValidateDefaultsBaseDir(t *testing.T) {
	work := t.TempDir()
	a := Arguments{Platform: PlatformChrome, KeyFile: testutil.WriteRSAKey(t, t.TempDir()), NoManifest: true, WorkDir: work}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if a.BaseDir != work || a.PackageName != "extension" || a.Chrome.CRXVersion != 2 {
		t.Errorf("defaults not applied: %+v", a)
	}
}

// TestDefaultOutputExists verifies the derived output path is not overwritten
func TestDefaultOutputExists(t *testing.T) {
	work := t.TempDir()
	testutil.WriteFile(t, work, "extension_1.0.crx", []byte("old"))

	_, err := Run(&Arguments{
		Platform:   PlatformChrome,
		KeyFile:    testutil.WriteRSAKey(t, t.TempDir()),
		BaseDir:    testutil.ChromeSource(t, "1.0"),
		NoManifest: true,
		WorkDir:    work,
		TempDir:    t.TempDir(),
	})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("Run() error = %v, want ErrInvalidInput", err)
	}
}

// TestChromeRejectsNonRSAKey verifies CRX2 packages need an RSA key
func TestChromeRejectsNonRSAKey(t *testing.T) {
	_, err := Run(&Arguments{
		Platform:   PlatformChrome,
		KeyFile:    testutil.WriteFile(t, t.TempDir(), "ec.pem", testutil.P256KeyPEM(t)),
		BaseDir:    testutil.ChromeSource(t, "1.0"),
		NoManifest: true,
		WorkDir:    t.TempDir(),
	})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("Run() error = %v, want ErrInvalidInput", err)
	}
}

// TestPackageURL verifies placeholder substitution
func TestPackageURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/%s", "https://example.com/ext_1.crx"},
		{"https://example.com/fixed.crx", "https://example.com/fixed.crx"},
		{"https://example.com/%s?f=%s", "https://example.com/ext_1.crx?f=ext_1.crx"},
	}
	for _, tt := range tests {
		a := Arguments{URL: tt.url}
		if got := a.PackageURL("/out/dir/ext_1.crx"); got != tt.want {
			t.Errorf("PackageURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

// TestPlatforms lists the registered platforms
func TestPlatforms(t *testing.T) {
	if diff := cmp.Diff([]string{"chrome", "mozilla"}, Platforms()); diff != "" {
		t.Errorf("Platforms() mismatch (-want +got):\n%s", diff)
	}
}
