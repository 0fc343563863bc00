// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package extmanifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/extsign/extsign/internal/errs"
)

// ChromeFile is the manifest name at the root of a Chrome extension.
const ChromeFile = "manifest.json"

//go:embed chrome_schema.json
var chromeSchemaJSON string

var chromeSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(chromeSchemaJSON))
})

// Chrome is a parsed manifest.json. The raw document is packaged as is
// until the version changes; then all fields, unknown ones included, are
// re-encoded.
type Chrome struct {
	raw    []byte
	fields map[string]any
}

// LoadChrome reads and validates dir/manifest.json.
func LoadChrome(dir string) (*Chrome, error) {
	path := filepath.Join(dir, ChromeFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "manifest file %s does not exist or is not readable", path)
	}
	return ParseChrome(data)
}

// ParseChrome validates data against the manifest schema and decodes it.
func ParseChrome(data []byte) (*Chrome, error) {
	schema, err := chromeSchema()
	if err != nil {
		return nil, errs.Wrap(errs.ErrEncoding, err, "compile manifest schema")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, err, "manifest file does not contain valid JSON")
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, errs.New(errs.ErrInvalidInput, "manifest file is invalid: %s", strings.Join(problems, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, err, "decode manifest file")
	}

	m := &Chrome{raw: data, fields: fields}
	if err := ValidVersion(m.Version()); err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns the extension name, or "" if the manifest has none.
func (m *Chrome) Name() string {
	s, _ := m.fields["name"].(string)
	return s
}

// Version returns the manifest version string.
func (m *Chrome) Version() string {
	s, _ := m.fields["version"].(string)
	return s
}

// SetVersion validates v and replaces the manifest version.
func (m *Chrome) SetVersion(v string) error {
	if err := ValidVersion(v); err != nil {
		return err
	}
	m.fields["version"] = v
	m.raw = nil
	return nil
}

// Bytes returns the original document, or compact JSON after SetVersion.
func (m *Chrome) Bytes() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m.fields); err != nil {
		return nil, errs.Wrap(errs.ErrEncoding, err, "encode manifest file")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
