// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package extmanifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/extsign/extsign/internal/errs"
)

const (
	// MozillaFile is the manifest name at the root of a Mozilla extension.
	MozillaFile = "install.rdf"

	rdfNamespace       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	emNamespace        = "http://www.mozilla.org/2004/em-rdf#"
	installManifestURN = "urn:mozilla:install-manifest"
)

// versionAttr finds an em:version attribute inside a raw start tag.
var versionAttr = regexp.MustCompile(`\s[A-Za-z_][\w.-]*:version\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// TargetApplication is one em:targetApplication entry of install.rdf.
type TargetApplication struct {
	ID         string
	MinVersion string
	MaxVersion string
}

// span is a byte range of the raw document.
type span struct {
	start, end int64
}

// Mozilla is a parsed install.rdf. The raw document is kept so a version
// change rewrites only the version text.
type Mozilla struct {
	data    []byte
	id      string
	version string
	where   span
	targets []TargetApplication
}

// LoadMozilla reads and parses dir/install.rdf.
func LoadMozilla(dir string) (*Mozilla, error) {
	path := filepath.Join(dir, MozillaFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "install.rdf %s does not exist or is not readable", path)
	}
	return ParseMozilla(data)
}

// capture collects the text of one element.
type capture struct {
	depth int
	dst   *string
	start int64
	text  strings.Builder
	span  *span
}

// ParseMozilla locates the install manifest description and reads its id,
// version and target applications. Both child element and attribute forms
// are accepted.
func ParseMozilla(data []byte) (*Mozilla, error) {
	m := &Mozilla{data: data}
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		depth         int
		installDepth  = -1
		targetDepth   = -1
		target        *TargetApplication
		cur           *capture
		versionFound  bool
		installClosed bool
	)

	for !installClosed {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidInput, err, "install.rdf does not contain valid XML")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			d := depth
			depth++

			switch {
			case installDepth < 0 && isDescription(t) && attrValue(t, "", "about") == installManifestURN:
				installDepth = d
				if id := attrValue(t, emNamespace, "id"); id != "" {
					m.id = id
				}
				if v := attrValue(t, emNamespace, "version"); v != "" {
					s, ok := locateVersionAttr(data, before, dec.InputOffset())
					if !ok {
						return nil, errs.New(errs.ErrInvalidInput, "install.rdf: cannot locate em:version attribute")
					}
					m.version, m.where, versionFound = v, s, true
				}

			case installDepth >= 0 && d == installDepth+1 && t.Name.Space == emNamespace:
				switch t.Name.Local {
				case "id":
					cur = &capture{depth: d, dst: &m.id}
				case "version":
					cur = &capture{depth: d, dst: &m.version, start: dec.InputOffset(), span: &m.where}
					versionFound = true
				case "targetApplication":
					target, targetDepth = &TargetApplication{}, d
				}

			case target != nil && d == targetDepth+1 && isDescription(t):
				target.ID = attrValue(t, emNamespace, "id")
				target.MinVersion = attrValue(t, emNamespace, "minVersion")
				target.MaxVersion = attrValue(t, emNamespace, "maxVersion")

			case target != nil && d == targetDepth+2 && t.Name.Space == emNamespace:
				switch t.Name.Local {
				case "id":
					cur = &capture{depth: d, dst: &target.ID}
				case "minVersion":
					cur = &capture{depth: d, dst: &target.MinVersion}
				case "maxVersion":
					cur = &capture{depth: d, dst: &target.MaxVersion}
				}
			}

		case xml.CharData:
			if cur != nil {
				cur.text.Write(t)
			}

		case xml.EndElement:
			depth--
			switch {
			case cur != nil && depth == cur.depth:
				*cur.dst = strings.TrimSpace(cur.text.String())
				if cur.span != nil {
					*cur.span = span{start: cur.start, end: before}
				}
				cur = nil
			case target != nil && depth == targetDepth:
				m.targets = append(m.targets, *target)
				target, targetDepth = nil, -1
			case depth == installDepth:
				installClosed = true
			}
		}
	}

	if installDepth < 0 {
		return nil, errs.New(errs.ErrInvalidInput, "install.rdf has no %s description", installManifestURN)
	}
	if m.id == "" {
		return nil, errs.New(errs.ErrInvalidInput, "install.rdf has no em:id")
	}
	if !versionFound || m.version == "" {
		return nil, errs.New(errs.ErrInvalidInput, "install.rdf has no em:version")
	}
	return m, nil
}

func isDescription(t xml.StartElement) bool {
	return t.Name.Space == rdfNamespace && t.Name.Local == "Description"
}

// attrValue returns the attribute with the given local name. An empty
// space matches any namespace.
func attrValue(t xml.StartElement, space, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local && (space == "" || a.Name.Space == space) {
			return a.Value
		}
	}
	return ""
}

// locateVersionAttr finds the value of the version attribute within the
// start tag occupying data[start:end].
func locateVersionAttr(data []byte, start, end int64) (span, bool) {
	loc := versionAttr.FindSubmatchIndex(data[start:end])
	if loc == nil {
		return span{}, false
	}
	for g := 1; g <= 2; g++ {
		if loc[2*g] >= 0 {
			return span{start: start + int64(loc[2*g]), end: start + int64(loc[2*g+1])}, true
		}
	}
	return span{}, false
}

// ID returns the extension id (em:id).
func (m *Mozilla) ID() string {
	return m.id
}

// Version returns the extension version (em:version).
func (m *Mozilla) Version() string {
	return m.version
}

// TargetApplication returns the entry for the application id.
func (m *Mozilla) TargetApplication(id string) (TargetApplication, bool) {
	for _, t := range m.targets {
		if t.ID == id {
			return t, true
		}
	}
	return TargetApplication{}, false
}

// SetVersion replaces the version text, leaving the rest of the document
// byte for byte unchanged.
func (m *Mozilla) SetVersion(v string) error {
	if err := validToolkitVersion(v); err != nil {
		return err
	}

	var esc bytes.Buffer
	if err := xml.EscapeText(&esc, []byte(v)); err != nil {
		return errs.Wrap(errs.ErrEncoding, err, "escape version")
	}

	out := make([]byte, 0, len(m.data)-int(m.where.end-m.where.start)+esc.Len())
	out = append(out, m.data[:m.where.start]...)
	out = append(out, esc.Bytes()...)
	out = append(out, m.data[m.where.end:]...)

	m.data = out
	m.where.end = m.where.start + int64(esc.Len())
	m.version = v
	return nil
}

// Bytes returns the current document.
func (m *Mozilla) Bytes() []byte {
	return m.data
}
