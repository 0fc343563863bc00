// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package updatemanifest

import (
	"strings"
)

const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

const indent = "  "

type attr struct {
	name  string
	value string
}

// node is an element of a generated document. Names carry their prefix
// verbatim ("RDF:Description") since the consumers match on qualified names.
type node struct {
	name     string
	attrs    []attr
	text     string
	children []*node
}

func element(name string, attrs ...attr) *node {
	return &node{name: name, attrs: attrs}
}

func textElement(name, text string) *node {
	return &node{name: name, text: text}
}

// add appends child and returns it.
func (n *node) add(child *node) *node {
	n.children = append(n.children, child)
	return child
}

// String serializes the subtree as if n were the document root, without a
// trailing newline.
func (n *node) String() string {
	var b strings.Builder
	n.write(&b, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

// write emits one element per line. Elements holding only text stay on a
// single line and empty elements self-close.
func (n *node) write(b *strings.Builder, depth int) {
	pad := strings.Repeat(indent, depth)
	b.WriteString(pad)
	b.WriteByte('<')
	b.WriteString(n.name)
	for _, a := range n.attrs {
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteString(`="`)
		_, _ = attrEscaper.WriteString(b, a.value)
		b.WriteByte('"')
	}

	switch {
	case len(n.children) == 0 && n.text == "":
		b.WriteString("/>\n")
		return
	case len(n.children) == 0:
		b.WriteByte('>')
		_, _ = textEscaper.WriteString(b, n.text)
	default:
		b.WriteString(">\n")
		for _, c := range n.children {
			c.write(b, depth+1)
		}
		b.WriteString(pad)
	}
	b.WriteString("</")
	b.WriteString(n.name)
	b.WriteString(">\n")
}

// document renders root with the XML declaration.
func document(root *node) string {
	return xmlDeclaration + root.String() + "\n"
}

// Quotes stay raw in text; signed messages must match what libxml2 would
// have serialized.
var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#13;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\r", "&#13;", "\n", "&#10;", "\t", "&#9;")
)
