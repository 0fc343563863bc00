// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc generates markdown documentation from Go struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/extsign/extsign/internal/passphrase"
	"github.com/extsign/extsign/internal/util"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		return
	}
	writeReference(os.Stdout)
}

func writeReference(w io.Writer) {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	p("# Configuration Reference\n\n")
	p("Auto-generated from Go struct tags. Do not edit manually.\n\n")
	p("---\n\n")

	p("## extsign.yaml\n\n")
	p("File: `-c <path>`, else `EXTSIGN_CONFIG`, else `./%s`. Relative paths are resolved against the file's directory.\n\n", util.DefaultConfigFile)
	writeStructTable(w, reflect.TypeOf(util.Config{}), "")
	p("\n")

	p("### Nightly targets\n\n")
	p("Each entry of `targets`:\n\n")
	writeStructTable(w, reflect.TypeOf(util.Target{}), "")
	p("\n")

	p("## Environment Variables\n\n")
	writeEnvVars(w)
}

func writeStructTable(w io.Writer, t reflect.Type, prefix string) {
	if prefix == "" {
		_, _ = fmt.Fprintln(w, "| Field | Type | Default | Description |")
		_, _ = fmt.Fprintln(w, "|-------|------|---------|-------------|")
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		fieldName := strings.Split(tag, ",")[0]
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		desc := field.Tag.Get("description")

		// Nested config blocks, by value or by pointer
		nested := field.Type
		if nested.Kind() == reflect.Ptr {
			nested = nested.Elem()
		}
		if nested.Kind() == reflect.Struct {
			if desc == "" {
				desc = "(nested config block)"
			}
			_, _ = fmt.Fprintf(w, "| `%s` | object | (none) | %s |\n", fieldName, desc)
			writeStructTable(w, nested, fieldName)
			continue
		}

		if desc == "" {
			desc = "(no description)"
		}

		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}

		_, _ = fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n", fieldName, formatType(field.Type), def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "uint"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Struct {
			return "[]object"
		}
		return "[]" + formatType(t.Elem())
	case reflect.Ptr:
		return "*" + formatType(t.Elem())
	default:
		return t.String()
	}
}

func writeEnvVars(w io.Writer) {
	envVars := []EnvVar{
		{"EXTSIGN_CONFIG", "Path of the config file when `-c` is not given"},
		{passphrase.EnvVar, "Passphrase for sealed key files (highest priority)"},
		{util.DebugEnvVar, "Set to any value to enable debug logging"},
	}

	_, _ = fmt.Fprintln(w, "| Variable | Description |")
	_, _ = fmt.Fprintln(w, "|----------|-------------|")
	for _, env := range envVars {
		_, _ = fmt.Fprintf(w, "| `%s` | %s |\n", env.Name, env.Description)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "### Passphrase Precedence")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "For sealed key files:")
	_, _ = fmt.Fprintf(w, "1. `%s` environment variable (highest priority)\n", passphrase.EnvVar)
	_, _ = fmt.Fprintln(w, "2. `passphrase_command` config option (headless mode)")
	_, _ = fmt.Fprintln(w, "3. `passphrase_file` config option")
	_, _ = fmt.Fprintln(w, "4. Interactive prompt")
}
