// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package main implements a static check that flags log, print, and error
// calls whose arguments look like private keys or passphrases.
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// outputCall matches calls whose arguments end up in logs, terminals, or errors.
var outputCall = regexp.MustCompile(`\b(fmt\.(Print|Sprint|Fprint|Errorf)\w*|log\.\w+|slog\.\w+|Logger\.\w+|util\.Debug|errs\.(Wrap|New)|console\.(Info|Success|Warning|Error|Field))\(`)

// secretIdent matches identifiers that usually hold key material.
var secretIdent = regexp.MustCompile(`(?i)\b(priv\w*|secret\w*|passphrase|pass|plaintext|plain|pem(bytes|data)?|sealed|PrivateKeyPEM)\b`)

// Selectors and names that contain a secret word but never hold a secret.
var safeIdents = []*regexp.Regexp{
	regexp.MustCompile(`\bpassphrase\.[A-Z]\w*`), // package-level identifiers
	regexp.MustCompile(`\bpem\.[A-Z]\w*`),
	regexp.MustCompile(`(?i)\b\w*(len|size|path|file|count)\b`),
}

// stringLiteral matches interpreted and raw string literals.
var stringLiteral = regexp.MustCompile("\"(?:[^\"\\\\]|\\\\.)*\"|`[^`]*`")

type finding struct {
	file   string
	line   int
	text   string
	reason string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keylog <repo-root>")
		os.Exit(1)
	}

	findings, checked, err := scan(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking directory: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Key Logging Analysis\n")
	fmt.Printf("====================\n")
	fmt.Printf("Files checked: %d\n\n", checked)

	if len(findings) == 0 {
		fmt.Println("No issues found.")
		return
	}

	fmt.Printf("Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		fmt.Printf("%s:%d\n  Line: %s\n  Issue: %s\n\n", f.file, f.line, f.text, f.reason)
	}
	os.Exit(1)
}

// scan checks every non-test Go file below root.
func scan(root string) ([]finding, int, error) {
	var findings []finding
	checked := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "vendor", ".git", "testdata", "analysis", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		checked++
		ff, err := checkFile(path)
		if err != nil {
			return err
		}
		findings = append(findings, ff...)
		return nil
	})
	return findings, checked, err
}

func checkFile(path string) ([]finding, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var findings []finding
	sc := bufio.NewScanner(file)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "//") {
			continue
		}
		if reason := checkLine(line); reason != "" {
			findings = append(findings, finding{file: path, line: n, text: line, reason: reason})
		}
	}
	return findings, sc.Err()
}

// checkLine reports why line may leak a secret, or "" if it looks safe.
func checkLine(line string) string {
	loc := outputCall.FindStringIndex(line)
	if loc == nil {
		return ""
	}
	args := stringLiteral.ReplaceAllString(line[loc[1]:], `""`)
	for _, pat := range safeIdents {
		args = pat.ReplaceAllString(args, "_")
	}
	if m := secretIdent.FindString(args); m != "" {
		return fmt.Sprintf("%q passed to an output call", m)
	}
	return ""
}
