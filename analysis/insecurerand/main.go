// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package main implements a static check that keeps math/rand out of the
// packages that generate keys, seal them, or produce signatures.
package main

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// criticalDirs must only draw randomness from crypto/rand.
var criticalDirs = []string{
	"internal/crypto",
	"internal/keygen",
	"internal/keys",
	"internal/signing",
	"internal/crx",
	"internal/updatemanifest",
}

var mathRandImports = map[string]bool{
	"math/rand":    true,
	"math/rand/v2": true,
}

// Calls that only exist in math/rand.
var mathRandOnlyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rand\.Seed\(`),
	regexp.MustCompile(`rand\.Intn\(`),
	regexp.MustCompile(`rand\.Int(31|63)n?\(`),
	regexp.MustCompile(`rand\.Float(32|64)\(`),
	regexp.MustCompile(`rand\.Perm\(`),
	regexp.MustCompile(`rand\.Shuffle\(`),
	regexp.MustCompile(`rand\.NewSource\(`),
	regexp.MustCompile(`rand\.(IntN|N|Uint64N)\(`),
}

type finding struct {
	file   string
	line   int
	text   string
	reason string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: insecurerand <repo-root>")
		os.Exit(1)
	}

	findings, checked, err := scan(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Insecure Random Analysis\n")
	fmt.Printf("========================\n")
	fmt.Printf("Files checked: %d\n", checked)
	fmt.Printf("Critical directories: %v\n\n", criticalDirs)

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

// scan checks every non-test Go file below the critical directories of root.
func scan(root string) ([]finding, int, error) {
	var findings []finding
	checked := 0
	for _, dir := range criticalDirs {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
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
		if err != nil {
			return nil, checked, fmt.Errorf("walk %s: %w", dir, err)
		}
	}
	return findings, checked, nil
}

func checkFile(path string) ([]finding, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}

	var findings []finding
	hasCryptoRand := false
	for _, imp := range f.Imports {
		p, _ := strconv.Unquote(imp.Path.Value)
		if p == "crypto/rand" {
			hasCryptoRand = true
		}
		if mathRandImports[p] {
			findings = append(findings, finding{
				file:   path,
				line:   fset.Position(imp.Pos()).Line,
				text:   imp.Path.Value,
				reason: "math/rand import in security-critical package, use crypto/rand",
			})
		}
	}
	// An aliased import still shows up through its call names.
	if hasCryptoRand {
		return findings, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	sc := bufio.NewScanner(file)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "//") {
			continue
		}
		for _, pat := range mathRandOnlyPatterns {
			if pat.MatchString(line) {
				findings = append(findings, finding{
					file:   path,
					line:   n,
					text:   line,
					reason: "math/rand function in security-critical code",
				})
				break
			}
		}
	}
	return findings, sc.Err()
}
