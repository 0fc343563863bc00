// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package build

import (
	"github.com/dustin/go-humanize"

	"github.com/extsign/extsign/internal/archive"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/util"
)

// Package builds one extension for one platform.
type Package interface {
	// Validate loads the extension manifest and key and resolves the
	// version and output paths.
	Validate() error

	// Build writes the package and, if requested, the update manifest.
	Build() (*Result, error)

	// Close releases the key pair.
	Close()
}

// Factory creates a package for validated arguments.
type Factory func(args *Arguments) Package

var platforms = util.NewRegistry[Factory]("platform")

// Register adds a platform. It panics on duplicate names.
func Register(name string, f Factory) {
	platforms.Register(name, f)
}

// Platforms lists the registered platform names.
func Platforms() []string {
	return platforms.Names()
}

func init() {
	Register(PlatformChrome, func(args *Arguments) Package { return &ChromePackage{args: args} })
	Register(PlatformMozilla, func(args *Arguments) Package { return &MozillaPackage{args: args} })
}

// Result describes the files a build produced.
type Result struct {
	Platform     string
	ID           string
	Version      string
	PackagePath  string
	PackageURL   string
	PackageSize  int64
	ManifestPath string
	Archive      archive.Stats
}

// Run validates args, then builds the package they describe.
func Run(args *Arguments) (*Result, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	factory, err := platforms.Lookup(args.Platform)
	if err != nil {
		return nil, err
	}

	pkg := factory(args)
	defer pkg.Close()

	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	res, err := pkg.Build()
	if err != nil {
		return nil, err
	}

	util.Logger.Info("Binary built successfully",
		"path", res.PackagePath,
		"size", humanize.Bytes(uint64(res.PackageSize)),
		"files", res.Archive.Files,
		"input", humanize.Bytes(uint64(res.Archive.InputBytes)),
	)
	return res, nil
}

// loadKey loads the signing key named by args.
func loadKey(args *Arguments) (*keys.KeyPair, error) {
	util.Logger.Info("Loading cryptographic keys", "path", args.KeyFile)
	return keys.LoadFile(args.KeyFile, args.Unlock)
}
