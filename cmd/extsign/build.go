// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"flag"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/extsign/extsign/internal/build"
	"github.com/extsign/extsign/internal/errs"
)

// stringFlag registers a short and a long name for one string flag.
func stringFlag(fs *flag.FlagSet, p *string, short, long, usage string) {
	fs.StringVar(p, short, "", usage)
	fs.StringVar(p, long, "", usage+" (same as -"+short+")")
}

func boolFlag(fs *flag.FlagSet, p *bool, short, long, usage string) {
	fs.BoolVar(p, short, false, usage)
	fs.BoolVar(p, long, false, usage+" (same as -"+short+")")
}

// parseBuildArgs maps the build command line onto build arguments.
func parseBuildArgs(a *app, args []string, output io.Writer) (*build.Arguments, error) {
	ba := build.ArgumentsFromConfig(a.cfg)
	ba.Unlock = a.unlock

	var chrome, mozilla bool
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.BoolVar(&chrome, "chrome", false, "build a Chrome CRX package")
	fs.BoolVar(&mozilla, "mozilla", false, "build a Mozilla XPI package")
	stringFlag(fs, &ba.KeyFile, "k", "key", "path to the PEM encoded (or sealed) private key (required)")
	stringFlag(fs, &ba.OutFile, "o", "out-file", "package path (default <package_name>_<version>.<ext> in the working directory)")
	boolFlag(fs, &ba.Force, "f", "force", "overwrite the output file if it exists")
	stringFlag(fs, &ba.Version, "v", "version", "package version (default: the version in the extension manifest)")
	stringFlag(fs, &ba.BaseDir, "d", "base-dir", "extension source directory (default: working directory)")
	stringFlag(fs, &ba.ManifestFile, "m", "manifest", "update manifest path (default update_<version>.xml|rdf in the working directory)")
	boolFlag(fs, &ba.NoManifest, "n", "no-manifest", "do not create an update manifest")
	stringFlag(fs, &ba.URL, "u", "url", "package URL; %s is replaced with the package file name")
	tempDir := ba.TempDir
	stringFlag(fs, &tempDir, "t", "temp-dir", "directory for scratch archives (default: temp_dir from config)")

	if err := fs.Parse(args); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, err, "build")
	}
	if fs.NArg() > 0 {
		return nil, errs.New(errs.ErrInvalidInput, "unexpected arguments: %v", fs.Args())
	}

	switch {
	case chrome && mozilla:
		return nil, errs.New(errs.ErrInvalidInput, "you must specify only one target platform")
	case chrome:
		ba.Platform = build.PlatformChrome
	case mozilla:
		ba.Platform = build.PlatformMozilla
	}
	if tempDir != "" {
		ba.TempDir = tempDir
	}
	return &ba, nil
}

func (a *app) cmdBuild(args []string) error {
	ba, err := parseBuildArgs(a, args, a.stdout)
	if err != nil {
		return err
	}

	res, err := build.Run(ba)
	if err != nil {
		return err
	}

	a.console.Success("Built %s %s", res.Platform, res.Version)
	a.console.Field("Package", res.PackagePath)
	a.console.Field("Size", humanize.Bytes(uint64(res.PackageSize)))
	a.console.Field("Files", res.Archive.Files)
	a.console.Field("ID", res.ID)
	if res.ManifestPath != "" {
		a.console.Field("Manifest", res.ManifestPath)
		a.console.Field("URL", res.PackageURL)
	}
	return nil
}
