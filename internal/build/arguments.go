// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package build turns an unpacked extension directory into a signed
// package and, optionally, the update manifest that announces it.
package build

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/fsutil"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/util"
)

// URLPlaceholder in Arguments.URL is replaced by the package file name.
const URLPlaceholder = "%s"

// Arguments are the inputs of one build.
type Arguments struct {
	Platform     string
	KeyFile      string
	BaseDir      string
	Version      string
	OutFile      string
	Force        bool
	ManifestFile string
	NoManifest   bool
	URL          string
	TempDir      string

	// WorkDir receives default output files. Defaults to the working directory.
	WorkDir     string
	PackageName string
	Chrome      util.ChromeConfig
	Mozilla     util.MozillaConfig

	// Unlock supplies the passphrase of a sealed key file.
	Unlock keys.PassphraseFunc
}

// ArgumentsFromConfig returns arguments carrying the config-level settings.
func ArgumentsFromConfig(cfg util.Config) Arguments {
	return Arguments{
		TempDir:     cfg.TempDir,
		PackageName: cfg.PackageName,
		Chrome:      cfg.Chrome,
		Mozilla:     cfg.Mozilla,
	}
}

// Validate checks the arguments and fills in defaults. It does not read
// the extension manifest; that happens in Package.Validate.
func (a *Arguments) Validate() error {
	util.Debug("Detecting platform")
	if a.Platform == "" {
		return errs.New(errs.ErrInvalidInput, "you must specify a target platform with the --chrome or --mozilla flags")
	}
	if _, err := platforms.Lookup(a.Platform); err != nil {
		return err
	}

	util.Debug("Validating private key file")
	if a.KeyFile == "" {
		return errs.New(errs.ErrInvalidInput, "no private key specified, you must use the -k/--key option")
	}
	if err := readableFile(a.KeyFile); err != nil {
		return errs.Wrap(errs.ErrInvalidInput, err, "the specified private key file does not exist or is not readable")
	}

	if a.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errs.Wrap(errs.ErrIO, err, "determine working directory")
		}
		a.WorkDir = wd
	}

	util.Debug("Locating package source base directory")
	if a.BaseDir == "" {
		a.BaseDir = a.WorkDir
	}
	if err := readableDir(a.BaseDir); err != nil {
		return errs.Wrap(errs.ErrInvalidInput, err, "the specified base directory does not exist or is not readable")
	}

	defaults := util.DefaultConfig()
	if a.PackageName == "" {
		a.PackageName = defaults.PackageName
	}
	if a.Chrome.CRXVersion == 0 {
		a.Chrome.CRXVersion = defaults.Chrome.CRXVersion
	}
	if a.Mozilla.TargetAppGUID == "" {
		a.Mozilla.TargetAppGUID = defaults.Mozilla.TargetAppGUID
	}
	if strings.ContainsAny(a.PackageName, `/\`) {
		return errs.New(errs.ErrInvalidInput, "package name %q must not contain path separators", a.PackageName)
	}

	if a.OutFile != "" {
		if err := checkOutput(a.OutFile, a.Force); err != nil {
			return err
		}
	}

	if a.NoManifest {
		if a.ManifestFile != "" {
			return errs.New(errs.ErrInvalidInput, "-m/--manifest and -n/--no-manifest are mutually exclusive")
		}
		return nil
	}
	if a.ManifestFile != "" {
		if err := fsutil.IsWritable(a.ManifestFile); err != nil {
			return errs.Wrap(errs.ErrInvalidInput, err, "unable to open manifest file %s for writing", a.ManifestFile)
		}
	}
	if a.URL == "" {
		return errs.New(errs.ErrInvalidInput, "no package URL specified, use -u/--url or -n/--no-manifest")
	}
	return nil
}

// MakeManifest reports whether an update manifest will be written.
func (a *Arguments) MakeManifest() bool {
	return !a.NoManifest
}

// PackageURL substitutes the package file name into the URL template.
func (a *Arguments) PackageURL(outputPath string) string {
	return strings.ReplaceAll(a.URL, URLPlaceholder, filepath.Base(outputPath))
}

// outputPath returns the package path, defaulting to
// <WorkDir>/<PackageName>_<version>.<ext>.
func (a *Arguments) outputPath(version, ext string) string {
	if a.OutFile != "" {
		return a.OutFile
	}
	return filepath.Join(a.WorkDir, PackageFileName(a.PackageName, version, ext))
}

// manifestPath returns the update manifest path, defaulting to
// <WorkDir>/update_<version>.<ext>.
func (a *Arguments) manifestPath(version, ext string) string {
	if a.ManifestFile != "" {
		return a.ManifestFile
	}
	return filepath.Join(a.WorkDir, "update_"+version+"."+ext)
}

// PackageFileName returns <name>_<version>.<ext>.
func PackageFileName(name, version, ext string) string {
	return name + "_" + version + "." + ext
}

func readableFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errs.New(errs.ErrInvalidInput, "%s is not a regular file", path)
	}
	return nil
}

func readableDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errs.New(errs.ErrInvalidInput, "%s is not a directory", path)
	}
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// checkOutput refuses to overwrite without force and checks the path can
// be written.
func checkOutput(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errs.New(errs.ErrInvalidInput, "output file %s already exists, use the -f/--force option to overwrite", path)
	}
	if err := fsutil.IsWritable(path); err != nil {
		return errs.Wrap(errs.ErrInvalidInput, err, "unable to open output file %s for writing", path)
	}
	return nil
}
