// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package build

import (
	"github.com/extsign/extsign/internal/archive"
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/extmanifest"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/signing"
	"github.com/extsign/extsign/internal/updatemanifest"
	"github.com/extsign/extsign/internal/util"
)

const (
	// PlatformMozilla builds XPI packages.
	PlatformMozilla = "mozilla"

	mozillaPackageExt  = "xpi"
	mozillaManifestExt = "rdf"
)

// MozillaPackage builds an unsigned XPI and a signed update.rdf.
type MozillaPackage struct {
	args *Arguments

	installRDF   *extmanifest.Mozilla
	kp           *keys.KeyPair
	version      string
	outputPath   string
	manifestPath string
}

// Validate loads install.rdf and the key.
func (p *MozillaPackage) Validate() error {
	util.Logger.Info("Loading install.rdf", "dir", p.args.BaseDir)
	m, err := extmanifest.LoadMozilla(p.args.BaseDir)
	if err != nil {
		return err
	}
	if p.args.Version != "" {
		if err := m.SetVersion(p.args.Version); err != nil {
			return err
		}
	}
	p.installRDF = m
	p.version = m.Version()
	util.Logger.Info("Package version", "version", p.version)

	p.outputPath = p.args.outputPath(p.version, mozillaPackageExt)
	if p.args.OutFile == "" {
		if err := checkOutput(p.outputPath, p.args.Force); err != nil {
			return err
		}
	}
	if p.args.MakeManifest() {
		p.manifestPath = p.args.manifestPath(p.version, mozillaManifestExt)
	}

	kp, err := loadKey(p.args)
	if err != nil {
		return err
	}
	if p.manifestPath != "" && kp.Algorithm() != "rsa" {
		kp.Close()
		return errs.New(errs.ErrInvalidInput, "signed update manifests require an RSA key, got %s", kp.Algorithm())
	}
	p.kp = kp
	return nil
}

// Build writes the XPI and the update manifest.
func (p *MozillaPackage) Build() (*Result, error) {
	util.Logger.Info("Building Mozilla extension")
	if p.kp == nil {
		return nil, errs.New(errs.ErrInvalidInput, "package not validated")
	}

	b := archive.New(p.args.TempDir)
	if err := b.Open(); err != nil {
		return nil, err
	}
	defer b.Abort()

	b.Skip(extmanifest.MozillaFile)
	if err := b.AddDirContents(p.args.BaseDir, ""); err != nil {
		return nil, err
	}
	util.Logger.Info("Adding extension manifest")
	if err := b.AddBytes(extmanifest.MozillaFile, p.installRDF.Bytes()); err != nil {
		return nil, err
	}

	util.Logger.Info("Compressing package")
	data, err := b.Close()
	if err != nil {
		return nil, err
	}
	if err := archive.Commit(p.outputPath, data); err != nil {
		return nil, err
	}

	res := &Result{
		Platform:    PlatformMozilla,
		ID:          p.extensionGUID(),
		Version:     p.version,
		PackagePath: p.outputPath,
		PackageSize: int64(len(data)),
		Archive:     b.Stats(),
	}

	if p.manifestPath != "" {
		signer, err := signing.New(p.kp)
		if err != nil {
			return nil, err
		}
		res.PackageURL = p.args.PackageURL(p.outputPath)
		minVersion, maxVersion := p.targetRange()
		um := &updatemanifest.Mozilla{
			ExtensionGUID: res.ID,
			TargetAppGUID: p.args.Mozilla.TargetAppGUID,
			Version:       p.version,
			PackagePath:   p.outputPath,
			PackageURL:    res.PackageURL,
			MinVersion:    minVersion,
			MaxVersion:    maxVersion,
			Signer:        signer,
		}
		if _, err := um.Save(p.manifestPath); err != nil {
			return nil, err
		}
		util.Logger.Info("Update manifest written", "path", p.manifestPath)
		res.ManifestPath = p.manifestPath
	}
	return res, nil
}

// extensionGUID prefers the configured GUID over install.rdf's em:id.
func (p *MozillaPackage) extensionGUID() string {
	if p.args.Mozilla.ExtensionGUID != "" {
		return p.args.Mozilla.ExtensionGUID
	}
	return p.installRDF.ID()
}

// targetRange picks the update.rdf version range for the target application:
// the configured bounds, then install.rdf's entry for the same application,
// then the Firefox fallback.
func (p *MozillaPackage) targetRange() (minVersion, maxVersion string) {
	minVersion, maxVersion = p.args.Mozilla.MinVersion, p.args.Mozilla.MaxVersion
	if t, ok := p.installRDF.TargetApplication(p.args.Mozilla.TargetAppGUID); ok {
		if minVersion == "" {
			minVersion = t.MinVersion
		}
		if maxVersion == "" {
			maxVersion = t.MaxVersion
		}
	}
	if minVersion == "" {
		minVersion = util.FallbackMinVersion
	}
	if maxVersion == "" {
		maxVersion = util.FallbackMaxVersion
	}
	if minVersion != p.args.Mozilla.MinVersion || maxVersion != p.args.Mozilla.MaxVersion {
		util.Logger.Info("Target application range", "app", p.args.Mozilla.TargetAppGUID, "min", minVersion, "max", maxVersion)
	}
	return minVersion, maxVersion
}

// Close releases the key pair.
func (p *MozillaPackage) Close() {
	if p.kp != nil {
		p.kp.Close()
	}
}
