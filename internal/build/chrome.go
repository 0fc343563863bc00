// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package build

import (
	"github.com/extsign/extsign/internal/crx"
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/extid"
	"github.com/extsign/extsign/internal/extmanifest"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/signing"
	"github.com/extsign/extsign/internal/updatemanifest"
	"github.com/extsign/extsign/internal/util"
)

const (
	// PlatformChrome builds CRX packages.
	PlatformChrome = "chrome"

	chromePackageExt  = "crx"
	chromeManifestExt = "xml"
)

// ChromePackage builds a CRX and a gupdate manifest.
type ChromePackage struct {
	args *Arguments

	manifest     *extmanifest.Chrome
	kp           *keys.KeyPair
	version      string
	outputPath   string
	manifestPath string
}

// Validate loads manifest.json and the key.
func (p *ChromePackage) Validate() error {
	util.Logger.Info("Loading manifest file", "dir", p.args.BaseDir)
	m, err := extmanifest.LoadChrome(p.args.BaseDir)
	if err != nil {
		return err
	}
	if p.args.Version != "" {
		if err := m.SetVersion(p.args.Version); err != nil {
			return err
		}
	}
	p.manifest = m
	p.version = m.Version()
	util.Logger.Info("Package version", "version", p.version)

	p.outputPath = p.args.outputPath(p.version, chromePackageExt)
	if p.args.OutFile == "" {
		if err := checkOutput(p.outputPath, p.args.Force); err != nil {
			return err
		}
	}
	if p.args.MakeManifest() {
		p.manifestPath = p.args.manifestPath(p.version, chromeManifestExt)
	}

	kp, err := loadKey(p.args)
	if err != nil {
		return err
	}
	if alg := kp.Algorithm(); alg != "rsa" {
		kp.Close()
		return errs.New(errs.ErrInvalidInput, "CRX packages require an RSA key, got %s", alg)
	}
	p.kp = kp
	return nil
}

// Build writes the CRX and the update manifest.
func (p *ChromePackage) Build() (*Result, error) {
	util.Logger.Info("Building Chrome extension")
	if p.kp == nil {
		return nil, errs.New(errs.ErrInvalidInput, "package not validated")
	}

	signer, err := signing.New(p.kp)
	if err != nil {
		return nil, err
	}
	id, err := extid.FromKeyPair(p.kp)
	if err != nil {
		return nil, err
	}

	version := p.args.Chrome.CRXVersion
	if version == 0 {
		version = crx.Version2
	}
	w, err := crx.NewWriter(signer, p.args.TempDir, version)
	if err != nil {
		return nil, err
	}
	if err := w.Open(p.outputPath); err != nil {
		return nil, err
	}
	defer w.Abort()

	w.Skip(extmanifest.ChromeFile)
	if err := w.AddDirContents(p.args.BaseDir, ""); err != nil {
		return nil, err
	}
	manifest, err := p.manifest.Bytes()
	if err != nil {
		return nil, err
	}
	util.Logger.Info("Adding extension manifest")
	if err := w.AddBytes(extmanifest.ChromeFile, manifest); err != nil {
		return nil, err
	}

	util.Logger.Info("Compressing package")
	data, err := w.Close()
	if err != nil {
		return nil, err
	}

	res := &Result{
		Platform:    PlatformChrome,
		ID:          id,
		Version:     p.version,
		PackagePath: p.outputPath,
		PackageSize: int64(len(data)),
		Archive:     w.Stats(),
	}

	if p.manifestPath != "" {
		res.PackageURL = p.args.PackageURL(p.outputPath)
		um := &updatemanifest.Chrome{AppID: id, PackageURL: res.PackageURL, Version: p.version}
		if _, err := um.Save(p.manifestPath); err != nil {
			return nil, err
		}
		util.Logger.Info("Update manifest written", "path", p.manifestPath)
		res.ManifestPath = p.manifestPath
	}
	return res, nil
}

// Close releases the key pair.
func (p *ChromePackage) Close() {
	if p.kp != nil {
		p.kp.Close()
	}
}
