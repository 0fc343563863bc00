// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package updatemanifest

import (
	"crypto"
	"encoding/base64"
	"maps"
	"slices"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/signing"
	"github.com/extsign/extsign/internal/util"
)

const (
	// RDFNamespace is bound to the RDF prefix.
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// EMNamespace is Mozilla's extension manager namespace.
	EMNamespace = "http://www.mozilla.org/2004/em-rdf#"

	// ManifestDigest is the digest the update checker verifies with.
	ManifestDigest = signing.DigestSHA512

	extensionURN = "urn:mozilla:extension:"
)

// Mozilla builds a signed update.rdf document.
type Mozilla struct {
	ExtensionGUID string
	TargetAppGUID string
	Version       string
	PackagePath   string
	PackageURL    string
	MinVersion    string
	MaxVersion    string
	Signer        *signing.DataSigner

	doc     string
	message []byte
}

// Generate builds the document, hashes the package and signs the update
// container.
func (m *Mozilla) Generate() error {
	if err := requireFields("mozilla",
		[2]string{"extension guid", m.ExtensionGUID},
		[2]string{"target application guid", m.TargetAppGUID},
		[2]string{"version", m.Version},
		[2]string{"package path", m.PackagePath},
		[2]string{"package url", m.PackageURL},
		[2]string{"min version", m.MinVersion},
		[2]string{"max version", m.MaxVersion},
	); err != nil {
		return err
	}
	if m.Signer == nil {
		return errs.New(errs.ErrEncoding, "mozilla update manifest: no data signer")
	}
	if alg := m.Signer.KeyPair().Algorithm(); alg != "rsa" {
		return errs.New(errs.ErrInvalidInput, "mozilla update manifests require an RSA key, got %s", alg)
	}

	util.Logger.Info("Hashing package", "path", m.PackagePath)
	hash, err := util.HashFile(m.PackagePath, crypto.SHA512)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "hash package %s", m.PackagePath)
	}

	root := element("RDF:RDF", attr{"xmlns:RDF", RDFNamespace}, attr{"xmlns:em", EMNamespace})
	container := root.add(element("RDF:Description", attr{"about", extensionURN + m.ExtensionGUID}))
	li := container.add(element("em:updates")).add(element("RDF:Seq")).add(element("RDF:li"))

	entry := li.add(element("RDF:Description", attr{"about", extensionURN + m.ExtensionGUID + ":" + m.Version}))
	target := entry.add(element("em:targetApplication")).add(element("RDF:Description"))
	info := map[string]string{
		"updateLink": m.PackageURL,
		"id":         m.TargetAppGUID,
		"maxVersion": m.MaxVersion,
		"minVersion": m.MinVersion,
		"updateHash": "sha512:" + hash,
	}
	for _, key := range slices.Sorted(maps.Keys(info)) {
		target.add(textElement("em:"+key, info[key]))
	}
	entry.add(textElement("em:version", m.Version))

	m.message = []byte(container.String() + "\n")

	util.Logger.Info("Signing update manifest", "digest", ManifestDigest)
	sig, err := m.Signer.Sign(m.message, ManifestDigest)
	if err != nil {
		return err
	}
	block, err := SignatureBlock(sig.Bytes)
	if err != nil {
		return err
	}
	container.add(textElement("em:signature", base64.StdEncoding.EncodeToString(block)))

	m.doc = document(root)
	return nil
}

// Save writes or returns the document.
func (m *Mozilla) Save(path string) (string, error) {
	if m.doc == "" {
		if err := m.Generate(); err != nil {
			return "", err
		}
	}
	return save(m.doc, path)
}
