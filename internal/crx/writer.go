// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crx

import (
	"github.com/extsign/extsign/internal/archive"
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/signing"
	"github.com/extsign/extsign/internal/util"
)

// Writer is an archive builder whose Close signs the zip and writes a CRX.
type Writer struct {
	*archive.Builder

	signer  *signing.DataSigner
	version uint32
	output  string
}

// NewWriter returns a writer signing with signer. version selects the
// container format.
func NewWriter(signer *signing.DataSigner, tempDir string, version uint32) (*Writer, error) {
	if signer == nil {
		return nil, errs.New(errs.ErrInvalidInput, "no data signer supplied")
	}
	if _, err := DigestFor(version); err != nil {
		return nil, err
	}
	return &Writer{Builder: archive.New(tempDir), signer: signer, version: version}, nil
}

// Open starts a package that Close will write to output.
func (w *Writer) Open(output string) error {
	if output == "" {
		return errs.New(errs.ErrInvalidInput, "no output path for CRX")
	}
	w.output = output
	return w.Builder.Open()
}

// Close finalises the zip, signs it, and writes header and zip to the
// output path. It returns the complete CRX bytes.
func (w *Writer) Close() ([]byte, error) {
	zip, err := w.Builder.Close()
	if err != nil {
		return nil, err
	}

	digest, err := DigestFor(w.version)
	if err != nil {
		return nil, err
	}
	sig, err := w.signer.Sign(zip, digest)
	if err != nil {
		return nil, err
	}
	pub, err := w.signer.KeyPair().PublicKeyDER()
	if err != nil {
		return nil, err
	}

	data, err := Encode(zip, pub, sig.Bytes, w.version)
	if err != nil {
		return nil, err
	}
	if err := archive.Commit(w.output, data); err != nil {
		return nil, err
	}

	util.Debug("Wrote CRX", "path", w.output, "key_bytes", len(pub), "signature_bytes", len(sig.Bytes))
	return data, nil
}
