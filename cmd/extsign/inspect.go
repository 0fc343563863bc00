// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/extsign/extsign/internal/crx"
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/signing"
)

func (a *app) cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	if err := fs.Parse(args); err != nil {
		return errs.Wrap(errs.ErrInvalidInput, err, "inspect")
	}
	if fs.NArg() != 1 {
		return errs.New(errs.ErrInvalidInput, "usage: extsign inspect <file.crx>")
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "read %s", path)
	}

	header, zip, err := crx.Decode(data)
	if err != nil {
		return err
	}

	a.console.Header(path)
	a.console.Field("Format", fmt.Sprintf("CRX%d", header.Version))
	a.console.Field("ID", header.ExtensionID())
	a.console.Field("Public key", humanize.Bytes(uint64(len(header.PublicKey))))
	a.console.Field("Signature", humanize.Bytes(uint64(len(header.Signature))))
	a.console.Field("Archive", humanize.Bytes(uint64(len(zip))))

	if _, err := crx.Verify(data); err != nil {
		if errors.Is(err, signing.ErrVerification) {
			a.console.Error("Signature does not match the archive")
		}
		return err
	}
	a.console.Success("Signature valid")
	return nil
}
