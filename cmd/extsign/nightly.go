// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/nightly"
)

func (a *app) cmdNightly(args []string) error {
	fs := flag.NewFlagSet("nightly", flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	if err := fs.Parse(args); err != nil {
		return errs.Wrap(errs.ErrInvalidInput, err, "nightly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	outcomes, err := nightly.NewRunner(a.cfg, a.unlock).Run(ctx, fs.Args()...)
	a.reportOutcomes(outcomes)
	if err != nil {
		return err
	}
	a.console.Info("Nightly run finished in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *app) reportOutcomes(outcomes []nightly.Outcome) {
	for _, o := range outcomes {
		if !o.Built {
			a.console.Info("%s: unchanged, latest is %s", o.Target, o.Version)
			continue
		}
		a.console.Success("%s: built %s", o.Target, o.Version)
		if o.Result != nil {
			a.console.Field("Package", o.Result.PackagePath)
			a.console.Field("Size", humanize.Bytes(uint64(o.Result.PackageSize)))
		}
		for _, p := range o.Pruned {
			a.console.Field("Pruned", p)
		}
	}
}
