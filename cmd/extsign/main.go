// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// extsign packages and signs browser extensions.
//
// Usage:
//
//	extsign [-c config] build --chrome|--mozilla -k key.pem [options]
//	extsign [-c config] id -k key.pem
//	extsign [-c config] keygen [-alg rsa] [-bits 2048] [-seal] out.pem
//	extsign [-c config] seal in.pem out.key
//	extsign [-c config] unseal in.key out.pem
//	extsign inspect file.crx
//	extsign [-c config] nightly [target...]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/passphrase"
	"github.com/extsign/extsign/internal/security"
	"github.com/extsign/extsign/internal/ui"
	"github.com/extsign/extsign/internal/util"
	"github.com/extsign/extsign/internal/version"
)

// app carries what every command needs.
type app struct {
	cfg     util.Config
	console *ui.Console
	stdout  io.Writer
	unlock  keys.PassphraseFunc
}

func newApp(cfg util.Config) *app {
	return &app{
		cfg:     cfg,
		console: ui.Stdout,
		stdout:  os.Stdout,
		unlock: passphrase.Resolver(passphrase.Options{
			Command: cfg.PassphraseCommand,
			File:    cfg.PassphraseFile,
		}),
	}
}

type command struct {
	name  string
	usage string
	run   func(a *app, args []string) error
	keys  bool // loads or writes private keys
}

var commands = []command{
	{"build", "Build a CRX or XPI package and its update manifest", (*app).cmdBuild, true},
	{"id", "Print the Chrome extension id of a key", (*app).cmdID, true},
	{"keygen", "Generate a signing key", (*app).cmdKeygen, true},
	{"seal", "Encrypt a PEM key with a passphrase", (*app).cmdSeal, true},
	{"unseal", "Decrypt a sealed key to PEM", (*app).cmdUnseal, true},
	{"inspect", "Show the header of a CRX file and verify its signature", (*app).cmdInspect, false},
	{"nightly", "Rebuild configured targets whose sources changed", (*app).cmdNightly, true},
}

func main() {
	// Handle --version before flag parsing; build uses -v/--version for the package version
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("extsign %s\n", version.String())
		os.Exit(0)
	}

	var configPath string
	flag.StringVar(&configPath, "c", "", "config file (or set EXTSIGN_CONFIG, default ./"+util.DefaultConfigFile+")")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	util.InitLogger()

	cfg, err := util.LoadConfigFromPath(util.ResolveConfigPath(configPath))
	if err != nil {
		fatal(err)
	}

	for _, c := range commands {
		if c.name == args[0] {
			if c.keys {
				harden(cfg.LockMemory)
			}
			if err := c.run(newApp(cfg), args[1:]); err != nil {
				fatal(err)
			}
			return
		}
	}

	fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
	flag.Usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, "extsign: package and sign browser extensions\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n  extsign [-c config] <command> [options]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'extsign <command> -h' for command options, 'extsign --version' for the version.\n\nFlags:\n")
	flag.PrintDefaults()
}

// harden applies best-effort process protections before keys are touched.
func harden(lockMemory bool) {
	st, err := security.Harden(lockMemory)
	if err != nil {
		util.Logger.Warn("Process hardening incomplete", "error", err)
	}
	util.Debug("Process hardening", "core_dumps_disabled", st.CoreDumpsDisabled, "memory_locked", st.MemoryLocked)
}

func fatal(err error) {
	if kind := errs.Kind(err); kind != "" {
		util.Debug("Command failed", "kind", kind)
	}
	ui.Stderr.Error("%v", err)
	os.Exit(1)
}
