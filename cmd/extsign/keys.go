// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/extsign/extsign/internal/crypto"
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/extid"
	"github.com/extsign/extsign/internal/keygen"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/util"
)

// secretPerm is the mode of written private key files.
const secretPerm os.FileMode = 0600

func (a *app) cmdID(args []string) error {
	var keyFile string
	fs := flag.NewFlagSet("id", flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	stringFlag(fs, &keyFile, "k", "key", "path to the private key (required)")
	if err := fs.Parse(args); err != nil {
		return errs.Wrap(errs.ErrInvalidInput, err, "id")
	}
	if keyFile == "" {
		return errs.New(errs.ErrInvalidInput, "no private key specified, you must use the -k/--key option")
	}

	kp, err := keys.LoadFile(keyFile, a.unlock)
	if err != nil {
		return err
	}
	defer kp.Close()

	id, err := extid.FromKeyPair(kp)
	if err != nil {
		return err
	}
	_, _ = a.stdout.Write([]byte(id + "\n"))
	return nil
}

func (a *app) cmdKeygen(args []string) error {
	var (
		alg   string
		bits  int
		seal  bool
		force bool
	)
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	fs.StringVar(&alg, "alg", "rsa", "key algorithm ("+strings.Join(keygen.Algorithms(), ", ")+"); CRX and update.rdf need rsa")
	fs.IntVar(&bits, "bits", 2048, "RSA modulus size")
	fs.BoolVar(&seal, "seal", false, "encrypt the key with a passphrase")
	fs.BoolVar(&force, "f", false, "overwrite the output file if it exists")
	if err := fs.Parse(args); err != nil {
		return errs.Wrap(errs.ErrInvalidInput, err, "keygen")
	}
	if fs.NArg() != 1 {
		return errs.New(errs.ErrInvalidInput, "usage: extsign keygen [-alg rsa] [-bits 2048] [-seal] <out>")
	}
	out := fs.Arg(0)

	util.Logger.Info("Generating key", "algorithm", alg, "bits", bits)
	kp, err := keygen.Generate(alg, bits)
	if err != nil {
		return err
	}
	defer kp.Close()

	data, err := kp.PrivateKeyPEM()
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(data)

	if seal {
		if data, err = a.seal(data); err != nil {
			return err
		}
	}
	if err := writeSecret(out, data, force); err != nil {
		return err
	}

	a.console.Success("Wrote %s key to %s", kp.Algorithm(), out)
	if kp.Algorithm() == "rsa" {
		id, err := extid.FromKeyPair(kp)
		if err != nil {
			return err
		}
		a.console.Field("Extension ID", id)
	}
	return nil
}

func (a *app) cmdSeal(args []string) error {
	in, out, force, err := a.inOut("seal", args)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "read %s", in)
	}
	defer crypto.ZeroBytes(data)
	if crypto.IsSealed(data) {
		return errs.New(errs.ErrInvalidInput, "%s is already sealed", in)
	}

	// refuse to seal something that is not a usable key
	kp, err := keys.LoadPEM(data)
	if err != nil {
		return err
	}
	kp.Close()

	sealed, err := a.seal(data)
	if err != nil {
		return err
	}
	if err := writeSecret(out, sealed, force); err != nil {
		return err
	}
	a.console.Success("Sealed %s to %s", in, out)
	return nil
}

func (a *app) cmdUnseal(args []string) error {
	in, out, force, err := a.inOut("unseal", args)
	if err != nil {
		return err
	}

	kp, err := keys.LoadFile(in, a.unlock)
	if err != nil {
		return err
	}
	defer kp.Close()

	data, err := kp.PrivateKeyPEM()
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(data)

	if err := writeSecret(out, data, force); err != nil {
		return err
	}
	a.console.Warning("Wrote an unencrypted private key to %s", out)
	return nil
}

// inOut parses "[-f] <in> <out>".
func (a *app) inOut(name string, args []string) (in, out string, force bool, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	fs.BoolVar(&force, "f", false, "overwrite the output file if it exists")
	if err := fs.Parse(args); err != nil {
		return "", "", false, errs.Wrap(errs.ErrInvalidInput, err, "%s", name)
	}
	if fs.NArg() != 2 {
		return "", "", false, errs.New(errs.ErrInvalidInput, "usage: extsign %s [-f] <in> <out>", name)
	}
	return fs.Arg(0), fs.Arg(1), force, nil
}

// seal encrypts plaintext with a passphrase from the configured sources.
func (a *app) seal(plaintext []byte) ([]byte, error) {
	raw, err := a.unlock()
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, err, "read passphrase")
	}
	pass := crypto.NewPassphrase(raw)
	crypto.ZeroBytes(raw)
	defer pass.Destroy()

	var sealed []byte
	err = pass.WithBytes(func(b []byte) error {
		var err error
		sealed, err = crypto.Seal(plaintext, b)
		return err
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrSigning, err, "seal key")
	}
	return sealed, nil
}

// writeSecret writes a key file with owner-only permissions.
func writeSecret(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, secretPerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return errs.Wrap(errs.ErrInvalidInput, err, "%s already exists, use -f to overwrite", path)
		}
		return errs.Wrap(errs.ErrIO, err, "create %s", path)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errs.Wrap(errs.ErrIO, err, "write %s", path)
	}
	if err := f.Chmod(secretPerm); err != nil {
		_ = f.Close()
		return errs.Wrap(errs.ErrIO, err, "set permissions on %s", path)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.ErrIO, err, "close %s", path)
	}
	util.Debug("Wrote key file", "path", path)
	return nil
}
