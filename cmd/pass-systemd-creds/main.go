// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// pass-systemd-creds prints the passphrase of a sealed signing key from a
// systemd credential, so unattended nightly builds never hold it in a
// plaintext file. Use it as passphrase_command:
//
//	passphrase_command: ["/usr/local/bin/pass-systemd-creds", "read", "/etc/extsign/passphrase.cred"]
//
// When extsign runs from a unit with
//
//	LoadCredentialEncrypted=extsign-passphrase:/etc/extsign/passphrase.cred
//
// the plaintext is read from $CREDENTIALS_DIRECTORY and no root access is
// needed. Otherwise systemd-creds decrypt is called directly.
//
//	pass-systemd-creds read  <credential-file>
//	pass-systemd-creds write <credential-file>   (passphrase on stdin)
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

const credentialName = "extsign-passphrase"

// systemdCredsPath must be absolute: passphrase commands run without PATH lookups.
var systemdCredsPath = "/usr/bin/systemd-creds"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintf(stderr, "Usage: pass-systemd-creds <read|write> <credential-file>\n")
		return 2
	}
	verb, credFile := args[0], args[1]

	switch verb {
	case "read":
		passphrase, err := readPassphrase(credFile)
		if err != nil {
			fmt.Fprintf(stderr, "pass-systemd-creds: read: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(passphrase)
		return 0

	case "write":
		passphrase, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "pass-systemd-creds: read stdin: %v\n", err)
			return 1
		}
		if err := writePassphrase(passphrase, credFile); err != nil {
			fmt.Fprintf(stderr, "pass-systemd-creds: write: %v\n", err)
			return 1
		}
		return 0

	default:
		fmt.Fprintf(stderr, "pass-systemd-creds: unknown verb %q (expected read or write)\n", verb)
		return 2
	}
}

// readPassphrase prefers the credential systemd already decrypted for the unit.
func readPassphrase(credFile string) ([]byte, error) {
	if dir := os.Getenv("CREDENTIALS_DIRECTORY"); dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, credentialName))
		if err == nil {
			return data, nil
		}
	}
	if _, err := os.Stat(systemdCredsPath); err != nil {
		return nil, fmt.Errorf("CREDENTIALS_DIRECTORY has no %s and %s is not available", credentialName, systemdCredsPath)
	}
	return decrypt(credFile)
}

// writePassphrase encrypts passphrase to credFile and checks it decrypts.
func writePassphrase(passphrase []byte, credFile string) error {
	if len(bytes.TrimSpace(passphrase)) == 0 {
		return fmt.Errorf("empty passphrase")
	}
	if _, err := os.Stat(systemdCredsPath); err != nil {
		return fmt.Errorf("%s not found", systemdCredsPath)
	}

	cmd := exec.Command(systemdCredsPath, "encrypt", "--name="+credentialName, "-", credFile)
	cmd.Stdin = bytes.NewReader(passphrase)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}

	decrypted, err := decrypt(credFile)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !bytes.Equal(passphrase, decrypted) {
		return fmt.Errorf("round-trip verification failed")
	}
	return nil
}

func decrypt(credFile string) ([]byte, error) {
	cmd := exec.Command(systemdCredsPath, "decrypt", "--name="+credentialName, credFile, "-")
	cmd.Stderr = os.Stderr
	return cmd.Output()
}
