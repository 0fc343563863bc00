// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package passphrase resolves the passphrase that unseals a key file.
//
// Sources are tried in order:
//  1. EXTSIGN_PASSPHRASE environment variable
//  2. passphrase_command (argv printing the passphrase on stdout)
//  3. passphrase_file
//  4. interactive prompt on the terminal, or one line of stdin
package passphrase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/extsign/extsign/internal/crypto"
	"github.com/extsign/extsign/internal/keys"
)

const (
	// EnvVar holds a passphrase for unattended builds.
	EnvVar = "EXTSIGN_PASSPHRASE"

	// commandTimeout is the maximum time allowed for the passphrase command to complete.
	commandTimeout = 5 * time.Second

	// maxOutputBytes is the maximum stdout size from the passphrase command (8 KB).
	maxOutputBytes = 8 * 1024
)

// ErrEmpty is returned when a source yields no passphrase.
var ErrEmpty = errors.New("empty passphrase")

// Options configures the non-interactive sources.
type Options struct {
	Command []string
	File    string

	// Prompt is printed before reading from the terminal.
	Prompt string
	Stdin  *os.File
	Stderr io.Writer
}

// Resolver returns a keys.PassphraseFunc consulting the configured sources.
// It is only invoked when a sealed key is actually loaded. The first
// successful lookup is kept for the life of the resolver, so concurrent
// builds prompt or read stdin once; each caller gets its own copy to zero.
func Resolver(opts Options) keys.PassphraseFunc {
	var (
		mu     sync.Mutex
		cached *crypto.Passphrase
	)
	return func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()

		if cached == nil {
			pass, err := lookup(opts)
			if err != nil {
				return nil, err
			}
			cached = crypto.NewPassphrase(pass)
			crypto.ZeroBytes(pass)
		}

		var out []byte
		err := cached.WithBytes(func(b []byte) error {
			out = bytes.Clone(b)
			return nil
		})
		return out, err
	}
}

func lookup(opts Options) ([]byte, error) {
	if v := os.Getenv(EnvVar); v != "" {
		return []byte(v), nil
	}
	if len(opts.Command) > 0 {
		return RunCommand(opts.Command)
	}
	if opts.File != "" {
		return ReadFile(opts.File)
	}
	return Prompt(opts)
}

// ReadFile reads a passphrase from path, stripping one trailing newline.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("passphrase_file: %w", err)
	}
	out := stripNewline(data)
	if len(out) == 0 {
		crypto.ZeroBytes(data)
		return nil, fmt.Errorf("passphrase_file: %w", ErrEmpty)
	}
	result := bytes.Clone(out)
	crypto.ZeroBytes(data)
	return result, nil
}

// Prompt reads a passphrase without echo when stdin is a terminal,
// otherwise reads one line.
func Prompt(opts Options) ([]byte, error) {
	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = "Key passphrase: "
	}

	fd := int(stdin.Fd()) // #nosec G115 - file descriptors are small integers
	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(stderr, prompt)
		pass, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(stderr)
		if err != nil {
			return nil, err
		}
		if len(pass) == 0 {
			return nil, ErrEmpty
		}
		return pass, nil
	}

	line, err := bufio.NewReader(stdin).ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, fmt.Errorf("read passphrase from stdin: %w", err)
	}
	out := stripNewline(line)
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// RunCommand executes argv and returns its stdout as the passphrase.
//
// Output contract:
//   - Exactly one trailing newline is stripped (not TrimSpace)
//   - NUL bytes are rejected
//   - Output prefixed with "base64:" is base64-decoded
//   - Output prefixed with "hex:" is hex-decoded
//   - Otherwise output is returned as raw bytes
//
// The returned []byte should be zeroed by the caller after use.
func RunCommand(argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("passphrase_command: must be non-empty")
	}
	if !filepath.IsAbs(argv[0]) {
		return nil, fmt.Errorf("passphrase_command: argv[0] must be an absolute path, got %q", argv[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from the operator's config
	var stdout bytes.Buffer
	defer func() {
		crypto.ZeroBytes(stdout.Bytes())
		stdout.Reset()
	}()
	lw := &limitedWriter{w: &stdout, remaining: maxOutputBytes}
	cmd.Stdout = lw
	// stderr is discarded: a misbehaving helper could print secrets there.
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("passphrase_command: command timed out after %s", commandTimeout)
		}
		return nil, fmt.Errorf("passphrase_command: command failed: %w", err)
	}
	if lw.truncated {
		return nil, fmt.Errorf("passphrase_command: stdout exceeded %d bytes", maxOutputBytes)
	}

	output := stripNewline(stdout.Bytes())
	if len(output) == 0 {
		return nil, fmt.Errorf("passphrase_command: %w", ErrEmpty)
	}
	if bytes.IndexByte(output, 0) >= 0 {
		return nil, fmt.Errorf("passphrase_command: output contains NUL bytes (invalid)")
	}
	return decodeOutput(output)
}

// decodeOutput handles base64: and hex: prefixed output, or returns a copy.
func decodeOutput(output []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(output, []byte("base64:")):
		encoded := output[len("base64:"):]
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
		n, err := base64.StdEncoding.Decode(decoded, encoded)
		if err != nil {
			crypto.ZeroBytes(decoded)
			return nil, fmt.Errorf("passphrase_command: invalid base64 output: %w", err)
		}
		return decoded[:n], nil
	case bytes.HasPrefix(output, []byte("hex:")):
		encoded := output[len("hex:"):]
		decoded := make([]byte, hex.DecodedLen(len(encoded)))
		n, err := hex.Decode(decoded, encoded)
		if err != nil {
			crypto.ZeroBytes(decoded)
			return nil, fmt.Errorf("passphrase_command: invalid hex output: %w", err)
		}
		return decoded[:n], nil
	default:
		return bytes.Clone(output), nil
	}
}

// stripNewline removes exactly one trailing "\n" or "\r\n".
func stripNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
		if n := len(b); n > 0 && b[n-1] == '\r' {
			b = b[:n-1]
		}
	}
	return b
}

// limitedWriter stops writing after a byte limit and records truncation.
type limitedWriter struct {
	w         io.Writer
	remaining int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining <= 0 {
		lw.truncated = true
		return len(p), nil
	}
	originalLen := len(p)
	if int64(originalLen) > lw.remaining {
		p = p[:lw.remaining]
		lw.truncated = true
	}
	n, err := lw.w.Write(p)
	lw.remaining -= int64(n)
	if err != nil {
		return n, err
	}
	// Report the original length so the child process doesn't see a short write.
	return originalLen, nil
}
