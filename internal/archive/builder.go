// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package archive assembles extension zip archives in a scratch file.
//
// A Builder writes into <tempDir>/<uuid>.zip. Close returns the archive
// bytes and deletes the scratch file; Abort deletes it without returning
// anything and is safe to defer on every path.
package archive

import (
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/fsutil"
	"github.com/extsign/extsign/internal/util"
)

// Stats summarises what was added to an archive.
type Stats struct {
	Files       int
	Dirs        int
	InputBytes  int64
	OutputBytes int64
}

// Builder writes a zip archive entry by entry.
type Builder struct {
	tempDir string
	skip    map[string]bool

	scratch string
	file    *os.File
	zw      *zip.Writer
	stats   Stats
}

// New returns a builder using tempDir for scratch files.
// An empty tempDir selects the system temp directory.
func New(tempDir string) *Builder {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Builder{tempDir: tempDir, skip: make(map[string]bool)}
}

// Skip excludes archive paths (slash-separated, relative to the archive
// root) from AddDir and AddDirContents. Explicit AddFile and AddBytes
// calls are not affected.
func (b *Builder) Skip(names ...string) {
	for _, n := range names {
		b.skip[path.Clean(filepath.ToSlash(n))] = true
	}
}

// ScratchPath returns the scratch file path while the builder is open.
func (b *Builder) ScratchPath() string {
	return b.scratch
}

// Open creates the scratch file.
func (b *Builder) Open() error {
	if b.zw != nil {
		return errs.New(errs.ErrInvalidInput, "archive already open")
	}

	scratch := filepath.Join(b.tempDir, uuid.NewString()+".zip")
	if err := fsutil.IsWritable(scratch); err != nil {
		return errs.Wrap(errs.ErrIO, err, "temporary file path %s is not writable", scratch)
	}
	if err := os.MkdirAll(b.tempDir, 0700); err != nil {
		return errs.Wrap(errs.ErrIO, err, "create temporary directory %s", b.tempDir)
	}

	f, err := os.OpenFile(scratch, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "create temporary file")
	}

	util.Debug("Opened scratch archive", "path", scratch)
	b.scratch = scratch
	b.file = f
	b.zw = zip.NewWriter(f)
	b.stats = Stats{}
	return nil
}

func (b *Builder) requireOpen() error {
	if b.zw == nil {
		return errs.New(errs.ErrInvalidInput, "archive is not open")
	}
	return nil
}

// AddFile adds the file at src under the archive path name.
func (b *Builder) AddFile(src, name string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "add file %s", src)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "add file %s", src)
	}
	if info.IsDir() {
		return errs.New(errs.ErrInvalidInput, "add file %s: is a directory", src)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "add file %s", src)
	}
	hdr.Name = archiveName(name)
	hdr.Method = zip.Deflate

	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "add file %s", src)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "add file %s", src)
	}

	util.Logger.Info("Adding file", "file", hdr.Name)
	b.stats.Files++
	b.stats.InputBytes += n
	return nil
}

// AddBytes adds data under the archive path name.
func (b *Builder) AddBytes(name string, data []byte) error {
	if err := b.requireOpen(); err != nil {
		return err
	}

	hdr := &zip.FileHeader{Name: archiveName(name), Method: zip.Deflate}
	hdr.Modified = time.Now()
	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "add %s", name)
	}
	if _, err := w.Write(data); err != nil {
		return errs.Wrap(errs.ErrIO, err, "add %s", name)
	}

	util.Logger.Info("Adding file", "file", hdr.Name)
	b.stats.Files++
	b.stats.InputBytes += int64(len(data))
	return nil
}

// AddDir adds an entry for the directory name, then the contents of src
// beneath it.
func (b *Builder) AddDir(src, name string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	if name == "" {
		name = filepath.Base(src)
	}
	if err := b.addDirEntry(name); err != nil {
		return err
	}
	return b.AddDirContents(src, name)
}

// AddDirContents adds the entries of src under the archive prefix base
// ("" for the archive root). Dot files are not packaged.
func (b *Builder) AddDirContents(src, base string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "read directory %s", src)
	}

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := path.Join(filepath.ToSlash(base), e.Name())
		if b.skip[name] {
			util.Debug("Skipping entry", "file", name)
			continue
		}

		full := filepath.Join(src, e.Name())
		if e.IsDir() {
			if err := b.AddDir(full, name); err != nil {
				return err
			}
			continue
		}
		if e.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				return errs.Wrap(errs.ErrIO, err, "resolve %s", full)
			}
			if info.IsDir() {
				if err := b.AddDir(full, name); err != nil {
					return err
				}
				continue
			}
		}
		if err := b.AddFile(full, name); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) addDirEntry(name string) error {
	hdr := &zip.FileHeader{Name: archiveName(name) + "/", Method: zip.Store}
	hdr.Modified = time.Now()
	hdr.SetMode(fs.ModeDir | 0755)
	if _, err := b.zw.CreateHeader(hdr); err != nil {
		return errs.Wrap(errs.ErrIO, err, "add directory %s", name)
	}
	b.stats.Dirs++
	return nil
}

// Close finalises the archive, returns its bytes and deletes the scratch file.
func (b *Builder) Close() ([]byte, error) {
	if err := b.requireOpen(); err != nil {
		return nil, err
	}
	defer b.Abort()

	if err := b.zw.Close(); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "finalise archive")
	}
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "rewind archive")
	}
	data, err := io.ReadAll(b.file)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "read archive")
	}
	b.stats.OutputBytes = int64(len(data))
	return data, nil
}

// Abort closes and deletes the scratch file. It is a no-op when the
// builder is not open.
func (b *Builder) Abort() {
	if b.file == nil {
		return
	}
	_ = b.file.Close()
	if err := os.Remove(b.scratch); err != nil && !os.IsNotExist(err) {
		util.Logger.Warn("Failed to remove temporary file", "path", b.scratch, "error", err)
	}
	b.file = nil
	b.zw = nil
	b.scratch = ""
}

// Stats returns counters for the entries added so far.
func (b *Builder) Stats() Stats {
	return b.stats
}

// archiveName normalises a local name to a slash-separated relative path.
func archiveName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
}
