// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package nightly rebuilds configured extensions when their sources change.
//
// Each run fingerprints every target's source tree. A target whose
// fingerprint differs from the recorded one, or which has no build in its
// output directory yet, gets a new build versioned
// <source version>.<increment>. Old builds beyond the target's history are
// removed and the update manifest always points at the newest one.
package nightly

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/extsign/extsign/internal/build"
	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/extmanifest"
	"github.com/extsign/extsign/internal/fsutil"
	"github.com/extsign/extsign/internal/keys"
	"github.com/extsign/extsign/internal/util"
)

var extensions = map[string]struct{ pkg, manifest string }{
	build.PlatformChrome:  {"crx", "update.xml"},
	build.PlatformMozilla: {"xpi", "update.rdf"},
}

// Outcome reports what happened to one target.
type Outcome struct {
	Target  string
	Built   bool
	Version string
	Result  *build.Result
	Pruned  []string
}

// Runner runs nightly builds for the targets of a config.
type Runner struct {
	cfg    util.Config
	unlock keys.PassphraseFunc

	// Now stamps state entries. Defaults to time.Now.
	Now func() time.Time
}

// NewRunner returns a runner for a validated config.
func NewRunner(cfg util.Config, unlock keys.PassphraseFunc) *Runner {
	return &Runner{cfg: cfg, unlock: unlock, Now: time.Now}
}

// Run processes the named targets, or every target when names is empty.
// Targets are built concurrently; the state of every target that finished
// is saved even when another one failed.
func (r *Runner) Run(ctx context.Context, names ...string) ([]Outcome, error) {
	targets, err := r.selectTargets(names)
	if err != nil {
		return nil, err
	}

	state, err := LoadState(r.cfg.StateFile)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(targets))
	updates := make([]*TargetState, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		prev := state.Targets[t.Name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, next, err := r.runTarget(t, prev)
			if err != nil {
				return fmt.Errorf("target %s: %w", t.Name, err)
			}
			outcomes[i] = out
			updates[i] = next
			return nil
		})
	}
	runErr := g.Wait()

	changed := false
	for i, next := range updates {
		if next != nil {
			state.Targets[targets[i].Name] = *next
			changed = true
		}
	}
	if changed {
		if err := state.Save(r.cfg.StateFile); err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	return outcomes, nil
}

func (r *Runner) selectTargets(names []string) ([]util.Target, error) {
	var targets []util.Target
	if len(names) == 0 {
		targets = r.cfg.Targets
	} else {
		for _, n := range names {
			t, ok := r.cfg.Target(n)
			if !ok {
				return nil, errs.New(errs.ErrInvalidInput, "unknown target %q", n)
			}
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return nil, errs.New(errs.ErrInvalidInput, "no nightly targets configured")
	}

	dirs := make(map[string]string, len(targets))
	for _, t := range targets {
		key := filepath.Clean(t.OutputDir) + "|" + t.Platform
		if other, ok := dirs[key]; ok {
			return nil, errs.New(errs.ErrInvalidInput, "targets %s and %s share output_dir %s", other, t.Name, t.OutputDir)
		}
		dirs[key] = t.Name
	}
	return targets, nil
}

// existingBuild is a package file found in a target's output directory.
type existingBuild struct {
	path      string
	increment int
}

// buildPattern matches <name>_<version>.<increment>.<ext>.
func buildPattern(name, ext string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `_(?:\d+\.){1,3}(\d+)\.` + regexp.QuoteMeta(ext) + `$`)
}

// scanBuilds lists previous builds, newest first.
func scanBuilds(dir, name, ext string) ([]existingBuild, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ErrIO, err, "read output directory %s", dir)
	}

	re := buildPattern(name, ext)
	var builds []existingBuild
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		builds = append(builds, existingBuild{path: filepath.Join(dir, e.Name()), increment: n})
	}
	sort.Slice(builds, func(i, j int) bool { return builds[i].increment > builds[j].increment })
	return builds, nil
}

func (r *Runner) runTarget(t util.Target, prev TargetState) (Outcome, *TargetState, error) {
	out := Outcome{Target: t.Name}
	ext := extensions[t.Platform]

	fp, err := Fingerprint(t.BaseDir)
	if err != nil {
		return out, nil, err
	}
	builds, err := scanBuilds(t.OutputDir, r.cfg.PackageName, ext.pkg)
	if err != nil {
		return out, nil, err
	}

	if fp == prev.Fingerprint && len(builds) > 0 {
		util.Logger.Info("Target unchanged", "target", t.Name, "version", prev.Version)
		out.Version = prev.Version
		return out, nil, nil
	}

	increment := prev.Increment
	if len(builds) > 0 && builds[0].increment > increment {
		increment = builds[0].increment
	}
	increment++

	source, err := sourceVersion(t)
	if err != nil {
		return out, nil, err
	}
	version := source + "." + strconv.Itoa(increment)

	if err := fsutil.MkdirAll(t.OutputDir); err != nil {
		return out, nil, errs.Wrap(errs.ErrIO, err, "create output directory %s", t.OutputDir)
	}

	filename := build.PackageFileName(r.cfg.PackageName, version, ext.pkg)
	manifestFile := t.ManifestFile
	if manifestFile == "" {
		manifestFile = ext.manifest
	}

	args := build.ArgumentsFromConfig(r.cfg)
	args.Platform = t.Platform
	args.KeyFile = t.KeyFile
	args.BaseDir = t.BaseDir
	args.Version = version
	args.OutFile = filepath.Join(t.OutputDir, filename)
	args.Force = true
	args.ManifestFile = filepath.Join(t.OutputDir, manifestFile)
	args.URL = joinURL(t.BaseURL, filename)
	args.WorkDir = t.OutputDir
	args.Unlock = r.unlock

	util.Logger.Info("Building target", "target", t.Name, "version", version)
	res, err := build.Run(&args)
	if err != nil {
		return out, nil, err
	}

	pruned, err := prune(t, r.cfg.PackageName, ext.pkg)
	if err != nil {
		return out, nil, err
	}

	out.Built = true
	out.Version = version
	out.Result = res
	out.Pruned = pruned
	next := &TargetState{Fingerprint: fp, Increment: increment, Version: version, BuiltAt: r.Now().UTC()}
	return out, next, nil
}

func sourceVersion(t util.Target) (string, error) {
	if t.Platform == build.PlatformMozilla {
		m, err := extmanifest.LoadMozilla(t.BaseDir)
		if err != nil {
			return "", err
		}
		return m.Version(), nil
	}
	m, err := extmanifest.LoadChrome(t.BaseDir)
	if err != nil {
		return "", err
	}
	return m.Version(), nil
}

// prune removes builds beyond the target's history, oldest first.
func prune(t util.Target, name, ext string) ([]string, error) {
	builds, err := scanBuilds(t.OutputDir, name, ext)
	if err != nil {
		return nil, err
	}
	if len(builds) <= t.History {
		return nil, nil
	}

	var removed []string
	for _, b := range builds[t.History:] {
		if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
			return removed, errs.Wrap(errs.ErrIO, err, "remove old build %s", b.path)
		}
		util.Logger.Info("Removed old build", "target", t.Name, "path", b.path)
		removed = append(removed, b.path)
	}
	return removed, nil
}

// joinURL appends filename to base, inserting a slash if needed.
func joinURL(base, filename string) string {
	if strings.HasSuffix(base, "/") {
		return base + filename
	}
	return base + "/" + filename
}
