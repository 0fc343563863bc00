// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package nightly

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/extsign/extsign/internal/errs"
	"github.com/extsign/extsign/internal/fsutil"
)

// TargetState records the last build of one target.
type TargetState struct {
	Fingerprint string    `yaml:"fingerprint"`
	Increment   int       `yaml:"increment"`
	Version     string    `yaml:"version"`
	BuiltAt     time.Time `yaml:"built_at"`
}

// State is the nightly state file.
type State struct {
	Targets map[string]TargetState `yaml:"targets"`
}

// LoadState reads the state file. A missing file yields an empty state.
func LoadState(path string) (*State, error) {
	st := &State{Targets: make(map[string]TargetState)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, errs.Wrap(errs.ErrIO, err, "read state file %s", path)
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, err, "parse state file %s", path)
	}
	if st.Targets == nil {
		st.Targets = make(map[string]TargetState)
	}
	return st, nil
}

// Save writes the state file atomically.
func (s *State) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errs.Wrap(errs.ErrEncoding, err, "encode state")
	}
	if err := fsutil.WriteFileAtomic(path, data); err != nil {
		return errs.Wrap(errs.ErrIO, err, "write state file %s", path)
	}
	return nil
}
