// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/extsign/extsign/internal/errs"
)

const (
	// DefaultConfigFile is looked up in the working directory when no path is given.
	DefaultConfigFile = "extsign.yaml"

	// FirefoxGUID is the application id of Firefox.
	FirefoxGUID = "{ec8030f7-c20a-464f-9b0e-13a3a9e97384}"

	// FallbackMinVersion and FallbackMaxVersion bound the target application
	// when neither the config nor install.rdf names a range.
	FallbackMinVersion = "10.0"
	FallbackMaxVersion = "99.*"

	// DefaultHistory is the number of nightly builds kept per target.
	DefaultHistory = 5
)

// ChromeConfig holds settings for CRX packages.
type ChromeConfig struct {
	CRXVersion uint32 `yaml:"crx_version" description:"CRX container format version (only 2 is supported)" default:"2"`
}

// MozillaConfig holds settings for XPI packages and update.rdf.
type MozillaConfig struct {
	ExtensionGUID string `yaml:"extension_guid" description:"Extension id used in update.rdf (read from install.rdf em:id if empty)"`
	TargetAppGUID string `yaml:"target_app_guid" description:"Target application id" default:"{ec8030f7-c20a-464f-9b0e-13a3a9e97384}"`
	MinVersion    string `yaml:"min_version" description:"Minimum target application version (read from install.rdf if empty, else 10.0)"`
	MaxVersion    string `yaml:"max_version" description:"Maximum target application version (read from install.rdf if empty, else 99.*)"`
}

// Target describes one extension built by the nightly command.
type Target struct {
	Name         string `yaml:"name" description:"Unique target name (required)"`
	Platform     string `yaml:"platform" description:"chrome or mozilla (required)"`
	KeyFile      string `yaml:"key_file" description:"Private key path, relative to the config file (required)"`
	BaseDir      string `yaml:"base_dir" description:"Unpacked extension directory, relative to the config file (required)"`
	OutputDir    string `yaml:"output_dir" description:"Directory receiving packages and the update manifest (required)"`
	ManifestFile string `yaml:"manifest_file" description:"Update manifest file name inside output_dir (update.xml or update.rdf if empty)"`
	BaseURL      string `yaml:"base_url" description:"Public URL of output_dir; the package file name is appended (required)"`
	History      int    `yaml:"history" description:"Number of builds to keep" default:"5"`
}

// Config holds extsign configuration settings
type Config struct {
	PackageName       string   `yaml:"package_name" description:"Package file name prefix (<name>_<version>.crx)" default:"extension"`
	TempDir           string   `yaml:"temp_dir" description:"Scratch directory for archives (system temp dir if empty)"`
	PassphraseFile    string   `yaml:"passphrase_file" description:"File holding the passphrase for sealed keys"`
	PassphraseCommand []string `yaml:"passphrase_command" description:"Command (absolute argv) printing the passphrase for sealed keys" default:"[]"`
	StateFile         string   `yaml:"state_file" description:"Nightly build state, relative to the config file" default:".extsign-state.yaml"`
	LockMemory        bool     `yaml:"lock_memory" description:"Lock process memory so keys never swap (needs CAP_IPC_LOCK)" default:"false"`

	Chrome  ChromeConfig  `yaml:"chrome" description:"Chrome packaging settings"`
	Mozilla MozillaConfig `yaml:"mozilla" description:"Mozilla packaging settings"`
	Targets []Target      `yaml:"targets" description:"Extensions built by extsign nightly" default:"[]"`
}

// DefaultConfig returns the default configuration for runtime use.
func DefaultConfig() Config {
	return Config{
		PackageName:       "extension",
		PassphraseCommand: []string{},
		StateFile:         ".extsign-state.yaml",
		Chrome: ChromeConfig{
			CRXVersion: 2,
		},
		Mozilla: MozillaConfig{
			TargetAppGUID: FirefoxGUID,
		},
		Targets: []Target{},
	}
}

// ResolveConfigPath returns the config file to load.
// Resolution order: -c flag > EXTSIGN_CONFIG env var > ./extsign.yaml
func ResolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("EXTSIGN_CONFIG"); env != "" {
		return env
	}
	return DefaultConfigFile
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty or the file doesn't exist, returns default config.
// Relative paths inside the file are resolved against its directory.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, errs.Wrap(errs.ErrIO, err, "read config file %s", path)
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errs.Wrap(errs.ErrInvalidInput, err, "parse config file %s", path)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	config.resolvePaths(filepath.Dir(path))
	return config, nil
}

// Validate checks field values and fills defaults for missing ones.
func (c *Config) Validate() error {
	defaults := DefaultConfig()
	if c.PackageName == "" {
		c.PackageName = defaults.PackageName
	}
	if strings.ContainsAny(c.PackageName, `/\`) {
		return errs.New(errs.ErrInvalidInput, "package_name %q must not contain path separators", c.PackageName)
	}
	if c.StateFile == "" {
		c.StateFile = defaults.StateFile
	}
	if c.Chrome.CRXVersion == 0 {
		c.Chrome.CRXVersion = defaults.Chrome.CRXVersion
	}
	if c.Chrome.CRXVersion != 2 {
		return errs.New(errs.ErrInvalidInput, "unsupported chrome.crx_version %d (only 2 is supported)", c.Chrome.CRXVersion)
	}
	if c.Mozilla.TargetAppGUID == "" {
		c.Mozilla.TargetAppGUID = defaults.Mozilla.TargetAppGUID
	}
	if len(c.PassphraseCommand) > 0 && !filepath.IsAbs(c.PassphraseCommand[0]) {
		return errs.New(errs.ErrInvalidInput, "passphrase_command: argv[0] must be an absolute path, got %q", c.PassphraseCommand[0])
	}

	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Name == "" {
			return errs.New(errs.ErrInvalidInput, "targets[%d]: name is required", i)
		}
		if seen[t.Name] {
			return errs.New(errs.ErrInvalidInput, "targets[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true

		if t.Platform != "chrome" && t.Platform != "mozilla" {
			return errs.New(errs.ErrInvalidInput, "target %s: platform must be chrome or mozilla, got %q", t.Name, t.Platform)
		}
		for field, value := range map[string]string{
			"key_file":   t.KeyFile,
			"base_dir":   t.BaseDir,
			"output_dir": t.OutputDir,
			"base_url":   t.BaseURL,
		} {
			if value == "" {
				return errs.New(errs.ErrInvalidInput, "target %s: %s is required", t.Name, field)
			}
		}
		if t.History == 0 {
			t.History = DefaultHistory
		}
		if t.History < 1 {
			return errs.New(errs.ErrInvalidInput, "target %s: history must be positive, got %d", t.Name, t.History)
		}
	}
	return nil
}

func (c *Config) resolvePaths(baseDir string) {
	c.TempDir = ResolvePath(c.TempDir, baseDir)
	c.PassphraseFile = ResolvePath(c.PassphraseFile, baseDir)
	c.StateFile = ResolvePath(c.StateFile, baseDir)
	for i := range c.Targets {
		t := &c.Targets[i]
		t.KeyFile = ResolvePath(t.KeyFile, baseDir)
		t.BaseDir = ResolvePath(t.BaseDir, baseDir)
		t.OutputDir = ResolvePath(t.OutputDir, baseDir)
	}
}

// Target returns the named target.
func (c *Config) Target(name string) (Target, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// ResolvePath resolves a path relative to baseDir.
// Absolute and empty paths are returned as-is.
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
