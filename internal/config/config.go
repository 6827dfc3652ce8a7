// Package config loads the optional .sddgov.yaml at the repository root.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feature: CLI_CONFIG
// Spec: spec/system/config.md

// FileName is the config file looked up at the repository root.
const FileName = ".sddgov.yaml"

type Lint struct {
	Roots   []string `yaml:"roots"`
	Exclude []string `yaml:"exclude"`
	Workers int      `yaml:"workers"`
}

type Run struct {
	StateDir string `yaml:"state_dir"`
}

type GitHub struct {
	// Repo is OWNER/REPO.
	Repo string `yaml:"repo"`
	// Token is never read from the file; see Load.
	Token string `yaml:"-"`
}

type Config struct {
	Lint     Lint   `yaml:"lint"`
	StateDir string `yaml:"state_dir"`
	Run      Run    `yaml:"run"`
	GitHub   GitHub `yaml:"github"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Lint:     Lint{Roots: []string{"docs"}, Workers: 4},
		StateDir: ".agentic-sdd",
		Run:      Run{StateDir: ".agentic-sdd/run"},
	}
}

// Load reads <repoRoot>/.sddgov.yaml over the defaults. A missing file is
// not an error; unknown keys are.
func Load(repoRoot string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(repoRoot, FileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read %s: %w", FileName, err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	cfg.GitHub.Token = TokenFromEnv()
	return cfg, nil
}

// Validate rejects values no command could use.
func (c Config) Validate() error {
	if c.Lint.Workers < 1 {
		return fmt.Errorf("lint.workers must be >= 1, got %d", c.Lint.Workers)
	}
	if len(c.Lint.Roots) == 0 {
		return errors.New("lint.roots must not be empty")
	}
	if strings.TrimSpace(c.StateDir) == "" {
		return errors.New("state_dir must not be empty")
	}
	if strings.TrimSpace(c.Run.StateDir) == "" {
		return errors.New("run.state_dir must not be empty")
	}
	if r := c.GitHub.Repo; r != "" {
		owner, name, ok := strings.Cut(r, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("github.repo must be OWNER/REPO, got %q", r)
		}
	}
	return nil
}

// TokenFromEnv returns GITHUB_TOKEN, or GH_TOKEN when the former is unset.
func TokenFromEnv() string {
	for _, k := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
