// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the realizer's configuration from a single
// YAML file named by the CRUCIBLE_CONFIG environment variable (or an
// explicit path passed to LoadFile). There is no fallback search path
// and no ~/.config discovery: configuration is deterministic and
// auditable, never assembled from hidden defaults scattered across
// the filesystem.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/crucible-build/crucible/hasher"
	"github.com/crucible-build/crucible/sandbox"
)

// Config is the realizer's complete configuration.
type Config struct {
	// Store is the path to the content-addressed store directory.
	Store string `yaml:"store"`

	// System is the configured default system tag. Empty means
	// "detect from the running Go runtime" (see hasher.HostSystemTag).
	// The hasher does not read this field: a derivation without a
	// system of its own always gets hasher.HostSystemTag.
	System string `yaml:"system"`

	// Cache is the path to the local realize-cache index directory.
	Cache string `yaml:"cache"`

	// Sandbox configures how builders are executed.
	Sandbox SandboxConfig `yaml:"sandbox"`
}

// SandboxConfig configures the realizer's sandbox backend.
type SandboxConfig struct {
	// Kind selects the backend: "container" (default) or "none".
	Kind sandbox.Kind `yaml:"kind"`

	// ContainerImage is the base image used by the container backend.
	ContainerImage string `yaml:"container_image"`

	// Network allows outbound network access for every build, not
	// just fixed-output derivations. Default: false.
	Network bool `yaml:"network"`

	// Verbose inherits the builder's stdio instead of capturing it.
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration used as a base before a config
// file is loaded, so every field has a sensible zero value. It is not
// a fallback for a missing config file — Load and LoadFile still
// require one.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Store: filepath.Join(homeDir, ".cache", "crucible", "store"),
		Cache: filepath.Join(homeDir, ".cache", "crucible", "cache"),
		Sandbox: SandboxConfig{
			Kind: sandbox.Container,
		},
	}
}

// Load loads configuration from the file named by CRUCIBLE_CONFIG.
// There is no fallback: if the variable is unset, Load fails.
func Load() (*Config, error) {
	path := os.Getenv("CRUCIBLE_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("CRUCIBLE_CONFIG environment variable not set; " +
			"set it to the path of your crucible.yaml config file, or pass --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.expandVariables()

	if cfg.System == "" {
		cfg.System = hasher.HostSystemTag()
	}
	if cfg.Sandbox.Kind == "" {
		cfg.Sandbox.Kind = sandbox.Container
	}

	return cfg, nil
}

// expandVariables expands ${HOME} and ${VAR:-default} patterns in
// Store and Cache — the only fields with paths a user is likely to
// template against their home directory.
func (c *Config) expandVariables() {
	c.Store = expandVars(c.Store)
	c.Cache = expandVars(c.Cache)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name, defaultValue := parts[1], ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for required fields and legal
// enum values.
func (c *Config) Validate() error {
	if c.Store == "" {
		return fmt.Errorf("store path is required")
	}
	switch c.Sandbox.Kind {
	case sandbox.Container, sandbox.None:
	default:
		return fmt.Errorf("sandbox.kind must be %q or %q, got %q", sandbox.Container, sandbox.None, c.Sandbox.Kind)
	}
	return nil
}
