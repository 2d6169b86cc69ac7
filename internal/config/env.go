// Package config loads the environment variables the activation lifecycle
// subsystem reads, per the external-interfaces section of the design doc.
// This is the single source of truth for those variable names.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds every environment variable the core subsystem consults.
// Load it once at process start; the CLI commands and the Driver read from
// this struct rather than calling os.Getenv ad hoc. The Executive does not
// load it: it takes its settings from its context file.
type EnvConfig struct {
	// RuntimeDir is the base directory for runtime paths, e.g.
	// {RuntimeDir}/activations/{hash}-{parent}/.
	RuntimeDir string `env:"FLOX_RUNTIME_DIR"`

	// ActiveEnvironments is a JSON list of dot-flox paths already active in
	// the calling shell, used for re-activation detection.
	ActiveEnvironments string `env:"FLOX_ACTIVE_ENVIRONMENTS" envDefault:"[]"`

	// FloxShell overrides shell selection for subshells.
	FloxShell string `env:"FLOX_SHELL"`

	// Shell is the fallback shell selection when FloxShell is unset.
	Shell string `env:"SHELL"`

	// NoRemoveActivationFiles is parsed but not consulted: the executive
	// context file is always deleted after it is read.
	NoRemoveActivationFiles bool `env:"_FLOX_NO_REMOVE_ACTIVATION_FILES"`

	// RCFilePathOverride is parsed but not consulted: generated startup
	// scripts are always written to fresh temporary paths.
	RCFilePathOverride string `env:"_FLOX_RC_FILE_PATH"`

	// ExecutiveVerbosity is the numeric log level for the Executive.
	ExecutiveVerbosity int `env:"_FLOX_EXECUTIVE_VERBOSITY" envDefault:"0"`
}

// Load parses process environment variables into an EnvConfig.
func Load() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// SelectedShell returns the shell to use for subshells: FLOX_SHELL takes
// precedence over SHELL, matching spec's shell-selection precedence.
func (c *EnvConfig) SelectedShell() string {
	if c.FloxShell != "" {
		return c.FloxShell
	}
	return c.Shell
}
