package config

import (
	"encoding/json"
	"fmt"
)

// ActiveEnvironmentList parses the JSON array carried in
// FLOX_ACTIVE_ENVIRONMENTS into a slice of dot-flox paths.
func (c *EnvConfig) ActiveEnvironmentList() ([]string, error) {
	var paths []string
	if c.ActiveEnvironments == "" {
		return paths, nil
	}
	if err := json.Unmarshal([]byte(c.ActiveEnvironments), &paths); err != nil {
		return nil, fmt.Errorf("parsing FLOX_ACTIVE_ENVIRONMENTS: %w", err)
	}
	return paths, nil
}

// IsActive reports whether dotFloxPath already appears in the active list,
// i.e. this would be a re-activation of an already-active environment.
func (c *EnvConfig) IsActive(dotFloxPath string) (bool, error) {
	paths, err := c.ActiveEnvironmentList()
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		if p == dotFloxPath {
			return true, nil
		}
	}
	return false, nil
}

// WithActiveEnvironment returns the JSON encoding of the active list with
// dotFloxPath appended, for exporting FLOX_ACTIVE_ENVIRONMENTS to a child
// shell. No-op (returns the existing encoding) if already present.
func (c *EnvConfig) WithActiveEnvironment(dotFloxPath string) (string, error) {
	paths, err := c.ActiveEnvironmentList()
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if p == dotFloxPath {
			data, err := json.Marshal(paths)
			if err != nil {
				return "", err
			}
			return string(data), nil
		}
	}
	paths = append(paths, dotFloxPath)
	data, err := json.Marshal(paths)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
