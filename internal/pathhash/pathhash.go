// Package pathhash computes the stable short identifier used to name
// per-environment runtime directories.
package pathhash

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// hashLen is the number of hex characters kept from the digest. It's long
// enough to make collisions between environments on the same host
// vanishingly unlikely while keeping runtime directory names short.
const hashLen = 16

// Hash returns a short, stable hex digest of the canonicalized dotFloxPath.
// Two processes pointed at the same environment directory always compute
// the same hash, regardless of working directory or symlink traversal used
// to reach it.
func Hash(dotFloxPath string) string {
	abs, err := filepath.Abs(dotFloxPath)
	if err != nil {
		abs = dotFloxPath
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// ParentName returns the basename of the directory containing dotFloxPath
// (e.g. the project directory holding a ".flox" subdirectory), used as the
// human-readable suffix alongside Hash when naming the activation
// directory. Falls back to "root" when there is no parent component.
func ParentName(dotFloxPath string) string {
	abs, err := filepath.Abs(dotFloxPath)
	if err != nil {
		abs = dotFloxPath
	}
	name := filepath.Base(filepath.Dir(abs))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "root"
	}
	return name
}

// ActivationDirName returns the "{hash}-{parent_name}" directory name for
// dotFloxPath, per the on-disk layout in the design doc.
func ActivationDirName(dotFloxPath string) string {
	return Hash(dotFloxPath) + "-" + ParentName(dotFloxPath)
}

// ActivationDir returns the full path {runtimeDir}/activations/{hash}-{parent}
// for dotFloxPath.
func ActivationDir(runtimeDir, dotFloxPath string) string {
	return filepath.Join(runtimeDir, "activations", ActivationDirName(dotFloxPath))
}
