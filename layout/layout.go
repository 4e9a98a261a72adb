// Package layout resolves Mangrove's on-disk root, whether the global
// system location under /etc/mangrove or a local, per-directory root, and
// bootstraps the directories every other package expects to find.
package layout

import (
	"os"
	"path/filepath"
)

// GlobalRoot is the system-wide Mangrove root.
const GlobalRoot = "/etc/mangrove"

// Root returns the Mangrove root directory: GlobalRoot unless local is
// true, in which case the current working directory is used.
func Root(local bool) (string, error) {
	if local {
		return os.Getwd()
	}
	return GlobalRoot, nil
}

// LocksDir returns the root's locks directory.
func LocksDir(local bool) (string, error) {
	root, err := Root(local)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "locks"), nil
}

// ReposDir returns the root's repos directory.
func ReposDir(local bool) (string, error) {
	root, err := Root(local)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "repos"), nil
}

// TrustPath returns the path to the trustcache document.
func TrustPath(local bool) (string, error) {
	root, err := Root(local)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "trust.yaml"), nil
}

// DbPath returns the path to the installed-package database.
func DbPath(local bool) (string, error) {
	root, err := Root(local)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "db"), nil
}

// Ensure creates the root and its locks/repos subdirectories if they do
// not already exist.
func Ensure(local bool) error {
	root, err := Root(local)
	if err != nil {
		return err
	}
	for _, sub := range []string{"", "locks", "repos"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return err
		}
	}
	return nil
}
