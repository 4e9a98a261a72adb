// Package lockfile provides process-scoped mutual exclusion over the
// Mangrove root's repo, trustcache, and package registries via atomic
// create-exclusive files. There is no retry and no internal polling: a
// caller that finds the resource locked must decide whether to wait.
package lockfile

import (
	"os"
	"path/filepath"

	"github.com/mangrove/mangrove/layout"
	"github.com/mangrove/mangrove/mgveerr"
)

// Handle owns an acquired lock. It must be released exactly once, via
// either Release or Discard.
type Handle struct {
	path     string
	released bool
}

// acquire creates path exclusively, failing if it already exists.
func acquire(path string) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &mgveerr.LockedError{Path: path}
		}
		return nil, &mgveerr.IoError{Op: "lock", Err: err}
	}
	f.Close()
	return &Handle{path: path}, nil
}

// Release removes the lock file, signaling that the protected resource's
// in-memory state has been persisted.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return &mgveerr.IoError{Op: "unlock", Err: err}
	}
	return nil
}

// Discard removes the lock file without implying any persisted change,
// used on error paths where the caller never mutated the resource.
func (h *Handle) Discard() error { return h.Release() }

// LockRepository acquires the repos lock.
func LockRepository(local bool) (*Handle, error) { return lockNamed(local, "repo.lock") }

// LockTrustcache acquires the trustcache lock.
func LockTrustcache(local bool) (*Handle, error) { return lockNamed(local, "trustcache.lock") }

// LockPackages acquires the installed-package-db lock.
func LockPackages(local bool) (*Handle, error) { return lockNamed(local, "package.lock") }

func lockNamed(local bool, name string) (*Handle, error) {
	if err := layout.Ensure(local); err != nil {
		return nil, err
	}
	dir, err := layout.LocksDir(local)
	if err != nil {
		return nil, err
	}
	return acquire(filepath.Join(dir, name))
}
