// Package pkgdb manages Mangrove's installed-package registry: every
// package currently installed plus every repository the system has been
// configured to track, lock-protected and binary-serialized.
package pkgdb

import (
	"os"

	"github.com/mangrove/mangrove/layout"
	"github.com/mangrove/mangrove/lockfile"
	"github.com/mangrove/mangrove/mgveerr"
	"github.com/mangrove/mangrove/pkgfmt"
)

// RepoInfo names a configured repository.
type RepoInfo struct {
	Name                 string
	BaseURL              string
	SupportedArchitectures []pkgfmt.Architecture
}

// DbRepository is an installed-DB entry binding a configured repository's
// identity and pinned signing key together. No copy of the repository's
// package index is stored.
type DbRepository struct {
	Info       RepoInfo
	SigningKey []byte
}

// Database is the full installed-package registry.
type Database struct {
	InstalledPackages []pkgfmt.Package
	Repositories      []DbRepository
}

// Db couples a Database with the lock guarding it.
type Db struct {
	lock *lockfile.Handle
	data Database
	path string
}

// Load acquires the package-db lock and reads the registry, creating an
// empty one if none exists yet.
func Load(local bool) (*Db, error) {
	lock, err := lockfile.LockPackages(local)
	if err != nil {
		return nil, err
	}
	path, err := layout.DbPath(local)
	if err != nil {
		lock.Discard()
		return nil, err
	}

	db := &Db{lock: lock, path: path}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return db, nil
	}
	if err != nil {
		lock.Discard()
		return nil, &mgveerr.IoError{Op: "read package db", Err: err}
	}
	if err := db.data.unmarshal(raw); err != nil {
		lock.Discard()
		return nil, err
	}
	return db, nil
}

// Save writes the registry and releases the lock.
func (d *Db) Save() error {
	raw, err := d.data.marshal()
	if err != nil {
		d.lock.Discard()
		return err
	}
	if err := os.WriteFile(d.path, raw, 0644); err != nil {
		d.lock.Discard()
		return &mgveerr.IoError{Op: "write package db", Err: err}
	}
	return d.lock.Release()
}

// Discard releases the lock without persisting any change.
func (d *Db) Discard() error { return d.lock.Discard() }

// Installed returns the currently installed packages.
func (d *Db) Installed() []pkgfmt.Package { return d.data.InstalledPackages }

// FindInstalled returns the installed package named name, if any.
func (d *Db) FindInstalled(name string) (*pkgfmt.Package, bool) {
	for i := range d.data.InstalledPackages {
		if d.data.InstalledPackages[i].Name == name {
			return &d.data.InstalledPackages[i], true
		}
	}
	return nil, false
}

// AppendInstalled records pkg as newly installed.
func (d *Db) AppendInstalled(pkg pkgfmt.Package) {
	d.data.InstalledPackages = append(d.data.InstalledPackages, pkg)
}

// AddRepository registers a repository configuration, pinning its signing
// key at add-time.
func (d *Db) AddRepository(repo DbRepository) {
	d.data.Repositories = append(d.data.Repositories, repo)
}

// PinnedSigningKey returns the signing key pinned for repository name, if
// one is configured.
func (d *Db) PinnedSigningKey(name string) ([]byte, bool) {
	for _, r := range d.data.Repositories {
		if r.Info.Name == name {
			return r.SigningKey, true
		}
	}
	return nil, false
}
