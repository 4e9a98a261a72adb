// Package installer implements Mangrove's install algorithm: load a
// package's manifest, check it for conflicts and unsatisfied dependencies
// against what is already installed, extract it, then record it.
package installer

import (
	"bytes"

	"github.com/mangrove/mangrove/archive"
	"github.com/mangrove/mangrove/mcrypt"
	"github.com/mangrove/mangrove/mgveerr"
	"github.com/mangrove/mangrove/pkgdb"
	"github.com/mangrove/mangrove/pkgfmt"
)

// CheckConflicts reports an error if candidate conflicts, in either
// direction, with any already-installed package.
func CheckConflicts(candidate *pkgfmt.Package, installed []pkgfmt.Package) error {
	for i := range installed {
		if candidate.ConflictsWith(&installed[i]) {
			return &mgveerr.ConflictsError{Name: installed[i].Name}
		}
	}
	return nil
}

// CheckDependencies reports an error naming the first dependency of
// candidate that is not satisfied by the installed set.
func CheckDependencies(candidate *pkgfmt.Package, installed []pkgfmt.Package) error {
	for _, dep := range candidate.Depends {
		satisfied := false
		for i := range installed {
			if installed[i].Name != dep.Name {
				continue
			}
			v, err := pkgfmt.ParseVersion(installed[i].Version)
			if err != nil {
				continue
			}
			ok, err := dep.Matches(v)
			if err == nil && ok {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return &mgveerr.MissingDependencyError{Name: dep.Name}
		}
	}
	return nil
}

// InstallFromFile installs the package archive contained in data into
// target, recording it in db. db is not saved by this call; the caller
// decides when to persist it.
func InstallFromFile(data []byte, target string, db *pkgdb.Db) (*pkgfmt.Package, error) {
	pkg, err := archive.Load(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	installed := db.Installed()
	if err := CheckConflicts(pkg, installed); err != nil {
		return nil, err
	}
	if err := CheckDependencies(pkg, installed); err != nil {
		return nil, err
	}

	extracted, err := archive.Extract(bytes.NewReader(data), target)
	if err != nil {
		return nil, err
	}

	db.AppendInstalled(*extracted)
	return extracted, nil
}

// InstallFromRepo installs a package fetched from a configured repository.
// If fetchedData is an SPF envelope, it is verified against the
// repository's pinned signing key and unwrapped before being treated as a
// package archive; otherwise fetchedData is installed as a plain archive.
// This restores the repo-sourced install path the original implementation
// left unfinished.
func InstallFromRepo(spec pkgfmt.PkgSpec, fetchedData []byte, repoName, target string, db *pkgdb.Db) (*pkgfmt.Package, error) {
	archiveData := fetchedData
	if mcrypt.IsSignedPackage(fetchedData) {
		keyBytes, ok := db.PinnedSigningKey(repoName)
		if !ok {
			return nil, &mgveerr.NotFoundError{Path: repoName}
		}
		pk, err := mcrypt.PublicKeyFromBytes(keyBytes)
		if err != nil {
			return nil, err
		}
		plaintext, err := mcrypt.Decrypt(pk, fetchedData)
		if err != nil {
			return nil, err
		}
		archiveData = plaintext
	}

	pkg, err := archive.Load(bytes.NewReader(archiveData))
	if err != nil {
		return nil, err
	}
	v, err := pkgfmt.ParseVersion(pkg.Version)
	if err == nil {
		if ok, err := spec.Matches(v); err == nil && !ok {
			return nil, &mgveerr.MissingDependencyError{Name: spec.Name}
		}
	}

	return InstallFromFile(archiveData, target, db)
}
