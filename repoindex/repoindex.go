// Package repoindex models a Mangrove repository: a base URL, the public
// key its packages are signed under, and the per-architecture package
// listings it advertises under the well-known repoinfo subresource.
package repoindex

import (
	"github.com/mangrove/mangrove/mcrypt"
	"github.com/mangrove/mangrove/pkgfmt"
)

// RepoInfo is the public, signable summary of a repository's identity.
type RepoInfo struct {
	Name                   string
	BaseURL                string
	SupportedArchitectures []pkgfmt.Architecture
}

// RepoPackage pairs a package with every version of it this repository
// currently advertises, restoring the original source's repo.rs shape
// rather than the distillation's flat per-architecture package list.
type RepoPackage struct {
	Package           pkgfmt.Package
	AvailableVersions []string
}

// RepoData is one architecture's package listing.
type RepoData struct {
	Architecture pkgfmt.Architecture
	Packages     []RepoPackage
}

// Repository is the in-memory, non-serializable view of a repository: its
// identity, its contents by architecture, and the key its packages are
// signed under.
type Repository struct {
	Info       RepoInfo
	Contents   []RepoData
	SigningKey *mcrypt.PublicKey
}

// Get returns the RepoPackage for name on arch, if present.
func (r *Repository) Get(name string, arch pkgfmt.Architecture) (*RepoPackage, bool) {
	for i := range r.Contents {
		if r.Contents[i].Architecture != arch {
			continue
		}
		for j := range r.Contents[i].Packages {
			if r.Contents[i].Packages[j].Package.Name == name {
				return &r.Contents[i].Packages[j], true
			}
		}
	}
	return nil, false
}

// Append adds pkg to its architecture's listing, recording its version in
// AvailableVersions if an entry for it already exists.
func (r *Repository) Append(pkg pkgfmt.Package) {
	for i := range r.Contents {
		if r.Contents[i].Architecture != pkg.Architecture {
			continue
		}
		for j := range r.Contents[i].Packages {
			if r.Contents[i].Packages[j].Package.Name == pkg.Name {
				r.Contents[i].Packages[j].Package = pkg
				r.Contents[i].Packages[j].AvailableVersions = appendUnique(
					r.Contents[i].Packages[j].AvailableVersions, pkg.Version)
				return
			}
		}
		r.Contents[i].Packages = append(r.Contents[i].Packages, RepoPackage{
			Package:           pkg,
			AvailableVersions: []string{pkg.Version},
		})
		return
	}
	r.Contents = append(r.Contents, RepoData{
		Architecture: pkg.Architecture,
		Packages:     []RepoPackage{{Package: pkg, AvailableVersions: []string{pkg.Version}}},
	})
}

func appendUnique(versions []string, v string) []string {
	for _, existing := range versions {
		if existing == v {
			return versions
		}
	}
	return append(versions, v)
}

// AsPackageMap projects Contents into the flat
// map[Architecture][]Package view, recovering the distilled spec's
// simpler shape over RepoPackage's richer one.
func (r *Repository) AsPackageMap() map[pkgfmt.Architecture][]pkgfmt.Package {
	out := make(map[pkgfmt.Architecture][]pkgfmt.Package)
	for _, data := range r.Contents {
		pkgs := make([]pkgfmt.Package, len(data.Packages))
		for i, rp := range data.Packages {
			pkgs[i] = rp.Package
		}
		out[data.Architecture] = pkgs
	}
	return out
}
