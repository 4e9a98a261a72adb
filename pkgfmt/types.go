// Package pkgfmt defines Mangrove's package manifest data model and its
// canonical deterministic binary encoding.
package pkgfmt

import "github.com/Masterminds/semver/v3"

// Architecture is a closed enumeration of supported target architectures.
type Architecture string

const (
	ArchAmd64 Architecture = "amd64"
	ArchArm64 Architecture = "arm64"
	ArchArmv7 Architecture = "armv7"
)

// Version wraps a parsed SemVer version.
type Version struct {
	*semver.Version
}

// ParseVersion parses a SemVer version string.
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, err
	}
	return Version{v}, nil
}

// PkgSpec names a package and a version constraint it must satisfy.
// Constraint uses the Go-facing sentinel "any" for an unconstrained
// dependency; the wire codec maps that to the literal string "*" and back
// (see codec.go's wireConstraint/fromWireConstraint).
type PkgSpec struct {
	Name       string
	Constraint string // e.g. "any", "*", "^0.0.0"
}

// Matches reports whether version satisfies spec's constraint. The
// constraints "any", "*", and "" all match every version.
func (s PkgSpec) Matches(version Version) (bool, error) {
	if s.Constraint == "" || s.Constraint == "any" || s.Constraint == "*" {
		return true, nil
	}
	c, err := semver.NewConstraint(s.Constraint)
	if err != nil {
		return false, err
	}
	return c.Check(version.Version), nil
}

// FileMetadata describes ownership and permission attributes common to
// folders and files; links carry no metadata.
type FileMetadata struct {
	Owner       uint32
	Group       uint32
	Permissions uint32
}

// PackageFolder is a directory entry in a package's contents. Path is
// written to the wire twice, once as the entry's name and once as its
// install path; the two are always equal, a duplication the wire format
// carries over from the original implementation rather than one this
// codec introduces.
type PackageFolder struct {
	Path  string
	Mtime int64
	Meta  FileMetadata
}

// PackageFile is a regular file entry; Sha256 is the hex digest of its
// extracted content. Like PackageFolder, Path is written to the wire as
// both name and install path.
type PackageFile struct {
	Path   string
	Sha256 string
	Meta   FileMetadata
	Mtime  int64
}

// PackageLink is a symlink entry.
type PackageLink struct {
	Path   string
	Mtime  int64
	Target string
}

// PackageContents groups a package's folder, file, and link entries. Each
// list is optional on the wire: an absent list decodes to a nil slice, and
// a nil slice encodes back to an absent list.
type PackageContents struct {
	Folders []PackageFolder
	Files   []PackageFile
	Links   []PackageLink
}

// Package is a Mangrove package manifest.
//
// LongDesc, URL, License, Groups, Depends, OptDepends, Provides, Conflicts,
// and Replaces are optional in the wire format (Rust's Option<T>, encoded
// as msgpack nil when absent). Go's zero value for a string or slice
// doubles as "absent" here: an empty LongDesc or a nil Depends both encode
// to nil, and decoding an absent field leaves the Go zero value in place.
// This loses the ability to represent an explicitly-present-but-empty
// value, which none of Mangrove's own producers ever need.
type Package struct {
	Name          string
	Version       string
	ShortDesc     string
	LongDesc      string
	Architecture  Architecture
	URL           string
	License       string
	Groups        []string
	Depends       []PkgSpec
	OptDepends    []string
	Provides      []PkgSpec
	Conflicts     []PkgSpec
	Replaces      []PkgSpec
	InstalledSize uint64
	Contents      PackageContents
}

// ConflictsWith reports whether this package and other mutually conflict.
// A conflict exists when either package's Conflicts list names the other
// package at a version its actual version satisfies: p conflicts with
// other if some spec in p.Conflicts matches other's name and other's
// parsed Version satisfies that spec's constraint, and symmetrically for
// other.Conflicts against p. A package whose Version does not parse as
// SemVer is treated as satisfying only the wildcard constraints ("any",
// "*", ""), never a specific range, so an unversioned installed record
// (as produced by tests and partial manifests) still participates in
// self-conflict checks without erroring out.
func (p *Package) ConflictsWith(other *Package) bool {
	return specListConflicts(p.Conflicts, other) || specListConflicts(other.Conflicts, p)
}

// specListConflicts reports whether any spec in specs names target's
// package at a version target's actual version satisfies.
func specListConflicts(specs []PkgSpec, target *Package) bool {
	for _, c := range specs {
		if c.Name != target.Name {
			continue
		}
		if specMatchesPackageVersion(c, target) {
			return true
		}
	}
	return false
}

// specMatchesPackageVersion reports whether spec's constraint matches
// target's version, tolerating a target version that fails to parse as
// SemVer by falling back to wildcard-only matching.
func specMatchesPackageVersion(spec PkgSpec, target *Package) bool {
	v, err := ParseVersion(target.Version)
	if err != nil {
		return spec.Constraint == "" || spec.Constraint == "any" || spec.Constraint == "*"
	}
	ok, err := spec.Matches(v)
	return err == nil && ok
}
