// Package pkgsrc models the YAML package-source document that mgve-create
// reads to build a package archive, the role the teacher's manifest.Package
// plays for .deb builds and the original's (TOML) mgvetoml.rs played for
// Mangrove package sources.
package pkgsrc

import (
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/mangrove/mangrove/mgveerr"
	"github.com/mangrove/mangrove/pkgfmt"
)

// FileEntry names a source file on disk and the destination path, mode,
// and metadata it should carry inside the built package.
type FileEntry struct {
	Src         string `yaml:"src"`
	Dst         string `yaml:"dst"`
	Mode        uint32 `yaml:"mode"`
	Owner       uint32 `yaml:"owner"`
	Group       uint32 `yaml:"group"`
}

// LinkEntry describes a symlink to create inside the built package.
type LinkEntry struct {
	Dst    string `yaml:"dst"`
	Target string `yaml:"target"`
}

// Source is the on-disk, human-edited description of a package to build.
type Source struct {
	Name          string      `yaml:"name"`
	Version       string      `yaml:"version"`
	ShortDesc     string      `yaml:"shortdesc"`
	LongDesc      string      `yaml:"longdesc"`
	Architecture  string      `yaml:"architecture"`
	URL           string      `yaml:"url"`
	License       string      `yaml:"license"`
	Groups        []string    `yaml:"groups"`
	Depends       []string    `yaml:"depends"`
	OptDepends    []string    `yaml:"optdepends"`
	Provides      []string    `yaml:"provides"`
	Conflicts     []string    `yaml:"conflicts"`
	Replaces      []string    `yaml:"replaces"`
	Files         []FileEntry `yaml:"files"`
	Links         []LinkEntry `yaml:"links"`
}

// Default returns a minimal, commented-free scaffold for `mgve create new`.
func Default(name string) *Source {
	return &Source{
		Name:         name,
		Version:      "0.0.1",
		ShortDesc:    "TODO: one-line description",
		Architecture: string(pkgfmt.ArchAmd64),
	}
}

// Load reads a package source document from path.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &mgveerr.IoError{Op: "read package source", Err: err}
	}
	var src Source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, &mgveerr.DeserializeError{What: "package source", Err: err}
	}
	return &src, nil
}

// Save writes src to path.
func (s *Source) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return &mgveerr.SerializeError{What: "package source", Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &mgveerr.IoError{Op: "write package source", Err: err}
	}
	return nil
}

// parseSpec splits a "name" or "name:constraint" dependency string into a
// PkgSpec, defaulting to the "any" constraint.
func parseSpec(s string) pkgfmt.PkgSpec {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return pkgfmt.PkgSpec{Name: s[:i], Constraint: s[i+1:]}
		}
	}
	return pkgfmt.PkgSpec{Name: s, Constraint: "any"}
}

// ToPackage builds the pkgfmt.Package this source describes, computing
// each file's SHA-256 against srcRoot. InstalledSize is left zero; the
// caller fills it in once file sizes are known (see mgve-create's build
// command).
func (s *Source) ToPackage(srcRoot string, hashFile func(path string) (string, error)) (*pkgfmt.Package, error) {
	pkg := &pkgfmt.Package{
		Name:         s.Name,
		Version:      s.Version,
		ShortDesc:    s.ShortDesc,
		LongDesc:     s.LongDesc,
		Architecture: pkgfmt.Architecture(s.Architecture),
		URL:          s.URL,
		License:      s.License,
		Groups:       s.Groups,
		OptDepends:   s.OptDepends,
	}
	for _, d := range s.Depends {
		pkg.Depends = append(pkg.Depends, parseSpec(d))
	}
	for _, d := range s.Provides {
		pkg.Provides = append(pkg.Provides, parseSpec(d))
	}
	for _, d := range s.Conflicts {
		pkg.Conflicts = append(pkg.Conflicts, parseSpec(d))
	}
	for _, d := range s.Replaces {
		pkg.Replaces = append(pkg.Replaces, parseSpec(d))
	}

	dirs := map[string]bool{}
	for _, f := range s.Files {
		sum, err := hashFile(srcRoot + "/" + f.Src)
		if err != nil {
			return nil, err
		}
		pkg.Contents.Files = append(pkg.Contents.Files, pkgfmt.PackageFile{
			Path:   f.Dst,
			Sha256: sum,
			Meta: pkgfmt.FileMetadata{
				Owner:       f.Owner,
				Group:       f.Group,
				Permissions: f.Mode,
			},
		})
		dirs[dirname(f.Dst)] = true
	}
	for dir := range dirs {
		pkg.Contents.Folders = append(pkg.Contents.Folders, pkgfmt.PackageFolder{
			Path: dir,
			Meta: pkgfmt.FileMetadata{Permissions: 0755},
		})
	}
	for _, l := range s.Links {
		pkg.Contents.Links = append(pkg.Contents.Links, pkgfmt.PackageLink{
			Path: l.Dst, Target: l.Target,
		})
	}

	return pkg, nil
}

func dirname(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}
