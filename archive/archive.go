// Package archive builds, loads, and extracts Mangrove package archives: a
// zstd-compressed tar stream holding one pkginfo manifest entry and one
// entry per file in the package's contents.
package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/mangrove/mangrove/mcrypt"
	"github.com/mangrove/mangrove/mgveerr"
	"github.com/mangrove/mangrove/pkgfmt"
)

// ManifestEntryName is the fixed tar entry name for a package's manifest.
const ManifestEntryName = "pkginfo"

// countingWriter tracks the number of bytes written through it, the same
// small helper the teacher uses to size tar headers as it streams content.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Build assembles a package archive from pkg's manifest plus the files
// named in its contents, read directly from srcRoot, and writes the result
// to dst.
//
// Steps: (1) make a scratch directory named with a fresh UUID under the
// system temp directory (nothing is staged there; it is removed when Build
// returns), (2) verify
// every declared file's SHA-256 against srcRoot, (3) write the manifest as
// the pkginfo entry, (4) append one tar entry per file, (5) wrap the tar
// stream in zstd.
func Build(pkg *pkgfmt.Package, srcRoot string, dst io.Writer) error {
	scratch := filepath.Join(os.TempDir(), "mangrove_build_"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return &mgveerr.IoError{Op: "build scratch dir", Err: err}
	}
	defer os.RemoveAll(scratch)

	for _, f := range pkg.Contents.Files {
		if err := mcrypt.Sha256VerifyFile(filepath.Join(srcRoot, f.Path), f.Sha256); err != nil {
			return err
		}
	}

	zw, err := zstd.NewWriter(dst)
	if err != nil {
		return &mgveerr.IoError{Op: "zstd writer", Err: err}
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	manifest, err := pkg.MarshalBinary()
	if err != nil {
		return &mgveerr.SerializeError{What: "package", Err: err}
	}
	if err := tw.WriteHeader(&tar.Header{
		Name: ManifestEntryName,
		Size: int64(len(manifest)),
		Mode: 0644,
	}); err != nil {
		return &mgveerr.IoError{Op: "write manifest header", Err: err}
	}
	if _, err := tw.Write(manifest); err != nil {
		return &mgveerr.IoError{Op: "write manifest body", Err: err}
	}

	for _, f := range pkg.Contents.Files {
		if err := writeFileEntry(tw, srcRoot, f); err != nil {
			return err
		}
	}

	return nil
}

func writeFileEntry(tw *tar.Writer, srcRoot string, f pkgfmt.PackageFile) error {
	src, err := os.Open(filepath.Join(srcRoot, f.Path))
	if err != nil {
		return &mgveerr.IoError{Op: "open source file", Err: err}
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return &mgveerr.IoError{Op: "stat source file", Err: err}
	}

	if err := tw.WriteHeader(&tar.Header{
		Name:    f.Path,
		Size:    info.Size(),
		Mode:    int64(f.Meta.Permissions),
		ModTime: info.ModTime(),
	}); err != nil {
		return &mgveerr.IoError{Op: "write file header", Err: err}
	}

	cw := &countingWriter{w: tw}
	if _, err := io.Copy(cw, src); err != nil {
		return &mgveerr.IoError{Op: "write file body", Err: err}
	}
	if cw.n != info.Size() {
		return &mgveerr.HashMismatchError{Path: f.Path, Want: "full file", Got: "short write"}
	}
	return nil
}

// normalizeEntryName maps a tar entry name to the "/"-prefixed form the
// manifest's file paths use, stripping a leading "./" if present.
func normalizeEntryName(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + strings.TrimPrefix(name, "./")
}

// Load reads a package archive from src, verifies every file's SHA-256
// against the manifest, and returns the manifest without writing any file
// to disk. A missing pkginfo entry yields ManifestMissingError; any hash
// mismatch, missing file entry, or archive entry the manifest does not
// reference yields HashMismatchError.
func Load(src io.Reader) (*pkgfmt.Package, error) {
	zr, err := zstd.NewReader(src)
	if err != nil {
		return nil, &mgveerr.IoError{Op: "zstd reader", Err: err}
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	var pkg *pkgfmt.Package
	hashes := map[string]string{}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &mgveerr.IoError{Op: "read tar entry", Err: err}
		}
		if hdr.Name == ManifestEntryName || normalizeEntryName(hdr.Name) == "/"+ManifestEntryName {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, &mgveerr.IoError{Op: "read manifest entry", Err: err}
			}
			pkg = &pkgfmt.Package{}
			if err := pkg.UnmarshalBinary(data); err != nil {
				return nil, err
			}
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, &mgveerr.IoError{Op: "read file entry", Err: err}
		}
		hashes[normalizeEntryName(hdr.Name)] = mcrypt.Sha256Bytes(data)
	}

	if pkg == nil {
		return nil, &mgveerr.ManifestMissingError{}
	}

	referenced := make(map[string]bool, len(pkg.Contents.Files))
	for _, f := range pkg.Contents.Files {
		key := normalizeEntryName(f.Path)
		referenced[key] = true
		got, ok := hashes[key]
		if !ok {
			return nil, &mgveerr.HashMismatchError{Path: f.Path, Want: f.Sha256, Got: "missing entry"}
		}
		if got != f.Sha256 {
			return nil, &mgveerr.HashMismatchError{Path: f.Path, Want: f.Sha256, Got: got}
		}
	}
	for name := range hashes {
		if !referenced[name] {
			return nil, &mgveerr.HashMismatchError{Path: name, Want: "no manifest entry", Got: "unreferenced archive entry"}
		}
	}

	return pkg, nil
}

// Extract unpacks a package archive from src into destRoot. It first calls
// Load to validate the manifest and every file's SHA-256, then streams the
// archive's entries a second time to write them out. Folders are created
// first, then files, then links, matching the manifest's required entry
// ordering.
func Extract(src io.Reader, destRoot string) (*pkgfmt.Package, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, &mgveerr.IoError{Op: "read archive", Err: err}
	}

	pkg, err := Load(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	zr, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &mgveerr.IoError{Op: "zstd reader", Err: err}
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	fileBodies := map[string][]byte{}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &mgveerr.IoError{Op: "read tar entry", Err: err}
		}
		if hdr.Name == ManifestEntryName {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, &mgveerr.IoError{Op: "read file entry", Err: err}
		}
		fileBodies[normalizeEntryName(hdr.Name)] = data
	}

	for _, folder := range pkg.Contents.Folders {
		path := filepath.Join(destRoot, folder.Path)
		if err := os.MkdirAll(path, os.FileMode(folder.Meta.Permissions)); err != nil {
			return nil, &mgveerr.IoError{Op: "create folder", Err: err}
		}
		os.Chmod(path, os.FileMode(folder.Meta.Permissions))
		mtime := time.Unix(folder.Mtime, 0)
		os.Chtimes(path, mtime, mtime)
	}

	for _, f := range pkg.Contents.Files {
		body, ok := fileBodies[normalizeEntryName(f.Path)]
		if !ok {
			return nil, &mgveerr.NotFoundError{Path: f.Path}
		}
		path := filepath.Join(destRoot, f.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &mgveerr.IoError{Op: "create parent dir", Err: err}
		}
		if err := os.WriteFile(path, body, os.FileMode(f.Meta.Permissions)); err != nil {
			return nil, &mgveerr.IoError{Op: "write file", Err: err}
		}
		os.Chmod(path, os.FileMode(f.Meta.Permissions))
		mtime := time.Unix(f.Mtime, 0)
		os.Chtimes(path, mtime, mtime)
	}

	for _, l := range pkg.Contents.Links {
		path := filepath.Join(destRoot, l.Path)
		os.Remove(path)
		if err := os.Symlink(l.Target, path); err != nil {
			return nil, &mgveerr.IoError{Op: "create link", Err: err}
		}
	}

	return pkg, nil
}
