package repoindex

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"strings"

	"github.com/blakesmith/ar"

	"github.com/mangrove/mangrove/mgveerr"
	"github.com/mangrove/mangrove/pkgfmt"
)

// ImportForeignControl extracts the Debian control stanza out of a legacy
// .deb (ar-container) package. No command calls it; mgve-repogen indexes
// .mgve archives only. Only the control metadata is recovered; data.tar
// contents are not translated into a Mangrove archive by this function.
func ImportForeignControl(debData []byte) (string, error) {
	r := ar.NewReader(bytes.NewReader(debData))
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &mgveerr.IoError{Op: "read ar header", Err: err}
		}
		if !strings.HasPrefix(header.Name, "control.tar") {
			continue
		}

		tarData := make([]byte, header.Size)
		if _, err := io.ReadFull(r, tarData); err != nil {
			return "", &mgveerr.IoError{Op: "read control member", Err: err}
		}

		var tr *tar.Reader
		if strings.HasSuffix(header.Name, ".gz") {
			gzr, err := gzip.NewReader(bytes.NewReader(tarData))
			if err != nil {
				return "", &mgveerr.IoError{Op: "gzip control member", Err: err}
			}
			defer gzr.Close()
			tr = tar.NewReader(gzr)
		} else {
			tr = tar.NewReader(bytes.NewReader(tarData))
		}

		for {
			th, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", &mgveerr.IoError{Op: "read control tar entry", Err: err}
			}
			if strings.TrimPrefix(th.Name, "./") == "control" {
				var buf bytes.Buffer
				if _, err := io.Copy(&buf, tr); err != nil {
					return "", &mgveerr.IoError{Op: "read control entry", Err: err}
				}
				return buf.String(), nil
			}
		}
	}
	return "", &mgveerr.ManifestMissingError{}
}

// ForeignPackageStub builds a minimal pkgfmt.Package from a foreign
// control stanza's Package/Version/Architecture fields, for listing
// imported packages in a repository index without a full archive
// conversion.
func ForeignPackageStub(name, version string, arch pkgfmt.Architecture) pkgfmt.Package {
	return pkgfmt.Package{Name: name, Version: version, Architecture: arch}
}
