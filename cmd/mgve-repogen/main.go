// Command mgve-repogen builds an in-memory Mangrove repository index out of
// a directory of package archives, copies the archives that load into the
// output directory, and prints a one-line summary. The index itself is not
// written to disk.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mangrove/mangrove/archive"
	"github.com/mangrove/mangrove/mcrypt"
	"github.com/mangrove/mangrove/pkgfmt"
	"github.com/mangrove/mangrove/repoindex"
)

func main() {
	fs := flag.NewFlagSet("repogen", flag.ExitOnError)
	keyPath := fs.String("key", "", "path to the Ed25519 private key this repository signs packages under")
	dontExportIndex := fs.Bool("dont-export-index", false, "skip printing the index summary (no index file is written either way)")
	fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: mgve-repogen <in-dir> <out-dir> <baseurl> [-key K] [-dont-export-index]")
		os.Exit(1)
	}
	inDir, outDir, baseURL := args[0], args[1], args[2]

	var signingPub *mcrypt.PublicKey
	if *keyPath != "" {
		keyData, err := os.ReadFile(*keyPath)
		if err != nil {
			fatal(err)
		}
		priv, err := mcrypt.PrivateKeyFromAnonymous(trimNewline(string(keyData)))
		if err != nil {
			fatal(err)
		}
		signingPub = priv.Public()
	}

	repo := &repoindex.Repository{
		Info:       repoindex.RepoInfo{BaseURL: baseURL},
		SigningKey: signingPub,
	}

	entries, err := os.ReadDir(inDir)
	if err != nil {
		fatal(err)
	}
	archSet := map[pkgfmt.Architecture]bool{}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mgve" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(inDir, entry.Name()))
		if err != nil {
			fatal(err)
		}
		pkg, err := archive.Load(bytes.NewReader(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "mgve-repogen: skipping %s: %v\n", entry.Name(), err)
			continue
		}
		repo.Append(*pkg)
		archSet[pkg.Architecture] = true

		if err := os.MkdirAll(outDir, 0755); err != nil {
			fatal(err)
		}
		if err := os.WriteFile(filepath.Join(outDir, entry.Name()), data, 0644); err != nil {
			fatal(err)
		}
	}

	for arch := range archSet {
		repo.Info.SupportedArchitectures = append(repo.Info.SupportedArchitectures, arch)
	}

	if !*dontExportIndex {
		fmt.Printf("repository %q: %d architectures indexed\n", repo.Info.BaseURL, len(repo.Info.SupportedArchitectures))
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mgve-repogen:", err)
	os.Exit(1)
}
