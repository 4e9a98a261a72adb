// Command mgve-create scaffolds and builds Mangrove package sources.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mangrove/mangrove/archive"
	"github.com/mangrove/mangrove/mcrypt"
	"github.com/mangrove/mangrove/pkgsrc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "new":
		runNew(os.Args[2:])
	case "build":
		runBuild(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func runNew(args []string) {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing mangrove.yaml")
	fs.Parse(args)

	name := "new-package"
	if rest := fs.Args(); len(rest) == 1 {
		name = rest[0]
	}

	if _, err := os.Stat("mangrove.yaml"); err == nil && !*force {
		fatal(fmt.Errorf("mangrove.yaml already exists, use -force to overwrite"))
	}

	if err := pkgsrc.Default(name).Save("mangrove.yaml"); err != nil {
		fatal(err)
	}
	fmt.Println("wrote mangrove.yaml")
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	srcFile := fs.String("src", "mangrove.yaml", "path to the package source document")
	root := fs.String("root", ".", "root directory source file paths are relative to")
	out := fs.String("out", "", "output path (defaults to {name}_{version}_{arch}.mgve)")
	keyPath := fs.String("key", "", "path to an Ed25519 private key to sign the resulting archive")
	fs.Parse(args)

	src, err := pkgsrc.Load(*srcFile)
	if err != nil {
		fatal(err)
	}

	pkg, err := src.ToPackage(*root, mcrypt.Sha256File)
	if err != nil {
		fatal(err)
	}

	var installedSize uint64
	for _, f := range pkg.Contents.Files {
		if info, err := os.Stat(filepath.Join(*root, f.Path)); err == nil {
			installedSize += uint64(info.Size())
		}
	}
	pkg.InstalledSize = installedSize

	dst := *out
	if dst == "" {
		dst = fmt.Sprintf("%s_%s_%s.mgve", pkg.Name, pkg.Version, pkg.Architecture)
	}

	f, err := os.Create(dst)
	if err != nil {
		fatal(err)
	}
	defer f.Close()

	if err := archive.Build(pkg, *root, f); err != nil {
		fatal(err)
	}

	if *keyPath != "" {
		signBuiltArchive(dst, *keyPath)
	}

	fmt.Println(dst)
}

func signBuiltArchive(path, keyPath string) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		fatal(err)
	}
	priv, err := mcrypt.PrivateKeyFromAnonymous(trimNewline(string(keyData)))
	if err != nil {
		fatal(err)
	}
	plaintext, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}
	envelope, err := mcrypt.Encrypt(priv, plaintext)
	if err != nil {
		fatal(err)
	}
	if err := os.WriteFile(path, envelope, 0644); err != nil {
		fatal(err)
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func usage() {
	fmt.Println("Usage: mgve-create <new|build> [flags]")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mgve-create:", err)
	os.Exit(1)
}
