// Command mgve-install installs a Mangrove package file into a target root.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mangrove/mangrove/installer"
	"github.com/mangrove/mangrove/pkgdb"
)

func main() {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	target := fs.String("target", "/", "filesystem root to install into")
	local := fs.Bool("local", false, "use the local, per-directory package db")
	fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: mgve-install <package-file> [-target T] [-local]")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal(err)
	}

	db, err := pkgdb.Load(*local)
	if err != nil {
		fatal(err)
	}

	pkg, err := installer.InstallFromFile(data, *target, db)
	if err != nil {
		db.Discard()
		fatal(err)
	}

	if err := db.Save(); err != nil {
		fatal(err)
	}

	fmt.Printf("installed %s %s\n", pkg.Name, pkg.Version)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mgve-install:", err)
	os.Exit(1)
}
