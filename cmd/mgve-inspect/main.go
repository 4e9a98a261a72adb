// Command mgve-inspect dumps information about a Mangrove package file,
// either a raw archive or a signed envelope around one.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/mangrove/mangrove/archive"
	"github.com/mangrove/mangrove/mcrypt"
)

func main() {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	pubkey := fs.String("pubkey", "", "base64-anonymous Ed25519 public key to verify against")
	fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: mgve-inspect <file> [-pubkey K]")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal(err)
	}

	if mcrypt.IsSignedPackage(data) {
		var pub *mcrypt.PublicKey
		if *pubkey != "" {
			pub, err = mcrypt.PublicKeyFromAnonymous(*pubkey)
			if err != nil {
				fatal(err)
			}
		}
		fmt.Print(mcrypt.DebugDumpEnvelope(data, pub))
		if pub == nil {
			return
		}
		plaintext, err := mcrypt.Decrypt(pub, data)
		if err != nil {
			fatal(err)
		}
		data = plaintext
	}

	pkg, err := archive.Load(bytes.NewReader(data))
	if err != nil {
		fatal(err)
	}

	fmt.Printf("name: %s\n", pkg.Name)
	fmt.Printf("version: %s\n", pkg.Version)
	fmt.Printf("architecture: %s\n", pkg.Architecture)
	fmt.Printf("short description: %s\n", pkg.ShortDesc)
	fmt.Printf("installed size: %d\n", pkg.InstalledSize)
	fmt.Printf("files: %d, folders: %d, links: %d\n",
		len(pkg.Contents.Files), len(pkg.Contents.Folders), len(pkg.Contents.Links))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mgve-inspect:", err)
	os.Exit(1)
}
