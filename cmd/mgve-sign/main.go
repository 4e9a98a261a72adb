// Command mgve-sign wraps a file in a Mangrove signed package envelope.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mangrove/mangrove/mcrypt"
)

func main() {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyPath := fs.String("key", "", "path to a base64-anonymous Ed25519 private key")
	out := fs.String("out", "", "output path (defaults to <input>.mgve)")
	fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) != 1 || *keyPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: mgve-sign <file> -key <keyfile> [-out F]")
		os.Exit(1)
	}

	keyData, err := os.ReadFile(*keyPath)
	if err != nil {
		fatal(err)
	}
	priv, err := mcrypt.PrivateKeyFromAnonymous(trimNewline(string(keyData)))
	if err != nil {
		fatal(err)
	}

	plaintext, err := os.ReadFile(args[0])
	if err != nil {
		fatal(err)
	}

	envelope, err := mcrypt.Encrypt(priv, plaintext)
	if err != nil {
		fatal(err)
	}

	dst := *out
	if dst == "" {
		dst = args[0] + ".mgve"
	}
	if err := os.WriteFile(dst, envelope, 0644); err != nil {
		fatal(err)
	}
	fmt.Println(dst)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mgve-sign:", err)
	os.Exit(1)
}
