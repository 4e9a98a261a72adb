// Command mgve-trust allows, denies, clears, and queries keys in the
// Mangrove trustcache.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mangrove/mangrove/mcrypt"
	"github.com/mangrove/mangrove/trustcache"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	sub := os.Args[1]
	fs := flag.NewFlagSet(sub, flag.ExitOnError)
	local := fs.Bool("local", false, "use the local, per-directory trustcache instead of /etc/mangrove")
	fs.Parse(os.Args[3:])
	key := os.Args[2]

	tc, err := trustcache.Load(*local)
	if err != nil {
		fatal(err)
	}

	switch sub {
	case "allow":
		runAllow(tc, key)
	case "deny":
		runDeny(tc, key)
	case "clear":
		runClear(tc, key)
	case "query":
		runQuery(tc, key)
		tc.Discard()
		return
	default:
		tc.Discard()
		usage()
		os.Exit(1)
	}

	if err := tc.Save(); err != nil {
		fatal(err)
	}
	fmt.Println("ok")
}

// classify tries the key as a private key first, then a public key, the
// same disambiguation order the original trust command uses.
func classify(key string) (priv *mcrypt.PrivateKey, pub *mcrypt.PublicKey, err error) {
	if priv, err = mcrypt.PrivateKeyFromAnonymous(key); err == nil {
		return priv, nil, nil
	}
	if pub, err = mcrypt.PublicKeyFromAnonymous(key); err == nil {
		return nil, pub, nil
	}
	return nil, nil, fmt.Errorf("unrecognized key: %s", key)
}

func runAllow(tc *trustcache.Trustcache, key string) {
	priv, pub, err := classify(key)
	if err != nil {
		tc.Discard()
		fatal(err)
	}
	if priv != nil {
		tc.AllowPrivateKey(priv)
		return
	}
	if err := tc.AllowPublicKey(pub); err != nil {
		tc.Discard()
		fatal(err)
	}
}

func runDeny(tc *trustcache.Trustcache, key string) {
	priv, pub, err := classify(key)
	if err != nil {
		tc.Discard()
		fatal(err)
	}
	if priv != nil {
		tc.DenyPrivateKey(priv)
		return
	}
	if err := tc.DenyPublicKey(pub); err != nil {
		tc.Discard()
		fatal(err)
	}
}

func runClear(tc *trustcache.Trustcache, key string) {
	priv, pub, err := classify(key)
	if err != nil {
		tc.Discard()
		fatal(err)
	}
	if priv != nil {
		tc.ClearPrivateKey(priv)
	} else {
		tc.ClearPublicKey(pub)
	}
}

func runQuery(tc *trustcache.Trustcache, key string) {
	priv, pub, err := classify(key)
	if err != nil {
		fatal(err)
	}
	if priv != nil {
		pub = priv.Public()
	}
	switch tc.ResolvePublicKey(pub) {
	case trustcache.Trusted:
		fmt.Println("trusted")
	case trustcache.Denied:
		fmt.Println("denied")
	default:
		fmt.Println("unknown")
	}
}

func usage() {
	fmt.Println("Usage: mgve-trust <allow|deny|clear|query> <key> [-local]")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mgve-trust:", err)
	os.Exit(1)
}
