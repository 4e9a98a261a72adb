package trustcache

import (
	"os"
	"testing"

	"github.com/mangrove/mangrove/mcrypt"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	return func() { os.Chdir(orig) }
}

func TestAllowPublicKeyPersists(t *testing.T) {
	dir := t.TempDir()
	defer chdir(t, dir)()

	pub, _, err := mcrypt.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	tc, err := Load(true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tc.AllowPublicKey(pub)
	if err := tc.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	tc2, err := Load(true)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer tc2.Discard()

	if got := tc2.ResolvePublicKey(pub); got != Trusted {
		t.Fatalf("expected key to be trusted after reload, got %v", got)
	}
}

func TestPrivateKeyTrustedByAssociation(t *testing.T) {
	dir := t.TempDir()
	defer chdir(t, dir)()

	_, priv, err := mcrypt.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	tc, err := Load(true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer tc.Discard()

	tc.AllowPrivateKey(priv)

	if got := tc.ResolvePublicKey(priv.Public()); got != Trusted {
		t.Fatalf("expected derived public key to be trusted by association, got %v", got)
	}
}

func TestAllowPublicKeyRefusedWhenAssociatedPrivateKeyDenied(t *testing.T) {
	dir := t.TempDir()
	defer chdir(t, dir)()

	pub, priv, err := mcrypt.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	tc, err := Load(true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer tc.Discard()

	tc.DenyPrivateKey(priv)
	if err := tc.AllowPublicKey(pub); err == nil {
		t.Fatalf("expected AllowPublicKey to refuse a key blacklisted by association")
	}
}

func TestDenyPublicKeyRefusedWhenTrustedSolelyByPrivateAssociation(t *testing.T) {
	dir := t.TempDir()
	defer chdir(t, dir)()

	pub, priv, err := mcrypt.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	tc, err := Load(true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer tc.Discard()

	tc.AllowPrivateKey(priv)
	if err := tc.DenyPublicKey(pub); err == nil {
		t.Fatalf("expected DenyPublicKey to refuse a key trusted solely via private-key association")
	}
}

func TestDenyPrivkeyTakesPrecedenceOverKnownPubkey(t *testing.T) {
	dir := t.TempDir()
	defer chdir(t, dir)()

	pub, priv, err := mcrypt.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	tc, err := Load(true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer tc.Discard()

	tc.AllowPublicKey(pub)
	tc.DenyPrivateKey(priv)

	if got := tc.ResolvePublicKey(pub); got != Denied {
		t.Fatalf("expected deny-by-association to take precedence, got %v", got)
	}
}
