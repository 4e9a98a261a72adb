package mcrypt

import "testing"

func TestEnvelopeRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	plaintext := []byte("package contents go here")
	envelope, err := Encrypt(priv, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if !IsSignedPackage(envelope) {
		t.Fatalf("expected envelope to be structurally recognized")
	}

	got, err := Decrypt(pub, envelope)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestEnvelopeVerifyRejectsWrongKey(t *testing.T) {
	_, priv, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	otherPub, _, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	envelope, err := Encrypt(priv, []byte("hello"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(otherPub, envelope); err == nil {
		t.Fatalf("expected verification to fail against the wrong public key")
	}
}

func TestIsSignedPackageRejectsGarbage(t *testing.T) {
	if IsSignedPackage([]byte("not a package")) {
		t.Fatalf("expected garbage input to be rejected")
	}
}

func TestFindKeyByTrial(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	decoyPub, _, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	envelope, err := Encrypt(priv, []byte("trial"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	found, plaintext, err := FindKeyByTrial(envelope, []*PublicKey{decoyPub, pub})
	if err != nil {
		t.Fatalf("find by trial: %v", err)
	}
	if !found.Equal(pub) {
		t.Fatalf("expected to find the matching key")
	}
	if string(plaintext) != "trial" {
		t.Fatalf("unexpected plaintext: %q", plaintext)
	}
}
