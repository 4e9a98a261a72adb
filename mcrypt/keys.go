// Package mcrypt implements Mangrove's Signed Package Format: SHA-256
// hashing, Ed25519 key material, AES-ECB+PKCS7 symmetric encryption, and
// the envelope codec that combines them.
package mcrypt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/mangrove/mangrove/mgveerr"
)

// PublicKey wraps an Ed25519 public key.
type PublicKey struct {
	raw ed25519.PublicKey
}

// PrivateKey wraps an Ed25519 private key. The trustcache gives its
// associated PublicKey the same trust or denial as the private key itself
// (see trustcache).
type PrivateKey struct {
	raw ed25519.PrivateKey
}

// GenerateKeypair creates a new Ed25519 key pair.
func GenerateKeypair() (*PublicKey, *PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &PublicKey{raw: pub}, &PrivateKey{raw: priv}, nil
}

// Bytes returns the raw 32-byte public key.
func (k *PublicKey) Bytes() []byte { return []byte(k.raw) }

// Bytes returns the raw 64-byte private key.
func (k *PrivateKey) Bytes() []byte { return []byte(k.raw) }

// Public derives the public key associated with this private key.
func (k *PrivateKey) Public() *PublicKey {
	return &PublicKey{raw: k.raw.Public().(ed25519.PublicKey)}
}

// ToAnonymous encodes the key as a standard base64 string, the form used in
// trust commands and repository manifests.
func (k *PublicKey) ToAnonymous() string { return base64.StdEncoding.EncodeToString(k.raw) }

// ToAnonymous encodes the key as a standard base64 string.
func (k *PrivateKey) ToAnonymous() string { return base64.StdEncoding.EncodeToString(k.raw) }

// PublicKeyFromBytes wraps a raw 32-byte Ed25519 public key.
func PublicKeyFromBytes(raw []byte) (*PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, &mgveerr.FormatInvalidError{Field: "public key length"}
	}
	return &PublicKey{raw: ed25519.PublicKey(raw)}, nil
}

// PublicKeyFromAnonymous parses a base64-encoded Ed25519 public key.
func PublicKeyFromAnonymous(s string) (*PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &mgveerr.FormatInvalidError{Field: "public key base64"}
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, &mgveerr.FormatInvalidError{Field: "public key length"}
	}
	return &PublicKey{raw: ed25519.PublicKey(raw)}, nil
}

// PrivateKeyFromAnonymous parses a base64-encoded Ed25519 private key.
func PrivateKeyFromAnonymous(s string) (*PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &mgveerr.FormatInvalidError{Field: "private key base64"}
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, &mgveerr.FormatInvalidError{Field: "private key length"}
	}
	return &PrivateKey{raw: ed25519.PrivateKey(raw)}, nil
}

// Sign signs message with the private key.
func (k *PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(k.raw, message)
}

// Verify reports whether signature is a valid Ed25519 signature of message
// under this public key.
func (k *PublicKey) Verify(message, signature []byte) bool {
	return ed25519.Verify(k.raw, message, signature)
}

// Equal reports whether two public keys are the same key.
func (k *PublicKey) Equal(other *PublicKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.raw.Equal(other.raw)
}
