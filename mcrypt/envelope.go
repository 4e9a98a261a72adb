package mcrypt

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/mangrove/mangrove/mgveerr"
)

// Magic is the 4-byte signed-package-format marker.
var Magic = [4]byte{0x4D, 0x47, 0x56, 0x45}

const (
	sigLen    = 64 // ed25519.SignatureSize
	sentinel  = 0x42
	separator = 0x00
)

// Encrypt builds a signed, encrypted envelope around plaintext: the
// signature is computed over plaintext, and the AES-256 key used to
// encrypt plaintext is derived from that signature, so verification and
// decryption are two views of the same key material.
func Encrypt(priv *PrivateKey, plaintext []byte) ([]byte, error) {
	signature := priv.Sign(plaintext)
	if !priv.Public().Verify(plaintext, signature) {
		return nil, &mgveerr.CryptoIntegrityError{Reason: "signature failed local round-trip verification"}
	}

	symKey := deriveKey(signature)
	ciphertext, err := EncryptAES256(symKey, plaintext)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) > 0xFFFFFFFF {
		return nil, &mgveerr.DataTooLargeError{Size: len(ciphertext)}
	}

	out := make([]byte, 0, 4+1+sigLen+1+4+len(ciphertext)+1)
	out = append(out, Magic[:]...)
	out = append(out, byte(sigLen))
	out = append(out, signature...)
	out = append(out, separator)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(ciphertext)))
	out = append(out, lenBuf[:]...)
	out = append(out, ciphertext...)
	out = append(out, sentinel)
	return out, nil
}

// Decrypt decrypts an envelope produced by Encrypt and verifies its
// signature against pub. Decryption happens first (the symmetric key is
// derived purely from the embedded signature), then the recovered
// plaintext's signature is checked against pub; a mismatch returns
// CryptoIntegrityError and the plaintext is discarded.
func Decrypt(pub *PublicKey, envelope []byte) ([]byte, error) {
	signature, ciphertext, err := parse(envelope)
	if err != nil {
		return nil, err
	}

	symKey := deriveKey(signature)
	plaintext, err := DecryptAES256(symKey, ciphertext)
	if err != nil {
		return nil, err
	}

	if !pub.Verify(plaintext, signature) {
		return nil, &mgveerr.CryptoIntegrityError{Reason: "signature does not match public key"}
	}
	return plaintext, nil
}

// IsSignedPackage reports whether data has the structural shape of an SPF
// envelope (magic, length fields, sentinel), without verifying any
// signature.
func IsSignedPackage(data []byte) bool {
	_, _, err := parse(data)
	return err == nil
}

// FindKeyByTrial returns the first candidate public key under which
// envelope's embedded signature verifies against the decrypted plaintext,
// trying each candidate in order.
func FindKeyByTrial(envelope []byte, candidates []*PublicKey) (*PublicKey, []byte, error) {
	signature, ciphertext, err := parse(envelope)
	if err != nil {
		return nil, nil, err
	}
	symKey := deriveKey(signature)
	plaintext, err := DecryptAES256(symKey, ciphertext)
	if err != nil {
		return nil, nil, err
	}
	for _, pk := range candidates {
		if pk.Verify(plaintext, signature) {
			return pk, plaintext, nil
		}
	}
	return nil, nil, &mgveerr.CryptoIntegrityError{Reason: "no candidate key verifies signature"}
}

// parse validates envelope's structure and returns its signature and
// ciphertext without touching any key.
func parse(data []byte) (signature, ciphertext []byte, err error) {
	if len(data) < 4+1+sigLen+1+4+1 {
		return nil, nil, &mgveerr.FormatInvalidError{Field: "envelope too short"}
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return nil, nil, &mgveerr.FormatInvalidError{Field: "magic"}
	}
	off := 4
	sLen := int(data[off])
	off++
	if sLen != sigLen {
		return nil, nil, &mgveerr.FormatInvalidError{Field: "signature length"}
	}
	signature = data[off : off+sLen]
	off += sLen
	if data[off] != separator {
		return nil, nil, &mgveerr.FormatInvalidError{Field: "separator"}
	}
	off++
	dLen := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	if off+int(dLen)+1 != len(data) {
		return nil, nil, &mgveerr.FormatInvalidError{Field: "declared length"}
	}
	ciphertext = data[off : off+int(dLen)]
	off += int(dLen)
	if data[off] != sentinel {
		return nil, nil, &mgveerr.FormatInvalidError{Field: "sentinel"}
	}
	return signature, ciphertext, nil
}

// deriveKey computes the AES-256 key for an envelope's signature: SHA-256
// truncated to 32 bytes (sha256.Size is already exactly 32).
func deriveKey(signature []byte) []byte {
	sum := sha256.Sum256(signature)
	return sum[:32]
}
