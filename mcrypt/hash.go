package mcrypt

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/mangrove/mangrove/mgveerr"
)

// Sha256File returns the lowercase hex SHA-256 digest of the file at path.
func Sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &mgveerr.IoError{Op: "hash open", Err: err}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", &mgveerr.IoError{Op: "hash read", Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sha256VerifyFile checks that the file at path hashes to want.
func Sha256VerifyFile(path, want string) error {
	got, err := Sha256File(path)
	if err != nil {
		return err
	}
	if got != want {
		return &mgveerr.HashMismatchError{Path: path, Want: want, Got: got}
	}
	return nil
}

// Sha256Bytes returns the lowercase hex SHA-256 digest of data.
func Sha256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
