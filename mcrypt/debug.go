package mcrypt

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DebugDumpEnvelope renders a human-readable, field-by-field dump of an SPF
// envelope. If pub is non-nil, it also attempts decryption and reports the
// verdict; a nil pub limits the dump to structural fields.
func DebugDumpEnvelope(data []byte, pub *PublicKey) string {
	var b strings.Builder
	signature, ciphertext, err := parse(data)
	if err != nil {
		fmt.Fprintf(&b, "structurally invalid: %v\n", err)
		return b.String()
	}
	fmt.Fprintf(&b, "magic: %x\n", data[0:4])
	fmt.Fprintf(&b, "signature (%d bytes): %s\n", len(signature), hex.EncodeToString(signature))
	fmt.Fprintf(&b, "ciphertext length: %d\n", len(ciphertext))
	fmt.Fprintf(&b, "sentinel: ok\n")

	if pub == nil {
		b.WriteString("no public key supplied, skipping verification\n")
		return b.String()
	}
	plaintext, err := Decrypt(pub, data)
	if err != nil {
		fmt.Fprintf(&b, "decrypt/verify failed: %v\n", err)
		return b.String()
	}
	fmt.Fprintf(&b, "verified: true, plaintext length: %d\n", len(plaintext))
	return b.String()
}
