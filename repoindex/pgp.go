package repoindex

import (
	"bytes"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"

	"github.com/mangrove/mangrove/mgveerr"
)

// SignRepoInfoPGP produces a clearsigned message over data using signer:
// the data in clear text followed by an armored inline signature, for repository mirrors that additionally publish a
// PGP signature alongside the mandatory Ed25519 SPF envelope (e.g. to stay
// consumable by tooling that only understands PGP-signed indexes).
func SignRepoInfoPGP(data []byte, signer *openpgp.Entity) ([]byte, error) {
	var buf bytes.Buffer
	w, err := clearsign.Encode(&buf, signer.PrivateKey, nil)
	if err != nil {
		return nil, &mgveerr.IoError{Op: "pgp clearsign", Err: err}
	}
	if _, err := w.Write(data); err != nil {
		return nil, &mgveerr.IoError{Op: "pgp clearsign write", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &mgveerr.IoError{Op: "pgp clearsign close", Err: err}
	}
	return buf.Bytes(), nil
}

// ExtractPublicKeyPGP armors signer's public key for publication alongside
// a repository's repoinfo subresource.
func ExtractPublicKeyPGP(signer *openpgp.Entity) (string, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return "", &mgveerr.IoError{Op: "pgp armor", Err: err}
	}
	if err := signer.Serialize(w); err != nil {
		return "", &mgveerr.IoError{Op: "pgp serialize", Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &mgveerr.IoError{Op: "pgp armor close", Err: err}
	}
	return buf.String(), nil
}
