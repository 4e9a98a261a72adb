// Package trustcache manages Mangrove's key allow/deny store: the set of
// public and private keys a system trusts or explicitly distrusts, with
// "trusted by association" semantics (trusting a private key trusts its
// derived public key too).
package trustcache

import (
	"bytes"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/mangrove/mangrove/layout"
	"github.com/mangrove/mangrove/lockfile"
	"github.com/mangrove/mangrove/mcrypt"
	"github.com/mangrove/mangrove/mgveerr"
)

// KeyDb holds the four base64-encoded key sets.
type KeyDb struct {
	KnownPubkeys  []string `yaml:"known_pubkeys"`
	KnownPrivkeys []string `yaml:"known_privkeys"`
	DenyPubkeys   []string `yaml:"deny_pubkeys"`
	DenyPrivkeys  []string `yaml:"deny_privkeys"`
}

// Trustcache couples a KeyDb with the lock that must be held while it is
// mutated in memory.
type Trustcache struct {
	lock *lockfile.Handle
	db   KeyDb
	path string
}

// Load acquires the trustcache lock and reads its document, creating an
// empty one if none exists yet.
func Load(local bool) (*Trustcache, error) {
	lock, err := lockfile.LockTrustcache(local)
	if err != nil {
		return nil, err
	}
	path, err := layout.TrustPath(local)
	if err != nil {
		lock.Discard()
		return nil, err
	}

	tc := &Trustcache{lock: lock, path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return tc, nil
	}
	if err != nil {
		lock.Discard()
		return nil, &mgveerr.IoError{Op: "read trustcache", Err: err}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tc.db); err != nil {
		lock.Discard()
		return nil, &mgveerr.DeserializeError{What: "trustcache", Err: err}
	}
	return tc, nil
}

// Save writes the trustcache document and releases the lock.
func (t *Trustcache) Save() error {
	data, err := yaml.Marshal(&t.db)
	if err != nil {
		t.lock.Discard()
		return &mgveerr.SerializeError{What: "trustcache", Err: err}
	}
	if err := os.WriteFile(t.path, data, 0644); err != nil {
		t.lock.Discard()
		return &mgveerr.IoError{Op: "write trustcache", Err: err}
	}
	return t.lock.Release()
}

// Discard releases the lock without persisting any change.
func (t *Trustcache) Discard() error { return t.lock.Discard() }

// Resolution is the outcome of checking a key against the trustcache.
type Resolution int

const (
	Unknown Resolution = iota
	Trusted
	Denied
)

// ResolvePublicKey resolves trust for a public key, checking deny-privkey
// (by association), deny-pubkey, known-privkey (by association), then
// known-pubkey, in that order.
func (t *Trustcache) ResolvePublicKey(pk *mcrypt.PublicKey) Resolution {
	anon := pk.ToAnonymous()
	for _, sk := range t.db.DenyPrivkeys {
		if derivedPublicMatches(sk, anon) {
			return Denied
		}
	}
	if contains(t.db.DenyPubkeys, anon) {
		return Denied
	}
	for _, sk := range t.db.KnownPrivkeys {
		if derivedPublicMatches(sk, anon) {
			return Trusted
		}
	}
	if contains(t.db.KnownPubkeys, anon) {
		return Trusted
	}
	return Unknown
}

func derivedPublicMatches(privAnon, pubAnon string) bool {
	priv, err := mcrypt.PrivateKeyFromAnonymous(privAnon)
	if err != nil {
		return false
	}
	return priv.Public().ToAnonymous() == pubAnon
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// hasAssocPrivateKey reports whether some private key in the known-private
// set derives to the public key anon.
func (t *Trustcache) hasAssocPrivateKey(anon string) bool {
	for _, sk := range t.db.KnownPrivkeys {
		if derivedPublicMatches(sk, anon) {
			return true
		}
	}
	return false
}

// assocPrivateKeyBlacklisted reports whether some private key in the
// deny-private set derives to the public key anon.
func (t *Trustcache) assocPrivateKeyBlacklisted(anon string) bool {
	for _, sk := range t.db.DenyPrivkeys {
		if derivedPublicMatches(sk, anon) {
			return true
		}
	}
	return false
}

// AllowPublicKey adds pk to the known-public set, removing it from any
// deny set first. It refuses with BlacklistedByAssociationError if pk's
// associated private key is itself denylisted, so deny-by-association
// cannot be silently overridden by promoting the public half directly.
func (t *Trustcache) AllowPublicKey(pk *mcrypt.PublicKey) error {
	anon := pk.ToAnonymous()
	if t.assocPrivateKeyBlacklisted(anon) {
		return &mgveerr.BlacklistedByAssociationError{Key: anon}
	}
	t.db.DenyPubkeys = remove(t.db.DenyPubkeys, anon)
	if !contains(t.db.KnownPubkeys, anon) {
		t.db.KnownPubkeys = append(t.db.KnownPubkeys, anon)
	}
	return nil
}

// AllowPrivateKey adds sk to the known-private set.
func (t *Trustcache) AllowPrivateKey(sk *mcrypt.PrivateKey) {
	anon := sk.ToAnonymous()
	t.db.DenyPrivkeys = remove(t.db.DenyPrivkeys, anon)
	if !contains(t.db.KnownPrivkeys, anon) {
		t.db.KnownPrivkeys = append(t.db.KnownPrivkeys, anon)
	}
}

// DenyPublicKey adds pk to the deny-public set. It refuses with
// BlacklistedByAssociationError when pk is trusted solely through a known
// private key: denying the public half directly would not actually revoke
// that trust, since ResolvePublicKey checks known-privkey association
// before known-pubkey membership.
func (t *Trustcache) DenyPublicKey(pk *mcrypt.PublicKey) error {
	anon := pk.ToAnonymous()
	if t.hasAssocPrivateKey(anon) {
		return &mgveerr.BlacklistedByAssociationError{Key: anon}
	}
	t.db.KnownPubkeys = remove(t.db.KnownPubkeys, anon)
	if !contains(t.db.DenyPubkeys, anon) {
		t.db.DenyPubkeys = append(t.db.DenyPubkeys, anon)
	}
	return nil
}

// DenyPrivateKey adds sk to the deny-private set.
func (t *Trustcache) DenyPrivateKey(sk *mcrypt.PrivateKey) {
	anon := sk.ToAnonymous()
	t.db.KnownPrivkeys = remove(t.db.KnownPrivkeys, anon)
	if !contains(t.db.DenyPrivkeys, anon) {
		t.db.DenyPrivkeys = append(t.db.DenyPrivkeys, anon)
	}
}

// ClearPublicKey removes pk from both known and deny public sets.
func (t *Trustcache) ClearPublicKey(pk *mcrypt.PublicKey) {
	anon := pk.ToAnonymous()
	t.db.KnownPubkeys = remove(t.db.KnownPubkeys, anon)
	t.db.DenyPubkeys = remove(t.db.DenyPubkeys, anon)
}

// ClearPrivateKey removes sk from both known and deny private sets.
func (t *Trustcache) ClearPrivateKey(sk *mcrypt.PrivateKey) {
	anon := sk.ToAnonymous()
	t.db.KnownPrivkeys = remove(t.db.KnownPrivkeys, anon)
	t.db.DenyPrivkeys = remove(t.db.DenyPrivkeys, anon)
}

func remove(set []string, v string) []string {
	out := set[:0:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
