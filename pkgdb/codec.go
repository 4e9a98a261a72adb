package pkgdb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mangrove/mangrove/mgveerr"
	"github.com/mangrove/mangrove/pkgfmt"
)

// marshal encodes the database as a sequence of length-prefixed records,
// reusing pkgfmt's manifest codec for each installed package so the
// installed-DB and standalone package archives share one wire format for
// the type they have in common.
func (db *Database) marshal() ([]byte, error) {
	var buf bytes.Buffer

	writeUint32(&buf, uint32(len(db.InstalledPackages)))
	for i := range db.InstalledPackages {
		raw, err := db.InstalledPackages[i].MarshalBinary()
		if err != nil {
			return nil, &mgveerr.SerializeError{What: "installed package", Err: err}
		}
		writeUint32(&buf, uint32(len(raw)))
		buf.Write(raw)
	}

	writeUint32(&buf, uint32(len(db.Repositories)))
	for _, r := range db.Repositories {
		writeString(&buf, r.Info.Name)
		writeString(&buf, r.Info.BaseURL)
		writeUint32(&buf, uint32(len(r.Info.SupportedArchitectures)))
		for _, a := range r.Info.SupportedArchitectures {
			writeString(&buf, string(a))
		}
		writeUint32(&buf, uint32(len(r.SigningKey)))
		buf.Write(r.SigningKey)
	}

	return buf.Bytes(), nil
}

func (db *Database) unmarshal(data []byte) error {
	r := bytes.NewReader(data)

	npkg, err := readUint32(r)
	if err != nil {
		return &mgveerr.DeserializeError{What: "package db", Err: err}
	}
	db.InstalledPackages = make([]pkgfmt.Package, npkg)
	for i := uint32(0); i < npkg; i++ {
		n, err := readUint32(r)
		if err != nil {
			return &mgveerr.DeserializeError{What: "package db", Err: err}
		}
		raw := make([]byte, n)
		if _, err := r.Read(raw); err != nil {
			return &mgveerr.DeserializeError{What: "package db", Err: err}
		}
		if err := db.InstalledPackages[i].UnmarshalBinary(raw); err != nil {
			return err
		}
	}

	nrepo, err := readUint32(r)
	if err != nil {
		return &mgveerr.DeserializeError{What: "package db", Err: err}
	}
	db.Repositories = make([]DbRepository, nrepo)
	for i := uint32(0); i < nrepo; i++ {
		name, err := readString(r)
		if err != nil {
			return &mgveerr.DeserializeError{What: "package db", Err: err}
		}
		baseurl, err := readString(r)
		if err != nil {
			return &mgveerr.DeserializeError{What: "package db", Err: err}
		}
		narch, err := readUint32(r)
		if err != nil {
			return &mgveerr.DeserializeError{What: "package db", Err: err}
		}
		arches := make([]pkgfmt.Architecture, narch)
		for j := uint32(0); j < narch; j++ {
			a, err := readString(r)
			if err != nil {
				return &mgveerr.DeserializeError{What: "package db", Err: err}
			}
			arches[j] = pkgfmt.Architecture(a)
		}
		nkey, err := readUint32(r)
		if err != nil {
			return &mgveerr.DeserializeError{What: "package db", Err: err}
		}
		key := make([]byte, nkey)
		if _, err := r.Read(key); err != nil {
			return &mgveerr.DeserializeError{What: "package db", Err: err}
		}
		db.Repositories[i] = DbRepository{
			Info:       RepoInfo{Name: name, BaseURL: baseurl, SupportedArchitectures: arches},
			SigningKey: key,
		}
	}

	return nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(b), nil
}
