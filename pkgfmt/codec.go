package pkgfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/mangrove/mangrove/mgveerr"
)

// MessagePack-compatible marker bytes, matching the layout the original
// Rust implementation produced via rmp_serde (structs are encoded as
// fixed-size tuples/arrays of their fields, in declaration order, never as
// maps, so field names never appear on the wire; Option<T>::None encodes
// as nil, Option<T>::Some(v) encodes as v directly).
const (
	mpFixArrayBase = 0x90
	mpFixStrBase   = 0xA0
	mpStr8         = 0xD9
	mpArray16      = 0xDC
	mpUint8        = 0xCC
	mpUint16       = 0xCD
	mpUint32       = 0xCE
	mpUint64       = 0xCF
	mpInt64        = 0xD3
	mpNil          = 0xC0
)

type encoder struct{ buf bytes.Buffer }

func (e *encoder) nil() { e.buf.WriteByte(mpNil) }

func (e *encoder) array(n int) {
	if n < 16 {
		e.buf.WriteByte(byte(mpFixArrayBase | n))
		return
	}
	e.buf.WriteByte(mpArray16)
	binary.Write(&e.buf, binary.BigEndian, uint16(n))
}

func (e *encoder) str(s string) {
	if len(s) < 32 {
		e.buf.WriteByte(byte(mpFixStrBase | len(s)))
		e.buf.WriteString(s)
		return
	}
	e.buf.WriteByte(mpStr8)
	e.buf.WriteByte(byte(len(s)))
	e.buf.WriteString(s)
}

// nilableStr encodes s as nil when it is the Go zero value (absent),
// otherwise as a string.
func (e *encoder) nilableStr(s string) {
	if s == "" {
		e.nil()
		return
	}
	e.str(s)
}

func (e *encoder) uint(v uint64) {
	switch {
	case v < 128:
		e.buf.WriteByte(byte(v))
	case v <= 0xFF:
		e.buf.WriteByte(mpUint8)
		e.buf.WriteByte(byte(v))
	case v <= 0xFFFF:
		e.buf.WriteByte(mpUint16)
		binary.Write(&e.buf, binary.BigEndian, uint16(v))
	case v <= 0xFFFFFFFF:
		e.buf.WriteByte(mpUint32)
		binary.Write(&e.buf, binary.BigEndian, uint32(v))
	default:
		e.buf.WriteByte(mpUint64)
		binary.Write(&e.buf, binary.BigEndian, v)
	}
}

func (e *encoder) int64(v int64) {
	if v >= 0 {
		e.uint(uint64(v))
		return
	}
	e.buf.WriteByte(mpInt64)
	binary.Write(&e.buf, binary.BigEndian, v)
}

func (e *encoder) strArray(ss []string) {
	e.array(len(ss))
	for _, s := range ss {
		e.str(s)
	}
}

// nilableStrArray encodes ss as nil when absent (a nil or empty slice),
// otherwise as an array.
func (e *encoder) nilableStrArray(ss []string) {
	if len(ss) == 0 {
		e.nil()
		return
	}
	e.strArray(ss)
}

// wireConstraint maps PkgSpec's Go-facing "any" sentinel (and the empty
// string) to the wire's literal "*", matching what the original
// implementation's VersionReq{comparators: vec![]} serializes to.
func wireConstraint(c string) string {
	if c == "" || c == "any" {
		return "*"
	}
	return c
}

// fromWireConstraint is wireConstraint's inverse: a bare "*" decodes back
// to the Go-facing "any" sentinel.
func fromWireConstraint(c string) string {
	if c == "*" {
		return "any"
	}
	return c
}

func (e *encoder) pkgSpec(s PkgSpec) {
	e.array(2)
	e.str(s.Name)
	e.str(wireConstraint(s.Constraint))
}

func (e *encoder) pkgSpecArray(specs []PkgSpec) {
	e.array(len(specs))
	for _, s := range specs {
		e.pkgSpec(s)
	}
}

// nilablePkgSpecArray encodes specs as nil when absent, otherwise as an
// array.
func (e *encoder) nilablePkgSpecArray(specs []PkgSpec) {
	if len(specs) == 0 {
		e.nil()
		return
	}
	e.pkgSpecArray(specs)
}

func (e *encoder) fileMeta(m FileMetadata) {
	e.array(3)
	e.uint(uint64(m.Owner))
	e.uint(uint64(m.Group))
	e.uint(uint64(m.Permissions))
}

// nilableFolderArray/nilableFileArray/nilableLinkArray each encode their
// list as nil when absent, otherwise as an array of the wire's fixed-shape
// tuples: a folder is [name, mtime, installpath, meta], a file is
// [name, sha256, meta, mtime, installpath], a link is [file, mtime,
// target]. name and installpath are always equal; the duplicate is the
// original wire format's, not this codec's invention.
func (e *encoder) nilableFolderArray(folders []PackageFolder) {
	if len(folders) == 0 {
		e.nil()
		return
	}
	e.array(len(folders))
	for _, f := range folders {
		e.array(4)
		e.str(f.Path)
		e.int64(f.Mtime)
		e.str(f.Path)
		e.fileMeta(f.Meta)
	}
}

func (e *encoder) nilableFileArray(files []PackageFile) {
	if len(files) == 0 {
		e.nil()
		return
	}
	e.array(len(files))
	for _, f := range files {
		e.array(5)
		e.str(f.Path)
		e.str(f.Sha256)
		e.fileMeta(f.Meta)
		e.int64(f.Mtime)
		e.str(f.Path)
	}
}

func (e *encoder) nilableLinkArray(links []PackageLink) {
	if len(links) == 0 {
		e.nil()
		return
	}
	e.array(len(links))
	for _, l := range links {
		e.array(3)
		e.str(l.Path)
		e.int64(l.Mtime)
		e.str(l.Target)
	}
}

func (e *encoder) contents(c PackageContents) {
	e.array(3)
	e.nilableFolderArray(c.Folders)
	e.nilableFileArray(c.Files)
	e.nilableLinkArray(c.Links)
}

// MarshalBinary encodes p in Mangrove's canonical deterministic binary
// manifest format.
func (p *Package) MarshalBinary() ([]byte, error) {
	e := &encoder{}
	e.array(15)
	e.str(p.Name)
	e.str(p.Version)
	e.str(p.ShortDesc)
	e.nilableStr(p.LongDesc)
	e.str(string(p.Architecture))
	e.nilableStr(p.URL)
	e.nilableStr(p.License)
	e.nilableStrArray(p.Groups)
	e.nilablePkgSpecArray(p.Depends)
	e.nilableStrArray(p.OptDepends)
	e.nilablePkgSpecArray(p.Provides)
	e.nilablePkgSpecArray(p.Conflicts)
	e.nilablePkgSpecArray(p.Replaces)
	e.uint(p.InstalledSize)
	e.contents(p.Contents)
	return e.buf.Bytes(), nil
}

// decoder walks a MessagePack-shaped byte slice produced by encoder.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

// peekNil consumes and reports a leading nil marker, if present.
func (d *decoder) peekNil() bool {
	if d.pos < len(d.data) && d.data[d.pos] == mpNil {
		d.pos++
		return true
	}
	return false
}

func (d *decoder) arrayLen() (int, error) {
	b, err := d.byte()
	if err != nil {
		return 0, err
	}
	switch {
	case b>>4 == 0x9:
		return int(b & 0x0F), nil
	case b == mpArray16:
		if d.pos+2 > len(d.data) {
			return 0, io.ErrUnexpectedEOF
		}
		n := binary.BigEndian.Uint16(d.data[d.pos:])
		d.pos += 2
		return int(n), nil
	default:
		return 0, fmt.Errorf("pkgfmt: expected array marker, got 0x%02x", b)
	}
}

func (d *decoder) str() (string, error) {
	b, err := d.byte()
	if err != nil {
		return "", err
	}
	var n int
	switch {
	case b>>5 == 0x5:
		n = int(b & 0x1F)
	case b == mpStr8:
		ln, err := d.byte()
		if err != nil {
			return "", err
		}
		n = int(ln)
	default:
		return "", fmt.Errorf("pkgfmt: expected string marker, got 0x%02x", b)
	}
	if d.pos+n > len(d.data) {
		return "", io.ErrUnexpectedEOF
	}
	s := string(d.data[d.pos : d.pos+n])
	d.pos += n
	return s, nil
}

// nilableStr decodes a string, or leaves the zero value if a nil marker is
// present.
func (d *decoder) nilableStr() (string, error) {
	if d.peekNil() {
		return "", nil
	}
	return d.str()
}

func (d *decoder) uint() (uint64, error) {
	b, err := d.byte()
	if err != nil {
		return 0, err
	}
	switch {
	case b < 0x80:
		return uint64(b), nil
	case b == mpUint8:
		v, err := d.byte()
		return uint64(v), err
	case b == mpUint16:
		if d.pos+2 > len(d.data) {
			return 0, io.ErrUnexpectedEOF
		}
		v := binary.BigEndian.Uint16(d.data[d.pos:])
		d.pos += 2
		return uint64(v), nil
	case b == mpUint32:
		if d.pos+4 > len(d.data) {
			return 0, io.ErrUnexpectedEOF
		}
		v := binary.BigEndian.Uint32(d.data[d.pos:])
		d.pos += 4
		return uint64(v), nil
	case b == mpUint64:
		if d.pos+8 > len(d.data) {
			return 0, io.ErrUnexpectedEOF
		}
		v := binary.BigEndian.Uint64(d.data[d.pos:])
		d.pos += 8
		return v, nil
	default:
		return 0, fmt.Errorf("pkgfmt: expected uint marker, got 0x%02x", b)
	}
}

func (d *decoder) int64() (int64, error) {
	if d.pos < len(d.data) && d.data[d.pos] == mpInt64 {
		d.pos++
		if d.pos+8 > len(d.data) {
			return 0, io.ErrUnexpectedEOF
		}
		v := int64(binary.BigEndian.Uint64(d.data[d.pos:]))
		d.pos += 8
		return v, nil
	}
	v, err := d.uint()
	return int64(v), err
}

func (d *decoder) strArray() ([]string, error) {
	n, err := d.arrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		out[i], err = d.str()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// nilableStrArray decodes a string array, or nil if a nil marker is
// present.
func (d *decoder) nilableStrArray() ([]string, error) {
	if d.peekNil() {
		return nil, nil
	}
	return d.strArray()
}

func (d *decoder) pkgSpec() (PkgSpec, error) {
	n, err := d.arrayLen()
	if err != nil || n != 2 {
		return PkgSpec{}, fmt.Errorf("pkgfmt: malformed PkgSpec")
	}
	name, err := d.str()
	if err != nil {
		return PkgSpec{}, err
	}
	constraint, err := d.str()
	if err != nil {
		return PkgSpec{}, err
	}
	return PkgSpec{Name: name, Constraint: fromWireConstraint(constraint)}, nil
}

func (d *decoder) pkgSpecArray() ([]PkgSpec, error) {
	n, err := d.arrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]PkgSpec, n)
	for i := range out {
		out[i], err = d.pkgSpec()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// nilablePkgSpecArray decodes a PkgSpec array, or nil if a nil marker is
// present.
func (d *decoder) nilablePkgSpecArray() ([]PkgSpec, error) {
	if d.peekNil() {
		return nil, nil
	}
	return d.pkgSpecArray()
}

func (d *decoder) fileMeta() (FileMetadata, error) {
	n, err := d.arrayLen()
	if err != nil || n != 3 {
		return FileMetadata{}, fmt.Errorf("pkgfmt: malformed FileMetadata")
	}
	owner, err := d.uint()
	if err != nil {
		return FileMetadata{}, err
	}
	group, err := d.uint()
	if err != nil {
		return FileMetadata{}, err
	}
	perm, err := d.uint()
	if err != nil {
		return FileMetadata{}, err
	}
	return FileMetadata{Owner: uint32(owner), Group: uint32(group), Permissions: uint32(perm)}, nil
}

func (d *decoder) nilableFolderArray() ([]PackageFolder, error) {
	if d.peekNil() {
		return nil, nil
	}
	n, err := d.arrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]PackageFolder, n)
	for i := range out {
		if fn, err := d.arrayLen(); err != nil || fn != 4 {
			return nil, fmt.Errorf("pkgfmt: malformed PackageFolder")
		}
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		mtime, err := d.int64()
		if err != nil {
			return nil, err
		}
		installPath, err := d.str()
		if err != nil {
			return nil, err
		}
		if installPath != name {
			return nil, &mgveerr.FormatInvalidError{Field: "folder name/installpath mismatch"}
		}
		meta, err := d.fileMeta()
		if err != nil {
			return nil, err
		}
		out[i] = PackageFolder{Path: name, Mtime: mtime, Meta: meta}
	}
	return out, nil
}

func (d *decoder) nilableFileArray() ([]PackageFile, error) {
	if d.peekNil() {
		return nil, nil
	}
	n, err := d.arrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]PackageFile, n)
	for i := range out {
		if fn, err := d.arrayLen(); err != nil || fn != 5 {
			return nil, fmt.Errorf("pkgfmt: malformed PackageFile")
		}
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		sha256, err := d.str()
		if err != nil {
			return nil, err
		}
		meta, err := d.fileMeta()
		if err != nil {
			return nil, err
		}
		mtime, err := d.int64()
		if err != nil {
			return nil, err
		}
		installPath, err := d.str()
		if err != nil {
			return nil, err
		}
		if installPath != name {
			return nil, &mgveerr.FormatInvalidError{Field: "file name/installpath mismatch"}
		}
		out[i] = PackageFile{Path: name, Sha256: sha256, Meta: meta, Mtime: mtime}
	}
	return out, nil
}

func (d *decoder) nilableLinkArray() ([]PackageLink, error) {
	if d.peekNil() {
		return nil, nil
	}
	n, err := d.arrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]PackageLink, n)
	for i := range out {
		if ln, err := d.arrayLen(); err != nil || ln != 3 {
			return nil, fmt.Errorf("pkgfmt: malformed PackageLink")
		}
		path, err := d.str()
		if err != nil {
			return nil, err
		}
		mtime, err := d.int64()
		if err != nil {
			return nil, err
		}
		target, err := d.str()
		if err != nil {
			return nil, err
		}
		out[i] = PackageLink{Path: path, Mtime: mtime, Target: target}
	}
	return out, nil
}

func (d *decoder) contents() (PackageContents, error) {
	if n, err := d.arrayLen(); err != nil || n != 3 {
		return PackageContents{}, fmt.Errorf("pkgfmt: malformed PackageContents")
	}
	folders, err := d.nilableFolderArray()
	if err != nil {
		return PackageContents{}, err
	}
	files, err := d.nilableFileArray()
	if err != nil {
		return PackageContents{}, err
	}
	links, err := d.nilableLinkArray()
	if err != nil {
		return PackageContents{}, err
	}
	return PackageContents{Folders: folders, Files: files, Links: links}, nil
}

// UnmarshalBinary decodes p from Mangrove's canonical manifest format.
func (p *Package) UnmarshalBinary(data []byte) error {
	d := &decoder{data: data}
	n, err := d.arrayLen()
	if err != nil {
		return &mgveerr.DeserializeError{What: "package", Err: err}
	}
	if n != 15 {
		return &mgveerr.DeserializeError{What: "package", Err: fmt.Errorf("expected 15 fields, got %d", n)}
	}

	fields := []func() error{
		func() (e error) { p.Name, e = d.str(); return },
		func() (e error) { p.Version, e = d.str(); return },
		func() (e error) { p.ShortDesc, e = d.str(); return },
		func() (e error) { p.LongDesc, e = d.nilableStr(); return },
		func() error {
			s, e := d.str()
			if e != nil {
				return e
			}
			switch Architecture(s) {
			case ArchAmd64, ArchArm64, ArchArmv7:
			default:
				return fmt.Errorf("unknown architecture %q", s)
			}
			p.Architecture = Architecture(s)
			return nil
		},
		func() (e error) { p.URL, e = d.nilableStr(); return },
		func() (e error) { p.License, e = d.nilableStr(); return },
		func() (e error) { p.Groups, e = d.nilableStrArray(); return },
		func() (e error) { p.Depends, e = d.nilablePkgSpecArray(); return },
		func() (e error) { p.OptDepends, e = d.nilableStrArray(); return },
		func() (e error) { p.Provides, e = d.nilablePkgSpecArray(); return },
		func() (e error) { p.Conflicts, e = d.nilablePkgSpecArray(); return },
		func() (e error) { p.Replaces, e = d.nilablePkgSpecArray(); return },
		func() error {
			v, e := d.uint()
			p.InstalledSize = v
			return e
		},
		func() (e error) { p.Contents, e = d.contents(); return },
	}
	for _, f := range fields {
		if err := f(); err != nil {
			return &mgveerr.DeserializeError{What: "package", Err: err}
		}
	}
	return nil
}

// ToFile writes p's canonical encoding to path.
func (p *Package) ToFile(path string) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return &mgveerr.SerializeError{What: "package", Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &mgveerr.IoError{Op: "write manifest", Err: err}
	}
	return nil
}

// FromFile reads and decodes a package manifest from path.
func FromFile(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &mgveerr.IoError{Op: "read manifest", Err: err}
	}
	p := &Package{}
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}
