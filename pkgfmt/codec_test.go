package pkgfmt

import (
	"bytes"
	"testing"
)

// testPackage reconstructs the canonical fixture package used across the
// Mangrove test suite: a small package with one file, one folder tree, and
// one symlink, exercising every optional list field at least once. Values
// and the 644 permission literal (a plain decimal, not an octal file mode)
// match the reference implementation's own fixture exactly, so this
// package's encoding can be compared byte-for-byte against a pinned vector.
func testPackage() Package {
	return Package{
		Name:         "test",
		Version:      "0.0.1",
		ShortDesc:    "A test package, used in Mangrove unit tests",
		LongDesc:     "This is a longer package description for test, which is a test package uesd in mangrove unit tests.",
		Architecture: ArchAmd64,
		URL:          "https://mgve.cc",
		License:      "GNU-GPL-3-or-later",
		Groups:       []string{"thisisgroup1", "thisisgroup2"},
		Depends: []PkgSpec{
			{Name: "test-data", Constraint: "any"},
			{Name: "test-data-2", Constraint: "^0.0.0"},
		},
		OptDepends:    []string{"test-opt: for doing something else"},
		Provides:      []PkgSpec{{Name: "other-package", Constraint: "any"}},
		Conflicts:     []PkgSpec{{Name: "conflicting-package", Constraint: "any"}},
		Replaces:      []PkgSpec{{Name: "old-package", Constraint: "any"}},
		InstalledSize: 234234324,
		Contents: PackageContents{
			Folders: []PackageFolder{
				{Path: "/hello_world", Meta: FileMetadata{Permissions: 644}},
				{Path: "/usr", Meta: FileMetadata{Permissions: 644}},
				{Path: "/usr/bin", Meta: FileMetadata{Permissions: 644}},
			},
			Files: []PackageFile{
				{
					Path:   "/hello_world/helloworld",
					Sha256: "cb0659425446bd79e7699e858041748deaae8423f63e6feaf907bfbb9345a32b",
					Meta:   FileMetadata{Permissions: 644},
				},
			},
			Links: []PackageLink{
				{Path: "/hello_world/helloworld", Target: "/usr/bin/helloworld"},
			},
		},
	}
}

// testPackageBytes is libmangrove's get_test_package_bytes(): the exact
// rmp_serde encoding of testPackage(), pinned so this codec's output can be
// checked byte-for-byte against the reference implementation's wire format.
var testPackageBytes = []byte{
	159, 164, 116, 101, 115, 116, 165, 48, 46, 48, 46, 49, 217, 43, 65, 32, 116, 101, 115, 116, 32, 112, 97, 99,
	107, 97, 103, 101, 44, 32, 117, 115, 101, 100, 32, 105, 110, 32, 77, 97, 110, 103, 114, 111, 118, 101, 32,
	117, 110, 105, 116, 32, 116, 101, 115, 116, 115, 217, 99, 84, 104, 105, 115, 32, 105, 115, 32, 97, 32, 108,
	111, 110, 103, 101, 114, 32, 112, 97, 99, 107, 97, 103, 101, 32, 100, 101, 115, 99, 114, 105, 112, 116, 105,
	111, 110, 32, 102, 111, 114, 32, 116, 101, 115, 116, 44, 32, 119, 104, 105, 99, 104, 32, 105, 115, 32, 97, 32,
	116, 101, 115, 116, 32, 112, 97, 99, 107, 97, 103, 101, 32, 117, 101, 115, 100, 32, 105, 110, 32, 109, 97,
	110, 103, 114, 111, 118, 101, 32, 117, 110, 105, 116, 32, 116, 101, 115, 116, 115, 46, 165, 97, 109, 100, 54,
	52, 175, 104, 116, 116, 112, 115, 58, 47, 47, 109, 103, 118, 101, 46, 99, 99, 178, 71, 78, 85, 45, 71, 80, 76,
	45, 51, 45, 111, 114, 45, 108, 97, 116, 101, 114, 146, 172, 116, 104, 105, 115, 105, 115, 103, 114, 111, 117,
	112, 49, 172, 116, 104, 105, 115, 105, 115, 103, 114, 111, 117, 112, 50, 146, 146, 169, 116, 101, 115, 116,
	45, 100, 97, 116, 97, 161, 42, 146, 171, 116, 101, 115, 116, 45, 100, 97, 116, 97, 45, 50, 166, 94, 48, 46,
	48, 46, 48, 145, 217, 34, 116, 101, 115, 116, 45, 111, 112, 116, 58, 32, 102, 111, 114, 32, 100, 111, 105,
	110, 103, 32, 115, 111, 109, 101, 116, 104, 105, 110, 103, 32, 101, 108, 115, 101, 145, 146, 173, 111, 116,
	104, 101, 114, 45, 112, 97, 99, 107, 97, 103, 101, 161, 42, 145, 146, 179, 99, 111, 110, 102, 108, 105, 99,
	116, 105, 110, 103, 45, 112, 97, 99, 107, 97, 103, 101, 161, 42, 145, 146, 171, 111, 108, 100, 45, 112, 97,
	99, 107, 97, 103, 101, 161, 42, 206, 13, 246, 33, 212, 147, 147, 148, 172, 47, 104, 101, 108, 108, 111, 95,
	119, 111, 114, 108, 100, 0, 172, 47, 104, 101, 108, 108, 111, 95, 119, 111, 114, 108, 100, 147, 0, 0, 205, 2,
	132, 148, 164, 47, 117, 115, 114, 0, 164, 47, 117, 115, 114, 147, 0, 0, 205, 2, 132, 148, 168, 47, 117, 115,
	114, 47, 98, 105, 110, 0, 168, 47, 117, 115, 114, 47, 98, 105, 110, 147, 0, 0, 205, 2, 132, 145, 149, 183, 47,
	104, 101, 108, 108, 111, 95, 119, 111, 114, 108, 100, 47, 104, 101, 108, 108, 111, 119, 111, 114, 108, 100,
	217, 64, 99, 98, 48, 54, 53, 57, 52, 50, 53, 52, 52, 54, 98, 100, 55, 57, 101, 55, 54, 57, 57, 101, 56, 53,
	56, 48, 52, 49, 55, 52, 56, 100, 101, 97, 97, 101, 56, 52, 50, 51, 102, 54, 51, 101, 54, 102, 101, 97, 102,
	57, 48, 55, 98, 102, 98, 98, 57, 51, 52, 53, 97, 51, 50, 98, 147, 0, 0, 205, 2, 132, 0, 183, 47, 104, 101,
	108, 108, 111, 95, 119, 111, 114, 108, 100, 47, 104, 101, 108, 108, 111, 119, 111, 114, 108, 100, 145, 147,
	183, 47, 104, 101, 108, 108, 111, 95, 119, 111, 114, 108, 100, 47, 104, 101, 108, 108, 111, 119, 111, 114,
	108, 100, 0, 179, 47, 117, 115, 114, 47, 98, 105, 110, 47, 104, 101, 108, 108, 111, 119, 111, 114, 108, 100,
}

func TestPackageMarshalByteExact(t *testing.T) {
	pkg := testPackage()
	got, err := pkg.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(got, testPackageBytes) {
		t.Fatalf("encoding does not match the reference vector:\ngot  %v\nwant %v", got, testPackageBytes)
	}
}

func TestPackageUnmarshalByteExact(t *testing.T) {
	var got Package
	if err := got.UnmarshalBinary(testPackageBytes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := testPackage()
	reencoded, err := got.MarshalBinary()
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if !bytes.Equal(reencoded, testPackageBytes) {
		t.Fatalf("decoded package does not re-encode to the reference vector")
	}
	if got.Name != want.Name || got.Contents.Links[0].Target != want.Contents.Links[0].Target {
		t.Fatalf("decoded fields mismatch: %+v", got)
	}
}

func TestPackageRoundTrip(t *testing.T) {
	want := testPackage()

	data, err := want.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Package
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Name != want.Name || got.Version != want.Version || got.InstalledSize != want.InstalledSize {
		t.Fatalf("scalar fields mismatch: got %+v want %+v", got, want)
	}
	if len(got.Depends) != len(want.Depends) || got.Depends[1].Constraint != "^0.0.0" {
		t.Fatalf("depends mismatch: %+v", got.Depends)
	}
	if len(got.Contents.Files) != 1 || got.Contents.Files[0].Sha256 != want.Contents.Files[0].Sha256 {
		t.Fatalf("files mismatch: %+v", got.Contents.Files)
	}
	if len(got.Contents.Links) != 1 || got.Contents.Links[0].Target != "/usr/bin/helloworld" {
		t.Fatalf("links mismatch: %+v", got.Contents.Links)
	}
}

func TestPackageOptionalFieldsRoundTripAsAbsent(t *testing.T) {
	// A package with every optional field left at its Go zero value should
	// encode those fields as msgpack nil, not as an empty string/array, and
	// decode back to the same zero values.
	pkg := Package{
		Name:         "bare",
		Version:      "0.0.1",
		ShortDesc:    "bare package",
		Architecture: ArchAmd64,
	}
	data, err := pkg.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// LongDesc is the 4th field; after Name/Version/ShortDesc fixstrs the
	// next byte must be the nil marker, not a string marker.
	d := &decoder{data: data}
	if _, err := d.arrayLen(); err != nil {
		t.Fatalf("array header: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := d.str(); err != nil {
			t.Fatalf("skip field %d: %v", i, err)
		}
	}
	if data[d.pos] != mpNil {
		t.Fatalf("expected LongDesc to encode as nil, got marker 0x%02x", data[d.pos])
	}

	var got Package
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.LongDesc != "" || got.URL != "" || got.License != "" {
		t.Fatalf("expected absent optional strings, got %+v", got)
	}
	if got.Groups != nil || got.Depends != nil || got.OptDepends != nil {
		t.Fatalf("expected absent optional lists, got %+v", got)
	}
	if got.Contents.Folders != nil || got.Contents.Files != nil || got.Contents.Links != nil {
		t.Fatalf("expected absent content lists, got %+v", got.Contents)
	}
}

func TestPkgSpecConstraintWireMapping(t *testing.T) {
	e := &encoder{}
	e.pkgSpec(PkgSpec{Name: "x", Constraint: "any"})
	d := &decoder{data: e.buf.Bytes()}
	got, err := d.pkgSpec()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Constraint != "any" {
		t.Fatalf("expected round-trip to restore the \"any\" sentinel, got %q", got.Constraint)
	}

	// The wire bytes for "any" must be the literal string "*" (fixstr
	// header 0xA1 followed by the single byte '*'), not "any".
	e2 := &encoder{}
	e2.pkgSpec(PkgSpec{Name: "x", Constraint: "any"})
	raw := e2.buf.Bytes()
	if raw[len(raw)-2] != 0xA1 || raw[len(raw)-1] != '*' {
		t.Fatalf("expected wire constraint \"*\", got trailing bytes %v", raw[len(raw)-2:])
	}
}

func TestPkgSpecMatchesAny(t *testing.T) {
	spec := PkgSpec{Name: "x", Constraint: "any"}
	v, err := ParseVersion("1.2.3")
	if err != nil {
		t.Fatalf("parse version: %v", err)
	}
	ok, err := spec.Matches(v)
	if err != nil || !ok {
		t.Fatalf("expected any constraint to match, err=%v ok=%v", err, ok)
	}
}

func TestPkgSpecMatchesCaret(t *testing.T) {
	spec := PkgSpec{Name: "x", Constraint: "^0.0.0"}
	v, err := ParseVersion("0.0.0")
	if err != nil {
		t.Fatalf("parse version: %v", err)
	}
	ok, err := spec.Matches(v)
	if err != nil || !ok {
		t.Fatalf("expected ^0.0.0 to match 0.0.0, err=%v ok=%v", err, ok)
	}

	v2, _ := ParseVersion("1.0.0")
	ok2, err := spec.Matches(v2)
	if err != nil || ok2 {
		t.Fatalf("expected ^0.0.0 not to match 1.0.0, err=%v ok=%v", err, ok2)
	}
}
