package installer

import (
	"testing"

	"github.com/mangrove/mangrove/mgveerr"
	"github.com/mangrove/mangrove/pkgfmt"
)

func TestCheckConflictsRejectsSelfConflict(t *testing.T) {
	installed := []pkgfmt.Package{
		{Name: "already-installed"},
	}
	candidate := &pkgfmt.Package{
		Name:      "candidate",
		Conflicts: []pkgfmt.PkgSpec{{Name: "already-installed", Constraint: "any"}},
	}

	err := CheckConflicts(candidate, installed)
	if err == nil {
		t.Fatalf("expected a conflict error")
	}
	var ce *mgveerr.ConflictsError
	if !asConflictsError(err, &ce) {
		t.Fatalf("expected *mgveerr.ConflictsError, got %T", err)
	}
	if ce.Name != "already-installed" {
		t.Fatalf("unexpected conflicting name: %s", ce.Name)
	}
}

func TestCheckConflictsIsBidirectional(t *testing.T) {
	installed := []pkgfmt.Package{
		{Name: "old", Conflicts: []pkgfmt.PkgSpec{{Name: "candidate", Constraint: "any"}}},
	}
	candidate := &pkgfmt.Package{Name: "candidate"}

	if err := CheckConflicts(candidate, installed); err == nil {
		t.Fatalf("expected conflict declared by the installed package to be honored")
	}
}

func TestCheckDependenciesRejectsMissing(t *testing.T) {
	candidate := &pkgfmt.Package{
		Name:    "candidate",
		Depends: []pkgfmt.PkgSpec{{Name: "needed", Constraint: "any"}},
	}
	if err := CheckDependencies(candidate, nil); err == nil {
		t.Fatalf("expected missing dependency error")
	}
}

func TestCheckDependenciesAcceptsSatisfied(t *testing.T) {
	installed := []pkgfmt.Package{{Name: "needed", Version: "1.0.0"}}
	candidate := &pkgfmt.Package{
		Name:    "candidate",
		Depends: []pkgfmt.PkgSpec{{Name: "needed", Constraint: "any"}},
	}
	if err := CheckDependencies(candidate, installed); err != nil {
		t.Fatalf("expected dependency to be satisfied: %v", err)
	}
}

func asConflictsError(err error, target **mgveerr.ConflictsError) bool {
	ce, ok := err.(*mgveerr.ConflictsError)
	if ok {
		*target = ce
	}
	return ok
}
