package identity

import (
	"errors"
	"testing"

	"github.com/kingrea/modmigrate/internal/project"
)

func TestZeroTableIsEmptyAndUsable(t *testing.T) {
	var tbl Table
	if !tbl.Empty() {
		t.Fatalf("zero table should be empty")
	}
	if tbl.HasModule("Sol1") {
		t.Fatalf("unexpected module")
	}
	if _, ok := tbl.Model("m1"); ok {
		t.Fatalf("unexpected model")
	}
	tbl.AddModule("Sol1")
	if tbl.Empty() || !tbl.HasModule("Sol1") {
		t.Fatalf("expected module recorded")
	}
}

func TestModelMappingsAreWriteOnce(t *testing.T) {
	tbl := New()
	old := project.ModelRef{ID: "old", Name: "Sol1.M1"}
	first := project.ModelRef{ID: "new", Name: "Sol1.M1"}
	if err := tbl.AddModel(old, first); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tbl.AddModel(old, first); err != nil {
		t.Fatalf("re-adding the same mapping should be a no-op: %v", err)
	}
	err := tbl.AddModel(old, project.ModelRef{ID: "other", Name: "Sol1.M1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, ok := tbl.Model("old")
	if !ok || got != first {
		t.Fatalf("expected first mapping kept, got %+v", got)
	}
	if !tbl.HasModelName("Sol1.M1") {
		t.Fatalf("expected model name recorded")
	}
}

func TestSchemaMappingsAreWriteOnce(t *testing.T) {
	tbl := New()
	a := project.NewModule("Lang1", project.KindLanguage)
	b := project.NewModule("Lang1", project.KindLanguage)
	if err := tbl.AddSchema("Lang1", a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tbl.AddSchema("Lang1", b); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got, _ := tbl.Schema("Lang1"); got != a {
		t.Fatalf("expected first schema kept")
	}
}

func TestMergeIsAllOrNothing(t *testing.T) {
	base := New()
	if err := base.AddModel(project.ModelRef{ID: "m1", Name: "A"}, project.ModelRef{ID: "n1", Name: "A"}); err != nil {
		t.Fatal(err)
	}
	staged := New()
	staged.AddModule("B")
	if err := staged.AddModel(project.ModelRef{ID: "m2", Name: "B"}, project.ModelRef{ID: "n2", Name: "B"}); err != nil {
		t.Fatal(err)
	}
	if err := staged.AddModel(project.ModelRef{ID: "m1", Name: "A"}, project.ModelRef{ID: "x", Name: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := base.Merge(staged); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if base.HasModule("B") || base.ModelCount() != 1 {
		t.Fatalf("conflicting merge must not commit anything")
	}

	clean := New()
	clean.AddModule("B")
	if err := clean.AddModel(project.ModelRef{ID: "m2", Name: "B"}, project.ModelRef{ID: "n2", Name: "B"}); err != nil {
		t.Fatal(err)
	}
	if err := base.Merge(clean); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !base.HasModule("B") || base.ModelCount() != 2 || !base.HasModelName("B") {
		t.Fatalf("expected merged entries")
	}
	if names := base.ModuleNames(); len(names) != 1 || names[0] != "B" {
		t.Fatalf("unexpected module names %v", names)
	}
}
