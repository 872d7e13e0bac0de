package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/modmigrate/internal/project"
	"github.com/kingrea/modmigrate/internal/project/projecttest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), WithCacheSize(8))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestSaveAndLoadRoundTripsTrees(t *testing.T) {
	s := projecttest.NewScenario(t, true)
	store := newStore(t)
	if err := store.Save(s.Sol1); err != nil {
		t.Fatalf("save Sol1: %v", err)
	}
	want := filepath.Join(store.Root(), "solutions", "Sol1", "Sol1.msd")
	if s.Sol1.Path != want {
		t.Fatalf("path = %s, want %s", s.Sol1.Path, want)
	}

	loaded, err := store.Load(s.Sol1.Path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != s.Sol1.ID || loaded.Name != "Sol1" || loaded.Kind != project.KindSolution {
		t.Fatalf("unexpected module %+v", loaded)
	}
	if len(loaded.Dependencies) != 2 || !loaded.Dependencies[0].Reexport {
		t.Fatalf("dependencies not preserved: %+v", loaded.Dependencies)
	}
	m1, ok := loaded.Model("Sol1.M1")
	if !ok {
		t.Fatalf("model Sol1.M1 missing")
	}
	if m1.Ref() != s.M1.Ref() {
		t.Fatalf("model ref %v, want %v", m1.Ref(), s.M1.Ref())
	}
	n1, ok := m1.Lookup("n1")
	if !ok {
		t.Fatalf("n1 missing")
	}
	if !m1.IsRoot(n1) {
		t.Fatalf("n1 should be a root")
	}
	_, p, _, r := projecttest.Handles(s.Lang1)
	if v, _ := m1.Node(n1).Property(p); v != "x" {
		t.Fatalf("n1.p = %q", v)
	}
	ref, ok := m1.Node(n1).Reference(r)
	if !ok || ref.TargetNode != "n3" || ref.Target != s.M2.Ref() || ref.ResolveInfo != "target" {
		t.Fatalf("reference not preserved: %+v", ref)
	}
	pairs := projecttest.ChildPairs(m1, n1)
	if pairs["l/n2"] != 1 || len(pairs) != 1 {
		t.Fatalf("children = %v", pairs)
	}
	if len(m1.Imports) != 1 || m1.Imports[0] != s.M2.Ref() {
		t.Fatalf("imports = %v", m1.Imports)
	}
}

func TestLoadServesCachedDocuments(t *testing.T) {
	s := projecttest.NewScenario(t, false)
	store := newStore(t)
	if err := store.Save(s.Sol1); err != nil {
		t.Fatal(err)
	}
	first, err := store.Load(s.Sol1.Path)
	if err != nil {
		t.Fatal(err)
	}
	if store.models.Len() != 1 {
		t.Fatalf("expected one cached model, got %d", store.models.Len())
	}
	second, err := store.Load(s.Sol1.Path)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := first.Model("Sol1.M1")
	b, _ := second.Model("Sol1.M1")
	if a == b {
		t.Fatalf("cached loads must not share model instances")
	}
	if a.Len() != b.Len() {
		t.Fatalf("cached model differs: %d vs %d nodes", a.Len(), b.Len())
	}
}

func TestLoadRejectsKindMismatch(t *testing.T) {
	store := newStore(t)
	path := filepath.Join(store.Root(), "Broken.msd")
	if err := os.WriteFile(path, []byte("name: Broken\nid: x\nkind: language\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(path); err == nil {
		t.Fatalf("expected kind mismatch error")
	}
	if _, err := store.Load(filepath.Join(store.Root(), "notes.txt")); err == nil {
		t.Fatalf("expected non-descriptor error")
	}
}

func TestCopyAssignsFreshIdentities(t *testing.T) {
	s := projecttest.NewScenario(t, false)
	store := newStore(t)
	if err := store.Save(s.Lang1); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(s.Sol1); err != nil {
		t.Fatal(err)
	}
	clone, err := store.Copy(s.Sol1, "Sol1_cloned")
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if clone.ID == s.Sol1.ID {
		t.Fatalf("copy kept module id")
	}
	want := filepath.Join(store.Root(), "solutions", "Sol1_cloned", "Sol1_cloned.msd")
	if clone.Path != want {
		t.Fatalf("copy path = %s, want %s", clone.Path, want)
	}
	m, ok := clone.Model("Sol1.M1")
	if !ok {
		t.Fatalf("copied model missing")
	}
	if m.Ref().ID == s.M1.Ref().ID {
		t.Fatalf("copy kept model id")
	}
	if _, ok := m.Lookup("n2"); !ok {
		t.Fatalf("copy lost node ids")
	}
	if _, err := store.Copy(s.Sol1, "Sol1_cloned"); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	langClone, err := store.Copy(s.Lang1, "Lang1_cloned")
	if err != nil {
		t.Fatalf("copy language: %v", err)
	}
	if filepath.Ext(langClone.Path) != ".mpl" || langClone.Schema == nil {
		t.Fatalf("language copy malformed: %+v", langClone)
	}
}

func TestCopyRejectsUnsupportedKinds(t *testing.T) {
	store := newStore(t)
	devkit := project.NewModule("Kit", project.KindDevkit)
	if err := store.Save(devkit); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Copy(devkit, "Kit_cloned"); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestRenameMovesFolderAndDescriptor(t *testing.T) {
	s := projecttest.NewScenario(t, false)
	store := newStore(t)
	if err := store.Save(s.Sol1); err != nil {
		t.Fatal(err)
	}
	clone, err := store.Copy(s.Sol1, "Sol1_cloned")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(s.Sol1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(s.Sol1.Path)); !os.IsNotExist(err) {
		t.Fatalf("original folder still present: %v", err)
	}
	if err := store.Rename(clone, "Sol1"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if clone.Name != "Sol1" || clone.Path != s.Sol1.Path {
		t.Fatalf("rename left %s at %s", clone.Name, clone.Path)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(clone.Path), "Sol1_cloned.msd")); !os.IsNotExist(err) {
		t.Fatalf("stale descriptor left behind: %v", err)
	}
	loaded, err := store.Load(clone.Path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.ID != clone.ID || loaded.Name != "Sol1" {
		t.Fatalf("reloaded %s/%s, want Sol1/%s", loaded.Name, loaded.ID, clone.ID)
	}
}

func TestKindForExtension(t *testing.T) {
	for ext, want := range map[string]project.Kind{
		".mpl":    project.KindLanguage,
		".MSD":    project.KindSolution,
		".devkit": project.KindDevkit,
		".mpg":    project.KindGenerator,
	} {
		if got, ok := KindForExtension(ext); !ok || got != want {
			t.Fatalf("KindForExtension(%s) = %s, %v", ext, got, ok)
		}
	}
	if _, ok := KindForExtension(".xml"); ok {
		t.Fatalf(".xml is not a descriptor")
	}
}

func TestReplaceTakesOverUndeletedFolder(t *testing.T) {
	s := projecttest.NewScenario(t, false)
	store := newStore(t)
	if err := store.Save(s.Sol1); err != nil {
		t.Fatal(err)
	}
	original := s.Sol1.Path
	stray := filepath.Join(filepath.Dir(original), "models", "Sol1.Old.model.yaml")
	if err := os.WriteFile(stray, []byte("name: Sol1.Old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	clone, err := store.Copy(s.Sol1, "Sol1_cloned")
	if err != nil {
		t.Fatal(err)
	}
	copyDir := filepath.Dir(clone.Path)
	if err := store.Rename(clone, "Sol1"); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists while the original is on disk, got %v", err)
	}
	if err := store.Replace(clone, "Sol1"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if clone.Name != "Sol1" || clone.Path != original {
		t.Fatalf("replace left %s at %s", clone.Name, clone.Path)
	}
	if _, err := os.Stat(copyDir); !os.IsNotExist(err) {
		t.Fatalf("copy folder still present: %v", err)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Fatalf("model file of the previous owner left behind: %v", err)
	}
	loaded, err := store.Load(original)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.ID != clone.ID || loaded.Name != "Sol1" || len(loaded.Models()) != 1 {
		t.Fatalf("reloaded %s/%s with %d models", loaded.Name, loaded.ID, len(loaded.Models()))
	}
}
