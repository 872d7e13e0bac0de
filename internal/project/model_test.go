package project

import (
	"errors"
	"testing"
)

func testConcept() ConceptRef {
	return ConceptRef{Kind: HandleByID, Language: ModuleRef{ID: "lang", Name: "Lang"}, ID: "c1", Name: "K"}
}

func testLink(name string, id ElementID) ContainmentLinkRef {
	return ContainmentLinkRef{Kind: HandleByID, Concept: testConcept(), ID: id, Name: name}
}

func buildTree(t *testing.T) (*Model, Handle, Handle, Handle) {
	t.Helper()
	m := NewModel(ModelRef{ID: "m1", Name: "M1"})
	root, err := m.Insert(NewNode("root", testConcept()))
	if err != nil {
		t.Fatalf("insert root: %v", err)
	}
	a, _ := m.Insert(NewNode("a", testConcept()))
	b, _ := m.Insert(NewNode("b", testConcept()))
	if err := m.AddRoot(root); err != nil {
		t.Fatalf("add root: %v", err)
	}
	if err := m.AddChild(root, testLink("l", "ll1"), a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := m.AddChild(root, testLink("l", "ll1"), b); err != nil {
		t.Fatalf("add b: %v", err)
	}
	return m, root, a, b
}

func TestInsertRejectsDuplicateIDs(t *testing.T) {
	m := NewModel(ModelRef{ID: "m1", Name: "M1"})
	if _, err := m.Insert(NewNode("n1", testConcept())); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := m.Insert(NewNode("n1", testConcept()))
	if !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestAddChildRejectsCyclesAndSecondParent(t *testing.T) {
	m, root, a, b := buildTree(t)
	if err := m.AddChild(a, testLink("l", "ll1"), b); !errors.Is(err, ErrAttached) {
		t.Fatalf("expected ErrAttached, got %v", err)
	}
	m.RemoveRoot(root)
	if err := m.AddChild(a, testLink("l", "ll1"), root); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestRemoveChildDetaches(t *testing.T) {
	m, root, a, _ := buildTree(t)
	if !m.RemoveChild(root, a) {
		t.Fatalf("expected child removed")
	}
	if _, _, ok := m.Parent(a); ok {
		t.Fatalf("expected a to be detached")
	}
	if got := m.Len(); got != 2 {
		t.Fatalf("expected 2 reachable nodes, got %d", got)
	}
	if err := m.AddChild(root, testLink("l", "ll1"), a); err != nil {
		t.Fatalf("reattach: %v", err)
	}
}

func TestReplaceKeepsSlotAndParentPosition(t *testing.T) {
	m, root, a, b := buildTree(t)
	child, _ := m.Insert(NewNode("a-child", testConcept()))
	if err := m.AddChild(a, testLink("l", "ll1"), child); err != nil {
		t.Fatalf("add grandchild: %v", err)
	}
	newLink := testLink("l2", "ll1")
	replacement := NewNode("a", ConceptRef{Kind: HandleByID, Language: ModuleRef{ID: "lang2", Name: "Lang"}, ID: "c1", Name: "K"})
	replacement.AppendChild(newLink, child)
	if err := m.Replace(a, replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if m.Node(a) != replacement {
		t.Fatalf("expected slot to hold the replacement")
	}
	children := m.Node(root).Children()
	if len(children) != 2 || children[0].Node != a || children[1].Node != b {
		t.Fatalf("unexpected parent children after replace: %+v", children)
	}
	parent, link, ok := m.Parent(child)
	if !ok || parent != a || link.Name != "l2" {
		t.Fatalf("expected grandchild re-parented under l2, got %v %+v %v", parent, link, ok)
	}
	if h, ok := m.Lookup("a"); !ok || h != a {
		t.Fatalf("expected index to keep a at %d, got %d %v", a, h, ok)
	}
}

func TestReplaceRejectsForeignChild(t *testing.T) {
	m, _, a, b := buildTree(t)
	replacement := NewNode("a", testConcept())
	replacement.AppendChild(testLink("l", "ll1"), b)
	if err := m.Replace(a, replacement); !errors.Is(err, ErrAttached) {
		t.Fatalf("expected ErrAttached for a sibling, got %v", err)
	}
}

func TestCloneKeepsNodeIDsAndIsIndependent(t *testing.T) {
	m, root, _, _ := buildTree(t)
	m.AddLanguage(ModuleRef{ID: "lang", Name: "Lang"})
	clone := m.Clone(ModelRef{ID: "m2", Name: "M1"})
	if clone.Ref().ID == m.Ref().ID {
		t.Fatalf("expected fresh model id")
	}
	if clone.Len() != m.Len() {
		t.Fatalf("expected same node count, got %d vs %d", clone.Len(), m.Len())
	}
	prop := PropertyRef{Kind: HandleByID, Concept: testConcept(), ID: "pp1", Name: "p"}
	if err := clone.SetProperty(root, prop, "changed"); err != nil {
		t.Fatalf("set property: %v", err)
	}
	if _, ok := m.Node(root).Property(prop); ok {
		t.Fatalf("mutating the clone leaked into the original")
	}
	if h, ok := clone.Lookup("b"); !ok || clone.Node(h).ID != "b" {
		t.Fatalf("expected node b in clone")
	}
}

func TestNodeSlotsMatchByIDThenName(t *testing.T) {
	n := NewNode("n", testConcept())
	byID := PropertyRef{Kind: HandleByID, ID: "pp1", Name: "p"}
	renamed := PropertyRef{Kind: HandleByID, ID: "pp1", Name: "renamed"}
	byName := PropertyRef{Kind: HandleByName, Name: "p"}
	n.SetProperty(byID, "x")
	if v, ok := n.Property(renamed); !ok || v != "x" {
		t.Fatalf("expected id match, got %q %v", v, ok)
	}
	if v, ok := n.Property(byName); !ok || v != "x" {
		t.Fatalf("expected name match, got %q %v", v, ok)
	}
	n.SetProperty(renamed, "y")
	if len(n.Properties()) != 1 {
		t.Fatalf("expected property overwritten, got %+v", n.Properties())
	}
	if !n.RemoveProperty(byID) || len(n.Properties()) != 0 {
		t.Fatalf("expected property removed")
	}
}

func TestSchemaValidateRejectsDuplicateIDs(t *testing.T) {
	s := &Schema{Concepts: []ConceptDecl{
		{ID: "c1", Name: "A", Properties: []ElementDecl{{ID: "x", Name: "p"}}},
		{ID: "c2", Name: "B", Children: []ElementDecl{{ID: "x", Name: "l"}}},
	}}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	s.Concepts[1].Children[0].ID = "y"
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
