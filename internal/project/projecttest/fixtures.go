// Package projecttest builds small projects used across package tests.
package projecttest

import (
	"testing"

	"github.com/kingrea/modmigrate/internal/project"
)

// Element ids of the Lang1 schema.
const (
	ConceptK  project.ElementID = "c1"
	PropertyP project.ElementID = "pp1"
	LinkL     project.ElementID = "ll1"
	RefR      project.ElementID = "rr1"
)

// Lang1Schema declares concept K with property p, child link l and
// reference link r.
func Lang1Schema() *project.Schema {
	return &project.Schema{Concepts: []project.ConceptDecl{{
		ID:         ConceptK,
		Name:       "K",
		Properties: []project.ElementDecl{{ID: PropertyP, Name: "p"}},
		Children:   []project.ElementDecl{{ID: LinkL, Name: "l"}},
		References: []project.ElementDecl{{ID: RefR, Name: "r"}},
	}}}
}

// Handles returns id-based handles for K and its elements declared by lang.
func Handles(lang *project.Module) (project.ConceptRef, project.PropertyRef, project.ContainmentLinkRef, project.ReferenceLinkRef) {
	k := project.ConceptRef{Kind: project.HandleByID, Language: lang.Ref(), ID: ConceptK, Name: "K"}
	p := project.PropertyRef{Kind: project.HandleByID, Concept: k, ID: PropertyP, Name: "p"}
	l := project.ContainmentLinkRef{Kind: project.HandleByID, Concept: k, ID: LinkL, Name: "l"}
	r := project.ReferenceLinkRef{Kind: project.HandleByID, Concept: k, ID: RefR, Name: "r"}
	return k, p, l, r
}

// Scenario is the Lang1/Sol1/Sol2 project.
type Scenario struct {
	Project *project.Project
	Lang1   *project.Module
	Sol1    *project.Module
	Sol2    *project.Module
	M1      *project.Model
	M2      *project.Model
}

// NewScenario builds a project where Sol1.M1 holds n1 (concept K, p="x")
// with child n2 under l, n1 references n3 in Sol2.M2 through r, and both
// solutions depend on Lang1. When withSol2 is false Sol2 is omitted and n1
// carries no reference.
func NewScenario(t testing.TB, withSol2 bool) *Scenario {
	t.Helper()
	p := project.New("scenario", t.TempDir())
	lang := project.NewModule("Lang1", project.KindLanguage)
	lang.Schema = Lang1Schema()
	mustAdd(t, p, lang)
	k, prop, link, ref := Handles(lang)

	s := &Scenario{Project: p, Lang1: lang}

	if withSol2 {
		sol2 := project.NewModule("Sol2", project.KindSolution)
		sol2.AddDependency(lang.Ref(), false)
		m2 := project.NewModel(project.ModelRef{ID: project.NewModelID(), Name: "Sol2.M2"})
		m2.AddLanguage(lang.Ref())
		n3 := mustInsert(t, m2, project.NewNode("n3", k))
		if err := m2.AddRoot(n3); err != nil {
			t.Fatalf("add root n3: %v", err)
		}
		if err := m2.SetProperty(n3, prop, "target"); err != nil {
			t.Fatalf("set n3.p: %v", err)
		}
		if err := sol2.AddModel(m2); err != nil {
			t.Fatalf("add M2: %v", err)
		}
		mustAdd(t, p, sol2)
		s.Sol2 = sol2
		s.M2 = m2
	}

	sol1 := project.NewModule("Sol1", project.KindSolution)
	sol1.AddDependency(lang.Ref(), true)
	m1 := project.NewModel(project.ModelRef{ID: project.NewModelID(), Name: "Sol1.M1"})
	m1.AddLanguage(lang.Ref())
	n1 := mustInsert(t, m1, project.NewNode("n1", k))
	n2 := mustInsert(t, m1, project.NewNode("n2", k))
	if err := m1.AddRoot(n1); err != nil {
		t.Fatalf("add root n1: %v", err)
	}
	if err := m1.AddChild(n1, link, n2); err != nil {
		t.Fatalf("add child n2: %v", err)
	}
	if err := m1.SetProperty(n1, prop, "x"); err != nil {
		t.Fatalf("set n1.p: %v", err)
	}
	if s.M2 != nil {
		sol1.AddDependency(s.Sol2.Ref(), false)
		m1.AddImport(s.M2.Ref())
		if err := m1.SetReference(n1, project.Reference{
			Link:        ref,
			Target:      s.M2.Ref(),
			TargetNode:  "n3",
			ResolveInfo: "target",
		}); err != nil {
			t.Fatalf("set n1.r: %v", err)
		}
	}
	if err := sol1.AddModel(m1); err != nil {
		t.Fatalf("add M1: %v", err)
	}
	mustAdd(t, p, sol1)
	p.SetFolderFor(sol1, "solutions")
	p.SetFolderFor(lang, "languages")
	s.Sol1 = sol1
	s.M1 = m1
	return s
}

func mustAdd(t testing.TB, p *project.Project, m *project.Module) {
	t.Helper()
	if err := p.AddModule(m); err != nil {
		t.Fatalf("add module %s: %v", m.Name, err)
	}
}

func mustInsert(t testing.TB, m *project.Model, n *project.Node) project.Handle {
	t.Helper()
	h, err := m.Insert(n)
	if err != nil {
		t.Fatalf("insert %s: %v", n.ID, err)
	}
	return h
}

// ChildPairs returns the (link name, child id) pairs under h.
func ChildPairs(m *project.Model, h project.Handle) map[string]int {
	out := map[string]int{}
	for _, child := range m.Node(h).Children() {
		out[child.Link.Name+"/"+string(m.Node(child.Node).ID)]++
	}
	return out
}
