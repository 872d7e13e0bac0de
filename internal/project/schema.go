package project

import (
	"fmt"
	"strings"
)

// HandleKind tags how a schema handle resolves. The set is closed: anything
// other than the declared kinds is treated as unknown by consumers.
type HandleKind string

const (
	// HandleByID handles resolve through stable element ids.
	HandleByID HandleKind = "id"
	// HandleByName handles carry only display names (legacy documents). They
	// cannot be re-resolved against a different schema instance.
	HandleByName HandleKind = "name"
)

// Known reports whether k is one of the declared kinds.
func (k HandleKind) Known() bool {
	return k == HandleByID || k == HandleByName
}

// ElementDecl declares a property or link inside a concept.
type ElementDecl struct {
	ID   ElementID `yaml:"id" json:"id"`
	Name string    `yaml:"name" json:"name"`
}

// ConceptDecl declares one concept of a schema.
type ConceptDecl struct {
	ID         ElementID     `yaml:"id" json:"id"`
	Name       string        `yaml:"name" json:"name"`
	Properties []ElementDecl `yaml:"properties,omitempty" json:"properties,omitempty"`
	Children   []ElementDecl `yaml:"children,omitempty" json:"children,omitempty"`
	References []ElementDecl `yaml:"references,omitempty" json:"references,omitempty"`
}

// Property looks up a property declaration by id.
func (c ConceptDecl) Property(id ElementID) (ElementDecl, bool) {
	return findDecl(c.Properties, id)
}

// Child looks up a containment link declaration by id.
func (c ConceptDecl) Child(id ElementID) (ElementDecl, bool) {
	return findDecl(c.Children, id)
}

// Reference looks up a reference link declaration by id.
func (c ConceptDecl) Reference(id ElementID) (ElementDecl, bool) {
	return findDecl(c.References, id)
}

func findDecl(decls []ElementDecl, id ElementID) (ElementDecl, bool) {
	for _, decl := range decls {
		if decl.ID == id {
			return decl, true
		}
	}
	return ElementDecl{}, false
}

// Schema is the concept catalogue contributed by a language module.
type Schema struct {
	Concepts []ConceptDecl `yaml:"concepts" json:"concepts"`
}

// Concept looks up a concept declaration by id.
func (s *Schema) Concept(id ElementID) (ConceptDecl, bool) {
	if s == nil {
		return ConceptDecl{}, false
	}
	for _, concept := range s.Concepts {
		if concept.ID == id {
			return concept, true
		}
	}
	return ConceptDecl{}, false
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{Concepts: make([]ConceptDecl, len(s.Concepts))}
	for i, concept := range s.Concepts {
		out.Concepts[i] = ConceptDecl{
			ID:         concept.ID,
			Name:       concept.Name,
			Properties: append([]ElementDecl(nil), concept.Properties...),
			Children:   append([]ElementDecl(nil), concept.Children...),
			References: append([]ElementDecl(nil), concept.References...),
		}
	}
	return out
}

// Validate ensures element ids are present and unique within the schema.
func (s *Schema) Validate() error {
	if s == nil {
		return nil
	}
	seen := make(map[ElementID]string)
	claim := func(id ElementID, where string) error {
		if strings.TrimSpace(string(id)) == "" {
			return fmt.Errorf("schema: %s: element id is required", where)
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("schema: element id %s used by %s and %s", id, prev, where)
		}
		seen[id] = where
		return nil
	}
	for _, concept := range s.Concepts {
		if err := claim(concept.ID, "concept "+concept.Name); err != nil {
			return err
		}
		for _, decl := range concept.Properties {
			if err := claim(decl.ID, concept.Name+"."+decl.Name); err != nil {
				return err
			}
		}
		for _, decl := range concept.Children {
			if err := claim(decl.ID, concept.Name+"."+decl.Name); err != nil {
				return err
			}
		}
		for _, decl := range concept.References {
			if err := claim(decl.ID, concept.Name+"."+decl.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConceptRef is the handle a node uses to name its concept.
type ConceptRef struct {
	Kind     HandleKind `yaml:"kind" json:"kind"`
	Language ModuleRef  `yaml:"language" json:"language"`
	ID       ElementID  `yaml:"id,omitempty" json:"id,omitempty"`
	Name     string     `yaml:"name" json:"name"`
}

func (c ConceptRef) String() string {
	return c.Language.Name + "." + c.Name
}

// SameConcept reports whether both handles name the same concept of the same
// schema instance.
func (c ConceptRef) SameConcept(other ConceptRef) bool {
	if c.Kind == HandleByID && other.Kind == HandleByID {
		return c.Language.ID == other.Language.ID && c.ID == other.ID
	}
	return c.Language.Name == other.Language.Name && c.Name == other.Name
}

// PropertyRef names a property together with its declaring concept.
type PropertyRef struct {
	Kind    HandleKind `yaml:"kind" json:"kind"`
	Concept ConceptRef `yaml:"concept" json:"concept"`
	ID      ElementID  `yaml:"id,omitempty" json:"id,omitempty"`
	Name    string     `yaml:"name" json:"name"`
}

// ContainmentLinkRef names a child slot together with its declaring concept.
type ContainmentLinkRef struct {
	Kind    HandleKind `yaml:"kind" json:"kind"`
	Concept ConceptRef `yaml:"concept" json:"concept"`
	ID      ElementID  `yaml:"id,omitempty" json:"id,omitempty"`
	Name    string     `yaml:"name" json:"name"`
}

// ReferenceLinkRef names a pointer slot together with its declaring concept.
type ReferenceLinkRef struct {
	Kind    HandleKind `yaml:"kind" json:"kind"`
	Concept ConceptRef `yaml:"concept" json:"concept"`
	ID      ElementID  `yaml:"id,omitempty" json:"id,omitempty"`
	Name    string     `yaml:"name" json:"name"`
}

// sameSlot compares handles the way the tree does when looking up a value:
// by id when both sides carry one, by name otherwise.
func sameSlot(aKind HandleKind, aID ElementID, aName string, bKind HandleKind, bID ElementID, bName string) bool {
	if aKind == HandleByID && bKind == HandleByID {
		return aID == bID
	}
	return aName == bName
}

// Same reports whether both handles address the same property slot.
func (p PropertyRef) Same(other PropertyRef) bool {
	return sameSlot(p.Kind, p.ID, p.Name, other.Kind, other.ID, other.Name)
}

// Same reports whether both handles address the same containment slot.
func (l ContainmentLinkRef) Same(other ContainmentLinkRef) bool {
	return sameSlot(l.Kind, l.ID, l.Name, other.Kind, other.ID, other.Name)
}

// Same reports whether both handles address the same reference slot.
func (l ReferenceLinkRef) Same(other ReferenceLinkRef) bool {
	return sameSlot(l.Kind, l.ID, l.Name, other.Kind, other.ID, other.Name)
}
