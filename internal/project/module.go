package project

import (
	"fmt"
	"strings"
)

// Kind classifies modules.
type Kind string

const (
	// KindLanguage modules define a schema.
	KindLanguage Kind = "language"
	// KindSolution modules hold plain models.
	KindSolution Kind = "solution"
	// KindDevkit modules bundle other modules. They are loaded but never replicated.
	KindDevkit Kind = "devkit"
	// KindGenerator modules hold generator templates. They are loaded but never replicated.
	KindGenerator Kind = "generator"
)

// Valid reports whether k is a recognised module kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLanguage, KindSolution, KindDevkit, KindGenerator:
		return true
	default:
		return false
	}
}

// Dependency is a module's dependency on another module.
type Dependency struct {
	Target   ModuleRef `yaml:"module" json:"module"`
	Reexport bool      `yaml:"reexport,omitempty" json:"reexport,omitempty"`
}

// Module is the unit of packaging. Its identity is its name; ID changes
// whenever the module is physically copied.
type Module struct {
	Name         string
	ID           ModuleID
	Kind         Kind
	Path         string
	Dependencies []Dependency
	Schema       *Schema
	Runtime      []ModuleRef

	models []*Model
}

// NewModule creates an empty module with a fresh id.
func NewModule(name string, kind Kind) *Module {
	return &Module{Name: normalizeName(name), ID: NewModuleID(), Kind: kind}
}

// Ref returns a reference to the module.
func (m *Module) Ref() ModuleRef {
	return ModuleRef{ID: m.ID, Name: m.Name}
}

// Models returns the module's models in order.
func (m *Module) Models() []*Model {
	return append([]*Model(nil), m.models...)
}

// Model returns the model with the given simple name.
func (m *Module) Model(name string) (*Model, bool) {
	for _, model := range m.models {
		if model.Name() == name {
			return model, true
		}
	}
	return nil, false
}

// AddModel attaches model to the module.
func (m *Module) AddModel(model *Model) error {
	if model == nil {
		return fmt.Errorf("project: nil model for %s", m.Name)
	}
	if model.module != nil && model.module != m {
		return fmt.Errorf("project: model %s already owned by %s", model.Name(), model.module.Name)
	}
	if _, exists := m.Model(model.Name()); exists {
		return fmt.Errorf("project: module %s already has model %s", m.Name, model.Name())
	}
	model.module = m
	m.models = append(m.models, model)
	return nil
}

// IsLanguage reports whether the module defines a schema.
func (m *Module) IsLanguage() bool {
	return m.Kind == KindLanguage
}

// ResolveConcept builds an id-based handle for a concept of this module's
// schema.
func (m *Module) ResolveConcept(id ElementID) (ConceptRef, ConceptDecl, bool) {
	decl, ok := m.Schema.Concept(id)
	if !ok {
		return ConceptRef{}, ConceptDecl{}, false
	}
	return ConceptRef{Kind: HandleByID, Language: m.Ref(), ID: decl.ID, Name: decl.Name}, decl, true
}

// RemoveDependency drops the dependency on target.
func (m *Module) RemoveDependency(target ModuleRef) bool {
	for i, dep := range m.Dependencies {
		if dep.Target == target {
			m.Dependencies = append(m.Dependencies[:i], m.Dependencies[i+1:]...)
			return true
		}
	}
	return false
}

// AddDependency appends a dependency unless one on target already exists.
func (m *Module) AddDependency(target ModuleRef, reexport bool) {
	for _, dep := range m.Dependencies {
		if dep.Target == target {
			return
		}
	}
	m.Dependencies = append(m.Dependencies, Dependency{Target: target, Reexport: reexport})
}

// RemoveRuntime drops a runtime module entry.
func (m *Module) RemoveRuntime(ref ModuleRef) bool {
	for i, existing := range m.Runtime {
		if existing == ref {
			m.Runtime = append(m.Runtime[:i], m.Runtime[i+1:]...)
			return true
		}
	}
	return false
}

// AddRuntime appends a runtime module entry unless already present.
func (m *Module) AddRuntime(ref ModuleRef) {
	for _, existing := range m.Runtime {
		if existing == ref {
			return
		}
	}
	m.Runtime = append(m.Runtime, ref)
}

// Validate checks the module's own invariants.
func (m *Module) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("project: module name is required")
	}
	if m.ID == "" {
		return fmt.Errorf("project: module %s: id is required", m.Name)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("project: module %s: unknown kind %q", m.Name, m.Kind)
	}
	if m.Schema != nil && m.Kind != KindLanguage {
		return fmt.Errorf("project: module %s: only languages declare a schema", m.Name)
	}
	if err := m.Schema.Validate(); err != nil {
		return fmt.Errorf("project: module %s: %w", m.Name, err)
	}
	return nil
}

// Clone returns a deep copy of the module under a new name and a fresh id.
// Every model is copied with a fresh model id; node ids are kept.
func (m *Module) Clone(name string) *Module {
	out := &Module{
		Name:         normalizeName(name),
		ID:           NewModuleID(),
		Kind:         m.Kind,
		Dependencies: append([]Dependency(nil), m.Dependencies...),
		Schema:       m.Schema.Clone(),
		Runtime:      append([]ModuleRef(nil), m.Runtime...),
	}
	for _, model := range m.models {
		copied := model.Clone(ModelRef{ID: NewModelID(), Name: model.Name()})
		copied.module = out
		out.models = append(out.models, copied)
	}
	return out
}
