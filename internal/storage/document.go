package storage

import (
	"fmt"
	"strings"

	"github.com/kingrea/modmigrate/internal/project"
)

// moduleDocument mirrors a module descriptor file (<name>.mpl, <name>.msd, ...).
type moduleDocument struct {
	Name         string               `yaml:"name"`
	ID           project.ModuleID     `yaml:"id"`
	Kind         project.Kind         `yaml:"kind"`
	Dependencies []project.Dependency `yaml:"dependencies,omitempty"`
	Runtime      []project.ModuleRef  `yaml:"runtime,omitempty"`
	Schema       *project.Schema      `yaml:"schema,omitempty"`
	Models       []string             `yaml:"models,omitempty"`
}

// modelDocument mirrors one model file under <module>/models/.
type modelDocument struct {
	ID        project.ModelID     `yaml:"id"`
	Name      string              `yaml:"name"`
	Languages []project.ModuleRef `yaml:"languages,omitempty"`
	Imports   []project.ModelRef  `yaml:"imports,omitempty"`
	Roots     []nodeDocument      `yaml:"roots,omitempty"`
}

type nodeDocument struct {
	ID         project.NodeID      `yaml:"id"`
	Concept    project.ConceptRef  `yaml:"concept"`
	Properties []project.Property  `yaml:"properties,omitempty"`
	Children   []childDocument     `yaml:"children,omitempty"`
	References []project.Reference `yaml:"references,omitempty"`
}

type childDocument struct {
	Link project.ContainmentLinkRef `yaml:"link"`
	Node nodeDocument               `yaml:"node"`
}

func encodeModel(m *project.Model) modelDocument {
	doc := modelDocument{
		ID:        m.Ref().ID,
		Name:      m.Name(),
		Languages: append([]project.ModuleRef(nil), m.Languages...),
		Imports:   append([]project.ModelRef(nil), m.Imports...),
	}
	for _, root := range m.Roots() {
		doc.Roots = append(doc.Roots, encodeNode(m, root))
	}
	return doc
}

func encodeNode(m *project.Model, h project.Handle) nodeDocument {
	n := m.Node(h)
	doc := nodeDocument{
		ID:         n.ID,
		Concept:    n.Concept,
		Properties: n.Properties(),
		References: n.References(),
	}
	for _, child := range n.Children() {
		doc.Children = append(doc.Children, childDocument{Link: child.Link, Node: encodeNode(m, child.Node)})
	}
	return doc
}

func decodeModel(doc modelDocument) (*project.Model, error) {
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("model %s: id is required", doc.Name)
	}
	m := project.NewModel(project.ModelRef{ID: doc.ID, Name: doc.Name})
	m.Languages = append(m.Languages, doc.Languages...)
	m.Imports = append(m.Imports, doc.Imports...)
	for _, root := range doc.Roots {
		h, err := decodeNode(m, root)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", doc.Name, err)
		}
		if err := m.AddRoot(h); err != nil {
			return nil, fmt.Errorf("model %s: %w", doc.Name, err)
		}
	}
	return m, nil
}

func decodeNode(m *project.Model, doc nodeDocument) (project.Handle, error) {
	if doc.ID == "" {
		return project.NoHandle, fmt.Errorf("node of concept %s has no id", doc.Concept)
	}
	n := project.NewNode(doc.ID, doc.Concept)
	for _, prop := range doc.Properties {
		n.SetProperty(prop.Ref, prop.Value)
	}
	for _, ref := range doc.References {
		n.SetReference(ref)
	}
	h, err := m.Insert(n)
	if err != nil {
		return project.NoHandle, err
	}
	for _, child := range doc.Children {
		ch, err := decodeNode(m, child.Node)
		if err != nil {
			return project.NoHandle, err
		}
		if err := m.AddChild(h, child.Link, ch); err != nil {
			return project.NoHandle, err
		}
	}
	return h, nil
}
