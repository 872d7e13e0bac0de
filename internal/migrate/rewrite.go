package migrate

import (
	"github.com/kingrea/modmigrate/internal/identity"
	"github.com/kingrea/modmigrate/internal/project"
)

// RewriteNodes rebuilds every node whose concept belongs to a replaced
// schema so that it is an instance of the same concept in the schema's new
// module. Children are rewritten before their parent. A rebuilt node keeps
// its id, its property values, its children and its reference targets.
func (e *Engine) RewriteNodes(tbl identity.Table) {
	for _, model := range e.project.Models() {
		e.notify(PhaseRewrite, model.Name())
		for _, root := range model.Roots() {
			e.rewriteNode(model, root, tbl)
		}
	}
}

func (e *Engine) rewriteNode(model *project.Model, h project.Handle, tbl identity.Table) {
	for _, child := range model.Node(h).Children() {
		e.rewriteNode(model, child.Node, tbl)
	}

	n := model.Node(h)
	old := n.Concept
	lang, ok := tbl.Schema(old.Language.Name)
	if !ok || old.Language.ID == lang.ID {
		return
	}
	concept, decl, ok := e.resolveConcept(model, n, lang)
	if !ok {
		return
	}

	rebuilt := project.NewNode(n.ID, concept)
	r := elementResolver{engine: e, tbl: tbl, model: model, node: n, old: old, concept: concept}
	for _, prop := range n.Properties() {
		ref := project.PropertyRef(r.resolve(handle(prop.Ref), "property", decl.Property, decl.Properties))
		rebuilt.SetProperty(ref, prop.Value)
	}
	for _, child := range n.Children() {
		link := project.ContainmentLinkRef(r.resolve(handle(child.Link), "child link", decl.Child, decl.Children))
		rebuilt.AppendChild(link, child.Node)
	}
	for _, ref := range n.References() {
		link := project.ReferenceLinkRef(r.resolve(handle(ref.Link), "reference link", decl.Reference, decl.References))
		rebuilt.SetReference(project.Reference{
			Link:        link,
			Target:      ref.Target,
			TargetNode:  ref.TargetNode,
			ResolveInfo: ref.ResolveInfo,
		})
	}
	if err := model.Replace(h, rebuilt); err != nil {
		e.log.Error("%s: could not replace node %s: %v", model.Name(), n.ID, err)
		e.report.fail(model.Name(), PhaseRewrite, err)
		return
	}
	e.report.NodesRewritten++
}

// resolveConcept finds the node's concept in the new schema module.
func (e *Engine) resolveConcept(model *project.Model, n *project.Node, lang *project.Module) (project.ConceptRef, project.ConceptDecl, bool) {
	old := n.Concept
	switch old.Kind {
	case project.HandleByID:
		concept, decl, ok := lang.ResolveConcept(old.ID)
		if !ok {
			e.log.Error("%s: node %s: concept %s (%s) not found in %s", model.Name(), n.ID, old, old.ID, lang.Name)
			return project.ConceptRef{}, project.ConceptDecl{}, false
		}
		if decl.Name != old.Name {
			e.log.Warn("%s: node %s: concept %s is now named %s", model.Name(), n.ID, old, decl.Name)
		}
		return concept, decl, true
	case project.HandleByName:
		if lang.Schema != nil {
			for _, decl := range lang.Schema.Concepts {
				if decl.Name == old.Name {
					return project.ConceptRef{Kind: project.HandleByName, Language: lang.Ref(), Name: decl.Name}, decl, true
				}
			}
		}
		e.log.Error("%s: node %s: concept %s not found in %s", model.Name(), n.ID, old, lang.Name)
		return project.ConceptRef{}, project.ConceptDecl{}, false
	default:
		e.log.Error("%s: node %s: unknown concept handle type %q", model.Name(), n.ID, old.Kind)
		e.report.UnknownHandles++
		return project.ConceptRef{}, project.ConceptDecl{}, false
	}
}

// handle is the shape shared by property and link handles.
type handle struct {
	Kind    project.HandleKind
	Concept project.ConceptRef
	ID      project.ElementID
	Name    string
}

type elementResolver struct {
	engine  *Engine
	tbl     identity.Table
	model   *project.Model
	node    *project.Node
	old     project.ConceptRef
	concept project.ConceptRef
}

// resolve maps an element handle of the old node onto the new concept.
// Elements declared on another concept keep their handle; when that
// concept's schema was migrated as well the kept handle is flagged.
func (r elementResolver) resolve(h handle, what string, byID func(project.ElementID) (project.ElementDecl, bool), decls []project.ElementDecl) handle {
	e := r.engine
	switch h.Kind {
	case project.HandleByID:
		if !r.own(h) {
			r.flagForeign(h, what)
			return h
		}
		decl, ok := byID(h.ID)
		if !ok {
			e.log.Error("%s: node %s: %s %s (%s) not declared by %s, keeping it", r.model.Name(), r.node.ID, what, h.Name, h.ID, r.concept)
			return h
		}
		return handle{Kind: project.HandleByID, Concept: r.concept, ID: decl.ID, Name: decl.Name}
	case project.HandleByName:
		if !r.own(h) {
			r.flagForeign(h, what)
			return h
		}
		for _, decl := range decls {
			if decl.Name == h.Name {
				return handle{Kind: project.HandleByName, Concept: r.concept, Name: decl.Name}
			}
		}
		e.log.Error("%s: node %s: %s %s not declared by %s, keeping it", r.model.Name(), r.node.ID, what, h.Name, r.concept)
		return h
	default:
		e.log.Error("%s: node %s: unknown %s handle type %q for %s", r.model.Name(), r.node.ID, what, h.Kind, h.Name)
		e.report.UnknownHandles++
		return h
	}
}

// own reports whether h is declared on the node's own concept.
func (r elementResolver) own(h handle) bool {
	if h.Concept.Language.Name != r.old.Language.Name {
		return false
	}
	if h.Kind == project.HandleByID && h.Concept.Kind == project.HandleByID && r.old.Kind == project.HandleByID {
		return h.Concept.ID == r.old.ID
	}
	return h.Concept.Name == r.old.Name
}

// flagForeign warns about a foreign handle that still points at the old
// instance of a migrated schema.
func (r elementResolver) flagForeign(h handle, what string) {
	lang, ok := r.tbl.Schema(h.Concept.Language.Name)
	if !ok || lang.ID == h.Concept.Language.ID {
		return
	}
	r.engine.log.Warn("%s: node %s: %s %s is declared on %s, whose schema %s was migrated too; keeping the old handle",
		r.model.Name(), r.node.ID, what, h.Name, h.Concept, lang.Name)
	r.engine.report.ForeignHandles++
}
