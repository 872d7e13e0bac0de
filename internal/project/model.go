package project

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateNode is returned when a node id is already used in the model.
	ErrDuplicateNode = errors.New("project: duplicate node id")
	// ErrUnknownNode is returned for handles that do not address a node.
	ErrUnknownNode = errors.New("project: unknown node")
	// ErrAttached is returned when attaching a node that already has a parent.
	ErrAttached = errors.New("project: node already attached")
	// ErrCycle is returned when an attachment would make a node its own ancestor.
	ErrCycle = errors.New("project: attachment would create a cycle")
)

// Model is an ordered container of root nodes owned by one module. Nodes are
// stored in an arena and addressed by Handle; tree edges are handles too, so
// replacing a node in its parent is a slot rewrite.
type Model struct {
	ref       ModelRef
	module    *Module
	Languages []ModuleRef
	Imports   []ModelRef

	nodes []*Node
	roots []Handle
	index map[NodeID]Handle
}

// NewModel creates an empty model.
func NewModel(ref ModelRef) *Model {
	return &Model{ref: ref, index: map[NodeID]Handle{}}
}

// Ref returns the model's reference.
func (m *Model) Ref() ModelRef {
	return m.ref
}

// Name returns the model's simple name.
func (m *Model) Name() string {
	return m.ref.Name
}

// Module returns the owning module, nil while the model is unowned.
func (m *Model) Module() *Module {
	return m.module
}

// Node returns the node stored at h, nil if h is out of range.
func (m *Model) Node(h Handle) *Node {
	if h < 0 || int(h) >= len(m.nodes) {
		return nil
	}
	return m.nodes[h]
}

// Lookup finds a node handle by its stable id.
func (m *Model) Lookup(id NodeID) (Handle, bool) {
	h, ok := m.index[id]
	return h, ok
}

// Roots returns the root handles in order.
func (m *Model) Roots() []Handle {
	return append([]Handle(nil), m.roots...)
}

// Len returns the number of nodes reachable from the roots.
func (m *Model) Len() int {
	count := 0
	m.Walk(func(Handle, *Node) bool {
		count++
		return true
	})
	return count
}

// Insert places a detached node into the arena without attaching it.
func (m *Model) Insert(n *Node) (Handle, error) {
	if n == nil {
		return NoHandle, fmt.Errorf("project: insert nil node into %s", m.ref.Name)
	}
	if _, exists := m.index[n.ID]; exists {
		return NoHandle, fmt.Errorf("%w: %s in %s", ErrDuplicateNode, n.ID, m.ref.Name)
	}
	n.parent = NoHandle
	n.parentLink = ContainmentLinkRef{}
	n.children = nil
	h := Handle(len(m.nodes))
	m.nodes = append(m.nodes, n)
	m.index[n.ID] = h
	return h, nil
}

// AddRoot appends a detached node to the root list.
func (m *Model) AddRoot(h Handle) error {
	n := m.Node(h)
	if n == nil {
		return fmt.Errorf("%w: handle %d", ErrUnknownNode, h)
	}
	if n.parent != NoHandle {
		return fmt.Errorf("%w: %s", ErrAttached, n.ID)
	}
	n.parent = rootParent
	m.roots = append(m.roots, h)
	return nil
}

// RemoveRoot detaches a root node.
func (m *Model) RemoveRoot(h Handle) bool {
	for i, root := range m.roots {
		if root == h {
			m.roots = append(m.roots[:i], m.roots[i+1:]...)
			m.nodes[h].parent = NoHandle
			return true
		}
	}
	return false
}

// AddChild attaches child under link of parent.
func (m *Model) AddChild(parent Handle, link ContainmentLinkRef, child Handle) error {
	p := m.Node(parent)
	c := m.Node(child)
	if p == nil || c == nil {
		return fmt.Errorf("%w: handle %d or %d", ErrUnknownNode, parent, child)
	}
	if c.parent != NoHandle {
		return fmt.Errorf("%w: %s", ErrAttached, c.ID)
	}
	if m.isAncestor(child, parent) {
		return fmt.Errorf("%w: %s under %s", ErrCycle, c.ID, p.ID)
	}
	p.children = append(p.children, Child{Link: link, Node: child})
	c.parent = parent
	c.parentLink = link
	return nil
}

// RemoveChild detaches child from parent. The node stays in the arena.
func (m *Model) RemoveChild(parent, child Handle) bool {
	p := m.Node(parent)
	if p == nil {
		return false
	}
	for i, placement := range p.children {
		if placement.Node == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			c := m.nodes[child]
			c.parent = NoHandle
			c.parentLink = ContainmentLinkRef{}
			return true
		}
	}
	return false
}

// Parent returns the parent handle and link of h. Roots and detached nodes
// report false.
func (m *Model) Parent(h Handle) (Handle, ContainmentLinkRef, bool) {
	n := m.Node(h)
	if n == nil || n.parent < 0 {
		return NoHandle, ContainmentLinkRef{}, false
	}
	return n.parent, n.parentLink, true
}

// IsRoot reports whether h is one of the model's roots.
func (m *Model) IsRoot(h Handle) bool {
	n := m.Node(h)
	return n != nil && n.parent == rootParent
}

// SetProperty stores a property value on the node at h.
func (m *Model) SetProperty(h Handle, ref PropertyRef, value string) error {
	n := m.Node(h)
	if n == nil {
		return fmt.Errorf("%w: handle %d", ErrUnknownNode, h)
	}
	n.SetProperty(ref, value)
	return nil
}

// RemoveProperty drops a property value from the node at h.
func (m *Model) RemoveProperty(h Handle, ref PropertyRef) bool {
	n := m.Node(h)
	return n != nil && n.RemoveProperty(ref)
}

// SetReference stores a reference on the node at h.
func (m *Model) SetReference(h Handle, ref Reference) error {
	n := m.Node(h)
	if n == nil {
		return fmt.Errorf("%w: handle %d", ErrUnknownNode, h)
	}
	n.SetReference(ref)
	return nil
}

// RemoveReference drops the reference held under link by the node at h.
func (m *Model) RemoveReference(h Handle, link ReferenceLinkRef) bool {
	n := m.Node(h)
	return n != nil && n.RemoveReference(link)
}

// Replace installs the detached node n into slot h, taking over the old
// node's position and containment link in its parent. Children listed on n
// must be children of the old node or detached; children of the old node not
// listed on n become detached.
func (m *Model) Replace(h Handle, n *Node) error {
	old := m.Node(h)
	if old == nil {
		return fmt.Errorf("%w: handle %d", ErrUnknownNode, h)
	}
	if n == nil {
		return fmt.Errorf("project: replace %s with nil node", old.ID)
	}
	if n.ID != old.ID {
		if _, exists := m.index[n.ID]; exists {
			return fmt.Errorf("%w: %s in %s", ErrDuplicateNode, n.ID, m.ref.Name)
		}
	}
	for _, placement := range n.children {
		c := m.Node(placement.Node)
		if c == nil {
			return fmt.Errorf("%w: child handle %d of %s", ErrUnknownNode, placement.Node, n.ID)
		}
		if c.parent != h && c.parent != NoHandle {
			return fmt.Errorf("%w: %s", ErrAttached, c.ID)
		}
		if placement.Node == h || m.isAncestor(placement.Node, h) {
			return fmt.Errorf("%w: %s under %s", ErrCycle, c.ID, n.ID)
		}
	}
	for _, placement := range old.children {
		c := m.nodes[placement.Node]
		c.parent = NoHandle
		c.parentLink = ContainmentLinkRef{}
	}
	for _, placement := range n.children {
		c := m.nodes[placement.Node]
		c.parent = h
		c.parentLink = placement.Link
	}
	n.parent = old.parent
	n.parentLink = old.parentLink
	if n.parent >= 0 {
		p := m.nodes[n.parent]
		for i := range p.children {
			if p.children[i].Node == h {
				p.children[i].Link = n.parentLink
			}
		}
	}
	delete(m.index, old.ID)
	m.index[n.ID] = h
	m.nodes[h] = n
	return nil
}

// Walk visits every node reachable from the roots in pre-order. Returning
// false from fn skips the node's subtree.
func (m *Model) Walk(fn func(Handle, *Node) bool) {
	for _, root := range m.roots {
		m.walk(root, fn)
	}
}

func (m *Model) walk(h Handle, fn func(Handle, *Node) bool) {
	n := m.nodes[h]
	if !fn(h, n) {
		return
	}
	for _, child := range n.children {
		m.walk(child.Node, fn)
	}
}

// isAncestor reports whether candidate is h or one of h's ancestors.
func (m *Model) isAncestor(candidate, h Handle) bool {
	for cur := h; cur >= 0; cur = m.nodes[cur].parent {
		if cur == candidate {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the model under ref. Node ids are kept.
func (m *Model) Clone(ref ModelRef) *Model {
	out := &Model{
		ref:       ref,
		Languages: append([]ModuleRef(nil), m.Languages...),
		Imports:   append([]ModelRef(nil), m.Imports...),
		nodes:     make([]*Node, len(m.nodes)),
		roots:     append([]Handle(nil), m.roots...),
		index:     make(map[NodeID]Handle, len(m.index)),
	}
	for i, n := range m.nodes {
		out.nodes[i] = n.clone()
	}
	for id, h := range m.index {
		out.index[id] = h
	}
	return out
}

// AddLanguage records an imported schema unless it is already present.
func (m *Model) AddLanguage(ref ModuleRef) {
	for _, existing := range m.Languages {
		if existing == ref {
			return
		}
	}
	m.Languages = append(m.Languages, ref)
}

// RemoveLanguage drops an imported schema.
func (m *Model) RemoveLanguage(ref ModuleRef) bool {
	for i, existing := range m.Languages {
		if existing == ref {
			m.Languages = append(m.Languages[:i], m.Languages[i+1:]...)
			return true
		}
	}
	return false
}

// AddImport records an imported model unless it is already present.
func (m *Model) AddImport(ref ModelRef) {
	for _, existing := range m.Imports {
		if existing == ref {
			return
		}
	}
	m.Imports = append(m.Imports, ref)
}

// RemoveImport drops an imported model.
func (m *Model) RemoveImport(ref ModelRef) bool {
	for i, existing := range m.Imports {
		if existing == ref {
			m.Imports = append(m.Imports[:i], m.Imports[i+1:]...)
			return true
		}
	}
	return false
}
