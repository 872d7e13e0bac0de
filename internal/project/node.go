package project

// Handle addresses a node slot inside a model's arena. Handles are local to
// one model and unrelated to the node's stable NodeID.
type Handle int32

// NoHandle marks the absence of a node.
const NoHandle Handle = -1

// rootParent is stored as the parent of root nodes.
const rootParent Handle = -2

// Property is one property value on a node.
type Property struct {
	Ref   PropertyRef `yaml:"property" json:"property"`
	Value string      `yaml:"value" json:"value"`
}

// Child places a node under a containment link of its parent.
type Child struct {
	Link ContainmentLinkRef
	Node Handle
}

// Reference is a non-owning pointer from a node to a node of some model. A
// reference whose target cannot be resolved is dangling, which is legal.
type Reference struct {
	Link        ReferenceLinkRef `yaml:"link" json:"link"`
	Target      ModelRef         `yaml:"model" json:"model"`
	TargetNode  NodeID           `yaml:"node" json:"node"`
	ResolveInfo string           `yaml:"resolve,omitempty" json:"resolve,omitempty"`
}

// Node is an instance of exactly one concept.
type Node struct {
	ID      NodeID
	Concept ConceptRef

	properties []Property
	children   []Child
	references []Reference

	parent     Handle
	parentLink ContainmentLinkRef
}

// NewNode returns a detached node. It becomes part of a tree through
// Model.Insert or Model.Replace.
func NewNode(id NodeID, concept ConceptRef) *Node {
	return &Node{ID: id, Concept: concept, parent: NoHandle}
}

// Properties returns a copy of the node's properties in insertion order.
func (n *Node) Properties() []Property {
	return append([]Property(nil), n.properties...)
}

// Property returns the value stored under ref.
func (n *Node) Property(ref PropertyRef) (string, bool) {
	for _, prop := range n.properties {
		if prop.Ref.Same(ref) {
			return prop.Value, true
		}
	}
	return "", false
}

// PropertyByName returns the value of the first property with the given
// display name.
func (n *Node) PropertyByName(name string) (string, bool) {
	for _, prop := range n.properties {
		if prop.Ref.Name == name {
			return prop.Value, true
		}
	}
	return "", false
}

// SetProperty stores value under ref, replacing an existing value for the
// same slot.
func (n *Node) SetProperty(ref PropertyRef, value string) {
	for i := range n.properties {
		if n.properties[i].Ref.Same(ref) {
			n.properties[i] = Property{Ref: ref, Value: value}
			return
		}
	}
	n.properties = append(n.properties, Property{Ref: ref, Value: value})
}

// RemoveProperty drops the value stored under ref.
func (n *Node) RemoveProperty(ref PropertyRef) bool {
	for i := range n.properties {
		if n.properties[i].Ref.Same(ref) {
			n.properties = append(n.properties[:i], n.properties[i+1:]...)
			return true
		}
	}
	return false
}

// Children returns a copy of the child placements in order.
func (n *Node) Children() []Child {
	return append([]Child(nil), n.children...)
}

// ChildrenIn returns the children placed under link.
func (n *Node) ChildrenIn(link ContainmentLinkRef) []Handle {
	var out []Handle
	for _, child := range n.children {
		if child.Link.Same(link) {
			out = append(out, child.Node)
		}
	}
	return out
}

// AppendChild records a child placement on a detached node. The placement is
// validated when the node is installed with Model.Replace.
func (n *Node) AppendChild(link ContainmentLinkRef, child Handle) {
	n.children = append(n.children, Child{Link: link, Node: child})
}

// References returns a copy of the node's references in order.
func (n *Node) References() []Reference {
	return append([]Reference(nil), n.references...)
}

// Reference returns the reference stored under link.
func (n *Node) Reference(link ReferenceLinkRef) (Reference, bool) {
	for _, ref := range n.references {
		if ref.Link.Same(link) {
			return ref, true
		}
	}
	return Reference{}, false
}

// SetReference stores ref, replacing the reference held under the same link.
func (n *Node) SetReference(ref Reference) {
	for i := range n.references {
		if n.references[i].Link.Same(ref.Link) {
			n.references[i] = ref
			return
		}
	}
	n.references = append(n.references, ref)
}

// RemoveReference drops the reference held under link.
func (n *Node) RemoveReference(link ReferenceLinkRef) bool {
	for i := range n.references {
		if n.references[i].Link.Same(link) {
			n.references = append(n.references[:i], n.references[i+1:]...)
			return true
		}
	}
	return false
}

func (n *Node) clone() *Node {
	return &Node{
		ID:         n.ID,
		Concept:    n.Concept,
		properties: append([]Property(nil), n.properties...),
		children:   append([]Child(nil), n.children...),
		references: append([]Reference(nil), n.references...),
		parent:     n.parent,
		parentLink: n.parentLink,
	}
}
