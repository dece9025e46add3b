package scene

import (
	"strconv"

	"github.com/OCAP2/markerview/internal/geo"
	"github.com/OCAP2/markerview/pkg/core"
)

// Kind is the shape primitive a node renders as.
type Kind string

const (
	KindGroup   Kind = "g"
	KindRect    Kind = "rect"
	KindEllipse Kind = "ellipse"
	KindLine    Kind = "line"
	KindPath    Kind = "path"
	KindPolygon Kind = "polygon"
	KindText    Kind = "text"
	KindTSpan   Kind = "tspan"
	KindImage   Kind = "image"
)

// Node is one element of the retained scene. Nodes are created by a Scene
// and identified by a stable ID.
type Node struct {
	id        string
	kind      Kind
	attrs     map[string]string
	transform core.Matrix
	text      string

	scene    *Scene
	parent   *Node
	children []*Node
}

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// Kind returns the node's shape primitive.
func (n *Node) Kind() Kind { return n.kind }

// Parent returns the node's parent, or nil when detached.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's children in paint order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Attr returns an attribute value ("" when unset).
func (n *Node) Attr(name string) string { return n.attrs[name] }

// SetAttr sets an attribute.
func (n *Node) SetAttr(name, value string) *Node {
	n.attrs[name] = value
	return n
}

// SetAttrs sets attributes from name/value pairs.
func (n *Node) SetAttrs(pairs ...string) *Node {
	for i := 0; i+1 < len(pairs); i += 2 {
		n.attrs[pairs[i]] = pairs[i+1]
	}
	return n
}

// RemoveAttr deletes an attribute.
func (n *Node) RemoveAttr(name string) {
	delete(n.attrs, name)
}

// SetFloat sets a numeric attribute.
func (n *Node) SetFloat(name string, v float64) *Node {
	n.attrs[name] = core.FormatFloat(v)
	return n
}

// Float reads a numeric attribute; unset or unparsable values read as 0.
func (n *Node) Float(name string) float64 {
	v, err := strconv.ParseFloat(n.attrs[name], 64)
	if err != nil {
		return 0
	}
	return v
}

// Attrs returns a copy of all attributes.
func (n *Node) Attrs() map[string]string {
	out := make(map[string]string, len(n.attrs))
	for k, v := range n.attrs {
		out[k] = v
	}
	return out
}

// Text returns the node's character data (text and tspan nodes).
func (n *Node) Text() string { return n.text }

// SetText replaces the node's character data.
func (n *Node) SetText(s string) { n.text = s }

// Transform returns the node's own transform.
func (n *Node) Transform() core.Matrix { return n.transform }

// SetTransform replaces the node's own transform.
func (n *Node) SetTransform(m core.Matrix) { n.transform = m }

// SetVisible shows or hides the node.
func (n *Node) SetVisible(visible bool) {
	if visible {
		delete(n.attrs, "display")
		return
	}
	n.attrs["display"] = "none"
}

// Visible reports whether the node and all its ancestors are displayed.
func (n *Node) Visible() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.attrs["display"] == "none" {
			return false
		}
	}
	return true
}

// Append adds child as the last (topmost) child, detaching it from any
// previous parent.
func (n *Node) Append(child *Node) {
	child.Detach()
	child.parent = n
	n.children = append(n.children, child)
}

// Prepend adds child as the first (bottom) child, detaching it from any
// previous parent.
func (n *Node) Prepend(child *Node) {
	child.Detach()
	child.parent = n
	n.children = append([]*Node{child}, n.children...)
}

// Detach removes the node from its parent. Detaching a detached node is a
// no-op.
func (n *Node) Detach() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// RemoveChildren detaches and releases every child of n.
func (n *Node) RemoveChildren() {
	for _, c := range n.Children() {
		c.Detach()
		if n.scene != nil {
			n.scene.Release(c)
		}
	}
}

// Contains reports whether other is n or one of its descendants.
func (n *Node) Contains(other *Node) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// CTM returns the transform from the node's local space to the scene root
// space: the product of the transforms of the node and its ancestors.
func (n *Node) CTM() core.Matrix {
	m := core.Identity()
	for cur := n; cur != nil; cur = cur.parent {
		m = geo.Multiply(cur.transform, m)
	}
	return m
}

// Walk visits n and its descendants depth first in paint order. Returning
// false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}
