// Package scene is a small retained vector scene: nested groups with
// per-node affine transforms, SVG-like shape primitives, bounding boxes and
// point hit-testing. Markers build their visuals in it and hosts render
// snapshots of it.
package scene

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/OCAP2/markerview/internal/geo"
	"github.com/OCAP2/markerview/pkg/core"
)

// Approximate glyph metrics used for text extents.
const (
	DefaultFontSize = 16.0
	glyphAdvance    = 0.6
	lineAdvance     = 1.2
)

// Scene owns a tree of nodes rooted at a canvas group.
type Scene struct {
	root  *Node
	nodes map[string]*Node
	seq   uint64
}

// New creates an empty scene.
func New() *Scene {
	s := &Scene{nodes: make(map[string]*Node)}
	s.root = s.NewNode(KindGroup)
	return s
}

// Root returns the canvas root group.
func (s *Scene) Root() *Node { return s.root }

// NewNode creates a detached node registered with the scene. attrs are
// name/value pairs.
func (s *Scene) NewNode(kind Kind, attrs ...string) *Node {
	s.seq++
	n := &Node{
		id:        "n" + strconv.FormatUint(s.seq, 10),
		kind:      kind,
		attrs:     make(map[string]string),
		transform: core.Identity(),
		scene:     s,
	}
	n.SetAttrs(attrs...)
	s.nodes[n.id] = n
	return n
}

// Lookup resolves a node ID to a node that is currently part of the tree.
func (s *Scene) Lookup(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	if !ok || !s.root.Contains(n) {
		return nil, false
	}
	return n, true
}

// Release detaches n and forgets it and its descendants.
func (s *Scene) Release(n *Node) {
	if n == nil {
		return
	}
	n.Detach()
	n.Walk(func(c *Node) bool {
		delete(s.nodes, c.id)
		return true
	})
}

// Len returns the number of registered nodes, the root included.
func (s *Scene) Len() int { return len(s.nodes) }

// NodeAt returns the topmost visible shape whose bounding box in canvas
// space contains p, or nil when p only hits the canvas itself.
func (s *Scene) NodeAt(p core.Point) *Node {
	return hitTest(s.root, p)
}

func hitTest(n *Node, p core.Point) *Node {
	if n.attrs["display"] == "none" || n.attrs["pointer-events"] == "none" {
		return nil
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		if h := hitTest(n.children[i], p); h != nil {
			return h
		}
	}
	if n.kind == KindGroup || n.kind == KindTSpan {
		return nil
	}
	lo, hi, ok := n.ScreenBBox()
	if !ok {
		return nil
	}
	pad := 0.0
	switch n.kind {
	case KindLine, KindPath, KindPolygon:
		pad = n.Float("stroke-width") / 2
	}
	if p.X >= lo.X-pad && p.X <= hi.X+pad && p.Y >= lo.Y-pad && p.Y <= hi.Y+pad {
		return n
	}
	return nil
}

// BBox returns the bounding box of the node's visible content in its own
// local space, excluding the node's own transform.
func (n *Node) BBox() (lo, hi core.Point, ok bool) {
	return geo.Bounds(n.contentPoints())
}

// ScreenBBox returns the bounding box of the node's visible content in
// canvas (root) space.
func (n *Node) ScreenBBox() (lo, hi core.Point, ok bool) {
	lo, hi, ok = n.BBox()
	if !ok {
		return lo, hi, false
	}
	lo, hi = geo.TransformedBounds(n.CTM(), lo, hi)
	return lo, hi, true
}

func (n *Node) contentPoints() []core.Point {
	pts := n.shapePoints()
	for _, c := range n.children {
		if c.attrs["display"] == "none" || c.kind == KindTSpan {
			continue
		}
		for _, p := range c.contentPoints() {
			pts = append(pts, geo.Apply(c.transform, p))
		}
	}
	return pts
}

func (n *Node) shapePoints() []core.Point {
	switch n.kind {
	case KindRect, KindImage:
		x, y := n.Float("x"), n.Float("y")
		return []core.Point{{X: x, Y: y}, {X: x + n.Float("width"), Y: y + n.Float("height")}}
	case KindEllipse:
		cx, cy, rx, ry := n.Float("cx"), n.Float("cy"), n.Float("rx"), n.Float("ry")
		return []core.Point{{X: cx - rx, Y: cy - ry}, {X: cx + rx, Y: cy + ry}}
	case KindLine:
		return []core.Point{{X: n.Float("x1"), Y: n.Float("y1")}, {X: n.Float("x2"), Y: n.Float("y2")}}
	case KindPolygon:
		pts, err := core.ParsePoints(n.attrs["points"])
		if err != nil {
			return nil
		}
		return pts
	case KindPath:
		return pathPoints(n.attrs["d"])
	case KindText:
		w, h := n.TextExtent()
		if w == 0 && h == 0 {
			return nil
		}
		x, y := n.Float("x"), n.Float("y")
		return []core.Point{{X: x, Y: y}, {X: x + w, Y: y + h}}
	}
	return nil
}

// pathPoints pairs up the numeric operands of a path description. Control
// points are included, so the result bounds the curve conservatively.
func pathPoints(d string) []core.Point {
	fields := strings.FieldsFunc(d, func(r rune) bool {
		return r == ' ' || r == ',' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z' && r != 'e')
	})
	var nums []float64
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		nums = append(nums, v)
	}
	pts := make([]core.Point, 0, len(nums)/2)
	for i := 0; i+1 < len(nums); i += 2 {
		pts = append(pts, core.Point{X: nums[i], Y: nums[i+1]})
	}
	return pts
}

// TextExtent approximates the unscaled size of a text node from its tspan
// lines (or its own character data) and font-size.
func (n *Node) TextExtent() (width, height float64) {
	size := n.Float("font-size")
	if size <= 0 {
		size = DefaultFontSize
	}
	lines := make([]string, 0, len(n.children))
	for _, c := range n.children {
		if c.kind == KindTSpan {
			lines = append(lines, c.text)
		}
	}
	if len(lines) == 0 && n.text != "" {
		lines = strings.Split(n.text, "\n")
	}
	if len(lines) == 0 {
		return 0, 0
	}
	longest := 0
	for _, l := range lines {
		if c := utf8.RuneCountInString(l); c > longest {
			longest = c
		}
	}
	return float64(longest) * size * glyphAdvance, float64(len(lines)) * size * lineAdvance
}

// NodeSnapshot is the flat, serializable form of one node.
type NodeSnapshot struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Parent    string            `json:"parent,omitempty"`
	Transform *core.Matrix      `json:"transform,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Text      string            `json:"text,omitempty"`
}

// Snapshot flattens the tree in paint order, parents before children.
func (s *Scene) Snapshot() []NodeSnapshot {
	var out []NodeSnapshot
	s.root.Walk(func(n *Node) bool {
		snap := NodeSnapshot{ID: n.id, Kind: n.kind, Text: n.text}
		if n.parent != nil {
			snap.Parent = n.parent.id
		}
		if !n.transform.IsIdentity() {
			m := n.transform
			snap.Transform = &m
		}
		if len(n.attrs) > 0 {
			snap.Attrs = n.Attrs()
		}
		out = append(out, snap)
		return true
	})
	return out
}

// String renders a short description of the node, for logs.
func (n *Node) String() string {
	return fmt.Sprintf("%s#%s", n.kind, n.id)
}
