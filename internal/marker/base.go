package marker

import (
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// Base holds what every marker has: identity, notes, selection and the
// manipulation handles shown while selected.
type Base struct {
	scene     *scene.Scene
	container *scene.Node
	typeName  string
	notes     string
	selected  bool
	mode      Mode

	// Shown only while the marker is selected.
	handles []*scene.Node
}

type baseState struct {
	Notes    string `json:"notes,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

func (b *Base) initBase(s *scene.Scene, typeName string) {
	b.scene = s
	b.typeName = typeName
	b.container = s.NewNode(scene.KindGroup, "data-marker", typeName)
	b.mode = ModeNew
}

// TypeName returns the marker's type tag.
func (b *Base) TypeName() string { return b.typeName }

// Container returns the scene group holding the marker's visual.
func (b *Base) Container() *scene.Node { return b.container }

// Notes returns the free-text note attached to the marker.
func (b *Base) Notes() string { return b.notes }

// SetNotes replaces the marker's note.
func (b *Base) SetNotes(notes string) { b.notes = notes }

// Mode returns the current manipulation mode.
func (b *Base) Mode() Mode { return b.mode }

// IsSelected reports whether the marker is selected.
func (b *Base) IsSelected() bool { return b.selected }

// OwnsTarget is false at this level; geometry capabilities extend it.
func (b *Base) OwnsTarget(*scene.Node) bool { return false }

// Select shows the marker's handles. Selecting twice is a no-op.
func (b *Base) Select() {
	if b.selected {
		return
	}
	b.selected = true
	for _, h := range b.handles {
		h.SetVisible(true)
	}
}

// Deselect hides the marker's handles and leaves any edit sub-mode.
// Deselecting twice is a no-op.
func (b *Base) Deselect() {
	if !b.selected {
		return
	}
	b.selected = false
	for _, h := range b.handles {
		h.SetVisible(false)
	}
	if b.mode == ModeEdit {
		b.mode = ModeSelect
	}
}

func (b *Base) PointerDown(core.Point, *scene.Node) {}
func (b *Base) Manipulate(core.Point)               {}
func (b *Base) PointerUp(core.Point)                {}
func (b *Base) DoubleClick(core.Point, *scene.Node) {}
func (b *Base) Scale(float64, float64)              {}

// Dispose detaches the container and releases every node under it.
func (b *Base) Dispose() {
	b.scene.Release(b.container)
	b.handles = nil
}

func (b *Base) addHandle(n *scene.Node) {
	n.SetVisible(b.selected)
	b.handles = append(b.handles, n)
}

func (b *Base) baseState() baseState {
	return baseState{Notes: b.notes, Selected: b.selected}
}

func (b *Base) restoreBase(s baseState) {
	b.notes = s.Notes
	b.mode = ModeSelect
	if s.Selected {
		b.Select()
	} else {
		b.Deselect()
	}
}
