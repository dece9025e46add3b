package view

import (
	"slices"

	"github.com/OCAP2/markerview/internal/marker"
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// Pointer types.
const (
	PointerMouse = "mouse"
	PointerTouch = "touch"
	PointerPen   = "pen"
)

// Keys that delete the current marker.
const (
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
)

// PointerEvent is one pointer sample in client coordinates. Target is the
// scene node under the pointer: nil outside the canvas and the scene root
// over the bare canvas.
type PointerEvent struct {
	PointerID   int         `json:"pointerId"`
	PointerType string      `json:"pointerType"`
	ClientX     float64     `json:"clientX"`
	ClientY     float64     `json:"clientY"`
	Target      *scene.Node `json:"-"`

	defaultPrevented bool
}

// PreventDefault marks the event as consumed by the view.
func (e *PointerEvent) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether the view consumed the event.
func (e *PointerEvent) DefaultPrevented() bool { return e.defaultPrevented }

// SetOrigin updates the client position of the canvas' top-left corner.
func (v *View) SetOrigin(p core.Point) { v.origin = p }

// ClientToLocal converts client coordinates to canvas coordinates.
func (v *View) ClientToLocal(clientX, clientY float64) core.Point {
	return core.Point{X: clientX - v.origin.X, Y: clientY - v.origin.Y}
}

// TargetAt resolves the node under a client position: the topmost hit
// shape, the scene root over the bare canvas, or nil outside it.
func (v *View) TargetAt(clientX, clientY float64) *scene.Node {
	p := v.ClientToLocal(clientX, clientY)
	if n := v.scene.NodeAt(p); n != nil {
		return n
	}
	if p.X >= 0 && p.Y >= 0 && p.X <= v.width && p.Y <= v.height {
		return v.scene.Root()
	}
	return nil
}

// MarkerAt returns the topmost marker owning target, or nil.
func (v *View) MarkerAt(target *scene.Node) marker.Marker {
	if target == nil {
		return nil
	}
	for _, m := range slices.Backward(v.markers) {
		if m.OwnsTarget(target) {
			return m
		}
	}
	return nil
}

func (v *View) primary(ev *PointerEvent) bool {
	return v.touchPoints == 1 || ev.PointerType != PointerTouch
}

// PointerDown handles a pointer press. Only the first concurrent touch
// contact interacts; mouse and pen always do.
func (v *View) PointerDown(ev *PointerEvent) {
	v.touchPoints++
	if !v.primary(ev) {
		return
	}
	p := v.ClientToLocal(ev.ClientX, ev.ClientY)

	var hit marker.Marker
	if v.pending != "" {
		m, err := v.registry.New(v.scene, v.pending)
		v.pending = ""
		if err != nil {
			v.logger.Error("creating marker", "error", err)
		} else {
			v.addMarker(m)
			hit = m
			v.logger.Debug("marker created", "type", m.TypeName())
		}
	} else {
		hit = v.MarkerAt(ev.Target)
	}

	if hit != nil {
		v.SetCurrentMarker(hit)
		v.dragging = true
		hit.PointerDown(p, ev.Target)
	} else {
		v.SetCurrentMarker(nil)
	}
	v.onPointerDown.Emit(func(h PointerHandler) { h(v, ev, hit) })
}

// PointerMove handles pointer motion: the current marker is manipulated
// and hover, enter and leave are tracked.
func (v *View) PointerMove(ev *PointerEvent) {
	p := v.ClientToLocal(ev.ClientX, ev.ClientY)
	if v.primary(ev) && (v.current != nil || v.dragging) {
		ev.PreventDefault()
		if v.current != nil {
			v.current.Manipulate(p)
		}
	}

	hit := v.MarkerAt(ev.Target)
	inside := hit != nil || ev.Target == v.scene.Root()
	if inside != v.inside {
		v.inside = inside
		ch := v.onLeave
		if inside {
			ch = v.onEnter
		}
		ch.Emit(func(h PointerHandler) { h(v, ev, hit) })
	}

	if v.onHover.Len() == 0 && v.onPointerMove.Len() == 0 {
		return
	}
	if hit != v.hovered {
		v.hovered = hit
		v.onHover.Emit(func(h MarkerHandler) { h(v, hit) })
	}
	v.onPointerMove.Emit(func(h PointerHandler) { h(v, ev, hit) })
}

// PointerUp handles a pointer release. The drag ends when the last
// contact lifts.
func (v *View) PointerUp(ev *PointerEvent) {
	if v.touchPoints > 0 {
		v.touchPoints--
	}
	if v.touchPoints == 0 {
		if v.dragging && v.current != nil {
			v.current.PointerUp(v.ClientToLocal(ev.ClientX, ev.ClientY))
		}
		v.dragging = false
	}
	hit := v.MarkerAt(ev.Target)
	v.onPointerUp.Emit(func(h PointerHandler) { h(v, ev, hit) })
}

// PointerCancel handles an interrupted contact like a release.
func (v *View) PointerCancel(ev *PointerEvent) { v.PointerUp(ev) }

// PointerOut handles a contact leaving the canvas like a release.
func (v *View) PointerOut(ev *PointerEvent) {
	v.PointerUp(ev)
	if v.inside {
		v.inside = false
		v.onLeave.Emit(func(h PointerHandler) { h(v, ev, nil) })
	}
}

// DoubleClick makes the marker under the pointer current and forwards the
// double click to it. Over the bare canvas the selection is cleared.
func (v *View) DoubleClick(ev *PointerEvent) {
	hit := v.MarkerAt(ev.Target)
	if hit != nil && hit != v.current {
		v.SetCurrentMarker(hit)
	}
	if v.current == nil {
		v.SetCurrentMarker(nil)
		return
	}
	v.current.DoubleClick(v.ClientToLocal(ev.ClientX, ev.ClientY), ev.Target)
}

// KeyUp removes the current marker on Delete or Backspace. It reports
// whether a marker was removed.
func (v *View) KeyUp(key string) bool {
	if key != KeyDelete && key != KeyBackspace {
		return false
	}
	m := v.current
	if m == nil {
		return false
	}
	if e, ok := m.(interface{ Editing() bool }); ok && e.Editing() {
		return false
	}
	v.RemoveMarker(m)
	return true
}
