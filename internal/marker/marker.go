// Package marker implements the annotation markers a view manages: the
// shared marker contract, the box and linear geometry capabilities they are
// built from, the concrete marker variants and the type registry used to
// rebuild markers from their serialized state.
package marker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

var (
	// ErrUnknownType is returned when a type tag has no registered constructor.
	ErrUnknownType = errors.New("unknown marker type")
	// ErrMalformedState is returned when a state record cannot rebuild a marker.
	ErrMalformedState = errors.New("malformed marker state")
)

// Mode is the manipulation state of a marker.
type Mode string

const (
	// ModeNew is a freshly constructed marker waiting for its first pointer-down.
	ModeNew Mode = "new"
	// ModeCreating is an initial draw in progress.
	ModeCreating Mode = "creating"
	// ModeSelect is an idle marker (selected or not).
	ModeSelect Mode = "select"
	ModeMove   Mode = "move"
	ModeResize Mode = "resize"
	ModeRotate Mode = "rotate"
	// ModeEdit is the text-edit sub-mode entered by double-click.
	ModeEdit Mode = "edit"
)

// dragging reports whether a pointer manipulation is in progress.
func (m Mode) dragging() bool {
	switch m {
	case ModeCreating, ModeMove, ModeResize, ModeRotate:
		return true
	}
	return false
}

func scalePoint(p core.Point, scaleX, scaleY float64) core.Point {
	return core.Point{X: p.X * scaleX, Y: p.Y * scaleY}
}

// Marker is the contract every annotation marker implements. Points are in
// the local canvas space of the owning view; targets are scene nodes
// resolved from raw pointer events.
type Marker interface {
	// TypeName returns the marker's type tag.
	TypeName() string
	// Container returns the scene group holding the marker's visual.
	Container() *scene.Node
	Notes() string
	SetNotes(notes string)
	Mode() Mode

	// OwnsTarget reports whether target is one of the marker's own nodes.
	OwnsTarget(target *scene.Node) bool

	Select()
	Deselect()
	IsSelected() bool

	PointerDown(p core.Point, target *scene.Node)
	Manipulate(p core.Point)
	PointerUp(p core.Point)
	DoubleClick(p core.Point, target *scene.Node)

	// Scale adjusts geometry for a proportional resize of the backing image.
	Scale(scaleX, scaleY float64)

	Serialize() (core.MarkerState, error)
	Restore(state core.MarkerState) error

	// Dispose detaches the marker's visual and releases its nodes.
	Dispose()
}

// decodeState checks that state belongs to typeName and carries every
// required key, then decodes it into v. Fields absent from the record keep
// the values v already holds.
func decodeState(state core.MarkerState, typeName string, v any, required ...string) error {
	if state.TypeName != typeName {
		return fmt.Errorf("%w: %q record given to %s", ErrMalformedState, state.TypeName, typeName)
	}
	if missing := state.Missing(required...); len(missing) > 0 {
		return fmt.Errorf("%w: %s missing %s", ErrMalformedState, typeName, strings.Join(missing, ", "))
	}
	if err := state.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	return nil
}

// fontSizePx converts a CSS font size ("16px", "1rem", "1.5em", "12") to
// pixels, falling back to the scene default.
func fontSizePx(size string) float64 {
	s := strings.TrimSpace(size)
	unit := 1.0
	switch {
	case strings.HasSuffix(s, "rem"):
		s, unit = strings.TrimSuffix(s, "rem"), scene.DefaultFontSize
	case strings.HasSuffix(s, "em"):
		s, unit = strings.TrimSuffix(s, "em"), scene.DefaultFontSize
	case strings.HasSuffix(s, "px"):
		s = strings.TrimSuffix(s, "px")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return scene.DefaultFontSize
	}
	return v * unit
}
