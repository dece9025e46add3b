package marker

import (
	"fmt"
	"slices"

	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// Constructor builds an empty marker of one type in scene s.
type Constructor func(s *scene.Scene) Marker

// Registry maps type tags to constructors, preserving registration order.
type Registry struct {
	order []string
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry holding every built-in marker type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FrameType, func(s *scene.Scene) Marker { return NewFrame(s) })
	r.Register(FreehandType, func(s *scene.Scene) Marker { return NewFreehand(s) })
	r.Register(ArrowType, func(s *scene.Scene) Marker { return NewArrow(s) })
	r.Register(TextType, func(s *scene.Scene) Marker { return NewText(s) })
	r.Register(EllipseFrameType, func(s *scene.Scene) Marker { return NewEllipseFrame(s) })
	r.Register(EllipseType, func(s *scene.Scene) Marker { return NewEllipse(s) })
	r.Register(HighlightType, func(s *scene.Scene) Marker { return NewHighlight(s) })
	r.Register(CalloutType, func(s *scene.Scene) Marker { return NewCallout(s) })
	r.Register(MeasurementType, func(s *scene.Scene) Marker { return NewMeasurement(s) })
	r.Register(CoverType, func(s *scene.Scene) Marker { return NewCover(s) })
	r.Register(LineType, func(s *scene.Scene) Marker { return NewLine(s) })
	r.Register(CurveType, func(s *scene.Scene) Marker { return NewCurve(s) })
	r.Register(CaptionFrameType, func(s *scene.Scene) Marker { return NewCaptionFrame(s) })
	return r
}

// Register adds or replaces the constructor for typeName. A replaced type
// keeps its original position.
func (r *Registry) Register(typeName string, ctor Constructor) {
	if _, ok := r.ctors[typeName]; !ok {
		r.order = append(r.order, typeName)
	}
	r.ctors[typeName] = ctor
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	_, ok := r.ctors[typeName]
	return ok
}

// Types returns the registered type tags in registration order.
func (r *Registry) Types() []string {
	return slices.Clone(r.order)
}

// New constructs an empty marker of typeName.
func (r *Registry) New(s *scene.Scene, typeName string) (Marker, error) {
	ctor, ok := r.ctors[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return ctor(s), nil
}

// Narrow returns a registry holding only the given types, in the given
// order. Unknown types are an error.
func (r *Registry) Narrow(typeNames ...string) (*Registry, error) {
	out := NewRegistry()
	for _, t := range typeNames {
		ctor, ok := r.ctors[t]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
		}
		out.Register(t, ctor)
	}
	return out, nil
}

// FromState constructs a marker for state and restores it. The marker is
// disposed when the record cannot be applied.
func (r *Registry) FromState(s *scene.Scene, state core.MarkerState) (Marker, error) {
	m, err := r.New(s, state.TypeName)
	if err != nil {
		return nil, err
	}
	if err := m.Restore(state); err != nil {
		m.Dispose()
		return nil, err
	}
	return m, nil
}
