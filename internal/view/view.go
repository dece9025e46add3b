// Package view implements the controller that owns a set of markers over
// one canvas: it turns raw pointer and keyboard input into marker
// manipulation, tracks the current and hovered markers, notifies
// subscribers and serializes the whole annotation set.
//
// A View is not safe for concurrent use. Hosts deliver every call from a
// single goroutine.
package view

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/OCAP2/markerview/internal/events"
	"github.com/OCAP2/markerview/internal/marker"
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

var (
	// ErrInvalidSize is returned for a non-positive canvas size.
	ErrInvalidSize = errors.New("canvas size must be positive")
	// ErrAlreadyOpen is returned by Show on an open view.
	ErrAlreadyOpen = errors.New("view is already open")
	// ErrClosed is returned by Show on a closed view.
	ErrClosed = errors.New("view is closed")
	// ErrHandlerType is returned when a listener does not match its kind.
	ErrHandlerType = errors.New("handler does not match event kind")
)

// Handler shapes, by event kind.
type (
	// ViewHandler receives create, close and load.
	ViewHandler func(v *View)
	// MarkerHandler receives select and hover. m is nil for "none".
	MarkerHandler func(v *View, m marker.Marker)
	// PointerHandler receives the pointer notifications. m is the marker
	// under the pointer, if any.
	PointerHandler func(v *View, ev *PointerEvent, m marker.Marker)
)

// Plugin extends a view. Init runs once when the view is shown, after it
// opens and before the load notification.
type Plugin interface {
	Init(v *View)
}

// Host supplies the displayed size of the annotated image.
type Host interface {
	Size() (width, height float64)
}

// View is the annotation controller for one canvas.
type View struct {
	id     uuid.UUID
	logger *slog.Logger

	width  float64
	height float64
	origin core.Point

	scene    *scene.Scene
	layer    *scene.Node
	registry *marker.Registry

	markers []marker.Marker
	current marker.Marker
	hovered marker.Marker
	pending string

	dragging    bool
	touchPoints int
	inside      bool

	opened  bool
	closed  bool
	plugins []Plugin

	events        *events.Registry
	onCreate      *events.Channel[ViewHandler]
	onClose       *events.Channel[ViewHandler]
	onLoad        *events.Channel[ViewHandler]
	onSelect      *events.Channel[MarkerHandler]
	onHover       *events.Channel[MarkerHandler]
	onPointerDown *events.Channel[PointerHandler]
	onPointerMove *events.Channel[PointerHandler]
	onPointerUp   *events.Channel[PointerHandler]
	onEnter       *events.Channel[PointerHandler]
	onLeave       *events.Channel[PointerHandler]
}

type options struct {
	logger      *slog.Logger
	eventLogger events.Logger
	eventOpts   []events.Option
	types       []string
	registry    *marker.Registry
	plugins     []Plugin
	origin      core.Point
}

// Option configures a View.
type Option func(*options)

// WithLogger sets the view's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEventLogger sets the logger of the event registry and turns on its
// emission logging.
func WithEventLogger(l events.Logger) Option {
	return func(o *options) {
		o.eventLogger = l
		o.eventOpts = append(o.eventOpts, events.Logged())
	}
}

// WithRegistry replaces the built-in marker types.
func WithRegistry(r *marker.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMarkerTypes narrows the available marker types to typeNames, in
// that order.
func WithMarkerTypes(typeNames ...string) Option {
	return func(o *options) { o.types = typeNames }
}

// WithPlugins adds plugins initialised by Show.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) { o.plugins = append(o.plugins, plugins...) }
}

// WithOrigin sets the client position of the canvas' top-left corner.
func WithOrigin(p core.Point) Option {
	return func(o *options) { o.origin = p }
}

// New creates a closed view over a width x height canvas.
func New(width, height float64, opts ...Option) (*View, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %gx%g", ErrInvalidSize, width, height)
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	registry := o.registry
	if registry == nil {
		registry = marker.DefaultRegistry()
	}
	if len(o.types) > 0 {
		narrowed, err := registry.Narrow(o.types...)
		if err != nil {
			return nil, fmt.Errorf("narrowing marker types: %w", err)
		}
		registry = narrowed
	}

	evReg, err := events.New(o.eventLogger, o.eventOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating event registry: %w", err)
	}

	s := scene.New()
	v := &View{
		id:       uuid.New(),
		width:    width,
		height:   height,
		origin:   o.origin,
		scene:    s,
		layer:    s.NewNode(scene.KindGroup, "class", "markers"),
		registry: registry,
		plugins:  o.plugins,
		events:   evReg,

		onCreate:      events.NewChannel[ViewHandler](evReg, events.Create),
		onClose:       events.NewChannel[ViewHandler](evReg, events.Close),
		onLoad:        events.NewChannel[ViewHandler](evReg, events.Load),
		onSelect:      events.NewChannel[MarkerHandler](evReg, events.Select),
		onHover:       events.NewChannel[MarkerHandler](evReg, events.Hover),
		onPointerDown: events.NewChannel[PointerHandler](evReg, events.PointerDown),
		onPointerMove: events.NewChannel[PointerHandler](evReg, events.PointerMove),
		onPointerUp:   events.NewChannel[PointerHandler](evReg, events.PointerUp),
		onEnter:       events.NewChannel[PointerHandler](evReg, events.PointerEnter),
		onLeave:       events.NewChannel[PointerHandler](evReg, events.PointerLeave),
	}
	v.logger = o.logger.With("view", v.id.String())
	s.Root().Append(v.layer)
	return v, nil
}

// NewForHost creates a view sized to h.
func NewForHost(h Host, opts ...Option) (*View, error) {
	w, ht := h.Size()
	return New(w, ht, opts...)
}

// ID returns the view's instance ID.
func (v *View) ID() string { return v.id.String() }

// Logger returns the view's logger.
func (v *View) Logger() *slog.Logger { return v.logger }

// Size returns the current canvas size.
func (v *View) Size() (width, height float64) { return v.width, v.height }

// Scene returns the scene the markers draw into.
func (v *View) Scene() *scene.Scene { return v.scene }

// Layer returns the group holding every marker container.
func (v *View) Layer() *scene.Node { return v.layer }

// MarkerTypes returns the type tags this view can create and restore.
func (v *View) MarkerTypes() []string { return v.registry.Types() }

// Markers returns the active markers in z-order, bottom first.
func (v *View) Markers() []marker.Marker { return slices.Clone(v.markers) }

// CurrentMarker returns the selected marker, or nil.
func (v *View) CurrentMarker() marker.Marker { return v.current }

// HoveredMarker returns the marker last reported under the pointer, or nil.
func (v *View) HoveredMarker() marker.Marker { return v.hovered }

// IsOpen reports whether Show has run and Close has not.
func (v *View) IsOpen() bool { return v.opened && !v.closed }

// Dragging reports whether a manipulation is in progress.
func (v *View) Dragging() bool { return v.dragging }

// AddPlugin registers a plugin to initialise on Show.
func (v *View) AddPlugin(p Plugin) { v.plugins = append(v.plugins, p) }

// RemovePlugin unregisters p, which must be comparable. Plugins already
// initialised keep their subscriptions.
func (v *View) RemovePlugin(p Plugin) {
	if i := slices.Index(v.plugins, p); i >= 0 {
		v.plugins = slices.Delete(v.plugins, i, i+1)
	}
}

// Show opens the view: plugins are initialised, create is emitted, state
// (if any) is restored and load is emitted.
func (v *View) Show(state *core.AnnotationSet) (RestoreReport, error) {
	switch {
	case v.closed:
		return RestoreReport{}, ErrClosed
	case v.opened:
		return RestoreReport{}, ErrAlreadyOpen
	}
	v.opened = true

	for _, p := range v.plugins {
		p.Init(v)
	}
	v.onCreate.Emit(func(h ViewHandler) { h(v) })

	var report RestoreReport
	if state != nil {
		report = v.Restore(*state)
	}
	v.onLoad.Emit(func(h ViewHandler) { h(v) })
	v.logger.Debug("view shown", "markers", len(v.markers), "width", v.width, "height", v.height)
	return report, nil
}

// Close emits close, disposes every marker and releases the event
// registry. Closing twice is a no-op.
func (v *View) Close() error {
	if v.closed {
		return nil
	}
	wasOpen := v.opened
	v.closed = true
	if wasOpen {
		v.onClose.Emit(func(h ViewHandler) { h(v) })
	}
	v.current, v.hovered = nil, nil
	v.clearMarkers()
	v.logger.Debug("view closed")
	return v.events.Close()
}

// SetCurrentMarker makes m (nil for none) the selected marker. The old
// marker is deselected before m is selected, and select is emitted only
// when the current marker changes.
func (v *View) SetCurrentMarker(m marker.Marker) {
	changed := v.current != m
	if v.current != nil {
		v.current.Deselect()
	}
	v.current = m
	if v.current != nil {
		v.current.Select()
	}
	if changed {
		v.onSelect.Emit(func(h MarkerHandler) { h(v, m) })
	}
}

// CreateMarker arms the view to create a marker of typeName on the next
// pointer down. The current marker is deselected.
func (v *View) CreateMarker(typeName string) error {
	if !v.registry.Has(typeName) {
		return fmt.Errorf("%w: %q", marker.ErrUnknownType, typeName)
	}
	v.SetCurrentMarker(nil)
	v.pending = typeName
	return nil
}

// PendingMarker returns the type armed by CreateMarker, or "".
func (v *View) PendingMarker() string { return v.pending }

// RemoveMarker detaches and disposes m. Removing the current marker
// then clears the selection, so select listeners no longer find m in
// Markers.
func (v *View) RemoveMarker(m marker.Marker) {
	i := slices.Index(v.markers, m)
	if i < 0 {
		return
	}
	if v.hovered == m {
		v.hovered = nil
	}
	v.markers = slices.Delete(v.markers, i, i+1)
	m.Dispose()
	v.logger.Debug("marker removed", "type", m.TypeName(), "index", i)
	if v.current == m {
		v.SetCurrentMarker(nil)
	}
}

func (v *View) addMarker(m marker.Marker) {
	v.layer.Append(m.Container())
	v.markers = append(v.markers, m)
}

func (v *View) clearMarkers() {
	for _, m := range v.markers {
		m.Dispose()
	}
	v.markers = nil
}

// IndexOf returns m's z-order index, or -1.
func (v *View) IndexOf(m marker.Marker) int {
	return slices.Index(v.markers, m)
}

// AddEventListener subscribes handler to kind. The handler must be a
// ViewHandler for create, close and load, a MarkerHandler for select and
// hover, and a PointerHandler for the pointer kinds; the plain func types
// are accepted too.
func (v *View) AddEventListener(kind events.Kind, handler any) (events.Token, error) {
	switch kind {
	case events.Create, events.Close, events.Load:
		h, ok := asViewHandler(handler)
		if !ok {
			return 0, fmt.Errorf("%w: %s wants func(*View)", ErrHandlerType, kind)
		}
		return v.viewChannel(kind).Add(h), nil
	case events.Select, events.Hover:
		h, ok := asMarkerHandler(handler)
		if !ok {
			return 0, fmt.Errorf("%w: %s wants func(*View, marker.Marker)", ErrHandlerType, kind)
		}
		return v.markerChannel(kind).Add(h), nil
	case events.PointerDown, events.PointerMove, events.PointerUp, events.PointerEnter, events.PointerLeave:
		h, ok := asPointerHandler(handler)
		if !ok {
			return 0, fmt.Errorf("%w: %s wants func(*View, *PointerEvent, marker.Marker)", ErrHandlerType, kind)
		}
		return v.pointerChannel(kind).Add(h), nil
	}
	return 0, fmt.Errorf("unknown event kind: %s", kind)
}

// RemoveEventListener removes the subscription token from kind. It
// reports whether a subscription was removed.
func (v *View) RemoveEventListener(kind events.Kind, token events.Token) bool {
	switch kind {
	case events.Create, events.Close, events.Load:
		return v.viewChannel(kind).Remove(token)
	case events.Select, events.Hover:
		return v.markerChannel(kind).Remove(token)
	case events.PointerDown, events.PointerMove, events.PointerUp, events.PointerEnter, events.PointerLeave:
		return v.pointerChannel(kind).Remove(token)
	}
	return false
}

func (v *View) viewChannel(kind events.Kind) *events.Channel[ViewHandler] {
	switch kind {
	case events.Create:
		return v.onCreate
	case events.Close:
		return v.onClose
	}
	return v.onLoad
}

func (v *View) markerChannel(kind events.Kind) *events.Channel[MarkerHandler] {
	if kind == events.Select {
		return v.onSelect
	}
	return v.onHover
}

func (v *View) pointerChannel(kind events.Kind) *events.Channel[PointerHandler] {
	switch kind {
	case events.PointerDown:
		return v.onPointerDown
	case events.PointerMove:
		return v.onPointerMove
	case events.PointerUp:
		return v.onPointerUp
	case events.PointerEnter:
		return v.onEnter
	}
	return v.onLeave
}

func asViewHandler(h any) (ViewHandler, bool) {
	switch f := h.(type) {
	case ViewHandler:
		return f, f != nil
	case func(*View):
		return f, f != nil
	}
	return nil, false
}

func asMarkerHandler(h any) (MarkerHandler, bool) {
	switch f := h.(type) {
	case MarkerHandler:
		return f, f != nil
	case func(*View, marker.Marker):
		return f, f != nil
	}
	return nil, false
}

func asPointerHandler(h any) (PointerHandler, bool) {
	switch f := h.(type) {
	case PointerHandler:
		return f, f != nil
	case func(*View, *PointerEvent, marker.Marker):
		return f, f != nil
	}
	return nil, false
}
