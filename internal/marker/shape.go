package marker

import (
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// Type tags of the box shape markers.
const (
	FrameType        = "FrameMarker"
	CoverType        = "CoverMarker"
	HighlightType    = "HighlightMarker"
	EllipseType      = "EllipseMarker"
	EllipseFrameType = "EllipseFrameMarker"
)

// ShapeStyle is the paint of a filled and stroked shape.
type ShapeStyle struct {
	FillColor       string  `json:"fillColor"`
	StrokeColor     string  `json:"strokeColor"`
	StrokeWidth     float64 `json:"strokeWidth"`
	StrokeDasharray string  `json:"strokeDasharray"`
	Opacity         float64 `json:"opacity"`
}

func defaultShapeStyle() ShapeStyle {
	return ShapeStyle{
		FillColor:   "transparent",
		StrokeColor: "transparent",
		Opacity:     1,
	}
}

func (s ShapeStyle) apply(n *scene.Node) {
	n.SetAttrs(
		"fill", s.FillColor,
		"stroke", s.StrokeColor,
		"stroke-width", core.FormatFloat(s.StrokeWidth),
		"stroke-dasharray", s.StrokeDasharray,
		"opacity", core.FormatFloat(s.Opacity),
	)
}

// ShapeMarker is a box marker drawn as a single rectangle or ellipse:
// frames, covers, highlights and ellipses.
type ShapeMarker struct {
	BoxGeometry
	ShapeStyle

	ellipse bool
	shape   *scene.Node
}

type shapeState struct {
	boxState
	ShapeStyle
}

func newShapeMarker(s *scene.Scene, typeName string, ellipse bool, style ShapeStyle) *ShapeMarker {
	m := &ShapeMarker{ShapeStyle: style, ellipse: ellipse}
	m.initBox(s, typeName, m.adjustVisual)

	kind := scene.KindRect
	if ellipse {
		kind = scene.KindEllipse
	}
	m.shape = s.NewNode(kind)
	m.visual.Append(m.shape)
	m.adjustVisual()
	return m
}

// NewFrame creates a rectangle outline marker.
func NewFrame(s *scene.Scene) *ShapeMarker {
	return newShapeMarker(s, FrameType, false, defaultShapeStyle())
}

// NewCover creates an opaque rectangle marker. Covers have no border.
func NewCover(s *scene.Scene) *ShapeMarker {
	return newShapeMarker(s, CoverType, false, defaultShapeStyle())
}

// NewHighlight creates a translucent rectangle marker.
func NewHighlight(s *scene.Scene) *ShapeMarker {
	return newShapeMarker(s, HighlightType, false, defaultShapeStyle())
}

// NewEllipse creates a filled ellipse marker.
func NewEllipse(s *scene.Scene) *ShapeMarker {
	return newShapeMarker(s, EllipseType, true, defaultShapeStyle())
}

// NewEllipseFrame creates an ellipse outline marker.
func NewEllipseFrame(s *scene.Scene) *ShapeMarker {
	return newShapeMarker(s, EllipseFrameType, true, defaultShapeStyle())
}

// Shape returns the rectangle or ellipse node.
func (m *ShapeMarker) Shape() *scene.Node { return m.shape }

// enforce applies the fixed paint rules of the variant.
func (m *ShapeMarker) enforce() {
	switch m.typeName {
	case CoverType, HighlightType:
		m.StrokeWidth = 0
	case EllipseFrameType:
		m.FillColor = "transparent"
	}
}

func (m *ShapeMarker) adjustVisual() {
	m.enforce()
	m.ShapeStyle.apply(m.shape)
	if m.ellipse {
		m.shape.SetFloat("cx", m.Width/2).SetFloat("cy", m.Height/2).
			SetFloat("rx", m.Width/2).SetFloat("ry", m.Height/2)
		return
	}
	m.shape.SetFloat("width", m.Width).SetFloat("height", m.Height)
}

func (m *ShapeMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(m.typeName, shapeState{
		boxState:   m.boxState(),
		ShapeStyle: m.ShapeStyle,
	})
}

func (m *ShapeMarker) Restore(state core.MarkerState) error {
	st := shapeState{ShapeStyle: m.ShapeStyle}
	if err := decodeState(state, m.typeName, &st, boxKeys...); err != nil {
		return err
	}
	m.ShapeStyle = st.ShapeStyle
	m.restoreBox(st.boxState)
	return nil
}
