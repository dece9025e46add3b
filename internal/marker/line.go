package marker

import (
	"fmt"

	"github.com/OCAP2/markerview/internal/geo"
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// Type tags of the line markers.
const (
	LineType        = "LineMarker"
	ArrowType       = "ArrowMarker"
	MeasurementType = "MeasurementMarker"
)

// selectorPadding widens the invisible hit line around the visible one.
const selectorPadding = 10.0

// LineStyle is the stroke of a line marker.
type LineStyle struct {
	StrokeColor     string  `json:"strokeColor"`
	StrokeWidth     float64 `json:"strokeWidth"`
	StrokeDasharray string  `json:"strokeDasharray"`
}

// LineMarker is a straight line between two endpoints.
type LineMarker struct {
	LinearGeometry
	LineStyle

	selectorLine *scene.Node
	visibleLine  *scene.Node
}

type lineState struct {
	linearState
	LineStyle
}

// NewLine creates an empty line marker.
func NewLine(s *scene.Scene) *LineMarker {
	m := &LineMarker{}
	m.initLine(s, LineType, m.adjustVisual)
	m.adjustVisual()
	return m
}

func (m *LineMarker) initLine(s *scene.Scene, typeName string, adjust func()) {
	m.LineStyle = LineStyle{StrokeColor: "transparent"}
	m.initLinear(s, typeName, adjust)

	m.selectorLine = s.NewNode(scene.KindLine, "stroke", "transparent")
	m.visibleLine = s.NewNode(scene.KindLine)
	m.visual.Append(m.selectorLine)
	m.visual.Append(m.visibleLine)
}

// VisibleLine returns the painted line node.
func (m *LineMarker) VisibleLine() *scene.Node { return m.visibleLine }

func (m *LineMarker) adjustVisual() {
	for _, l := range []*scene.Node{m.selectorLine, m.visibleLine} {
		l.SetFloat("x1", m.X1).SetFloat("y1", m.Y1).SetFloat("x2", m.X2).SetFloat("y2", m.Y2)
	}
	m.selectorLine.SetFloat("stroke-width", m.StrokeWidth+selectorPadding)
	m.visibleLine.SetAttrs("stroke", m.StrokeColor, "stroke-dasharray", m.StrokeDasharray)
	m.visibleLine.SetFloat("stroke-width", m.StrokeWidth)
}

func (m *LineMarker) lineState() lineState {
	return lineState{linearState: m.linearState(), LineStyle: m.LineStyle}
}

func (m *LineMarker) restoreLine(st lineState) {
	m.LineStyle = st.LineStyle
	m.restoreLinear(st.linearState)
}

func (m *LineMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(LineType, m.lineState())
}

func (m *LineMarker) Restore(state core.MarkerState) error {
	st := lineState{LineStyle: m.LineStyle}
	if err := decodeState(state, LineType, &st, linearKeys...); err != nil {
		return err
	}
	m.restoreLine(st)
	return nil
}

// capAngles orients the end caps along the line: the start cap faces away
// from the end and the end cap is turned half a revolution further. ok is
// false for (near) vertical lines, which keep their previous orientation.
func (m *LineMarker) capAngles() (start, end float64, ok bool) {
	angle, ok := geo.LineAngle(m.Start(), m.End())
	return angle, angle + 180, ok
}

// ArrowHeads selects which ends of an arrow carry a head.
type ArrowHeads string

const (
	ArrowBoth  ArrowHeads = "both"
	ArrowStart ArrowHeads = "start"
	ArrowEnd   ArrowHeads = "end"
	ArrowNone  ArrowHeads = "none"
)

// Valid reports whether h is a known arrow head selection.
func (h ArrowHeads) Valid() bool {
	switch h {
	case ArrowBoth, ArrowStart, ArrowEnd, ArrowNone:
		return true
	}
	return false
}

const arrowBaseSize = 10.0

// ArrowMarker is a line with triangular heads on one or both ends.
type ArrowMarker struct {
	LineMarker

	ArrowType ArrowHeads

	arrow1 *scene.Node
	arrow2 *scene.Node
}

type arrowState struct {
	lineState
	ArrowType ArrowHeads `json:"arrowType"`
}

// NewArrow creates an empty arrow marker with a head at the end.
func NewArrow(s *scene.Scene) *ArrowMarker {
	m := &ArrowMarker{ArrowType: ArrowEnd}
	m.initLine(s, ArrowType, m.adjustVisual)
	m.arrow1 = s.NewNode(scene.KindPolygon)
	m.arrow2 = s.NewNode(scene.KindPolygon)
	m.visual.Append(m.arrow1)
	m.visual.Append(m.arrow2)
	m.adjustVisual()
	return m
}

// Heads returns the start and end arrow head polygons.
func (m *ArrowMarker) Heads() (start, end *scene.Node) { return m.arrow1, m.arrow2 }

func (m *ArrowMarker) arrowPoints(x, y float64) string {
	width := arrowBaseSize + m.StrokeWidth*2
	height := arrowBaseSize + m.StrokeWidth*2
	return core.FormatPoints(
		core.Point{X: x - width/2, Y: y + height/2},
		core.Point{X: x, Y: y - height/2},
		core.Point{X: x + width/2, Y: y + height/2},
	)
}

func (m *ArrowMarker) adjustVisual() {
	m.LineMarker.adjustVisual()
	if m.arrow1 == nil || m.arrow2 == nil {
		return
	}
	m.arrow1.SetVisible(m.ArrowType == ArrowBoth || m.ArrowType == ArrowStart)
	m.arrow2.SetVisible(m.ArrowType == ArrowBoth || m.ArrowType == ArrowEnd)
	m.arrow1.SetAttrs("points", m.arrowPoints(m.X1, m.Y1), "fill", m.StrokeColor)
	m.arrow2.SetAttrs("points", m.arrowPoints(m.X2, m.Y2), "fill", m.StrokeColor)

	if start, end, ok := m.capAngles(); ok {
		m.arrow1.SetTransform(geo.RotateAbout(start, m.X1, m.Y1))
		m.arrow2.SetTransform(geo.RotateAbout(end, m.X2, m.Y2))
	}
}

func (m *ArrowMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(ArrowType, arrowState{lineState: m.lineState(), ArrowType: m.ArrowType})
}

func (m *ArrowMarker) Restore(state core.MarkerState) error {
	st := arrowState{lineState: lineState{LineStyle: m.LineStyle}, ArrowType: m.ArrowType}
	if err := decodeState(state, ArrowType, &st, linearKeys...); err != nil {
		return err
	}
	if !st.ArrowType.Valid() {
		return fmt.Errorf("%w: unknown arrowType %q", ErrMalformedState, st.ArrowType)
	}
	m.ArrowType = st.ArrowType
	m.restoreLine(st.lineState)
	return nil
}

// MeasurementMarker is a line with perpendicular tick marks on both ends.
type MeasurementMarker struct {
	LineMarker

	tip1 *scene.Node
	tip2 *scene.Node
}

// NewMeasurement creates an empty measurement marker.
func NewMeasurement(s *scene.Scene) *MeasurementMarker {
	m := &MeasurementMarker{}
	m.initLine(s, MeasurementType, m.adjustVisual)
	m.tip1 = s.NewNode(scene.KindLine)
	m.tip2 = s.NewNode(scene.KindLine)
	m.visual.Append(m.tip1)
	m.visual.Append(m.tip2)
	m.adjustVisual()
	return m
}

// Tips returns the start and end tick lines.
func (m *MeasurementMarker) Tips() (start, end *scene.Node) { return m.tip1, m.tip2 }

// Length returns the distance between the endpoints.
func (m *MeasurementMarker) Length() float64 {
	return geo.PathLength([]core.Point{m.Start(), m.End()})
}

func (m *MeasurementMarker) tipLength() float64 {
	return 10 + m.StrokeWidth*3
}

func (m *MeasurementMarker) adjustVisual() {
	m.LineMarker.adjustVisual()
	if m.tip1 == nil || m.tip2 == nil {
		return
	}
	half := m.tipLength() / 2
	for _, t := range []struct {
		node *scene.Node
		x, y float64
	}{{m.tip1, m.X1, m.Y1}, {m.tip2, m.X2, m.Y2}} {
		t.node.SetFloat("x1", t.x-half).SetFloat("y1", t.y).
			SetFloat("x2", t.x+half).SetFloat("y2", t.y).
			SetFloat("stroke-width", m.StrokeWidth)
		t.node.SetAttr("stroke", m.StrokeColor)
	}

	if start, end, ok := m.capAngles(); ok {
		m.tip1.SetTransform(geo.RotateAbout(start, m.X1, m.Y1))
		m.tip2.SetTransform(geo.RotateAbout(end, m.X2, m.Y2))
	}
}

func (m *MeasurementMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(MeasurementType, m.lineState())
}

func (m *MeasurementMarker) Restore(state core.MarkerState) error {
	st := lineState{LineStyle: m.LineStyle}
	if err := decodeState(state, MeasurementType, &st, linearKeys...); err != nil {
		return err
	}
	m.restoreLine(st)
	return nil
}
