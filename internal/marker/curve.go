package marker

import (
	"fmt"

	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// CurveType is the type tag of CurveMarker.
const CurveType = "CurveMarker"

// CurveMarker is a quadratic curve between two endpoints bent towards the
// control point (CurveX, CurveY).
type CurveMarker struct {
	LinearGeometry
	LineStyle

	CurveX float64
	CurveY float64

	selectorCurve *scene.Node
	visibleCurve  *scene.Node
	controlGrip   *scene.Node
	draggingCurve bool
	startCurve    core.Point
}

type curveState struct {
	lineState
	CurveX float64 `json:"curveX"`
	CurveY float64 `json:"curveY"`
}

// NewCurve creates an empty curve marker.
func NewCurve(s *scene.Scene) *CurveMarker {
	m := &CurveMarker{LineStyle: LineStyle{StrokeColor: "transparent"}}
	m.initLinear(s, CurveType, m.adjustVisual)

	m.selectorCurve = s.NewNode(scene.KindPath, "stroke", "transparent", "fill", "transparent")
	m.visibleCurve = s.NewNode(scene.KindPath, "fill", "transparent")
	m.visual.Append(m.selectorCurve)
	m.visual.Append(m.visibleCurve)

	m.controlGrip = m.newGrip()
	m.controls.Append(m.controlGrip)

	m.adjustVisual()
	return m
}

// PathD returns the curve's path description.
func (m *CurveMarker) PathD() string {
	return fmt.Sprintf("M %s %s Q %s %s, %s %s",
		core.FormatFloat(m.X1), core.FormatFloat(m.Y1),
		core.FormatFloat(m.CurveX), core.FormatFloat(m.CurveY),
		core.FormatFloat(m.X2), core.FormatFloat(m.Y2))
}

func (m *CurveMarker) PointerDown(p core.Point, target *scene.Node) {
	if target != nil && target == m.controlGrip && m.mode != ModeNew {
		m.Select()
		m.manipulationStart = p
		m.draggingCurve = true
		m.mode = ModeResize
		return
	}
	m.startCurve = core.Point{X: m.CurveX, Y: m.CurveY}
	m.LinearGeometry.PointerDown(p, target)
}

func (m *CurveMarker) Manipulate(p core.Point) {
	switch {
	case m.draggingCurve:
		m.CurveX, m.CurveY = p.X, p.Y
	case m.mode == ModeMove:
		// the control point travels with the endpoints
		m.CurveX = m.startCurve.X + p.X - m.manipulationStart.X
		m.CurveY = m.startCurve.Y + p.Y - m.manipulationStart.Y
	}
	if m.draggingCurve {
		m.adjustVisual()
		return
	}
	m.LinearGeometry.Manipulate(p)
	if m.mode == ModeCreating {
		m.centerControl()
	}
}

func (m *CurveMarker) centerControl() {
	m.CurveX = (m.X1 + m.X2) / 2
	m.CurveY = (m.Y1+m.Y2)/2 - 30
	m.adjustVisual()
}

func (m *CurveMarker) PointerUp(p core.Point) {
	if m.draggingCurve {
		m.draggingCurve = false
		m.mode = ModeSelect
		return
	}
	creating := m.mode == ModeCreating
	m.LinearGeometry.PointerUp(p)
	if creating {
		m.centerControl()
	}
}

// Scale scales the endpoints and the control point.
func (m *CurveMarker) Scale(scaleX, scaleY float64) {
	m.CurveX *= scaleX
	m.CurveY *= scaleY
	if m.mode.dragging() {
		m.startCurve = scalePoint(m.startCurve, scaleX, scaleY)
	}
	m.LinearGeometry.Scale(scaleX, scaleY)
}

func (m *CurveMarker) adjustVisual() {
	d := m.PathD()
	m.selectorCurve.SetAttr("d", d)
	m.selectorCurve.SetFloat("stroke-width", m.StrokeWidth+selectorPadding)
	m.visibleCurve.SetAttrs("d", d, "stroke", m.StrokeColor, "stroke-dasharray", m.StrokeDasharray)
	m.visibleCurve.SetFloat("stroke-width", m.StrokeWidth)
	m.controlGrip.SetFloat("cx", m.CurveX).SetFloat("cy", m.CurveY)
}

func (m *CurveMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(CurveType, curveState{
		lineState: lineState{linearState: m.linearState(), LineStyle: m.LineStyle},
		CurveX:    m.CurveX,
		CurveY:    m.CurveY,
	})
}

func (m *CurveMarker) Restore(state core.MarkerState) error {
	st := curveState{lineState: lineState{LineStyle: m.LineStyle}}
	if err := decodeState(state, CurveType, &st, append(linearKeys, "curveX", "curveY")...); err != nil {
		return err
	}
	m.LineStyle = st.LineStyle
	m.CurveX, m.CurveY = st.CurveX, st.CurveY
	m.restoreLinear(st.linearState)
	return nil
}
