package marker

import (
	"math"

	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// CalloutType is the type tag of CalloutMarker.
const CalloutType = "CalloutMarker"

// CalloutMarker is a text marker on a rounded background with a tip
// pointing at TipPosition, given relative to the box's top-left corner.
type CalloutMarker struct {
	TextMarker

	BgColor     string
	TipPosition core.Point

	tipBase1 core.Point
	tipBase2 core.Point

	tip         *scene.Node
	tipGrip     *scene.Node
	draggingTip bool
}

type calloutState struct {
	textState
	BgColor     string     `json:"bgColor"`
	TipPosition core.Point `json:"tipPosition"`
}

// NewCallout creates an empty callout marker.
func NewCallout(s *scene.Scene) *CalloutMarker {
	m := &CalloutMarker{BgColor: "transparent"}
	m.initText(s, CalloutType, m.adjustVisual)

	m.tip = s.NewNode(scene.KindPolygon)
	m.visual.Append(m.tip)
	m.tipGrip = s.NewNode(scene.KindEllipse, "class", "grip",
		"rx", core.FormatFloat(gripSize/2), "ry", core.FormatFloat(gripSize/2),
		"fill", "#cccccc", "stroke", "#333333")
	m.controls.Append(m.tipGrip)

	m.adjustVisual()
	return m
}

// Tip returns the tip polygon.
func (m *CalloutMarker) Tip() *scene.Node { return m.tip }

// TipPoints returns the two tip base points and the tip itself, relative
// to the box's top-left corner.
func (m *CalloutMarker) TipPoints() (base1, base2, tip core.Point) {
	return m.tipBase1, m.tipBase2, m.TipPosition
}

// Select positions the tip before showing the handles.
func (m *CalloutMarker) Select() {
	m.positionTip()
	m.TextMarker.Select()
}

func (m *CalloutMarker) PointerDown(p core.Point, target *scene.Node) {
	if target != nil && target == m.tipGrip && m.mode != ModeNew {
		m.Select()
		m.manipulationStart = p
		m.draggingTip = true
		m.mode = ModeResize
		return
	}
	m.TextMarker.PointerDown(p, target)
}

func (m *CalloutMarker) Manipulate(p core.Point) {
	if m.draggingTip {
		m.TipPosition = m.UnrotatePoint(p).Sub(core.Point{X: m.Left, Y: m.Top})
		m.positionTip()
		return
	}
	m.TextMarker.Manipulate(p)
}

func (m *CalloutMarker) PointerUp(p core.Point) {
	if m.draggingTip {
		m.draggingTip = false
		m.mode = ModeSelect
		return
	}
	creating := m.mode == ModeCreating
	m.TextMarker.PointerUp(p)
	if creating {
		m.setTipPoints(true)
		m.positionTip()
	}
}

// Scale scales the box and the tip with it.
func (m *CalloutMarker) Scale(scaleX, scaleY float64) {
	m.TipPosition = core.Point{X: m.TipPosition.X * scaleX, Y: m.TipPosition.Y * scaleY}
	m.TextMarker.Scale(scaleX, scaleY)
}

func (m *CalloutMarker) adjustVisual() {
	m.TextMarker.adjustVisual()
	m.bgRect.SetAttrs("fill", m.BgColor, "rx", "10")
	m.positionTip()
}

func (m *CalloutMarker) positionTip() {
	if m.tip == nil {
		return
	}
	m.setTipPoints(false)
	m.tip.SetAttrs("fill", m.BgColor, "points", core.FormatPoints(m.tipBase1, m.tipBase2, m.TipPosition))
	m.tipGrip.SetFloat("cx", m.TipPosition.X).SetFloat("cy", m.TipPosition.Y)
}

// setTipPoints places the tip base on the box side facing the tip. When
// creating, the tip is first put just below the bottom left corner.
func (m *CalloutMarker) setTipPoints(creating bool) {
	w, h := m.Width, m.Height
	offset := math.Min(h/2, 15)
	baseWidth := h / 5
	if creating {
		m.TipPosition = core.Point{X: offset + baseWidth/2, Y: h + 20}
	}
	tp := m.TipPosition
	cornerAngle := math.Atan(h / 2 / (w / 2))

	alongWidth := func() {
		baseWidth = w / 5
		offset = math.Min(w/2, 15)
	}

	switch {
	case tp.X < w/2 && tp.Y < h/2:
		if cornerAngle < math.Atan((h/2-tp.Y)/(w/2-tp.X)) {
			alongWidth()
			m.tipBase1 = core.Point{X: offset, Y: 0}
			m.tipBase2 = core.Point{X: offset + baseWidth, Y: 0}
		} else {
			m.tipBase1 = core.Point{X: 0, Y: offset}
			m.tipBase2 = core.Point{X: 0, Y: offset + baseWidth}
		}
	case tp.X >= w/2 && tp.Y < h/2:
		if cornerAngle < math.Atan((h/2-tp.Y)/(tp.X-w/2)) {
			alongWidth()
			m.tipBase1 = core.Point{X: w - offset - baseWidth, Y: 0}
			m.tipBase2 = core.Point{X: w - offset, Y: 0}
		} else {
			m.tipBase1 = core.Point{X: w, Y: offset}
			m.tipBase2 = core.Point{X: w, Y: offset + baseWidth}
		}
	case tp.X >= w/2 && tp.Y >= h/2:
		if cornerAngle < math.Atan((tp.Y-h/2)/(tp.X-w/2)) {
			alongWidth()
			m.tipBase1 = core.Point{X: w - offset - baseWidth, Y: h}
			m.tipBase2 = core.Point{X: w - offset, Y: h}
		} else {
			m.tipBase1 = core.Point{X: w, Y: h - offset - baseWidth}
			m.tipBase2 = core.Point{X: w, Y: h - offset}
		}
	default:
		if cornerAngle < math.Atan((tp.Y-h/2)/(w/2-tp.X)) {
			alongWidth()
			m.tipBase1 = core.Point{X: offset, Y: h}
			m.tipBase2 = core.Point{X: offset + baseWidth, Y: h}
		} else {
			m.tipBase1 = core.Point{X: 0, Y: h - offset}
			m.tipBase2 = core.Point{X: 0, Y: h - offset - baseWidth}
		}
	}
}

func (m *CalloutMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(CalloutType, calloutState{
		textState:   m.textState(),
		BgColor:     m.BgColor,
		TipPosition: m.TipPosition,
	})
}

func (m *CalloutMarker) Restore(state core.MarkerState) error {
	st := calloutState{
		textState:   m.defaultTextState(),
		BgColor:     m.BgColor,
		TipPosition: m.TipPosition,
	}
	if err := decodeState(state, CalloutType, &st, append(boxKeys, "tipPosition")...); err != nil {
		return err
	}
	m.BgColor = st.BgColor
	m.TipPosition = st.TipPosition
	m.restoreText(st.textState)
	return nil
}
