package marker

import (
	"strings"

	"github.com/OCAP2/markerview/internal/geo"
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// FreehandType is the type tag of FreehandMarker.
const FreehandType = "FreehandMarker"

// FreehandMarker is a box marker showing a hand-drawn stroke. The stroke
// is either a raster drawing (DrawingImgURL) stretched over the box or a
// polyline of Points given as fractions of the box size.
type FreehandMarker struct {
	BoxGeometry

	Color         string
	LineWidth     float64
	DrawingImgURL string
	Points        []core.Point

	image *scene.Node
	path  *scene.Node

	drawn []core.Point
}

type freehandState struct {
	boxState
	Color         string       `json:"color"`
	LineWidth     float64      `json:"lineWidth"`
	DrawingImgURL string       `json:"drawingImgUrl"`
	Points        []core.Point `json:"points,omitempty"`
}

// NewFreehand creates an empty freehand marker.
func NewFreehand(s *scene.Scene) *FreehandMarker {
	m := &FreehandMarker{Color: "transparent", LineWidth: 3}
	m.initBox(s, FreehandType, m.adjustVisual)

	m.image = s.NewNode(scene.KindImage)
	m.path = s.NewNode(scene.KindPath, "fill", "none", "stroke-linecap", "round", "stroke-linejoin", "round")
	m.visual.Append(m.image)
	m.visual.Append(m.path)
	m.adjustVisual()
	return m
}

// Image returns the drawing image node.
func (m *FreehandMarker) Image() *scene.Node { return m.image }

// PointerDown on a new marker starts collecting the stroke.
func (m *FreehandMarker) PointerDown(p core.Point, target *scene.Node) {
	creating := m.mode == ModeNew
	m.BoxGeometry.PointerDown(p, target)
	if creating {
		m.drawn = []core.Point{p}
	}
}

func (m *FreehandMarker) Manipulate(p core.Point) {
	if m.mode == ModeCreating {
		m.drawn = append(m.drawn, p)
		m.fitStroke()
		return
	}
	m.BoxGeometry.Manipulate(p)
}

func (m *FreehandMarker) PointerUp(p core.Point) {
	if m.mode != ModeCreating {
		m.BoxGeometry.PointerUp(p)
		return
	}
	m.drawn = append(m.drawn, p)
	m.fitStroke()
	m.drawn = nil
	m.mode = ModeSelect
}

// Scale scales the box and, while drawing, the points collected so far.
func (m *FreehandMarker) Scale(scaleX, scaleY float64) {
	for i, p := range m.drawn {
		m.drawn[i] = scalePoint(p, scaleX, scaleY)
	}
	m.BoxGeometry.Scale(scaleX, scaleY)
}

// fitStroke makes the box the envelope of the drawn points and stores
// them relative to it. A degenerate axis gets the line width as its size.
func (m *FreehandMarker) fitStroke() {
	lo, hi, ok := geo.Bounds(m.drawn)
	if !ok {
		return
	}
	w, h := hi.X-lo.X, hi.Y-lo.Y
	left, top := lo.X, lo.Y
	if w == 0 {
		w = m.LineWidth
		left -= w / 2
	}
	if h == 0 {
		h = m.LineWidth
		top -= h / 2
	}
	m.Left, m.Top, m.Width, m.Height = left, top, w, h

	m.Points = make([]core.Point, len(m.drawn))
	for i, p := range m.drawn {
		m.Points[i] = core.Point{X: (p.X - left) / w, Y: (p.Y - top) / h}
	}
	m.applyGeometry()
}

// StrokeLength returns the length of the stroke at the current box size.
func (m *FreehandMarker) StrokeLength() float64 {
	return geo.PathLength(m.strokePoints())
}

func (m *FreehandMarker) strokePoints() []core.Point {
	pts := make([]core.Point, len(m.Points))
	for i, p := range m.Points {
		pts[i] = core.Point{X: p.X * m.Width, Y: p.Y * m.Height}
	}
	return pts
}

func (m *FreehandMarker) adjustVisual() {
	m.image.SetFloat("width", m.Width).SetFloat("height", m.Height)
	if m.DrawingImgURL != "" {
		m.image.SetAttr("href", m.DrawingImgURL)
		m.image.SetVisible(true)
	} else {
		m.image.RemoveAttr("href")
		m.image.SetVisible(false)
	}

	pts := m.strokePoints()
	if len(pts) == 0 {
		m.path.SetVisible(false)
		return
	}
	var d strings.Builder
	for i, p := range pts {
		if i == 0 {
			d.WriteString("M ")
		} else {
			d.WriteString(" L ")
		}
		d.WriteString(core.FormatFloat(p.X))
		d.WriteByte(' ')
		d.WriteString(core.FormatFloat(p.Y))
	}
	m.path.SetAttrs("d", d.String(), "stroke", m.Color)
	m.path.SetFloat("stroke-width", m.LineWidth)
	m.path.SetVisible(true)
}

func (m *FreehandMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(FreehandType, freehandState{
		boxState:      m.boxState(),
		Color:         m.Color,
		LineWidth:     m.LineWidth,
		DrawingImgURL: m.DrawingImgURL,
		Points:        m.Points,
	})
}

func (m *FreehandMarker) Restore(state core.MarkerState) error {
	st := freehandState{
		Color:         m.Color,
		LineWidth:     m.LineWidth,
		DrawingImgURL: m.DrawingImgURL,
	}
	if err := decodeState(state, FreehandType, &st, boxKeys...); err != nil {
		return err
	}
	m.Color = st.Color
	m.LineWidth = st.LineWidth
	m.DrawingImgURL = st.DrawingImgURL
	m.Points = st.Points
	m.restoreBox(st.boxState)
	return nil
}
