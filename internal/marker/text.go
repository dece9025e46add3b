package marker

import (
	"math"
	"regexp"
	"strings"

	"github.com/OCAP2/markerview/internal/geo"
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// TextType is the type tag of TextMarker.
const TextType = "TextMarker"

const textFontSize = 16.0

var lineBreak = regexp.MustCompile(`\r\n|[\n\v\f\r\x{85}\x{2028}\x{2029}]`)

// TextMarker is a box marker holding multi-line text scaled to fit the box.
type TextMarker struct {
	BoxGeometry

	Color      string
	FontFamily string
	// Padding is a percentage of the box size kept clear on each side.
	Padding float64
	Text    string

	bgRect   *scene.Node
	textNode *scene.Node
}

type textState struct {
	boxState
	Color      string  `json:"color"`
	FontFamily string  `json:"fontFamily"`
	Padding    float64 `json:"padding"`
	Text       string  `json:"text"`
}

// NewText creates an empty text marker.
func NewText(s *scene.Scene) *TextMarker {
	m := &TextMarker{}
	m.initText(s, TextType, m.adjustVisual)
	m.adjustVisual()
	return m
}

func (m *TextMarker) initText(s *scene.Scene, typeName string, adjust func()) {
	m.Color = "transparent"
	m.FontFamily = "Helvetica, Arial, sans-serif"
	m.Padding = 5
	m.initBox(s, typeName, adjust)
	m.DefaultSize = core.Point{X: 100, Y: 30}

	m.bgRect = s.NewNode(scene.KindRect, "fill", "transparent")
	m.textNode = s.NewNode(scene.KindText)
	m.textNode.SetFloat("font-size", textFontSize).SetFloat("x", 0).SetFloat("y", 0)
	m.visual.Append(m.bgRect)
	m.visual.Append(m.textNode)
}

// TextNode returns the text element holding one tspan per line.
func (m *TextMarker) TextNode() *scene.Node { return m.textNode }

// Editing reports whether the marker is in its text-edit sub-mode.
func (m *TextMarker) Editing() bool { return m.mode == ModeEdit }

// SetText replaces the text and re-fits it.
func (m *TextMarker) SetText(text string) {
	m.Text = text
	m.redraw()
}

// DoubleClick on a selected text marker enters the edit sub-mode.
func (m *TextMarker) DoubleClick(_ core.Point, target *scene.Node) {
	if m.selected && (target == nil || m.OwnsTarget(target)) {
		m.mode = ModeEdit
	}
}

func (m *TextMarker) adjustVisual() {
	m.bgRect.SetFloat("width", m.Width).SetFloat("height", m.Height)
	m.textNode.SetAttrs("fill", m.Color, "font-family", m.FontFamily)
	m.renderText()
	m.sizeText()
}

func (m *TextMarker) renderText() {
	m.textNode.RemoveChildren()
	for _, line := range lineBreak.Split(m.Text, -1) {
		line = strings.TrimSpace(line)
		if line == "" {
			line = " "
		}
		span := m.scene.NewNode(scene.KindTSpan, "x", "0", "dy", "1.2em")
		span.SetText(line)
		m.textNode.Append(span)
	}
}

// textScale returns the uniform scale that fits the text into the box less
// its padding.
func (m *TextMarker) textScale() float64 {
	tw, th := m.textNode.TextExtent()
	if tw <= 0 || th <= 0 {
		return 1
	}
	xScale := (m.Width - m.Width*m.Padding*2/100) / tw
	yScale := (m.Height - m.Height*m.Padding*2/100) / th
	return math.Min(xScale, yScale)
}

func (m *TextMarker) sizeText() {
	scale := m.textScale()
	var x, y float64
	if tw, th := m.textNode.TextExtent(); tw > 0 && th > 0 {
		x = (m.Width - tw*scale) / 2
		y = m.Height/2 - th*scale/2
	}
	m.textNode.SetTransform(geo.Multiply(geo.Translate(x, y), geo.Scale(scale, scale)))
}

func (m *TextMarker) textState() textState {
	return textState{
		boxState:   m.boxState(),
		Color:      m.Color,
		FontFamily: m.FontFamily,
		Padding:    m.Padding,
		Text:       m.Text,
	}
}

func (m *TextMarker) defaultTextState() textState {
	return textState{
		Color:      m.Color,
		FontFamily: m.FontFamily,
		Padding:    m.Padding,
		Text:       m.Text,
	}
}

func (m *TextMarker) restoreText(st textState) {
	m.Color = st.Color
	m.FontFamily = st.FontFamily
	m.Padding = st.Padding
	m.Text = st.Text
	m.restoreBox(st.boxState)
}

func (m *TextMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(TextType, m.textState())
}

func (m *TextMarker) Restore(state core.MarkerState) error {
	st := m.defaultTextState()
	if err := decodeState(state, TextType, &st, boxKeys...); err != nil {
		return err
	}
	m.restoreText(st)
	return nil
}
