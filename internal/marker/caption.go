package marker

import (
	"strings"

	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// CaptionFrameType is the type tag of CaptionFrameMarker.
const CaptionFrameType = "CaptionFrameMarker"

const captionPadding = 5.0

// CaptionFrameMarker is a rectangle outline with a caption box in its top
// left corner.
type CaptionFrameMarker struct {
	BoxGeometry

	FillColor       string
	StrokeColor     string
	StrokeWidth     float64
	StrokeDasharray string
	TextColor       string
	FontFamily      string
	FontSize        string
	CaptionText     string

	captionBg *scene.Node
	caption   *scene.Node
	frame     *scene.Node
}

type captionFrameState struct {
	boxState
	FillColor       string  `json:"fillColor"`
	StrokeColor     string  `json:"strokeColor"`
	StrokeWidth     float64 `json:"strokeWidth"`
	StrokeDasharray string  `json:"strokeDasharray"`
	TextColor       string  `json:"textColor"`
	FontFamily      string  `json:"fontFamily"`
	FontSize        string  `json:"fontSize"`
	CaptionText     string  `json:"captionText"`
}

// NewCaptionFrame creates an empty caption frame marker.
func NewCaptionFrame(s *scene.Scene) *CaptionFrameMarker {
	m := &CaptionFrameMarker{
		FillColor:   "transparent",
		StrokeColor: "transparent",
		TextColor:   "transparent",
		FontFamily:  "Helvetica, Arial, sans-serif",
		FontSize:    "1rem",
	}
	m.initBox(s, CaptionFrameType, m.adjustVisual)

	m.captionBg = s.NewNode(scene.KindRect)
	m.caption = s.NewNode(scene.KindText, "text-anchor", "start", "dominant-baseline", "text-before-edge")
	m.frame = s.NewNode(scene.KindRect)
	m.visual.Append(m.captionBg)
	m.visual.Append(m.caption)
	m.visual.Append(m.frame)
	m.adjustVisual()
	return m
}

// SetCaptionText replaces the caption and resizes its box.
func (m *CaptionFrameMarker) SetCaptionText(text string) {
	m.CaptionText = text
	m.adjustVisual()
}

// CaptionBox returns the size of the caption background; zero when the
// caption is blank.
func (m *CaptionFrameMarker) CaptionBox() (width, height float64) {
	return m.captionBg.Float("width"), m.captionBg.Float("height")
}

func (m *CaptionFrameMarker) adjustVisual() {
	m.frame.SetAttrs(
		"fill", "transparent",
		"stroke", m.StrokeColor,
		"stroke-width", core.FormatFloat(m.StrokeWidth),
		"stroke-dasharray", m.StrokeDasharray,
	)
	m.frame.SetFloat("width", m.Width).SetFloat("height", m.Height)

	m.caption.SetAttrs("fill", m.TextColor, "font-family", m.FontFamily)
	m.caption.SetFloat("font-size", fontSizePx(m.FontSize))
	m.caption.SetFloat("x", captionPadding).SetFloat("y", captionPadding)
	m.caption.SetText(m.CaptionText)

	var bw, bh float64
	if strings.TrimSpace(m.CaptionText) != "" {
		tw, th := m.caption.TextExtent()
		bw, bh = tw+captionPadding*2, th+captionPadding*2
	}
	m.captionBg.SetAttr("fill", m.FillColor)
	m.captionBg.SetFloat("width", bw).SetFloat("height", bh)
}

func (m *CaptionFrameMarker) Serialize() (core.MarkerState, error) {
	return core.NewMarkerState(CaptionFrameType, captionFrameState{
		boxState:        m.boxState(),
		FillColor:       m.FillColor,
		StrokeColor:     m.StrokeColor,
		StrokeWidth:     m.StrokeWidth,
		StrokeDasharray: m.StrokeDasharray,
		TextColor:       m.TextColor,
		FontFamily:      m.FontFamily,
		FontSize:        m.FontSize,
		CaptionText:     m.CaptionText,
	})
}

func (m *CaptionFrameMarker) Restore(state core.MarkerState) error {
	st := captionFrameState{
		FillColor:       m.FillColor,
		StrokeColor:     m.StrokeColor,
		StrokeWidth:     m.StrokeWidth,
		StrokeDasharray: m.StrokeDasharray,
		TextColor:       m.TextColor,
		FontFamily:      m.FontFamily,
		FontSize:        m.FontSize,
		CaptionText:     m.CaptionText,
	}
	if err := decodeState(state, CaptionFrameType, &st, boxKeys...); err != nil {
		return err
	}
	m.FillColor = st.FillColor
	m.StrokeColor = st.StrokeColor
	m.StrokeWidth = st.StrokeWidth
	m.StrokeDasharray = st.StrokeDasharray
	m.TextColor = st.TextColor
	m.FontFamily = st.FontFamily
	m.FontSize = st.FontSize
	m.CaptionText = st.CaptionText
	m.restoreBox(st.boxState)
	return nil
}
