package marker

import (
	"math"

	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

// LinearGeometry is the capability shared by markers defined by two
// endpoints in canvas space.
type LinearGeometry struct {
	Base

	X1, Y1 float64
	X2, Y2 float64

	// DefaultLength is applied when a marker is created with a click.
	DefaultLength float64

	visual   *scene.Node
	controls *scene.Node
	grip1    *scene.Node
	grip2    *scene.Node

	adjust func()

	manipulationStart core.Point
	startX1, startY1  float64
	startX2, startY2  float64
	activeGrip        *scene.Node
}

type linearState struct {
	baseState
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

var linearKeys = []string{"x1", "y1", "x2", "y2"}

func (l *LinearGeometry) initLinear(s *scene.Scene, typeName string, adjust func()) {
	l.initBase(s, typeName)
	l.DefaultLength = 50
	l.adjust = adjust

	l.visual = s.NewNode(scene.KindGroup)
	l.container.Append(l.visual)

	l.controls = s.NewNode(scene.KindGroup, "class", "control-box")
	l.grip1 = l.newGrip()
	l.grip2 = l.newGrip()
	l.controls.Append(l.grip1)
	l.controls.Append(l.grip2)
	l.container.Append(l.controls)
	l.addHandle(l.controls)
}

func (l *LinearGeometry) newGrip() *scene.Node {
	return l.scene.NewNode(scene.KindEllipse, "class", "grip",
		"rx", core.FormatFloat(gripSize/2), "ry", core.FormatFloat(gripSize/2),
		"fill", "#cccccc", "stroke", "#333333")
}

// Visual returns the group the variant draws into.
func (l *LinearGeometry) Visual() *scene.Node { return l.visual }

// Start returns the first endpoint.
func (l *LinearGeometry) Start() core.Point { return core.Point{X: l.X1, Y: l.Y1} }

// End returns the second endpoint.
func (l *LinearGeometry) End() core.Point { return core.Point{X: l.X2, Y: l.Y2} }

// OwnsTarget reports whether target is the visual or one of the endpoint
// grips.
func (l *LinearGeometry) OwnsTarget(target *scene.Node) bool {
	if l.Base.OwnsTarget(target) {
		return true
	}
	return target != nil && (l.visual.Contains(target) || l.controls.Contains(target))
}

func (l *LinearGeometry) PointerDown(p core.Point, target *scene.Node) {
	l.manipulationStart = p
	l.startX1, l.startY1 = l.X1, l.Y1
	l.startX2, l.startY2 = l.X2, l.Y2
	l.activeGrip = nil

	l.Select()

	switch {
	case l.mode == ModeNew:
		l.X1, l.Y1 = p.X, p.Y
		l.X2, l.Y2 = p.X, p.Y
		l.mode = ModeCreating
		l.applyGeometry()
	case target != nil && (target == l.grip1 || target == l.grip2):
		l.activeGrip = target
		l.mode = ModeResize
	default:
		l.mode = ModeMove
	}
}

func (l *LinearGeometry) Manipulate(p core.Point) {
	switch l.mode {
	case ModeCreating:
		l.X2, l.Y2 = p.X, p.Y
	case ModeMove:
		dx, dy := p.X-l.manipulationStart.X, p.Y-l.manipulationStart.Y
		l.X1, l.Y1 = l.startX1+dx, l.startY1+dy
		l.X2, l.Y2 = l.startX2+dx, l.startY2+dy
	case ModeResize:
		l.resize(p)
	default:
		return
	}
	l.applyGeometry()
}

func (l *LinearGeometry) resize(p core.Point) {
	switch l.activeGrip {
	case l.grip1:
		l.X1, l.Y1 = p.X, p.Y
	case l.grip2:
		l.X2, l.Y2 = p.X, p.Y
	}
}

// PointerUp finishes the active manipulation. A draw that barely moved
// gets the default length along the x axis.
func (l *LinearGeometry) PointerUp(p core.Point) {
	if l.mode == ModeCreating {
		l.X2, l.Y2 = p.X, p.Y
		if math.Abs(l.X2-l.X1) < minCreateDelta && math.Abs(l.Y2-l.Y1) < minCreateDelta {
			l.X2 = l.X1 + l.DefaultLength
			l.Y2 = l.Y1
		}
		l.applyGeometry()
	}
	l.mode = ModeSelect
	l.activeGrip = nil
}

// Scale multiplies both endpoints component-wise. A drag in progress
// continues from the scaled endpoints.
func (l *LinearGeometry) Scale(scaleX, scaleY float64) {
	if l.mode.dragging() {
		l.manipulationStart = scalePoint(l.manipulationStart, scaleX, scaleY)
		l.startX1, l.startY1 = l.startX1*scaleX, l.startY1*scaleY
		l.startX2, l.startY2 = l.startX2*scaleX, l.startY2*scaleY
	}
	l.X1 *= scaleX
	l.Y1 *= scaleY
	l.X2 *= scaleX
	l.Y2 *= scaleY
	l.applyGeometry()
}

func (l *LinearGeometry) applyGeometry() {
	l.grip1.SetFloat("cx", l.X1).SetFloat("cy", l.Y1)
	l.grip2.SetFloat("cx", l.X2).SetFloat("cy", l.Y2)
	if l.adjust != nil {
		l.adjust()
	}
}

func (l *LinearGeometry) linearState() linearState {
	return linearState{
		baseState: l.baseState(),
		X1:        l.X1,
		Y1:        l.Y1,
		X2:        l.X2,
		Y2:        l.Y2,
	}
}

func (l *LinearGeometry) restoreLinear(s linearState) {
	l.X1, l.Y1 = s.X1, s.Y1
	l.X2, l.Y2 = s.X2, s.Y2
	l.restoreBase(s.baseState)
	l.applyGeometry()
}
