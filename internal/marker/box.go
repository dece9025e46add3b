package marker

import (
	"math"

	"github.com/OCAP2/markerview/internal/geo"
	"github.com/OCAP2/markerview/internal/scene"
	"github.com/OCAP2/markerview/pkg/core"
)

const (
	gripSize       = 10.0
	rotatorOffset  = 30.0
	minCreateDelta = 10.0
)

type gripPos int

const (
	gripNone gripPos = iota
	gripTopLeft
	gripTopCenter
	gripTopRight
	gripCenterLeft
	gripCenterRight
	gripBottomLeft
	gripBottomCenter
	gripBottomRight
)

var allGrips = []gripPos{
	gripTopLeft, gripTopCenter, gripTopRight,
	gripCenterLeft, gripCenterRight,
	gripBottomLeft, gripBottomCenter, gripBottomRight,
}

// edges reports which box edges a grip drags.
func (g gripPos) edges() (left, top, right, bottom bool) {
	switch g {
	case gripTopLeft:
		return true, true, false, false
	case gripTopCenter:
		return false, true, false, false
	case gripTopRight:
		return false, true, true, false
	case gripCenterLeft:
		return true, false, false, false
	case gripCenterRight:
		return false, false, true, false
	case gripBottomLeft:
		return true, false, false, true
	case gripBottomCenter:
		return false, false, false, true
	case gripBottomRight:
		return false, false, true, true
	}
	return false, false, false, false
}

// BoxGeometry is the capability shared by rectangular markers: a box at
// (Left, Top) of Width x Height rotated by RotationAngle degrees clockwise
// about its centre.
//
// The marker's container carries the rotation about the centre (the
// container transform); the inner visual carries the translation to the
// top-left corner (the visual transform).
type BoxGeometry struct {
	Base

	Left          float64
	Top           float64
	Width         float64
	Height        float64
	RotationAngle float64

	// DefaultSize is applied when a marker is created with a click.
	DefaultSize core.Point

	visual      *scene.Node
	controls    *scene.Node
	controlRect *scene.Node
	grips       map[gripPos]*scene.Node
	rotator     *scene.Node

	// adjust redraws the variant's visual at the current size.
	adjust func()

	manipulationStart core.Point
	startLeft         float64
	startTop          float64
	startWidth        float64
	startHeight       float64
	startInverse      core.Matrix
	activeGrip        gripPos
}

type boxState struct {
	baseState
	Left                     float64     `json:"left"`
	Top                      float64     `json:"top"`
	Width                    float64     `json:"width"`
	Height                   float64     `json:"height"`
	RotationAngle            float64     `json:"rotationAngle"`
	VisualTransformMatrix    core.Matrix `json:"visualTransformMatrix"`
	ContainerTransformMatrix core.Matrix `json:"containerTransformMatrix"`
}

var boxKeys = []string{
	"left", "top", "width", "height", "rotationAngle",
	"visualTransformMatrix", "containerTransformMatrix",
}

func (b *BoxGeometry) initBox(s *scene.Scene, typeName string, adjust func()) {
	b.initBase(s, typeName)
	b.DefaultSize = core.Point{X: 50, Y: 20}
	b.adjust = adjust

	b.visual = s.NewNode(scene.KindGroup)
	b.container.Append(b.visual)

	b.controls = s.NewNode(scene.KindGroup, "class", "control-box")
	b.controlRect = s.NewNode(scene.KindRect,
		"fill", "transparent", "stroke", "#333333", "stroke-width", "1",
		"stroke-dasharray", "3, 2", "pointer-events", "none")
	b.controls.Append(b.controlRect)

	b.grips = make(map[gripPos]*scene.Node, len(allGrips))
	for _, pos := range allGrips {
		g := s.NewNode(scene.KindRect, "class", "grip",
			"width", core.FormatFloat(gripSize), "height", core.FormatFloat(gripSize),
			"fill", "#cccccc", "stroke", "#333333")
		b.grips[pos] = g
		b.controls.Append(g)
	}
	b.rotator = s.NewNode(scene.KindEllipse, "class", "rotator",
		"rx", core.FormatFloat(gripSize/2), "ry", core.FormatFloat(gripSize/2),
		"fill", "#cccccc", "stroke", "#333333")
	b.controls.Append(b.rotator)

	b.container.Append(b.controls)
	b.addHandle(b.controls)
}

// Visual returns the inner group the variant draws into.
func (b *BoxGeometry) Visual() *scene.Node { return b.visual }

// Center returns the centre of the box, the rotation pivot.
func (b *BoxGeometry) Center() core.Point {
	return core.Point{X: b.Left + b.Width/2, Y: b.Top + b.Height/2}
}

// OwnsTarget reports whether target is the visual or one of the box handles.
func (b *BoxGeometry) OwnsTarget(target *scene.Node) bool {
	if b.Base.OwnsTarget(target) {
		return true
	}
	return target != nil && (b.visual.Contains(target) || b.controls.Contains(target))
}

// ContainerTransform returns the rotation-about-centre transform.
func (b *BoxGeometry) ContainerTransform() core.Matrix { return b.container.Transform() }

// VisualTransform returns the translation of the visual to the top-left
// corner.
func (b *BoxGeometry) VisualTransform() core.Matrix { return b.visual.Transform() }

// RotatePoint maps p from the box's unrotated space into rotated screen
// space.
func (b *BoxGeometry) RotatePoint(p core.Point) core.Point {
	if b.RotationAngle == 0 {
		return p
	}
	return geo.Apply(b.container.Transform(), p)
}

// UnrotatePoint maps a rotated screen-space point back into the box's
// unrotated space.
func (b *BoxGeometry) UnrotatePoint(p core.Point) core.Point {
	if b.RotationAngle == 0 {
		return p
	}
	return geo.Apply(geo.InvertOrIdentity(b.container.Transform()), p)
}

// PointerDown starts a draw, move, resize or rotate depending on the
// marker's mode and the node under the pointer.
func (b *BoxGeometry) PointerDown(p core.Point, target *scene.Node) {
	b.manipulationStart = p
	b.startLeft, b.startTop = b.Left, b.Top
	b.startWidth, b.startHeight = b.Width, b.Height
	b.startInverse = geo.InvertOrIdentity(b.container.Transform())
	b.activeGrip = gripNone

	b.Select()

	switch {
	case b.mode == ModeNew:
		b.Left, b.Top = p.X, p.Y
		b.Width, b.Height = 0, 0
		b.mode = ModeCreating
		b.applyGeometry()
	case target != nil && target == b.rotator:
		b.mode = ModeRotate
	case b.gripAt(target) != gripNone:
		b.activeGrip = b.gripAt(target)
		b.mode = ModeResize
	default:
		b.mode = ModeMove
	}
}

func (b *BoxGeometry) gripAt(target *scene.Node) gripPos {
	if target == nil {
		return gripNone
	}
	for pos, g := range b.grips {
		if g == target {
			return pos
		}
	}
	return gripNone
}

// Manipulate applies the active draw, move, resize or rotate for pointer
// position p.
func (b *BoxGeometry) Manipulate(p core.Point) {
	switch b.mode {
	case ModeCreating:
		b.setCorners(b.manipulationStart, p)
	case ModeMove:
		b.Left = b.startLeft + p.X - b.manipulationStart.X
		b.Top = b.startTop + p.Y - b.manipulationStart.Y
	case ModeResize:
		b.resize(geo.Apply(b.startInverse, p))
	case ModeRotate:
		if angle, ok := geo.RotationAngle(b.Center(), p); ok {
			b.RotationAngle = angle
		}
	default:
		return
	}
	b.applyGeometry()
}

// resize moves the edges dragged by the active grip to lp (unrotated
// space); the opposite edges stay fixed.
func (b *BoxGeometry) resize(lp core.Point) {
	from := core.Point{X: b.startLeft, Y: b.startTop}
	to := core.Point{X: b.startLeft + b.startWidth, Y: b.startTop + b.startHeight}
	left, top, right, bottom := b.activeGrip.edges()
	if left {
		from.X = lp.X
	}
	if top {
		from.Y = lp.Y
	}
	if right {
		to.X = lp.X
	}
	if bottom {
		to.Y = lp.Y
	}
	b.setCorners(from, to)
}

func (b *BoxGeometry) setCorners(p1, p2 core.Point) {
	b.Left = math.Min(p1.X, p2.X)
	b.Top = math.Min(p1.Y, p2.Y)
	b.Width = math.Abs(p2.X - p1.X)
	b.Height = math.Abs(p2.Y - p1.Y)
}

// PointerUp finishes the active manipulation. A draw that barely moved
// gets the default size.
func (b *BoxGeometry) PointerUp(p core.Point) {
	if b.mode == ModeCreating {
		b.setCorners(b.manipulationStart, p)
		if b.Width < minCreateDelta && b.Height < minCreateDelta {
			b.Width, b.Height = b.DefaultSize.X, b.DefaultSize.Y
		}
		b.applyGeometry()
	}
	if b.mode != ModeEdit {
		b.mode = ModeSelect
	}
	b.activeGrip = gripNone
}

// Scale resizes the box for a proportional image resize: the top-left
// corner is taken to screen space, scaled, and mapped back through the
// current rotation before the size is scaled directly. A drag in progress
// is rebased so it continues from the scaled box.
func (b *BoxGeometry) Scale(scaleX, scaleY float64) {
	if b.mode.dragging() {
		b.rebase(scaleX, scaleY)
	}
	rPoint := b.RotatePoint(core.Point{X: b.Left, Y: b.Top})
	point := b.UnrotatePoint(core.Point{X: rPoint.X * scaleX, Y: rPoint.Y * scaleY})

	b.Left = point.X
	b.Top = point.Y
	b.Width *= scaleX
	b.Height *= scaleY

	b.applyGeometry()
}

// rebase scales the pointer-down snapshot the same way Scale scales the
// live box.
func (b *BoxGeometry) rebase(scaleX, scaleY float64) {
	b.manipulationStart = scalePoint(b.manipulationStart, scaleX, scaleY)

	rot := geo.RotateAbout(b.RotationAngle, b.startLeft+b.startWidth/2, b.startTop+b.startHeight/2)
	corner := geo.Apply(rot, core.Point{X: b.startLeft, Y: b.startTop})
	corner = geo.Apply(geo.InvertOrIdentity(rot), scalePoint(corner, scaleX, scaleY))
	b.startLeft, b.startTop = corner.X, corner.Y
	b.startWidth *= scaleX
	b.startHeight *= scaleY
	b.startInverse = geo.InvertOrIdentity(
		geo.RotateAbout(b.RotationAngle, b.startLeft+b.startWidth/2, b.startTop+b.startHeight/2))
}

// applyGeometry rebuilds both transforms from the box fields and redraws.
func (b *BoxGeometry) applyGeometry() {
	translate := geo.Translate(b.Left, b.Top)
	b.visual.SetTransform(translate)
	b.controls.SetTransform(translate)
	c := b.Center()
	b.container.SetTransform(geo.RotateAbout(b.RotationAngle, c.X, c.Y))
	b.redraw()
}

// redraw lays out the handles and lets the variant redraw its visual.
func (b *BoxGeometry) redraw() {
	b.controlRect.SetFloat("width", b.Width).SetFloat("height", b.Height)
	half := gripSize / 2
	for pos, g := range b.grips {
		left, top, right, bottom := pos.edges()
		x, y := b.Width/2, b.Height/2
		switch {
		case left:
			x = 0
		case right:
			x = b.Width
		}
		switch {
		case top:
			y = 0
		case bottom:
			y = b.Height
		}
		g.SetFloat("x", x-half).SetFloat("y", y-half)
	}
	b.rotator.SetFloat("cx", b.Width/2).SetFloat("cy", -rotatorOffset)

	if b.adjust != nil {
		b.adjust()
	}
}

func (b *BoxGeometry) boxState() boxState {
	return boxState{
		baseState:                b.baseState(),
		Left:                     b.Left,
		Top:                      b.Top,
		Width:                    b.Width,
		Height:                   b.Height,
		RotationAngle:            b.RotationAngle,
		VisualTransformMatrix:    b.visual.Transform(),
		ContainerTransformMatrix: b.container.Transform(),
	}
}

// restoreBox applies a decoded box record. The stored transforms are
// replayed as they are rather than recomputed from the fields.
func (b *BoxGeometry) restoreBox(s boxState) {
	b.Left, b.Top = s.Left, s.Top
	b.Width, b.Height = s.Width, s.Height
	b.RotationAngle = s.RotationAngle
	b.restoreBase(s.baseState)

	b.redraw()
	b.visual.SetTransform(s.VisualTransformMatrix)
	b.controls.SetTransform(s.VisualTransformMatrix)
	b.container.SetTransform(s.ContainerTransformMatrix)
}
