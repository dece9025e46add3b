package geo

import (
	"errors"
	"math"

	"github.com/OCAP2/markerview/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularMatrix is returned when a transform has no inverse.
var ErrSingularMatrix = errors.New("singular transform matrix")

// singularEpsilon is the determinant magnitude below which a matrix is
// treated as non-invertible.
const singularEpsilon = 1e-12

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) core.Matrix {
	return core.Matrix{A: 1, D: 1, E: tx, F: ty}
}

// Scale returns a scale by (sx, sy) about the origin.
func Scale(sx, sy float64) core.Matrix {
	return core.Matrix{A: sx, D: sy}
}

// Rotate returns a clockwise rotation (in screen coordinates, y down) by
// deg degrees about the origin.
func Rotate(deg float64) core.Matrix {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return core.Matrix{A: cos, B: sin, C: -sin, D: cos}
}

// RotateAbout returns the rotation by deg degrees about (cx, cy), the same
// transform as SVG's rotate(deg, cx, cy).
func RotateAbout(deg, cx, cy float64) core.Matrix {
	if deg == 0 {
		return core.Identity()
	}
	return Multiply(Translate(cx, cy), Multiply(Rotate(deg), Translate(-cx, -cy)))
}

// Multiply returns m*n: the transform that applies n first, then m.
func Multiply(m, n core.Matrix) core.Matrix {
	return core.Matrix{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

// Apply maps p through m.
func Apply(m core.Matrix, p core.Point) core.Point {
	return core.Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Invert returns the inverse of m, or ErrSingularMatrix when m collapses
// the plane.
func Invert(m core.Matrix) (core.Matrix, error) {
	a := mat.NewDense(3, 3, []float64{
		m.A, m.C, m.E,
		m.B, m.D, m.F,
		0, 0, 1,
	})
	if math.Abs(mat.Det(a)) < singularEpsilon {
		return core.Matrix{}, ErrSingularMatrix
	}

	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return core.Matrix{}, errors.Join(ErrSingularMatrix, err)
	}

	return core.Matrix{
		A: inv.At(0, 0),
		B: inv.At(1, 0),
		C: inv.At(0, 1),
		D: inv.At(1, 1),
		E: inv.At(0, 2),
		F: inv.At(1, 2),
	}, nil
}

// InvertOrIdentity returns the inverse of m, falling back to the identity
// for singular matrices.
func InvertOrIdentity(m core.Matrix) core.Matrix {
	inv, err := Invert(m)
	if err != nil {
		return core.Identity()
	}
	return inv
}

// MinRotationDelta is the horizontal distance from the pivot below which a
// pointer position does not define a rotation angle.
const MinRotationDelta = 0.1

// RotationAngle returns the rotation in degrees that points the top edge of
// a box centred at center towards p. The angle is measured from the
// vertical so that a pointer straight above the centre yields zero and the
// result does not flip when dx changes sign. ok is false when |dx| is too
// small for a stable angle.
func RotationAngle(center, p core.Point) (deg float64, ok bool) {
	dx := p.X - center.X
	dy := p.Y - center.Y
	if math.Abs(dx) <= MinRotationDelta {
		return 0, false
	}
	return math.Atan(dy/dx)*180/math.Pi + 90*sign(dx), true
}

// LineAngle returns the angle in degrees used to orient end caps of the
// segment from p1 to p2. ok is false for (near) vertical segments.
func LineAngle(p1, p2 core.Point) (deg float64, ok bool) {
	if math.Abs(p1.X-p2.X) <= MinRotationDelta {
		return 0, false
	}
	return math.Atan((p2.Y-p1.Y)/(p2.X-p1.X))*180/math.Pi + 90*sign(p1.X-p2.X), true
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// ApproxEqual reports whether two matrices match within eps per component.
func ApproxEqual(m, n core.Matrix, eps float64) bool {
	return math.Abs(m.A-n.A) <= eps && math.Abs(m.B-n.B) <= eps &&
		math.Abs(m.C-n.C) <= eps && math.Abs(m.D-n.D) <= eps &&
		math.Abs(m.E-n.E) <= eps && math.Abs(m.F-n.F) <= eps
}
