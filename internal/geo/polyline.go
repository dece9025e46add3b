package geo

import (
	"github.com/OCAP2/markerview/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// LineString builds a planar geom.LineString through points. It fails
// unless points holds at least two distinct positions.
func LineString(points []core.Point) (geom.LineString, error) {
	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY))
}

// Bounds returns the axis-aligned bounding box of points. A single point
// or coincident points give a zero-size box. ok is false when points is
// empty or holds a non-finite coordinate.
func Bounds(points []core.Point) (minPt, maxPt core.Point, ok bool) {
	xys := make([]geom.XY, len(points))
	for i, p := range points {
		xys[i] = geom.XY{X: p.X, Y: p.Y}
	}
	env, err := geom.NewEnvelope(xys)
	if err != nil {
		return core.Point{}, core.Point{}, false
	}
	lo, hi, ok := env.MinMaxXYs()
	if !ok {
		return core.Point{}, core.Point{}, false
	}
	return core.Point{X: lo.X, Y: lo.Y}, core.Point{X: hi.X, Y: hi.Y}, true
}

// TransformedBounds maps the corners of the box (minPt, maxPt) through m
// and returns the bounding box of the result.
func TransformedBounds(m core.Matrix, minPt, maxPt core.Point) (core.Point, core.Point) {
	corners := []core.Point{
		Apply(m, minPt),
		Apply(m, core.Point{X: maxPt.X, Y: minPt.Y}),
		Apply(m, maxPt),
		Apply(m, core.Point{X: minPt.X, Y: maxPt.Y}),
	}
	lo, hi, _ := Bounds(corners)
	return lo, hi
}

// PathLength returns the planar length of the polyline through points.
func PathLength(points []core.Point) float64 {
	ls, err := LineString(points)
	if err != nil {
		return 0
	}
	return ls.Length()
}
