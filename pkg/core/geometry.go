package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a position in the local canvas space of a view.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Matrix is a 2D affine transform in SVG order:
//
//	x' = A*x + C*y + E
//	y' = B*x + D*y + F
type Matrix struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
	E float64 `json:"e"`
	F float64 `json:"f"`
}

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{A: 1, D: 1}
}

// IsIdentity reports whether m is exactly the identity transform.
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}

// String formats m the way an SVG transform attribute expects it.
func (m Matrix) String() string {
	return fmt.Sprintf("matrix(%s %s %s %s %s %s)",
		FormatFloat(m.A), FormatFloat(m.B), FormatFloat(m.C),
		FormatFloat(m.D), FormatFloat(m.E), FormatFloat(m.F))
}

// FormatFloat renders v with the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatPoints renders a point list as an SVG "points" attribute value.
func FormatPoints(points ...Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = FormatFloat(p.X) + "," + FormatFloat(p.Y)
	}
	return strings.Join(parts, " ")
}

// ParsePoints parses an SVG "points" attribute value ("x1,y1 x2,y2 ...").
func ParsePoints(s string) ([]Point, error) {
	fields := strings.Fields(s)
	points := make([]Point, 0, len(fields))
	for i, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("point %d %q: missing comma", i, f)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("point %d x: %w", i, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("point %d y: %w", i, err)
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points, nil
}
