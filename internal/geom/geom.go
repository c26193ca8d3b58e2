// Package geom provides the 2D point and vector math shared by the
// vision, tracking, and servo packages. Coordinates are capture-local
// pixels with the origin at the top-left corner.
package geom

import "math"

// Point is a position in capture-local pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Vec is a 2D displacement or velocity.
type Vec struct {
	X float64
	Y float64
}

// Add returns the point displaced by v.
func (p Point) Add(v Vec) Point {
	return Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the displacement from q to p.
func (p Point) Sub(q Point) Vec {
	return Vec{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance returns the Euclidean distance between p and q.
func Distance(p, q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Len returns the magnitude of v.
func (v Vec) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Scale returns v multiplied by f.
func (v Vec) Scale(f float64) Vec {
	return Vec{X: v.X * f, Y: v.Y * f}
}

// Unit returns v normalized to length 1. The zero vector is returned
// unchanged rather than dividing by zero.
func (v Vec) Unit() Vec {
	l := v.Len()
	if l == 0 {
		return v
	}
	return Vec{X: v.X / l, Y: v.Y / l}
}

// Trunc converts v to integer device units, dropping the fractional
// part toward zero. Truncation rather than rounding keeps sub-unit
// corrections from oscillating around a stationary target.
func (v Vec) Trunc() (dx, dy int) {
	return int(v.X), int(v.Y)
}
