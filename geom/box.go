// Package geom holds the pure geometry used by the scene graph: allocation
// boxes, rectangles, screen quads, clip planes and 4x4 matrix helpers.
//
// Everything in this package is stateless; matrices are [mgl64.Mat4] in the
// column-major layout mathgl uses.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance used by the float comparisons in this package.
const Epsilon = 1e-6

// FloatEqual reports whether a and b differ by less than Epsilon.
func FloatEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Box is an axis-aligned box given by its top-left (X1, Y1) and
// bottom-right (X2, Y2) corners. Actor allocations are Boxes in the
// coordinate space of the parent.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// NewBox returns the box with origin (x, y) and the given size.
func NewBox(x, y, w, h float64) Box {
	return Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Size returns width and height.
func (b Box) Size() (w, h float64) { return b.X2 - b.X1, b.Y2 - b.Y1 }

// Origin returns the top-left corner.
func (b Box) Origin() (x, y float64) { return b.X1, b.Y1 }

// Area returns width*height, or 0 for an empty box.
func (b Box) Area() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Width() * b.Height()
}

// IsEmpty reports whether the box has a non-positive width or height.
func (b Box) IsEmpty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// IsValid reports whether all coordinates are finite and the corners are
// ordered. Degenerate (zero-sized) boxes are valid.
func (b Box) IsValid() bool {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X2 >= b.X1 && b.Y2 >= b.Y1
}

// Sanitize returns a valid box derived from b: NaN and infinite coordinates
// become 0 and inverted corners collapse onto the first corner.
func (b Box) Sanitize() Box {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	r := Box{fix(b.X1), fix(b.Y1), fix(b.X2), fix(b.Y2)}
	if r.X2 < r.X1 {
		r.X2 = r.X1
	}
	if r.Y2 < r.Y1 {
		r.Y2 = r.Y1
	}
	return r
}

// Contains reports whether (x, y) lies inside the box. Edges are inside.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X1 && x <= b.X2 && y >= b.Y1 && y <= b.Y2
}

// Equal compares two boxes at float precision.
func (b Box) Equal(o Box) bool {
	return FloatEqual(b.X1, o.X1) && FloatEqual(b.Y1, o.Y1) &&
		FloatEqual(b.X2, o.X2) && FloatEqual(b.Y2, o.Y2)
}

// SizeEqual compares only the widths and heights of two boxes.
func (b Box) SizeEqual(o Box) bool {
	return FloatEqual(b.Width(), o.Width()) && FloatEqual(b.Height(), o.Height())
}

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	return Box{
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
		X2: math.Max(b.X2, o.X2),
		Y2: math.Max(b.Y2, o.Y2),
	}
}

// Intersect returns the overlap of b and o and whether it is non-empty.
func (b Box) Intersect(o Box) (Box, bool) {
	r := Box{
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
		X2: math.Min(b.X2, o.X2),
		Y2: math.Min(b.Y2, o.Y2),
	}
	if r.IsEmpty() {
		return Box{}, false
	}
	return r, true
}

// Translate returns the box moved by (dx, dy).
func (b Box) Translate(dx, dy float64) Box {
	return Box{b.X1 + dx, b.Y1 + dy, b.X2 + dx, b.Y2 + dy}
}

// WithOrigin returns the box moved so its origin is (x, y).
func (b Box) WithOrigin(x, y float64) Box {
	return NewBox(x, y, b.Width(), b.Height())
}

// WithSize returns the box resized to (w, h), keeping the origin.
func (b Box) WithSize(w, h float64) Box {
	return Box{b.X1, b.Y1, b.X1 + w, b.Y1 + h}
}

// ClampToPixel rounds the box outwards to whole pixels.
func (b Box) ClampToPixel() Box {
	return Box{
		X1: math.Floor(b.X1),
		Y1: math.Floor(b.Y1),
		X2: math.Ceil(b.X2),
		Y2: math.Ceil(b.Y2),
	}
}

// Interpolate linearly blends b towards o by progress in [0, 1].
func (b Box) Interpolate(o Box, progress float64) Box {
	lerp := func(a, c float64) float64 { return a + (c-a)*progress }
	return Box{lerp(b.X1, o.X1), lerp(b.Y1, o.Y1), lerp(b.X2, o.X2), lerp(b.Y2, o.Y2)}
}

// Rect converts the box to an origin+size rectangle.
func (b Box) Rect() Rect {
	return Rect{X: b.X1, Y: b.Y1, Width: b.Width(), Height: b.Height()}
}

// Vertices returns the four corners of the box at z=0 in the order
// top-left, top-right, bottom-right, bottom-left.
func (b Box) Vertices() [4]mgl64.Vec3 {
	return [4]mgl64.Vec3{
		{b.X1, b.Y1, 0},
		{b.X2, b.Y1, 0},
		{b.X2, b.Y2, 0},
		{b.X1, b.Y2, 0},
	}
}

// BoxFromVertices returns the 2D bounding box of the given points, ignoring z.
func BoxFromVertices(verts []mgl64.Vec3) Box {
	if len(verts) == 0 {
		return Box{}
	}
	b := Box{verts[0].X(), verts[0].Y(), verts[0].X(), verts[0].Y()}
	for _, v := range verts[1:] {
		b.X1 = math.Min(b.X1, v.X())
		b.Y1 = math.Min(b.Y1, v.Y())
		b.X2 = math.Max(b.X2, v.X())
		b.Y2 = math.Max(b.Y2, v.Y())
	}
	return b
}
