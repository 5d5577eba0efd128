package geom

import "math"

// Point is a 2D point in window or stage pixel space.
type Point struct {
	X, Y float64
}

// Quad is a screen-space quadrilateral, usually the projection of an actor's
// allocation. Vertices are in the order top-left, top-right, bottom-right,
// bottom-left of the source box, so after a rotation the quad may have any
// orientation, but it is always convex for an affine source transform.
type Quad struct {
	V [4]Point
}

// IsAxisAligned reports whether the quad is an axis-aligned rectangle in
// the canonical vertex order.
func (q Quad) IsAxisAligned() bool {
	v := q.V
	return FloatEqual(v[0].Y, v[1].Y) && FloatEqual(v[1].X, v[2].X) &&
		FloatEqual(v[2].Y, v[3].Y) && FloatEqual(v[3].X, v[0].X)
}

// Bounds returns the axis-aligned bounding rectangle of the quad.
func (q Quad) Bounds() Rect {
	minX, minY := q.V[0].X, q.V[0].Y
	maxX, maxY := minX, minY
	for _, p := range q.V[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Contains reports whether (x, y) lies inside the quad. Axis-aligned quads
// take a bounds test; anything else uses the convex polygon test.
func (q Quad) Contains(x, y float64) bool {
	if q.IsAxisAligned() {
		return q.Bounds().Contains(x, y)
	}
	return ConvexContains(q.V[:], x, y)
}

// ConvexContains reports whether (x, y) lies inside the convex polygon given
// by pts, in either winding order, using the cross-product sign test.
func ConvexContains(pts []Point, x, y float64) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	var positive, negative bool
	for i := 0; i < n; i++ {
		x1, y1 := pts[i].X, pts[i].Y
		j := (i + 1) % n
		x2, y2 := pts[j].X, pts[j].Y

		cross := (x2-x1)*(y-y1) - (y2-y1)*(x-x1)
		if cross > 0 {
			positive = true
		} else if cross < 0 {
			negative = true
		}
		if positive && negative {
			return false
		}
	}
	return true
}
