package tableau

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/tableau/geom"
)

type paintVolumeState uint8

const (
	pvEmpty paintVolumeState = iota
	pvBounded
	pvComplete
)

// PaintVolume bounds everything an actor may draw. It is a cuboid described
// by eight vertices: 0-3 are the front face (top-left, top-right,
// bottom-right, bottom-left) and 4-7 the back face in the same order. A
// volume with zero depth only uses the front face.
//
// The zero value is an empty volume. A complete volume is unbounded and
// covers everything; it results from content whose extent cannot be known.
//
// Freshly built volumes are axis-aligned in the space they were built in.
// Transform and Project move the vertices into another space, after which
// the volume is only a convex hull until AxisAlign is called.
type PaintVolume struct {
	vertices    [8]mgl64.Vec3
	state       paintVolumeState
	axisAligned bool
	is2D        bool
}

// PaintVolumeFromBox returns a flat volume covering b at z=0.
func PaintVolumeFromBox(b geom.Box) PaintVolume {
	var pv PaintVolume
	pv.SetBox(b)
	return pv
}

// CompletePaintVolume returns an unbounded volume.
func CompletePaintVolume() PaintVolume {
	return PaintVolume{state: pvComplete}
}

// SetBox makes pv a flat, axis-aligned volume covering b at z=0.
func (pv *PaintVolume) SetBox(b geom.Box) {
	pv.SetCuboid(mgl64.Vec3{b.X1, b.Y1, 0}, b.Width(), b.Height(), 0)
}

// SetCuboid makes pv the axis-aligned cuboid with the given origin and
// extents. Negative extents are treated as zero.
func (pv *PaintVolume) SetCuboid(origin mgl64.Vec3, width, height, depth float64) {
	width = math.Max(width, 0)
	height = math.Max(height, 0)
	depth = math.Max(depth, 0)
	x1, y1, z1 := origin.X(), origin.Y(), origin.Z()
	x2, y2, z2 := x1+width, y1+height, z1+depth
	pv.vertices = [8]mgl64.Vec3{
		{x1, y1, z1}, {x2, y1, z1}, {x2, y2, z1}, {x1, y2, z1},
		{x1, y1, z2}, {x2, y1, z2}, {x2, y2, z2}, {x1, y2, z2},
	}
	pv.state = pvBounded
	pv.axisAligned = true
	pv.is2D = depth == 0
}

// SetComplete makes pv unbounded.
func (pv *PaintVolume) SetComplete() {
	*pv = PaintVolume{state: pvComplete}
}

// IsEmpty reports whether the volume bounds nothing.
func (pv PaintVolume) IsEmpty() bool { return pv.state == pvEmpty }

// IsComplete reports whether the volume is unbounded.
func (pv PaintVolume) IsComplete() bool { return pv.state == pvComplete }

// IsAxisAligned reports whether the vertices form an axis-aligned cuboid.
func (pv PaintVolume) IsAxisAligned() bool { return pv.state == pvBounded && pv.axisAligned }

// Vertices returns the vertices in use: four for a flat volume, eight
// otherwise, none for empty or complete volumes.
func (pv PaintVolume) Vertices() []mgl64.Vec3 {
	if pv.state != pvBounded {
		return nil
	}
	if pv.is2D {
		return pv.vertices[:4:4]
	}
	return pv.vertices[:]
}

// Origin returns the front top-left vertex of an axis-aligned volume.
func (pv PaintVolume) Origin() mgl64.Vec3 { return pv.vertices[0] }

// Width returns the x extent of an axis-aligned volume.
func (pv PaintVolume) Width() float64 { return pv.vertices[1].X() - pv.vertices[0].X() }

// Height returns the y extent of an axis-aligned volume.
func (pv PaintVolume) Height() float64 { return pv.vertices[3].Y() - pv.vertices[0].Y() }

// Depth returns the z extent of an axis-aligned volume.
func (pv PaintVolume) Depth() float64 { return pv.vertices[4].Z() - pv.vertices[0].Z() }

// AxisAlign replaces the vertices with the axis-aligned cuboid bounding them.
func (pv *PaintVolume) AxisAlign() {
	if pv.state != pvBounded || pv.axisAligned {
		return
	}
	verts := pv.Vertices()
	lo, hi := verts[0], verts[0]
	for _, v := range verts[1:] {
		lo = mgl64.Vec3{math.Min(lo.X(), v.X()), math.Min(lo.Y(), v.Y()), math.Min(lo.Z(), v.Z())}
		hi = mgl64.Vec3{math.Max(hi.X(), v.X()), math.Max(hi.Y(), v.Y()), math.Max(hi.Z(), v.Z())}
	}
	pv.SetCuboid(lo, hi.X()-lo.X(), hi.Y()-lo.Y(), hi.Z()-lo.Z())
}

// Union grows pv to also bound other. Both volumes must be in the same
// space. The result is axis-aligned.
func (pv *PaintVolume) Union(other PaintVolume) {
	switch {
	case other.state == pvEmpty:
		return
	case pv.state == pvComplete:
		return
	case other.state == pvComplete:
		pv.SetComplete()
		return
	case pv.state == pvEmpty:
		*pv = other
		pv.AxisAlign()
		return
	}
	pv.AxisAlign()
	other.AxisAlign()
	lo := pv.vertices[0]
	hi := pv.vertices[6]
	olo, ohi := other.vertices[0], other.vertices[6]
	lo = mgl64.Vec3{math.Min(lo.X(), olo.X()), math.Min(lo.Y(), olo.Y()), math.Min(lo.Z(), olo.Z())}
	hi = mgl64.Vec3{math.Max(hi.X(), ohi.X()), math.Max(hi.Y(), ohi.Y()), math.Max(hi.Z(), ohi.Z())}
	pv.SetCuboid(lo, hi.X()-lo.X(), hi.Y()-lo.Y(), hi.Z()-lo.Z())
}

// UnionBox grows pv to also bound the flat box b.
func (pv *PaintVolume) UnionBox(b geom.Box) {
	pv.Union(PaintVolumeFromBox(b))
}

// ClipToBox intersects an axis-aligned volume with b in x and y. The
// volume becomes empty when they do not overlap.
func (pv *PaintVolume) ClipToBox(b geom.Box) {
	switch pv.state {
	case pvEmpty:
		return
	case pvComplete:
		pv.SetBox(b)
		return
	}
	pv.AxisAlign()
	cur := geom.Box{X1: pv.vertices[0].X(), Y1: pv.vertices[0].Y(), X2: pv.vertices[6].X(), Y2: pv.vertices[6].Y()}
	in, ok := cur.Intersect(b)
	if !ok {
		*pv = PaintVolume{}
		return
	}
	pv.SetCuboid(mgl64.Vec3{in.X1, in.Y1, pv.vertices[0].Z()}, in.Width(), in.Height(), pv.Depth())
}

// Transform moves every vertex through m. The volume is no longer
// axis-aligned afterwards.
func (pv *PaintVolume) Transform(m mgl64.Mat4) {
	if pv.state != pvBounded {
		return
	}
	n := 8
	if pv.is2D {
		n = 4
	}
	for i := 0; i < n; i++ {
		pv.vertices[i] = geom.TransformPoint3(m, pv.vertices[i])
	}
	if pv.is2D {
		if geom.Is2D(m) {
			copy(pv.vertices[4:], pv.vertices[:4])
		} else {
			// the flat face may have tilted; keep all eight so AxisAlign sees
			// the real z extent
			pv.is2D = false
			copy(pv.vertices[4:], pv.vertices[:4])
		}
	}
	pv.axisAligned = false
}

// Project maps every vertex through the model-view-projection matrix into
// window coordinates of vp. The result lives in window space with y down.
func (pv PaintVolume) Project(mvp mgl64.Mat4, vp geom.Viewport) PaintVolume {
	if pv.state != pvBounded {
		return pv
	}
	out := pv
	n := 8
	if pv.is2D {
		n = 4
	}
	for i := 0; i < n; i++ {
		out.vertices[i] = geom.ProjectPoint(mvp, vp, pv.vertices[i])
	}
	if pv.is2D {
		copy(out.vertices[4:], out.vertices[:4])
	}
	out.axisAligned = false
	return out
}

// Bounds2D returns the x/y bounding box of the vertices.
func (pv PaintVolume) Bounds2D() geom.Box {
	return geom.BoxFromVertices(pv.Vertices())
}

// Cull classifies a window-space volume against planes. Complete volumes
// are always partial; empty ones are always out.
func (pv PaintVolume) Cull(planes []geom.Plane) geom.CullResult {
	switch pv.state {
	case pvEmpty:
		return geom.CullOut
	case pvComplete:
		return geom.CullPartial
	}
	return geom.CullVertices(planes, pv.Vertices())
}
