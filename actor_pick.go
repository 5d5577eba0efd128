package tableau

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/tableau/geom"
)

// --- Hit shapes ---

// HitShape narrows an actor's pickable area. Contains receives local
// coordinates.
type HitShape interface {
	Contains(x, y float64) bool
}

// HitRect is an axis-aligned rectangular hit area in local coordinates.
type HitRect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r HitRect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// HitCircle is a circular hit area in local coordinates.
type HitCircle struct {
	CenterX, CenterY, Radius float64
}

// Contains reports whether (x, y) lies inside or on the circle.
func (c HitCircle) Contains(x, y float64) bool {
	dx := x - c.CenterX
	dy := y - c.CenterY
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// HitPolygon is a convex polygon hit area in local coordinates, in either
// winding order.
type HitPolygon struct {
	Points []geom.Point
}

// Contains reports whether (x, y) lies inside the polygon.
func (p HitPolygon) Contains(x, y float64) bool {
	return geom.ConvexContains(p.Points, x, y)
}

// --- Pick records ---

// pickClip is one entry of the clip chain. parent links to the enclosing
// clip, or -1.
type pickClip struct {
	quad   geom.Quad
	parent int
}

type pickRecord struct {
	quad  geom.Quad
	actor ActorHandle
	clip  int
	shape HitShape
	mvp   mgl64.Mat4
}

// hit reports whether (x, y) is inside the record's quad, every clip of
// its chain and its hit shape.
func (r *pickRecord) hit(clips []pickClip, vp geom.Viewport, x, y float64) bool {
	if !r.quad.Contains(x, y) {
		return false
	}
	for i := r.clip; i >= 0; i = clips[i].parent {
		if !clips[i].quad.Contains(x, y) {
			return false
		}
	}
	if r.shape != nil {
		p, ok := geom.UnprojectToPlane(r.mvp, vp, x, y)
		if !ok || !r.shape.Contains(p.X(), p.Y()) {
			return false
		}
	}
	return true
}

// PickContext collects pick records during a pick traversal. Quads are in
// stage window pixels.
type PickContext struct {
	mode     PickMode
	projView mgl64.Mat4
	vp       geom.Viewport
	stack    []mgl64.Mat4
	records  []pickRecord
	clips    []pickClip
	clipTop  int
}

func newPickContext(s *Stage, mode PickMode) *PickContext {
	return &PickContext{
		mode:     mode,
		projView: s.projectionView(),
		vp:       s.viewport(),
		stack:    []mgl64.Mat4{mgl64.Ident4()},
		clipTop:  -1,
	}
}

// Mode returns the pick mode of the traversal.
func (pc *PickContext) Mode() PickMode { return pc.mode }

// Modelview returns the transform from the current local coordinates to
// stage coordinates.
func (pc *PickContext) Modelview() mgl64.Mat4 { return pc.stack[len(pc.stack)-1] }

// PushTransform applies m on top of the current modelview.
func (pc *PickContext) PushTransform(m mgl64.Mat4) {
	pc.stack = append(pc.stack, pc.Modelview().Mul4(m))
}

// PopTransform undoes the last PushTransform.
func (pc *PickContext) PopTransform() {
	if len(pc.stack) > 1 {
		pc.stack = pc.stack[:len(pc.stack)-1]
	}
}

func (pc *PickContext) mvp() mgl64.Mat4 { return pc.projView.Mul4(pc.Modelview()) }

// LogPick records box, in local coordinates, as a pickable area of a.
func (pc *PickContext) LogPick(a *Actor, box geom.Box) {
	mvp := pc.mvp()
	pc.records = append(pc.records, pickRecord{
		quad:  geom.ProjectBox(mvp, pc.vp, box),
		actor: a.Handle(),
		clip:  pc.clipTop,
		shape: a.HitShape,
		mvp:   mvp,
	})
}

// PushClip restricts later records to box until PopClip.
func (pc *PickContext) PushClip(box geom.Box) {
	pc.clips = append(pc.clips, pickClip{quad: geom.ProjectBox(pc.mvp(), pc.vp, box), parent: pc.clipTop})
	pc.clipTop = len(pc.clips) - 1
}

// PopClip undoes the last PushClip.
func (pc *PickContext) PopClip() {
	if pc.clipTop < 0 {
		return
	}
	pc.clipTop = pc.clips[pc.clipTop].parent
}

// NumRecords returns the number of records logged so far.
func (pc *PickContext) NumRecords() int { return len(pc.records) }

// --- Actor picking ---

// Pick runs the pick traversal over the actor and its subtree. It has the
// same shape as Paint: transform, clip, then the behavior's Pick.
// Unallocated actors are skipped.
func (a *Actor) Pick(pc *PickContext) {
	if !a.IsMapped() {
		return
	}
	if a.flags&flagInPick != 0 {
		Logger().Debug("reentrant pick dropped", "actor", a.describe())
		return
	}
	if a.flags&flagHasAllocation == 0 {
		Logger().Debug("unallocated actor skipped in pick", "actor", a.describe())
		return
	}

	pc.PushTransform(a.Modelview())
	defer pc.PopTransform()
	a.flags |= flagInPick
	defer func() { a.flags &^= flagInPick }()

	clipped := false
	if b, ok := a.localClip(); ok {
		pc.PushClip(b)
		clipped = true
	}
	a.behavior.Pick(a, pc)
	if clipped {
		pc.PopClip()
	}
}

// ShouldPick reports whether the actor itself is pickable in pc's mode.
func (a *Actor) ShouldPick(pc *PickContext) bool {
	switch pc.mode {
	case PickAll:
		return a.IsMapped()
	case PickReactive:
		return a.IsMapped() && a.IsReactive()
	}
	return false
}

// PickSelf logs the allocation when the actor is pickable.
func (a *Actor) PickSelf(pc *PickContext) {
	if !a.ShouldPick(pc) {
		return
	}
	w, h := a.allocation.Size()
	pc.LogPick(a, geom.Box{X2: w, Y2: h})
}

// PickChildren picks every child in sibling order.
func (a *Actor) PickChildren(pc *PickContext) {
	if a.firstChild == nil {
		return
	}
	if a.childTransform != nil {
		pc.PushTransform(*a.childTransform)
		defer pc.PopTransform()
	}
	for c := a.firstChild; c != nil; {
		next := c.nextSibling
		c.Pick(pc)
		c = next
	}
}

// pickIDColor encodes a record index as an opaque color. Index 0 is the
// background.
func pickIDColor(id int) Color {
	return Color{R: uint8(id), G: uint8(id >> 8), B: uint8(id >> 16), A: 255}
}

func pickIDFromColor(r, g, b uint8) int {
	return int(r) | int(g)<<8 | int(b)<<16
}

// translateQuad moves every vertex of q by (dx, dy).
func translateQuad(q geom.Quad, dx, dy float64) geom.Quad {
	for i := range q.V {
		q.V[i].X += dx
		q.V[i].Y += dy
	}
	return q
}

// maxColorPickRecords is the number of ids a 24-bit color can carry.
const maxColorPickRecords = 1<<24 - 1
