package tableau

import (
	"image"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/tableau/geom"
)

// PaintContext collects the draw ops of one paint pass over one view.
// Behaviors and content draw through it in the current actor's local
// coordinates.
type PaintContext struct {
	stage    *Stage
	view     *StageView
	projView mgl64.Mat4
	stageVP  geom.Viewport // window pixels of the stage
	fbVP     geom.Viewport // framebuffer pixels of the view

	stack   []mgl64.Mat4
	opacity uint8
	groups  int
	clips   int
	ops     []DrawOp

	culling bool
	cull    [4]geom.Plane // stage window space
	stats   *FrameStats

	// offscreen paints visible actors of an unshown stage and leaves
	// their damage tracking alone
	offscreen bool
}

func newPaintContext(s *Stage, v *StageView, stats *FrameStats) *PaintContext {
	pc := &PaintContext{
		stage:    s,
		view:     v,
		projView: s.projectionView(),
		stageVP:  s.viewport(),
		stack:    []mgl64.Mat4{mgl64.Ident4()},
		opacity:  255,
		stats:    stats,
	}
	if pc.stats == nil {
		pc.stats = &FrameStats{}
	}
	pc.fbVP = pc.stageVP
	if v != nil {
		pc.fbVP = v.viewportFor(pc.stageVP)
	}
	return pc
}

// Stage returns the stage being painted.
func (pc *PaintContext) Stage() *Stage { return pc.stage }

// View returns the view being painted, or nil for offscreen passes.
func (pc *PaintContext) View() *StageView { return pc.view }

// Modelview returns the transform from the current local coordinates to
// stage coordinates.
func (pc *PaintContext) Modelview() mgl64.Mat4 { return pc.stack[len(pc.stack)-1] }

// PaintOpacity returns the opacity applied to primitives drawn now.
func (pc *PaintContext) PaintOpacity() uint8 { return pc.opacity }

// Ops returns the draw ops emitted so far.
func (pc *PaintContext) Ops() []DrawOp { return pc.ops }

func (pc *PaintContext) mvp() mgl64.Mat4 { return pc.projView.Mul4(pc.Modelview()) }

// Project maps a local point to framebuffer pixels.
func (pc *PaintContext) Project(p mgl64.Vec3) geom.Point {
	w := geom.ProjectPoint(pc.mvp(), pc.fbVP, p)
	return geom.Point{X: w.X(), Y: w.Y()}
}

// ProjectBox maps a local box to a framebuffer quad.
func (pc *PaintContext) ProjectBox(b geom.Box) geom.Quad {
	return geom.ProjectBox(pc.mvp(), pc.fbVP, b)
}

// Clear fills the clipped framebuffer area with c.
func (pc *PaintContext) Clear(c Color) {
	pc.ops = append(pc.ops, DrawOp{Kind: OpClear, Color: c})
}

// DrawColor fills b with c at the current paint opacity.
func (pc *PaintContext) DrawColor(b geom.Box, c Color) {
	c = c.WithOpacity(pc.opacity)
	if c.A == 0 || b.IsEmpty() {
		return
	}
	pc.ops = append(pc.ops, DrawOp{Kind: OpColorQuad, Quad: pc.ProjectBox(b), Color: c})
}

// DrawTexture maps src of img onto b at the current paint opacity.
func (pc *PaintContext) DrawTexture(b geom.Box, img image.Image, src image.Rectangle, filter ScalingFilter) {
	if img == nil || pc.opacity == 0 || b.IsEmpty() || src.Empty() {
		return
	}
	pc.ops = append(pc.ops, DrawOp{
		Kind:    OpTextureQuad,
		Quad:    pc.ProjectBox(b),
		Texture: img,
		Source:  src,
		Filter:  filter,
		Opacity: pc.opacity,
	})
}

// PushClip restricts drawing to b until PopClip.
func (pc *PaintContext) PushClip(b geom.Box) {
	pc.clips++
	pc.ops = append(pc.ops, DrawOp{Kind: OpPushClip, Quad: pc.ProjectBox(b)})
}

// PopClip undoes the last PushClip.
func (pc *PaintContext) PopClip() {
	if pc.clips == 0 {
		return
	}
	pc.clips--
	pc.ops = append(pc.ops, DrawOp{Kind: OpPopClip})
}

// PushTransform applies m on top of the current modelview.
func (pc *PaintContext) PushTransform(m mgl64.Mat4) {
	pc.stack = append(pc.stack, pc.Modelview().Mul4(m))
}

// PopTransform undoes the last PushTransform.
func (pc *PaintContext) PopTransform() {
	if len(pc.stack) > 1 {
		pc.stack = pc.stack[:len(pc.stack)-1]
	}
}

// PushGroup starts an offscreen group.
func (pc *PaintContext) PushGroup() {
	pc.groups++
	pc.ops = append(pc.ops, DrawOp{Kind: OpPushGroup})
}

// PopGroup composites the current group with opacity.
func (pc *PaintContext) PopGroup(opacity uint8) {
	if pc.groups == 0 {
		return
	}
	pc.groups--
	pc.ops = append(pc.ops, DrawOp{Kind: OpPopGroup, Opacity: opacity})
}

// --- Actor painting ---

// Paint draws the actor and its subtree into pc. The actor must be mapped
// (or visible, for an offscreen capture) and allocated; painting an
// unallocated actor is a contract violation. Reentrant paints of the same
// actor are dropped.
func (a *Actor) Paint(pc *PaintContext) {
	if !a.IsMapped() && !(pc.offscreen && (a.IsVisible() || a.IsToplevel())) {
		return
	}
	if a.flags&flagInPaint != 0 {
		Logger().Debug("reentrant paint dropped", "actor", a.describe())
		return
	}
	if a.flags&flagHasAllocation == 0 {
		contractViolation("Paint", a, "actor has no allocation")
		return
	}
	opacity := a.opacity
	if !a.IsToplevel() {
		opacity = mulOpacity(pc.opacity, a.opacity)
		if opacity == 0 {
			return
		}
	}

	pc.PushTransform(a.Modelview())
	defer pc.PopTransform()

	if pv, ok := a.PaintVolume(); ok {
		projected := pv.Project(pc.projView.Mul4(pc.Modelview()), pc.stageVP)
		if !pc.offscreen {
			a.lastPaintBox = projected.Bounds2D()
			a.lastPaintBoxValid = true
		}
		if pc.culling && !a.IsToplevel() && projected.Cull(pc.cull[:]) == geom.CullOut {
			pc.stats.CulledActors++
			return
		}
	} else if !pc.offscreen {
		a.lastPaintBoxValid = false
	}

	a.flags |= flagInPaint
	defer func() { a.flags &^= flagInPaint }()

	clipped := false
	if b, ok := a.localClip(); ok {
		pc.PushClip(b)
		clipped = true
	}
	saved := pc.opacity
	redirect := a.shouldRedirect(opacity)
	if redirect {
		pc.PushGroup()
		pc.opacity = 255
	} else {
		pc.opacity = opacity
	}

	a.behavior.Paint(a, pc)

	if redirect {
		pc.PopGroup(opacity)
	}
	pc.opacity = saved
	if clipped {
		pc.PopClip()
	}
	pc.stats.PaintedActors++
}

// PaintBackground fills the allocation with the background color.
func (a *Actor) PaintBackground(pc *PaintContext) {
	if !a.bgColorSet || a.bgColor.A == 0 {
		return
	}
	w, h := a.allocation.Size()
	pc.DrawColor(geom.Box{X2: w, Y2: h}, a.bgColor)
}

// PaintContent lets the content delegate append its nodes and draws them.
func (a *Actor) PaintContent(pc *PaintContext) {
	if a.content == nil {
		return
	}
	root := NewRootNode()
	a.content.PaintContent(a, root, pc)
	root.Paint(pc)
}

// PaintChildren paints every child in sibling order.
func (a *Actor) PaintChildren(pc *PaintContext) {
	if a.firstChild == nil {
		return
	}
	if a.childTransform != nil {
		pc.PushTransform(*a.childTransform)
		defer pc.PopTransform()
	}
	for c := a.firstChild; c != nil; {
		next := c.nextSibling
		c.Paint(pc)
		c = next
	}
}

func (a *Actor) shouldRedirect(opacity uint8) bool {
	switch a.offscreenRedirect {
	case RedirectAlways:
		return true
	case RedirectNever:
		return false
	}
	return opacity < 255 && a.HasOverlaps()
}

// HasOverlaps reports whether the actor's own primitives or children can
// overlap each other.
func (a *Actor) HasOverlaps() bool {
	if r, ok := a.behavior.(OverlapReporter); ok {
		return r.HasOverlaps(a)
	}
	return a.nChildren > 0 || (a.bgColorSet && a.content != nil)
}

// --- Paint volume ---

// PaintVolume returns the actor's paint volume in local coordinates:
// the allocation (or the behavior's volume), unioned with the visible
// children, intersected with the clip. ok is false when no bound can be
// computed. The result is cached until geometry changes.
func (a *Actor) PaintVolume() (PaintVolume, bool) {
	if !a.paintVolumeValid {
		a.paintVolumeOK = a.computePaintVolume(&a.paintVolume)
		a.paintVolumeValid = true
	}
	return a.paintVolume, a.paintVolumeOK
}

func (a *Actor) computePaintVolume(pv *PaintVolume) bool {
	*pv = PaintVolume{}
	if a.flags&flagHasAllocation == 0 {
		return false
	}
	if p, ok := a.behavior.(PaintVolumeProvider); ok {
		if !p.GetPaintVolume(a, pv) {
			return false
		}
	} else {
		w, h := a.allocation.Size()
		pv.SetBox(geom.Box{X2: w, Y2: h})
	}

	for c := a.firstChild; c != nil; c = c.nextSibling {
		if !c.IsVisible() {
			continue
		}
		cpv, ok := c.PaintVolume()
		if !ok {
			return false
		}
		m := c.Modelview()
		if a.childTransform != nil {
			m = a.childTransform.Mul4(m)
		}
		cpv.Transform(m)
		pv.Union(cpv)
	}

	if b, ok := a.localClip(); ok {
		pv.ClipToBox(b)
	}
	return true
}

// invalidatePaintVolume drops the cached volume of a and its ancestors. An
// invalid volume always has invalid ancestors, so the walk stops at the
// first one already invalid.
func (a *Actor) invalidatePaintVolume() {
	for cur := a; cur != nil; cur = cur.parent {
		if !cur.paintVolumeValid {
			break
		}
		cur.paintVolumeValid = false
	}
}
