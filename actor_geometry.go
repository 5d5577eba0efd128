package tableau

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/tableau/geom"
)

// RotateAxis selects one of the three rotation axes.
type RotateAxis uint8

const (
	XAxis RotateAxis = iota
	YAxis
	ZAxis
)

// --- Position and size ---

// SetPosition places the actor at (x, y) in its parent's coordinates and
// switches it to fixed-position mode, which bypasses alignment.
func (a *Actor) SetPosition(x, y float64) {
	if a.flags&flagFixedPosition != 0 && a.fixedX == x && a.fixedY == y {
		return
	}
	a.fixedX, a.fixedY = x, y
	a.flags |= flagFixedPosition
	a.QueueRelayout()
}

// SetX sets the fixed x position, keeping the current y.
func (a *Actor) SetX(x float64) {
	_, y := a.Position()
	a.SetPosition(x, y)
}

// SetY sets the fixed y position, keeping the current x.
func (a *Actor) SetY(y float64) {
	x, _ := a.Position()
	a.SetPosition(x, y)
}

// Position returns the fixed position when set, otherwise the origin of the
// last allocation.
func (a *Actor) Position() (x, y float64) {
	if a.flags&flagFixedPosition != 0 {
		return a.fixedX, a.fixedY
	}
	return a.allocation.X1, a.allocation.Y1
}

// X returns the x component of Position.
func (a *Actor) X() float64 { x, _ := a.Position(); return x }

// Y returns the y component of Position.
func (a *Actor) Y() float64 { _, y := a.Position(); return y }

// SetFixedPositionSet turns fixed-position mode on or off without moving
// the stored position.
func (a *Actor) SetFixedPositionSet(fixed bool) {
	if fixed == (a.flags&flagFixedPosition != 0) {
		return
	}
	if fixed {
		a.flags |= flagFixedPosition
	} else {
		a.flags &^= flagFixedPosition
	}
	a.QueueRelayout()
}

// FixedPositionSet reports whether the actor is in fixed-position mode.
func (a *Actor) FixedPositionSet() bool { return a.flags&flagFixedPosition != 0 }

// SetSize forces both the minimum and natural size. A negative value
// unsets the request for that axis.
func (a *Actor) SetSize(width, height float64) {
	a.SetWidth(width)
	a.SetHeight(height)
}

// SetWidth forces the minimum and natural width. A negative width unsets
// both.
func (a *Actor) SetWidth(width float64) {
	if width < 0 {
		a.minWidthSet, a.natWidthSet = false, false
	} else {
		a.minWidth, a.natWidth = width, width
		a.minWidthSet, a.natWidthSet = true, true
	}
	a.QueueRelayout()
}

// SetHeight forces the minimum and natural height. A negative height
// unsets both.
func (a *Actor) SetHeight(height float64) {
	if height < 0 {
		a.minHeightSet, a.natHeightSet = false, false
	} else {
		a.minHeight, a.natHeight = height, height
		a.minHeightSet, a.natHeightSet = true, true
	}
	a.QueueRelayout()
}

// SetMinWidth forces the minimum width; negative unsets it.
func (a *Actor) SetMinWidth(w float64) {
	a.minWidth, a.minWidthSet = math.Max(w, 0), w >= 0
	a.QueueRelayout()
}

// SetNaturalWidth forces the natural width; negative unsets it.
func (a *Actor) SetNaturalWidth(w float64) {
	a.natWidth, a.natWidthSet = math.Max(w, 0), w >= 0
	a.QueueRelayout()
}

// SetMinHeight forces the minimum height; negative unsets it.
func (a *Actor) SetMinHeight(h float64) {
	a.minHeight, a.minHeightSet = math.Max(h, 0), h >= 0
	a.QueueRelayout()
}

// SetNaturalHeight forces the natural height; negative unsets it.
func (a *Actor) SetNaturalHeight(h float64) {
	a.natHeight, a.natHeightSet = math.Max(h, 0), h >= 0
	a.QueueRelayout()
}

// Size returns the allocated size once the actor has been laid out, and
// its natural size before that.
func (a *Actor) Size() (width, height float64) {
	if a.flags&flagHasAllocation != 0 && a.flags&flagNeedsAllocation == 0 {
		return a.allocation.Size()
	}
	_, _, width, height = a.GetPreferredSize()
	return width, height
}

// Width returns the width component of Size.
func (a *Actor) Width() float64 { w, _ := a.Size(); return w }

// Height returns the height component of Size.
func (a *Actor) Height() float64 { _, h := a.Size(); return h }

// SetMargin sets the space kept around the actor by its parent's layout.
func (a *Actor) SetMargin(m Margin) {
	if a.margin == m {
		return
	}
	a.margin = m
	a.QueueRelayout()
}

// Margin returns the actor's margins.
func (a *Actor) Margin() Margin { return a.margin }

// SetXAlign sets horizontal alignment within the allocated box.
func (a *Actor) SetXAlign(align ActorAlign) {
	if a.xAlign == align {
		return
	}
	a.xAlign = align
	a.QueueRelayout()
}

// SetYAlign sets vertical alignment within the allocated box.
func (a *Actor) SetYAlign(align ActorAlign) {
	if a.yAlign == align {
		return
	}
	a.yAlign = align
	a.QueueRelayout()
}

// XAlign returns the horizontal alignment.
func (a *Actor) XAlign() ActorAlign { return a.xAlign }

// YAlign returns the vertical alignment.
func (a *Actor) YAlign() ActorAlign { return a.yAlign }

// SetXExpand asks layouts to give the actor extra horizontal space.
func (a *Actor) SetXExpand(expand bool) { a.setExpand(flagXExpand, expand) }

// SetYExpand asks layouts to give the actor extra vertical space.
func (a *Actor) SetYExpand(expand bool) { a.setExpand(flagYExpand, expand) }

func (a *Actor) setExpand(bit actorFlags, expand bool) {
	if expand == (a.flags&bit != 0) {
		return
	}
	if expand {
		a.flags |= bit
	} else {
		a.flags &^= bit
	}
	a.queueComputeExpand()
	a.QueueRelayout()
}

// SetRequestMode selects the direction of size negotiation.
func (a *Actor) SetRequestMode(mode RequestMode) {
	if a.requestMode == mode {
		return
	}
	a.requestMode = mode
	a.QueueRelayout()
}

// RequestMode returns the direction of size negotiation.
func (a *Actor) RequestMode() RequestMode { return a.requestMode }

// Allocation returns the box assigned by the last allocation, in parent
// coordinates.
func (a *Actor) Allocation() geom.Box { return a.allocation }

// HasAllocation reports whether the actor has been allocated at least once.
func (a *Actor) HasAllocation() bool { return a.flags&flagHasAllocation != 0 }

// --- Transform ---

// SetPivotPoint sets the point, normalized to the allocation size, around
// which scale and rotation apply. (0.5, 0.5) is the center.
func (a *Actor) SetPivotPoint(px, py float64) {
	if a.pivotX == px && a.pivotY == py {
		return
	}
	a.pivotX, a.pivotY = px, py
	a.transformChanged()
}

// SetPivotPointZ sets the pivot's z component in pixels.
func (a *Actor) SetPivotPointZ(pz float64) {
	if a.pivotZ == pz {
		return
	}
	a.pivotZ = pz
	a.transformChanged()
}

// PivotPoint returns the normalized pivot point and its z component.
func (a *Actor) PivotPoint() (px, py, pz float64) { return a.pivotX, a.pivotY, a.pivotZ }

// SetRotationAngle sets the rotation around axis in degrees.
func (a *Actor) SetRotationAngle(axis RotateAxis, degrees float64) {
	p := &a.rotZ
	switch axis {
	case XAxis:
		p = &a.rotX
	case YAxis:
		p = &a.rotY
	}
	if *p == degrees {
		return
	}
	*p = degrees
	a.transformChanged()
}

// RotationAngle returns the rotation around axis in degrees.
func (a *Actor) RotationAngle(axis RotateAxis) float64 {
	switch axis {
	case XAxis:
		return a.rotX
	case YAxis:
		return a.rotY
	}
	return a.rotZ
}

// SetScale sets the x and y scale factors.
func (a *Actor) SetScale(sx, sy float64) {
	if a.scaleX == sx && a.scaleY == sy {
		return
	}
	a.scaleX, a.scaleY = sx, sy
	a.transformChanged()
}

// SetScaleZ sets the z scale factor.
func (a *Actor) SetScaleZ(sz float64) {
	if a.scaleZ == sz {
		return
	}
	a.scaleZ = sz
	a.transformChanged()
}

// Scale returns the x and y scale factors.
func (a *Actor) Scale() (sx, sy float64) { return a.scaleX, a.scaleY }

// SetTranslation sets an offset applied after layout, in pixels.
func (a *Actor) SetTranslation(x, y, z float64) {
	t := mgl64.Vec3{x, y, z}
	if a.translation == t {
		return
	}
	a.translation = t
	a.transformChanged()
}

// Translation returns the post-layout offset.
func (a *Actor) Translation() (x, y, z float64) {
	return a.translation.X(), a.translation.Y(), a.translation.Z()
}

// SetZPosition moves the actor along the z axis.
func (a *Actor) SetZPosition(z float64) {
	if a.zPosition == z {
		return
	}
	a.zPosition = z
	a.transformChanged()
}

// ZPosition returns the z offset.
func (a *Actor) ZPosition() float64 { return a.zPosition }

// SetTransform replaces scale, rotation and z position with m. The
// allocation origin and pivot still apply around it.
func (a *Actor) SetTransform(m mgl64.Mat4) {
	a.transform = &m
	a.transformChanged()
}

// ResetTransform drops the explicit transform.
func (a *Actor) ResetTransform() {
	if a.transform == nil {
		return
	}
	a.transform = nil
	a.transformChanged()
}

// SetChildTransform sets a matrix applied to every child on top of its own
// modelview.
func (a *Actor) SetChildTransform(m mgl64.Mat4) {
	a.childTransform = &m
	a.childTransformChanged()
}

// ResetChildTransform drops the child transform.
func (a *Actor) ResetChildTransform() {
	if a.childTransform == nil {
		return
	}
	a.childTransform = nil
	a.childTransformChanged()
}

func (a *Actor) childTransformChanged() {
	a.invalidatePaintVolume()
	a.QueueRedraw()
	if s := a.Stage(); s != nil {
		s.invalidatePickCache()
	}
}

func (a *Actor) transformChanged() {
	a.invalidateModelview()
	a.QueueRedraw()
}

// invalidateModelview drops the cached modelview. The parent's volume
// depends on where the child lands, so it goes too.
func (a *Actor) invalidateModelview() {
	a.modelviewValid = false
	if a.parent != nil {
		a.parent.invalidatePaintVolume()
	}
	if s := a.Stage(); s != nil {
		s.invalidatePickCache()
	}
}

// Modelview returns the matrix mapping the actor's local coordinates into
// its parent's. It composes, outermost first: allocation origin plus
// translation and pivot, z position, scale, rotation z/y/x, minus pivot.
func (a *Actor) Modelview() mgl64.Mat4 {
	if !a.modelviewValid {
		a.modelview = a.computeModelview()
		a.modelviewValid = true
	}
	return a.modelview
}

func (a *Actor) computeModelview() mgl64.Mat4 {
	w, h := a.allocation.Size()
	px, py, pz := a.pivotX*w, a.pivotY*h, a.pivotZ

	m := mgl64.Translate3D(
		a.allocation.X1+a.translation.X()+px,
		a.allocation.Y1+a.translation.Y()+py,
		a.translation.Z()+pz,
	)
	if a.transform != nil {
		m = m.Mul4(*a.transform)
	} else {
		if a.zPosition != 0 {
			m = m.Mul4(mgl64.Translate3D(0, 0, a.zPosition))
		}
		if a.scaleX != 1 || a.scaleY != 1 || a.scaleZ != 1 {
			m = m.Mul4(mgl64.Scale3D(a.scaleX, a.scaleY, a.scaleZ))
		}
		if a.rotZ != 0 {
			m = m.Mul4(mgl64.HomogRotate3DZ(mgl64.DegToRad(a.rotZ)))
		}
		if a.rotY != 0 {
			m = m.Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(a.rotY)))
		}
		if a.rotX != 0 {
			m = m.Mul4(mgl64.HomogRotate3DX(mgl64.DegToRad(a.rotX)))
		}
	}
	if px != 0 || py != 0 || pz != 0 {
		m = m.Mul4(mgl64.Translate3D(-px, -py, -pz))
	}
	return m
}

// RelativeTransform returns the matrix mapping a's local coordinates into
// ancestor's. A nil ancestor, or one that is not an ancestor, yields the
// transform into the root of a's tree (the stage when attached).
func (a *Actor) RelativeTransform(ancestor *Actor) mgl64.Mat4 {
	m := mgl64.Ident4()
	for cur := a; cur != nil && cur != ancestor; cur = cur.parent {
		m = cur.Modelview().Mul4(m)
		if p := cur.parent; p != nil && p.childTransform != nil {
			m = p.childTransform.Mul4(m)
		}
	}
	return m
}

// --- Coordinate conversion ---

// ApplyTransformToPoint maps a local point to stage window pixels. A
// detached actor maps into its root's coordinates instead.
func (a *Actor) ApplyTransformToPoint(p mgl64.Vec3) mgl64.Vec3 {
	rel := a.RelativeTransform(nil)
	s := a.Stage()
	if s == nil {
		return geom.TransformPoint3(rel, p)
	}
	return geom.ProjectPoint(s.projectionView().Mul4(rel), s.viewport(), p)
}

// ApplyRelativeTransformToPoint maps a local point into ancestor's
// coordinates. A nil ancestor behaves like ApplyTransformToPoint.
func (a *Actor) ApplyRelativeTransformToPoint(ancestor *Actor, p mgl64.Vec3) mgl64.Vec3 {
	if ancestor == nil {
		return a.ApplyTransformToPoint(p)
	}
	return geom.TransformPoint3(a.RelativeTransform(ancestor), p)
}

// TransformStagePoint maps stage window pixels to the actor's local plane
// z=0. ok is false when the actor is detached or seen edge-on.
func (a *Actor) TransformStagePoint(x, y float64) (lx, ly float64, ok bool) {
	s := a.Stage()
	if s == nil {
		return 0, 0, false
	}
	mvp := s.projectionView().Mul4(a.RelativeTransform(nil))
	p, ok := geom.UnprojectToPlane(mvp, s.viewport(), x, y)
	if !ok {
		return 0, 0, false
	}
	return p.X(), p.Y(), true
}

// AbsAllocationVertices returns the four corners of the allocation in
// stage window pixels: top-left, top-right, bottom-right, bottom-left.
func (a *Actor) AbsAllocationVertices() [4]geom.Point {
	w, h := a.allocation.Size()
	local := geom.Box{X2: w, Y2: h}
	s := a.Stage()
	if s == nil {
		rel := a.RelativeTransform(nil)
		var out [4]geom.Point
		for i, v := range local.Vertices() {
			p := geom.TransformPoint3(rel, v)
			out[i] = geom.Point{X: p.X(), Y: p.Y()}
		}
		return out
	}
	mvp := s.projectionView().Mul4(a.RelativeTransform(nil))
	return geom.ProjectBox(mvp, s.viewport(), local).V
}

// TransformedPosition returns the top-left of the screen-space bounding
// box of the transformed allocation.
func (a *Actor) TransformedPosition() (x, y float64) {
	r := geom.Quad{V: a.AbsAllocationVertices()}.Bounds()
	return r.X, r.Y
}

// TransformedSize returns the size of the screen-space bounding box of the
// transformed allocation.
func (a *Actor) TransformedSize() (w, h float64) {
	r := geom.Quad{V: a.AbsAllocationVertices()}.Bounds()
	return r.Width, r.Height
}

// TransformedPaintVolume returns the paint volume projected into stage
// window pixels. ok is false when the actor is detached or its volume is
// unknown.
func (a *Actor) TransformedPaintVolume() (PaintVolume, bool) {
	s := a.Stage()
	if s == nil {
		return PaintVolume{}, false
	}
	pv, ok := a.PaintVolume()
	if !ok {
		return PaintVolume{}, false
	}
	mvp := s.projectionView().Mul4(a.RelativeTransform(nil))
	return pv.Project(mvp, s.viewport()), true
}

// --- Visual state ---

// SetOpacity sets the opacity, multiplied into descendants when painting.
func (a *Actor) SetOpacity(opacity uint8) {
	if a.opacity == opacity {
		return
	}
	a.opacity = opacity
	a.QueueRedraw()
}

// Opacity returns the actor's own opacity.
func (a *Actor) Opacity() uint8 { return a.opacity }

// PaintOpacity returns the opacity the actor is painted with: its own
// multiplied by every ancestor's.
func (a *Actor) PaintOpacity() uint8 {
	o := a.opacity
	for p := a.parent; p != nil; p = p.parent {
		o = mulOpacity(o, p.opacity)
	}
	return o
}

// SetBackgroundColor fills the allocation with c before content and
// children paint.
func (a *Actor) SetBackgroundColor(c Color) {
	if a.bgColorSet && a.bgColor == c {
		return
	}
	a.bgColor = c
	a.bgColorSet = true
	a.QueueRedraw()
}

// UnsetBackgroundColor removes the background fill.
func (a *Actor) UnsetBackgroundColor() {
	if !a.bgColorSet {
		return
	}
	a.bgColorSet = false
	a.QueueRedraw()
}

// BackgroundColor returns the background color and whether one is set.
func (a *Actor) BackgroundColor() (Color, bool) { return a.bgColor, a.bgColorSet }

// SetClip restricts painting and picking of the actor and its subtree to
// r, in local coordinates.
func (a *Actor) SetClip(r geom.Rect) {
	if a.flags&flagHasClip != 0 && a.clip == r {
		return
	}
	a.clip = r
	a.flags |= flagHasClip
	a.clipChanged()
}

// RemoveClip drops the clip rectangle.
func (a *Actor) RemoveClip() {
	if a.flags&flagHasClip == 0 {
		return
	}
	a.flags &^= flagHasClip
	a.clipChanged()
}

// Clip returns the clip rectangle and whether one is set.
func (a *Actor) Clip() (geom.Rect, bool) { return a.clip, a.flags&flagHasClip != 0 }

// SetClipToAllocation clips the actor and its subtree to the allocation.
func (a *Actor) SetClipToAllocation(clip bool) {
	if clip == (a.flags&flagClipToAllocation != 0) {
		return
	}
	if clip {
		a.flags |= flagClipToAllocation
	} else {
		a.flags &^= flagClipToAllocation
	}
	a.clipChanged()
}

// ClipToAllocation reports whether the actor clips to its allocation.
func (a *Actor) ClipToAllocation() bool { return a.flags&flagClipToAllocation != 0 }

func (a *Actor) clipChanged() {
	a.invalidatePaintVolume()
	a.QueueRedraw()
	if s := a.Stage(); s != nil {
		s.invalidatePickCache()
	}
}

// localClip returns the active clip in local coordinates. A clip rectangle
// takes precedence over clip-to-allocation.
func (a *Actor) localClip() (geom.Box, bool) {
	switch {
	case a.flags&flagHasClip != 0:
		return a.clip.Box(), true
	case a.flags&flagClipToAllocation != 0:
		w, h := a.allocation.Size()
		return geom.Box{X2: w, Y2: h}, true
	}
	return geom.Box{}, false
}

// SetOffscreenRedirect selects when the actor paints through an offscreen
// group.
func (a *Actor) SetOffscreenRedirect(r OffscreenRedirect) {
	if a.offscreenRedirect == r {
		return
	}
	a.offscreenRedirect = r
	a.QueueRedraw()
}

// OffscreenRedirect returns the redirect policy.
func (a *Actor) OffscreenRedirect() OffscreenRedirect { return a.offscreenRedirect }
