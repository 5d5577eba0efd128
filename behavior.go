package tableau

import "github.com/phanxgames/tableau/geom"

// Behavior supplies the per-type part of an actor: how it measures,
// allocates, paints and picks. Every method receives the actor it drives,
// so one Behavior value may serve many actors.
//
// Implementations usually embed [BaseBehavior] and override what they need;
// the default methods delegate to the actor's layout manager and paint the
// background color, content and children.
type Behavior interface {
	GetPreferredWidth(a *Actor, forHeight float64) (minWidth, naturalWidth float64)
	GetPreferredHeight(a *Actor, forWidth float64) (minHeight, naturalHeight float64)
	Allocate(a *Actor, box geom.Box)
	Paint(a *Actor, pc *PaintContext)
	Pick(a *Actor, pc *PickContext)
}

// Realizer is implemented by behaviors that hold resources tied to the
// actor being realized.
type Realizer interface {
	Realize(a *Actor)
	Unrealize(a *Actor)
}

// PaintVolumeProvider is implemented by behaviors that draw outside the
// allocation, or whose extent is unknown. GetPaintVolume fills pv in the
// actor's local space and returns false when no bound can be given, which
// forces a full redraw whenever the actor changes.
type PaintVolumeProvider interface {
	GetPaintVolume(a *Actor, pv *PaintVolume) bool
}

// OverlapReporter is implemented by behaviors that know whether their
// primitives can overlap. Actors that report no overlaps are painted with a
// reduced opacity directly instead of through an offscreen group.
type OverlapReporter interface {
	HasOverlaps(a *Actor) bool
}

// RedrawClipper is implemented by behaviors that take part in redraw clip
// propagation. When a descendant queues a redraw, every ancestor that
// implements it is offered the clip, given in origin's local space (nil
// means origin's whole paint volume). Returning ok=false rejects the clip
// and forces a full stage redraw; otherwise the returned clip, possibly
// narrowed, continues upwards.
type RedrawClipper interface {
	ClipRedraw(a, origin *Actor, clip *PaintVolume) (narrowed *PaintVolume, ok bool)
}

// BaseBehavior is the default [Behavior]. Its zero value is ready to use.
type BaseBehavior struct{}

// GetPreferredWidth asks the layout manager, or the fixed layout when none
// is set.
func (BaseBehavior) GetPreferredWidth(a *Actor, forHeight float64) (float64, float64) {
	return a.layoutManagerOrDefault().GetPreferredWidth(a, forHeight)
}

// GetPreferredHeight asks the layout manager, or the fixed layout when none
// is set.
func (BaseBehavior) GetPreferredHeight(a *Actor, forWidth float64) (float64, float64) {
	return a.layoutManagerOrDefault().GetPreferredHeight(a, forWidth)
}

// Allocate stores box and lays out the children.
func (BaseBehavior) Allocate(a *Actor, box geom.Box) {
	a.SetAllocation(box)
	a.AllocateChildren()
}

// Paint draws the background color, then the content, then the children.
func (BaseBehavior) Paint(a *Actor, pc *PaintContext) {
	a.PaintBackground(pc)
	a.PaintContent(pc)
	a.PaintChildren(pc)
}

// Pick records the allocation when the actor is pickable in the current
// mode, then picks the children.
func (BaseBehavior) Pick(a *Actor, pc *PickContext) {
	a.PickSelf(pc)
	a.PickChildren(pc)
}
