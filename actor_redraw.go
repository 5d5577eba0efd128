package tableau

import "github.com/phanxgames/tableau/geom"

// redrawEntry is an actor's slot in the stage's pending redraw list. A nil
// actor marks an entry whose actor was destroyed before the update.
type redrawEntry struct {
	actor      *Actor
	stage      *Stage
	wholeActor bool
	clip       PaintVolume // local space, when !wholeActor
}

// relayoutEntry is an actor's slot in the stage's pending relayout list.
type relayoutEntry struct {
	actor *Actor
	stage *Stage
}

// QueueRedraw schedules a repaint of the area the actor covers now, plus
// the area it covered at its last paint.
func (a *Actor) QueueRedraw() {
	a.queueRedraw(nil)
}

// QueueRedrawWithClip schedules a repaint of r, in local coordinates.
// Degenerate rectangles are ignored.
func (a *Actor) QueueRedrawWithClip(r geom.Rect) {
	if r.IsEmpty() {
		return
	}
	pv := PaintVolumeFromBox(r.Box())
	a.queueRedraw(&pv)
}

// queueRedraw offers clip to every ancestor implementing RedrawClipper.
// An ancestor may narrow it, or reject it to force a full stage redraw.
// Queuing from an actor being destroyed is a no-op.
func (a *Actor) queueRedraw(clip *PaintVolume) {
	if a.flags&(flagDestroyed|flagInDestruction) != 0 {
		return
	}
	if !a.IsMapped() {
		return
	}
	s := a.Stage()
	if s == nil {
		return
	}
	for p := a.parent; p != nil; p = p.parent {
		rc, ok := p.behavior.(RedrawClipper)
		if !ok {
			continue
		}
		narrowed, ok := rc.ClipRedraw(p, a, clip)
		if !ok {
			s.QueueFullRedraw()
			return
		}
		clip = narrowed
	}
	if clip != nil && clip.IsEmpty() {
		return
	}
	s.queueActorRedraw(a, clip)
}

// queueRedrawOldArea repaints where the actor was last painted. Called
// before the actor disappears from the scene.
func (a *Actor) queueRedrawOldArea() {
	s := a.Stage()
	if s == nil {
		return
	}
	if !a.lastPaintBoxValid {
		if a.flags&flagHasAllocation != 0 {
			s.QueueFullRedraw()
		}
		return
	}
	s.addRedrawBox(a.lastPaintBox)
	a.lastPaintBoxValid = false
}
