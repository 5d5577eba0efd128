package tableau

import (
	"slices"
	"sort"
	"time"

	"github.com/phanxgames/tableau/geom"
)

// maxRelayoutRestarts bounds how often one relayout pass restarts because
// allocations queued more work. Leftover entries wait for the next update.
const maxRelayoutRestarts = 32

// --- Relayout queue ---

func (s *Stage) queueActorRelayout(a *Actor) {
	if s.destroyed {
		return
	}
	if e := a.relayoutEntry; e != nil {
		if e.stage == s {
			return
		}
		e.actor = nil
	}
	e := &relayoutEntry{actor: a, stage: s}
	a.relayoutEntry = e
	s.relayoutEntries = append(s.relayoutEntries, e)
	s.relayoutVersion++
	s.invalidatePickCache()
	s.scheduleUpdate()
}

// maybeRelayout drains the relayout queue and returns the number of
// actors relaid out. The queue is stolen before processing; when an
// allocation queues more work the pass restarts over the current queue,
// shallowest actors first.
func (s *Stage) maybeRelayout() int {
	count, restarts := 0, 0
	for len(s.relayoutEntries) > 0 {
		stolen := s.relayoutEntries
		s.relayoutEntries = nil
		sort.SliceStable(stolen, func(i, j int) bool {
			return entryDepth(stolen[i]) < entryDepth(stolen[j])
		})

		version := s.relayoutVersion
		for i, e := range stolen {
			a := e.actor
			if a == nil {
				continue
			}
			if a.relayoutEntry == e {
				a.relayoutEntry = nil
			}
			s.relayoutActor(a)
			count++
			if s.relayoutVersion != version {
				for _, rest := range stolen[i+1:] {
					if rest.actor != nil {
						s.relayoutEntries = append(s.relayoutEntries, rest)
					}
				}
				break
			}
		}

		if len(s.relayoutEntries) == 0 {
			break
		}
		restarts++
		if restarts > maxRelayoutRestarts {
			Logger().Warn("relayout did not converge",
				"stage", s.title, "pending", len(s.relayoutEntries), "restarts", restarts)
			break
		}
		Logger().Debug("relayout restarted", "stage", s.title, "pending", len(s.relayoutEntries))
	}
	return count
}

func entryDepth(e *relayoutEntry) int {
	if e.actor == nil {
		return 0
	}
	return e.actor.depth()
}

// relayoutActor reallocates a with the box it was last given. Entries
// whose actor moved to another parent or stage since are stale: the
// relayout queued by the move covers them.
func (s *Stage) relayoutActor(a *Actor) {
	if a == s.Actor {
		s.allocateToplevel()
		return
	}
	if a.Stage() != s || a.flags&flagHasAllocation == 0 || a.allocParent != a.parent {
		return
	}
	a.Allocate(a.requestedBox)
}

func (s *Stage) allocateToplevel() {
	s.Actor.Allocate(geom.Box{X2: s.width, Y2: s.height})
}

// --- Redraw queue ---

func (s *Stage) queueActorRedraw(a *Actor, clip *PaintVolume) {
	if s.destroyed {
		return
	}
	e := a.redrawEntry
	if e != nil && e.stage != s {
		e.actor = nil
		e = nil
	}
	switch {
	case e == nil:
		e = &redrawEntry{actor: a, stage: s, wholeActor: clip == nil}
		if clip != nil {
			e.clip = *clip
		}
		a.redrawEntry = e
		s.redrawEntries = append(s.redrawEntries, e)
	case e.wholeActor:
	case clip == nil:
		e.wholeActor = true
		e.clip = PaintVolume{}
	default:
		e.clip.Union(*clip)
	}
	s.invalidatePickCache()
	s.scheduleUpdate()
}

// QueueFullRedraw marks every view for a full repaint.
func (s *Stage) QueueFullRedraw() {
	if s.destroyed {
		return
	}
	for _, v := range s.Views() {
		v.addFullRedraw()
	}
	s.needsUpdate = true
	s.invalidatePickCache()
	s.scheduleUpdate()
}

// addRedrawBox damages a stage-space box in every view.
func (s *Stage) addRedrawBox(b geom.Box) {
	if s.destroyed || !s.damageBox(b) {
		return
	}
	s.needsUpdate = true
	s.invalidatePickCache()
	s.scheduleUpdate()
}

// damageBox adds b to the redraw clip of every view. Degenerate boxes, and
// boxes outside the stage, are ignored.
func (s *Stage) damageBox(b geom.Box) bool {
	r := b.Rect().Intersection(s.Bounds())
	if r.IsEmpty() {
		return false
	}
	for _, v := range s.Views() {
		v.addRedrawRect(r)
	}
	return true
}

func (s *Stage) damageAll() {
	for _, v := range s.Views() {
		v.addFullRedraw()
	}
}

// finishQueueRedraws turns the pending redraw entries into view clips:
// each entry's volume is projected to stage pixels, narrowed by the clips
// of its ancestors and unioned with the area the actor covered at its last
// paint.
func (s *Stage) finishQueueRedraws() {
	entries := s.redrawEntries
	s.redrawEntries = nil
	for _, e := range entries {
		a := e.actor
		if a == nil {
			continue
		}
		a.redrawEntry = nil
		e.actor = nil
		if !a.IsMapped() || a.flags&flagHasAllocation == 0 {
			continue
		}

		var pv PaintVolume
		if e.wholeActor {
			if a.lastPaintBoxValid {
				s.damageBox(a.lastPaintBox)
			}
			vol, ok := a.PaintVolume()
			if !ok {
				s.damageAll()
				continue
			}
			pv = vol
		} else {
			pv = e.clip
		}
		switch {
		case pv.IsEmpty():
			continue
		case pv.IsComplete():
			s.damageAll()
			continue
		}

		box := pv.Project(s.projView.Mul4(a.RelativeTransform(nil)), s.viewport()).Bounds2D()
		visible := true
		for p := a.parent; p != nil && visible; p = p.parent {
			cb, ok := p.localClip()
			if !ok {
				continue
			}
			pb := PaintVolumeFromBox(cb).Project(s.projView.Mul4(p.RelativeTransform(nil)), s.viewport()).Bounds2D()
			box, visible = box.Intersect(pb)
		}
		if visible {
			s.damageBox(box)
		}
	}
}

// --- Scheduling ---

// scheduleUpdate asks the window for an update and wakes the clock.
func (s *Stage) scheduleUpdate() {
	if s.window == nil || s.destroyed || !s.realized {
		return
	}
	s.window.ScheduleUpdate(s.ctx.syncDelay)
	s.ctx.clock.wake()
}

// hasPendingWork reports whether the stage needs another update.
func (s *Stage) hasPendingWork() bool {
	if s.destroyed {
		return false
	}
	return s.needsUpdate ||
		len(s.redrawEntries) > 0 ||
		len(s.relayoutEntries) > 0 ||
		len(s.events) > 0 ||
		len(s.injectQueue) > 0 ||
		len(s.screenshotQueue) > 0 ||
		s.devicesDirty ||
		(s.testRunner != nil && !s.testRunner.Done())
}

func (s *Stage) hasQueuedEvents() bool {
	return len(s.events) > 0 || len(s.injectQueue) > 0
}

func (s *Stage) updateTime() (time.Time, bool) {
	if s.window == nil {
		return time.Time{}, false
	}
	return s.window.UpdateTime()
}

func (s *Stage) nextPresentationTime() (time.Time, bool) {
	if s.window == nil {
		return time.Time{}, false
	}
	return s.window.NextPresentationTime()
}

func (s *Stage) clearUpdateTime() {
	if s.window != nil {
		s.window.ClearUpdateTime()
	}
}

// --- Update cycle ---

// update runs one update cycle: relayout, remaining events, redraw clip
// finalization, paint of every damaged view and pick refresh. It reports
// whether any work was done.
func (s *Stage) update() bool {
	if !s.realized || s.destroyed || !s.shown {
		return false
	}
	s.needsUpdate = false
	st := &s.stats
	now := s.ctx.now

	start := now()
	st.Relayouts += s.maybeRelayout()
	if s.Actor.flags&flagHasAllocation == 0 {
		s.allocateToplevel()
	}
	layoutDone := now()
	st.LayoutTime += layoutDone.Sub(start)

	s.processEvents()
	if len(s.relayoutEntries) > 0 {
		st.Relayouts += s.maybeRelayout()
	}
	st.EventTime += now().Sub(layoutDone)
	s.relaidOut = st.Relayouts > 0

	runStageHooks(s, s.beforePaint)
	s.finishQueueRedraws()
	painted := s.paintViews(st)
	runStageHooks(s, s.afterPaint)

	if s.relaidOut || s.devicesDirty {
		s.updateInputDevices()
	}
	s.flushScreenshots()

	done := *st
	s.lastStats = done
	s.stats = FrameStats{}
	if painted {
		s.frames++
	}
	Logger().Debug("stage update", "stage", s.title, "stats", done)
	for _, hk := range slices.Clone(s.afterUpdate) {
		hk.fn(s, done)
	}
	return painted || done.Relayouts > 0 || done.Events > 0
}

// paintViews paints every view with a pending redraw clip and presents the
// window. A view whose submit fails keeps a full redraw for the next
// update; the other views are still painted.
func (s *Stage) paintViews(st *FrameStats) bool {
	renderer := s.backend.Renderer()
	now := s.ctx.now
	painted := false
	for _, v := range s.window.Views() {
		v.lastPainted = false
		clip, full, pending := v.RedrawClip()
		if !pending {
			continue
		}
		if v.Framebuffer == nil {
			Logger().Warn("view skipped", "err", newStageError(s, "paint "+v.Name, ErrNoFramebuffer))
			v.resetRedrawClip()
			continue
		}

		t0 := now()
		pc := newPaintContext(s, v, st)
		pc.culling = s.culling
		stageClip := v.viewToStage(clip)
		pc.cull = geom.PlanesForRect(stageClip)
		if !full {
			pc.PushClip(stageClip.Box())
		}
		s.Actor.Paint(pc)
		if !full {
			pc.PopClip()
		}
		t1 := now()
		st.PaintTime += t1.Sub(t0)

		err := renderer.Submit(v.Framebuffer, pc.ops)
		st.SubmitTime += now().Sub(t1)
		st.DrawOps += len(pc.ops)
		st.Views++
		if err != nil {
			Logger().Warn("view paint failed", "err", newStageError(s, "submit "+v.Name, err))
			v.addFullRedraw()
			continue
		}
		v.resetRedrawClip()
		v.lastClip, v.lastFull, v.lastPainted = clip, full, true
		painted = true
	}
	if painted {
		s.hasPainted = true
		if err := s.window.Present(); err != nil {
			Logger().Warn("present failed", "err", newStageError(s, "present", err))
		}
	}
	return painted
}
