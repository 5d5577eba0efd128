package tableau

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Timeline is advanced by the master clock once per tick while it is
// registered. Tick times never decrease. Implementations track their own
// elapsed time; the clock does not compensate for time spent paused.
type Timeline interface {
	Advance(tick time.Time)
}

// RepaintFlags select when a repaint function runs.
type RepaintFlags uint8

const (
	// RepaintPrePaint runs the function after the timelines advanced and
	// before the stages update. It is the default.
	RepaintPrePaint RepaintFlags = 1 << iota
	// RepaintPostPaint runs the function after every stage updated.
	RepaintPostPaint
	// RepaintOnce removes the function after its first run.
	RepaintOnce
)

type repaintFunc struct {
	id    uint32
	flags RepaintFlags
	fn    func() bool
}

// RepaintHandle removes a repaint function.
type RepaintHandle struct {
	clock *MasterClock
	id    uint32
}

// Remove unregisters the function. Safe to call more than once.
func (h RepaintHandle) Remove() {
	if h.clock == nil {
		return
	}
	h.clock.repaints = slices.DeleteFunc(h.clock.repaints, func(r repaintFunc) bool { return r.id == h.id })
}

// MasterClock drives every stage and timeline of a [Context]. Each tick
// processes queued input, advances the timelines and updates the stages
// that are due, in that order.
//
// The clock and the scene graph are single threaded: every method of the
// clock, of stages and of actors must be called from the goroutine running
// [MasterClock.Run] or [MasterClock.Iterate], or from inside
// [MasterClock.Invoke]. Invoke and the wake-up of a sleeping Run are the
// only goroutine-safe entry points.
type MasterClock struct {
	mu     sync.Mutex
	ctx    *Context
	wakeCh chan struct{}

	timelines  []Timeline
	paused     int
	ensureNext bool

	repaints      []repaintFunc
	nextRepaintID uint32

	lastTick time.Time
	ticks    uint64
}

func newMasterClock(ctx *Context) *MasterClock {
	return &MasterClock{ctx: ctx, wakeCh: make(chan struct{}, 1)}
}

// wake interrupts a sleeping Run. Safe from any goroutine.
func (c *MasterClock) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// Invoke runs fn under the clock lock and wakes the clock afterwards. Use
// it to touch the scene from another goroutine.
func (c *MasterClock) Invoke(fn func()) {
	defer c.wake()
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// --- Timelines ---

// AddTimeline registers t. Adding the first timeline schedules an update
// of every stage. Adding a registered timeline is a no-op.
func (c *MasterClock) AddTimeline(t Timeline) {
	if slices.Contains(c.timelines, t) {
		return
	}
	first := len(c.timelines) == 0
	c.timelines = append(c.timelines, t)
	if first {
		c.scheduleAll()
	}
	c.wake()
}

// RemoveTimeline unregisters t. Removing an unknown timeline is a no-op.
func (c *MasterClock) RemoveTimeline(t Timeline) {
	c.timelines = slices.DeleteFunc(c.timelines, func(x Timeline) bool { return x == t })
}

// HasTimeline reports whether t is registered.
func (c *MasterClock) HasTimeline(t Timeline) bool {
	return slices.Contains(c.timelines, t)
}

// NumTimelines returns the number of registered timelines.
func (c *MasterClock) NumTimelines() int { return len(c.timelines) }

// --- Pause ---

// SetPaused pauses or resumes the clock. Pauses nest: every pause needs a
// matching resume. A tick in progress always completes.
func (c *MasterClock) SetPaused(paused bool) {
	if paused {
		c.paused++
		return
	}
	if c.paused == 0 {
		return
	}
	c.paused--
	if c.paused == 0 {
		c.scheduleAll()
		c.wake()
	}
}

// IsPaused reports whether the clock is paused.
func (c *MasterClock) IsPaused() bool { return c.paused > 0 }

// EnsureNextIteration forces one more tick even when nothing else is
// pending.
func (c *MasterClock) EnsureNextIteration() {
	c.ensureNext = true
	c.scheduleAll()
	c.wake()
}

func (c *MasterClock) scheduleAll() {
	for _, s := range c.ctx.manager.stages {
		s.scheduleUpdate()
	}
}

// --- Repaint functions ---

// AddRepaintFunc runs fn on every tick until it returns false or the
// handle is removed.
func (c *MasterClock) AddRepaintFunc(flags RepaintFlags, fn func() bool) RepaintHandle {
	c.nextRepaintID++
	c.repaints = append(c.repaints, repaintFunc{id: c.nextRepaintID, flags: flags, fn: fn})
	c.EnsureNextIteration()
	return RepaintHandle{clock: c, id: c.nextRepaintID}
}

func (c *MasterClock) runRepaintFuncs(post bool) {
	for _, r := range slices.Clone(c.repaints) {
		if (r.flags&RepaintPostPaint != 0) != post {
			continue
		}
		keep := r.fn()
		if !keep || r.flags&RepaintOnce != 0 {
			RepaintHandle{clock: c, id: r.id}.Remove()
		}
	}
}

// --- Scheduling ---

// isRunning reports whether a tick may be needed.
func (c *MasterClock) isRunning() bool {
	if c.paused > 0 {
		return false
	}
	if len(c.timelines) > 0 || len(c.repaints) > 0 {
		return true
	}
	for _, s := range c.ctx.manager.stages {
		if s.IsMapped() && s.hasPendingWork() {
			return true
		}
	}
	return c.ensureNext
}

// NextFrameDelay returns how long to wait before the next tick. ok is
// false when nothing is scheduled.
func (c *MasterClock) NextFrameDelay() (delay time.Duration, ok bool) {
	return c.nextFrameDelay(c.ctx.now())
}

func (c *MasterClock) nextFrameDelay(now time.Time) (time.Duration, bool) {
	if !c.isRunning() {
		return 0, false
	}
	var next time.Time
	found := false
	for _, s := range c.ctx.manager.stages {
		if !s.IsMapped() {
			continue
		}
		ut, ok := s.updateTime()
		if !ok {
			continue
		}
		if !found || ut.Before(next) {
			next, found = ut, true
		}
	}
	if !found {
		return 0, false
	}
	if !next.After(now) {
		return 0, true
	}
	return next.Sub(now), true
}

// Iterate runs one tick if one is due and reports whether it did. It is
// the entry point for backends that own the event loop.
func (c *MasterClock) Iterate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delay, ok := c.nextFrameDelay(c.ctx.now())
	if !ok || delay > 0 {
		return false
	}
	c.dispatch()
	return true
}

// Run ticks the clock until ctx is done, sleeping until the next stage
// update is due or a wake-up arrives.
func (c *MasterClock) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.mu.Lock()
		delay, ok := c.nextFrameDelay(c.ctx.now())
		if ok && delay <= 0 {
			c.dispatch()
			c.mu.Unlock()
			continue
		}
		c.mu.Unlock()

		var timerC <-chan time.Time
		if ok {
			timer.Reset(delay)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wakeCh:
		case <-timerC:
		}
		timer.Stop()
	}
}

// Ticks returns the number of ticks dispatched.
func (c *MasterClock) Ticks() uint64 { return c.ticks }

// LastTick returns the time of the last tick.
func (c *MasterClock) LastTick() time.Time { return c.lastTick }

// dispatch runs one tick: input of the ready stages, timelines, pre-paint
// functions, stage updates, post-paint functions, and re-arming of the
// stages that still have work.
func (c *MasterClock) dispatch() {
	c.ensureNext = false
	stages := c.ctx.manager.Stages()

	tick := time.Time{}
	for _, s := range stages {
		if pt, ok := s.nextPresentationTime(); ok && (tick.IsZero() || pt.Before(tick)) {
			tick = pt
		}
	}
	if tick.IsZero() {
		tick = c.ctx.now()
	}
	if tick.Before(c.lastTick) {
		tick = c.lastTick
	}

	var ready []*Stage
	for _, s := range stages {
		if !s.IsMapped() {
			continue
		}
		if ut, ok := s.updateTime(); ok && !ut.After(tick) {
			ready = append(ready, s)
		}
	}

	for _, s := range ready {
		if !s.destroyed {
			s.processFrameInput()
		}
	}

	for _, t := range slices.Clone(c.timelines) {
		if c.HasTimeline(t) {
			t.Advance(tick)
		}
	}

	c.runRepaintFuncs(false)
	for _, s := range ready {
		if !s.destroyed {
			s.update()
		}
	}
	c.runRepaintFuncs(true)

	for _, s := range ready {
		if s.destroyed {
			continue
		}
		s.clearUpdateTime()
		if len(c.timelines) > 0 || len(c.repaints) > 0 || s.hasPendingWork() {
			s.scheduleUpdate()
		}
	}

	c.lastTick = tick
	c.ticks++
}
