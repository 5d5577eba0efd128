// Package timeline provides clock-driven animations for tableau actors.
//
// A Timeline measures elapsed time between master clock ticks and exposes
// an eased progress value. It never advances on its own: while playing it is
// registered with a [tableau.MasterClock] and moved forward once per tick,
// so every animation on a context sees the same frame time.
package timeline

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/tableau"
)

// Direction is the direction a timeline plays in.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// RepeatForever makes a timeline loop until stopped.
const RepeatForever = -1

// Timeline counts time from 0 to its duration, or back, driven by a
// master clock.
//
// The first tick after Start only records the tick time, so the time
// between a start and the next frame, or spent paused, is not counted.
type Timeline struct {
	clock *tableau.MasterClock

	duration    time.Duration
	delay       time.Duration
	direction   Direction
	repeatCount int
	autoReverse bool
	easing      ease.TweenFunc
	progress    *gween.Tween

	playing       bool
	waitFirstTick bool
	lastTick      time.Time
	elapsed       time.Duration
	delta         time.Duration
	delayLeft     time.Duration
	currentRepeat int
	started       bool

	onNewFrame  []func(*Timeline)
	onCompleted []func(*Timeline)
	onStarted   []func(*Timeline)
	onStopped   []func(tl *Timeline, finished bool)
}

// New returns a stopped timeline of the given duration with linear
// easing.
func New(clock *tableau.MasterClock, duration time.Duration) *Timeline {
	if duration < 0 {
		duration = 0
	}
	tl := &Timeline{clock: clock, duration: duration, easing: ease.Linear}
	tl.rebuildProgress()
	return tl
}

func (tl *Timeline) rebuildProgress() {
	tl.progress = gween.New(0, 1, float32(tl.duration.Seconds()), tl.easing)
}

// --- Configuration ---

// Duration returns the length of one cycle.
func (tl *Timeline) Duration() time.Duration { return tl.duration }

// SetDuration changes the cycle length. The elapsed time is clamped to it.
func (tl *Timeline) SetDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	tl.duration = d
	if tl.elapsed > d {
		tl.elapsed = d
	}
	tl.rebuildProgress()
}

// Delay returns the time waited before the first frame.
func (tl *Timeline) Delay() time.Duration { return tl.delay }

// SetDelay sets the time waited after Start before the timeline moves.
func (tl *Timeline) SetDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	tl.delay = d
}

// Direction returns the current play direction.
func (tl *Timeline) Direction() Direction { return tl.direction }

// SetDirection changes the play direction. A stopped timeline is moved to
// the start of the new direction.
func (tl *Timeline) SetDirection(d Direction) {
	if tl.direction == d {
		return
	}
	tl.direction = d
	if !tl.playing && !tl.started {
		tl.elapsed = tl.startPosition()
	}
}

// RepeatCount returns how many extra cycles are played, or RepeatForever.
func (tl *Timeline) RepeatCount() int { return tl.repeatCount }

// SetRepeatCount sets the number of cycles played after the first one.
// Negative values loop forever.
func (tl *Timeline) SetRepeatCount(n int) {
	if n < 0 {
		n = RepeatForever
	}
	tl.repeatCount = n
}

// AutoReverse reports whether the direction flips at the end of a cycle.
func (tl *Timeline) AutoReverse() bool { return tl.autoReverse }

// SetAutoReverse makes the timeline flip direction at the end of every
// cycle instead of jumping back to its start.
func (tl *Timeline) SetAutoReverse(v bool) { tl.autoReverse = v }

// SetEasing changes the easing applied by Progress. nil selects linear.
func (tl *Timeline) SetEasing(fn ease.TweenFunc) {
	if fn == nil {
		fn = ease.Linear
	}
	tl.easing = fn
	tl.rebuildProgress()
}

// Easing returns the easing function.
func (tl *Timeline) Easing() ease.TweenFunc { return tl.easing }

// --- Callbacks ---

// OnNewFrame registers fn to run every time the elapsed time changes.
func (tl *Timeline) OnNewFrame(fn func(*Timeline)) { tl.onNewFrame = append(tl.onNewFrame, fn) }

// OnCompleted registers fn to run at the end of every cycle.
func (tl *Timeline) OnCompleted(fn func(*Timeline)) { tl.onCompleted = append(tl.onCompleted, fn) }

// OnStarted registers fn to run when playback begins, after the delay.
func (tl *Timeline) OnStarted(fn func(*Timeline)) { tl.onStarted = append(tl.onStarted, fn) }

// OnStopped registers fn to run when the timeline stops. finished is true
// when the last cycle completed.
func (tl *Timeline) OnStopped(fn func(tl *Timeline, finished bool)) {
	tl.onStopped = append(tl.onStopped, fn)
}

func (tl *Timeline) emit(fns []func(*Timeline)) {
	for _, fn := range fns {
		fn(tl)
	}
}

// --- Playback ---

// IsPlaying reports whether the timeline is registered with the clock.
func (tl *Timeline) IsPlaying() bool { return tl.playing }

// Start begins or resumes playback.
func (tl *Timeline) Start() {
	if tl.playing {
		return
	}
	if !tl.started {
		if tl.currentRepeat > 0 {
			tl.Rewind()
		}
		tl.delayLeft = tl.delay
	}
	tl.playing = true
	tl.waitFirstTick = true
	tl.clock.AddTimeline(tl)
	if !tl.started && tl.delayLeft == 0 {
		tl.started = true
		tl.emit(tl.onStarted)
	}
}

// Pause stops playback and keeps the elapsed time.
func (tl *Timeline) Pause() {
	if !tl.playing {
		return
	}
	tl.playing = false
	tl.delta = 0
	tl.clock.RemoveTimeline(tl)
}

// Stop halts playback and rewinds.
func (tl *Timeline) Stop() {
	wasPlaying := tl.playing
	tl.Pause()
	tl.Rewind()
	if wasPlaying {
		for _, fn := range tl.onStopped {
			fn(tl, false)
		}
	}
}

// Rewind moves the timeline to the start of its direction and resets the
// repeat counter.
func (tl *Timeline) Rewind() {
	tl.elapsed = tl.startPosition()
	tl.currentRepeat = 0
	tl.started = false
	tl.delayLeft = tl.delay
}

// Seek moves the elapsed time to d, clamped to the duration.
func (tl *Timeline) Seek(d time.Duration) {
	tl.elapsed = min(max(d, 0), tl.duration)
}

// Skip moves the elapsed time by d in the current direction.
func (tl *Timeline) Skip(d time.Duration) {
	if tl.direction == Forward {
		tl.Seek(tl.elapsed + d)
	} else {
		tl.Seek(tl.elapsed - d)
	}
}

func (tl *Timeline) startPosition() time.Duration {
	if tl.direction == Backward {
		return tl.duration
	}
	return 0
}

// --- State ---

// Elapsed returns the position inside the current cycle.
func (tl *Timeline) Elapsed() time.Duration { return tl.elapsed }

// Delta returns the time advanced by the last tick.
func (tl *Timeline) Delta() time.Duration { return tl.delta }

// CurrentRepeat returns the number of completed cycles.
func (tl *Timeline) CurrentRepeat() int { return tl.currentRepeat }

// Progress returns the eased position in [0, 1] for the usual easings.
// Overshooting easings such as elastic and back may leave that range.
func (tl *Timeline) Progress() float64 {
	if tl.duration == 0 {
		if tl.currentRepeat > 0 {
			return 1
		}
		return 0
	}
	v, _ := tl.progress.Set(float32(tl.elapsed.Seconds()))
	return float64(v)
}

// Advance moves the timeline to tick. It is called by the master clock.
func (tl *Timeline) Advance(tick time.Time) {
	if !tl.playing {
		return
	}
	if tl.waitFirstTick {
		tl.waitFirstTick = false
		tl.lastTick = tick
		tl.delta = 0
		return
	}
	delta := tick.Sub(tl.lastTick)
	tl.lastTick = tick
	if delta < 0 {
		delta = 0
	}
	if tl.delayLeft > 0 {
		if delta < tl.delayLeft {
			tl.delayLeft -= delta
			return
		}
		delta -= tl.delayLeft
		tl.delayLeft = 0
		tl.started = true
		tl.emit(tl.onStarted)
	}
	tl.delta = delta
	tl.advanceBy(delta)
}

func (tl *Timeline) advanceBy(delta time.Duration) {
	for {
		if tl.direction == Forward {
			tl.elapsed += delta
		} else {
			tl.elapsed -= delta
		}

		atEnd := tl.direction == Forward && tl.elapsed >= tl.duration ||
			tl.direction == Backward && tl.elapsed <= 0
		if !atEnd {
			tl.emit(tl.onNewFrame)
			return
		}

		var overflow time.Duration
		if tl.direction == Forward {
			overflow = tl.elapsed - tl.duration
			tl.elapsed = tl.duration
		} else {
			overflow = -tl.elapsed
			tl.elapsed = 0
		}
		tl.emit(tl.onNewFrame)

		tl.currentRepeat++
		tl.emit(tl.onCompleted)
		if !tl.playing {
			// a completed callback stopped or paused us
			return
		}

		if tl.repeatCount != RepeatForever && tl.currentRepeat > tl.repeatCount {
			tl.playing = false
			tl.started = false
			tl.clock.RemoveTimeline(tl)
			tableau.Logger().Debug("timeline finished", "duration", tl.duration, "cycles", tl.currentRepeat)
			for _, fn := range tl.onStopped {
				fn(tl, true)
			}
			return
		}

		if tl.autoReverse {
			if tl.direction == Forward {
				tl.direction = Backward
			} else {
				tl.direction = Forward
			}
		} else {
			tl.elapsed = tl.startPosition()
		}
		if overflow <= 0 || tl.duration == 0 {
			return
		}
		delta = overflow
	}
}
