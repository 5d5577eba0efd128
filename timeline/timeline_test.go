package timeline

import (
	"math"
	"testing"
	"time"

	"github.com/tanema/gween/ease"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/backend/headless"
)

func newClock(t *testing.T) *tableau.MasterClock {
	t.Helper()
	ctx, err := tableau.NewContext(headless.New())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })
	return ctx.Clock()
}

// ticker hands out monotonically increasing tick times.
type ticker struct{ now time.Time }

func (tk *ticker) next(d time.Duration) time.Time {
	tk.now = tk.now.Add(d)
	return tk.now
}

func TestTimelineFirstTickOnlyRecordsTime(t *testing.T) {
	clock := newClock(t)
	tl := New(clock, time.Second)
	tl.Start()
	if !clock.HasTimeline(tl) {
		t.Fatal("Start should register with the clock")
	}

	tk := &ticker{now: time.Unix(100, 0)}
	tl.Advance(tk.next(0))
	if tl.Elapsed() != 0 {
		t.Errorf("Elapsed after first tick = %v, want 0", tl.Elapsed())
	}
	tl.Advance(tk.next(250 * time.Millisecond))
	if tl.Elapsed() != 250*time.Millisecond {
		t.Errorf("Elapsed = %v, want 250ms", tl.Elapsed())
	}
	if tl.Delta() != 250*time.Millisecond {
		t.Errorf("Delta = %v, want 250ms", tl.Delta())
	}
}

func TestTimelineCompletesAndStops(t *testing.T) {
	clock := newClock(t)
	tl := New(clock, 100*time.Millisecond)

	var completed, frames int
	var finished bool
	tl.OnCompleted(func(*Timeline) { completed++ })
	tl.OnNewFrame(func(*Timeline) { frames++ })
	tl.OnStopped(func(_ *Timeline, f bool) { finished = f })
	tl.Start()

	tk := &ticker{now: time.Unix(0, 0)}
	tl.Advance(tk.now)
	tl.Advance(tk.next(60 * time.Millisecond))
	tl.Advance(tk.next(60 * time.Millisecond))

	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if frames != 2 {
		t.Errorf("frames = %d, want 2", frames)
	}
	if !finished {
		t.Error("OnStopped should report a finished run")
	}
	if tl.IsPlaying() || clock.HasTimeline(tl) {
		t.Error("finished timeline should leave the clock")
	}
	if tl.Elapsed() != 100*time.Millisecond {
		t.Errorf("Elapsed = %v, want clamped to duration", tl.Elapsed())
	}
	if tl.Progress() != 1 {
		t.Errorf("Progress = %v, want 1", tl.Progress())
	}
}

func TestTimelineRepeatCarriesOverflow(t *testing.T) {
	clock := newClock(t)
	tl := New(clock, 100*time.Millisecond)
	tl.SetRepeatCount(2)
	tl.Start()

	tk := &ticker{now: time.Unix(0, 0)}
	tl.Advance(tk.now)
	tl.Advance(tk.next(130 * time.Millisecond))

	if tl.CurrentRepeat() != 1 {
		t.Errorf("CurrentRepeat = %d, want 1", tl.CurrentRepeat())
	}
	if tl.Elapsed() != 30*time.Millisecond {
		t.Errorf("Elapsed = %v, want 30ms", tl.Elapsed())
	}
	if !tl.IsPlaying() {
		t.Error("timeline with repeats left should keep playing")
	}

	tl.Advance(tk.next(200 * time.Millisecond))
	if tl.IsPlaying() {
		t.Error("timeline should stop after the last repeat")
	}
	if tl.CurrentRepeat() != 3 {
		t.Errorf("CurrentRepeat = %d, want 3", tl.CurrentRepeat())
	}
}

func TestTimelineAutoReverse(t *testing.T) {
	clock := newClock(t)
	tl := New(clock, 100*time.Millisecond)
	tl.SetRepeatCount(RepeatForever)
	tl.SetAutoReverse(true)
	tl.Start()

	tk := &ticker{now: time.Unix(0, 0)}
	tl.Advance(tk.now)
	tl.Advance(tk.next(100 * time.Millisecond))
	if tl.Direction() != Backward {
		t.Fatalf("Direction = %v, want backward", tl.Direction())
	}
	tl.Advance(tk.next(40 * time.Millisecond))
	if tl.Elapsed() != 60*time.Millisecond {
		t.Errorf("Elapsed = %v, want 60ms", tl.Elapsed())
	}
	tl.Stop()
	if clock.HasTimeline(tl) {
		t.Error("Stop should unregister")
	}
}

func TestTimelinePauseExcludesPausedTime(t *testing.T) {
	clock := newClock(t)
	tl := New(clock, time.Second)
	tl.Start()

	tk := &ticker{now: time.Unix(0, 0)}
	tl.Advance(tk.now)
	tl.Advance(tk.next(100 * time.Millisecond))
	tl.Pause()
	if clock.HasTimeline(tl) {
		t.Error("Pause should unregister")
	}

	// Ticks while paused are ignored, then the first tick after resuming
	// is a fresh reference.
	tl.Advance(tk.next(time.Second))
	tl.Start()
	tl.Advance(tk.next(5 * time.Second))
	tl.Advance(tk.next(100 * time.Millisecond))
	if tl.Elapsed() != 200*time.Millisecond {
		t.Errorf("Elapsed = %v, want 200ms", tl.Elapsed())
	}
}

func TestTimelineDelay(t *testing.T) {
	clock := newClock(t)
	tl := New(clock, time.Second)
	tl.SetDelay(100 * time.Millisecond)
	started := 0
	tl.OnStarted(func(*Timeline) { started++ })
	tl.Start()
	if started != 0 {
		t.Fatal("delayed timeline should not start immediately")
	}

	tk := &ticker{now: time.Unix(0, 0)}
	tl.Advance(tk.now)
	tl.Advance(tk.next(60 * time.Millisecond))
	if started != 0 || tl.Elapsed() != 0 {
		t.Errorf("during delay: started=%d elapsed=%v", started, tl.Elapsed())
	}
	tl.Advance(tk.next(60 * time.Millisecond))
	if started != 1 {
		t.Errorf("started = %d, want 1", started)
	}
	if tl.Elapsed() != 20*time.Millisecond {
		t.Errorf("Elapsed = %v, want 20ms", tl.Elapsed())
	}
}

func TestTimelineEasedProgress(t *testing.T) {
	clock := newClock(t)
	tl := New(clock, time.Second)
	tl.SetEasing(ease.InQuad)
	tl.Seek(500 * time.Millisecond)
	if got := tl.Progress(); math.Abs(got-0.25) > 1e-4 {
		t.Errorf("InQuad progress at half = %v, want 0.25", got)
	}
	tl.SetEasing(nil)
	if got := tl.Progress(); math.Abs(got-0.5) > 1e-4 {
		t.Errorf("linear progress at half = %v, want 0.5", got)
	}
}

func TestTimelineRestartAfterFinish(t *testing.T) {
	clock := newClock(t)
	tl := New(clock, 50*time.Millisecond)
	tl.Start()
	tk := &ticker{now: time.Unix(0, 0)}
	tl.Advance(tk.now)
	tl.Advance(tk.next(50 * time.Millisecond))
	if tl.IsPlaying() {
		t.Fatal("expected finished")
	}

	tl.Start()
	if tl.Elapsed() != 0 || tl.CurrentRepeat() != 0 {
		t.Errorf("restart should rewind: elapsed=%v repeat=%d", tl.Elapsed(), tl.CurrentRepeat())
	}
}

func TestTimelineDrivenByClock(t *testing.T) {
	now := time.Unix(0, 0)
	ctx, err := tableau.NewContext(headless.New(), tableau.WithNow(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()
	s, err := ctx.NewStage(tableau.StageConfig{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}
	s.Show()

	tl := New(ctx.Clock(), time.Second)
	tl.Start()
	for range 10 {
		now = now.Add(20 * time.Millisecond)
		ctx.Clock().Iterate()
	}
	if tl.Elapsed() <= 0 {
		t.Errorf("clock ticks should advance a playing timeline, elapsed=%v", tl.Elapsed())
	}
}
