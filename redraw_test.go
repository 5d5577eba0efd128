package tableau_test

import (
	"testing"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/geom"
)

// clipRecorder captures the region of the first view painted by each
// update.
type clipRecorder struct {
	clip    geom.Rect
	full    bool
	painted bool
	calls   int
}

func recordClips(h *harness) *clipRecorder {
	r := &clipRecorder{}
	h.stage.OnAfterPaint(func(s *tableau.Stage) {
		r.clip, r.full, r.painted = s.Views()[0].LastPaint()
		r.calls++
	})
	return r
}

// expectPartial checks a clipped redraw covering want, allowing one pixel
// of outward rounding.
func (r *clipRecorder) expectPartial(t *testing.T, want geom.Rect) {
	t.Helper()
	if !r.painted || r.full {
		t.Fatalf("clip painted=%v full=%v, want a partial redraw", r.painted, r.full)
	}
	if !r.clip.ContainsRect(want) {
		t.Errorf("clip %+v does not cover %+v", r.clip, want)
	}
	outer := geom.Rect{X: want.X - 1, Y: want.Y - 1, Width: want.Width + 2, Height: want.Height + 2}
	if !outer.ContainsRect(r.clip) {
		t.Errorf("clip %+v is larger than %+v", r.clip, want)
	}
}

func TestFirstPaintIsFull(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	rec := recordClips(h)
	h.frame()
	if rec.calls != 1 || !rec.full {
		t.Errorf("first paint: calls=%d full=%v", rec.calls, rec.full)
	}
}

func TestIdleStagePaintsNothing(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	h.stage.AddChild(rect("a", 10, 10, 20, 20, tableau.ColorRed))
	h.settle()
	presents := h.win.Presents()
	frames := h.stage.Frames()

	for range 5 {
		if h.frame() {
			t.Fatal("idle stage should not tick")
		}
	}
	if h.win.Presents() != presents || h.stage.Frames() != frames {
		t.Error("idle stage should not present")
	}
}

func TestQueueRedrawClipsToActor(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	a := rect("a", 10, 10, 20, 20, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()

	rec := recordClips(h)
	a.SetBackgroundColor(tableau.ColorBlue)
	h.frame()
	rec.expectPartial(t, geom.Rect{X: 10, Y: 10, Width: 20, Height: 20})
	h.expectPixel(15, 15, rgbaBlue)
}

func TestQueueRedrawWithClip(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	a := rect("a", 10, 10, 20, 20, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()

	rec := recordClips(h)
	a.QueueRedrawWithClip(geom.Rect{X: 2, Y: 3, Width: 5, Height: 5})
	h.frame()
	rec.expectPartial(t, geom.Rect{X: 12, Y: 13, Width: 5, Height: 5})

	rec.calls = 0
	a.QueueRedrawWithClip(geom.Rect{Width: 0, Height: 5})
	if h.frame() || rec.calls != 0 {
		t.Error("a degenerate clip should be ignored")
	}
}

func TestMoveDamagesOldAndNewArea(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	a := rect("a", 10, 10, 20, 20, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()

	rec := recordClips(h)
	a.SetPosition(50, 50)
	h.frame()
	rec.expectPartial(t, geom.Rect{X: 10, Y: 10, Width: 60, Height: 60})
	h.expectPixel(15, 15, rgbaBlack)
	h.expectPixel(55, 55, rgbaRed)
}

func TestClipCoveringViewBecomesFullRedraw(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	left := rect("left", 0, 0, 50, 100, tableau.ColorRed)
	right := rect("right", 50, 0, 50, 100, tableau.ColorRed)
	h.stage.AddChild(left)
	h.stage.AddChild(right)
	h.frame()

	rec := recordClips(h)
	left.SetBackgroundColor(tableau.ColorBlue)
	right.SetBackgroundColor(tableau.ColorBlue)
	h.frame()
	if !rec.full {
		t.Errorf("clip %+v covering the view should promote to a full redraw", rec.clip)
	}
	h.expectPixel(25, 50, rgbaBlue)
	h.expectPixel(75, 50, rgbaBlue)
}

func TestHideRepaintsOldArea(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	a := rect("a", 10, 10, 20, 20, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()

	rec := recordClips(h)
	a.Hide()
	h.frame()
	rec.expectPartial(t, geom.Rect{X: 10, Y: 10, Width: 20, Height: 20})
	h.expectPixel(15, 15, rgbaBlack)

	a.Show()
	h.frame()
	h.expectPixel(15, 15, rgbaRed)
}

func TestRemoveRepaintsOldArea(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	a := rect("a", 10, 10, 20, 20, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()

	a.RemoveFromParent()
	h.frame()
	h.expectPixel(15, 15, rgbaBlack)
}

func TestRedrawOfUnmappedActorIsIgnored(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	hidden := rect("hidden", 10, 10, 20, 20, tableau.ColorRed)
	hidden.Hide()
	h.stage.AddChild(hidden)
	detached := rect("detached", 10, 10, 20, 20, tableau.ColorRed)
	h.settle()

	hidden.QueueRedraw()
	detached.QueueRedraw()
	if h.frame() {
		t.Error("redraws of unmapped actors should not schedule a tick")
	}
}

func TestStageColorRepaintsEverything(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	h.frame()
	rec := recordClips(h)
	h.stage.SetColor(tableau.ColorBlue)
	h.frame()
	if !rec.full {
		t.Error("changing the stage color should repaint fully")
	}
	h.expectPixel(50, 50, rgbaBlue)
	if h.stage.Color() != tableau.ColorBlue {
		t.Errorf("Color = %v", h.stage.Color())
	}
}

func TestRedrawQueuedBeforePaintIsPaintedSameFrame(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	a := rect("a", 10, 10, 20, 20, tableau.ColorRed)
	h.stage.AddChild(a)
	h.settle()

	recolor := false
	h.stage.OnBeforePaint(func(*tableau.Stage) {
		if recolor {
			a.SetBackgroundColor(tableau.ColorBlue)
			recolor = false
		}
	})
	recolor = true
	h.stage.QueueRedrawWithClip(geom.Rect{X: 80, Y: 80, Width: 5, Height: 5})
	if !h.frame() {
		t.Fatal("expected a tick")
	}
	h.expectPixel(15, 15, rgbaBlue)
}

// --- Redraw clip propagation ---

// clipPolicy is a container behavior that either rejects every redraw clip
// from its descendants or narrows it to the top-left 5x5 of the origin.
type clipPolicy struct {
	tableau.BaseBehavior
	reject bool
}

func (p clipPolicy) ClipRedraw(_, _ *tableau.Actor, _ *tableau.PaintVolume) (*tableau.PaintVolume, bool) {
	if p.reject {
		return nil, false
	}
	pv := tableau.PaintVolumeFromBox(geom.Box{X2: 5, Y2: 5})
	return &pv, true
}

func TestRejectedClipForcesFullRedraw(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	parent := tableau.NewActorWithBehavior("parent", clipPolicy{reject: true})
	child := rect("child", 10, 10, 20, 20, tableau.ColorRed)
	parent.AddChild(child)
	h.stage.AddChild(parent)
	h.frame()

	rec := recordClips(h)
	child.SetBackgroundColor(tableau.ColorBlue)
	h.frame()
	if !rec.full {
		t.Errorf("clip = %+v, want a full redraw", rec.clip)
	}
	h.expectPixel(15, 15, rgbaBlue)
}

func TestAncestorNarrowsClip(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	parent := tableau.NewActorWithBehavior("parent", clipPolicy{})
	child := rect("child", 10, 10, 20, 20, tableau.ColorRed)
	parent.AddChild(child)
	h.stage.AddChild(parent)
	h.frame()

	rec := recordClips(h)
	child.QueueRedraw()
	h.frame()
	rec.expectPartial(t, geom.Rect{X: 10, Y: 10, Width: 5, Height: 5})
}

// --- Clipping ---

func TestSetClipRestrictsSubtree(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	parent := tableau.NewActor("parent")
	parent.SetPosition(10, 10)
	parent.AddChild(rect("child", 0, 0, 40, 40, tableau.ColorRed))
	parent.SetClip(geom.Rect{Width: 10, Height: 10})
	h.stage.AddChild(parent)
	h.frame()

	h.expectPixel(15, 15, rgbaRed)
	h.expectPixel(35, 35, rgbaBlack)
	if r, ok := parent.Clip(); !ok || r.Width != 10 {
		t.Errorf("Clip = %+v, %v", r, ok)
	}

	parent.RemoveClip()
	h.frame()
	h.expectPixel(35, 35, rgbaRed)
}

func TestClipToAllocation(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	parent := tableau.NewActor("parent")
	parent.SetPosition(10, 10)
	parent.SetSize(20, 20)
	parent.AddChild(rect("child", 0, 0, 40, 40, tableau.ColorRed))
	parent.SetClipToAllocation(true)
	h.stage.AddChild(parent)
	h.frame()

	if !parent.ClipToAllocation() {
		t.Error("ClipToAllocation should report true")
	}
	h.expectPixel(25, 25, rgbaRed)
	h.expectPixel(45, 45, rgbaBlack)
}

// --- Opacity ---

func TestPaintOpacityMultipliesAncestors(t *testing.T) {
	parent := tableau.NewActor("parent")
	child := tableau.NewActor("child")
	parent.AddChild(child)
	parent.SetOpacity(128)
	child.SetOpacity(128)
	if got := child.PaintOpacity(); got != 64 {
		t.Errorf("PaintOpacity = %d, want 64", got)
	}
	if child.Opacity() != 128 {
		t.Errorf("Opacity = %d", child.Opacity())
	}
}

func TestZeroOpacityPaintsNothing(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	a := rect("a", 10, 10, 20, 20, tableau.ColorRed)
	a.SetOpacity(0)
	h.stage.AddChild(a)
	h.frame()
	h.expectPixel(15, 15, rgbaBlack)
}

func TestBackgroundColorAccessors(t *testing.T) {
	a := tableau.NewActor("a")
	if _, ok := a.BackgroundColor(); ok {
		t.Error("no background by default")
	}
	a.SetBackgroundColor(tableau.ColorRed)
	if c, ok := a.BackgroundColor(); !ok || c != tableau.ColorRed {
		t.Errorf("BackgroundColor = %v, %v", c, ok)
	}
	a.UnsetBackgroundColor()
	if _, ok := a.BackgroundColor(); ok {
		t.Error("UnsetBackgroundColor should clear it")
	}
}
