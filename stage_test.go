package tableau_test

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/backend/headless"
)

func TestStageConfigDefaults(t *testing.T) {
	ctx, err := tableau.NewContext(headless.New())
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	s, err := ctx.NewStage(tableau.StageConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if w, h := s.Size(); w != 640 || h != 480 {
		t.Errorf("size = %vx%v, want 640x480", w, h)
	}
	if s.Color() != tableau.ColorBlack {
		t.Errorf("color = %v, want black", s.Color())
	}
	if !s.IsRealized() || s.IsShown() {
		t.Error("a new stage is realized and hidden")
	}
	if s.Stage() != s {
		t.Error("the stage actor belongs to its stage")
	}
}

func TestStageHooks(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	var calls []string
	before := h.stage.OnBeforePaint(func(*tableau.Stage) { calls = append(calls, "before") })
	h.stage.OnAfterPaint(func(*tableau.Stage) { calls = append(calls, "after") })
	var stats tableau.FrameStats
	h.stage.OnAfterUpdate(func(_ *tableau.Stage, st tableau.FrameStats) {
		stats = st
		calls = append(calls, "update")
	})

	h.frame()
	if got := strings.Join(calls, ","); got != "before,after,update" {
		t.Errorf("hooks = %s", got)
	}
	if stats.Views != 1 || stats.PaintedActors == 0 {
		t.Errorf("stats = %+v", stats)
	}
	if h.stage.LastFrameStats() != stats {
		t.Error("LastFrameStats should match the hook argument")
	}
	if h.stage.Frames() != 1 {
		t.Errorf("Frames = %d", h.stage.Frames())
	}

	before.Remove()
	before.Remove()
	calls = nil
	h.stage.QueueFullRedraw()
	h.frame()
	if got := strings.Join(calls, ","); got != "after,update" {
		t.Errorf("hooks after Remove = %s", got)
	}
}

func TestSetTitle(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Title: "one"})
	h.stage.SetTitle("two")
	if h.stage.Title() != "two" || h.win.Title() != "two" {
		t.Errorf("title = %q / %q", h.stage.Title(), h.win.Title())
	}
}

func TestShowHide(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	if !h.stage.IsShown() || !h.win.IsShown() || !h.stage.IsMapped() {
		t.Fatal("harness stage should be shown")
	}
	h.stage.Hide()
	if h.stage.IsShown() || h.win.IsShown() || h.stage.IsMapped() {
		t.Error("Hide should unmap the stage and its window")
	}
}

// --- StageManager ---

func TestStageManagerDefaultStage(t *testing.T) {
	ctx, err := tableau.NewContext(headless.New())
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	m := ctx.StageManager()
	if m.DefaultStage() != nil {
		t.Fatal("no default stage before the first stage")
	}

	a, _ := ctx.NewStage(tableau.StageConfig{Title: "a"})
	b, _ := ctx.NewStage(tableau.StageConfig{Title: "b"})
	if m.DefaultStage() != a || m.Len() != 2 {
		t.Fatalf("default = %v, len = %d", m.DefaultStage(), m.Len())
	}

	m.SetDefaultStage(b)
	if m.DefaultStage() != b {
		t.Error("SetDefaultStage should switch the default")
	}
	m.SetDefaultStage(nil)
	if m.DefaultStage() != b {
		t.Error("unmanaged stages are ignored")
	}

	b.Destroy()
	b.Destroy()
	if m.DefaultStage() != a || m.Len() != 1 {
		t.Errorf("after destroy: default = %v, len = %d", m.DefaultStage(), m.Len())
	}
	if stages := m.Stages(); len(stages) != 1 || stages[0] != a {
		t.Errorf("Stages = %v", stages)
	}
}

func TestDestroyStageDestroysActors(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	a := rect("a", 0, 0, 10, 10, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()

	h.stage.Destroy()
	if !a.IsDestroyed() || !h.stage.IsDestroyed() || h.stage.IsRealized() {
		t.Error("Destroy should tear down the stage and its actors")
	}
	h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion})
	if h.stage.NumQueuedEvents() != 0 {
		t.Error("a destroyed stage accepts no events")
	}
	if h.frame() {
		t.Error("a destroyed stage should not tick")
	}
}

// --- Capture ---

func TestCaptureHiddenStage(t *testing.T) {
	ctx, err := tableau.NewContext(headless.New())
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	s, err := ctx.NewStage(tableau.StageConfig{Width: 20, Height: 20})
	if err != nil {
		t.Fatal(err)
	}
	group := tableau.NewActor("group")
	group.AddChild(rect("a", 5, 5, 10, 10, tableau.ColorRed))
	s.AddChild(group)
	hidden := rect("hidden", 0, 0, 3, 3, tableau.ColorBlue)
	hidden.Hide()
	s.AddChild(hidden)

	img, err := s.Capture(image.Rect(0, 0, 20, 20))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if got := img.RGBAAt(10, 10); !nearColor(got, rgbaRed) {
		t.Errorf("captured pixel = %v", got)
	}
	if got := img.RGBAAt(1, 1); !nearColor(got, rgbaBlack) {
		t.Errorf("captured background = %v", got)
	}
	if s.IsMapped() || group.IsMapped() {
		t.Error("Capture must not map the stage")
	}

	_, err = s.Capture(image.Rect(50, 50, 60, 60))
	var se *tableau.StageError
	if !errors.As(err, &se) || !errors.Is(err, tableau.ErrReadPixels) {
		t.Errorf("out of bounds capture: %v", err)
	}
}

// --- Errors ---

func TestStageErrorFormat(t *testing.T) {
	err := &tableau.StageError{Stage: `stage "main"`, Op: "realize", Err: tableau.ErrStageRealize}
	if got := err.Error(); got != `tableau: stage "main" realize: tableau: stage realize failed` {
		t.Errorf("Error = %q", got)
	}
	if !errors.Is(err, tableau.ErrStageRealize) {
		t.Error("StageError should unwrap to its cause")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := tableau.OpenBackend("no-such-backend")
	if !errors.Is(err, tableau.ErrNoBackend) {
		t.Errorf("OpenBackend = %v, want ErrNoBackend", err)
	}
	b, err := tableau.OpenBackend("headless")
	if err != nil || b.Name() != "headless" {
		t.Errorf("OpenBackend(headless) = %v, %v", b, err)
	}
}
