package headless

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/geom"
)

type harness struct {
	t     *testing.T
	b     *Backend
	ctx   *tableau.Context
	now   time.Time
	stage *tableau.Stage
	win   *Window
}

func newHarness(t *testing.T, cfg tableau.StageConfig, opts ...Option) *harness {
	t.Helper()
	h := &harness{t: t, b: New(opts...), now: time.Unix(1000, 0)}
	ctx, err := tableau.NewContext(h.b, tableau.WithNow(func() time.Time { return h.now }))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	h.ctx = ctx
	t.Cleanup(func() { ctx.Close() })

	s, err := ctx.NewStage(cfg)
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}
	h.stage = s
	h.win = s.Window().(*Window)
	s.Show()
	return h
}

// frame advances the fake clock by one refresh and runs a tick when due.
func (h *harness) frame() bool {
	h.t.Helper()
	h.now = h.now.Add(h.b.RefreshInterval())
	return h.ctx.Clock().Iterate()
}

func (h *harness) frames(n int) {
	h.t.Helper()
	for range n {
		h.frame()
	}
}

func (h *harness) pixel(x, y int) color.RGBA {
	h.t.Helper()
	img := h.win.Image(0)
	if img == nil {
		h.t.Fatal("window has no framebuffer")
	}
	return img.RGBAAt(x, y)
}

func near(a, b color.RGBA) bool {
	d := func(x, y uint8) bool { return int(x)-int(y) <= 1 && int(y)-int(x) <= 1 }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func (h *harness) expectPixel(x, y int, want color.RGBA) {
	h.t.Helper()
	if got := h.pixel(x, y); !near(got, want) {
		h.t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
	}
}

var (
	black = color.RGBA{0, 0, 0, 255}
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	green = color.RGBA{0, 255, 0, 255}
)

func box(name string, x, y, w, hgt float64, c tableau.Color) *tableau.Actor {
	a := tableau.NewActor(name)
	a.SetPosition(x, y)
	a.SetSize(w, hgt)
	a.SetBackgroundColor(c)
	return a
}

func TestPaintsActorPixels(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Width: 100, Height: 100})
	h.stage.AddChild(box("red", 10, 10, 50, 50, tableau.ColorRed))

	if !h.frame() {
		t.Fatal("expected a tick after Show")
	}
	h.expectPixel(20, 20, red)
	h.expectPixel(5, 5, black)
	h.expectPixel(70, 70, black)
	if h.win.Presents() != 1 {
		t.Errorf("Presents = %d, want 1", h.win.Presents())
	}
}

func TestIdleStageDoesNotTick(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Width: 32, Height: 32})
	h.frame()
	for i := range 3 {
		if h.frame() {
			t.Fatalf("tick %d ran with nothing to do", i)
		}
	}
	if h.win.Presents() != 1 {
		t.Errorf("Presents = %d, want 1", h.win.Presents())
	}
}

func TestOpacityGroupBlendsOnce(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Width: 100, Height: 100})
	group := tableau.NewActor("group")
	group.SetPosition(0, 0)
	group.SetOpacity(128)
	group.AddChild(box("under", 0, 0, 30, 30, tableau.ColorRed))
	group.AddChild(box("over", 20, 0, 30, 30, tableau.ColorBlue))
	h.stage.AddChild(group)
	h.frame()

	// The overlap shows the top child at half opacity, not the
	// bottom one bleeding through.
	h.expectPixel(25, 10, color.RGBA{0, 0, 128, 255})
	h.expectPixel(5, 10, color.RGBA{128, 0, 0, 255})

	group.SetOffscreenRedirect(tableau.RedirectNever)
	h.frame()
	h.expectPixel(25, 10, color.RGBA{64, 0, 128, 255})
}

func TestSiblingOpacityFollowsStackingOrder(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Width: 60, Height: 30})
	c1 := box("c1", 0, 0, 30, 30, tableau.ColorRed)
	c2 := box("c2", 10, 0, 30, 30, tableau.ColorBlue)
	c1.SetOpacity(128)
	c2.SetOpacity(128)
	h.stage.AddChild(c1)
	h.stage.AddChild(c2)
	h.frame()
	h.expectPixel(20, 10, color.RGBA{64, 0, 128, 255})

	h.stage.SetChildAboveSibling(c1, c2)
	h.frame()
	h.expectPixel(20, 10, color.RGBA{128, 0, 64, 255})
}

func TestIncrementalRedrawKeepsUndamagedPixels(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Width: 100, Height: 100})
	a := box("a", 10, 10, 20, 20, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()

	// Scribble outside the actor; a clipped redraw must leave it alone.
	h.win.Image(0).SetRGBA(90, 90, green)
	a.SetBackgroundColor(tableau.ColorBlue)
	h.frame()

	h.expectPixel(15, 15, blue)
	h.expectPixel(90, 90, green)

	h.stage.QueueFullRedraw()
	h.frame()
	h.expectPixel(90, 90, black)
}

func TestMovedActorDamagesOldArea(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Width: 100, Height: 100})
	a := box("a", 10, 10, 20, 20, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()

	a.SetPosition(60, 60)
	h.frame()
	h.expectPixel(15, 15, black)
	h.expectPixel(65, 65, red)
}

func TestScaledViews(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{
		Width: 100, Height: 50,
		Views: []tableau.ViewConfig{
			{Name: "left", Layout: geom.Rect{Width: 50, Height: 50}, Scale: 1},
			{Name: "right", Layout: geom.Rect{X: 50, Width: 50, Height: 50}, Scale: 2},
		},
	})
	h.stage.AddChild(box("r", 40, 10, 20, 10, tableau.ColorRed))
	h.frame()

	left, right := h.win.Image(0), h.win.Image(1)
	if left.Bounds().Dx() != 50 || right.Bounds().Dx() != 100 {
		t.Fatalf("view sizes = %v, %v", left.Bounds(), right.Bounds())
	}
	if got := left.RGBAAt(45, 15); !near(got, red) {
		t.Errorf("left view (45,15) = %v, want red", got)
	}
	// Stage (55, 15) is framebuffer (10, 30) of the doubled right view.
	if got := right.RGBAAt(10, 30); !near(got, red) {
		t.Errorf("right view (10,30) = %v, want red", got)
	}
	if got := right.RGBAAt(30, 30); !near(got, black) {
		t.Errorf("right view (30,30) = %v, want black", got)
	}
}

func TestColorPickMatchesAnalytic(t *testing.T) {
	for _, strategy := range []tableau.PickStrategy{tableau.PickAnalytic, tableau.PickColorBuffer} {
		h := newHarness(t, tableau.StageConfig{Width: 100, Height: 100, PickStrategy: strategy})
		under := box("under", 10, 10, 40, 40, tableau.ColorRed)
		over := box("over", 30, 30, 40, 40, tableau.ColorBlue)
		h.stage.AddChild(under)
		h.stage.AddChild(over)
		h.frame()

		cases := []struct {
			x, y float64
			want *tableau.Actor
		}{
			{15, 15, under},
			{35, 35, over},
			{65, 65, over},
			{90, 5, h.stage.Actor},
		}
		for _, c := range cases {
			if got := h.stage.GetActorAtPos(tableau.PickAll, c.x, c.y); got != c.want {
				t.Errorf("strategy %d pick (%v,%v) = %v, want %v", strategy, c.x, c.y, got.Name, c.want.Name)
			}
		}

		over.Destroy()
		h.frame()
		if got := h.stage.GetActorAtPos(tableau.PickAll, 35, 35); got != under {
			t.Errorf("strategy %d after destroy = %v, want under", strategy, got.Name)
		}
	}
}

func TestCaptureAndScreenshot(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, tableau.StageConfig{Width: 40, Height: 40, ScreenshotDir: dir})
	h.stage.AddChild(box("r", 0, 0, 10, 10, tableau.ColorRed))
	h.frame()

	img, err := h.stage.Capture(image.Rect(0, 0, 20, 20))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if img.Bounds().Dx() != 20 || !near(img.RGBAAt(5, 5), red) || !near(img.RGBAAt(15, 15), black) {
		t.Errorf("capture mismatch: bounds=%v (5,5)=%v (15,15)=%v", img.Bounds(), img.RGBAAt(5, 5), img.RGBAAt(15, 15))
	}

	if _, err := h.stage.Capture(image.Rect(100, 100, 120, 120)); !errors.Is(err, tableau.ErrReadPixels) {
		t.Errorf("out-of-stage capture err = %v, want ErrReadPixels", err)
	}

	h.stage.Screenshot("after paint")
	h.frame()
	files, _ := filepath.Glob(filepath.Join(dir, "*_after_paint.png"))
	if len(files) != 1 {
		t.Errorf("screenshot files = %v, want one", files)
	}
}

func TestRealizeFailureReturnsStageError(t *testing.T) {
	b := New(WithRealizeError(errors.New("no display")))
	ctx, err := tableau.NewContext(b)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	_, err = ctx.NewStage(tableau.StageConfig{Title: "main"})
	if !errors.Is(err, tableau.ErrStageRealize) {
		t.Fatalf("err = %v, want ErrStageRealize", err)
	}
	var se *tableau.StageError
	if !errors.As(err, &se) || se.Op != "realize" {
		t.Errorf("err = %#v, want *StageError for realize", err)
	}
	if ctx.StageManager().Len() != 0 {
		t.Error("failed stage should not be managed")
	}
}

func TestSingleStageBackend(t *testing.T) {
	ctx, err := tableau.NewContext(New(WithSingleStage()))
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	if _, err := ctx.NewStage(tableau.StageConfig{}); err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.NewStage(tableau.StageConfig{}); !errors.Is(err, tableau.ErrMultipleStagesUnsupported) {
		t.Errorf("second stage err = %v", err)
	}
}

func TestPresentationTiming(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Width: 16, Height: 16}, WithRefreshRate(50))
	a := box("a", 0, 0, 4, 4, tableau.ColorRed)
	h.stage.AddChild(a)
	h.frame()
	first := h.win.LastPresentation()

	a.SetPosition(5, 5)
	h.frame()
	if got := h.win.LastPresentation().Sub(first); got != 20*time.Millisecond {
		t.Errorf("presentation interval = %v, want 20ms", got)
	}
	next, ok := h.win.NextPresentationTime()
	if !ok || !next.After(h.now) {
		t.Errorf("next presentation %v should be after now %v", next, h.now)
	}
}

func TestSimulatedResize(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{Width: 50, Height: 50})
	h.frame()
	h.win.SimulateResize(80, 30)
	h.frame()
	if b := h.win.Image(0).Bounds(); b.Dx() != 80 || b.Dy() != 30 {
		t.Errorf("framebuffer = %v, want 80x30", b)
	}
	if w, hh := h.stage.Size(); w != 80 || hh != 30 {
		t.Errorf("stage size = %vx%v", w, hh)
	}
}

func TestRegistered(t *testing.T) {
	if !slices.Contains(tableau.Backends(), "headless") {
		t.Fatalf("Backends() = %v", tableau.Backends())
	}
	b, err := tableau.OpenBackend("headless")
	if err != nil || b.Name() != "headless" {
		t.Errorf("OpenBackend = %v, %v", b, err)
	}
}
