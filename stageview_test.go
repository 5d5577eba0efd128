package tableau

import (
	"testing"

	"github.com/phanxgames/tableau/geom"
)

func settledView(layout geom.Rect, scale float64) *StageView {
	v := NewStageView("test", layout, scale, nil)
	v.resetRedrawClip()
	return v
}

func TestNewViewStartsWithFullRedraw(t *testing.T) {
	v := NewStageView("main", geom.Rect{Width: 100, Height: 50}, 0, nil)
	if v.Scale != 1 {
		t.Errorf("Scale = %v, want 1", v.Scale)
	}
	clip, full, pending := v.RedrawClip()
	if !full || !pending || clip != (geom.Rect{Width: 100, Height: 50}) {
		t.Errorf("RedrawClip = %+v, %v, %v", clip, full, pending)
	}
}

func TestAddRedrawRectUnions(t *testing.T) {
	v := settledView(geom.Rect{Width: 100, Height: 100}, 1)
	if _, _, pending := v.RedrawClip(); pending {
		t.Fatal("reset view should have nothing pending")
	}
	v.addRedrawRect(geom.Rect{X: 10, Y: 10, Width: 10, Height: 10})
	v.addRedrawRect(geom.Rect{X: 40, Y: 30, Width: 5, Height: 5})
	clip, full, pending := v.RedrawClip()
	if full || !pending {
		t.Fatalf("full=%v pending=%v", full, pending)
	}
	if want := (geom.Rect{X: 10, Y: 10, Width: 35, Height: 25}); clip != want {
		t.Errorf("clip = %+v, want %+v", clip, want)
	}
}

func TestAddRedrawRectOrderIndependent(t *testing.T) {
	rects := []geom.Rect{
		{X: 1.5, Y: 2, Width: 3, Height: 4},
		{X: 50, Y: 60, Width: 1, Height: 1},
		{X: 20, Y: 0.25, Width: 7.5, Height: 9},
	}
	forward := settledView(geom.Rect{Width: 100, Height: 100}, 1)
	backward := settledView(geom.Rect{Width: 100, Height: 100}, 1)
	for i := range rects {
		forward.addRedrawRect(rects[i])
		backward.addRedrawRect(rects[len(rects)-1-i])
	}
	a, _, _ := forward.RedrawClip()
	b, _, _ := backward.RedrawClip()
	if a != b {
		t.Errorf("clip depends on order: %+v vs %+v", a, b)
	}
}

func TestAddRedrawRectRoundsOutwards(t *testing.T) {
	v := settledView(geom.Rect{Width: 100, Height: 100}, 2)
	v.addRedrawRect(geom.Rect{X: 1.2, Y: 1.7, Width: 2, Height: 2})
	clip, _, _ := v.RedrawClip()
	if want := (geom.Rect{X: 2, Y: 3, Width: 5, Height: 5}); clip != want {
		t.Errorf("clip = %+v, want %+v", clip, want)
	}
}

func TestAddRedrawRectOutsideViewIgnored(t *testing.T) {
	v := settledView(geom.Rect{X: 100, Width: 100, Height: 100}, 1)
	v.addRedrawRect(geom.Rect{Width: 50, Height: 50})
	if _, _, pending := v.RedrawClip(); pending {
		t.Error("a rectangle outside the view should be ignored")
	}
	v.addRedrawRect(geom.Rect{X: 150, Y: 10, Width: 10, Height: 10})
	if clip, _, _ := v.RedrawClip(); clip != (geom.Rect{X: 50, Y: 10, Width: 10, Height: 10}) {
		t.Errorf("clip = %+v, want view-relative pixels", clip)
	}
}

func TestAddRedrawRectPromotesToFull(t *testing.T) {
	v := settledView(geom.Rect{Width: 100, Height: 100}, 1)
	v.addRedrawRect(geom.Rect{Width: 100, Height: 60})
	v.addRedrawRect(geom.Rect{Y: 50, Width: 100, Height: 50})
	if _, full, _ := v.RedrawClip(); !full {
		t.Error("covering the view should promote to a full redraw")
	}
	v.addRedrawRect(geom.Rect{X: 1, Y: 1, Width: 1, Height: 1})
	if _, full, _ := v.RedrawClip(); !full {
		t.Error("a full redraw absorbs later rectangles")
	}
}

func TestViewToStage(t *testing.T) {
	v := settledView(geom.Rect{X: 10, Y: 20, Width: 100, Height: 100}, 2)
	got := v.viewToStage(geom.Rect{X: 4, Y: 6, Width: 10, Height: 8})
	if want := (geom.Rect{X: 12, Y: 23, Width: 5, Height: 4}); got != want {
		t.Errorf("viewToStage = %+v, want %+v", got, want)
	}
}

// --- Pick id colors ---

func TestPickIDColorRoundTrip(t *testing.T) {
	for _, id := range []int{1, 255, 256, 70000, maxColorPickRecords} {
		c := pickIDColor(id)
		if c.A != 255 {
			t.Errorf("id %d: alpha = %d", id, c.A)
		}
		if got := pickIDFromColor(c.R, c.G, c.B); got != id {
			t.Errorf("id %d decoded as %d", id, got)
		}
	}
}
