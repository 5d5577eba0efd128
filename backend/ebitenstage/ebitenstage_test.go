package ebitenstage

import (
	"image"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/geom"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {64, 64}, {65, 128}, {640, 1024},
	}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPoolKeyDistinct(t *testing.T) {
	if poolKey(64, 128) == poolKey(128, 64) {
		t.Error("pool keys should distinguish width and height")
	}
}

func TestPremultiply(t *testing.T) {
	got := premultiply(tableau.Color{R: 255, G: 0, B: 255, A: 51})
	want := [4]float32{0.2, 0, 0.2, 0.2}
	for i := range got {
		if d := got[i] - want[i]; d > 1e-6 || d < -1e-6 {
			t.Errorf("component %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestQuadVerticesMapSourceCorners(t *testing.T) {
	q := geom.Rect{X: 10, Y: 20, Width: 30, Height: 40}.Quad()
	verts := quadVertices(nil, q, image.Rect(1, 2, 5, 8), [4]float32{1, 1, 1, 1})
	if len(verts) != 4 {
		t.Fatalf("len = %d, want 4", len(verts))
	}
	want := []ebiten.Vertex{
		{DstX: 10, DstY: 20, SrcX: 1, SrcY: 2},
		{DstX: 40, DstY: 20, SrcX: 5, SrcY: 2},
		{DstX: 40, DstY: 60, SrcX: 5, SrcY: 8},
		{DstX: 10, DstY: 60, SrcX: 1, SrcY: 8},
	}
	for i, w := range want {
		v := verts[i]
		if v.DstX != w.DstX || v.DstY != w.DstY || v.SrcX != w.SrcX || v.SrcY != w.SrcY {
			t.Errorf("vertex %d = %+v, want %+v", i, v, w)
		}
	}
}

func TestClipRectRoundsOutward(t *testing.T) {
	q := geom.Rect{X: 1.5, Y: 2.2, Width: 3, Height: 3}.Quad()
	if got, want := clipRect(q), image.Rect(1, 2, 5, 6); got != want {
		t.Errorf("clipRect = %v, want %v", got, want)
	}
}

func TestFilterFor(t *testing.T) {
	if filterFor(tableau.FilterNearest) != ebiten.FilterNearest {
		t.Error("nearest should map to ebiten.FilterNearest")
	}
	if filterFor(tableau.FilterLinear) != ebiten.FilterLinear || filterFor(tableau.FilterTrilinear) != ebiten.FilterLinear {
		t.Error("linear filters should map to ebiten.FilterLinear")
	}
}

func TestBackendIsSingleStage(t *testing.T) {
	b := &Backend{}
	if b.SupportsMultipleStages() {
		t.Error("ebiten backend drives a single window")
	}
	if b.Name() != "ebiten" {
		t.Errorf("Name = %q", b.Name())
	}
}
