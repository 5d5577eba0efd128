// Package softrender is a CPU implementation of [tableau.Renderer].
//
// Framebuffers are plain *image.RGBA. Solid quads and clip masks are
// rasterized with fogleman/gg, textured quads are resampled with
// golang.org/x/image/draw through an affine transform, and groups are
// drawn into transparent layers composited with their opacity on pop.
package softrender

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync/atomic"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/geom"
)

// Framebuffer is an RGBA render target.
type Framebuffer struct {
	img *image.RGBA
}

// Size implements [tableau.Framebuffer].
func (f *Framebuffer) Size() (int, int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image returns the backing image. It is only stable between submits.
func (f *Framebuffer) Image() *image.RGBA { return f.img }

// NewFramebuffer wraps an existing image as a framebuffer.
func NewFramebuffer(img *image.RGBA) *Framebuffer { return &Framebuffer{img: img} }

// Renderer executes draw ops on the CPU. It holds no per-frame state and
// may be shared by every stage of a backend.
type Renderer struct {
	submits atomic.Uint64
	ops     atomic.Uint64
}

// New returns a renderer.
func New() *Renderer { return &Renderer{} }

// NewFramebuffer implements [tableau.Renderer].
func (r *Renderer) NewFramebuffer(width, height int) (tableau.Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("softrender: %dx%d: %w", width, height, tableau.ErrNoFramebuffer)
	}
	return &Framebuffer{img: image.NewRGBA(image.Rect(0, 0, width, height))}, nil
}

// Submit implements [tableau.Renderer].
func (r *Renderer) Submit(fb tableau.Framebuffer, ops []tableau.DrawOp) error {
	f, ok := fb.(*Framebuffer)
	if !ok || f == nil || f.img == nil {
		return fmt.Errorf("softrender: submit to %T: %w", fb, tableau.ErrNoFramebuffer)
	}
	r.submits.Add(1)
	r.ops.Add(uint64(len(ops)))

	p := newPass(f.img)
	for i := range ops {
		if err := p.exec(&ops[i]); err != nil {
			return fmt.Errorf("softrender: op %d (%s): %w", i, ops[i].Kind, err)
		}
	}
	p.finish()
	return nil
}

// ReadPixels implements [tableau.Renderer]. The result has its origin at
// (0, 0).
func (r *Renderer) ReadPixels(fb tableau.Framebuffer, rect image.Rectangle) (*image.RGBA, error) {
	f, ok := fb.(*Framebuffer)
	if !ok || f == nil || f.img == nil {
		return nil, fmt.Errorf("softrender: read from %T: %w", fb, tableau.ErrNoFramebuffer)
	}
	rect = rect.Intersect(f.img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("softrender: empty rectangle: %w", tableau.ErrReadPixels)
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), f.img, rect.Min, draw.Src)
	return out, nil
}

// Stats returns the number of submits and draw ops executed so far.
func (r *Renderer) Stats() (submits, ops uint64) {
	return r.submits.Load(), r.ops.Load()
}

// --- pass ---

// pass is the state of one Submit: the layer stack for groups and the clip
// stack. A nil mask means unclipped.
type pass struct {
	bounds image.Rectangle
	layers []*image.RGBA
	clips  []*image.Alpha
}

func newPass(dst *image.RGBA) *pass {
	return &pass{bounds: dst.Bounds(), layers: []*image.RGBA{dst}, clips: []*image.Alpha{nil}}
}

func (p *pass) target() *image.RGBA { return p.layers[len(p.layers)-1] }

func (p *pass) clip() *image.Alpha { return p.clips[len(p.clips)-1] }

func (p *pass) exec(op *tableau.DrawOp) error {
	switch op.Kind {
	case tableau.OpClear:
		p.clear(op.Color)
	case tableau.OpColorQuad:
		p.fillQuad(op.Quad, op.Color)
	case tableau.OpTextureQuad:
		p.drawTexture(op)
	case tableau.OpPushClip:
		p.pushClip(op.Quad)
	case tableau.OpPopClip:
		if len(p.clips) == 1 {
			return fmt.Errorf("pop-clip without push-clip")
		}
		p.clips = p.clips[:len(p.clips)-1]
	case tableau.OpPushGroup:
		p.layers = append(p.layers, image.NewRGBA(p.bounds))
	case tableau.OpPopGroup:
		if len(p.layers) == 1 {
			return fmt.Errorf("pop-group without push-group")
		}
		p.popGroup(op.Opacity)
	default:
		return fmt.Errorf("unknown draw op %d", op.Kind)
	}
	return nil
}

// finish composites groups left open at the end of the ops.
func (p *pass) finish() {
	for len(p.layers) > 1 {
		p.popGroup(255)
	}
}

// clear replaces the target with c. Under a clip only covered pixels
// change, partially covered ones are blended by their coverage.
func (p *pass) clear(c tableau.Color) {
	m := p.clip()
	if m == nil {
		draw.Draw(p.target(), p.bounds, image.NewUniform(c.NRGBA()), image.Point{}, draw.Src)
		return
	}
	dst := p.target()
	pc := color.RGBAModel.Convert(c.NRGBA()).(color.RGBA)
	lerp := func(d, s, a uint8) uint8 {
		return uint8((int(d)*(255-int(a)) + int(s)*int(a) + 127) / 255)
	}
	r := m.Bounds().Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			switch a := m.AlphaAt(x, y).A; a {
			case 0:
			case 255:
				dst.SetRGBA(x, y, pc)
			default:
				d := dst.RGBAAt(x, y)
				dst.SetRGBA(x, y, color.RGBA{lerp(d.R, pc.R, a), lerp(d.G, pc.G, a), lerp(d.B, pc.B, a), lerp(d.A, pc.A, a)})
			}
		}
	}
}

func quadPath(dc *gg.Context, q geom.Quad) {
	dc.NewSubPath()
	dc.MoveTo(q.V[0].X, q.V[0].Y)
	for _, v := range q.V[1:] {
		dc.LineTo(v.X, v.Y)
	}
	dc.ClosePath()
}

func (p *pass) fillQuad(q geom.Quad, c tableau.Color) {
	if c.A == 0 {
		return
	}
	if q.IsAxisAligned() && isPixelAligned(q) {
		// Fast path: exact coverage, no rasterizer.
		r := pixelRect(q).Intersect(p.bounds)
		src := image.NewUniform(c.NRGBA())
		if m := p.clip(); m != nil {
			draw.DrawMask(p.target(), r, src, image.Point{}, m, r.Min, draw.Over)
		} else {
			draw.Draw(p.target(), r, src, image.Point{}, draw.Over)
		}
		return
	}
	dc := gg.NewContextForRGBA(p.target())
	if m := p.clip(); m != nil {
		_ = dc.SetMask(m)
	}
	dc.SetColor(c.NRGBA())
	quadPath(dc, q)
	dc.Fill()
}

func (p *pass) pushClip(q geom.Quad) {
	var mask *image.Alpha
	if q.IsAxisAligned() && isPixelAligned(q) {
		mask = image.NewAlpha(p.bounds)
		draw.Draw(mask, pixelRect(q).Intersect(p.bounds), image.Opaque, image.Point{}, draw.Src)
	} else {
		dc := gg.NewContext(p.bounds.Dx(), p.bounds.Dy())
		dc.SetColor(color.Black)
		quadPath(dc, q)
		dc.Fill()
		mask = dc.AsMask()
	}
	if parent := p.clip(); parent != nil {
		intersectMasks(mask, parent)
	}
	p.clips = append(p.clips, mask)
}

// intersectMasks multiplies dst by src in place.
func intersectMasks(dst, src *image.Alpha) {
	for i := range dst.Pix {
		dst.Pix[i] = uint8(uint32(dst.Pix[i]) * uint32(src.Pix[i]) / 255)
	}
}

func (p *pass) popGroup(opacity uint8) {
	layer := p.target()
	p.layers = p.layers[:len(p.layers)-1]
	if opacity == 0 {
		return
	}
	var mask image.Image
	if opacity < 255 {
		mask = image.NewUniform(color.Alpha{A: opacity})
	}
	draw.DrawMask(p.target(), p.bounds, layer, image.Point{}, mask, image.Point{}, draw.Over)
}

func (p *pass) drawTexture(op *tableau.DrawOp) {
	src := op.Source.Intersect(op.Texture.Bounds())
	if src.Empty() || op.Opacity == 0 {
		return
	}
	q := op.Quad
	w, h := float64(src.Dx()), float64(src.Dy())
	a := (q.V[1].X - q.V[0].X) / w
	b := (q.V[3].X - q.V[0].X) / h
	d := (q.V[1].Y - q.V[0].Y) / w
	e := (q.V[3].Y - q.V[0].Y) / h
	s2d := f64.Aff3{
		a, b, q.V[0].X - a*float64(src.Min.X) - b*float64(src.Min.Y),
		d, e, q.V[0].Y - d*float64(src.Min.X) - e*float64(src.Min.Y),
	}

	var interp draw.Interpolator = draw.NearestNeighbor
	if op.Filter != tableau.FilterNearest {
		interp = draw.ApproxBiLinear
	}
	opts := &draw.Options{}
	if m := maskWithOpacity(p.clip(), op.Opacity); m != nil {
		opts.DstMask = m
	}
	interp.Transform(p.target(), s2d, op.Texture, src, draw.Over, opts)
}

func isPixelAligned(q geom.Quad) bool {
	for _, v := range q.V {
		if !geom.FloatEqual(v.X, math.Round(v.X)) || !geom.FloatEqual(v.Y, math.Round(v.Y)) {
			return false
		}
	}
	return true
}

// pixelRect rounds a pixel-aligned quad to its integer rectangle.
func pixelRect(q geom.Quad) image.Rectangle {
	b := q.Bounds()
	return image.Rect(
		int(math.Round(b.X)), int(math.Round(b.Y)),
		int(math.Round(b.X+b.Width)), int(math.Round(b.Y+b.Height)),
	)
}

// maskWithOpacity returns the clip scaled by opacity, or nil when neither
// restricts drawing.
func maskWithOpacity(clip *image.Alpha, opacity uint8) image.Image {
	switch {
	case clip == nil && opacity == 255:
		return nil
	case clip == nil:
		return image.NewUniform(color.Alpha{A: opacity})
	case opacity == 255:
		return clip
	}
	return &scaledMask{clip: clip, scale: uint32(opacity)}
}

type scaledMask struct {
	clip  *image.Alpha
	scale uint32
}

func (m *scaledMask) ColorModel() color.Model { return color.AlphaModel }
func (m *scaledMask) Bounds() image.Rectangle { return m.clip.Bounds() }
func (m *scaledMask) At(x, y int) color.Color {
	a := uint32(m.clip.AlphaAt(x, y).A)
	return color.Alpha{A: uint8(a * m.scale / 255)}
}
