package ebitenstage

import (
	"fmt"
	"image"
	"image/color"
	"reflect"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/geom"
)

// textureTTL is how many submits an unused texture survives in the cache.
const textureTTL = 120

// Framebuffer is an ebiten image render target.
type Framebuffer struct {
	img *ebiten.Image
}

// Size implements [tableau.Framebuffer].
func (f *Framebuffer) Size() (int, int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image returns the backing ebiten image.
func (f *Framebuffer) Image() *ebiten.Image { return f.img }

type cachedTexture struct {
	img      *ebiten.Image
	lastUsed uint64
}

// Renderer draws tableau draw ops with ebiten. Clips are axis-aligned:
// a transformed clip quad is reduced to its bounding rectangle.
type Renderer struct {
	white    *ebiten.Image
	pool     layerPool
	textures map[image.Image]*cachedTexture
	submits  uint64

	verts []ebiten.Vertex
	inds  []uint16
}

// NewRenderer returns a renderer. Images are created lazily by ebiten, so
// this is safe to call before the game loop runs.
func NewRenderer() *Renderer {
	white := ebiten.NewImage(3, 3)
	white.Fill(color.White)
	return &Renderer{
		white:    white.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image),
		textures: make(map[image.Image]*cachedTexture),
	}
}

// NewFramebuffer implements [tableau.Renderer].
func (r *Renderer) NewFramebuffer(width, height int) (tableau.Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ebitenstage: %dx%d: %w", width, height, tableau.ErrNoFramebuffer)
	}
	return &Framebuffer{img: ebiten.NewImage(width, height)}, nil
}

// Submit implements [tableau.Renderer].
func (r *Renderer) Submit(fb tableau.Framebuffer, ops []tableau.DrawOp) error {
	f, ok := fb.(*Framebuffer)
	if !ok || f == nil || f.img == nil {
		return fmt.Errorf("ebitenstage: submit to %T: %w", fb, tableau.ErrNoFramebuffer)
	}
	r.submits++
	p := &pass{r: r, bounds: f.img.Bounds(), layers: []*ebiten.Image{f.img}, clips: []image.Rectangle{f.img.Bounds()}}
	for i := range ops {
		if err := p.exec(&ops[i]); err != nil {
			p.abort()
			return fmt.Errorf("ebitenstage: op %d (%s): %w", i, ops[i].Kind, err)
		}
	}
	p.finish()
	r.evictTextures()
	return nil
}

// ReadPixels implements [tableau.Renderer]. It only works while the game
// loop runs.
func (r *Renderer) ReadPixels(fb tableau.Framebuffer, rect image.Rectangle) (*image.RGBA, error) {
	f, ok := fb.(*Framebuffer)
	if !ok || f == nil || f.img == nil {
		return nil, fmt.Errorf("ebitenstage: read from %T: %w", fb, tableau.ErrNoFramebuffer)
	}
	rect = rect.Intersect(f.img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("ebitenstage: empty rectangle: %w", tableau.ErrReadPixels)
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	f.img.SubImage(rect).(*ebiten.Image).ReadPixels(out.Pix)
	return out, nil
}

// texture returns the ebiten copy of img, uploading it on first use.
func (r *Renderer) texture(img image.Image) *ebiten.Image {
	if ei, ok := img.(*ebiten.Image); ok {
		return ei
	}
	if !reflect.TypeOf(img).Comparable() {
		return ebiten.NewImageFromImage(img)
	}
	if ct, ok := r.textures[img]; ok {
		ct.lastUsed = r.submits
		return ct.img
	}
	ei := ebiten.NewImageFromImage(img)
	r.textures[img] = &cachedTexture{img: ei, lastUsed: r.submits}
	return ei
}

func (r *Renderer) evictTextures() {
	for key, ct := range r.textures {
		if r.submits-ct.lastUsed > textureTTL {
			ct.img.Deallocate()
			delete(r.textures, key)
		}
	}
}

// Dispose frees cached textures and pooled layers.
func (r *Renderer) Dispose() {
	for key, ct := range r.textures {
		ct.img.Deallocate()
		delete(r.textures, key)
	}
	r.pool.dispose()
}

// --- pass ---

type pass struct {
	r      *Renderer
	bounds image.Rectangle
	layers []*ebiten.Image
	clips  []image.Rectangle
}

// target returns the top layer restricted to the current clip.
func (p *pass) target() *ebiten.Image {
	layer := p.layers[len(p.layers)-1]
	return layer.SubImage(p.clips[len(p.clips)-1]).(*ebiten.Image)
}

func (p *pass) exec(op *tableau.DrawOp) error {
	switch op.Kind {
	case tableau.OpClear:
		if clip := p.clips[len(p.clips)-1]; !clip.Empty() {
			p.target().Fill(op.Color.NRGBA())
		}
	case tableau.OpColorQuad:
		p.drawQuad(op.Quad, p.r.white, p.r.white.Bounds(), premultiply(op.Color), ebiten.FilterNearest)
	case tableau.OpTextureQuad:
		if op.Texture == nil || op.Opacity == 0 {
			return nil
		}
		tex := p.r.texture(op.Texture)
		src := op.Source.Intersect(op.Texture.Bounds()).Sub(op.Texture.Bounds().Min)
		if _, ok := op.Texture.(*ebiten.Image); ok {
			src = op.Source
		}
		a := float32(op.Opacity) / 255
		p.drawQuad(op.Quad, tex, src, [4]float32{a, a, a, a}, filterFor(op.Filter))
	case tableau.OpPushClip:
		p.clips = append(p.clips, clipRect(op.Quad).Intersect(p.clips[len(p.clips)-1]))
	case tableau.OpPopClip:
		if len(p.clips) == 1 {
			return fmt.Errorf("pop-clip without push-clip")
		}
		p.clips = p.clips[:len(p.clips)-1]
	case tableau.OpPushGroup:
		p.layers = append(p.layers, p.r.pool.acquire(p.bounds.Dx(), p.bounds.Dy()))
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

func (p *pass) popGroup(opacity uint8) {
	layer := p.layers[len(p.layers)-1]
	p.layers = p.layers[:len(p.layers)-1]
	if opacity > 0 {
		var op ebiten.DrawImageOptions
		op.ColorScale.ScaleAlpha(float32(opacity) / 255)
		p.target().DrawImage(layer.SubImage(p.bounds).(*ebiten.Image), &op)
	}
	p.r.pool.release(layer)
}

func (p *pass) finish() {
	for len(p.layers) > 1 {
		p.popGroup(255)
	}
}

func (p *pass) abort() {
	for _, l := range p.layers[1:] {
		p.r.pool.release(l)
	}
	p.layers = p.layers[:1]
}

func (p *pass) drawQuad(q geom.Quad, src *ebiten.Image, sr image.Rectangle, c [4]float32, filter ebiten.Filter) {
	r := p.r
	r.verts = quadVertices(r.verts[:0], q, sr, c)
	r.inds = append(r.inds[:0], 0, 1, 2, 0, 2, 3)
	var op ebiten.DrawTrianglesOptions
	op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	op.Filter = filter
	p.target().DrawTriangles(r.verts, r.inds, src, &op)
}

// quadVertices appends the four corners of q mapped to the corners of sr,
// given in the source image's coordinates.
func quadVertices(dst []ebiten.Vertex, q geom.Quad, sr image.Rectangle, c [4]float32) []ebiten.Vertex {
	sx := [4]float32{float32(sr.Min.X), float32(sr.Max.X), float32(sr.Max.X), float32(sr.Min.X)}
	sy := [4]float32{float32(sr.Min.Y), float32(sr.Min.Y), float32(sr.Max.Y), float32(sr.Max.Y)}
	for i, v := range q.V {
		dst = append(dst, ebiten.Vertex{
			DstX: float32(v.X), DstY: float32(v.Y),
			SrcX: sx[i], SrcY: sy[i],
			ColorR: c[0], ColorG: c[1], ColorB: c[2], ColorA: c[3],
		})
	}
	return dst
}

// premultiply converts a straight-alpha color into premultiplied vertex
// color components.
func premultiply(c tableau.Color) [4]float32 {
	a := float32(c.A) / 255
	return [4]float32{float32(c.R) / 255 * a, float32(c.G) / 255 * a, float32(c.B) / 255 * a, a}
}

// clipRect rounds the bounds of q outwards to whole pixels.
func clipRect(q geom.Quad) image.Rectangle {
	return q.Bounds().Image()
}

func filterFor(f tableau.ScalingFilter) ebiten.Filter {
	if f == tableau.FilterNearest {
		return ebiten.FilterNearest
	}
	return ebiten.FilterLinear
}
