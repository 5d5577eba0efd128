package tableau

import (
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/phanxgames/tableau/geom"
)

// Content paints an actor's content area. The actor calls PaintContent
// between its background and its children; the delegate appends nodes to
// root in the actor's local coordinates.
type Content interface {
	PaintContent(a *Actor, root *PaintNode, pc *PaintContext)
	// PreferredSize reports the content's natural size, if it has one.
	PreferredSize() (width, height float64, ok bool)
}

// ContentAttacher is implemented by content that wants to know which
// actors display it.
type ContentAttacher interface {
	Attached(a *Actor)
	Detached(a *Actor)
}

// ContentBase tracks the actors a content is attached to and pushes
// invalidations to them. Embed it in Content implementations.
type ContentBase struct {
	actors []ActorHandle
}

// Attached records a.
func (c *ContentBase) Attached(a *Actor) {
	c.actors = append(c.actors, a.Handle())
}

// Detached forgets a, and any actor that is gone.
func (c *ContentBase) Detached(a *Actor) {
	out := c.actors[:0]
	for _, h := range c.actors {
		if got := h.Get(); got != nil && got != a {
			out = append(out, h)
		}
	}
	clear(c.actors[len(out):])
	c.actors = out
}

func (c *ContentBase) each(fn func(a *Actor)) {
	for _, h := range c.actors {
		if a := h.Get(); a != nil {
			fn(a)
		}
	}
}

// Invalidate queues a redraw of every attached actor.
func (c *ContentBase) Invalidate() {
	c.each(func(a *Actor) { a.contentInvalidated() })
}

// InvalidateSize tells attached actors the preferred size changed.
func (c *ContentBase) InvalidateSize() {
	c.each(func(a *Actor) { a.contentSizeInvalidated() })
}

// --- Actor content state ---

// SetContent attaches c, detaching the previous content.
func (a *Actor) SetContent(c Content) {
	if a.content == c {
		return
	}
	if d, ok := a.content.(ContentAttacher); ok {
		d.Detached(a)
	}
	a.content = c
	if d, ok := c.(ContentAttacher); ok {
		d.Attached(a)
	}
	if a.requestMode == RequestContentSize {
		a.QueueRelayout()
	}
	a.QueueRedraw()
}

// Content returns the content delegate, or nil.
func (a *Actor) Content() Content { return a.content }

// SetContentGravity anchors the content inside the allocation.
func (a *Actor) SetContentGravity(g ContentGravity) {
	if a.contentGravity == g {
		return
	}
	a.contentGravity = g
	a.QueueRedraw()
}

// ContentGravity returns the content anchor.
func (a *Actor) ContentGravity() ContentGravity { return a.contentGravity }

// SetContentRepeat tiles the content along the given axes.
func (a *Actor) SetContentRepeat(r ContentRepeat) {
	if a.contentRepeat == r {
		return
	}
	a.contentRepeat = r
	a.QueueRedraw()
}

// ContentRepeat returns the tiling axes.
func (a *Actor) ContentRepeat() ContentRepeat { return a.contentRepeat }

// SetContentScalingFilters selects the filters used when the content is
// drawn smaller (minification) or larger (magnification) than its size.
func (a *Actor) SetContentScalingFilters(minFilter, magFilter ScalingFilter) {
	if a.minFilter == minFilter && a.magFilter == magFilter {
		return
	}
	a.minFilter, a.magFilter = minFilter, magFilter
	a.QueueRedraw()
}

// ContentScalingFilters returns the minification and magnification filters.
func (a *Actor) ContentScalingFilters() (minFilter, magFilter ScalingFilter) {
	return a.minFilter, a.magFilter
}

func (a *Actor) contentPreferredSize() (float64, float64) {
	if a.content == nil {
		return 0, 0
	}
	w, h, ok := a.content.PreferredSize()
	if !ok {
		return 0, 0
	}
	return math.Max(w, 0), math.Max(h, 0)
}

func (a *Actor) contentInvalidated() {
	a.QueueRedraw()
}

func (a *Actor) contentSizeInvalidated() {
	if a.requestMode == RequestContentSize {
		a.QueueRelayout()
	}
	a.QueueRedraw()
}

// ContentBox returns the box, in local coordinates, the content is drawn
// into after applying the gravity.
func (a *Actor) ContentBox() geom.Box {
	aw, ah := a.allocation.Size()
	box := geom.Box{X2: aw, Y2: ah}
	if a.content == nil || a.contentGravity == GravityResizeFill {
		return box
	}
	cw, ch, ok := a.content.PreferredSize()
	if !ok || cw <= 0 || ch <= 0 {
		return box
	}

	if a.contentGravity == GravityResizeAspect {
		ratio := cw / ch
		w, h := aw, aw/ratio
		if h > ah {
			w, h = ah*ratio, ah
		}
		x := (aw - w) / 2
		y := (ah - h) / 2
		return geom.Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
	}

	w, h := math.Min(cw, aw), math.Min(ch, ah)
	var x, y float64
	switch a.contentGravity {
	case GravityTop, GravityCenter, GravityBottom:
		x = (aw - w) / 2
	case GravityTopRight, GravityRight, GravityBottomRight:
		x = aw - w
	}
	switch a.contentGravity {
	case GravityLeft, GravityCenter, GravityRight:
		y = (ah - h) / 2
	case GravityBottomLeft, GravityBottom, GravityBottomRight:
		y = ah - h
	}
	return geom.Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// paintImage appends texture nodes drawing img into the content box,
// tiling along the repeat axes.
func paintImage(a *Actor, root *PaintNode, img image.Image) {
	box := a.ContentBox()
	if box.IsEmpty() {
		return
	}
	src := img.Bounds()
	iw, ih := float64(src.Dx()), float64(src.Dy())
	if iw <= 0 || ih <= 0 {
		return
	}
	filter := a.magFilter
	if box.Width() < iw || box.Height() < ih {
		filter = a.minFilter
	}
	if a.contentRepeat == RepeatNone {
		root.AddChild(NewTextureNode(box, img, src, filter))
		return
	}

	tw, th := box.Width(), box.Height()
	if a.contentRepeat&RepeatX != 0 {
		tw = iw
	}
	if a.contentRepeat&RepeatY != 0 {
		th = ih
	}
	clip := root.AddChild(NewClipNode(box))
	for y := box.Y1; y < box.Y2; y += th {
		for x := box.X1; x < box.X2; x += tw {
			clip.AddChild(NewTextureNode(geom.NewBox(x, y, tw, th), img, src, filter))
		}
	}
}

// --- ImageContent ---

// ImageContent displays a static image. Its preferred size is the image
// size.
type ImageContent struct {
	ContentBase
	img image.Image
}

// NewImageContent returns content showing img.
func NewImageContent(img image.Image) *ImageContent {
	return &ImageContent{img: img}
}

// SetImage replaces the image.
func (c *ImageContent) SetImage(img image.Image) {
	var oldSize, newSize image.Point
	if c.img != nil {
		oldSize = c.img.Bounds().Size()
	}
	if img != nil {
		newSize = img.Bounds().Size()
	}
	c.img = img
	if oldSize != newSize {
		c.InvalidateSize()
		return
	}
	c.Invalidate()
}

// Image returns the displayed image.
func (c *ImageContent) Image() image.Image { return c.img }

func (c *ImageContent) PreferredSize() (float64, float64, bool) {
	if c.img == nil {
		return 0, 0, false
	}
	b := c.img.Bounds()
	return float64(b.Dx()), float64(b.Dy()), true
}

func (c *ImageContent) PaintContent(a *Actor, root *PaintNode, _ *PaintContext) {
	if c.img == nil {
		return
	}
	paintImage(a, root, c.img)
}

// --- CanvasContent ---

// CanvasContent is drawn by a callback onto a gg context. The callback
// runs again on the next paint after Invalidate or SetSize.
type CanvasContent struct {
	ContentBase

	width, height int
	draw          func(dc *gg.Context, width, height int)
	dc            *gg.Context
	dirty         bool
}

// NewCanvasContent returns a width×height canvas painted by draw.
func NewCanvasContent(width, height int, draw func(dc *gg.Context, width, height int)) *CanvasContent {
	return &CanvasContent{width: width, height: height, draw: draw, dirty: true}
}

// SetSize resizes the canvas surface.
func (c *CanvasContent) SetSize(width, height int) {
	if c.width == width && c.height == height {
		return
	}
	c.width, c.height = width, height
	c.dc = nil
	c.dirty = true
	c.InvalidateSize()
}

// Size returns the canvas surface size.
func (c *CanvasContent) Size() (width, height int) { return c.width, c.height }

// SetDrawFunc replaces the draw callback.
func (c *CanvasContent) SetDrawFunc(draw func(dc *gg.Context, width, height int)) {
	c.draw = draw
	c.Invalidate()
}

// Invalidate reruns the draw callback on the next paint.
func (c *CanvasContent) Invalidate() {
	c.dirty = true
	c.ContentBase.Invalidate()
}

// Image returns the canvas surface, drawing it first if needed. It is nil
// for an empty canvas.
func (c *CanvasContent) Image() image.Image {
	if c.width <= 0 || c.height <= 0 {
		return nil
	}
	if c.dc == nil {
		c.dc = gg.NewContext(c.width, c.height)
		c.dirty = true
	}
	if c.dirty {
		c.dc.SetRGBA(0, 0, 0, 0)
		c.dc.Clear()
		if c.draw != nil {
			c.draw(c.dc, c.width, c.height)
		}
		c.dirty = false
	}
	return c.dc.Image()
}

func (c *CanvasContent) PreferredSize() (float64, float64, bool) {
	if c.width <= 0 || c.height <= 0 {
		return 0, 0, false
	}
	return float64(c.width), float64(c.height), true
}

func (c *CanvasContent) PaintContent(a *Actor, root *PaintNode, _ *PaintContext) {
	img := c.Image()
	if img == nil {
		return
	}
	paintImage(a, root, img)
}
