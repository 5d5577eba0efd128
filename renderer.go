package tableau

import (
	"image"

	"github.com/phanxgames/tableau/geom"
)

// DrawOpKind identifies the type of a DrawOp.
type DrawOpKind uint8

const (
	// OpClear fills the whole framebuffer with Color.
	OpClear DrawOpKind = iota
	// OpColorQuad fills Quad with Color.
	OpColorQuad
	// OpTextureQuad maps the Source rectangle of Texture onto Quad.
	OpTextureQuad
	// OpPushClip intersects the clip with Quad until the matching OpPopClip.
	OpPushClip
	// OpPopClip restores the clip active before the matching OpPushClip.
	OpPopClip
	// OpPushGroup redirects drawing into a transparent layer.
	OpPushGroup
	// OpPopGroup composites the layer with Opacity.
	OpPopGroup
)

func (k DrawOpKind) String() string {
	switch k {
	case OpClear:
		return "clear"
	case OpColorQuad:
		return "color"
	case OpTextureQuad:
		return "texture"
	case OpPushClip:
		return "push-clip"
	case OpPopClip:
		return "pop-clip"
	case OpPushGroup:
		return "push-group"
	case OpPopGroup:
		return "pop-group"
	}
	return "unknown"
}

// DrawOp is one primitive of a paint pass. Quads are in framebuffer pixels
// with vertices top-left, top-right, bottom-right, bottom-left of the
// source box.
type DrawOp struct {
	Kind    DrawOpKind
	Quad    geom.Quad
	Color   Color
	Texture image.Image
	Source  image.Rectangle
	Filter  ScalingFilter
	// Opacity multiplies textured quads and group composites.
	Opacity uint8
}

// Framebuffer is a render target owned by a Renderer.
type Framebuffer interface {
	Size() (width, height int)
}

// Renderer executes draw ops. Implementations are supplied by backends.
type Renderer interface {
	// NewFramebuffer allocates an offscreen target.
	NewFramebuffer(width, height int) (Framebuffer, error)
	// Submit executes ops in order against fb.
	Submit(fb Framebuffer, ops []DrawOp) error
	// ReadPixels copies r out of fb.
	ReadPixels(fb Framebuffer, r image.Rectangle) (*image.RGBA, error)
}
