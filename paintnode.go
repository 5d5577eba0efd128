package tableau

import (
	"image"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/tableau/geom"
)

// PaintNodeKind identifies the type of a PaintNode.
type PaintNodeKind uint8

const (
	RootNode PaintNodeKind = iota
	ColorNode
	TextureNode
	ClipNode
	TransformNode
	LayerNode
)

// PaintNode is a retained description of what content draws. Content
// delegates build a small tree under the root they are given; the actor
// flattens it into draw ops once PaintContent returns. Boxes are in the
// actor's local coordinates.
//
// Children of a clip, transform or layer node are drawn inside that node's
// state. Children of color and texture nodes are drawn after them.
type PaintNode struct {
	Kind PaintNodeKind
	Name string

	Box       geom.Box
	Color     Color
	Texture   image.Image
	Source    image.Rectangle
	Filter    ScalingFilter
	Transform mgl64.Mat4
	Opacity   uint8

	children []*PaintNode
}

// NewRootNode returns an empty root.
func NewRootNode() *PaintNode { return &PaintNode{Kind: RootNode} }

// NewColorNode fills box with c.
func NewColorNode(box geom.Box, c Color) *PaintNode {
	return &PaintNode{Kind: ColorNode, Box: box, Color: c}
}

// NewTextureNode maps src of img onto box. An empty src selects the whole
// image.
func NewTextureNode(box geom.Box, img image.Image, src image.Rectangle, filter ScalingFilter) *PaintNode {
	if src.Empty() && img != nil {
		src = img.Bounds()
	}
	return &PaintNode{Kind: TextureNode, Box: box, Texture: img, Source: src, Filter: filter}
}

// NewClipNode restricts its children to box.
func NewClipNode(box geom.Box) *PaintNode {
	return &PaintNode{Kind: ClipNode, Box: box}
}

// NewTransformNode applies m to its children.
func NewTransformNode(m mgl64.Mat4) *PaintNode {
	return &PaintNode{Kind: TransformNode, Transform: m}
}

// NewLayerNode composites its children as a group with opacity.
func NewLayerNode(opacity uint8) *PaintNode {
	return &PaintNode{Kind: LayerNode, Opacity: opacity}
}

// AddChild appends child and returns it.
func (n *PaintNode) AddChild(child *PaintNode) *PaintNode {
	n.children = append(n.children, child)
	return child
}

// Children returns the child nodes.
func (n *PaintNode) Children() []*PaintNode { return n.children }

// Paint flattens the tree into pc.
func (n *PaintNode) Paint(pc *PaintContext) {
	switch n.Kind {
	case ColorNode:
		pc.DrawColor(n.Box, n.Color)
	case TextureNode:
		pc.DrawTexture(n.Box, n.Texture, n.Source, n.Filter)
	case ClipNode:
		pc.PushClip(n.Box)
		defer pc.PopClip()
	case TransformNode:
		pc.PushTransform(n.Transform)
		defer pc.PopTransform()
	case LayerNode:
		pc.PushGroup()
		defer pc.PopGroup(n.Opacity)
	}
	for _, c := range n.children {
		c.Paint(pc)
	}
}
