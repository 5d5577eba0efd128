package tableau

import (
	"math"

	"github.com/phanxgames/tableau/geom"
)

// LayoutManager sizes and positions the children of a container actor.
// Boxes passed to Allocate are in the container's local coordinates.
type LayoutManager interface {
	GetPreferredWidth(container *Actor, forHeight float64) (minWidth, naturalWidth float64)
	GetPreferredHeight(container *Actor, forWidth float64) (minHeight, naturalHeight float64)
	Allocate(container *Actor, box geom.Box)

	// SetContainer is called when the manager is installed on, or removed
	// from (nil), an actor.
	SetContainer(container *Actor)
}

// layoutBase holds the weak container reference shared by the built-in
// layout managers.
type layoutBase struct {
	container ActorHandle
}

func (l *layoutBase) SetContainer(container *Actor) {
	if container == nil {
		l.container = ActorHandle{}
		return
	}
	l.container = container.Handle()
}

// Container returns the actor the manager is installed on, or nil once it
// is gone.
func (l *layoutBase) Container() *Actor { return l.container.Get() }

// LayoutChanged queues a relayout of the container. Call it after changing
// a layout property.
func (l *layoutBase) LayoutChanged() {
	if c := l.container.Get(); c != nil {
		c.QueueRelayout()
	}
}

// --- FixedLayout ---

// FixedLayout places every child at its fixed position, or the origin,
// with its preferred size. It is used by actors without a layout manager.
type FixedLayout struct {
	layoutBase
}

var defaultFixedLayout = &FixedLayout{}

// NewFixedLayout returns a fixed layout manager.
func NewFixedLayout() *FixedLayout { return &FixedLayout{} }

func (l *FixedLayout) GetPreferredWidth(container *Actor, forHeight float64) (float64, float64) {
	var minRight, natRight float64
	for c := container.firstChild; c != nil; c = c.nextSibling {
		if !c.IsVisible() {
			continue
		}
		x := 0.0
		if c.flags&flagFixedPosition != 0 {
			x = c.fixedX
		}
		cm, cn := c.GetPreferredWidth(-1)
		minRight = math.Max(minRight, x+cm)
		natRight = math.Max(natRight, x+cn)
	}
	return minRight, natRight
}

func (l *FixedLayout) GetPreferredHeight(container *Actor, forWidth float64) (float64, float64) {
	var minBottom, natBottom float64
	for c := container.firstChild; c != nil; c = c.nextSibling {
		if !c.IsVisible() {
			continue
		}
		y := 0.0
		if c.flags&flagFixedPosition != 0 {
			y = c.fixedY
		}
		cm, cn := c.GetPreferredHeight(-1)
		minBottom = math.Max(minBottom, y+cm)
		natBottom = math.Max(natBottom, y+cn)
	}
	return minBottom, natBottom
}

func (l *FixedLayout) Allocate(container *Actor, _ geom.Box) {
	for c := container.firstChild; c != nil; c = c.nextSibling {
		var x, y float64
		if c.flags&flagFixedPosition != 0 {
			x, y = c.fixedX, c.fixedY
		}
		c.AllocatePreferredSize(x, y)
	}
}

// --- BinLayout ---

// BinLayout stacks every child on top of the others, each aligned in the
// whole container box by its own x and y alignment.
type BinLayout struct {
	layoutBase
}

// NewBinLayout returns a bin layout manager.
func NewBinLayout() *BinLayout { return &BinLayout{} }

func (l *BinLayout) GetPreferredWidth(container *Actor, forHeight float64) (float64, float64) {
	var minW, natW float64
	for c := container.firstChild; c != nil; c = c.nextSibling {
		if !c.IsVisible() {
			continue
		}
		cm, cn := c.GetPreferredWidth(forHeight)
		minW = math.Max(minW, cm)
		natW = math.Max(natW, cn)
	}
	return minW, natW
}

func (l *BinLayout) GetPreferredHeight(container *Actor, forWidth float64) (float64, float64) {
	var minH, natH float64
	for c := container.firstChild; c != nil; c = c.nextSibling {
		if !c.IsVisible() {
			continue
		}
		cm, cn := c.GetPreferredHeight(forWidth)
		minH = math.Max(minH, cm)
		natH = math.Max(natH, cn)
	}
	return minH, natH
}

func (l *BinLayout) Allocate(container *Actor, box geom.Box) {
	for c := container.firstChild; c != nil; c = c.nextSibling {
		if c.flags&flagFixedPosition != 0 {
			c.AllocatePreferredSize(box.X1+c.fixedX, box.Y1+c.fixedY)
			continue
		}
		c.Allocate(box)
	}
}

// --- BoxLayout ---

// BoxLayout arranges children in a row or column. Each child gets its
// natural size along the main axis; leftover space goes to children that
// need to expand, and a shortfall shrinks children towards their minimum.
type BoxLayout struct {
	layoutBase

	orientation Orientation
	spacing     float64
	homogeneous bool
}

// NewBoxLayout returns a box layout along o.
func NewBoxLayout(o Orientation) *BoxLayout {
	return &BoxLayout{orientation: o}
}

// SetOrientation changes the main axis.
func (l *BoxLayout) SetOrientation(o Orientation) {
	if l.orientation == o {
		return
	}
	l.orientation = o
	l.LayoutChanged()
}

// Orientation returns the main axis.
func (l *BoxLayout) Orientation() Orientation { return l.orientation }

// SetSpacing sets the gap between consecutive children.
func (l *BoxLayout) SetSpacing(spacing float64) {
	spacing = math.Max(spacing, 0)
	if l.spacing == spacing {
		return
	}
	l.spacing = spacing
	l.LayoutChanged()
}

// Spacing returns the gap between consecutive children.
func (l *BoxLayout) Spacing() float64 { return l.spacing }

// SetHomogeneous gives every child the same main-axis size.
func (l *BoxLayout) SetHomogeneous(homogeneous bool) {
	if l.homogeneous == homogeneous {
		return
	}
	l.homogeneous = homogeneous
	l.LayoutChanged()
}

// Homogeneous reports whether children share the main axis equally.
func (l *BoxLayout) Homogeneous() bool { return l.homogeneous }

func visibleChildren(container *Actor) []*Actor {
	out := make([]*Actor, 0, container.nChildren)
	for c := container.firstChild; c != nil; c = c.nextSibling {
		if c.IsVisible() {
			out = append(out, c)
		}
	}
	return out
}

// childMainSize queries a child along the main axis given a cross size.
func (l *BoxLayout) childMainSize(c *Actor, forCross float64) (float64, float64) {
	if l.orientation == Vertical {
		return c.GetPreferredHeight(forCross)
	}
	return c.GetPreferredWidth(forCross)
}

// childCrossSize queries a child along the cross axis given a main size.
func (l *BoxLayout) childCrossSize(c *Actor, forMain float64) (float64, float64) {
	if l.orientation == Vertical {
		return c.GetPreferredWidth(forMain)
	}
	return c.GetPreferredHeight(forMain)
}

func (l *BoxLayout) mainExtent(container *Actor, forCross float64) (float64, float64) {
	children := visibleChildren(container)
	if len(children) == 0 {
		return 0, 0
	}
	var minSum, natSum, minMax, natMax float64
	for _, c := range children {
		cm, cn := l.childMainSize(c, forCross)
		minSum += cm
		natSum += cn
		minMax = math.Max(minMax, cm)
		natMax = math.Max(natMax, cn)
	}
	gaps := l.spacing * float64(len(children)-1)
	if l.homogeneous {
		n := float64(len(children))
		return minMax*n + gaps, natMax*n + gaps
	}
	return minSum + gaps, natSum + gaps
}

func (l *BoxLayout) crossExtent(container *Actor, forMain float64) (float64, float64) {
	children := visibleChildren(container)
	var sizes []float64
	if forMain >= 0 && len(children) > 0 {
		sizes = l.distribute(children, forMain, -1)
	}
	var minMax, natMax float64
	for i, c := range children {
		forChild := -1.0
		if sizes != nil {
			forChild = sizes[i]
		}
		cm, cn := l.childCrossSize(c, forChild)
		minMax = math.Max(minMax, cm)
		natMax = math.Max(natMax, cn)
	}
	return minMax, natMax
}

func (l *BoxLayout) GetPreferredWidth(container *Actor, forHeight float64) (float64, float64) {
	if l.orientation == Vertical {
		return l.crossExtent(container, forHeight)
	}
	return l.mainExtent(container, forHeight)
}

func (l *BoxLayout) GetPreferredHeight(container *Actor, forWidth float64) (float64, float64) {
	if l.orientation == Vertical {
		return l.mainExtent(container, forWidth)
	}
	return l.crossExtent(container, forWidth)
}

// distribute splits the main-axis space among children.
func (l *BoxLayout) distribute(children []*Actor, mainSize, crossSize float64) []float64 {
	n := len(children)
	sizes := make([]float64, n)
	avail := math.Max(0, mainSize-l.spacing*float64(n-1))
	if l.homogeneous {
		for i := range sizes {
			sizes[i] = avail / float64(n)
		}
		return sizes
	}

	mins := make([]float64, n)
	var minSum, natSum float64
	nExpand := 0
	for i, c := range children {
		cm, cn := l.childMainSize(c, crossSize)
		mins[i], sizes[i] = cm, cn
		minSum += cm
		natSum += cn
		if c.NeedsExpand(l.orientation) {
			nExpand++
		}
	}

	switch {
	case natSum <= avail:
		if nExpand > 0 {
			extra := (avail - natSum) / float64(nExpand)
			for i, c := range children {
				if c.NeedsExpand(l.orientation) {
					sizes[i] += extra
				}
			}
		}
	case minSum >= avail:
		copy(sizes, mins)
	default:
		// grow every child from its minimum towards its natural size in
		// proportion to the gap
		room := avail - minSum
		gap := natSum - minSum
		for i := range sizes {
			sizes[i] = mins[i] + (sizes[i]-mins[i])*room/gap
		}
	}
	return sizes
}

func (l *BoxLayout) Allocate(container *Actor, box geom.Box) {
	children := visibleChildren(container)
	if len(children) == 0 {
		return
	}
	w, h := box.Size()
	mainSize, crossSize := w, h
	if l.orientation == Vertical {
		mainSize, crossSize = h, w
	}
	sizes := l.distribute(children, mainSize, crossSize)

	pos := box.X1
	if l.orientation == Vertical {
		pos = box.Y1
	}
	for i, c := range children {
		var child geom.Box
		if l.orientation == Vertical {
			child = geom.Box{X1: box.X1, Y1: pos, X2: box.X2, Y2: pos + sizes[i]}
		} else {
			child = geom.Box{X1: pos, Y1: box.Y1, X2: pos + sizes[i], Y2: box.Y2}
		}
		c.Allocate(child)
		pos += sizes[i] + l.spacing
	}
}
