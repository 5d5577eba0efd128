package tableau

import (
	"math"

	"github.com/phanxgames/tableau/geom"
)

// nCachedSizeRequests is the number of preferred-size answers kept per
// axis. Containers typically ask the same child for two or three different
// for-sizes while negotiating.
const nCachedSizeRequests = 3

type sizeRequest struct {
	forSize float64
	minSize float64
	natSize float64
	age     uint32
}

// cachedSizeRequest looks up forSize. On a miss it returns the oldest slot
// for reuse.
func cachedSizeRequest(reqs *[nCachedSizeRequests]sizeRequest, forSize float64) (*sizeRequest, bool) {
	slot := &reqs[0]
	for i := range reqs {
		sr := &reqs[i]
		if sr.age > 0 && sr.forSize == forSize {
			return sr, true
		}
		if sr.age < slot.age {
			slot = sr
		}
	}
	return slot, false
}

// newestSizeRequest returns the most recent answer, if any.
func newestSizeRequest(reqs *[nCachedSizeRequests]sizeRequest) (sizeRequest, bool) {
	var best sizeRequest
	for _, sr := range reqs {
		if sr.age > best.age {
			best = sr
		}
	}
	return best, best.age > 0
}

func sanitizeSizeRequest(minSize, natSize float64) (float64, float64) {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		return v
	}
	minSize, natSize = fix(minSize), fix(natSize)
	if natSize < minSize {
		natSize = minSize
	}
	return minSize, natSize
}

// --- Preferred size ---

// GetPreferredWidth returns the minimum and natural width, margins
// included, for the given height. A negative forHeight means unconstrained.
// Results are cached until the next QueueRelayout.
func (a *Actor) GetPreferredWidth(forHeight float64) (minWidth, naturalWidth float64) {
	if forHeight >= 0 {
		forHeight = math.Max(0, forHeight-a.margin.Top-a.margin.Bottom)
	}
	m, n := a.preferredExtent(Horizontal, forHeight)
	extra := a.margin.Left + a.margin.Right
	return m + extra, n + extra
}

// GetPreferredHeight returns the minimum and natural height, margins
// included, for the given width. A negative forWidth means unconstrained.
func (a *Actor) GetPreferredHeight(forWidth float64) (minHeight, naturalHeight float64) {
	if forWidth >= 0 {
		forWidth = math.Max(0, forWidth-a.margin.Left-a.margin.Right)
	}
	m, n := a.preferredExtent(Vertical, forWidth)
	extra := a.margin.Top + a.margin.Bottom
	return m + extra, n + extra
}

// GetPreferredSize negotiates both axes in the actor's request mode.
func (a *Actor) GetPreferredSize() (minWidth, minHeight, naturalWidth, naturalHeight float64) {
	switch a.requestMode {
	case RequestHeightForWidth:
		minWidth, naturalWidth = a.GetPreferredWidth(-1)
		minHeight, naturalHeight = a.GetPreferredHeight(naturalWidth)
	case RequestContentSize:
		minWidth, naturalWidth = a.GetPreferredWidth(-1)
		minHeight, naturalHeight = a.GetPreferredHeight(-1)
	default:
		minHeight, naturalHeight = a.GetPreferredHeight(-1)
		minWidth, naturalWidth = a.GetPreferredWidth(naturalHeight)
	}
	return minWidth, minHeight, naturalWidth, naturalHeight
}

// preferredExtent answers a size query for one axis without margins.
// forSize is the other axis, already net of margins.
func (a *Actor) preferredExtent(axis Orientation, forSize float64) (float64, float64) {
	minSet, natSet := a.minWidthSet, a.natWidthSet
	fixedMin, fixedNat := a.minWidth, a.natWidth
	reqs, age := &a.widthRequests, &a.cachedWidthAge
	inQuery, query := flagInPrefWidth, a.behavior.GetPreferredWidth
	if axis == Vertical {
		minSet, natSet = a.minHeightSet, a.natHeightSet
		fixedMin, fixedNat = a.minHeight, a.natHeight
		reqs, age = &a.heightRequests, &a.cachedHeightAge
		inQuery, query = flagInPrefHeight, a.behavior.GetPreferredHeight
	}

	if minSet && natSet {
		return fixedMin, math.Max(fixedNat, fixedMin)
	}
	if a.requestMode == RequestContentSize {
		w, h := a.contentPreferredSize()
		if axis == Vertical {
			return h, h
		}
		return w, w
	}

	override := func(m, n float64) (float64, float64) {
		if minSet {
			m = fixedMin
		}
		if natSet {
			n = fixedNat
		}
		return m, math.Max(n, m)
	}

	slot, found := cachedSizeRequest(reqs, forSize)
	if found {
		return override(slot.minSize, slot.natSize)
	}
	if a.flags&inQuery != 0 {
		// cyclic constraint: answer with the newest estimate instead of
		// recursing
		Logger().Debug("reentrant size query", "actor", a.describe(), "axis", axis)
		if best, ok := newestSizeRequest(reqs); ok {
			return override(best.minSize, best.natSize)
		}
		return override(0, 0)
	}

	a.flags |= inQuery
	m, n := query(a, forSize)
	a.flags &^= inQuery
	m, n = sanitizeSizeRequest(m, n)

	*age++
	*slot = sizeRequest{forSize: forSize, minSize: m, natSize: n, age: *age}
	if axis == Vertical {
		a.flags &^= flagNeedsHeight
	} else {
		a.flags &^= flagNeedsWidth
	}
	return override(m, n)
}

func (a *Actor) clearSizeRequests() {
	a.widthRequests = [nCachedSizeRequests]sizeRequest{}
	a.heightRequests = [nCachedSizeRequests]sizeRequest{}
}

// --- Allocation ---

// Allocate assigns box, in parent coordinates, to the actor. Margins and
// alignment are applied first; the behavior then stores the result and
// lays out the children. Allocating a detached actor is a contract
// violation. Malformed boxes are clamped.
func (a *Actor) Allocate(box geom.Box) {
	if a.flags&(flagDestroyed|flagInDestruction) != 0 {
		return
	}
	if !a.IsToplevel() && a.Stage() == nil {
		contractViolation("Allocate", a, "actor is not attached to a stage")
		return
	}
	if a.flags&flagInRelayout != 0 {
		Logger().Debug("reentrant allocate dropped", "actor", a.describe())
		return
	}
	if !box.IsValid() {
		Logger().Warn("malformed allocation clamped", "actor", a.describe(), "box", box)
		box = box.Sanitize()
	}

	a.requestedBox = box
	a.allocParent = a.parent
	adjusted := a.adjustAllocation(box)
	changed := a.flags&flagHasAllocation == 0 || !adjusted.Equal(a.allocation)
	if !changed && a.flags&flagNeedsAllocation == 0 {
		return
	}

	// relayouts queued while the behavior runs must survive the call
	a.flags &^= flagNeedsAllocation | flagNeedsWidth | flagNeedsHeight
	a.flags |= flagInRelayout
	a.behavior.Allocate(a, adjusted)
	a.flags &^= flagInRelayout
	if changed {
		a.QueueRedraw()
	}
}

// SetAllocation stores box without touching children. Behaviors call it
// from their Allocate before positioning children themselves.
func (a *Actor) SetAllocation(box geom.Box) {
	had := a.flags&flagHasAllocation != 0
	old := a.allocation
	a.allocation = box
	a.flags |= flagHasAllocation
	a.flags &^= flagNeedsAllocation
	if had && box.Equal(old) {
		return
	}
	a.invalidateModelview()
	if !had || !box.SizeEqual(old) {
		a.invalidatePaintVolume()
	}
}

// AllocateChildren runs the layout manager over the current allocation.
func (a *Actor) AllocateChildren() {
	if a.nChildren == 0 {
		return
	}
	w, h := a.allocation.Size()
	a.layoutManagerOrDefault().Allocate(a, geom.Box{X2: w, Y2: h})
}

// AllocatePreferredSize allocates the actor at (x, y) with its natural
// size.
func (a *Actor) AllocatePreferredSize(x, y float64) {
	_, _, w, h := a.GetPreferredSize()
	a.Allocate(geom.NewBox(x, y, w, h))
}

// AllocateAvailableSize allocates the actor at (x, y) with its natural
// size clamped to the available space, negotiating in its request mode.
func (a *Actor) AllocateAvailableSize(x, y, availWidth, availHeight float64) {
	var w, h float64
	switch a.requestMode {
	case RequestHeightForWidth:
		minW, natW := a.GetPreferredWidth(-1)
		w = clampSize(natW, minW, availWidth)
		minH, natH := a.GetPreferredHeight(w)
		h = clampSize(natH, minH, availHeight)
	case RequestContentSize:
		minW, natW := a.GetPreferredWidth(-1)
		minH, natH := a.GetPreferredHeight(-1)
		w = clampSize(natW, minW, availWidth)
		h = clampSize(natH, minH, availHeight)
	default:
		minH, natH := a.GetPreferredHeight(-1)
		h = clampSize(natH, minH, availHeight)
		minW, natW := a.GetPreferredWidth(h)
		w = clampSize(natW, minW, availWidth)
	}
	a.Allocate(geom.NewBox(x, y, w, h))
}

// clampSize clamps natural into [minimum, available], with available
// winning when the two bounds cross.
func clampSize(natural, minimum, available float64) float64 {
	if natural > available {
		return available
	}
	if natural < minimum {
		return minimum
	}
	return natural
}

// adjustAllocation removes the margins from box and, unless the actor is
// in fixed-position mode, shrinks it to the preferred size according to
// the x and y alignment.
func (a *Actor) adjustAllocation(box geom.Box) geom.Box {
	m := a.margin
	adj := geom.Box{X1: box.X1 + m.Left, Y1: box.Y1 + m.Top, X2: box.X2 - m.Right, Y2: box.Y2 - m.Bottom}
	if adj.X2 < adj.X1 {
		adj.X2 = adj.X1
	}
	if adj.Y2 < adj.Y1 {
		adj.Y2 = adj.Y1
	}
	if a.flags&flagFixedPosition != 0 {
		return adj
	}
	if a.xAlign == AlignFill && a.yAlign == AlignFill {
		return adj
	}

	availW, availH := adj.Size()
	var w, h float64
	if a.requestMode == RequestHeightForWidth {
		minW, natW := a.preferredExtent(Horizontal, -1)
		w = clampSize(natW, minW, availW)
		minH, natH := a.preferredExtent(Vertical, w)
		h = clampSize(natH, minH, availH)
	} else {
		minH, natH := a.preferredExtent(Vertical, -1)
		h = clampSize(natH, minH, availH)
		minW, natW := a.preferredExtent(Horizontal, h)
		w = clampSize(natW, minW, availW)
	}

	adj.X1, adj.X2 = alignAxis(a.xAlign, adj.X1, adj.X2, w)
	adj.Y1, adj.Y2 = alignAxis(a.yAlign, adj.Y1, adj.Y2, h)
	return adj
}

func alignAxis(align ActorAlign, start, end, size float64) (float64, float64) {
	avail := end - start
	switch align {
	case AlignStart:
		return start, start + math.Min(size, avail)
	case AlignEnd:
		if avail > size {
			return end - size, end
		}
	case AlignCenter:
		if avail > size {
			start += math.Ceil((avail - size) / 2)
			return start, start + size
		}
	}
	return start, end
}

// --- Relayout queuing ---

// isRelayoutRoot reports whether changes inside the actor cannot affect
// its own size, so relayout propagation may stop at it.
func (a *Actor) isRelayoutRoot() bool {
	return a.minWidthSet && a.natWidthSet && a.minHeightSet && a.natHeightSet
}

// QueueRelayout invalidates the size caches of the actor and its
// ancestors and registers the topmost affected actor with the stage for
// the next relayout pass. Propagation stops at ancestors whose size is
// fixed. No-op on a destroyed actor.
func (a *Actor) QueueRelayout() {
	if a.flags&(flagDestroyed|flagInDestruction) != 0 {
		return
	}
	const needs = flagNeedsWidth | flagNeedsHeight | flagNeedsAllocation
	if a.flags.has(needs) && a.parent != nil && a.parent.flags.has(flagNeedsAllocation) {
		return
	}
	root := a
	for cur := a; cur != nil; cur = cur.parent {
		cur.flags |= needs
		cur.clearSizeRequests()
		root = cur
		if cur != a && cur.isRelayoutRoot() {
			break
		}
	}
	if s := root.Stage(); s != nil {
		s.queueActorRelayout(root)
	}
}

// NeedsRelayout reports whether the actor awaits an allocation.
func (a *Actor) NeedsRelayout() bool { return a.flags&flagNeedsAllocation != 0 }

// --- Expand ---

// NeedsExpand reports whether layouts should give the actor extra space
// along o: either it asked for it or a visible descendant did.
func (a *Actor) NeedsExpand(o Orientation) bool {
	if !a.IsVisible() {
		return false
	}
	if a.flags&flagNeedsComputeExpand != 0 {
		x := a.flags&flagXExpand != 0
		y := a.flags&flagYExpand != 0
		for c := a.firstChild; c != nil && !(x && y); c = c.nextSibling {
			x = x || c.NeedsExpand(Horizontal)
			y = y || c.NeedsExpand(Vertical)
		}
		a.flags &^= flagXExpandComputed | flagYExpandComputed | flagNeedsComputeExpand
		if x {
			a.flags |= flagXExpandComputed
		}
		if y {
			a.flags |= flagYExpandComputed
		}
	}
	if o == Vertical {
		return a.flags&flagYExpandComputed != 0
	}
	return a.flags&flagXExpandComputed != 0
}

func (a *Actor) queueComputeExpand() {
	for cur := a; cur != nil; cur = cur.parent {
		if cur != a && cur.flags&flagNeedsComputeExpand != 0 {
			break
		}
		cur.flags |= flagNeedsComputeExpand
	}
}

// --- Layout manager ---

// SetLayoutManager installs lm to size and place the children. A nil lm
// restores fixed positioning.
func (a *Actor) SetLayoutManager(lm LayoutManager) {
	if a.layout == lm {
		return
	}
	if a.layout != nil {
		a.layout.SetContainer(nil)
	}
	a.layout = lm
	if lm != nil {
		lm.SetContainer(a)
	}
	a.QueueRelayout()
}

// LayoutManager returns the installed layout manager, or nil.
func (a *Actor) LayoutManager() LayoutManager { return a.layout }

func (a *Actor) layoutManagerOrDefault() LayoutManager {
	if a.layout != nil {
		return a.layout
	}
	return defaultFixedLayout
}
