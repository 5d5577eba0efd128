package tableau

import (
	"fmt"
	"sync/atomic"
	"weak"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/tableau/geom"
)

// --- ID counter ---

var actorIDCounter atomic.Uint32

func nextActorID() uint32 {
	return actorIDCounter.Add(1)
}

// --- Flags ---

type actorFlags uint32

const (
	flagRealized actorFlags = 1 << iota
	flagMapped
	flagVisible
	flagReactive
	flagToplevel
	flagDestroyed
	flagInDestruction
	flagInReparent
	flagInPaint
	flagInPick
	flagInRelayout
	flagInPrefWidth
	flagInPrefHeight
	flagNeedsWidth
	flagNeedsHeight
	flagNeedsAllocation
	flagNeedsComputeExpand
	flagHasAllocation
	flagFixedPosition
	flagHasClip
	flagClipToAllocation
	flagXExpand
	flagYExpand
	flagXExpandComputed
	flagYExpandComputed
)

func (f actorFlags) has(bits actorFlags) bool { return f&bits == bits }

// --- Actor ---

// Actor is a node of the scene graph. A single struct carries the state
// shared by every actor; per-type behavior is supplied by a [Behavior].
//
// Actors are created detached and become part of a scene when added to a
// parent that is (transitively) attached to a [Stage]. Children are kept in
// a doubly linked sibling list; later siblings paint on top.
//
// Actor methods must only be called from the goroutine running the
// [MasterClock], or while holding the clock lock.
type Actor struct {
	id     uint32
	lastID uint32

	// Name is an optional debug name.
	Name string

	// UserData is free for application use.
	UserData any

	// EntityID links the actor to an ECS entity. Events delivered to an
	// actor with a non-zero EntityID are forwarded to the stage's
	// EntityStore.
	EntityID uint32

	// HitShape, when set, narrows picking to a shape in local coordinates.
	HitShape HitShape

	// OnEvent is called during the bubble phase (target to stage). Return
	// true to stop propagation.
	OnEvent func(e *Event) bool
	// OnCapturedEvent is called during the capture phase (stage to target).
	OnCapturedEvent func(e *Event) bool

	behavior Behavior
	flags    actorFlags

	// stage is set only on the toplevel actor of a Stage.
	stage *Stage

	parent                   *Actor
	firstChild, lastChild    *Actor
	prevSibling, nextSibling *Actor
	nChildren                int

	// layout requests
	requestMode                     RequestMode
	fixedX, fixedY                  float64
	minWidth, natWidth              float64
	minHeight, natHeight            float64
	minWidthSet, natWidthSet        bool
	minHeightSet, natHeightSet      bool
	margin                          Margin
	xAlign, yAlign                  ActorAlign
	widthRequests, heightRequests   [nCachedSizeRequests]sizeRequest
	cachedWidthAge, cachedHeightAge uint32
	allocation                      geom.Box
	requestedBox                    geom.Box
	allocParent                     *Actor

	// transform
	pivotX, pivotY, pivotZ float64
	rotX, rotY, rotZ       float64
	scaleX, scaleY, scaleZ float64
	translation            mgl64.Vec3
	zPosition              float64
	transform              *mgl64.Mat4
	childTransform         *mgl64.Mat4
	modelview              mgl64.Mat4
	modelviewValid         bool

	// visual state
	opacity           uint8
	bgColor           Color
	bgColorSet        bool
	clip              geom.Rect
	offscreenRedirect OffscreenRedirect

	// content
	content        Content
	contentGravity ContentGravity
	contentRepeat  ContentRepeat
	minFilter      ScalingFilter
	magFilter      ScalingFilter

	layout LayoutManager

	paintVolume      PaintVolume
	paintVolumeValid bool
	paintVolumeOK    bool

	// stage-space box of the last paint, used to repaint the old area
	// after a move
	lastPaintBox      geom.Box
	lastPaintBoxValid bool

	redrawEntry   *redrawEntry
	relayoutEntry *relayoutEntry

	destroyHooks []func(*Actor)
}

// NewActor creates a detached, visible actor with the default behavior.
func NewActor(name string) *Actor {
	return NewActorWithBehavior(name, nil)
}

// NewActorWithBehavior creates a detached, visible actor driven by b. A nil
// behavior selects [BaseBehavior].
func NewActorWithBehavior(name string, b Behavior) *Actor {
	if b == nil {
		b = BaseBehavior{}
	}
	a := &Actor{
		id:       nextActorID(),
		Name:     name,
		behavior: b,
		flags:    flagVisible | flagNeedsWidth | flagNeedsHeight | flagNeedsAllocation | flagNeedsComputeExpand,
		scaleX:   1,
		scaleY:   1,
		scaleZ:   1,
		opacity:  255,
	}
	return a
}

// ID returns the actor's unique id, or 0 once destroyed.
func (a *Actor) ID() uint32 { return a.id }

// Behavior returns the behavior driving a.
func (a *Actor) Behavior() Behavior { return a.behavior }

// SetBehavior swaps the behavior and requeues layout and paint.
func (a *Actor) SetBehavior(b Behavior) {
	if b == nil {
		b = BaseBehavior{}
	}
	wasRealized := a.IsRealized()
	if wasRealized {
		if r, ok := a.behavior.(Realizer); ok {
			r.Unrealize(a)
		}
	}
	a.behavior = b
	if wasRealized {
		if r, ok := b.(Realizer); ok {
			r.Realize(a)
		}
	}
	a.invalidatePaintVolume()
	a.QueueRelayout()
}

// Handle returns a weak handle to a.
func (a *Actor) Handle() ActorHandle {
	return ActorHandle{p: weak.Make(a), id: a.id}
}

// ActorHandle is a non-owning reference to an actor. Get returns nil once
// the actor has been destroyed or collected.
type ActorHandle struct {
	p  weak.Pointer[Actor]
	id uint32
}

// Get returns the referenced actor, or nil when it is gone.
func (h ActorHandle) Get() *Actor {
	a := h.p.Value()
	if a == nil || a.id != h.id || a.flags&flagDestroyed != 0 {
		return nil
	}
	return a
}

// IsZero reports whether the handle was never set.
func (h ActorHandle) IsZero() bool { return h.id == 0 }

func (a *Actor) describe() string {
	if a == nil {
		return "<nil actor>"
	}
	if a.Name != "" {
		return fmt.Sprintf("actor %q (id %d)", a.Name, a.id)
	}
	return fmt.Sprintf("actor %d", a.id)
}

func (a *Actor) String() string { return a.describe() }

// --- State queries ---

// IsDestroyed reports whether Destroy has run.
func (a *Actor) IsDestroyed() bool { return a.flags&flagDestroyed != 0 }

// IsVisible reports the actor's own visibility flag.
func (a *Actor) IsVisible() bool { return a.flags&flagVisible != 0 }

// IsMapped reports whether the actor is visible and all its ancestors up to
// a shown stage are visible.
func (a *Actor) IsMapped() bool { return a.flags&flagMapped != 0 }

// IsRealized reports whether the actor has been realized.
func (a *Actor) IsRealized() bool { return a.flags&flagRealized != 0 }

// IsReactive reports whether the actor takes part in reactive picking.
func (a *Actor) IsReactive() bool { return a.flags&flagReactive != 0 }

// IsToplevel reports whether a is the root actor of a stage.
func (a *Actor) IsToplevel() bool { return a.flags&flagToplevel != 0 }

// IsInDestruction reports whether a is being destroyed.
func (a *Actor) IsInDestruction() bool { return a.flags&flagInDestruction != 0 }

// SetReactive toggles reactive picking.
func (a *Actor) SetReactive(reactive bool) {
	if reactive == a.IsReactive() {
		return
	}
	if reactive {
		a.flags |= flagReactive
	} else {
		a.flags &^= flagReactive
	}
	if s := a.Stage(); s != nil {
		s.invalidatePickCache()
	}
}

// --- Tree queries ---

// Parent returns the parent actor, or nil.
func (a *Actor) Parent() *Actor { return a.parent }

// Stage returns the stage a is attached to, or nil.
func (a *Actor) Stage() *Stage {
	for p := a; p != nil; p = p.parent {
		if p.flags&flagToplevel != 0 {
			return p.stage
		}
	}
	return nil
}

// FirstChild returns the bottom-most child.
func (a *Actor) FirstChild() *Actor { return a.firstChild }

// LastChild returns the top-most child.
func (a *Actor) LastChild() *Actor { return a.lastChild }

// NextSibling returns the sibling painted directly above a.
func (a *Actor) NextSibling() *Actor { return a.nextSibling }

// PrevSibling returns the sibling painted directly below a.
func (a *Actor) PrevSibling() *Actor { return a.prevSibling }

// NumChildren returns the number of children.
func (a *Actor) NumChildren() int { return a.nChildren }

// Children returns a snapshot of the children in paint order.
func (a *Actor) Children() []*Actor {
	out := make([]*Actor, 0, a.nChildren)
	for c := a.firstChild; c != nil; c = c.nextSibling {
		out = append(out, c)
	}
	return out
}

// ChildAtIndex returns the child at index, or nil when out of range.
func (a *Actor) ChildAtIndex(index int) *Actor {
	if index < 0 || index >= a.nChildren {
		return nil
	}
	c := a.firstChild
	for i := 0; i < index; i++ {
		c = c.nextSibling
	}
	return c
}

// Contains reports whether descendant is a or lies below it.
func (a *Actor) Contains(descendant *Actor) bool {
	return isAncestor(a, descendant)
}

// FindByName returns the first actor named name in a depth-first walk of
// the subtree rooted at a, including a itself.
func (a *Actor) FindByName(name string) *Actor {
	if a.Name == name {
		return a
	}
	for c := a.firstChild; c != nil; c = c.nextSibling {
		if found := c.FindByName(name); found != nil {
			return found
		}
	}
	return nil
}

func (a *Actor) depth() int {
	d := 0
	for p := a; p != nil; p = p.parent {
		d++
	}
	return d
}

// --- Tree manipulation ---

// AddChild appends child on top of a's other children. A child that already
// has a parent is moved. Panics if child is nil or an ancestor of a.
func (a *Actor) AddChild(child *Actor) {
	a.insertChild(child, func() { a.linkAfter(child, a.lastChild) })
}

// InsertChildAtIndex inserts child at index in paint order. An index out of
// range appends.
func (a *Actor) InsertChildAtIndex(child *Actor, index int) {
	a.insertChild(child, func() {
		if index < 0 || index >= a.nChildren {
			a.linkAfter(child, a.lastChild)
			return
		}
		a.linkBefore(child, a.ChildAtIndex(index))
	})
}

// InsertChildAbove inserts child directly above sibling, or on top when
// sibling is nil.
func (a *Actor) InsertChildAbove(child, sibling *Actor) {
	if sibling != nil && sibling.parent != a {
		contractViolation("InsertChildAbove", a, "sibling is not a child")
		return
	}
	a.insertChild(child, func() {
		if sibling == nil {
			a.linkAfter(child, a.lastChild)
		} else {
			a.linkAfter(child, sibling)
		}
	})
}

// InsertChildBelow inserts child directly below sibling, or at the bottom
// when sibling is nil.
func (a *Actor) InsertChildBelow(child, sibling *Actor) {
	if sibling != nil && sibling.parent != a {
		contractViolation("InsertChildBelow", a, "sibling is not a child")
		return
	}
	a.insertChild(child, func() {
		if sibling == nil {
			a.linkBefore(child, a.firstChild)
		} else {
			a.linkBefore(child, sibling)
		}
	})
}

// ReplaceChild puts newChild at oldChild's place and removes oldChild.
func (a *Actor) ReplaceChild(oldChild, newChild *Actor) {
	if oldChild == nil || oldChild.parent != a {
		contractViolation("ReplaceChild", a, "old child is not a child")
		return
	}
	a.InsertChildAbove(newChild, oldChild)
	a.RemoveChild(oldChild)
}

// RemoveChild detaches child from a. The child is unmapped and unrealized
// but not destroyed.
func (a *Actor) RemoveChild(child *Actor) {
	if child == nil || child.parent != a {
		contractViolation("RemoveChild", a, "not a child")
		return
	}
	if globalDebug.Load() {
		debugCheckDestroyed(a, "RemoveChild (parent)")
	}
	a.removeChild(child)
}

// RemoveFromParent detaches a from its parent. No-op without a parent.
func (a *Actor) RemoveFromParent() {
	if a.parent == nil {
		return
	}
	a.parent.removeChild(a)
}

// RemoveAllChildren detaches every child without destroying them.
func (a *Actor) RemoveAllChildren() {
	for c := a.lastChild; c != nil; {
		prev := c.prevSibling
		a.removeChild(c)
		c = prev
	}
}

// DestroyAllChildren destroys every child.
func (a *Actor) DestroyAllChildren() {
	for c := a.lastChild; c != nil; {
		prev := c.prevSibling
		c.Destroy()
		c = prev
	}
}

// SetChildAboveSibling restacks child directly above sibling, or on top
// when sibling is nil.
func (a *Actor) SetChildAboveSibling(child, sibling *Actor) {
	if !a.canRestack(child, sibling, "SetChildAboveSibling") {
		return
	}
	a.unlink(child)
	if sibling == nil {
		a.linkAfter(child, a.lastChild)
	} else {
		a.linkAfter(child, sibling)
	}
	a.restacked()
}

// SetChildBelowSibling restacks child directly below sibling, or at the
// bottom when sibling is nil.
func (a *Actor) SetChildBelowSibling(child, sibling *Actor) {
	if !a.canRestack(child, sibling, "SetChildBelowSibling") {
		return
	}
	a.unlink(child)
	if sibling == nil {
		a.linkBefore(child, a.firstChild)
	} else {
		a.linkBefore(child, sibling)
	}
	a.restacked()
}

// SetChildAtIndex moves child to index in paint order.
func (a *Actor) SetChildAtIndex(child *Actor, index int) {
	if !a.canRestack(child, nil, "SetChildAtIndex") {
		return
	}
	a.unlink(child)
	if index < 0 || index >= a.nChildren {
		a.linkAfter(child, a.lastChild)
	} else {
		a.linkBefore(child, a.ChildAtIndex(index))
	}
	a.restacked()
}

func (a *Actor) canRestack(child, sibling *Actor, op string) bool {
	if child == nil || child.parent != a {
		contractViolation(op, a, "not a child")
		return false
	}
	if sibling != nil && sibling.parent != a {
		contractViolation(op, a, "sibling is not a child")
		return false
	}
	return child != sibling
}

func (a *Actor) restacked() {
	a.invalidatePaintVolume()
	a.QueueRedraw()
	if s := a.Stage(); s != nil {
		s.invalidatePickCache()
	}
}

func (a *Actor) insertChild(child *Actor, link func()) {
	if child == nil {
		panic("tableau: cannot add nil child")
	}
	if globalDebug.Load() {
		debugCheckDestroyed(a, "AddChild (parent)")
		debugCheckDestroyed(child, "AddChild (child)")
	}
	if a.IsDestroyed() || a.IsInDestruction() || child.IsDestroyed() {
		contractViolation("AddChild", a, "destroyed actor")
		return
	}
	if child.IsToplevel() {
		contractViolation("AddChild", a, "cannot add a stage as a child")
		return
	}
	if isAncestor(child, a) {
		panic("tableau: adding child would create a cycle")
	}
	if child.parent != nil {
		child.flags |= flagInReparent
		child.parent.removeChild(child)
		defer func() { child.flags &^= flagInReparent }()
	}

	child.parent = a
	link()
	a.nChildren++

	child.invalidateModelview()
	child.updateMapState()
	if child.IsVisible() {
		child.flags &^= flagNeedsWidth | flagNeedsHeight | flagNeedsAllocation
		child.QueueRelayout()
	}
	a.invalidatePaintVolume()
	a.queueComputeExpand()

	if globalDebug.Load() {
		debugCheckTreeDepth(child)
		debugCheckChildCount(a)
	}
}

func (a *Actor) removeChild(child *Actor) {
	stage := a.Stage()
	wasMapped := child.IsMapped()
	if wasMapped {
		child.queueRedrawOldArea()
	}
	a.unlink(child)
	a.nChildren--
	child.parent = nil
	child.invalidateModelview()

	child.updateMapState()
	if child.flags&flagInReparent == 0 {
		child.unrealize()
	}
	if stage != nil {
		stage.actorUnmapped(child)
	}
	if wasMapped && child.IsVisible() {
		a.QueueRelayout()
	}
	a.invalidatePaintVolume()
	a.queueComputeExpand()
}

func (a *Actor) linkAfter(child, after *Actor) {
	child.prevSibling = after
	if after != nil {
		child.nextSibling = after.nextSibling
		after.nextSibling = child
	} else {
		child.nextSibling = a.firstChild
		a.firstChild = child
	}
	if child.nextSibling != nil {
		child.nextSibling.prevSibling = child
	} else {
		a.lastChild = child
	}
}

func (a *Actor) linkBefore(child, before *Actor) {
	if before == nil {
		a.linkAfter(child, a.lastChild)
		return
	}
	a.linkAfter(child, before.prevSibling)
}

func (a *Actor) unlink(child *Actor) {
	if child.prevSibling != nil {
		child.prevSibling.nextSibling = child.nextSibling
	} else {
		a.firstChild = child.nextSibling
	}
	if child.nextSibling != nil {
		child.nextSibling.prevSibling = child.prevSibling
	} else {
		a.lastChild = child.prevSibling
	}
	child.prevSibling = nil
	child.nextSibling = nil
}

// --- Visibility ---

// Show marks the actor visible and maps it when its parent is mapped.
func (a *Actor) Show() {
	if a.IsVisible() {
		return
	}
	if a.IsToplevel() && a.stage != nil {
		a.stage.Show()
		return
	}
	a.flags |= flagVisible
	a.updateMapState()
	a.QueueRelayout()
	a.QueueRedraw()
	if a.parent != nil {
		a.parent.invalidatePaintVolume()
		a.parent.queueComputeExpand()
	}
}

// Hide marks the actor invisible and unmaps it and its subtree.
func (a *Actor) Hide() {
	if !a.IsVisible() {
		return
	}
	if a.IsToplevel() && a.stage != nil {
		a.stage.Hide()
		return
	}
	if a.IsMapped() {
		a.queueRedrawOldArea()
	}
	a.flags &^= flagVisible
	a.updateMapState()
	if a.parent != nil {
		a.parent.invalidatePaintVolume()
		a.parent.QueueRelayout()
		a.parent.queueComputeExpand()
	}
}

// ShowAll shows a and every descendant.
func (a *Actor) ShowAll() {
	for c := a.firstChild; c != nil; c = c.nextSibling {
		c.ShowAll()
	}
	a.Show()
}

// shouldBeMapped computes the mapped state from visibility and the parent.
func (a *Actor) shouldBeMapped() bool {
	if a.flags&(flagDestroyed|flagInDestruction) != 0 || !a.IsVisible() {
		return false
	}
	if a.IsToplevel() {
		return a.stage != nil && a.stage.shown
	}
	return a.parent != nil && a.parent.IsMapped()
}

func (a *Actor) updateMapState() {
	should := a.shouldBeMapped()
	switch {
	case should && !a.IsMapped():
		a.mapActor()
	case !should && a.IsMapped():
		a.unmapActor()
	}
}

func (a *Actor) mapActor() {
	a.realize()
	a.flags |= flagMapped
	for c := a.firstChild; c != nil; c = c.nextSibling {
		c.updateMapState()
	}
	a.QueueRedraw()
}

// unmapActor clears the mapped flag before visiting the children, so each
// child sees an unmapped parent.
func (a *Actor) unmapActor() {
	a.flags &^= flagMapped
	for c := a.firstChild; c != nil; c = c.nextSibling {
		c.updateMapState()
	}
	if s := a.Stage(); s != nil {
		s.actorUnmapped(a)
	}
}

func (a *Actor) realize() {
	if a.IsRealized() {
		return
	}
	if a.parent != nil && !a.parent.IsRealized() {
		a.parent.realize()
	}
	a.flags |= flagRealized
	if r, ok := a.behavior.(Realizer); ok {
		r.Realize(a)
	}
}

func (a *Actor) unrealize() {
	for c := a.firstChild; c != nil; c = c.nextSibling {
		c.unrealize()
	}
	if !a.IsRealized() {
		return
	}
	if a.IsMapped() {
		a.unmapActor()
	}
	a.flags &^= flagRealized
	if r, ok := a.behavior.(Realizer); ok {
		r.Unrealize(a)
	}
}

// Realize realizes a and its ancestors. Realization normally happens
// automatically on map.
func (a *Actor) Realize() { a.realize() }

// Unrealize unrealizes a and its subtree, unmapping them first.
func (a *Actor) Unrealize() { a.unrealize() }

// --- Destruction ---

// OnDestroy registers fn to run while a is being destroyed, after its
// children are gone and before it is unparented.
func (a *Actor) OnDestroy(fn func(*Actor)) {
	a.destroyHooks = append(a.destroyHooks, fn)
}

// Destroy destroys every child, unparents a and invalidates any pending
// redraw or relayout entry that references it. Calling Destroy twice is a
// no-op.
func (a *Actor) Destroy() {
	if a.flags&(flagDestroyed|flagInDestruction) != 0 {
		return
	}
	if a.IsToplevel() && a.stage != nil {
		a.stage.Destroy()
		return
	}
	a.destroy()
}

func (a *Actor) destroy() {
	a.flags |= flagInDestruction

	for c := a.lastChild; c != nil; {
		prev := c.prevSibling
		c.destroy()
		c = prev
	}

	for _, fn := range a.destroyHooks {
		fn(a)
	}
	a.destroyHooks = nil

	if a.redrawEntry != nil {
		a.redrawEntry.actor = nil
		a.redrawEntry = nil
	}
	if a.relayoutEntry != nil {
		a.relayoutEntry.actor = nil
		a.relayoutEntry = nil
	}

	if a.parent != nil {
		a.parent.removeChild(a)
	} else {
		a.unrealize()
	}

	if a.content != nil {
		if d, ok := a.content.(ContentAttacher); ok {
			d.Detached(a)
		}
		a.content = nil
	}
	if a.layout != nil {
		a.layout.SetContainer(nil)
		a.layout = nil
	}

	a.flags |= flagDestroyed
	a.flags &^= flagInDestruction
	a.lastID = a.id
	a.id = 0
	a.OnEvent = nil
	a.OnCapturedEvent = nil
	a.HitShape = nil
	a.UserData = nil
}

// --- Helpers ---

// isAncestor reports whether candidate is node or one of its ancestors.
func isAncestor(candidate, node *Actor) bool {
	for p := node; p != nil; p = p.parent {
		if p == candidate {
			return true
		}
	}
	return false
}
