package tableau

import "time"

// --- Per-device state ---

type deviceKey struct {
	dev *InputDevice
	seq int
}

type deviceState struct {
	actor  ActorHandle // actor under the device
	x, y   float64
	hasPos bool
}

// --- Handler registry ---

type eventHandler struct {
	id uint32
	fn func(*Event) bool
}

type handlerRegistry struct {
	byType map[EventType][]eventHandler
	any    []eventHandler
	nextID uint32
}

// CallbackHandle allows removing a registered stage-level callback.
type CallbackHandle struct {
	id    uint32
	reg   *handlerRegistry
	event EventType
	any   bool
}

// Remove unregisters this callback so it no longer fires.
func (h CallbackHandle) Remove() {
	if h.reg == nil {
		return
	}
	if h.any {
		h.reg.any = removeEventHandler(h.reg.any, h.id)
		return
	}
	h.reg.byType[h.event] = removeEventHandler(h.reg.byType[h.event], h.id)
}

func removeEventHandler(s []eventHandler, id uint32) []eventHandler {
	for i := range s {
		if s[i].id == id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = eventHandler{}
			return s[:len(s)-1]
		}
	}
	return s
}

// On registers a stage-level callback for events of type t. Stage-level
// callbacks see every event before the capture phase; returning true stops
// the event there.
func (s *Stage) On(t EventType, fn func(*Event) bool) CallbackHandle {
	if s.handlers.byType == nil {
		s.handlers.byType = make(map[EventType][]eventHandler)
	}
	s.handlers.nextID++
	id := s.handlers.nextID
	s.handlers.byType[t] = append(s.handlers.byType[t], eventHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, event: t}
}

// OnAny registers a stage-level callback for every event type.
func (s *Stage) OnAny(fn func(*Event) bool) CallbackHandle {
	s.handlers.nextID++
	id := s.handlers.nextID
	s.handlers.any = append(s.handlers.any, eventHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, any: true}
}

func (s *Stage) runHandlers(e *Event) bool {
	for _, h := range append([]eventHandler(nil), s.handlers.any...) {
		if h.fn(e) {
			return true
		}
	}
	for _, h := range append([]eventHandler(nil), s.handlers.byType[e.Type]...) {
		if h.fn(e) {
			return true
		}
	}
	return false
}

// --- Key focus and grabs ---

// SetKeyFocus routes key events to a. Nil, or the stage itself, gives the
// focus back to the stage. Actors of other stages are ignored.
func (s *Stage) SetKeyFocus(a *Actor) {
	if a == nil || a == s.Actor {
		s.keyFocus = ActorHandle{}
		return
	}
	if a.Stage() != s {
		contractViolation("SetKeyFocus", a, "actor is not on this stage")
		return
	}
	s.keyFocus = a.Handle()
}

// KeyFocus returns the actor receiving key events; the stage when none is
// set.
func (s *Stage) KeyFocus() *Actor {
	if a := s.keyFocus.Get(); a != nil {
		return a
	}
	return s.Actor
}

// GrabDevice routes every event of dev to a until UngrabDevice, or until a
// is unmapped.
func (s *Stage) GrabDevice(dev *InputDevice, a *Actor) {
	if dev == nil || a == nil {
		return
	}
	if a.Stage() != s {
		contractViolation("GrabDevice", a, "actor is not on this stage")
		return
	}
	s.grabs[dev] = a.Handle()
}

// UngrabDevice releases a grab set by GrabDevice.
func (s *Stage) UngrabDevice(dev *InputDevice) {
	delete(s.grabs, dev)
}

// DeviceGrab returns the actor grabbing dev, or nil.
func (s *Stage) DeviceGrab(dev *InputDevice) *Actor {
	return s.grabs[dev].Get()
}

// DeviceActor returns the actor under dev, or nil when the device has no
// known position on this stage.
func (s *Stage) DeviceActor(dev *InputDevice, sequence int) *Actor {
	if ds := s.devices[deviceKey{dev, sequence}]; ds != nil {
		return ds.actor.Get()
	}
	return nil
}

// --- Dispatch ---

func (s *Stage) dispatchEvent(e *Event) {
	e.Stage = s
	if e.Device == nil {
		e.Device = defaultDevice(e.Type)
	}

	var target *Actor
	switch {
	case e.Type == EventKeyPress || e.Type == EventKeyRelease:
		target = s.KeyFocus()
	case e.IsPointer():
		key := deviceKey{e.Device, e.Sequence}
		ds := s.devices[key]
		if ds == nil {
			ds = &deviceState{}
			s.devices[key] = ds
		}
		picked := s.GetActorAtPos(PickReactive, e.X, e.Y)
		ds.x, ds.y, ds.hasPos = e.X, e.Y, true
		target = picked
		if g := s.grabs[e.Device].Get(); g != nil {
			target = g
		}
		if e.Type == EventTouchEnd || e.Type == EventTouchCancel {
			s.deliver(target, e)
			s.crossTo(ds, e.Device, e.Sequence, nil, e.Time)
			delete(s.devices, key)
			return
		}
		s.crossTo(ds, e.Device, e.Sequence, picked, e.Time)
	default:
		target = e.Source
		if target == nil {
			target = s.Actor
		}
	}
	s.deliver(target, e)
}

func (s *Stage) deliver(target *Actor, e *Event) {
	e.Source = target
	s.emitEvent(target, e)
	s.emitInteraction(target, e)
}

// emitEvent runs the stage-level callbacks, then the capture phase from
// the stage down to target, then the bubble phase back up. It reports
// whether a handler stopped the event.
func (s *Stage) emitEvent(target *Actor, e *Event) bool {
	if s.runHandlers(e) {
		return true
	}
	var path []*Actor
	for a := target; a != nil; a = a.parent {
		path = append(path, a)
	}
	for i := len(path) - 1; i >= 0; i-- {
		a := path[i]
		if a.IsDestroyed() || a.OnCapturedEvent == nil {
			continue
		}
		if a.OnCapturedEvent(e) {
			return true
		}
	}
	for _, a := range path {
		if a.IsDestroyed() || a.OnEvent == nil {
			continue
		}
		if a.OnEvent(e) {
			return true
		}
	}
	return false
}

// crossTo moves the device onto a, emitting leave on the previous actor
// and enter on the new one.
func (s *Stage) crossTo(ds *deviceState, dev *InputDevice, seq int, a *Actor, t time.Time) {
	old := ds.actor.Get()
	if old == a {
		return
	}
	if a != nil {
		ds.actor = a.Handle()
	} else {
		ds.actor = ActorHandle{}
	}
	if old != nil && old.Stage() == s {
		s.deliver(old, &Event{
			Type: EventLeave, Time: t, Device: dev, Sequence: seq,
			X: ds.x, Y: ds.y, Related: a, Stage: s, Synthetic: true,
		})
	}
	if a != nil {
		s.deliver(a, &Event{
			Type: EventEnter, Time: t, Device: dev, Sequence: seq,
			X: ds.x, Y: ds.y, Related: old, Stage: s, Synthetic: true,
		})
	}
}

// updateInputDevices re-picks every positioned device after the scene
// changed under it, emitting enter and leave as needed.
func (s *Stage) updateInputDevices() {
	s.devicesDirty = false
	now := s.ctx.now()
	for key, ds := range s.devices {
		if !ds.hasPos || s.destroyed {
			continue
		}
		a := s.GetActorAtPos(PickReactive, ds.x, ds.y)
		s.crossTo(ds, key.dev, key.seq, a, now)
	}
}

// actorUnmapped drops input state that references a or its subtree.
func (s *Stage) actorUnmapped(a *Actor) {
	s.invalidatePickCache()
	if f := s.keyFocus.Get(); f != nil && a.Contains(f) {
		s.keyFocus = ActorHandle{}
	}
	for dev, h := range s.grabs {
		if g := h.Get(); g == nil || a.Contains(g) {
			delete(s.grabs, dev)
		}
	}
	for _, ds := range s.devices {
		if cur := ds.actor.Get(); cur != nil && a.Contains(cur) {
			ds.actor = ActorHandle{}
			s.devicesDirty = true
		}
	}
	if s.devicesDirty {
		s.scheduleUpdate()
	}
}
